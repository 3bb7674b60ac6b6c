package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"carsales/internal/aggregate"
	ports "carsales/internal/sheets"
)

// Store keeps written tables in memory. The aggregator uses it for dry runs.
type Store struct {
	mu     sync.Mutex
	tables map[string]aggregate.Table
	writes int
}

var _ ports.TableStore = (*Store)(nil)

func New() *Store {
	return &Store{tables: make(map[string]aggregate.Table)}
}

// WriteTables stores copies of the tables, replacing earlier versions.
func (s *Store) WriteTables(_ context.Context, tables aggregate.Tables) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tables {
		s.tables[t.Name] = clone(t)
	}
	s.writes++
	return nil
}

func (s *Store) ReadTable(_ context.Context, name string) (aggregate.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return aggregate.Table{}, fmt.Errorf("table %s not found", name)
	}
	return clone(t), nil
}

// Names returns the stored table names, sorted.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tables))
	for n := range s.tables {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Writes returns how many WriteTables calls the store has served.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func clone(t aggregate.Table) aggregate.Table {
	rows := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = append([]any(nil), r...)
	}
	return aggregate.Table{
		Name:    t.Name,
		Columns: append([]string(nil), t.Columns...),
		Rows:    rows,
	}
}
