package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// StatementError records one failed statement of a script.
type StatementError struct {
	Index     int
	Statement string
	Err       error
}

func (e StatementError) Error() string {
	return fmt.Sprintf("statement %d: %v", e.Index, e.Err)
}

// ScriptResult summarizes a script execution.
type ScriptResult struct {
	Executed int
	Failed   []StatementError
}

// SplitStatements splits a script on ';'. Blank statements and statements
// starting with a "--" comment are dropped.
func SplitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		stmt := strings.TrimSpace(part)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

// ExecScript runs every statement of script in order. A failing statement
// is logged and skipped; the rest still run.
func (r *SalesRepository) ExecScript(ctx context.Context, script string) ScriptResult {
	var res ScriptResult
	for i, stmt := range SplitStatements(script) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			slog.WarnContext(ctx, "Script statement failed", "index", i, "error", err)
			res.Failed = append(res.Failed, StatementError{Index: i, Statement: stmt, Err: err})
			continue
		}
		res.Executed++
	}
	return res
}

// ExecScriptFile reads and runs a script file.
func (r *SalesRepository) ExecScriptFile(ctx context.Context, path string) (ScriptResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ScriptResult{}, fmt.Errorf("read script: %w", err)
	}
	return r.ExecScript(ctx, string(data)), nil
}
