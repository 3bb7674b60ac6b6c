package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"carsales/internal/aggregate"
	"carsales/internal/backend"
	"carsales/internal/core"
	"carsales/internal/dashboard"
	applog "carsales/internal/log"
	"carsales/internal/middleware/trace"
)

const reloadTimeout = 2 * time.Minute

// TableInfo describes one precomputed table.
type TableInfo struct {
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

func tableInfos(ts aggregate.Tables) []TableInfo {
	out := make([]TableInfo, len(ts))
	for i, t := range ts {
		rows, cols := t.Shape()
		out[i] = TableInfo{Name: t.Name, Rows: rows, Columns: cols}
	}
	return out
}

// effective replaces the "every value" parts of sel by the values present.
func effective(sel dashboard.Selection, opts dashboard.Options) dashboard.Options {
	out := dashboard.Options{Years: sel.Years, Quarters: sel.Quarters}
	if out.Years == nil {
		out.Years = opts.Years
	}
	if out.Quarters == nil {
		out.Quarters = opts.Quarters
	}
	return out
}

// dataset returns the loaded dataset or writes a 503 through fail.
func (s *Server) dataset(w http.ResponseWriter, r *http.Request, fail func(int, string)) (*backend.Dataset, bool) {
	data, err := s.holder.Current()
	if err != nil {
		if errors.Is(err, backend.ErrNotLoaded) {
			fail(http.StatusServiceUnavailable, "data is still loading, please retry shortly")
		} else {
			applog.FromContext(r.Context()).Error("Dataset unavailable", applog.FieldError, err)
			fail(http.StatusInternalServerError, "dataset unavailable")
		}
		return nil, false
	}
	return data, true
}

func (s *Server) jsonFail(w http.ResponseWriter, r *http.Request) func(int, string) {
	return func(code int, msg string) {
		_ = JSONError(code, msg, trace.GetRequestID(r.Context())).Write(w)
	}
}

func (s *Server) htmlFail(w http.ResponseWriter) func(int, string) {
	return func(code int, msg string) {
		HTMLError(w, code, msg)
	}
}

type indexPage struct {
	Summary  core.Summary
	Options  dashboard.Options
	Selected dashboard.Options
	Tables   []TableInfo
	Source   string
	Origin   string
	LoadedAt time.Time
	Rows     int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		applog.FromContext(r.Context()).Error("Templates not loaded", applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	sel, err := ParseSelection(r.URL.Query())
	if err != nil {
		HTMLError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, ok := s.dataset(w, r, s.htmlFail(w))
	if !ok {
		return
	}

	opts := dashboard.OptionsOf(data.Sales)
	page := indexPage{
		Summary:  s.summary(data, sel),
		Options:  opts,
		Selected: effective(sel, opts),
		Tables:   tableInfos(data.Tables),
		Source:   s.holder.SourceName(),
		Origin:   data.Origin,
		LoadedAt: data.LoadedAt,
		Rows:     len(data.Sales),
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", page); err != nil {
		applog.LogError(r.Context(), applog.FromContext(r.Context()), "Index template execution failed", err, applog.OpRender,
			applog.NewFields().WithTable("index.html"))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type summaryResponse struct {
	Filters dashboard.Options `json:"filters"`
	Summary core.Summary      `json:"summary"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	fail := s.jsonFail(w, r)
	sel, err := ParseSelection(r.URL.Query())
	if err != nil {
		fail(http.StatusBadRequest, err.Error())
		return
	}
	data, ok := s.dataset(w, r, fail)
	if !ok {
		return
	}

	resp := summaryResponse{
		Filters: effective(sel, dashboard.OptionsOf(data.Sales)),
		Summary: s.summary(data, sel),
	}
	if err := NewJSONResponse(resp).Write(w); err != nil {
		applog.FromContext(r.Context()).Error("Summary response failed", applog.FieldError, err)
	}
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	data, ok := s.dataset(w, r, s.jsonFail(w, r))
	if !ok {
		return
	}
	if err := NewJSONResponse(dashboard.OptionsOf(data.Sales)).Write(w); err != nil {
		applog.FromContext(r.Context()).Error("Options response failed", applog.FieldError, err)
	}
}

type tablesResponse struct {
	Source   string      `json:"source"`
	Origin   string      `json:"origin"`
	LoadedAt time.Time   `json:"loaded_at"`
	Tables   []TableInfo `json:"tables"`
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	data, ok := s.dataset(w, r, s.jsonFail(w, r))
	if !ok {
		return
	}
	resp := tablesResponse{
		Source:   s.holder.SourceName(),
		Origin:   data.Origin,
		LoadedAt: data.LoadedAt,
		Tables:   tableInfos(data.Tables),
	}
	if err := NewJSONResponse(resp).Write(w); err != nil {
		applog.FromContext(r.Context()).Error("Tables response failed", applog.FieldError, err)
	}
}

type tableResponse struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Total   int      `json:"total"`
	Offset  int      `json:"offset"`
	Limit   int      `json:"limit"`
}

// pagedTable looks up the named table and cuts the requested page.
func (s *Server) pagedTable(w http.ResponseWriter, r *http.Request, fail func(int, string)) (tableResponse, bool) {
	data, ok := s.dataset(w, r, fail)
	if !ok {
		return tableResponse{}, false
	}
	name := mux.Vars(r)["name"]
	t, found := data.Tables.Get(name)
	if !found {
		fail(http.StatusNotFound, "unknown table "+name)
		return tableResponse{}, false
	}

	page := ParsePageParams(r.URL.Query())
	start, end := page.Window(len(t.Rows))
	return tableResponse{
		Name:    t.Name,
		Columns: t.Columns,
		Rows:    t.Rows[start:end],
		Total:   len(t.Rows),
		Offset:  start,
		Limit:   page.Limit,
	}, true
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	resp, ok := s.pagedTable(w, r, s.jsonFail(w, r))
	if !ok {
		return
	}
	if err := NewJSONResponse(resp).Write(w); err != nil {
		applog.FromContext(r.Context()).Error("Table response failed", applog.FieldTable, resp.Name, applog.FieldError, err)
	}
}

type tablePage struct {
	tableResponse
	First, Last int
	PrevOffset  int
	NextOffset  int
	HasPrev     bool
	HasNext     bool
}

func (s *Server) handleTablePage(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	resp, ok := s.pagedTable(w, r, s.htmlFail(w))
	if !ok {
		return
	}

	end := resp.Offset + len(resp.Rows)
	page := tablePage{
		tableResponse: resp,
		First:         resp.Offset + 1,
		Last:          end,
		PrevOffset:    max(resp.Offset-resp.Limit, 0),
		NextOffset:    end,
		HasPrev:       resp.Offset > 0,
		HasNext:       end < resp.Total,
	}
	if err := s.templates.ExecuteTemplate(w, "table.html", page); err != nil {
		applog.LogError(r.Context(), applog.FromContext(r.Context()), "Table template execution failed", err, applog.OpRender,
			applog.NewFields().WithTable(resp.Name))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type reloadResponse struct {
	Source   string    `json:"source"`
	Rows     int       `json:"rows"`
	Tables   int       `json:"tables"`
	LoadedAt time.Time `json:"loaded_at"`
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), reloadTimeout)
	defer cancel()

	data, err := s.Reload(ctx, "http")
	if err != nil {
		_ = JSONError(http.StatusInternalServerError, "reload failed: "+err.Error(), trace.GetRequestID(r.Context())).Write(w)
		return
	}
	resp := reloadResponse{
		Source:   s.holder.SourceName(),
		Rows:     len(data.Sales),
		Tables:   len(data.Tables),
		LoadedAt: data.LoadedAt,
	}
	if err := NewJSONResponse(resp).Write(w); err != nil {
		applog.FromContext(r.Context()).Error("Reload response failed", applog.FieldError, err)
	}
}
