package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"carsales/internal/aggregate"
	"carsales/internal/backend"
	"carsales/internal/core"
	applog "carsales/internal/log"
	"carsales/internal/metrics"
)

func testSales() []core.Sale {
	return []core.Sale{
		{CarID: "C1", Date: core.NewDate(2022, 1, 2), Company: "Ford", Model: "Expedition", Gender: "Male", AnnualIncome: 13500, Price: 26000, DealerRegion: "Middletown"},
		{CarID: "C2", Date: core.NewDate(2022, 1, 2), Company: "Dodge", Model: "Durango", Gender: "Male", AnnualIncome: 1480000, Price: 19000, DealerRegion: "Aurora"},
		{CarID: "C3", Date: core.NewDate(2022, 2, 15), Company: "Cadillac", Model: "Eldorado", Gender: "Female", AnnualIncome: 1035000, Price: 31500, DealerRegion: "Greenville"},
		{CarID: "C4", Date: core.NewDate(2022, 4, 3), Company: "Toyota", Model: "Celica", Gender: "Male", AnnualIncome: 13500, Price: 14000, DealerRegion: "Pasco"},
		{CarID: "C5", Date: core.NewDate(2023, 7, 20), Company: "Acura", Model: "TL", Gender: "Male", AnnualIncome: 1465000, Price: 24500, DealerRegion: "Janesville"},
	}
}

// memSource serves testSales until err is set.
type memSource struct {
	mu  sync.Mutex
	err error
}

func (m *memSource) Load(ctx context.Context) (*backend.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	sales := testSales()
	return &backend.Dataset{Sales: sales, Tables: aggregate.Compute(sales), Origin: "memory", LoadedAt: time.Now()}, nil
}

func (m *memSource) Name() string { return "memory" }

func (m *memSource) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func newTestServer(t *testing.T, cfg Config, load bool) (*Server, *memSource, *metrics.Registry) {
	t.Helper()
	logger := applog.New(applog.Config{Output: &bytes.Buffer{}})
	src := &memSource{}
	holder := backend.NewHolder(src, logger)
	if load {
		if _, err := holder.Reload(context.Background()); err != nil {
			t.Fatalf("initial load: %v", err)
		}
	}
	reg := metrics.New()
	srv := NewServer(cfg, holder, reg, logger)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, src, reg
}

func do(srv *Server, method, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	srv, _, _ := newTestServer(t, Config{}, false)

	rr := do(srv, http.MethodGet, "/healthz")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rr.Code, rr.Body.String())
	}

	if rr := do(srv, http.MethodGet, "/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before load = %d, want 503", rr.Code)
	}
	if rr := do(srv, http.MethodGet, "/api/summary"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("summary before load = %d, want 503", rr.Code)
	}

	if _, err := srv.Reload(context.Background(), "test"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if rr := do(srv, http.MethodGet, "/readyz"); rr.Code != http.StatusOK {
		t.Fatalf("readyz after load = %d, want 200", rr.Code)
	}
}

func TestSummaryFilters(t *testing.T) {
	srv, _, _ := newTestServer(t, Config{}, true)

	tests := []struct {
		name        string
		query       string
		wantCode    int
		wantSales   int
		wantRevenue float64
	}{
		{name: "no filter selects everything", query: "", wantCode: 200, wantSales: 5, wantRevenue: 115000},
		{name: "single year", query: "year=2022", wantCode: 200, wantSales: 4, wantRevenue: 90500},
		{name: "quarter", query: "quarter=2022Q1", wantCode: 200, wantSales: 3, wantRevenue: 76500},
		{name: "comma list", query: "quarter=2022q2,2023Q3", wantCode: 200, wantSales: 2, wantRevenue: 38500},
		{name: "disjoint year and quarter", query: "year=2022&quarter=2023Q3", wantCode: 200, wantSales: 0, wantRevenue: 0},
		{name: "explicit empty selection", query: "filtered=1", wantCode: 200, wantSales: 0, wantRevenue: 0},
		{name: "invalid year", query: "year=abc", wantCode: 400},
		{name: "invalid quarter", query: "quarter=2022Q5", wantCode: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(srv, http.MethodGet, "/api/summary?"+tt.query)
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				var body ErrorBody
				if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Error == "" {
					t.Fatalf("error body = %q", rr.Body.String())
				}
				return
			}

			var resp summaryResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Summary.TotalSales != tt.wantSales {
				t.Errorf("TotalSales = %d, want %d", resp.Summary.TotalSales, tt.wantSales)
			}
			if resp.Summary.TotalRevenue != tt.wantRevenue {
				t.Errorf("TotalRevenue = %v, want %v", resp.Summary.TotalRevenue, tt.wantRevenue)
			}
		})
	}
}

func TestSummaryFiltersDefaultToAvailableValues(t *testing.T) {
	srv, _, _ := newTestServer(t, Config{}, true)

	rr := do(srv, http.MethodGet, "/api/summary?year=2023")
	var resp summaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Filters.Years) != 1 || resp.Filters.Years[0] != 2023 {
		t.Errorf("years = %v, want [2023]", resp.Filters.Years)
	}
	want := []string{"2022Q1", "2022Q2", "2023Q3"}
	if strings.Join(resp.Filters.Quarters, ",") != strings.Join(want, ",") {
		t.Errorf("quarters = %v, want %v", resp.Filters.Quarters, want)
	}
}

func TestSummaryCacheAndReloadPurge(t *testing.T) {
	srv, _, reg := newTestServer(t, Config{}, true)

	do(srv, http.MethodGet, "/api/summary?year=2022")
	do(srv, http.MethodGet, "/api/summary?year=2022")
	do(srv, http.MethodGet, "/api/summary?year=2022,2022")

	if got := testutil.ToFloat64(reg.SummaryCacheHits.WithLabelValues("miss")); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(reg.SummaryCacheHits.WithLabelValues("hit")); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}

	rr := do(srv, http.MethodPost, "/reload")
	if rr.Code != http.StatusOK {
		t.Fatalf("reload status = %d: %s", rr.Code, rr.Body.String())
	}
	if srv.summaryCache.Size() != 0 {
		t.Errorf("cache size after reload = %d, want 0", srv.summaryCache.Size())
	}
	if got := testutil.ToFloat64(reg.Reloads.WithLabelValues("success")); got != 1 {
		t.Errorf("successful reloads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(reg.DatasetRows); got != 5 {
		t.Errorf("dataset rows = %v, want 5", got)
	}
}

func TestReloadFailureKeepsServing(t *testing.T) {
	srv, src, reg := newTestServer(t, Config{}, true)
	src.fail(errors.New("bundle missing"))

	rr := do(srv, http.MethodPost, "/reload")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("reload status = %d, want 500", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "bundle missing") {
		t.Errorf("reload body = %q", rr.Body.String())
	}
	if got := testutil.ToFloat64(reg.Reloads.WithLabelValues("failure")); got != 1 {
		t.Errorf("failed reloads = %v, want 1", got)
	}

	if rr := do(srv, http.MethodGet, "/api/summary"); rr.Code != http.StatusOK {
		t.Fatalf("summary after failed reload = %d, want 200", rr.Code)
	}
}

func TestTablesEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t, Config{}, true)

	rr := do(srv, http.MethodGet, "/api/tables")
	if rr.Code != http.StatusOK {
		t.Fatalf("tables status = %d", rr.Code)
	}
	var list tablesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode tables: %v", err)
	}
	if len(list.Tables) != 21 {
		t.Fatalf("tables = %d, want 21", len(list.Tables))
	}
	if list.Tables[0].Name != aggregate.TableTotalSales || list.Tables[0].Rows != 1 || list.Tables[0].Columns != 2 {
		t.Errorf("first table = %+v", list.Tables[0])
	}

	rr = do(srv, http.MethodGet, "/api/tables/sales?offset=1&limit=2")
	if rr.Code != http.StatusOK {
		t.Fatalf("table status = %d", rr.Code)
	}
	var page tableResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode table: %v", err)
	}
	if page.Total != 5 || page.Offset != 1 || len(page.Rows) != 2 {
		t.Errorf("page = total %d offset %d rows %d", page.Total, page.Offset, len(page.Rows))
	}

	if rr := do(srv, http.MethodGet, "/api/tables/nope"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown table status = %d, want 404", rr.Code)
	}

	rr = do(srv, http.MethodGet, "/tables/monthly_sales")
	if rr.Code != http.StatusOK {
		t.Fatalf("table page status = %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "2022-01") {
		t.Errorf("table page missing period row")
	}
}

func TestIndexRendersKPIsAndFilters(t *testing.T) {
	srv, _, _ := newTestServer(t, Config{}, true)

	rr := do(srv, http.MethodGet, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status = %d: %s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"Transactions", "$115,000.00", `value="2022Q1" selected`, "/tables/correlation"} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy header")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	rr = do(srv, http.MethodGet, "/?filtered=1&year=2023&quarter=2023Q3")
	body = rr.Body.String()
	if !strings.Contains(body, "$24,500.00") {
		t.Errorf("filtered index missing revenue")
	}
	if strings.Contains(body, `value="2022" selected`) {
		t.Errorf("2022 should not be selected")
	}

	// A filtered form without quarters selects no quarter at all.
	rr = do(srv, http.MethodGet, "/?filtered=1&year=2023")
	if !strings.Contains(rr.Body.String(), "No sales match") {
		t.Errorf("filtered year without quarters should render the empty state")
	}

	rr = do(srv, http.MethodGet, "/?filtered=1")
	if !strings.Contains(rr.Body.String(), "No sales match") {
		t.Errorf("empty selection should render the empty state")
	}
}

func TestRateLimit(t *testing.T) {
	srv, _, reg := newTestServer(t, Config{RateLimitPerMinute: 2}, true)

	for i := 0; i < 2; i++ {
		if rr := do(srv, http.MethodGet, "/api/options"); rr.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rr.Code)
		}
	}
	rr := do(srv, http.MethodGet, "/api/options")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if got := testutil.ToFloat64(reg.RateLimited); got != 1 {
		t.Errorf("rate limited = %v, want 1", got)
	}

	// Probes are not limited.
	if rr := do(srv, http.MethodGet, "/healthz"); rr.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rr.Code)
	}
}

func TestRateLimitBehindTrustedProxy(t *testing.T) {
	// httptest requests come from 192.0.2.1.
	srv, _, _ := newTestServer(t, Config{RateLimitPerMinute: 1, TrustedProxies: []string{"192.0.2.0/24"}}, true)

	from := func(client string) int {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/options", nil)
		req.Header.Set("X-Forwarded-For", client+", 192.0.2.1")
		srv.Handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := from("203.0.113.10"); code != http.StatusOK {
		t.Fatalf("first client status = %d", code)
	}
	if code := from("203.0.113.10"); code != http.StatusTooManyRequests {
		t.Fatalf("first client again = %d, want 429", code)
	}
	if code := from("203.0.113.20"); code != http.StatusOK {
		t.Fatalf("second client status = %d, want its own bucket", code)
	}
}

func TestWebsocketReceivesReload(t *testing.T) {
	srv, _, reg := newTestServer(t, Config{}, true)
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := testutil.ToFloat64(reg.WSClients); got != 1 {
		t.Errorf("ws clients gauge = %v, want 1", got)
	}

	if _, err := srv.Reload(context.Background(), "test"); err != nil {
		t.Fatalf("reload: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event ReloadEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Type != "reload" || event.Source != "test" || event.Rows != 5 {
		t.Errorf("event = %+v", event)
	}
}
