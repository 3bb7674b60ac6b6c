package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"carsales/internal/backend"
	"carsales/internal/cache"
	"carsales/internal/core"
	"carsales/internal/dashboard"
	applog "carsales/internal/log"
	"carsales/internal/metrics"
	"carsales/internal/middleware/ratelimit"
	"carsales/internal/middleware/security"
	"carsales/internal/middleware/trace"
	appweb "carsales/web"
)

// Config holds the dashboard server settings.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	SummaryCacheTTL    time.Duration
	SummaryCacheSize   int
	TrustedProxies     []string
}

// Server serves the dashboard pages, its JSON API and the reload websocket.
type Server struct {
	http.Server
	templates *template.Template
	holder    *backend.Holder
	logger    *applog.Logger
	metrics   *metrics.Registry
	limiter   *ratelimit.Limiter
	hub       *Hub

	// Summaries per dataset and selection, purged on reload.
	summaryCache *cache.LRUCache[core.Summary]
	caches       *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(cfg Config, holder *backend.Holder, reg *metrics.Registry, logger *applog.Logger) *Server {
	if cfg.SummaryCacheSize <= 0 {
		cfg.SummaryCacheSize = 256
	}
	if cfg.SummaryCacheTTL <= 0 {
		cfg.SummaryCacheTTL = 5 * time.Minute
	}
	if reg == nil {
		reg = metrics.New()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	router := mux.NewRouter()
	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		holder:       holder,
		logger:       logger,
		metrics:      reg,
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		hub:          NewHub(logger, reg.WSClients),
		summaryCache: cache.NewLRUCache[core.Summary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL),
		caches:       cache.NewManager(logger),
	}
	s.caches.Register(s.summaryCache)
	s.caches.StartCleanup(10 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	resolver := security.NewClientIPResolver()
	for _, cidr := range cfg.TrustedProxies {
		if err := resolver.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, applog.FieldError, err)
		}
	}

	tracer := trace.NewMiddleware(logger, resolver.ClientIP, reg)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	router.Use(tracer.Middleware, headers.Middleware)

	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet, http.MethodHead)
	router.Handle("/metrics", reg.Handler()).Methods(http.MethodGet)
	router.Handle("/ws", s.hub).Methods(http.MethodGet)

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		router.PathPrefix("/static/").Handler(security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	// Pages and API share the per-client rate limit.
	app := router.NewRoute().Subrouter()
	app.Use(s.limiter.Middleware(resolver.ClientIP, s.onRateLimited))
	app.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	app.HandleFunc("/tables/{name}", s.handleTablePage).Methods(http.MethodGet)
	app.HandleFunc("/api/summary", s.handleSummary).Methods(http.MethodGet)
	app.HandleFunc("/api/options", s.handleOptions).Methods(http.MethodGet)
	app.HandleFunc("/api/tables", s.handleTables).Methods(http.MethodGet)
	app.HandleFunc("/api/tables/{name}", s.handleTable).Methods(http.MethodGet)
	app.HandleFunc("/reload", s.handleReload).Methods(http.MethodPost)

	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited.Inc()
	applog.FromContext(r.Context()).Warn("Rate limit exceeded",
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	_ = JSONError(http.StatusTooManyRequests, "rate limit exceeded, please try again later", trace.GetRequestID(r.Context())).Write(w)
}

// Reload reloads the data source, drops cached summaries and notifies
// connected browsers. A failed reload keeps serving the previous dataset.
func (s *Server) Reload(ctx context.Context, trigger string) (*backend.Dataset, error) {
	data, err := s.holder.Reload(ctx)
	if err != nil {
		s.metrics.Reloads.WithLabelValues("failure").Inc()
		return nil, err
	}
	s.metrics.Reloads.WithLabelValues("success").Inc()
	s.metrics.DatasetRows.Set(float64(len(data.Sales)))

	purged := s.summaryCache.Purge()
	event := ReloadEvent{
		Type:     "reload",
		Source:   trigger,
		Rows:     len(data.Sales),
		LoadedAt: data.LoadedAt,
	}
	if err := s.hub.Broadcast(event); err != nil {
		s.logger.WarnContext(ctx, "Reload notification failed", applog.FieldError, err)
	}
	s.logger.InfoContext(ctx, "Dashboard data reloaded",
		applog.FieldOperation, applog.OpReload,
		"trigger", trigger,
		applog.FieldRows, len(data.Sales),
		"cache_entries_purged", purged,
		"ws_clients", s.hub.Clients())
	return data, nil
}

// summary returns the KPIs of sel over data, computing them at most once
// per dataset and selection while cached.
func (s *Server) summary(data *backend.Dataset, sel dashboard.Selection) core.Summary {
	key := strconv.FormatInt(data.LoadedAt.UnixNano(), 36) + "|" + sel.Key()
	if sum, ok := s.summaryCache.Get(key); ok {
		s.metrics.SummaryCacheHits.WithLabelValues("hit").Inc()
		return sum
	}
	s.metrics.SummaryCacheHits.WithLabelValues("miss").Inc()
	sum := dashboard.Summarize(dashboard.Filter(data.Sales, sel))
	s.summaryCache.Set(key, sum)
	return sum
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	// Ensure shutdown logic runs only once
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		s.hub.Close()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.holder.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
