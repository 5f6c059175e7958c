package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"cashflow/internal/cache"
	"cashflow/internal/chart"
	"cashflow/internal/core"
	"cashflow/internal/dashboard"
	applog "cashflow/internal/log"
	"cashflow/internal/middleware/ratelimit"
	"cashflow/internal/middleware/security"
	"cashflow/internal/middleware/trace"
	"cashflow/internal/records"
	appweb "cashflow/web"
)

const (
	seriesCacheSize = 16
	imageCacheSize  = 64
	reloadTimeout   = 30 * time.Second

	// HeaderGeneration carries the snapshot generation of /api/snapshot.
	HeaderGeneration = "X-Records-Generation"
)

type Config struct {
	Addr               string
	RateLimitPerMinute int
	CacheTTL           time.Duration
	Logger             *applog.Logger
}

type Server struct {
	http.Server

	logger    *applog.Logger
	templates *template.Template
	session   *dashboard.Session
	source    records.Reader

	seriesCache  *cache.LRUCache[core.Series]
	imageCache   *cache.LRUCache[[]byte]
	cacheManager *cache.Manager

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	started        time.Time
	reloads        atomic.Int64
	reloadFailures atomic.Int64
	staleReloads   atomic.Int64

	shutdownOnce sync.Once
}

// NewServer wires routes, middleware and caches around session. source is
// read directly by GET /api/records.
func NewServer(cfg Config, session *dashboard.Session, source records.Reader) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.NewDiscard()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	rpm := cfg.RateLimitPerMinute
	if rpm <= 0 {
		rpm = 30
	}

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:           logger,
		session:          session,
		source:           source,
		seriesCache:      cache.NewLRUCache[core.Series](seriesCacheSize, ttl),
		imageCache:       cache.NewLRUCache[[]byte](imageCacheSize, ttl),
		cacheManager:     cache.NewManager(logger),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: rpm}),
		securityDetector: security.NewDetector(logger),
		started:          time.Now(),
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger)

	s.cacheManager.Register(s.seriesCache)
	s.cacheManager.Register(s.imageCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.traceMiddleware.Middleware)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.securityDetector.Middleware)
	r.Use(middleware.Compress(5, "text/html", "text/css", "text/plain", "application/javascript", "application/json", "image/svg+xml"))

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(security.NoStore)
		r.Get("/records", s.handleRecords)
		r.Get("/status", s.handleStatus)
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/cashflow", s.handleCashflow)
		r.Put("/view-mode", s.handleSetViewMode)
		r.With(s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited)).
			Post("/reload", s.handleReload)
	})

	r.With(security.NoStore).Get("/chart.png", s.handleChart(chart.PNG))
	r.With(security.NoStore).Get("/chart.svg", s.handleChart(chart.SVG))

	return r
}

// Shutdown stops background cleanup and then the HTTP server. Safe to call
// more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
