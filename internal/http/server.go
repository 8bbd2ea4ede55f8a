package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"expensedash/internal/amqp"
	"expensedash/internal/authform"
	"expensedash/internal/cache"
	"expensedash/internal/core"
	"expensedash/internal/dashboard"
	"expensedash/internal/log"
	"expensedash/internal/middleware/ratelimit"
	"expensedash/internal/middleware/security"
	"expensedash/internal/middleware/trace"
	"expensedash/internal/session"
	appweb "expensedash/web"
)

// API is the REST client surface the web front end drives.
type API interface {
	dashboard.API
	authform.Authenticator
}

// Options configures NewServer. API and Sessions are required.
type Options struct {
	API      API
	Sessions session.Provider
	// Ready reports whether backing services are usable; nil means always.
	Ready  func(ctx context.Context) error
	Events amqp.Publisher

	EnableCreate  bool
	DefaultLocale core.Locale

	ClientCacheSize int
	ClientIdleTTL   time.Duration
	AuthRateLimit   int
	// TrustedProxies extends the proxy networks whose X-Forwarded-For is used.
	TrustedProxies []string

	Logger *log.Logger
	Now    func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	logger    *log.Logger

	api           API
	sessions      session.Provider
	ready         func(ctx context.Context) error
	events        amqp.Publisher
	enableCreate  bool
	defaultLocale core.Locale
	now           func() time.Time
	cookieMaxAge  time.Duration

	browsers     *cache.LRUCache[*browser]
	cacheManager *cache.Manager

	securityHeaders  *security.HeadersMiddleware
	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime time.Time
	logins int64
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, opts Options) (*Server, error) {
	if opts.API == nil || opts.Sessions == nil {
		return nil, errors.New("http: API and Sessions are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Events == nil {
		opts.Events = amqp.NoopPublisher{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultLocale.Tag.IsRoot() {
		opts.DefaultLocale = core.DefaultLocale()
	}
	if opts.ClientCacheSize <= 0 {
		opts.ClientCacheSize = 1000
	}
	if opts.ClientIdleTTL <= 0 {
		opts.ClientIdleTTL = 30 * time.Minute
	}
	if opts.AuthRateLimit <= 0 {
		opts.AuthRateLimit = 20
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		templates:     t,
		logger:        logger,
		api:           opts.API,
		sessions:      opts.Sessions,
		ready:         opts.Ready,
		events:        opts.Events,
		enableCreate:  opts.EnableCreate,
		defaultLocale: opts.DefaultLocale,
		now:           opts.Now,
		cookieMaxAge:  365 * 24 * time.Hour,
		appMetrics:    &appMetrics{uptime: time.Now()},
	}

	s.browsers = cache.NewLRUCache(opts.ClientCacheSize, opts.ClientIdleTTL,
		cache.WithEvictionHandler(func(id string, b *browser) {
			logger.Debug("Browser state evicted", log.FieldClientID, id)
			b.close()
		}))
	s.cacheManager = cache.NewManager(opts.Logger)
	s.cacheManager.Register(s.browsers)
	s.cacheManager.StartCleanup(time.Minute)

	s.securityHeaders = security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.securityDetector = security.NewDetector(opts.Logger)
	for _, cidr := range opts.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{
		Requests: opts.AuthRateLimit,
		Window:   time.Minute,
		Logger:   opts.Logger,
	})
	s.traceMiddleware = trace.NewMiddleware(opts.Logger, s.securityDetector.ExtractClientIP)

	// Static assets (served from embedded FS)
	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	page := func(h http.HandlerFunc) http.Handler { return security.NoStore(h) }
	mux.Handle("GET /{$}", page(s.handleDashboard))
	mux.Handle("POST /login", page(s.handleLogin))
	mux.Handle("POST /auth/toggle", page(s.handleToggleAuthMode))
	mux.Handle("POST /logout", page(s.handleLogout))
	mux.Handle("POST /refresh", page(s.handleRefresh))
	mux.Handle("POST /expenses", page(s.handleCreateExpense))
	mux.Handle("GET /expenses/{id}/delete", page(s.handleConfirmDelete))
	mux.Handle("POST /expenses/{id}/delete", page(s.handleDeleteExpense))
	mux.Handle("GET /charts/monthly.png", page(s.handleMonthlyChart))

	isAuthPost := func(r *http.Request) bool {
		return r.Method == http.MethodPost && r.URL.Path == "/login"
	}
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, isAuthPost, nil)(mux)

	s.Handler = s.securityDetector.Middleware(
		s.traceMiddleware.Middleware(
			s.securityHeaders.Middleware(limited)))

	return s, nil
}

// Shutdown stops background work, drops every browser controller and
// shuts the listener down.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
		if n := s.browsers.Purge(); n > 0 {
			s.logger.Info("Released browser state", "count", n)
		}
	})
	return shutdownErr
}

// Browsers reports how many browsers currently have in-memory state.
func (s *Server) Browsers() int {
	return s.browsers.Size()
}
