// Package web provides the HTTP API for the inventory service.
package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/Joshypeace/PharmaStore/internal/config"
	"github.com/Joshypeace/PharmaStore/internal/core"
	"github.com/Joshypeace/PharmaStore/internal/database"
	"github.com/Joshypeace/PharmaStore/internal/logging"
	"github.com/Joshypeace/PharmaStore/internal/metrics"
	"github.com/Joshypeace/PharmaStore/internal/web/middleware"
)

// Inventory is the engine surface the handlers drive.
type Inventory interface {
	UpsertItem(ctx context.Context, existingID *int64, fields core.ItemFields, actor core.Actor) (core.Item, error)
	DeleteItem(ctx context.Context, id int64, actor core.Actor) (core.Item, error)
	SetThreshold(ctx context.Context, id int64, threshold int, actor core.Actor) (core.Item, error)
	GetItem(ctx context.Context, id int64) (core.Item, error)
	ListItems(ctx context.Context, f core.ItemFilter) ([]core.Item, error)
	HasInventory(ctx context.Context) (bool, error)
	ItemHistory(ctx context.Context, id int64, limit int) ([]core.HistoryEntry, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	ImportBatch(ctx context.Context, rows []core.ImportRow, actor core.Actor, opts core.ImportOptions) (core.ImportResult, error)
	RecordSale(ctx context.Context, req core.SaleRequest, actor core.Actor) (core.Sale, error)
}

// Accounts signs users in and verifies their tokens.
type Accounts interface {
	middleware.TokenVerifier
	Login(ctx context.Context, email, password string) (string, core.User, error)
	CurrentUser(ctx context.Context, a core.Actor) (core.User, error)
}

// Reports serves dashboard aggregates and the readiness probe.
type Reports interface {
	InventoryStats(ctx context.Context) (database.InventoryStats, error)
	DashboardStats(ctx context.Context) (database.DashboardStats, error)
	Ping(ctx context.Context) error
}

// Deps are the collaborators a Server needs. Metrics may be nil.
type Deps struct {
	Inventory Inventory
	Accounts  Accounts
	Reports   Reports
	Imports   *core.ImportLimiter
	Metrics   *metrics.Collector
}

// Server is the HTTP server for the inventory API.
type Server struct {
	deps     Deps
	cfg      *config.Config
	validate *validator.Validate
	limiter  *rateLimiter
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a Server with all middleware and routes installed.
func NewServer(deps Deps, cfg *config.Config) *Server {
	if deps.Imports == nil {
		deps.Imports = core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)
	}
	s := &Server{
		deps:     deps,
		cfg:      cfg,
		validate: newValidator(),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.deps.Metrics != nil {
		s.router.Use(s.deps.Metrics.Middleware)
	}
	s.router.Use(requestMetadata)
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Security.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if s.cfg.Rate.Enabled {
		s.limiter = newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(s.limiter.middleware(s.respondError))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	protected := middleware.BearerAuth(s.deps.Accounts, s.respondError)
	timeout := s.requestTimeout()

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(timeout)
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
			r.With(protected).Get("/me", s.handleMe)
			r.With(protected).Get("/dashboard-stats", s.handleDashboardStats)
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Use(protected)

			// Imports are bounded by cfg.Import.Timeout instead.
			r.Post("/import", s.handleImport)

			r.Group(func(r chi.Router) {
				r.Use(timeout)
				r.Get("/", s.handleListItems)
				r.Post("/", s.handleCreateItem)
				r.Get("/exists", s.handleInventoryExists)
				r.Get("/stats/dashboard", s.handleInventoryStats)
				r.Get("/categories", s.handleListCategories)
				r.Get("/import/template", s.handleImportTemplate)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetItem)
					r.Put("/", s.handleUpdateItem)
					r.Patch("/", s.handleUpdateItem)
					r.Delete("/", s.handleDeleteItem)
					r.Get("/history", s.handleItemHistory)
					r.Patch("/threshold", s.handleSetThreshold)
				})
			})
		})

		r.With(protected, timeout).Post("/sales", s.handleRecordSale)
	})
}

func (s *Server) requestTimeout() func(http.Handler) http.Handler {
	if d := s.cfg.Server.RequestTimeout; d > 0 {
		return chimw.Timeout(d)
	}
	return func(next http.Handler) http.Handler { return next }
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	logging.FromContext(context.Background()).Info("starting server", "addr", sc.Addr())
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections, waits for in-flight requests and
// then for running imports to finish, both bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.deps.Imports.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

const contentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				h.Set("Content-Security-Policy", contentSecurityPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}

var errRateLimited = errors.New("rate limit exceeded")

// rateLimiter is a fixed-window request counter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
	now      func() time.Time
	done     chan struct{}
	once     sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// cleanup drops visitors idle for two windows.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
		}
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if rl.now().Sub(v.lastReset) > rl.window*2 {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}

// allow consumes a token for ip and reports whether one was available.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[ip]
	if !ok || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *rateLimiter) middleware(fail middleware.ErrorResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(clientIP(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
				fail(w, r, errRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
