package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"expenses/internal/core"
	"expenses/internal/database"
	"expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/middleware/cors"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/middleware/recovery"
	"expenses/internal/middleware/security"
	"expenses/internal/middleware/trace"
)

// ExpenseAPI is the service the handlers delegate to.
type ExpenseAPI interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	CreateExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error)
	UpdateExpense(ctx context.Context, id string, in core.ExpenseInput) (core.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
}

// ConnectionStatus reports the store connection state for /health.
type ConnectionStatus interface {
	State() database.ConnectionState
	Attempts() int
}

type Config struct {
	Addr     string
	Expenses ExpenseAPI
	DB       ConnectionStatus
	Logger   *log.Logger

	// Metrics is optional; when set, requests are instrumented and
	// /metrics is served.
	Metrics *metrics.Metrics

	AllowedOrigins []string
	RateLimit      ratelimit.Config

	// ExposeErrors adds panic detail to 500 bodies. Never set in production.
	ExposeErrors bool

	Now func() time.Time
}

type Server struct {
	http.Server
	expenses     ExpenseAPI
	db           ConnectionStatus
	logger       *log.Logger
	limiter      *ratelimit.Limiter
	now          func() time.Time
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware. The returned server owns a rate
// limiter goroutine that Shutdown stops.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	rl := cfg.RateLimit
	if rl.Methods == nil {
		rl.Methods = ratelimit.DefaultConfig().Methods
	}

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		expenses: cfg.Expenses,
		db:       cfg.DB,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(rl),
		now:      now,
		started:  now(),
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.InstrumentHandler)
		router.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
		cfg.Metrics.TrackRateLimitClients(s.limiter.ActiveClients)
	}
	router.Use(s.limiter.Middleware(extractClientIP, nil))

	router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	router.HandleFunc("/test", s.handleTest).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	router.HandleFunc("/api/expenses", s.handleListExpenses).Methods(http.MethodGet)
	router.HandleFunc("/api/expenses", s.handleCreateExpense).Methods(http.MethodPost)
	router.HandleFunc("/api/expenses/{id}", s.handleGetExpense).Methods(http.MethodGet)
	router.HandleFunc("/api/expenses/{id}", s.handleUpdateExpense).Methods(http.MethodPut)
	router.HandleFunc("/api/expenses/{id}", s.handleDeleteExpense).Methods(http.MethodDelete)

	// Outermost first: CORS answers preflights before anything is logged,
	// trace puts the request logger in context for recovery to use.
	var handler http.Handler = router
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = recovery.Middleware(logger, cfg.ExposeErrors)(handler)
	handler = trace.NewMiddleware(logger, extractClientIP).Middleware(handler)
	handler = cors.New(cfg.AllowedOrigins).Handler(handler)

	s.Handler = handler
	return s
}

// Shutdown stops accepting connections, waits for in-flight requests and
// releases the rate limiter. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
		if shutdownErr != nil {
			s.logger.ErrorContext(ctx, "HTTP server shutdown failed",
				log.FieldOperation, log.OpShutdown,
				log.FieldError, shutdownErr)
			return
		}
		s.logger.InfoContext(ctx, "HTTP server stopped", log.FieldOperation, log.OpShutdown)
	})
	return shutdownErr
}
