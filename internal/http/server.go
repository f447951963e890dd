// Package http exposes the ledger as a JSON REST API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"tally/internal/log"
	"tally/internal/middleware/ratelimit"
	"tally/internal/middleware/security"
	"tally/internal/middleware/trace"
	"tally/internal/services"
)

const maxBodyBytes = 1 << 20

// Services are the application services behind the API.
type Services struct {
	Expenses   *services.ExpenseService
	Categories *services.CategoryService
	Budgets    *services.BudgetService
	Reports    *services.ReportService
}

type Server struct {
	http.Server
	svc      Services
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	ips      *security.IPResolver
	tracer   *trace.Middleware
	validate *validator.Validate
	now      func() time.Time
	ready    func(context.Context) error

	rateLimit    int
	shutdownOnce sync.Once
}

type Option func(*Server)

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimit sets the per-client request budget per minute.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) { s.rateLimit = perMinute }
}

// WithClock sets the clock used for default months in report and budget
// queries.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithReadiness sets the check run by /readyz.
func WithReadiness(check func(context.Context) error) Option {
	return func(s *Server) { s.ready = check }
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. Call Shutdown to stop it and its background goroutines.
func NewServer(addr string, svc Services, opts ...Option) *Server {
	s := &Server{
		svc:       svc,
		logger:    log.New(log.DefaultConfig()),
		ips:       security.NewIPResolver(),
		validate:  newValidator(),
		now:       time.Now,
		rateLimit: ratelimit.DefaultConfig().RequestsPerMinute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentHTTP)
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: s.rateLimit})
	s.tracer = trace.NewMiddleware(s.logger, s.ips.ExtractClientIP)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.handler(s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("GET /api/categories/search", s.handleSearchCategories)
	mux.HandleFunc("GET /api/categories/unused", s.handleUnusedCategories)
	mux.HandleFunc("GET /api/categories/by-name/{name}", s.handleGetCategoryByName)
	mux.HandleFunc("GET /api/categories/{id}", s.handleGetCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/expenses", s.handleFilterExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/search", s.handleSearchExpenses)
	mux.HandleFunc("GET /api/expenses/current-month", s.handleCurrentMonthExpenses)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/reports/summary", s.handleSummary)
	mux.HandleFunc("GET /api/reports/monthly", s.handleMonthly)
	mux.HandleFunc("GET /api/reports/categories", s.handleCategoryBreakdown)
	mux.HandleFunc("GET /api/reports/categories/{id}/stats", s.handleCategoryStats)
	mux.HandleFunc("GET /api/reports/top", s.handleTop)
	mux.HandleFunc("GET /api/reports/above-average", s.handleAboveAverage)
	mux.HandleFunc("GET /api/reports/daily", s.handleDaily)
	mux.HandleFunc("GET /api/reports/growth", s.handleGrowth)
	mux.HandleFunc("GET /api/reports/overview", s.handleOverview)
	mux.HandleFunc("GET /api/reports/year-over-year", s.handleYearOverYear)

	mux.HandleFunc("GET /api/budgets", s.handleBudgetStatus)
	mux.HandleFunc("PUT /api/budgets/{categoryId}/{month}", s.handleSetBudget)
	mux.HandleFunc("DELETE /api/budgets/{categoryId}/{month}", s.handleDeleteBudget)
	mux.HandleFunc("GET /api/budgets/{categoryId}/{month}/remaining", s.handleBudgetRemaining)
	mux.HandleFunc("GET /api/budgets/{categoryId}/{month}/exceeded", s.handleBudgetExceeded)

	return mux
}

// handler wraps the mux, outermost first: tracing, security headers, panic
// recovery, fault reporting, rate limiting.
func (s *Server) handler(mux http.Handler) http.Handler {
	h := s.limiter.Middleware(s.ips.ExtractClientIP, s.onRateLimited)(mux)
	h = withSentry(h)
	h = s.recoverer(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	return s.tracer.Middleware(h)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	clientIP := s.ips.ExtractClientIP(r)
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, clientIP,
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)

	retry := s.limiter.RetryAfter(clientIP)
	if retry < time.Second {
		retry = time.Second
	}
	w.Header().Set("Retry-After", itoa(int(retry.Seconds())))
	writeErrorStatus(w, r, http.StatusTooManyRequests, "rate limit exceeded, please try again later", nil)
}

// Shutdown gracefully shuts down the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			writeErrorStatus(w, r, http.StatusServiceUnavailable, "not ready", nil)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
