// Package http serves the expense ledger JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"kharcha/internal/auth"
	"kharcha/internal/core"
	"kharcha/internal/log"
	"kharcha/internal/report"
	"kharcha/internal/services"
)

// ExpenseService is the reconciliation service consumed by the handlers.
type ExpenseService interface {
	List(ctx context.Context) services.Listing
	Add(ctx context.Context, in core.NewExpense) (core.Expense, error)
	Delete(ctx context.Context, id string) error
}

// ReportGenerator renders month summaries and exports.
type ReportGenerator interface {
	Months(ctx context.Context) ([]core.MonthSummary, error)
	Full(ctx context.Context, format report.Format) (*report.File, error)
	Monthly(ctx context.Context, year, month int, format report.Format) (*report.File, error)
}

// Authenticator checks login credentials.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.Session, error)
}

// Options configures NewServer.
type Options struct {
	Addr              string
	Expenses          ExpenseService
	Reports           ReportGenerator
	Auth              Authenticator
	Logger            *log.Logger
	CORSAllowedOrigin string
	RateLimitPerMin   int
}

type Server struct {
	http.Server
	expenses    ExpenseService
	reports     ReportGenerator
	auth        Authenticator
	logger      *log.Logger
	httpLog     *log.StructuredLogger
	corsOrigin  string
	rateLimiter *rateLimiter
	metrics     *securityMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	origin := opts.CORSAllowedOrigin
	if origin == "" {
		origin = "*"
	}

	s := &Server{
		expenses:    opts.Expenses,
		reports:     opts.Reports,
		auth:        opts.Auth,
		logger:      logger,
		httpLog:     log.NewStructuredLogger(logger),
		corsOrigin:  origin,
		rateLimiter: newRateLimiter(opts.RateLimitPerMin),
		metrics:     &securityMetrics{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/add-expense", s.handleAddExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("GET /api/download/all", s.handleDownloadAll)
	mux.HandleFunc("GET /api/download/monthly/{year}/{month}", s.handleDownloadMonthly)
	mux.HandleFunc("GET /api/months", s.handleMonths)
	mux.HandleFunc("GET /api/health", handleHealth)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.withMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
