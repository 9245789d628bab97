package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"cashstash/internal/auth"
	"cashstash/internal/core"
	"cashstash/internal/feed"
	applog "cashstash/internal/log"
	"cashstash/internal/middleware/ratelimit"
	"cashstash/internal/middleware/security"
	"cashstash/internal/middleware/trace"
	"cashstash/internal/services"
)

// Ledger is the subset of services.TransactionService the API serves.
type Ledger interface {
	Add(ctx context.Context, sess *auth.Session, in services.AddInput) (services.AddResult, error)
	Update(ctx context.Context, sess *auth.Session, id string, in services.UpdateInput) (core.Transaction, error)
	Delete(ctx context.Context, sess *auth.Session, id string) error
	List(ctx context.Context, sess *auth.Session, p services.Page) (services.PageResult, error)
	Summary(ctx context.Context, sess *auth.Session) (services.Summary, error)
	Stats(ctx context.Context, sess *auth.Session) (core.Stats, error)
	Balance(ctx context.Context, sess *auth.Session) (float64, error)
}

// Identity is the subset of auth.Service the API serves.
type Identity interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*auth.Session, error)
	UpdateProfile(ctx context.Context, sess *auth.Session, name string) (*auth.Session, error)
}

// FeedSource opens live subscriptions for the websocket endpoint.
type FeedSource interface {
	Subscribe(ctx context.Context, sess *auth.Session, fn func(core.Snapshot)) (*feed.Subscription, error)
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type Deps struct {
	Ledger   Ledger
	Identity Identity
	Feed     FeedSource
	Ready    []ReadinessCheck
}

type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	Logger         *applog.Logger
}

type Server struct {
	http.Server
	deps     Deps
	logger   *applog.Logger
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector

	// live websocket connections, closed on shutdown
	connsMu sync.Mutex
	conns   map[*feedConn]struct{}

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware into a ready-to-run http.Server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		deps:     deps,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerSecond: opts.RateLimitRPS, Burst: opts.RateLimitBurst}),
		tracer:   trace.NewMiddleware(),
		detector: security.NewDetector(logger),
		conns:    make(map[*feedConn]struct{}),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusTooManyRequests, msgRateLimited, nil)
	}))

	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/categories", s.handleCategories).Methods(http.MethodGet)
	// The feed authenticates itself: browsers cannot set headers on upgrades.
	api.HandleFunc("/feed", s.handleFeed).Methods(http.MethodGet)

	private := api.NewRoute().Subrouter()
	private.Use(s.requireSession)
	private.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	private.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	private.HandleFunc("/me", s.handleUpdateProfile).Methods(http.MethodPatch)
	private.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	private.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	private.HandleFunc("/transactions/{id}", s.handleUpdateTransaction).Methods(http.MethodPatch)
	private.HandleFunc("/transactions/{id}", s.handleDeleteTransaction).Methods(http.MethodDelete)
	private.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	private.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	private.HandleFunc("/balance", s.handleBalance).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, msgNotFound, nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed), nil)
	})

	// Applied outside the router so unmatched requests are traced too.
	return chain(r,
		s.tracer.Middleware,
		applog.Middleware(s.logger),
		applog.RequestIDMiddleware(trace.FromRequest),
		applog.AccessLog,
		s.detector.Middleware,
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
	)
}

// chain wraps h so the first middleware runs outermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Shutdown stops accepting requests, closes live feeds and releases the
// rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.closeFeeds()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, check := range s.deps.Ready {
		if err := check(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
