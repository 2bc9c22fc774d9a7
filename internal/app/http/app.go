package httpapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	authhttp "authsvc/internal/http/auth"
	mwlogger "authsvc/internal/http/middleware/logger"
	"authsvc/internal/http/middleware/tokenauth"
	"authsvc/internal/lib/jwt"
	"authsvc/internal/lib/logger/sl"
	"authsvc/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type TokenParser interface {
	ParseAccess(token string) (*jwt.Claims, error)
	ParseRefresh(token string) (*jwt.Claims, error)
}

type Options struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	// CredentialRateLimit is requests per minute per client IP on signup and
	// signin. Zero disables it.
	CredentialRateLimit int
	AllowedOrigins      []string
}

type App struct {
	logger  *slog.Logger
	server  *http.Server
	handler http.Handler
	address string
}

func New(
	logger *slog.Logger,
	authService authhttp.Auth,
	tokens TokenParser,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	opts Options,
) *App {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mwlogger.New(logger))
	router.Use(middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         int((10 * time.Minute).Seconds()),
		}))
	}

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	var limit authhttp.CredentialLimit
	if opts.CredentialRateLimit > 0 {
		limit = httprate.LimitByIP(opts.CredentialRateLimit, time.Minute)
	}

	router.Group(func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(opts.RequestTimeout))
		}

		authhttp.Register(r, logger, authService, m, authhttp.Guards{
			Access:  tokenauth.New(logger, tokens.ParseAccess),
			Refresh: tokenauth.New(logger, tokens.ParseRefresh),
		}, limit)
	})

	return &App{
		logger:  logger,
		handler: router,
		address: opts.Address,
		server: &http.Server{
			Addr:         opts.Address,
			Handler:      router,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
			IdleTimeout:  opts.IdleTimeout,
		},
	}
}

// Handler exposes the router, mainly for httptest.
func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

func (a *App) Run() error {
	const op = "httpapp.Run"

	log := a.logger.With(
		slog.String("op", op),
		slog.String("address", a.address),
	)

	listener, err := net.Listen("tcp", a.address)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("http server is running", slog.String("address", listener.Addr().String()))

	if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Stop waits for in-flight requests until ctx is done.
func (a *App) Stop(ctx context.Context) {
	const op = "httpapp.Stop"

	log := a.logger.With(slog.String("op", op))
	log.Info("stopping http server", slog.String("address", a.address))

	if err := a.server.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", sl.Err(err))
		_ = a.server.Close()
	}
}
