package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"authsvc/internal/domain/models"
	"authsvc/internal/http/middleware/tokenauth"
	"authsvc/internal/http/response"
	"authsvc/internal/lib/logger/sl"
	"authsvc/internal/metrics"
	"authsvc/internal/services/auth"

	"github.com/go-chi/chi/v5"
)

const (
	maxBodyBytes    = 1 << 12
	maxEmailLen     = 254
	maxPasswordLen  = 1024
	msgAccessDenied = "Access Denied"
	msgInternal     = "internal error"
)

type Auth interface {
	Signup(
		ctx context.Context,
		email string,
		password string,
	) (models.TokenPair, error)
	Signin(
		ctx context.Context,
		email string,
		password string,
	) (models.TokenPair, error)
	Refresh(
		ctx context.Context,
		userID int64,
		refreshToken string,
	) (models.TokenPair, error)
	Logout(
		ctx context.Context,
		userID int64,
	) error
}

// Guards are the bearer-token middlewares protecting the session routes.
type Guards struct {
	Access  func(http.Handler) http.Handler
	Refresh func(http.Handler) http.Handler
}

// CredentialLimit wraps the signup and signin routes, typically a rate
// limiter. Nil leaves them unwrapped.
type CredentialLimit func(http.Handler) http.Handler

type serverAPI struct {
	log     *slog.Logger
	auth    Auth
	metrics *metrics.Metrics
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Register(
	router chi.Router,
	log *slog.Logger,
	authService Auth,
	m *metrics.Metrics,
	guards Guards,
	limit CredentialLimit,
) {
	s := &serverAPI{
		log:     log.With(slog.String("component", "http/auth")),
		auth:    authService,
		metrics: m,
	}

	router.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if limit != nil {
				r.Use(limit)
			}
			r.Post("/local/signup", s.Signup)
			r.Post("/local/signin", s.Signin)
		})

		r.With(guards.Refresh).Post("/refresh", s.Refresh)
		r.With(guards.Access).Post("/logout", s.Logout)
	})
}

func (s *serverAPI) Signup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, ok := s.decodeCredentials(w, r)
	if !ok {
		s.metrics.Observe(metrics.OpSignup, metrics.OutcomeInvalid, time.Since(start))
		return
	}

	pair, err := s.auth.Signup(r.Context(), req.Email, req.Password)
	s.metrics.Observe(metrics.OpSignup, outcome(err), time.Since(start))
	if err != nil {
		s.respondError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, pair)
}

func (s *serverAPI) Signin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, ok := s.decodeCredentials(w, r)
	if !ok {
		s.metrics.Observe(metrics.OpSignin, metrics.OutcomeInvalid, time.Since(start))
		return
	}

	pair, err := s.auth.Signin(r.Context(), req.Email, req.Password)
	s.metrics.Observe(metrics.OpSignin, outcome(err), time.Since(start))
	if err != nil {
		s.respondError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, pair)
}

func (s *serverAPI) Refresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	uid, okUID := tokenauth.UID(r.Context())
	token, okToken := tokenauth.Token(r.Context())
	if !okUID || !okToken {
		s.metrics.Observe(metrics.OpRefresh, metrics.OutcomeDenied, time.Since(start))
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	pair, err := s.auth.Refresh(r.Context(), uid, token)
	s.metrics.Observe(metrics.OpRefresh, outcome(err), time.Since(start))
	if err != nil {
		s.respondError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, pair)
}

func (s *serverAPI) Logout(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	uid, ok := tokenauth.UID(r.Context())
	if !ok {
		s.metrics.Observe(metrics.OpLogout, metrics.OutcomeDenied, time.Since(start))
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	err := s.auth.Logout(r.Context(), uid)
	s.metrics.Observe(metrics.OpLogout, outcome(err), time.Since(start))
	if err != nil {
		s.respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *serverAPI) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}

	if msg := validateCredentials(req); msg != "" {
		response.Error(w, http.StatusBadRequest, msg)
		return req, false
	}

	return req, true
}

func validateCredentials(req credentialsRequest) string {
	switch {
	case req.Email == "":
		return "email is required"
	case len(req.Email) > maxEmailLen:
		return "email is too long"
	case req.Password == "":
		return "password is required"
	case len(req.Password) > maxPasswordLen:
		return "password is too long"
	}

	// Display-name forms such as "Bob <bob@x.io>" are rejected.
	addr, err := mail.ParseAddress(req.Email)
	if err != nil || addr.Address != strings.TrimSpace(req.Email) {
		return "email is invalid"
	}

	return ""
}

func (s *serverAPI) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		response.Error(w, http.StatusBadRequest, "invalid credentials format")
	case errors.Is(err, auth.ErrUserAlreadyExists):
		response.Error(w, http.StatusConflict, "user already exists")
	case errors.Is(err, auth.ErrAccessDenied):
		response.Error(w, http.StatusForbidden, msgAccessDenied)
	default:
		s.log.Error("request failed", sl.Err(err))
		response.Error(w, http.StatusInternalServerError, msgInternal)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, auth.ErrAccessDenied):
		return metrics.OutcomeDenied
	case errors.Is(err, auth.ErrUserAlreadyExists):
		return metrics.OutcomeConflict
	case errors.Is(err, auth.ErrInvalidInput):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}
