// Package tokenauth guards routes with a bearer JWT. The parser decides which
// token kind is accepted, so the same middleware serves both the access and
// the refresh guard.
package tokenauth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"authsvc/internal/http/response"
	"authsvc/internal/lib/jwt"
	"authsvc/internal/lib/logger/sl"
)

type ctxKey int

const (
	uidKey ctxKey = iota
	tokenKey
)

// Parser validates a raw token and returns its claims, e.g. Issuer.ParseAccess.
type Parser func(token string) (*jwt.Claims, error)

func New(log *slog.Logger, parse Parser) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		log := log.With(slog.String("component", "middleware/tokenauth"))

		fn := func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			if !ok {
				log.Debug("missing bearer token", slog.String("path", r.URL.Path))
				response.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := parse(raw)
			if err != nil {
				log.Debug("rejected bearer token", slog.String("path", r.URL.Path), sl.Err(err))
				response.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), uidKey, claims.UID)
			ctx = context.WithValue(ctx, tokenKey, raw)

			next.ServeHTTP(w, r.WithContext(ctx))
		}

		return http.HandlerFunc(fn)
	}
}

// UID returns the user id of the verified token.
func UID(ctx context.Context) (int64, bool) {
	uid, ok := ctx.Value(uidKey).(int64)
	return uid, ok
}

// Token returns the verified raw token.
func Token(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok
}

func bearer(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	return token, true
}
