package tokenauth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"authsvc/internal/lib/jwt"
	"authsvc/internal/lib/logger/handlers/slogdiscard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parser(token string) (*jwt.Claims, error) {
	if token != "good" {
		return nil, jwt.ErrInvalidToken
	}
	return &jwt.Claims{UID: 42}, nil
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{name: "valid", header: "Bearer good", wantCode: http.StatusOK},
		{name: "lower-case scheme", header: "bearer good", wantCode: http.StatusOK},
		{name: "missing header", header: "", wantCode: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", wantCode: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", wantCode: http.StatusUnauthorized},
		{name: "rejected token", header: "Bearer bad", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				gotUID   int64
				gotToken string
			)
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var ok bool
				gotUID, ok = UID(r.Context())
				require.True(t, ok)
				gotToken, ok = Token(r.Context())
				require.True(t, ok)
				w.WriteHeader(http.StatusOK)
			})

			h := New(slogdiscard.NewDiscardLogger(), parser)(next)

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, int64(42), gotUID)
				assert.Equal(t, "good", gotToken)
			} else {
				assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
			}
		})
	}
}

func TestContextWithoutGuard(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := UID(req.Context())
	assert.False(t, ok)

	_, ok = Token(req.Context())
	assert.False(t, ok)
}
