package jwt

import (
	"testing"
	"time"

	"authsvc/internal/domain/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	accessSecret  = "access-secret"
	refreshSecret = "refresh-secret"
	issuerName    = "authsvc-test"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()

	issuer, err := NewIssuer(Options{
		Issuer:        issuerName,
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
	})
	require.NoError(t, err)

	return issuer
}

func testUser() models.User {
	return models.User{
		ID:    gofakeit.Int64()&0xffffff + 1,
		Email: gofakeit.Email(),
	}
}

func TestIssue_Claims(t *testing.T) {
	issuer := newTestIssuer(t)
	user := testUser()

	issuedAt := time.Now()
	pair, err := issuer.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	const deltaSeconds = 1

	access, err := issuer.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, access.UID)
	assert.Equal(t, user.Email, access.Email)
	assert.Equal(t, TypeAccess, access.Type)
	assert.Equal(t, issuerName, access.Issuer)
	assert.NotEmpty(t, access.ID)
	assert.InDelta(t, issuedAt.Add(DefaultAccessTTL).Unix(), access.ExpiresAt.Unix(), deltaSeconds)

	refresh, err := issuer.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, refresh.UID)
	assert.Equal(t, TypeRefresh, refresh.Type)
	assert.InDelta(t, issuedAt.Add(DefaultRefreshTTL).Unix(), refresh.ExpiresAt.Unix(), deltaSeconds)
}

func TestIssue_DistinctKeys(t *testing.T) {
	issuer := newTestIssuer(t)

	pair, err := issuer.Issue(testUser())
	require.NoError(t, err)

	_, err = jwt.Parse(pair.AccessToken, func(*jwt.Token) (interface{}, error) {
		return []byte(refreshSecret), nil
	})
	require.Error(t, err)

	_, err = jwt.Parse(pair.RefreshToken, func(*jwt.Token) (interface{}, error) {
		return []byte(accessSecret), nil
	})
	require.Error(t, err)

	_, err = issuer.ParseRefresh(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.ParseAccess(pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssue_UniquePerCall(t *testing.T) {
	issuer := newTestIssuer(t)
	user := testUser()

	fixed := time.Now()
	issuer.now = func() time.Time { return fixed }

	first, err := issuer.Issue(user)
	require.NoError(t, err)
	second, err := issuer.Issue(user)
	require.NoError(t, err)

	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
}

func TestParse_Expired(t *testing.T) {
	issuer := newTestIssuer(t)

	past := time.Now().Add(-8 * 24 * time.Hour)
	issuer.now = func() time.Time { return past }

	pair, err := issuer.Issue(testUser())
	require.NoError(t, err)

	issuer.now = time.Now

	_, err = issuer.ParseAccess(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.ParseRefresh(pair.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Rejects(t *testing.T) {
	issuer := newTestIssuer(t)
	user := testUser()

	signed := func(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}

	valid := func(typ string) Claims {
		return Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuerName,
				Subject:   "1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
			UID:   1,
			Email: user.Email,
			Type:  typ,
		}
	}

	tests := []struct {
		name  string
		token string
		parse func(string) (*Claims, error)
	}{
		{
			name:  "garbage",
			token: "not-a-token",
			parse: issuer.ParseRefresh,
		},
		{
			name:  "wrong type under refresh key",
			token: signed(t, jwt.SigningMethodHS256, []byte(refreshSecret), valid(TypeAccess)),
			parse: issuer.ParseRefresh,
		},
		{
			name:  "alg none",
			token: signed(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid(TypeAccess)),
			parse: issuer.ParseAccess,
		},
		{
			name:  "other algorithm",
			token: signed(t, jwt.SigningMethodHS512, []byte(accessSecret), valid(TypeAccess)),
			parse: issuer.ParseAccess,
		},
		{
			name: "missing expiry",
			token: func() string {
				c := valid(TypeAccess)
				c.ExpiresAt = nil
				return signed(t, jwt.SigningMethodHS256, []byte(accessSecret), c)
			}(),
			parse: issuer.ParseAccess,
		},
		{
			name: "foreign issuer",
			token: func() string {
				c := valid(TypeAccess)
				c.Issuer = "someone-else"
				return signed(t, jwt.SigningMethodHS256, []byte(accessSecret), c)
			}(),
			parse: issuer.ParseAccess,
		},
		{
			name: "subject does not match uid",
			token: func() string {
				c := valid(TypeAccess)
				c.Subject = "2"
				return signed(t, jwt.SigningMethodHS256, []byte(accessSecret), c)
			}(),
			parse: issuer.ParseAccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parse(tt.token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewIssuer_Secrets(t *testing.T) {
	_, err := NewIssuer(Options{AccessSecret: "same", RefreshSecret: "same"})
	require.ErrorIs(t, err, ErrSharedSecret)

	_, err = NewIssuer(Options{AccessSecret: "", RefreshSecret: "refresh"})
	require.ErrorIs(t, err, ErrEmptySecret)

	_, err = NewIssuer(Options{AccessSecret: "access", RefreshSecret: ""})
	require.ErrorIs(t, err, ErrEmptySecret)
}
