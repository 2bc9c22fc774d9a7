package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"authsvc/internal/domain/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"

	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrSharedSecret = errors.New("access and refresh secrets must differ")
	ErrEmptySecret  = errors.New("signing secret is empty")
)

// Claims carried by both token kinds. Type keeps one kind from being
// accepted where the other is expected.
type Claims struct {
	jwt.RegisteredClaims
	UID   int64  `json:"uid"`
	Email string `json:"email"`
	Type  string `json:"typ"`
}

type Options struct {
	Issuer        string
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Issuer mints and parses access/refresh token pairs. It keeps no state
// besides its keys and is safe for concurrent use.
type Issuer struct {
	issuer        string
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewIssuer(opts Options) (*Issuer, error) {
	const op = "jwt.NewIssuer"

	if opts.AccessSecret == "" || opts.RefreshSecret == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptySecret)
	}
	if opts.AccessSecret == opts.RefreshSecret {
		return nil, fmt.Errorf("%s: %w", op, ErrSharedSecret)
	}

	if opts.AccessTTL <= 0 {
		opts.AccessTTL = DefaultAccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = DefaultRefreshTTL
	}

	return &Issuer{
		issuer:        opts.Issuer,
		accessSecret:  []byte(opts.AccessSecret),
		refreshSecret: []byte(opts.RefreshSecret),
		accessTTL:     opts.AccessTTL,
		refreshTTL:    opts.RefreshTTL,
		now:           time.Now,
	}, nil
}

// Issue creates a new access/refresh pair for the user.
func (i *Issuer) Issue(user models.User) (models.TokenPair, error) {
	const op = "jwt.Issue"

	access, err := i.sign(user, TypeAccess, i.accessSecret, i.accessTTL)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: access: %w", op, err)
	}

	refresh, err := i.sign(user, TypeRefresh, i.refreshSecret, i.refreshTTL)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: refresh: %w", op, err)
	}

	return models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// ParseAccess validates an access token and returns its claims.
func (i *Issuer) ParseAccess(tokenString string) (*Claims, error) {
	return i.parse(tokenString, TypeAccess, i.accessSecret)
}

// ParseRefresh validates a refresh token and returns its claims.
func (i *Issuer) ParseRefresh(tokenString string) (*Claims, error) {
	return i.parse(tokenString, TypeRefresh, i.refreshSecret)
}

func (i *Issuer) sign(user models.User, typ string, secret []byte, ttl time.Duration) (string, error) {
	now := i.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:   user.ID,
		Email: user.Email,
		Type:  typ,
	})

	return token.SignedString(secret)
}

func (i *Issuer) parse(tokenString, typ string, secret []byte) (*Claims, error) {
	const op = "jwt.Parse"

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	if !token.Valid || claims.Type != typ {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if claims.Subject != strconv.FormatInt(claims.UID, 10) {
		return nil, fmt.Errorf("%s: %w: subject mismatch", op, ErrInvalidToken)
	}

	return claims, nil
}
