package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"authsvc/internal/domain/models"
	"authsvc/internal/lib/hasher"
	"authsvc/internal/lib/logger/sl"
	"authsvc/internal/storage"
)

type Auth struct {
	logger        *slog.Logger
	userSaver     UserSaver
	userProvider  UserProvider
	refreshStore  RefreshHashStore
	passHasher    Hasher
	refreshHasher Hasher
	issuer        TokenIssuer
}

type UserSaver interface {
	SaveUser(
		ctx context.Context,
		email string,
		passHash []byte,
	) (uid int64, err error)
}

type UserProvider interface {
	User(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, userID int64) (models.User, error)
}

// RefreshHashStore writes the per-user refresh hash. SwapRefreshHash must
// be a single atomic compare-and-set; nil stands for "no session".
type RefreshHashStore interface {
	SwapRefreshHash(ctx context.Context, userID int64, expected, next []byte) error
	ClearRefreshHash(ctx context.Context, userID int64) error
}

type Hasher interface {
	Hash(secret string) ([]byte, error)
	Verify(secret string, hash []byte) bool
}

type TokenIssuer interface {
	Issue(user models.User) (models.TokenPair, error)
}

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrAccessDenied      = errors.New("access denied")
	ErrInvalidInput      = errors.New("invalid input")
	ErrStorage           = errors.New("storage failure")
	ErrInternal          = errors.New("internal error")
)

// New returns a new instance of the Auth service.
func New(
	logger *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	refreshStore RefreshHashStore,
	passHasher Hasher,
	refreshHasher Hasher,
	issuer TokenIssuer,
) *Auth {
	return &Auth{
		logger:        logger,
		userSaver:     userSaver,
		userProvider:  userProvider,
		refreshStore:  refreshStore,
		passHasher:    passHasher,
		refreshHasher: refreshHasher,
		issuer:        issuer,
	}
}

// Signup registers a new user and opens their first session.
func (a *Auth) Signup(ctx context.Context, email, password string) (models.TokenPair, error) {
	const op = "auth.Signup"

	email = NormalizeEmail(email)
	log := a.logger.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	log.Info("signup request")

	if email == "" || password == "" {
		log.Warn("empty credentials")
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	passHash, err := a.passHasher.Hash(password)
	if err != nil {
		if errors.Is(err, hasher.ErrEmptySecret) || errors.Is(err, hasher.ErrSecretTooLong) {
			log.Warn("password rejected by hasher", sl.Err(err))
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidInput)
		}
		log.Error("failed to generate password hash", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	userID, err := a.userSaver.SaveUser(ctx, email, passHash)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists", sl.Err(err))
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrUserAlreadyExists)
		}
		log.Error("failed to save user", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrStorage)
	}

	log = log.With(slog.Int64("userID", userID))

	pair, err := a.rotate(ctx, log, models.User{ID: userID, Email: email}, nil)
	if err != nil {
		// The CAS from NULL can only miss if something raced on a row that
		// was created a moment ago; treat it like any other store failure.
		if errors.Is(err, ErrAccessDenied) {
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrStorage)
		}
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user signed up")

	return pair, nil
}

// Signin checks credentials and replaces whatever session the user had.
func (a *Auth) Signin(ctx context.Context, email, password string) (models.TokenPair, error) {
	const op = "auth.Signin"

	email = NormalizeEmail(email)
	log := a.logger.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	log.Info("signin request")

	if email == "" || password == "" {
		log.Warn("empty credentials")
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	user, err := a.userProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found", sl.Err(err))
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrAccessDenied)
		}
		log.Error("failed to get user", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrStorage)
	}

	log = log.With(slog.Int64("userID", user.ID))

	if !a.passHasher.Verify(password, user.PassHash) {
		log.Warn("invalid password")
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrAccessDenied)
	}

	pair, err := a.rotate(ctx, log, user, user.RefreshHash)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user signed in")

	return pair, nil
}

// Refresh exchanges the current refresh token for a new pair. The presented
// token stops working once this returns successfully.
func (a *Auth) Refresh(ctx context.Context, userID int64, refreshToken string) (models.TokenPair, error) {
	const op = "auth.Refresh"

	log := a.logger.With(
		slog.String("op", op),
		slog.Int64("userID", userID),
	)
	log.Info("refresh request")

	if refreshToken == "" {
		log.Warn("empty refresh token")
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrAccessDenied)
	}

	user, err := a.userProvider.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found", sl.Err(err))
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrAccessDenied)
		}
		log.Error("failed to get user", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrStorage)
	}

	if !user.HasSession() {
		log.Warn("no active session")
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrAccessDenied)
	}

	if !a.refreshHasher.Verify(refreshToken, user.RefreshHash) {
		log.Warn("refresh token does not match current session")
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrAccessDenied)
	}

	pair, err := a.rotate(ctx, log, user, user.RefreshHash)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("tokens refreshed")

	return pair, nil
}

// Logout ends the user's session. Calling it without a session, or for an
// unknown user, is a no-op.
func (a *Auth) Logout(ctx context.Context, userID int64) error {
	const op = "auth.Logout"

	log := a.logger.With(
		slog.String("op", op),
		slog.Int64("userID", userID),
	)
	log.Info("logout request")

	if err := a.refreshStore.ClearRefreshHash(ctx, userID); err != nil {
		log.Error("failed to clear refresh hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, ErrStorage)
	}

	log.Info("user logged out")

	return nil
}

// rotate issues a pair for user and stores the hash of its refresh token,
// provided the stored hash still equals expected.
func (a *Auth) rotate(
	ctx context.Context,
	log *slog.Logger,
	user models.User,
	expected []byte,
) (models.TokenPair, error) {
	pair, err := a.issuer.Issue(user)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return models.TokenPair{}, ErrInternal
	}

	refreshHash, err := a.refreshHasher.Hash(pair.RefreshToken)
	if err != nil {
		log.Error("failed to hash refresh token", sl.Err(err))
		return models.TokenPair{}, ErrInternal
	}

	err = a.refreshStore.SwapRefreshHash(ctx, user.ID, expected, refreshHash)
	if err != nil {
		if errors.Is(err, storage.ErrRefreshHashMismatch) || errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("session changed concurrently", sl.Err(err))
			return models.TokenPair{}, ErrAccessDenied
		}
		log.Error("failed to store refresh hash", sl.Err(err))
		return models.TokenPair{}, ErrStorage
	}

	return pair, nil
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
