package app

import (
	"context"
	"fmt"
	"log/slog"

	httpapp "authsvc/internal/app/http"
	"authsvc/internal/config"
	"authsvc/internal/lib/hasher"
	"authsvc/internal/lib/jwt"
	"authsvc/internal/metrics"
	"authsvc/internal/services/auth"
	"authsvc/internal/storage"
	"authsvc/internal/storage/memory"
	"authsvc/internal/storage/migrator"
	"authsvc/internal/storage/mongodb"
	"authsvc/internal/storage/postgres"
	"authsvc/internal/storage/redis"
	"authsvc/internal/storage/sqlite"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type App struct {
	HTTPSrv *httpapp.App

	closeStorage func(ctx context.Context) error
}

// userStore is what every storage backend provides.
type userStore interface {
	auth.UserSaver
	auth.UserProvider
	auth.RefreshHashStore
}

func New(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*App, error) {
	const op = "app.New"

	passHasher, err := hasher.New(hasherOptions(cfg.Hasher.Password, false))
	if err != nil {
		return nil, fmt.Errorf("%s: password hasher: %w", op, err)
	}

	// Refresh tokens are JWTs, well past bcrypt's 72-byte input limit.
	refreshHasher, err := hasher.New(hasherOptions(cfg.Hasher.Refresh, true))
	if err != nil {
		return nil, fmt.Errorf("%s: refresh hasher: %w", op, err)
	}

	issuer, err := jwt.NewIssuer(jwt.Options{
		Issuer:        cfg.JWT.Issuer,
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	store, closeStorage, err := openStorage(ctx, logger, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	authService := auth.New(logger, store, store, store, passHasher, refreshHasher, issuer)

	httpApp := httpapp.New(logger, authService, issuer, m, registry, httpapp.Options{
		Address:             cfg.HTTP.Address,
		ReadTimeout:         cfg.HTTP.ReadTimeout,
		WriteTimeout:        cfg.HTTP.WriteTimeout,
		IdleTimeout:         cfg.HTTP.IdleTimeout,
		RequestTimeout:      cfg.HTTP.RequestTimeout,
		CredentialRateLimit: cfg.HTTP.CredentialRateLimit,
		AllowedOrigins:      cfg.HTTP.AllowedOrigins,
	})

	return &App{
		HTTPSrv:      httpApp,
		closeStorage: closeStorage,
	}, nil
}

// Close releases the storage connection.
func (a *App) Close(ctx context.Context) error {
	return a.closeStorage(ctx)
}

func openStorage(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.StorageConfig,
) (userStore, func(context.Context) error, error) {
	const op = "app.openStorage"

	log := logger.With(
		slog.String("op", op),
		slog.String("driver", cfg.Driver),
	)

	if cfg.AutoMigrate {
		if err := autoMigrate(log, cfg); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	switch cfg.Driver {
	case storage.DriverSQLite:
		s, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, func(context.Context) error { return s.Close() }, nil
	case storage.DriverPostgres:
		s, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, func(context.Context) error { return s.Close() }, nil
	case storage.DriverMongoDB:
		s, err := mongodb.New(ctx, cfg.DSN, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, s.Close, nil
	case storage.DriverRedis:
		s, err := redis.New(ctx, cfg.DSN, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, func(context.Context) error { return s.Close() }, nil
	case storage.DriverMemory:
		log.Warn("memory storage selected, users are lost on restart")
		return memory.New(), func(context.Context) error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%s: unknown driver %q", op, cfg.Driver)
	}
}

// autoMigrate applies SQL migrations for the drivers that have them.
func autoMigrate(log *slog.Logger, cfg config.StorageConfig) error {
	var dsn string
	switch cfg.Driver {
	case storage.DriverSQLite:
		dsn = cfg.Path
	case storage.DriverPostgres:
		dsn = cfg.DSN
	default:
		return nil
	}

	applied, err := migrator.Up(cfg.Driver, dsn)
	if err != nil {
		return err
	}

	if applied {
		log.Info("migrations applied")
	} else {
		log.Debug("schema is up to date")
	}

	return nil
}

func hasherOptions(c config.HashAlgoConfig, prehash bool) hasher.Options {
	return hasher.Options{
		Algorithm:  c.Algorithm,
		BcryptCost: c.BcryptCost,
		Argon2: hasher.Argon2Params{
			Memory:     c.Argon2Memory,
			Time:       c.Argon2Time,
			Threads:    c.Argon2Threads,
			SaltLength: 16,
			KeyLength:  32,
		},
		Prehash: prehash,
	}
}
