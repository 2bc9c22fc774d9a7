package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"authsvc/internal/lib/hasher"
	"authsvc/internal/storage"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"local"`
	Storage StorageConfig `yaml:"storage"`
	HTTP    HTTPConfig    `yaml:"http"`
	JWT     JWTConfig     `yaml:"jwt"`
	Hasher  HasherConfig  `yaml:"hasher"`
}

type StorageConfig struct {
	// Driver is one of sqlite, postgres, mongodb, redis, memory.
	Driver      string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"sqlite"`
	Path        string `yaml:"path" env:"STORAGE_PATH" env-default:"./storage/authsvc.db"`
	DSN         string `yaml:"dsn" env:"STORAGE_DSN"`
	Database    string `yaml:"database" env:"STORAGE_DATABASE" env-default:"authsvc"`
	RedisPrefix string `yaml:"redis_prefix" env:"STORAGE_REDIS_PREFIX" env-default:"authsvc"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"STORAGE_AUTO_MIGRATE" env-default:"false"`
}

type HTTPConfig struct {
	Address        string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env-default:"5s"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env-default:"10s"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RequestTimeout time.Duration `yaml:"request_timeout" env-default:"5s"`

	// CredentialRateLimit caps signup/signin requests per client IP per
	// minute. Zero disables the limit.
	CredentialRateLimit int      `yaml:"credential_rate_limit" env:"HTTP_CREDENTIAL_RATE_LIMIT" env-default:"20"`
	AllowedOrigins      []string `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS" env-separator:","`
}

// JWTConfig holds two separate key slots; one key never signs both kinds.
type JWTConfig struct {
	Issuer        string        `yaml:"issuer" env:"JWT_ISSUER" env-default:"authsvc"`
	AccessSecret  string        `yaml:"access_secret" env:"JWT_ACCESS_SECRET" env-required:"true"`
	RefreshSecret string        `yaml:"refresh_secret" env:"JWT_REFRESH_SECRET" env-required:"true"`
	AccessTTL     time.Duration `yaml:"access_ttl" env:"JWT_ACCESS_TTL" env-default:"15m"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" env:"JWT_REFRESH_TTL" env-default:"168h"`
}

type HasherConfig struct {
	Password HashAlgoConfig `yaml:"password" env-prefix:"HASHER_PASSWORD_"`
	Refresh  HashAlgoConfig `yaml:"refresh" env-prefix:"HASHER_REFRESH_"`
}

// HashAlgoConfig tunes one hashing slot. Memory is in KiB.
type HashAlgoConfig struct {
	Algorithm     string `yaml:"algorithm" env:"ALGORITHM"`
	BcryptCost    int    `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
	Argon2Memory  uint32 `yaml:"argon2_memory" env:"ARGON2_MEMORY" env-default:"65536"`
	Argon2Time    uint32 `yaml:"argon2_time" env:"ARGON2_TIME" env-default:"1"`
	Argon2Threads uint8  `yaml:"argon2_threads" env:"ARGON2_THREADS" env-default:"2"`
}

var (
	errSharedSecret   = errors.New("jwt.access_secret and jwt.refresh_secret must differ")
	errUnknownDriver  = errors.New("unknown storage driver")
	errUnknownAlgo    = errors.New("unknown hasher algorithm")
	errNonPositiveTTL = errors.New("token ttl must be positive")
)

// MustLoad reads the config from the -config flag or CONFIG_PATH and panics
// on any problem.
func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return MustLoadPath(path)
}

func MustLoadPath(path string) *Config {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file not found: " + path)
	}

	cfg, err := Load(path)
	if err != nil {
		panic("failed to read config: " + err.Error())
	}

	return cfg
}

// Load reads and validates the config file at path, with environment
// variables taking precedence over file values.
func Load(path string) (*Config, error) {
	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}

	cfg.applyHasherDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyHasherDefaults() {
	if c.Hasher.Password.Algorithm == "" {
		c.Hasher.Password.Algorithm = hasher.AlgorithmBcrypt
	}
	if c.Hasher.Refresh.Algorithm == "" {
		c.Hasher.Refresh.Algorithm = hasher.AlgorithmArgon2id
	}
}

func (c *Config) Validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown env %q", c.Env)
	}

	switch c.Storage.Driver {
	case storage.DriverSQLite, storage.DriverMemory:
	case storage.DriverPostgres, storage.DriverMongoDB, storage.DriverRedis:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownDriver, c.Storage.Driver)
	}

	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return errors.New("jwt.access_secret and jwt.refresh_secret are required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errSharedSecret
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errNonPositiveTTL
	}

	if c.HTTP.CredentialRateLimit < 0 {
		return errors.New("http.credential_rate_limit must not be negative")
	}

	for slot, h := range map[string]HashAlgoConfig{"password": c.Hasher.Password, "refresh": c.Hasher.Refresh} {
		switch h.Algorithm {
		case hasher.AlgorithmBcrypt, hasher.AlgorithmArgon2id:
		default:
			return fmt.Errorf("hasher.%s: %w: %q", slot, errUnknownAlgo, h.Algorithm)
		}
	}

	return nil
}

// fetchConfigPath fetches config path from command line flag or environment variable.
// Priority: flag > env > default.
// Default value is empty string.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
