package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	JWTSecret string `env:"JWT_SECRET"`

	// TokenTTL bounds session token validity. The default of 168h (7 days)
	// is part of the external contract and must not change silently.
	TokenTTL time.Duration `env:"TOKEN_TTL, default=168h"`

	Lockout LockoutConfig
	NoShow  NoShowConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

// LockoutConfig holds the brute-force throttling parameters. Defaults must
// stay at 5 attempts / 15 minutes for compatibility.
type LockoutConfig struct {
	Threshold int           `env:"LOCKOUT_THRESHOLD, default=5"`
	Cooldown  time.Duration `env:"LOCKOUT_COOLDOWN,  default=15m"`
}

// NoShowConfig controls the background sweep that marks unattended
// appointments.
type NoShowConfig struct {
	// Grace is how long after the start time an appointment may stay
	// SCHEDULED/CONFIRMED before the sweep marks it NO_SHOW.
	Grace time.Duration `env:"NOSHOW_GRACE, default=2h"`
	Cron  string        `env:"NOSHOW_CRON,  default=*/10 * * * *"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=sgs_clinic"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
