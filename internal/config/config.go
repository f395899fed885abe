// Package config builds the runtime configuration from three layers, later
// ones winning:
//
//  1. an optional .env file,
//  2. an optional YAML file (conf/config.yaml by default),
//  3. DIR_ environment variables, where "__" marks nesting
//     (DIR_DB__ADDR -> db.addr).
//
// Anything left unset keeps the value from Default.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"casinodir/internal/ratelimiter"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
)

const (
	EnvPrefix   = "DIR_"
	DefaultFile = "conf/config.yaml"
)

type HTTP struct {
	Addr           string   `koanf:"addr" validate:"required"`
	ExternalURL    string   `koanf:"external_url"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type DB struct {
	Addr          string `koanf:"addr" validate:"required"`
	MaxConns      int32  `koanf:"max_conns" validate:"gte=1"`
	MaxIdleTime   string `koanf:"max_idle_time" validate:"required"`
	MigrateOnBoot bool   `koanf:"migrate_on_boot"`
}

type Basic struct {
	User string `koanf:"user"`
	Pass string `koanf:"pass"`
}

// Token describes the access tokens issued by the hosted auth service.
type Token struct {
	Secret   string `koanf:"secret"`
	Audience string `koanf:"audience"`
	Issuer   string `koanf:"issuer"`
}

type Auth struct {
	Basic Basic `koanf:"basic"`
	Token Token `koanf:"token"`
}

// Maintenance guards the seed/make-admin/backfill endpoints. An empty
// token leaves them answering 500.
type Maintenance struct {
	Token string `koanf:"token"`
}

type Cloudinary struct {
	URL    string `koanf:"url"`
	Folder string `koanf:"folder"`
}

type Log struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	Dir   string `koanf:"dir"`
}

type Config struct {
	Env              string             `koanf:"env" validate:"required"`
	HTTP             HTTP               `koanf:"http"`
	DB               DB                 `koanf:"db"`
	Auth             Auth               `koanf:"auth"`
	Maintenance      Maintenance        `koanf:"maintenance"`
	Cloudinary       Cloudinary         `koanf:"cloudinary"`
	RateLimiter      ratelimiter.Config `koanf:"rate_limiter"`
	Log              Log                `koanf:"log"`
	DashboardTimeout time.Duration      `koanf:"dashboard_timeout" validate:"gt=0"`
}

func Default() Config {
	return Config{
		Env: "development",
		HTTP: HTTP{
			Addr:           ":8080",
			ExternalURL:    "localhost:8080",
			AllowedOrigins: []string{"https://*", "http://*"},
		},
		DB: DB{
			MaxConns:    20,
			MaxIdleTime: "15m",
		},
		Auth: Auth{
			Token: Token{Audience: "authenticated"},
		},
		Cloudinary: Cloudinary{Folder: "casino-logos"},
		RateLimiter: ratelimiter.Config{
			RequestsPerTimeFrame: 20,
			TimeFrame:            time.Minute,
			Enabled:              true,
		},
		Log:              Log{Level: "info"},
		DashboardTimeout: 10 * time.Second,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// envKey maps DIR_AUTH__TOKEN__SECRET to auth.token.secret.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

// Load reads the layers and validates the result. path may be empty to use
// DefaultFile; a missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if path == "" {
		path = DefaultFile
	}

	k := koanf.New(".")

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
