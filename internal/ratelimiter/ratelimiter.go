package ratelimiter

import "time"

type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

type Config struct {
	RequestsPerTimeFrame int           `koanf:"requests" validate:"gte=1"`
	TimeFrame            time.Duration `koanf:"window" validate:"gt=0"`
	Enabled              bool          `koanf:"enabled"`
}
