package redis

import (
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type ClientConfig struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// NewClient does not dial; the first command opens a connection.
func NewClient(cfg ClientConfig) *goredis.Client {
	opts := &goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.Timeout > 0 {
		opts.DialTimeout = cfg.Timeout
		opts.ReadTimeout = cfg.Timeout
		opts.WriteTimeout = cfg.Timeout
	}
	return goredis.NewClient(opts)
}
