// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package redis contains the Redis client setup.
package redis

import (
	"github.com/absmach/opcua-bridge/internal/env"
	"github.com/go-redis/redis/v8"
)

type config struct {
	URL  string `env:"URL"    envDefault:"redis://localhost:6379/0"`
	Pass string `env:"PASS"   envDefault:""`
	DB   int    `env:"DB"     envDefault:"0"`
}

// Setup loads Redis configuration from the environment using the given
// prefix and returns a new Redis client.
func Setup(prefix string) (*redis.Client, error) {
	cfg := config{}
	if err := env.Parse(&cfg, env.Options{Prefix: prefix}); err != nil {
		return nil, err
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Pass != "" {
		opts.Password = cfg.Pass
	}
	opts.DB = cfg.DB

	return redis.NewClient(opts), nil
}
