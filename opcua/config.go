// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package opcua

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config holds the OPC UA endpoint and session settings of the bridge.
type Config struct {
	EndpointURI        string        `env:"ENDPOINT_URI"          envDefault:"opc.tcp://localhost:4840"`
	SessionTimeout     time.Duration `env:"SESSION_TIMEOUT"       envDefault:"30s"`
	KeepAliveInterval  time.Duration `env:"KEEPALIVE_INTERVAL"    envDefault:"5s"`
	PublishingInterval time.Duration `env:"PUBLISHING_INTERVAL"   envDefault:"1s"`
	MaxRetries         int           `env:"MAX_RETRIES"           envDefault:"5"`
	RetryBackoff       bool          `env:"RETRY_BACKOFF"         envDefault:"false"`
	Policy             string        `env:"POLICY"                envDefault:""`
	Mode               string        `env:"MODE"                  envDefault:""`
	CertFile           string        `env:"CERT_FILE"             envDefault:""`
	KeyFile            string        `env:"KEY_FILE"              envDefault:""`
}

// Controller derives the controller configuration. Exponential backoff
// between connect retries is opt-in; the default is the immediate retry
// the client always had.
func (c Config) Controller() ControllerConfig {
	cfg := ControllerConfig{
		EndpointURI:        c.EndpointURI,
		SessionTimeout:     c.SessionTimeout,
		KeepAliveInterval:  c.KeepAliveInterval,
		PublishingInterval: c.PublishingInterval,
		MaxRetries:         c.MaxRetries,
	}
	if c.RetryBackoff {
		cfg.RetryBackoff = backoff.NewExponentialBackOff()
	}
	return cfg
}
