// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package main starts the OPC-UA bridge: it connects to the configured
// endpoint, replays stored subscriptions and exposes the service over HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/absmach/opcua-bridge/internal"
	redisclient "github.com/absmach/opcua-bridge/internal/clients/redis"
	"github.com/absmach/opcua-bridge/internal/env"
	"github.com/absmach/opcua-bridge/internal/server"
	httpserver "github.com/absmach/opcua-bridge/internal/server/http"
	brlog "github.com/absmach/opcua-bridge/logger"
	"github.com/absmach/opcua-bridge/opcua"
	"github.com/absmach/opcua-bridge/opcua/api"
	"github.com/absmach/opcua-bridge/opcua/db"
	"github.com/absmach/opcua-bridge/opcua/events"
	"github.com/absmach/opcua-bridge/opcua/gopcua"
	"github.com/absmach/opcua-bridge/opcua/redis"
	"github.com/absmach/opcua-bridge/pkg/messaging/nats"
	"golang.org/x/sync/errgroup"
)

const (
	svcName        = "opcua-bridge"
	envPrefix      = "MG_OPCUA_BRIDGE_"
	envPrefixES    = "MG_OPCUA_BRIDGE_ES_"
	envPrefixHTTP  = "MG_OPCUA_BRIDGE_HTTP_"
	defSvcHTTPPort = "8180"
)

type config struct {
	LogLevel   string `env:"MG_OPCUA_BRIDGE_LOG_LEVEL"   envDefault:"info"`
	BrokerURL  string `env:"MG_BROKER_URL"               envDefault:"nats://localhost:4222"`
	StorePath  string `env:"MG_OPCUA_BRIDGE_STORE_PATH"  envDefault:"/store/nodes.csv"`
	InstanceID string `env:"MG_OPCUA_BRIDGE_INSTANCE_ID" envDefault:""`
	EnableES   bool   `env:"MG_OPCUA_BRIDGE_ES_ENABLED"  envDefault:"false"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load %s configuration : %s", svcName, err)
	}

	opcConfig := opcua.Config{}
	if err := env.Parse(&opcConfig, env.Options{Prefix: envPrefix}); err != nil {
		log.Fatalf("failed to load %s client configuration : %s", svcName, err)
	}

	logger, err := brlog.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %s", err)
	}

	pub, err := nats.NewPublisher(cfg.BrokerURL)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to connect to message broker: %s", err))
		os.Exit(1)
	}
	defer pub.Close()

	var es events.Publisher
	if cfg.EnableES {
		esConn, err := redisclient.Setup(envPrefixES)
		if err != nil {
			logger.Error(fmt.Sprintf("failed to setup %s event store redis client : %s", svcName, err))
			os.Exit(1)
		}
		defer esConn.Close()
		es = redis.NewEventStore(esConn)
	}

	factory := gopcua.NewSessionFactory(gopcua.ClientConfig{
		Policy:   opcConfig.Policy,
		Mode:     opcConfig.Mode,
		CertFile: opcConfig.CertFile,
		KeyFile:  opcConfig.KeyFile,
	}, logger)

	controller := opcua.NewController(factory, opcConfig.Controller(), logger)
	recorder := db.NewStore(cfg.StorePath)

	svc := opcua.New(controller, pub, recorder, es, logger)

	counter, latency := internal.MakeMetrics(svcName, "api")
	svc = api.LoggingMiddleware(svc, logger)
	svc = api.MetricsMiddleware(svc, counter, latency)

	go replayStoredSubs(ctx, svc, recorder, opcConfig.EndpointURI, logger)

	httpServerConfig := server.Config{Port: defSvcHTTPPort}
	if err := env.Parse(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err))
		os.Exit(1)
	}
	hs := httpserver.New(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service terminated: %s", svcName, err))
	}
}

// replayStoredSubs re-subscribes every record persisted for the configured
// endpoint, so a process restart behaves like a session reconnect.
func replayStoredSubs(ctx context.Context, svc opcua.Service, recorder opcua.SubscriptionRecorder, endpointURI string, logger *slog.Logger) {
	records, err := recorder.ReadAll()
	if err != nil {
		logger.Warn(fmt.Sprintf("failed to read stored subscriptions: %s", err))
		return
	}

	for _, r := range records {
		if r.EndpointURI != endpointURI {
			continue
		}
		if err := svc.Subscribe(ctx, r.Node); err != nil {
			logger.Warn(fmt.Sprintf("failed to replay subscription for node %s: %s", r.Node.ID, err))
		}
	}
}
