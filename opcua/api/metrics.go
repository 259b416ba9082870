// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

//go:build !test

package api

import (
	"context"
	"time"

	"github.com/absmach/opcua-bridge/opcua"
	"github.com/go-kit/kit/metrics"
)

var _ opcua.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     opcua.Service
}

// MetricsMiddleware instruments core service by tracking request count and latency.
func MetricsMiddleware(svc opcua.Service, counter metrics.Counter, latency metrics.Histogram) opcua.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) Connect(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "connect").Add(1)
		mm.latency.With("method", "connect").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Connect(ctx)
}

func (mm *metricsMiddleware) Disconnect(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "disconnect").Add(1)
		mm.latency.With("method", "disconnect").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Disconnect(ctx)
}

func (mm *metricsMiddleware) Reconnect(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "reconnect").Add(1)
		mm.latency.With("method", "reconnect").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Reconnect(ctx)
}

func (mm *metricsMiddleware) ResetEndpoint(ctx context.Context, endpointURI string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "reset_endpoint").Add(1)
		mm.latency.With("method", "reset_endpoint").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ResetEndpoint(ctx, endpointURI)
}

func (mm *metricsMiddleware) Browse(ctx context.Context, rootID string, deep, includeServerSubtree bool) ([]opcua.Node, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "browse").Add(1)
		mm.latency.With("method", "browse").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Browse(ctx, rootID, deep, includeServerSubtree)
}

func (mm *metricsMiddleware) Subscribe(ctx context.Context, node opcua.Node) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "subscribe").Add(1)
		mm.latency.With("method", "subscribe").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Subscribe(ctx, node)
}

func (mm *metricsMiddleware) Unsubscribe(ctx context.Context, node opcua.Node) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "unsubscribe").Add(1)
		mm.latency.With("method", "unsubscribe").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Unsubscribe(ctx, node)
}

func (mm *metricsMiddleware) Subscriptions(ctx context.Context) ([]opcua.Node, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "subscriptions").Add(1)
		mm.latency.With("method", "subscriptions").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Subscriptions(ctx)
}

func (mm *metricsMiddleware) Read(ctx context.Context, nodes []opcua.Node) ([]opcua.DataValue, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "read").Add(1)
		mm.latency.With("method", "read").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Read(ctx, nodes)
}

func (mm *metricsMiddleware) Write(ctx context.Context, nodes []opcua.Node, value interface{}) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "write").Add(1)
		mm.latency.With("method", "write").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Write(ctx, nodes, value)
}

func (mm *metricsMiddleware) Status(ctx context.Context) (opcua.ConnStatus, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "status").Add(1)
		mm.latency.With("method", "status").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Status(ctx)
}
