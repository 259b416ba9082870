// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

//go:build !test

package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/opcua-bridge/opcua"
)

var _ opcua.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    opcua.Service
}

// LoggingMiddleware adds logging facilities to the core service.
func LoggingMiddleware(svc opcua.Service, logger *slog.Logger) opcua.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm loggingMiddleware) Connect(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Connect failed to complete successfully", args...)
			return
		}
		lm.logger.Info("Connect completed successfully", args...)
	}(time.Now())

	return lm.svc.Connect(ctx)
}

func (lm loggingMiddleware) Disconnect(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Disconnect failed to complete successfully", args...)
			return
		}
		lm.logger.Info("Disconnect completed successfully", args...)
	}(time.Now())

	return lm.svc.Disconnect(ctx)
}

func (lm loggingMiddleware) Reconnect(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Reconnect failed to complete successfully", args...)
			return
		}
		lm.logger.Info("Reconnect completed successfully", args...)
	}(time.Now())

	return lm.svc.Reconnect(ctx)
}

func (lm loggingMiddleware) ResetEndpoint(ctx context.Context, endpointURI string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("endpoint_uri", endpointURI),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Reset endpoint failed to complete successfully", args...)
			return
		}
		lm.logger.Info("Reset endpoint completed successfully", args...)
	}(time.Now())

	return lm.svc.ResetEndpoint(ctx, endpointURI)
}

func (lm loggingMiddleware) Browse(ctx context.Context, rootID string, deep, includeServerSubtree bool) (nodes []opcua.Node, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("root_id", rootID),
			slog.Bool("deep", deep),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Browse available nodes failed to complete successfully", args...)
			return
		}
		lm.logger.Info("Browse available nodes completed successfully", args...)
	}(time.Now())

	return lm.svc.Browse(ctx, rootID, deep, includeServerSubtree)
}

func (lm loggingMiddleware) Subscribe(ctx context.Context, node opcua.Node) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("node_id", node.ID),
			slog.String("display_name", node.DisplayName),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Subscribe to node failed to complete successfully", args...)
			return
		}
		lm.logger.Info("Subscribe to node completed successfully", args...)
	}(time.Now())

	return lm.svc.Subscribe(ctx, node)
}

func (lm loggingMiddleware) Unsubscribe(ctx context.Context, node opcua.Node) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("node_id", node.ID),
			slog.String("display_name", node.DisplayName),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Unsubscribe from node failed to complete successfully", args...)
			return
		}
		lm.logger.Info("Unsubscribe from node completed successfully", args...)
	}(time.Now())

	return lm.svc.Unsubscribe(ctx, node)
}

func (lm loggingMiddleware) Subscriptions(ctx context.Context) (nodes []opcua.Node, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List subscriptions failed to complete successfully", args...)
			return
		}
		lm.logger.Info("List subscriptions completed successfully", args...)
	}(time.Now())

	return lm.svc.Subscriptions(ctx)
}

func (lm loggingMiddleware) Read(ctx context.Context, nodes []opcua.Node) (vals []opcua.DataValue, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("nodes", len(nodes)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Read values failed to complete successfully", args...)
			return
		}
		lm.logger.Info("Read values completed successfully", args...)
	}(time.Now())

	return lm.svc.Read(ctx, nodes)
}

func (lm loggingMiddleware) Write(ctx context.Context, nodes []opcua.Node, value interface{}) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("nodes", len(nodes)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Write values failed to complete successfully", args...)
			return
		}
		lm.logger.Info("Write values completed successfully", args...)
	}(time.Now())

	return lm.svc.Write(ctx, nodes, value)
}

func (lm loggingMiddleware) Status(ctx context.Context) (status opcua.ConnStatus, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Status failed to complete successfully", args...)
			return
		}
		lm.logger.Info("Status completed successfully", args...)
	}(time.Now())

	return lm.svc.Status(ctx)
}
