// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package redis publishes connection lifecycle events to a Redis stream.
package redis

import (
	"context"

	"github.com/absmach/opcua-bridge/opcua/events"
	"github.com/go-redis/redis/v8"
)

const (
	stream    = "opcua.bridge"
	streamLen = 1000
)

var _ events.Publisher = (*eventStore)(nil)

type eventStore struct {
	client *redis.Client
}

// NewEventStore returns a lifecycle event publisher backed by a Redis
// stream.
func NewEventStore(client *redis.Client) events.Publisher {
	return &eventStore{client: client}
}

func (es *eventStore) Publish(ctx context.Context, event events.ConnectionEvent) error {
	record := &redis.XAddArgs{
		Stream:       stream,
		MaxLenApprox: streamLen,
		Values:       event.Encode(),
	}

	return es.client.XAdd(ctx, record).Err()
}
