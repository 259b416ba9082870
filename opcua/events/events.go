// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package events defines the connection lifecycle events emitted by the
// bridge and the publisher they go through.
package events

import "context"

// Lifecycle operations.
const (
	OpConnect       = "connect"
	OpDisconnect    = "disconnect"
	OpReconnect     = "reconnect"
	OpEndpointReset = "endpoint_reset"
	OpSubscribe     = "subscribe"
	OpUnsubscribe   = "unsubscribe"
)

// ConnectionEvent records one lifecycle transition of the bridge.
type ConnectionEvent struct {
	Operation string
	Endpoint  string
	NodeID    string
	Operating bool
	Occurred  int64
}

// Encode encodes the event to a map for stream publishing.
func (ce ConnectionEvent) Encode() map[string]interface{} {
	val := map[string]interface{}{
		"operation": ce.Operation,
		"endpoint":  ce.Endpoint,
		"operating": ce.Operating,
		"occurred":  ce.Occurred,
	}
	if ce.NodeID != "" {
		val["node_id"] = ce.NodeID
	}
	return val
}

// Publisher specifies the lifecycle event publishing API.
type Publisher interface {
	// Publish publishes the event to the event stream.
	Publish(ctx context.Context, event ConnectionEvent) error
}
