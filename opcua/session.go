// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package opcua

import (
	"context"
	"time"
)

// SessionConfig carries per-session transport settings. There is no
// process-wide connection configuration: every controller owns its config.
type SessionConfig struct {
	// Timeout is the requested session lifetime on the remote.
	Timeout time.Duration

	// KeepAliveInterval is how often the session checks remote liveness.
	KeepAliveInterval time.Duration
}

// SessionFactory opens sessions against a remote endpoint. It hides
// endpoint selection, security negotiation and certificate trust, all of
// which belong to the external protocol stack.
type SessionFactory interface {
	// Open selects a transport endpoint for the given endpoint identity and
	// establishes a session on it.
	Open(ctx context.Context, endpointURI string, cfg SessionConfig) (Session, error)
}

// Session is a live protocol session handle. All methods perform remote
// round-trips except Connected and Liveness.
//
// Implementations must close the Liveness channel when the session
// terminates so consumers can stop.
type Session interface {
	// Connected reports whether the underlying secure channel is believed
	// alive. A session object may exist but be stale.
	Connected() bool

	// Close terminates the session. Idempotent.
	Close() error

	// Reconnect re-establishes the session in place, keeping its remote
	// state. It fails with a protocol fault when the remote discarded the
	// session.
	Reconnect(ctx context.Context) error

	// Children performs a single forward hierarchical browse of the node,
	// restricted to the given node-class mask.
	Children(ctx context.Context, nodeID string, classes NodeClass) ([]Node, error)

	// Read executes one batched read of the current-value attribute.
	Read(ctx context.Context, nodes []Node) ([]DataValue, error)

	// Write executes one batched write and returns per-item statuses.
	Write(ctx context.Context, items []WriteItem) ([]Status, error)

	// NewSubscription creates a subscription context bound to this session
	// with the given publishing interval and activates it on the remote.
	NewSubscription(ctx context.Context, publishingInterval time.Duration) (SubscriptionContext, error)

	// Liveness returns the bounded channel on which keep-alive results are
	// delivered. The channel is closed when the session terminates.
	Liveness() <-chan LivenessStatus
}

// SubscriptionContext groups monitored items for batched publishing.
// Add and Remove queue changes; Apply pushes the pending batch to the
// remote in one exchange.
type SubscriptionContext interface {
	// Add queues the creation of a monitored item for the node, delivering
	// data changes to the handler.
	Add(ctx context.Context, node Node, handler ValueHandler) error

	// Remove queues the removal of the monitored item for the node.
	Remove(ctx context.Context, node Node) error

	// Apply pushes pending additions and removals to the remote.
	Apply(ctx context.Context) error

	// Items lists the nodes with an applied monitored item.
	Items() []Node

	// Cancel tears the subscription context down on the remote.
	Cancel() error
}
