// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package opcua

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SubscriptionManager owns the single subscription context of a connection.
// The context is created lazily on first use and torn down whenever the
// session goes away; monitored-item changes are pushed to the remote in
// batches. Failures here are best effort: they are logged, never raised to
// the caller.
type SubscriptionManager struct {
	logger *slog.Logger
	sub    SubscriptionContext
}

// NewSubscriptionManager returns a manager with no subscription context.
func NewSubscriptionManager(logger *slog.Logger) *SubscriptionManager {
	return &SubscriptionManager{logger: logger}
}

// EnsureReady creates a subscription context on the session when none
// exists. The publishing interval of an existing context is not changed
// retroactively, since that would require tearing it down and recreating it.
func (sm *SubscriptionManager) EnsureReady(ctx context.Context, sess Session, publishingInterval time.Duration) bool {
	if sess == nil || !sess.Connected() {
		sm.logger.Warn("subscription readiness check failed: no active session")
		return false
	}

	if sm.sub != nil {
		return true
	}

	sub, err := sess.NewSubscription(ctx, publishingInterval)
	if err != nil {
		sm.logger.Warn(fmt.Sprintf("failed to create subscription context: %s", err))
		return false
	}
	sm.sub = sub

	return true
}

// Active reports whether a subscription context exists.
func (sm *SubscriptionManager) Active() bool {
	return sm.sub != nil
}

// AddMonitoredItem queues the creation of a monitored item for the node.
func (sm *SubscriptionManager) AddMonitoredItem(ctx context.Context, node Node, handler ValueHandler) {
	if sm.sub == nil {
		sm.logger.Warn(fmt.Sprintf("cannot monitor node %s: no subscription context", node.ID))
		return
	}
	if err := sm.sub.Add(ctx, node, handler); err != nil {
		sm.logger.Warn(fmt.Sprintf("failed to queue monitored item for node %s: %s", node.ID, err))
	}
}

// RemoveMonitoredItem queues the removal of the monitored item for the node.
func (sm *SubscriptionManager) RemoveMonitoredItem(ctx context.Context, node Node) {
	if sm.sub == nil {
		return
	}
	if err := sm.sub.Remove(ctx, node); err != nil {
		sm.logger.Warn(fmt.Sprintf("failed to queue monitored item removal for node %s: %s", node.ID, err))
	}
}

// ApplyChanges pushes pending additions and removals to the remote in one
// batch.
func (sm *SubscriptionManager) ApplyChanges(ctx context.Context) {
	if sm.sub == nil {
		return
	}
	if err := sm.sub.Apply(ctx); err != nil {
		sm.logger.Warn(fmt.Sprintf("failed to apply monitored item changes: %s", err))
	}
}

// Items lists the nodes with an applied monitored item.
func (sm *SubscriptionManager) Items() []Node {
	if sm.sub == nil {
		return []Node{}
	}
	return sm.sub.Items()
}

// Release tears the subscription context down. It is removed from the
// remote only when the session is still connected; either way the handle is
// cleared. Errors are reported, not fatal.
func (sm *SubscriptionManager) Release(sessionConnected bool) {
	if sm.sub == nil {
		return
	}
	if sessionConnected {
		if err := sm.sub.Cancel(); err != nil {
			sm.logger.Warn(fmt.Sprintf("subscription could not be cancelled: %s", err))
		}
	}
	sm.sub = nil
}
