// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package opcua

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ControllerConfig carries the per-controller connection settings. It is
// passed to the constructor; there is no shared process-wide configuration.
type ControllerConfig struct {
	// EndpointURI names the remote service location. Immutable for the
	// lifetime of the controller except via ResetEndpoint.
	EndpointURI string

	// SessionTimeout is the requested session lifetime on the remote.
	SessionTimeout time.Duration

	// KeepAliveInterval is how often session liveness is checked.
	KeepAliveInterval time.Duration

	// PublishingInterval is the publishing interval of the subscription
	// context created lazily on first use.
	PublishingInterval time.Duration

	// MaxRetries bounds consecutive failed connect attempts. A negative
	// value means unlimited retries.
	MaxRetries int

	// RetryBackoff, when non-nil, spaces out connect retries. Left nil the
	// controller retries immediately, which matches the behavior this
	// client historically had.
	RetryBackoff backoff.BackOff
}

// ConnStatus is a snapshot of the controller state.
type ConnStatus struct {
	Endpoint       string `json:"endpoint"`
	Operating      bool   `json:"operating"`
	SessionAlive   bool   `json:"session_alive"`
	Subscribed     bool   `json:"subscribed"`
	MonitoredItems int    `json:"monitored_items"`
	Retries        int    `json:"retries"`
}

// ConnectionController is the connection state machine: it establishes a
// session, keeps it alive, detects failure, reconnects and transparently
// re-establishes every active subscription against the fresh session.
//
// A single mutex guards the session and subscription handles. Foreground
// calls and the liveness consumer both take it, so the liveness path is
// never reentrant with a foreground call.
type ConnectionController struct {
	mu       sync.Mutex
	factory  SessionFactory
	cfg      ControllerConfig
	endpoint string
	logger   *slog.Logger

	session Session
	subs    *SubscriptionManager
	store   *ReferenceStore
	walker  *AddressSpaceWalker
	io      *ValueIO

	operating bool
	retries   int

	// statusHandler is re-armed by resubscription when the server-status
	// monitor was active before the session was lost.
	statusHandler ValueHandler

	// livenessObs, when set, observes every keep-alive result in addition
	// to the built-in recovery.
	livenessObs func(LivenessStatus)
}

// NewController returns a controller for the configured endpoint. The
// reference store starts empty and outlives every session the controller
// will open.
func NewController(factory SessionFactory, cfg ControllerConfig, logger *slog.Logger) *ConnectionController {
	return &ConnectionController{
		factory:  factory,
		cfg:      cfg,
		endpoint: cfg.EndpointURI,
		logger:   logger,
		subs:     NewSubscriptionManager(logger),
		store:    NewReferenceStore(),
		walker:   NewWalker(logger),
		io:       NewValueIO(logger),
	}
}

// SetLivenessObserver installs an observer invoked with every keep-alive
// result. The built-in recovery still runs; the observer must not block.
func (c *ConnectionController) SetLivenessObserver(obs func(LivenessStatus)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.livenessObs = obs
}

// Connect opens a session against the configured endpoint, retrying failed
// attempts up to the configured maximum. It reports false once retries are
// exhausted. A controller with a live session returns true immediately.
func (c *ConnectionController) Connect(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.session.Connected() {
		return true
	}

	return c.connect(ctx)
}

// connect runs the bounded retry loop. Callers hold the mutex. The loop is
// iterative on purpose: with an always-failing endpoint and a large retry
// maximum a self-call per attempt would grow the stack without bound.
func (c *ConnectionController) connect(ctx context.Context) bool {
	if c.cfg.RetryBackoff != nil {
		c.cfg.RetryBackoff.Reset()
	}

	for {
		sess, err := c.factory.Open(ctx, c.endpoint, SessionConfig{
			Timeout:           c.cfg.SessionTimeout,
			KeepAliveInterval: c.cfg.KeepAliveInterval,
		})
		if err == nil {
			c.session = sess
			c.retries = 0
			c.operating = true
			go c.watchLiveness(sess.Liveness())
			c.logger.Info(fmt.Sprintf("connected to endpoint %s", c.endpoint))
			return true
		}

		c.retries++
		c.operating = false
		c.logger.Warn(fmt.Sprintf("connect attempt %d to endpoint %s failed: %s", c.retries, c.endpoint, err))

		if c.cfg.MaxRetries >= 0 && c.retries >= c.cfg.MaxRetries {
			c.disconnect()
			c.logger.Error(fmt.Sprintf("connect retries to endpoint %s exhausted after %d attempts", c.endpoint, c.retries))
			return false
		}

		if c.cfg.RetryBackoff != nil {
			select {
			case <-ctx.Done():
				c.logger.Warn(fmt.Sprintf("connect to endpoint %s cancelled: %s", c.endpoint, ctx.Err()))
				return false
			case <-time.After(c.cfg.RetryBackoff.NextBackOff()):
			}
			continue
		}

		if ctx.Err() != nil {
			c.logger.Warn(fmt.Sprintf("connect to endpoint %s cancelled: %s", c.endpoint, ctx.Err()))
			return false
		}
	}
}

// Disconnect tears down the subscription context and the session.
// Idempotent: disconnecting an already-disconnected controller is a no-op.
// The reference store is never cleared here.
func (c *ConnectionController) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnect()
}

func (c *ConnectionController) disconnect() {
	connected := c.session != nil && c.session.Connected()
	c.subs.Release(connected)

	if c.session != nil {
		if err := c.session.Close(); err != nil {
			c.logger.Warn(fmt.Sprintf("session close reported: %s", err))
		}
		c.session = nil
	}
}

// ResetEndpoint redirects the controller to a different remote: it
// reassigns the endpoint identity, clears the reference store and drops the
// now-stale session. This is a hard reset of identity and subscriptions,
// unlike Disconnect which keeps the store for later replay.
func (c *ConnectionController) ResetEndpoint(endpointURI string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.endpoint = endpointURI
	c.store.Clear()
	c.statusHandler = nil
	c.operating = true
	c.retries = 0
	c.disconnect()
}

// Reconnect drops the current session and replays every stored subscription
// against a freshly created one.
func (c *ConnectionController) Reconnect(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disconnect()
	c.retries = 0
	c.operating = true

	return c.resubscribe(ctx)
}

// resubscribe rebuilds the subscription state after session loss. The
// subscription context does not survive the session, so the reference store
// is replayed against the current address space: entries whose display name
// is still live are re-subscribed with their original callbacks, entries
// whose remote node disappeared are dropped.
func (c *ConnectionController) resubscribe(ctx context.Context) bool {
	if !c.connect(ctx) {
		return false
	}
	if !c.subs.EnsureReady(ctx, c.session, c.cfg.PublishingInterval) {
		return false
	}

	seed := c.walker.Children(ctx, c.session, "", NodeClassAll, false)
	live := make(map[string]bool)
	for _, n := range c.walker.Walk(ctx, c.session, seed, NodeClassAll, false) {
		live[n.DisplayName] = true
	}

	for _, e := range c.store.Entries() {
		if !live[e.Node.DisplayName] {
			c.logger.Warn(fmt.Sprintf("node %s (%s) no longer exists on the remote, dropping subscription", e.Node.DisplayName, e.Node.ID))
			c.store.Remove(e.Node.DisplayName, e.Node.ID)
			continue
		}
		c.subs.AddMonitoredItem(ctx, e.Node, e.Handler)
	}
	c.subs.ApplyChanges(ctx)

	if c.statusHandler != nil {
		c.armServerStatus(ctx)
	}

	c.logger.Info(fmt.Sprintf("resubscribed %d nodes on endpoint %s", c.store.Len(), c.endpoint))

	return true
}

// Subscribe registers the handler for the node and arms a monitored item on
// the active subscription context, connecting first if needed. Subscribing
// to a node already in the store replaces the prior binding.
func (c *ConnectionController) Subscribe(ctx context.Context, node Node, handler ValueHandler) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || !c.session.Connected() {
		if !c.connect(ctx) {
			return false
		}
	}
	if !c.subs.EnsureReady(ctx, c.session, c.cfg.PublishingInterval) {
		return false
	}

	if _, ok := c.store.Lookup(node.DisplayName, node.ID); ok {
		c.subs.RemoveMonitoredItem(ctx, node)
	}
	c.store.Save(node, handler)
	c.subs.AddMonitoredItem(ctx, node, handler)
	c.subs.ApplyChanges(ctx)

	return true
}

// Unsubscribe drops the node from the reference store and removes its
// monitored item, best effort.
func (c *ConnectionController) Unsubscribe(ctx context.Context, node Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Remove(node.DisplayName, node.ID)
	c.subs.RemoveMonitoredItem(ctx, node)
	c.subs.ApplyChanges(ctx)
}

// MonitorServerStatus arms a monitored item on the server status variable.
// The monitor is re-armed automatically after every resubscription.
func (c *ConnectionController) MonitorServerStatus(ctx context.Context, handler ValueHandler) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statusHandler = handler

	if c.session == nil || !c.session.Connected() {
		if !c.connect(ctx) {
			return false
		}
	}
	if !c.subs.EnsureReady(ctx, c.session, c.cfg.PublishingInterval) {
		return false
	}
	c.armServerStatus(ctx)

	return true
}

func (c *ConnectionController) armServerStatus(ctx context.Context) {
	c.subs.AddMonitoredItem(ctx, Node{
		DisplayName: "ServerStatus",
		Class:       NodeClassVariable,
		ID:          ServerStatusID,
	}, c.statusHandler)
	c.subs.ApplyChanges(ctx)
}

// Browse performs a single-level browse under rootID (the objects container
// when empty). It returns an empty sequence, never a failure, when the
// controller is not connected.
func (c *ConnectionController) Browse(ctx context.Context, rootID string, classes NodeClass, includeServerSubtree bool) []Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.walker.Children(ctx, c.session, rootID, classes, includeServerSubtree)
}

// BrowseTree walks the whole subtree under rootID depth-first.
func (c *ConnectionController) BrowseTree(ctx context.Context, rootID string, classes NodeClass, includeServerSubtree bool) []Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	seed := c.walker.Children(ctx, c.session, rootID, classes, includeServerSubtree)
	return c.walker.Walk(ctx, c.session, seed, classes, includeServerSubtree)
}

// Read executes one batched read of the current values of the nodes.
func (c *ConnectionController) Read(ctx context.Context, nodes []Node) []DataValue {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.io.ReadMany(ctx, c.session, nodes)
}

// Write writes the value to every node in one batch. True means every
// per-item status was good.
func (c *ConnectionController) Write(ctx context.Context, nodes []Node, value interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.io.WriteMany(ctx, c.session, nodes, value)
}

// Subscriptions lists the stored subscription targets in insertion order.
func (c *ConnectionController) Subscriptions() []Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	nodes := make([]Node, 0, c.store.Len())
	for _, e := range c.store.Entries() {
		nodes = append(nodes, e.Node)
	}
	return nodes
}

// Operating reports the controller's belief that the endpoint is reachable.
// It is distinct from session presence: a session object may exist but be
// stale.
func (c *ConnectionController) Operating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.operating
}

// Status returns a snapshot of the controller state.
func (c *ConnectionController) Status() ConnStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ConnStatus{
		Endpoint:       c.endpoint,
		Operating:      c.operating,
		SessionAlive:   c.session != nil && c.session.Connected(),
		Subscribed:     c.subs.Active(),
		MonitoredItems: len(c.subs.Items()),
		Retries:        c.retries,
	}
}

// watchLiveness consumes keep-alive results for one session. The session
// implementation closes the channel when the session terminates, which ends
// the goroutine; a fresh session gets a fresh consumer.
func (c *ConnectionController) watchLiveness(ch <-chan LivenessStatus) {
	for status := range ch {
		c.mu.Lock()
		obs := c.livenessObs
		c.mu.Unlock()
		if obs != nil {
			obs(status)
		}
		if status == LivenessBad {
			c.recoverLiveness()
		}
	}
}

// recoverLiveness handles a bad keep-alive: first an in-place session
// reconnect, then a full teardown and resubscription, and as a last resort
// a hard disconnect that leaves operating false until the next explicit
// Connect or Reconnect.
func (c *ConnectionController) recoverLiveness() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return
	}

	ctx := context.Background()

	err := c.session.Reconnect(ctx)
	if err == nil {
		c.operating = true
		c.logger.Info(fmt.Sprintf("session to endpoint %s reconnected in place", c.endpoint))
		return
	}
	c.logger.Warn(fmt.Sprintf("in-place reconnect of session to endpoint %s failed: %s", c.endpoint, err))

	c.disconnect()
	c.retries = 0

	if !c.resubscribe(ctx) {
		c.disconnect()
		c.operating = false
		c.logger.Error(fmt.Sprintf("endpoint %s unrecoverable, giving up until next explicit connect", c.endpoint))
	}
}
