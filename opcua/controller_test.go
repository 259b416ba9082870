// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package opcua_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/absmach/opcua-bridge/opcua"
	"github.com/absmach/opcua-bridge/opcua/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newController(factory *mocks.SessionFactory, maxRetries int) *opcua.ConnectionController {
	return opcua.NewController(factory, opcua.ControllerConfig{
		EndpointURI:        "opc.tcp://localhost:4840",
		SessionTimeout:     30 * time.Second,
		KeepAliveInterval:  5 * time.Second,
		PublishingInterval: time.Second,
		MaxRetries:         maxRetries,
	}, testLogger())
}

// handlerLog records which handler fired, to verify callbacks survive
// replays.
type handlerLog struct {
	mu   sync.Mutex
	tags []string
}

func (hl *handlerLog) handler(tag string) opcua.ValueHandler {
	return func(opcua.Node, opcua.DataValue) {
		hl.mu.Lock()
		defer hl.mu.Unlock()
		hl.tags = append(hl.tags, tag)
	}
}

func (hl *handlerLog) fired() []string {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	return append([]string{}, hl.tags...)
}

func TestDisconnectIdempotent(t *testing.T) {
	factory := &mocks.SessionFactory{}
	c := newController(factory, 3)

	// Never connected.
	c.Disconnect()
	c.Disconnect()
	status := c.Status()
	assert.False(t, status.SessionAlive)
	assert.False(t, status.Subscribed)

	// Connected, then disconnected twice.
	require.True(t, c.Connect(context.Background()))
	c.Disconnect()
	c.Disconnect()
	status = c.Status()
	assert.False(t, status.SessionAlive)
	assert.False(t, status.Subscribed)
}

func TestConnectRetryBound(t *testing.T) {
	cases := []struct {
		desc       string
		fail       int
		maxRetries int
		success    bool
		opens      int
		retries    int
	}{
		{desc: "always failing endpoint makes exactly max attempts", fail: -1, maxRetries: 3, success: false, opens: 3, retries: 3},
		{desc: "success after transient failures resets the counter", fail: 2, maxRetries: 5, success: true, opens: 3, retries: 0},
		{desc: "unlimited retries survive transient failures", fail: 4, maxRetries: -1, success: true, opens: 5, retries: 0},
		{desc: "first attempt succeeds", fail: 0, maxRetries: 3, success: true, opens: 1, retries: 0},
	}

	for _, tc := range cases {
		factory := &mocks.SessionFactory{Fail: tc.fail}
		c := newController(factory, tc.maxRetries)

		ok := c.Connect(context.Background())
		assert.Equal(t, tc.success, ok, fmt.Sprintf("%s: expected success %v got %v", tc.desc, tc.success, ok))
		assert.Equal(t, tc.opens, factory.Opens(), fmt.Sprintf("%s: expected %d attempts got %d", tc.desc, tc.opens, factory.Opens()))
		assert.Equal(t, tc.retries, c.Status().Retries, fmt.Sprintf("%s: expected retry counter %d got %d", tc.desc, tc.retries, c.Status().Retries))
	}
}

func TestConnectAlreadyConnected(t *testing.T) {
	factory := &mocks.SessionFactory{}
	c := newController(factory, 3)

	require.True(t, c.Connect(context.Background()))
	require.True(t, c.Connect(context.Background()))
	assert.Equal(t, 1, factory.Opens(), "connect on a live session must not reopen")
}

func TestResubscriptionFidelity(t *testing.T) {
	factory := &mocks.SessionFactory{
		Tree: map[string][]opcua.Node{
			opcua.ObjectsRootID: {node("A", "ns=2;i=1"), node("C", "ns=2;i=3")},
		},
	}
	c := newController(factory, 3)
	ctx := context.Background()

	hl := &handlerLog{}
	require.True(t, c.Subscribe(ctx, node("A", "ns=2;i=1"), hl.handler("A")))
	require.True(t, c.Subscribe(ctx, node("B", "ns=2;i=2"), hl.handler("B")))
	require.True(t, c.Subscribe(ctx, node("C", "ns=2;i=3"), hl.handler("C")))

	require.True(t, c.Reconnect(ctx))

	var names []string
	for _, n := range c.Subscriptions() {
		names = append(names, n.DisplayName)
	}
	assert.Equal(t, []string{"A", "C"}, names, "vanished node B must be dropped from the store")

	sub := factory.Last().Subscription()
	require.NotNil(t, sub)
	added := sub.Added()
	require.Len(t, added, 2, "exactly one re-subscribe per live node")
	for _, rec := range added {
		rec.Handler(opcua.Node{}, opcua.DataValue{})
	}
	assert.ElementsMatch(t, []string{"A", "C"}, hl.fired(), "replay must reuse the original callbacks")
}

func TestReconnectFailure(t *testing.T) {
	factory := &mocks.SessionFactory{Fail: -1}
	c := newController(factory, 2)

	assert.False(t, c.Reconnect(context.Background()))
	assert.False(t, c.Operating())
}

func TestSubscribeReplacesMonitoredItem(t *testing.T) {
	factory := &mocks.SessionFactory{}
	c := newController(factory, 3)
	ctx := context.Background()

	hl := &handlerLog{}
	require.True(t, c.Subscribe(ctx, node("TestSensor", "ns=2;i=1"), hl.handler("old")))
	require.True(t, c.Subscribe(ctx, node("TestSensor", "ns=2;i=1"), hl.handler("new")))

	assert.Len(t, c.Subscriptions(), 1, "resubscription must replace, not duplicate")

	sub := factory.Last().Subscription()
	require.NotNil(t, sub)
	assert.Len(t, sub.Removed(), 1, "prior monitored item must be removed first")

	added := sub.Added()
	require.Len(t, added, 2)
	added[len(added)-1].Handler(opcua.Node{}, opcua.DataValue{})
	assert.Equal(t, []string{"new"}, hl.fired())
}

func TestUnsubscribe(t *testing.T) {
	factory := &mocks.SessionFactory{}
	c := newController(factory, 3)
	ctx := context.Background()

	require.True(t, c.Subscribe(ctx, node("A", "i=1"), nil))
	c.Unsubscribe(ctx, node("A", "i=1"))

	assert.Empty(t, c.Subscriptions())
	assert.Equal(t, []opcua.Node{node("A", "i=1")}, factory.Last().Subscription().Removed())
}

func TestResetEndpoint(t *testing.T) {
	factory := &mocks.SessionFactory{}
	c := newController(factory, 3)
	ctx := context.Background()

	require.True(t, c.Subscribe(ctx, node("A", "i=1"), nil))
	c.ResetEndpoint("opc.tcp://other:4840")

	status := c.Status()
	assert.Equal(t, "opc.tcp://other:4840", status.Endpoint)
	assert.False(t, status.SessionAlive, "reset must drop the stale session")
	assert.Empty(t, c.Subscriptions(), "reset must clear the reference store")
	assert.Zero(t, status.Retries)
	assert.True(t, status.Operating)
}

func TestDisconnectKeepsStore(t *testing.T) {
	factory := &mocks.SessionFactory{}
	c := newController(factory, 3)

	require.True(t, c.Subscribe(context.Background(), node("A", "i=1"), nil))
	c.Disconnect()

	assert.Len(t, c.Subscriptions(), 1, "disconnect must never clear the reference store")
}

func TestBrowseDisconnected(t *testing.T) {
	factory := &mocks.SessionFactory{}
	c := newController(factory, 3)

	nodes := c.Browse(context.Background(), "", opcua.NodeClassAll, false)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes, "browse without a session must degrade to empty")
}

func TestBrowseServerFilter(t *testing.T) {
	factory := &mocks.SessionFactory{
		Tree: map[string][]opcua.Node{
			opcua.ObjectsRootID: {node("ServerStatus", "i=2256"), node("TestSensor", "ns=2;i=1")},
		},
	}
	c := newController(factory, 3)
	ctx := context.Background()
	require.True(t, c.Connect(ctx))

	cases := []struct {
		desc          string
		includeServer bool
		names         []string
	}{
		{desc: "server subtree excluded", includeServer: false, names: []string{"TestSensor"}},
		{desc: "server subtree only", includeServer: true, names: []string{"ServerStatus"}},
	}

	for _, tc := range cases {
		var names []string
		for _, n := range c.Browse(ctx, "", opcua.NodeClassAll, tc.includeServer) {
			names = append(names, n.DisplayName)
		}
		assert.Equal(t, tc.names, names, fmt.Sprintf("%s: expected %v got %v", tc.desc, tc.names, names))
	}
}

func TestLivenessInPlaceReconnect(t *testing.T) {
	factory := &mocks.SessionFactory{}
	c := newController(factory, 3)
	require.True(t, c.Connect(context.Background()))

	sess := factory.Last()
	sess.PushLiveness(opcua.LivenessBad)

	assert.Eventually(t, func() bool {
		return sess.Reconnects() == 1 && c.Operating()
	}, time.Second, 10*time.Millisecond, "in-place reconnect must restore operating")
	assert.Equal(t, 1, factory.Opens(), "in-place reconnect must not open a new session")
}

func TestLivenessFallbackToResubscription(t *testing.T) {
	factory := &mocks.SessionFactory{
		ReconnectErr: errors.New("session no longer valid"),
		Tree: map[string][]opcua.Node{
			opcua.ObjectsRootID: {node("A", "ns=2;i=1")},
		},
	}
	c := newController(factory, 3)
	ctx := context.Background()

	hl := &handlerLog{}
	require.True(t, c.Subscribe(ctx, node("A", "ns=2;i=1"), hl.handler("A")))
	first := factory.Last()

	first.PushLiveness(opcua.LivenessBad)

	assert.Eventually(t, func() bool {
		return factory.Opens() == 2 && c.Status().SessionAlive
	}, time.Second, 10*time.Millisecond, "resubscription must open a fresh session")

	assert.Eventually(t, func() bool {
		sub := factory.Last().Subscription()
		return sub != nil && len(sub.Added()) == 1
	}, time.Second, 10*time.Millisecond, "stored subscription must be replayed")
	assert.True(t, c.Operating())
}

func TestLivenessUnrecoverable(t *testing.T) {
	factory := &mocks.SessionFactory{
		ReconnectErr: errors.New("session no longer valid"),
		FailFrom:     2,
	}
	c := newController(factory, 2)
	require.True(t, c.Connect(context.Background()))

	factory.Last().PushLiveness(opcua.LivenessBad)

	assert.Eventually(t, func() bool {
		return !c.Operating() && !c.Status().SessionAlive
	}, time.Second, 10*time.Millisecond, "exhausted recovery must leave operating false")
}

func TestLivenessObserver(t *testing.T) {
	factory := &mocks.SessionFactory{}
	c := newController(factory, 3)

	var mu sync.Mutex
	var seen []opcua.LivenessStatus
	c.SetLivenessObserver(func(st opcua.LivenessStatus) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, st)
	})

	require.True(t, c.Connect(context.Background()))
	factory.Last().PushLiveness(opcua.LivenessOK)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0] == opcua.LivenessOK
	}, time.Second, 10*time.Millisecond)
}

func TestMonitorServerStatusRearm(t *testing.T) {
	factory := &mocks.SessionFactory{
		Tree: map[string][]opcua.Node{
			opcua.ObjectsRootID: {node("TestSensor", "ns=2;i=1")},
		},
	}
	c := newController(factory, 3)
	ctx := context.Background()

	hl := &handlerLog{}
	require.True(t, c.MonitorServerStatus(ctx, hl.handler("status")))

	sub := factory.Last().Subscription()
	require.NotNil(t, sub)
	require.Len(t, sub.Added(), 1)
	assert.Equal(t, opcua.ServerStatusID, sub.Added()[0].Node.ID)

	require.True(t, c.Reconnect(ctx))

	sub = factory.Last().Subscription()
	require.NotNil(t, sub)
	require.Len(t, sub.Added(), 1, "server status monitor must be re-armed after resubscription")
	assert.Equal(t, opcua.ServerStatusID, sub.Added()[0].Node.ID)
}
