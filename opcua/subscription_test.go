// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package opcua_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/absmach/opcua-bridge/opcua"
	"github.com/absmach/opcua-bridge/opcua/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureReadyNoSession(t *testing.T) {
	sm := opcua.NewSubscriptionManager(testLogger())

	assert.False(t, sm.EnsureReady(context.Background(), nil, time.Second))
	assert.False(t, sm.Active())
}

func TestEnsureReadyDisconnected(t *testing.T) {
	factory := &mocks.SessionFactory{}
	sess := openSession(t, factory)
	require.NoError(t, sess.Close())

	sm := opcua.NewSubscriptionManager(testLogger())
	assert.False(t, sm.EnsureReady(context.Background(), sess, time.Second))
}

func TestEnsureReadyIdempotent(t *testing.T) {
	factory := &mocks.SessionFactory{}
	sess := openSession(t, factory)

	sm := opcua.NewSubscriptionManager(testLogger())
	require.True(t, sm.EnsureReady(context.Background(), sess, time.Second))
	first := sess.Subscription()

	require.True(t, sm.EnsureReady(context.Background(), sess, 10*time.Second))
	assert.Same(t, first, sess.Subscription(), "an active context must be reused, not recreated")
}

func TestEnsureReadyCreateFailure(t *testing.T) {
	factory := &mocks.SessionFactory{SubErr: errors.New("too many subscriptions")}
	sess := openSession(t, factory)

	sm := opcua.NewSubscriptionManager(testLogger())
	assert.False(t, sm.EnsureReady(context.Background(), sess, time.Second))
	assert.False(t, sm.Active())
}

func TestMonitoredItemLifecycle(t *testing.T) {
	factory := &mocks.SessionFactory{}
	sess := openSession(t, factory)
	ctx := context.Background()

	sm := opcua.NewSubscriptionManager(testLogger())
	require.True(t, sm.EnsureReady(ctx, sess, time.Second))
	sub := sess.Subscription()

	sm.AddMonitoredItem(ctx, node("A", "ns=2;i=1"), nil)
	sm.AddMonitoredItem(ctx, node("B", "ns=2;i=2"), nil)
	sm.ApplyChanges(ctx)
	assert.Len(t, sm.Items(), 2)
	assert.Equal(t, 1, sub.Applies())

	sm.RemoveMonitoredItem(ctx, node("A", "ns=2;i=1"))
	sm.ApplyChanges(ctx)
	assert.Len(t, sm.Items(), 1)
	assert.Equal(t, 2, sub.Applies())
}

func TestMonitoredItemOpsWithoutContext(t *testing.T) {
	sm := opcua.NewSubscriptionManager(testLogger())
	ctx := context.Background()

	// Best effort: all of these degrade to logged no-ops.
	sm.AddMonitoredItem(ctx, node("A", "ns=2;i=1"), nil)
	sm.RemoveMonitoredItem(ctx, node("A", "ns=2;i=1"))
	sm.ApplyChanges(ctx)
	assert.Empty(t, sm.Items())
}

func TestReleaseCancelsOnlyWhenConnected(t *testing.T) {
	cases := []struct {
		desc      string
		connected bool
		cancelled bool
	}{
		{desc: "connected session cancels on the remote", connected: true, cancelled: true},
		{desc: "dead session skips the remote call", connected: false, cancelled: false},
	}

	for _, tc := range cases {
		factory := &mocks.SessionFactory{}
		sess := openSession(t, factory)

		sm := opcua.NewSubscriptionManager(testLogger())
		require.True(t, sm.EnsureReady(context.Background(), sess, time.Second))
		sub := sess.Subscription()

		sm.Release(tc.connected)
		assert.Equal(t, tc.cancelled, sub.Cancelled(), tc.desc)
		assert.False(t, sm.Active(), tc.desc)
	}
}

func TestReleaseWithoutContext(t *testing.T) {
	sm := opcua.NewSubscriptionManager(testLogger())
	sm.Release(true)
	assert.False(t, sm.Active())
}
