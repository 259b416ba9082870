// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package opcua_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/absmach/opcua-bridge/opcua"
	"github.com/absmach/opcua-bridge/opcua/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSession(t *testing.T, factory *mocks.SessionFactory) *mocks.Session {
	t.Helper()
	sess, err := factory.Open(context.Background(), "opc.tcp://localhost:4840", opcua.SessionConfig{})
	require.NoError(t, err)
	return sess.(*mocks.Session)
}

func TestWalkerChildrenNoSession(t *testing.T) {
	w := opcua.NewWalker(testLogger())

	nodes := w.Children(context.Background(), nil, "", opcua.NodeClassAll, false)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)
}

func TestWalkerChildrenDisconnected(t *testing.T) {
	factory := &mocks.SessionFactory{}
	sess := openSession(t, factory)
	require.NoError(t, sess.Close())

	w := opcua.NewWalker(testLogger())
	nodes := w.Children(context.Background(), sess, "", opcua.NodeClassAll, false)
	assert.Empty(t, nodes)
}

func TestWalkerChildrenServerFilter(t *testing.T) {
	factory := &mocks.SessionFactory{
		Tree: map[string][]opcua.Node{
			opcua.ObjectsRootID: {
				node("ServerCapabilities", "i=2268"),
				node("TestSensor", "ns=2;i=1"),
				node("ServerStatus", "i=2256"),
				node("Valve", "ns=2;i=2"),
			},
		},
	}
	sess := openSession(t, factory)
	w := opcua.NewWalker(testLogger())

	cases := []struct {
		desc          string
		includeServer bool
		names         []string
	}{
		{desc: "default browse drops the server subtree", includeServer: false, names: []string{"TestSensor", "Valve"}},
		{desc: "server browse keeps only the server subtree", includeServer: true, names: []string{"ServerCapabilities", "ServerStatus"}},
	}

	for _, tc := range cases {
		var names []string
		for _, n := range w.Children(context.Background(), sess, "", opcua.NodeClassAll, tc.includeServer) {
			names = append(names, n.DisplayName)
		}
		assert.Equal(t, tc.names, names, fmt.Sprintf("%s: expected %v got %v", tc.desc, tc.names, names))
	}
}

func TestWalkerChildrenDefaultRoot(t *testing.T) {
	factory := &mocks.SessionFactory{
		Tree: map[string][]opcua.Node{
			opcua.ObjectsRootID: {node("TestSensor", "ns=2;i=1")},
		},
	}
	sess := openSession(t, factory)
	w := opcua.NewWalker(testLogger())

	nodes := w.Children(context.Background(), sess, "", opcua.NodeClassAll, false)
	require.Len(t, nodes, 1)
	assert.Equal(t, "TestSensor", nodes[0].DisplayName)
}

func TestWalkerWalkDepthFirst(t *testing.T) {
	factory := &mocks.SessionFactory{
		Tree: map[string][]opcua.Node{
			opcua.ObjectsRootID: {node("Line1", "ns=2;i=1"), node("Line2", "ns=2;i=2")},
			"ns=2;i=1":          {node("Temp", "ns=2;i=10"), node("Pressure", "ns=2;i=11")},
			"ns=2;i=2":          {node("Flow", "ns=2;i=20")},
		},
	}
	sess := openSession(t, factory)
	w := opcua.NewWalker(testLogger())

	seed := w.Children(context.Background(), sess, "", opcua.NodeClassAll, false)
	var names []string
	for _, n := range w.Walk(context.Background(), sess, seed, opcua.NodeClassAll, false) {
		names = append(names, n.DisplayName)
	}

	assert.Equal(t, []string{"Line1", "Temp", "Pressure", "Line2", "Flow"}, names)
}

func TestWalkerWalkCycleTerminates(t *testing.T) {
	factory := &mocks.SessionFactory{
		Tree: map[string][]opcua.Node{
			opcua.ObjectsRootID: {node("A", "ns=2;i=1")},
			"ns=2;i=1":          {node("B", "ns=2;i=2")},
			"ns=2;i=2":          {node("A", "ns=2;i=1")},
		},
	}
	sess := openSession(t, factory)
	w := opcua.NewWalker(testLogger())

	seed := w.Children(context.Background(), sess, "", opcua.NodeClassAll, false)
	var names []string
	for _, n := range w.Walk(context.Background(), sess, seed, opcua.NodeClassAll, false) {
		names = append(names, n.DisplayName)
	}

	assert.Equal(t, []string{"A", "B"}, names, "a reference cycle must terminate with each node visited once")
}

func TestWalkerWalkClassFilter(t *testing.T) {
	factory := &mocks.SessionFactory{
		Tree: map[string][]opcua.Node{
			opcua.ObjectsRootID: {
				{DisplayName: "Line1", ID: "ns=2;i=1", Class: opcua.NodeClassObject},
			},
			"ns=2;i=1": {
				{DisplayName: "Temp", ID: "ns=2;i=10", Class: opcua.NodeClassVariable},
				{DisplayName: "Reset", ID: "ns=2;i=11", Class: opcua.NodeClassMethod},
			},
		},
	}
	sess := openSession(t, factory)
	w := opcua.NewWalker(testLogger())

	children, err := sess.Children(context.Background(), "ns=2;i=1", opcua.NodeClassVariable)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "Temp", children[0].DisplayName)

	nodes := w.Children(context.Background(), sess, "ns=2;i=1", opcua.NodeClassVariable|opcua.NodeClassMethod, false)
	var names []string
	for _, n := range nodes {
		names = append(names, n.DisplayName)
	}
	assert.Equal(t, []string{"Temp", "Reset"}, names)
}
