// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package opcua_test

import (
	"fmt"
	"testing"

	"github.com/absmach/opcua-bridge/opcua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(name, id string) opcua.Node {
	return opcua.Node{DisplayName: name, Class: opcua.NodeClassVariable, ID: id}
}

func TestStoreReplaceNotDuplicate(t *testing.T) {
	store := opcua.NewReferenceStore()

	var calls []string
	handler := func(tag string) opcua.ValueHandler {
		return func(opcua.Node, opcua.DataValue) {
			calls = append(calls, tag)
		}
	}

	store.Save(node("TestSensor", "ns=2;i=1"), handler("old"))
	store.Save(node("TestSensor", "ns=2;i=1"), handler("new"))

	assert.Equal(t, 1, store.Len(), "saving the same (name, id) pair must replace, not duplicate")

	e, ok := store.Lookup("TestSensor", "ns=2;i=1")
	require.True(t, ok, "entry must be present after replacement")
	e.Handler(opcua.Node{}, opcua.DataValue{})
	assert.Equal(t, []string{"new"}, calls, "old callback must be discarded, new callback active")
}

func TestStoreIdentityLookup(t *testing.T) {
	store := opcua.NewReferenceStore()
	store.Save(node("TestSensor", "ns=2;i=1"), nil)

	cases := []struct {
		desc string
		name string
		id   string
		ok   bool
	}{
		{desc: "matching name and id", name: "TestSensor", id: "ns=2;i=1", ok: true},
		{desc: "matching name, different id", name: "TestSensor", id: "ns=2;i=2", ok: false},
		{desc: "different name, matching id", name: "OtherSensor", id: "ns=2;i=1", ok: false},
	}

	for _, tc := range cases {
		_, ok := store.Lookup(tc.name, tc.id)
		assert.Equal(t, tc.ok, ok, fmt.Sprintf("%s: expected %v got %v", tc.desc, tc.ok, ok))
	}
}

func TestStoreOrder(t *testing.T) {
	store := opcua.NewReferenceStore()
	store.Save(node("A", "i=1"), nil)
	store.Save(node("B", "i=2"), nil)
	store.Save(node("C", "i=3"), nil)
	store.Remove("B", "i=2")

	var names []string
	for _, e := range store.Entries() {
		names = append(names, e.Node.DisplayName)
	}
	assert.Equal(t, []string{"A", "C"}, names, "entries must keep insertion order")
}

func TestStoreClear(t *testing.T) {
	store := opcua.NewReferenceStore()
	store.Save(node("A", "i=1"), nil)
	store.Save(node("B", "i=2"), nil)

	store.Clear()

	assert.Zero(t, store.Len(), "clear must drop every binding")
	assert.Empty(t, store.Entries())
}

func TestStoreRemoveAbsent(t *testing.T) {
	store := opcua.NewReferenceStore()
	store.Save(node("A", "i=1"), nil)

	store.Remove("B", "i=2")

	assert.Equal(t, 1, store.Len(), "removing an absent key must be a no-op")
}
