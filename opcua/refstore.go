// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package opcua

// subKey is the identity of a subscription target. Wire representations of
// node references do not compare equal by value across browse calls, so the
// store keys on the canonical (display name, node id) pair instead.
type subKey struct {
	name string
	id   string
}

// Entry is one reference-store binding.
type Entry struct {
	Node    Node
	Handler ValueHandler
}

// ReferenceStore is an ordered mapping from discovered nodes to the
// live-update callbacks registered for them. It is the only durable record
// of what should be live: it survives disconnects and reconnects and is
// cleared only explicitly.
//
// The store does no locking; the owning controller serializes access.
type ReferenceStore struct {
	order []subKey
	refs  map[subKey]Entry
}

// NewReferenceStore returns an empty reference store.
func NewReferenceStore() *ReferenceStore {
	return &ReferenceStore{
		refs: make(map[subKey]Entry),
	}
}

// Save binds the node to the handler. Saving a node already present first
// removes the prior entry, so a re-subscription replaces rather than
// duplicates.
func (rs *ReferenceStore) Save(node Node, handler ValueHandler) {
	key := subKey{name: node.DisplayName, id: node.ID}
	if _, ok := rs.refs[key]; ok {
		rs.remove(key)
	}
	rs.order = append(rs.order, key)
	rs.refs[key] = Entry{Node: node, Handler: handler}
}

// Lookup recovers the entry for the given display name and node id.
func (rs *ReferenceStore) Lookup(displayName, nodeID string) (Entry, bool) {
	e, ok := rs.refs[subKey{name: displayName, id: nodeID}]
	return e, ok
}

// Remove drops the entry for the given display name and node id.
func (rs *ReferenceStore) Remove(displayName, nodeID string) {
	rs.remove(subKey{name: displayName, id: nodeID})
}

func (rs *ReferenceStore) remove(key subKey) {
	if _, ok := rs.refs[key]; !ok {
		return
	}
	delete(rs.refs, key)
	for i, k := range rs.order {
		if k == key {
			rs.order = append(rs.order[:i], rs.order[i+1:]...)
			break
		}
	}
}

// Entries returns the bindings in insertion order.
func (rs *ReferenceStore) Entries() []Entry {
	entries := make([]Entry, 0, len(rs.order))
	for _, k := range rs.order {
		entries = append(entries, rs.refs[k])
	}
	return entries
}

// Len returns the number of bindings.
func (rs *ReferenceStore) Len() int {
	return len(rs.order)
}

// Clear drops every binding. Called on explicit clear or endpoint reset,
// never implicitly by disconnect.
func (rs *ReferenceStore) Clear() {
	rs.order = nil
	rs.refs = make(map[subKey]Entry)
}
