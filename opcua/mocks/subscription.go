// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sync"

	"github.com/absmach/opcua-bridge/opcua"
)

// AddRecord is one recorded monitored-item addition.
type AddRecord struct {
	Node    opcua.Node
	Handler opcua.ValueHandler
}

// Subscription is a recording opcua.SubscriptionContext mock.
type Subscription struct {
	mu sync.Mutex

	// AddErr, RemoveErr and ApplyErr configure failures.
	AddErr    error
	RemoveErr error
	ApplyErr  error

	added     []AddRecord
	removed   []opcua.Node
	applies   int
	cancelled bool

	items map[string]AddRecord
}

var _ opcua.SubscriptionContext = (*Subscription)(nil)

// NewSubscription returns an empty subscription mock.
func NewSubscription() *Subscription {
	return &Subscription{items: make(map[string]AddRecord)}
}

func (s *Subscription) Add(_ context.Context, node opcua.Node, handler opcua.ValueHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AddErr != nil {
		return s.AddErr
	}
	rec := AddRecord{Node: node, Handler: handler}
	s.added = append(s.added, rec)
	s.items[node.ID] = rec
	return nil
}

func (s *Subscription) Remove(_ context.Context, node opcua.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.RemoveErr != nil {
		return s.RemoveErr
	}
	s.removed = append(s.removed, node)
	delete(s.items, node.ID)
	return nil
}

func (s *Subscription) Apply(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ApplyErr != nil {
		return s.ApplyErr
	}
	s.applies++
	return nil
}

func (s *Subscription) Items() []opcua.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := make([]opcua.Node, 0, len(s.items))
	for _, rec := range s.items {
		nodes = append(nodes, rec.Node)
	}
	return nodes
}

func (s *Subscription) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	return nil
}

// Added returns every recorded addition in order.
func (s *Subscription) Added() []AddRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AddRecord{}, s.added...)
}

// Removed returns every recorded removal in order.
func (s *Subscription) Removed() []opcua.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]opcua.Node{}, s.removed...)
}

// Applies returns the number of batch pushes.
func (s *Subscription) Applies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applies
}

// Cancelled reports whether the context was torn down.
func (s *Subscription) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}
