// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package mocks contains configurable collaborator mocks for the domain
// tests.
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/absmach/opcua-bridge/opcua"
)

// ErrOpenRefused is returned by the factory for failed open attempts.
var ErrOpenRefused = errors.New("connection refused")

// SessionFactory is a configurable opcua.SessionFactory mock.
type SessionFactory struct {
	mu sync.Mutex

	// Fail is the number of initial Open calls to fail; negative fails
	// every call.
	Fail int

	// FailFrom, when positive, fails every Open call starting with the
	// given invocation number.
	FailFrom int

	// Tree maps a node id to its children, shared by created sessions.
	Tree map[string][]opcua.Node

	// ReadResults and ReadErr configure the sessions' batched read.
	ReadResults []opcua.DataValue
	ReadErr     error

	// WriteStatuses and WriteErr configure the sessions' batched write.
	// Missing statuses are padded with StatusOK.
	WriteStatuses []opcua.Status
	WriteErr      error

	// SubErr makes subscription context creation fail.
	SubErr error

	// ReconnectErr makes the sessions' in-place reconnect fail.
	ReconnectErr error

	opens int
	last  *Session
}

var _ opcua.SessionFactory = (*SessionFactory)(nil)

// Open creates a new mock session unless configured to fail.
func (f *SessionFactory) Open(_ context.Context, endpointURI string, _ opcua.SessionConfig) (opcua.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.opens++
	if f.Fail < 0 || f.opens <= f.Fail {
		return nil, ErrOpenRefused
	}
	if f.FailFrom > 0 && f.opens >= f.FailFrom {
		return nil, ErrOpenRefused
	}

	s := &Session{
		factory:   f,
		endpoint:  endpointURI,
		connected: true,
		liveness:  make(chan opcua.LivenessStatus, 1),
	}
	f.last = s

	return s, nil
}

// Opens returns the number of Open invocations.
func (f *SessionFactory) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// Last returns the session created by the most recent successful Open.
func (f *SessionFactory) Last() *Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// Session is the mock session created by SessionFactory.
type Session struct {
	mu        sync.Mutex
	factory   *SessionFactory
	endpoint  string
	connected bool
	closed    bool
	liveness   chan opcua.LivenessStatus
	sub        *Subscription
	written    []opcua.WriteItem
	reconnects int
}

var _ opcua.Session = (*Session)(nil)

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected = false
	if !s.closed {
		s.closed = true
		close(s.liveness)
	}
	return nil
}

func (s *Session) Reconnect(_ context.Context) error {
	s.mu.Lock()
	s.reconnects++
	s.mu.Unlock()
	return s.factory.ReconnectErr
}

// Reconnects returns the number of in-place reconnect attempts.
func (s *Session) Reconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

func (s *Session) Children(_ context.Context, nodeID string, classes opcua.NodeClass) ([]opcua.Node, error) {
	children := s.factory.Tree[nodeID]
	nodes := make([]opcua.Node, 0, len(children))
	for _, n := range children {
		if classes != opcua.NodeClassUnspecified && n.Class != opcua.NodeClassUnspecified && classes&n.Class == 0 {
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (s *Session) Read(_ context.Context, nodes []opcua.Node) ([]opcua.DataValue, error) {
	if s.factory.ReadErr != nil {
		return nil, s.factory.ReadErr
	}
	if s.factory.ReadResults != nil {
		return s.factory.ReadResults, nil
	}
	return make([]opcua.DataValue, len(nodes)), nil
}

func (s *Session) Write(_ context.Context, items []opcua.WriteItem) ([]opcua.Status, error) {
	s.mu.Lock()
	s.written = append(s.written, items...)
	s.mu.Unlock()

	if s.factory.WriteErr != nil {
		return nil, s.factory.WriteErr
	}

	statuses := make([]opcua.Status, len(items))
	copy(statuses, s.factory.WriteStatuses)
	return statuses, nil
}

func (s *Session) NewSubscription(_ context.Context, _ time.Duration) (opcua.SubscriptionContext, error) {
	if s.factory.SubErr != nil {
		return nil, s.factory.SubErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sub = NewSubscription()
	return s.sub, nil
}

func (s *Session) Liveness() <-chan opcua.LivenessStatus {
	return s.liveness
}

// PushLiveness delivers one keep-alive result to the controller.
func (s *Session) PushLiveness(status opcua.LivenessStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.liveness <- status
}

// Subscription returns the subscription context created on this session.
func (s *Session) Subscription() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub
}

// Written returns every write item the session received.
func (s *Session) Written() []opcua.WriteItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]opcua.WriteItem{}, s.written...)
}
