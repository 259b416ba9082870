// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sync"

	"github.com/absmach/opcua-bridge/opcua/events"
	"github.com/absmach/opcua-bridge/pkg/messaging"
)

// Published is one recorded broker publish.
type Published struct {
	Topic   string
	Message *messaging.Message
}

var _ messaging.Publisher = (*Publisher)(nil)

// Publisher is a recording messaging.Publisher mock.
type Publisher struct {
	mu sync.Mutex

	// Err makes every publish fail.
	Err error

	published []Published
}

func (p *Publisher) Publish(_ context.Context, topic string, msg *messaging.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return p.Err
	}
	p.published = append(p.published, Published{Topic: topic, Message: msg})
	return nil
}

func (p *Publisher) Close() error {
	return nil
}

// Published returns every recorded publish in order.
func (p *Publisher) Published() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published{}, p.published...)
}

var _ events.Publisher = (*EventStore)(nil)

// EventStore is a recording events.Publisher mock.
type EventStore struct {
	mu sync.Mutex

	// Err makes every publish fail.
	Err error

	events []events.ConnectionEvent
}

func (es *EventStore) Publish(_ context.Context, event events.ConnectionEvent) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.Err != nil {
		return es.Err
	}
	es.events = append(es.events, event)
	return nil
}

// Events returns every recorded event in order.
func (es *EventStore) Events() []events.ConnectionEvent {
	es.mu.Lock()
	defer es.mu.Unlock()
	return append([]events.ConnectionEvent{}, es.events...)
}
