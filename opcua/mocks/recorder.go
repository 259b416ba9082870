// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"sync"

	"github.com/absmach/opcua-bridge/opcua"
)

var _ opcua.SubscriptionRecorder = (*Recorder)(nil)

// Recorder is an in-memory opcua.SubscriptionRecorder mock.
type Recorder struct {
	mu sync.Mutex

	// Err makes every operation fail.
	Err error

	records []opcua.Record
}

func (r *Recorder) Save(endpointURI string, node opcua.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}

	for i, rec := range r.records {
		if rec.EndpointURI == endpointURI && rec.Node.DisplayName == node.DisplayName && rec.Node.ID == node.ID {
			r.records = append(r.records[:i], r.records[i+1:]...)
			break
		}
	}
	r.records = append(r.records, opcua.Record{EndpointURI: endpointURI, Node: node})
	return nil
}

func (r *Recorder) Remove(endpointURI string, node opcua.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}

	for i, rec := range r.records {
		if rec.EndpointURI == endpointURI && rec.Node.DisplayName == node.DisplayName && rec.Node.ID == node.ID {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *Recorder) ReadAll() ([]opcua.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}
	return append([]opcua.Record{}, r.records...), nil
}
