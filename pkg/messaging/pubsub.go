// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package messaging holds the message broker abstraction used to forward
// value changes from the OPC UA server to downstream consumers.
package messaging

import "context"

// Message represents a single value-change record forwarded to the broker.
type Message struct {
	Publisher string `json:"publisher"`
	Protocol  string `json:"protocol"`
	Subtopic  string `json:"subtopic,omitempty"`
	Payload   []byte `json:"payload"`
	Created   int64  `json:"created"`
}

// Publisher specifies message publishing API.
type Publisher interface {
	// Publish publishes message to the given topic.
	Publish(ctx context.Context, topic string, msg *Message) error

	// Close gracefully closes message publisher's connection.
	Close() error
}
