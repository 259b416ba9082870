// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package opcua implements the client-side connection manager for one OPC
// UA endpoint: the connection state machine, durable subscriptions that
// survive session loss, address-space browsing and value I/O. The wire
// protocol itself is delegated to an external stack behind the Session
// interfaces.
package opcua

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/opcua-bridge/opcua/events"
	"github.com/absmach/opcua-bridge/pkg/errors"
	"github.com/absmach/opcua-bridge/pkg/messaging"
)

const (
	protocol       = "opcua"
	telemetryTopic = "messages"
)

var (
	// ErrFailedConnect indicates connect retries to the endpoint were
	// exhausted.
	ErrFailedConnect = errors.New("failed to connect to the endpoint")

	// ErrFailedReconnect indicates the endpoint could not be reconnected
	// and resubscribed.
	ErrFailedReconnect = errors.New("failed to reconnect to the endpoint")

	// ErrFailedSubscribe indicates a monitored item could not be armed.
	ErrFailedSubscribe = errors.New("failed to subscribe to the node")
)

// Service specifies an API that must be fullfiled by the bridge service
// implementation, and all of its decorators (e.g. logging & metrics).
type Service interface {
	// Connect establishes a session against the configured endpoint.
	Connect(ctx context.Context) error

	// Disconnect tears the session down. Stored subscriptions are kept for
	// later replay.
	Disconnect(ctx context.Context) error

	// Reconnect drops the session and replays every stored subscription
	// against a fresh one.
	Reconnect(ctx context.Context) error

	// ResetEndpoint redirects the bridge to a different remote, dropping
	// all subscriptions.
	ResetEndpoint(ctx context.Context, endpointURI string) error

	// Browse lists the children of the node (the objects container when
	// rootID is empty), or the full subtree when deep is set.
	Browse(ctx context.Context, rootID string, deep, includeServerSubtree bool) ([]Node, error)

	// Subscribe arms a monitored item on the node and republishes its data
	// changes to the message broker.
	Subscribe(ctx context.Context, node Node) error

	// Unsubscribe removes the node's monitored item and stored binding.
	Unsubscribe(ctx context.Context, node Node) error

	// Subscriptions lists the stored subscription targets.
	Subscriptions(ctx context.Context) ([]Node, error)

	// Read returns the current values of the nodes.
	Read(ctx context.Context, nodes []Node) ([]DataValue, error)

	// Write writes the value to every node in one batch; it fails unless
	// every per-item status is good.
	Write(ctx context.Context, nodes []Node, value interface{}) error

	// Status returns a snapshot of the connection state.
	Status(ctx context.Context) (ConnStatus, error)
}

// SubscriptionRecorder persists subscription records across process
// restarts, so the bridge resubscribes after a restart the same way the
// controller resubscribes after session loss.
type SubscriptionRecorder interface {
	// Save stores a successful subscription.
	Save(endpointURI string, node Node) error

	// Remove drops the stored subscription.
	Remove(endpointURI string, node Node) error

	// ReadAll returns all stored subscriptions.
	ReadAll() ([]Record, error)
}

// Record is one durable subscription record.
type Record struct {
	EndpointURI string
	Node        Node
}

var _ Service = (*bridgeService)(nil)

type bridgeService struct {
	controller *ConnectionController
	publisher  messaging.Publisher
	recorder   SubscriptionRecorder
	es         events.Publisher
	logger     *slog.Logger
}

// New instantiates the OPC UA bridge service.
func New(controller *ConnectionController, pub messaging.Publisher, recorder SubscriptionRecorder, es events.Publisher, logger *slog.Logger) Service {
	return &bridgeService{
		controller: controller,
		publisher:  pub,
		recorder:   recorder,
		es:         es,
		logger:     logger,
	}
}

func (bs *bridgeService) Connect(ctx context.Context) error {
	if !bs.controller.Connect(ctx) {
		return ErrFailedConnect
	}
	bs.emit(ctx, events.OpConnect, "")
	return nil
}

func (bs *bridgeService) Disconnect(ctx context.Context) error {
	bs.controller.Disconnect()
	bs.emit(ctx, events.OpDisconnect, "")
	return nil
}

func (bs *bridgeService) Reconnect(ctx context.Context) error {
	if !bs.controller.Reconnect(ctx) {
		return ErrFailedReconnect
	}
	bs.emit(ctx, events.OpReconnect, "")
	return nil
}

func (bs *bridgeService) ResetEndpoint(ctx context.Context, endpointURI string) error {
	bs.controller.ResetEndpoint(endpointURI)
	bs.emit(ctx, events.OpEndpointReset, "")
	return nil
}

func (bs *bridgeService) Browse(ctx context.Context, rootID string, deep, includeServerSubtree bool) ([]Node, error) {
	if deep {
		return bs.controller.BrowseTree(ctx, rootID, NodeClassAll, includeServerSubtree), nil
	}
	return bs.controller.Browse(ctx, rootID, NodeClassAll, includeServerSubtree), nil
}

func (bs *bridgeService) Subscribe(ctx context.Context, node Node) error {
	if !bs.controller.Subscribe(ctx, node, bs.forward()) {
		return ErrFailedSubscribe
	}

	if err := bs.recorder.Save(bs.controller.Status().Endpoint, node); err != nil {
		bs.logger.Warn(fmt.Sprintf("failed to store subscription record for node %s: %s", node.ID, err))
	}
	bs.emit(ctx, events.OpSubscribe, node.ID)

	return nil
}

func (bs *bridgeService) Unsubscribe(ctx context.Context, node Node) error {
	bs.controller.Unsubscribe(ctx, node)

	if err := bs.recorder.Remove(bs.controller.Status().Endpoint, node); err != nil {
		bs.logger.Warn(fmt.Sprintf("failed to drop subscription record for node %s: %s", node.ID, err))
	}
	bs.emit(ctx, events.OpUnsubscribe, node.ID)

	return nil
}

func (bs *bridgeService) Subscriptions(_ context.Context) ([]Node, error) {
	return bs.controller.Subscriptions(), nil
}

func (bs *bridgeService) Read(ctx context.Context, nodes []Node) ([]DataValue, error) {
	vals := bs.controller.Read(ctx, nodes)
	if vals == nil {
		return nil, errors.ErrNotConnected
	}
	return vals, nil
}

func (bs *bridgeService) Write(ctx context.Context, nodes []Node, value interface{}) error {
	if bs.controller.Write(ctx, nodes, value) {
		return nil
	}
	if !bs.controller.Status().SessionAlive {
		return errors.ErrNotConnected
	}
	return errors.ErrWriteRejected
}

func (bs *bridgeService) Status(_ context.Context) (ConnStatus, error) {
	return bs.controller.Status(), nil
}

// forward returns the default data-change handler for the node: it
// republishes every notification onto the message broker as SenML. It runs
// on the transport's dispatch path, so publish failures are logged and
// dropped rather than retried.
func (bs *bridgeService) forward() ValueHandler {
	return func(n Node, v DataValue) {
		msg := &messaging.Message{
			Publisher: bs.controller.Status().Endpoint,
			Protocol:  protocol,
			Subtopic:  n.ID,
			Payload:   encodeSenML(n, v),
			Created:   time.Now().UnixNano(),
		}
		if err := bs.publisher.Publish(context.Background(), telemetryTopic, msg); err != nil {
			bs.logger.Error(fmt.Sprintf("failed to publish data change of node %s: %s", n.ID, err))
			return
		}
		bs.logger.Debug(fmt.Sprintf("published data change of node %s with value %v", n.ID, v.Value))
	}
}

// emit publishes a lifecycle event, best effort.
func (bs *bridgeService) emit(ctx context.Context, operation, nodeID string) {
	if bs.es == nil {
		return
	}

	status := bs.controller.Status()
	event := events.ConnectionEvent{
		Operation: operation,
		Endpoint:  status.Endpoint,
		NodeID:    nodeID,
		Operating: status.Operating,
		Occurred:  time.Now().UnixNano(),
	}
	if err := bs.es.Publish(ctx, event); err != nil {
		bs.logger.Warn(fmt.Sprintf("failed to publish %s event: %s", operation, err))
	}
}

// encodeSenML renders one data change as a single-record SenML payload.
func encodeSenML(n Node, v DataValue) []byte {
	key := "v"
	switch v.Value.(type) {
	case bool:
		key = "vb"
	case string:
		key = "vs"
	}

	val := v.Value
	if s, ok := val.(string); ok {
		val = fmt.Sprintf("%q", s)
	}

	return []byte(fmt.Sprintf(`[{"n":%q,"t":%d,%q:%v}]`, n.DisplayName, v.SourceTime.Unix(), key, val))
}
