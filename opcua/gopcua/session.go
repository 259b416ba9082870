// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package gopcua implements the session abstraction on top of the gopcua
// protocol stack.
package gopcua

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/opcua-bridge/opcua"
	"github.com/absmach/opcua-bridge/pkg/errors"
	opcuagopcua "github.com/gopcua/opcua"
	"github.com/gopcua/opcua/id"
	uagopcua "github.com/gopcua/opcua/ua"
)

const (
	maxReadAge        = 2000
	defaultKeepAlive  = 5 * time.Second
	livenessQueueSize = 1
)

var (
	errFailedConn          = errors.New("failed to connect")
	errFailedRead          = errors.New("failed to read")
	errFailedWrite         = errors.New("failed to write")
	errFailedBrowse        = errors.New("failed to browse")
	errFailedSub           = errors.New("failed to subscribe")
	errFailedFindEndpoint  = errors.New("failed to find suitable endpoint")
	errFailedFetchEndpoint = errors.New("failed to fetch OPC-UA server endpoints")
	errFailedParseNodeID   = errors.New("failed to parse NodeID")
	errFailedCreateReq     = errors.New("failed to create request")
	errResponseStatus      = errors.New("response status not OK")

	// errReactivate is permanent: the stack cannot re-activate a session
	// over a fresh secure channel, so recovery always means a new session.
	errReactivate = errors.New("session re-activation not supported by the protocol stack")
)

// ClientConfig carries the transport security settings shared by every
// session the factory opens. An empty Mode selects an unsecured channel.
type ClientConfig struct {
	Policy   string
	Mode     string
	CertFile string
	KeyFile  string
}

var _ opcua.SessionFactory = (*SessionFactory)(nil)

// SessionFactory opens gopcua-backed sessions.
type SessionFactory struct {
	cfg    ClientConfig
	logger *slog.Logger
}

// NewSessionFactory returns a session factory with the given security
// settings.
func NewSessionFactory(cfg ClientConfig, logger *slog.Logger) *SessionFactory {
	return &SessionFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// Open negotiates a secure channel to the endpoint and activates a session
// on it. The returned session runs a keep-alive loop until closed.
func (f *SessionFactory) Open(ctx context.Context, endpointURI string, cfg opcua.SessionConfig) (opcua.Session, error) {
	opts, err := f.securityOptions(endpointURI)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		opts = append(opts, opcuagopcua.SessionTimeout(cfg.Timeout))
	}

	c := opcuagopcua.NewClient(endpointURI, opts...)
	if err := c.Connect(ctx); err != nil {
		return nil, errors.Wrap(errFailedConn, err)
	}

	s := &session{
		client:    c,
		logger:    f.logger,
		connected: true,
		done:      make(chan struct{}),
		liveness:  make(chan opcua.LivenessStatus, livenessQueueSize),
	}

	interval := cfg.KeepAliveInterval
	if interval <= 0 {
		interval = defaultKeepAlive
	}
	go s.keepAlive(interval)

	return s, nil
}

func (f *SessionFactory) securityOptions(endpointURI string) ([]opcuagopcua.Option, error) {
	if f.cfg.Mode == "" {
		return []opcuagopcua.Option{
			opcuagopcua.SecurityMode(uagopcua.MessageSecurityModeNone),
		}, nil
	}

	endpoints, err := opcuagopcua.GetEndpoints(endpointURI)
	if err != nil {
		return nil, errors.Wrap(errFailedFetchEndpoint, err)
	}

	ep := opcuagopcua.SelectEndpoint(endpoints, f.cfg.Policy, uagopcua.MessageSecurityModeFromString(f.cfg.Mode))
	if ep == nil {
		return nil, errFailedFindEndpoint
	}

	return []opcuagopcua.Option{
		opcuagopcua.SecurityPolicy(f.cfg.Policy),
		opcuagopcua.SecurityModeString(f.cfg.Mode),
		opcuagopcua.CertificateFile(f.cfg.CertFile),
		opcuagopcua.PrivateKeyFile(f.cfg.KeyFile),
		opcuagopcua.AuthAnonymous(),
		opcuagopcua.SecurityFromEndpoint(ep, uagopcua.UserTokenTypeAnonymous),
	}, nil
}

var _ opcua.Session = (*session)(nil)

type session struct {
	client *opcuagopcua.Client
	logger *slog.Logger

	mu        sync.Mutex
	connected bool

	closeOnce sync.Once
	done      chan struct{}
	liveness  chan opcua.LivenessStatus
}

func (s *session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()

		close(s.done)
		err = s.client.Close()
	})
	return err
}

// Reconnect always fails: the stack has no session re-activation, so the
// caller falls through to a full reconnect with resubscription.
func (s *session) Reconnect(_ context.Context) error {
	return errReactivate
}

// Children browses the forward hierarchical references of the node,
// following component, organizes and property references, and describes
// each target.
func (s *session) Children(_ context.Context, nodeID string, classes opcua.NodeClass) ([]opcua.Node, error) {
	n, err := uagopcua.ParseNodeID(nodeID)
	if err != nil {
		return nil, errors.Wrap(errFailedParseNodeID, err)
	}
	node := s.client.Node(n)

	var children []opcua.Node
	for _, refType := range []uint32{id.HasComponent, id.Organizes, id.HasProperty} {
		refs, err := node.ReferencedNodes(refType, uagopcua.BrowseDirectionForward, uagopcua.NodeClassAll, true)
		if err != nil {
			return nil, errors.Wrap(errFailedBrowse, err)
		}

		for _, rn := range refs {
			child, err := s.describe(rn)
			if err != nil {
				s.logger.Warn(fmt.Sprintf("failed to describe node %s: %s", rn.ID.String(), err))
				continue
			}
			if classes != opcua.NodeClassUnspecified && child.Class != opcua.NodeClassUnspecified && classes&child.Class == 0 {
				continue
			}
			children = append(children, child)
		}
	}

	return children, nil
}

func (s *session) describe(n *opcuagopcua.Node) (opcua.Node, error) {
	attrs, err := n.Attributes(
		uagopcua.AttributeIDNodeClass,
		uagopcua.AttributeIDBrowseName,
	)
	if err != nil {
		return opcua.Node{}, err
	}

	node := opcua.Node{
		ID: nodeIDString(n.ID),
	}

	switch st := attrs[0].Status; st {
	case uagopcua.StatusOK:
		node.Class = opcua.NodeClass(attrs[0].Value.Int())
	default:
		return opcua.Node{}, st
	}

	switch st := attrs[1].Status; st {
	case uagopcua.StatusOK:
		node.DisplayName = attrs[1].Value.String()
	default:
		return opcua.Node{}, st
	}

	return node, nil
}

// Read executes one batched read of the current-value attribute.
func (s *session) Read(_ context.Context, nodes []opcua.Node) ([]opcua.DataValue, error) {
	ids := make([]*uagopcua.ReadValueID, 0, len(nodes))
	for _, n := range nodes {
		nid, err := uagopcua.ParseNodeID(n.ID)
		if err != nil {
			return nil, errors.Wrap(errFailedParseNodeID, err)
		}
		ids = append(ids, &uagopcua.ReadValueID{NodeID: nid})
	}

	req := &uagopcua.ReadRequest{
		MaxAge:             maxReadAge,
		NodesToRead:        ids,
		TimestampsToReturn: uagopcua.TimestampsToReturnBoth,
	}

	resp, err := s.client.Read(req)
	if err != nil {
		return nil, errors.Wrap(errFailedRead, err)
	}

	vals := make([]opcua.DataValue, 0, len(resp.Results))
	for _, res := range resp.Results {
		vals = append(vals, dataValue(res))
	}

	return vals, nil
}

// Write executes one batched write of the current-value attribute and
// returns the per-item status codes in request order.
func (s *session) Write(_ context.Context, items []opcua.WriteItem) ([]opcua.Status, error) {
	writes := make([]*uagopcua.WriteValue, 0, len(items))
	for _, item := range items {
		nid, err := uagopcua.ParseNodeID(item.Node.ID)
		if err != nil {
			return nil, errors.Wrap(errFailedParseNodeID, err)
		}
		variant, err := uagopcua.NewVariant(item.Value)
		if err != nil {
			return nil, errors.Wrap(errFailedCreateReq, err)
		}

		writes = append(writes, &uagopcua.WriteValue{
			NodeID:      nid,
			AttributeID: uagopcua.AttributeIDValue,
			IndexRange:  item.IndexRange,
			Value: &uagopcua.DataValue{
				EncodingMask: uagopcua.DataValueValue,
				Value:        variant,
			},
		})
	}

	resp, err := s.client.Write(&uagopcua.WriteRequest{NodesToWrite: writes})
	if err != nil {
		return nil, errors.Wrap(errFailedWrite, err)
	}

	statuses := make([]opcua.Status, 0, len(resp.Results))
	for _, st := range resp.Results {
		statuses = append(statuses, opcua.Status(st))
	}

	return statuses, nil
}

// NewSubscription activates a subscription with the given publishing
// interval and starts its notification dispatch.
func (s *session) NewSubscription(_ context.Context, publishingInterval time.Duration) (opcua.SubscriptionContext, error) {
	sub, err := s.client.Subscribe(&opcuagopcua.SubscriptionParameters{
		Interval: publishingInterval,
	})
	if err != nil {
		return nil, errors.Wrap(errFailedSub, err)
	}

	return newSubscription(s.client, sub, publishingInterval, s.logger), nil
}

func (s *session) Liveness() <-chan opcua.LivenessStatus {
	return s.liveness
}

// keepAlive reads the server status variable on every tick and reports the
// outcome on the liveness channel. The channel is bounded; a send blocks
// until the consumer catches up or the session closes. The loop owns the
// channel and closes it on exit.
func (s *session) keepAlive(interval time.Duration) {
	defer close(s.liveness)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			status := opcua.LivenessOK
			if err := s.ping(); err != nil {
				s.logger.Warn(fmt.Sprintf("keep-alive check failed: %s", err))
				status = opcua.LivenessBad
			}

			select {
			case s.liveness <- status:
			case <-s.done:
				return
			}
		}
	}
}

func (s *session) ping() error {
	nid, err := uagopcua.ParseNodeID(opcua.ServerStatusID)
	if err != nil {
		return errors.Wrap(errFailedParseNodeID, err)
	}

	req := &uagopcua.ReadRequest{
		MaxAge:             maxReadAge,
		NodesToRead:        []*uagopcua.ReadValueID{{NodeID: nid}},
		TimestampsToReturn: uagopcua.TimestampsToReturnNeither,
	}

	resp, err := s.client.Read(req)
	if err != nil {
		return errors.Wrap(errFailedRead, err)
	}
	if resp.Results[0].Status != uagopcua.StatusOK {
		return errResponseStatus
	}

	return nil
}

// nodeIDString renders the canonical string form of a node identifier,
// namespace prefix included.
func nodeIDString(n *uagopcua.NodeID) string {
	if n == nil {
		return ""
	}
	if n.Namespace() == 0 {
		return n.String()
	}
	return fmt.Sprintf("ns=%d;%s", n.Namespace(), n.String())
}

// dataValue converts a wire data value into the domain representation.
func dataValue(res *uagopcua.DataValue) opcua.DataValue {
	dv := opcua.DataValue{
		Status:     opcua.Status(res.Status),
		SourceTime: res.SourceTimestamp,
	}
	if res.Value != nil {
		dv.Type = res.Value.Type().String()
		dv.Value = decode(res.Value)
	}
	return dv
}

func decode(v *uagopcua.Variant) interface{} {
	switch v.Type() {
	case uagopcua.TypeIDBoolean:
		return v.Bool()
	case uagopcua.TypeIDString, uagopcua.TypeIDByteString:
		return v.String()
	case uagopcua.TypeIDInt64, uagopcua.TypeIDInt32, uagopcua.TypeIDInt16, uagopcua.TypeIDSByte:
		return v.Int()
	case uagopcua.TypeIDUint64, uagopcua.TypeIDUint32, uagopcua.TypeIDUint16, uagopcua.TypeIDByte:
		return v.Uint()
	case uagopcua.TypeIDFloat, uagopcua.TypeIDDouble:
		return v.Float()
	case uagopcua.TypeIDDateTime:
		return v.Time()
	default:
		return v.Value()
	}
}
