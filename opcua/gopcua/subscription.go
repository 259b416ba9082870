// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

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
	uagopcua "github.com/gopcua/opcua/ua"
)

var _ opcua.SubscriptionContext = (*subscription)(nil)

// monitoredItem is one node bound to a subscription. armed means the
// monitored item exists on the remote.
type monitoredItem struct {
	node    opcua.Node
	handler opcua.ValueHandler
	handle  uint32
	armed   bool
}

// subscription batches monitored-item changes onto one remote
// subscription. The stack cannot delete individual monitored items, so a
// removal of an armed item marks the subscription for rebuild: on the next
// Apply the remote subscription is cancelled and recreated with the
// surviving items.
type subscription struct {
	client   *opcuagopcua.Client
	interval time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	sub        *opcuagopcua.Subscription
	runCancel  context.CancelFunc
	items      map[uint32]*monitoredItem
	order      []uint32
	nextHandle uint32
	rebuild    bool
}

func newSubscription(client *opcuagopcua.Client, sub *opcuagopcua.Subscription, interval time.Duration, logger *slog.Logger) *subscription {
	sc := &subscription{
		client:   client,
		interval: interval,
		logger:   logger,
		items:    make(map[uint32]*monitoredItem),
	}
	sc.attach(sub)
	return sc
}

// Add queues a monitored item for the node. The item reaches the remote on
// the next Apply.
func (sc *subscription) Add(_ context.Context, node opcua.Node, handler opcua.ValueHandler) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.nextHandle++
	handle := sc.nextHandle
	sc.items[handle] = &monitoredItem{
		node:    node,
		handler: handler,
		handle:  handle,
	}
	sc.order = append(sc.order, handle)

	return nil
}

// Remove queues the removal of the monitored item for the node. Removing an
// armed item forces a rebuild of the remote subscription on the next Apply.
func (sc *subscription) Remove(_ context.Context, node opcua.Node) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	for i, handle := range sc.order {
		item := sc.items[handle]
		if item.node.DisplayName != node.DisplayName || item.node.ID != node.ID {
			continue
		}
		if item.armed {
			sc.rebuild = true
		}
		delete(sc.items, handle)
		sc.order = append(sc.order[:i], sc.order[i+1:]...)
		return nil
	}

	return nil
}

// Apply pushes pending changes to the remote: a rebuild first recreates the
// subscription, then every unarmed item is monitored in one batch.
func (sc *subscription) Apply(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.rebuild {
		if err := sc.recreate(); err != nil {
			return err
		}
		sc.rebuild = false
	}

	reqs := make([]*uagopcua.MonitoredItemCreateRequest, 0, len(sc.order))
	pending := make([]*monitoredItem, 0, len(sc.order))
	for _, handle := range sc.order {
		item := sc.items[handle]
		if item.armed {
			continue
		}

		nid, err := uagopcua.ParseNodeID(item.node.ID)
		if err != nil {
			return errors.Wrap(errFailedParseNodeID, err)
		}
		reqs = append(reqs, opcuagopcua.NewMonitoredItemCreateRequestWithDefaults(nid, uagopcua.AttributeIDValue, item.handle))
		pending = append(pending, item)
	}
	if len(reqs) == 0 {
		return nil
	}

	res, err := sc.sub.Monitor(uagopcua.TimestampsToReturnBoth, reqs...)
	if err != nil {
		return errors.Wrap(errFailedCreateReq, err)
	}

	for i, result := range res.Results {
		if result.StatusCode != uagopcua.StatusOK {
			sc.logger.Warn(fmt.Sprintf("monitored item for node %s rejected with status %s", pending[i].node.ID, result.StatusCode))
			continue
		}
		pending[i].armed = true
	}

	return nil
}

// recreate replaces the remote subscription, leaving every item unarmed so
// the caller re-monitors the survivors. Callers hold the mutex.
func (sc *subscription) recreate() error {
	sc.detach()

	sub, err := sc.client.Subscribe(&opcuagopcua.SubscriptionParameters{
		Interval: sc.interval,
	})
	if err != nil {
		return errors.Wrap(errFailedSub, err)
	}
	sc.attach(sub)

	for _, item := range sc.items {
		item.armed = false
	}

	return nil
}

// attach adopts the remote subscription and starts its publish and
// dispatch loops. Callers hold the mutex or own the subscription
// exclusively.
func (sc *subscription) attach(sub *opcuagopcua.Subscription) {
	ctx, cancel := context.WithCancel(context.Background())
	sc.sub = sub
	sc.runCancel = cancel

	go sub.Run(ctx)
	go sc.dispatch(ctx, sub)
}

// detach stops the loops and cancels the remote subscription. Callers hold
// the mutex.
func (sc *subscription) detach() {
	if sc.sub == nil {
		return
	}
	sc.runCancel()
	if err := sc.sub.Cancel(); err != nil {
		sc.logger.Warn(fmt.Sprintf("subscription could not be cancelled: %s", err))
	}
	sc.sub = nil
}

// Items lists the nodes whose monitored item exists on the remote.
func (sc *subscription) Items() []opcua.Node {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	nodes := make([]opcua.Node, 0, len(sc.order))
	for _, handle := range sc.order {
		if item := sc.items[handle]; item.armed {
			nodes = append(nodes, item.node)
		}
	}
	return nodes
}

// Cancel tears the remote subscription down and stops dispatch.
func (sc *subscription) Cancel() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.detach()
	return nil
}

// dispatch fans incoming data-change notifications out to the handlers
// registered for their client handles.
func (sc *subscription) dispatch(ctx context.Context, sub *opcuagopcua.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-sub.Notifs:
			if res == nil {
				return
			}
			if res.Error != nil {
				sc.logger.Warn(fmt.Sprintf("subscription notification error: %s", res.Error))
				continue
			}

			notif, ok := res.Value.(*uagopcua.DataChangeNotification)
			if !ok {
				sc.logger.Info(fmt.Sprintf("unknown publish result: %T", res.Value))
				continue
			}

			for _, item := range notif.MonitoredItems {
				sc.mu.Lock()
				mi, ok := sc.items[item.ClientHandle]
				sc.mu.Unlock()
				if !ok || mi.handler == nil {
					continue
				}
				mi.handler(mi.node, dataValue(item.Value))
			}
		}
	}
}
