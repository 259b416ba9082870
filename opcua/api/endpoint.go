// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"

	"github.com/absmach/opcua-bridge/opcua"
	"github.com/absmach/opcua-bridge/pkg/apiutil"
	"github.com/absmach/opcua-bridge/pkg/errors"
	"github.com/go-kit/kit/endpoint"
)

func browseEndpoint(svc opcua.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(browseReq)

		if err := req.validate(); err != nil {
			return nil, errors.Wrap(apiutil.ErrValidation, err)
		}

		nodes, err := svc.Browse(ctx, req.RootID, req.Deep, req.IncludeServerSubtree)
		if err != nil {
			return nil, err
		}

		return browseRes{Nodes: nodes}, nil
	}
}

func readEndpoint(svc opcua.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(readReq)

		if err := req.validate(); err != nil {
			return nil, errors.Wrap(apiutil.ErrValidation, err)
		}

		vals, err := svc.Read(ctx, req.Nodes)
		if err != nil {
			return nil, err
		}

		return readRes{Values: vals}, nil
	}
}

func writeEndpoint(svc opcua.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(writeReq)

		if err := req.validate(); err != nil {
			return nil, errors.Wrap(apiutil.ErrValidation, err)
		}

		if err := svc.Write(ctx, req.Nodes, req.Value); err != nil {
			return nil, err
		}

		return writeRes{}, nil
	}
}

func subscribeEndpoint(svc opcua.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(subscribeReq)

		if err := req.validate(); err != nil {
			return nil, errors.Wrap(apiutil.ErrValidation, err)
		}

		if err := svc.Subscribe(ctx, req.Node); err != nil {
			return nil, err
		}

		return subscribeRes{Node: req.Node}, nil
	}
}

func unsubscribeEndpoint(svc opcua.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(unsubscribeReq)

		if err := req.validate(); err != nil {
			return nil, errors.Wrap(apiutil.ErrValidation, err)
		}

		node := opcua.Node{DisplayName: req.DisplayName, ID: req.ID}
		if err := svc.Unsubscribe(ctx, node); err != nil {
			return nil, err
		}

		return removeRes{}, nil
	}
}

func subscriptionsEndpoint(svc opcua.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		nodes, err := svc.Subscriptions(ctx)
		if err != nil {
			return nil, err
		}

		return subscriptionsRes{Nodes: nodes}, nil
	}
}

func connectEndpoint(svc opcua.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		if err := svc.Connect(ctx); err != nil {
			return nil, err
		}

		return statusEndpoint(svc)(ctx, nil)
	}
}

func disconnectEndpoint(svc opcua.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		if err := svc.Disconnect(ctx); err != nil {
			return nil, err
		}

		return statusEndpoint(svc)(ctx, nil)
	}
}

func reconnectEndpoint(svc opcua.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		if err := svc.Reconnect(ctx); err != nil {
			return nil, err
		}

		return statusEndpoint(svc)(ctx, nil)
	}
}

func endpointResetEndpoint(svc opcua.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(endpointReq)

		if err := req.validate(); err != nil {
			return nil, errors.Wrap(apiutil.ErrValidation, err)
		}

		if err := svc.ResetEndpoint(ctx, req.EndpointURI); err != nil {
			return nil, err
		}

		return statusEndpoint(svc)(ctx, nil)
	}
}

func statusEndpoint(svc opcua.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		status, err := svc.Status(ctx)
		if err != nil {
			return nil, err
		}

		return statusRes{ConnStatus: status}, nil
	}
}
