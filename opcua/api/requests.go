// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"github.com/absmach/opcua-bridge/opcua"
	"github.com/absmach/opcua-bridge/pkg/apiutil"
)

type browseReq struct {
	RootID               string
	Deep                 bool
	IncludeServerSubtree bool
}

func (req *browseReq) validate() error {
	return nil
}

type readReq struct {
	Nodes []opcua.Node `json:"nodes"`
}

func (req *readReq) validate() error {
	if len(req.Nodes) == 0 {
		return apiutil.ErrEmptyBatch
	}
	for _, n := range req.Nodes {
		if n.ID == "" {
			return apiutil.ErrMissingNodeID
		}
	}

	return nil
}

type writeReq struct {
	Nodes []opcua.Node `json:"nodes"`
	Value interface{}  `json:"value"`
}

func (req *writeReq) validate() error {
	if len(req.Nodes) == 0 {
		return apiutil.ErrEmptyBatch
	}
	for _, n := range req.Nodes {
		if n.ID == "" {
			return apiutil.ErrMissingNodeID
		}
	}

	return nil
}

type subscribeReq struct {
	Node opcua.Node `json:"node"`
}

func (req *subscribeReq) validate() error {
	if req.Node.ID == "" {
		return apiutil.ErrMissingNodeID
	}

	return nil
}

type unsubscribeReq struct {
	DisplayName string
	ID          string
}

func (req *unsubscribeReq) validate() error {
	if req.ID == "" {
		return apiutil.ErrMissingNodeID
	}

	return nil
}

type endpointReq struct {
	EndpointURI string `json:"endpoint_uri"`
}

func (req *endpointReq) validate() error {
	if req.EndpointURI == "" {
		return apiutil.ErrMissingEndpointURI
	}

	return nil
}

type connReq struct{}

func (req *connReq) validate() error {
	return nil
}
