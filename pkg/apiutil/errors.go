// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package apiutil

import "github.com/absmach/opcua-bridge/pkg/errors"

var (
	// ErrValidation indicates that an error was returned by the API.
	ErrValidation = errors.New("something went wrong with the request")

	// ErrMissingNodeID indicates a missing node identifier.
	ErrMissingNodeID = errors.New("missing node id")

	// ErrMissingEndpointURI indicates a missing endpoint URI.
	ErrMissingEndpointURI = errors.New("missing endpoint uri")

	// ErrEmptyBatch indicates a read or write request without nodes.
	ErrEmptyBatch = errors.New("empty node batch")

	// ErrInvalidQueryParams indicates invalid query parameters.
	ErrInvalidQueryParams = errors.New("invalid query parameters")
)
