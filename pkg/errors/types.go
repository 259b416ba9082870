// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package errors

// Errors shared by the API surface and the domain service.
var (
	// ErrMalformedEntity indicates a malformed entity specification.
	ErrMalformedEntity = New("malformed entity specification")

	// ErrInvalidQueryParams indicates invalid query parameters.
	ErrInvalidQueryParams = New("invalid query parameters")

	// ErrUnsupportedContentType indicates invalid content type.
	ErrUnsupportedContentType = New("invalid content type")

	// ErrNotFound indicates a non-existent entity request.
	ErrNotFound = New("entity not found")

	// ErrNotConnected indicates an operation that needs a live session was
	// issued while the endpoint is unreachable.
	ErrNotConnected = New("no active session to the endpoint")

	// ErrWriteRejected indicates at least one item of a batched write was
	// rejected by the server.
	ErrWriteRejected = New("write rejected by the server")
)
