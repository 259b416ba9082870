// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the bridge service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/absmach/opcua-bridge/opcua"
	"github.com/absmach/opcua-bridge/pkg/apiutil"
	"github.com/absmach/opcua-bridge/pkg/errors"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/go-zoo/bone"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	contentType = "application/json"

	rootParam = "root"
	deepParam = "deep"
	srvParam  = "server"
	nameParam = "name"
	idParam   = "id"
)

// MakeHandler returns a HTTP handler for API endpoints.
func MakeHandler(svc opcua.Service, instanceID string) http.Handler {
	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(encodeError),
	}

	r := bone.New()

	r.Get("/browse", kithttp.NewServer(
		browseEndpoint(svc),
		decodeBrowse,
		encodeResponse,
		opts...,
	))

	r.Post("/read", kithttp.NewServer(
		readEndpoint(svc),
		decodeRead,
		encodeResponse,
		opts...,
	))

	r.Post("/write", kithttp.NewServer(
		writeEndpoint(svc),
		decodeWrite,
		encodeResponse,
		opts...,
	))

	r.Get("/subscriptions", kithttp.NewServer(
		subscriptionsEndpoint(svc),
		decodeEmpty,
		encodeResponse,
		opts...,
	))

	r.Post("/subscriptions", kithttp.NewServer(
		subscribeEndpoint(svc),
		decodeSubscribe,
		encodeResponse,
		opts...,
	))

	r.Delete("/subscriptions", kithttp.NewServer(
		unsubscribeEndpoint(svc),
		decodeUnsubscribe,
		encodeResponse,
		opts...,
	))

	r.Post("/connect", kithttp.NewServer(
		connectEndpoint(svc),
		decodeEmpty,
		encodeResponse,
		opts...,
	))

	r.Post("/disconnect", kithttp.NewServer(
		disconnectEndpoint(svc),
		decodeEmpty,
		encodeResponse,
		opts...,
	))

	r.Post("/reconnect", kithttp.NewServer(
		reconnectEndpoint(svc),
		decodeEmpty,
		encodeResponse,
		opts...,
	))

	r.Put("/endpoint", kithttp.NewServer(
		endpointResetEndpoint(svc),
		decodeEndpoint,
		encodeResponse,
		opts...,
	))

	r.Get("/status", kithttp.NewServer(
		statusEndpoint(svc),
		decodeEmpty,
		encodeResponse,
		opts...,
	))

	r.GetFunc("/health", health("opcua-bridge", instanceID))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func decodeBrowse(_ context.Context, r *http.Request) (interface{}, error) {
	root, err := apiutil.ReadStringQuery(r, rootParam, "")
	if err != nil {
		return nil, errors.Wrap(apiutil.ErrValidation, err)
	}

	deep, err := apiutil.ReadBoolQuery(r, deepParam, false)
	if err != nil {
		return nil, errors.Wrap(apiutil.ErrValidation, err)
	}

	server, err := apiutil.ReadBoolQuery(r, srvParam, false)
	if err != nil {
		return nil, errors.Wrap(apiutil.ErrValidation, err)
	}

	req := browseReq{
		RootID:               root,
		Deep:                 deep,
		IncludeServerSubtree: server,
	}

	return req, nil
}

func decodeRead(_ context.Context, r *http.Request) (interface{}, error) {
	if r.Header.Get("Content-Type") != contentType {
		return nil, errors.ErrUnsupportedContentType
	}

	var req readReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Wrap(errors.ErrMalformedEntity, err)
	}

	return req, nil
}

func decodeWrite(_ context.Context, r *http.Request) (interface{}, error) {
	if r.Header.Get("Content-Type") != contentType {
		return nil, errors.ErrUnsupportedContentType
	}

	var req writeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Wrap(errors.ErrMalformedEntity, err)
	}

	return req, nil
}

func decodeSubscribe(_ context.Context, r *http.Request) (interface{}, error) {
	if r.Header.Get("Content-Type") != contentType {
		return nil, errors.ErrUnsupportedContentType
	}

	var req subscribeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Wrap(errors.ErrMalformedEntity, err)
	}

	return req, nil
}

func decodeUnsubscribe(_ context.Context, r *http.Request) (interface{}, error) {
	name, err := apiutil.ReadStringQuery(r, nameParam, "")
	if err != nil {
		return nil, errors.Wrap(apiutil.ErrValidation, err)
	}

	id, err := apiutil.ReadStringQuery(r, idParam, "")
	if err != nil {
		return nil, errors.Wrap(apiutil.ErrValidation, err)
	}

	req := unsubscribeReq{
		DisplayName: name,
		ID:          id,
	}

	return req, nil
}

func decodeEndpoint(_ context.Context, r *http.Request) (interface{}, error) {
	if r.Header.Get("Content-Type") != contentType {
		return nil, errors.ErrUnsupportedContentType
	}

	var req endpointReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Wrap(errors.ErrMalformedEntity, err)
	}

	return req, nil
}

func decodeEmpty(_ context.Context, _ *http.Request) (interface{}, error) {
	return connReq{}, nil
}

func encodeResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", contentType)

	if ar, ok := response.(Response); ok {
		for k, v := range ar.Headers() {
			w.Header().Set(k, v)
		}

		w.WriteHeader(ar.Code())

		if ar.Empty() {
			return nil
		}
	}

	return json.NewEncoder(w).Encode(response)
}

func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", contentType)

	switch {
	case errors.Contains(err, apiutil.ErrValidation),
		errors.Contains(err, errors.ErrMalformedEntity):
		w.WriteHeader(http.StatusBadRequest)
	case errors.Contains(err, errors.ErrUnsupportedContentType):
		w.WriteHeader(http.StatusUnsupportedMediaType)
	case errors.Contains(err, errors.ErrNotConnected),
		errors.Contains(err, opcua.ErrFailedConnect),
		errors.Contains(err, opcua.ErrFailedReconnect):
		w.WriteHeader(http.StatusServiceUnavailable)
	case errors.Contains(err, errors.ErrWriteRejected),
		errors.Contains(err, opcua.ErrFailedSubscribe):
		w.WriteHeader(http.StatusUnprocessableEntity)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}

	if errr, ok := err.(errors.Error); ok {
		if err := json.NewEncoder(w).Encode(errr); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}
