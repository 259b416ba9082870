// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"

	"github.com/absmach/opcua-bridge/opcua"
)

// Response is implemented by all API responses to control HTTP rendering.
type Response interface {
	// Code returns the HTTP response code.
	Code() int

	// Headers returns the map of HTTP headers with their values.
	Headers() map[string]string

	// Empty reports whether the response carries no body.
	Empty() bool
}

var (
	_ Response = (*browseRes)(nil)
	_ Response = (*readRes)(nil)
	_ Response = (*writeRes)(nil)
	_ Response = (*subscribeRes)(nil)
	_ Response = (*removeRes)(nil)
	_ Response = (*subscriptionsRes)(nil)
	_ Response = (*statusRes)(nil)
)

type browseRes struct {
	Nodes []opcua.Node `json:"nodes"`
}

func (res browseRes) Code() int {
	return http.StatusOK
}

func (res browseRes) Headers() map[string]string {
	return map[string]string{}
}

func (res browseRes) Empty() bool {
	return false
}

type readRes struct {
	Values []opcua.DataValue `json:"values"`
}

func (res readRes) Code() int {
	return http.StatusOK
}

func (res readRes) Headers() map[string]string {
	return map[string]string{}
}

func (res readRes) Empty() bool {
	return false
}

type writeRes struct{}

func (res writeRes) Code() int {
	return http.StatusOK
}

func (res writeRes) Headers() map[string]string {
	return map[string]string{}
}

func (res writeRes) Empty() bool {
	return true
}

type subscribeRes struct {
	Node opcua.Node `json:"node"`
}

func (res subscribeRes) Code() int {
	return http.StatusCreated
}

func (res subscribeRes) Headers() map[string]string {
	return map[string]string{}
}

func (res subscribeRes) Empty() bool {
	return false
}

type removeRes struct{}

func (res removeRes) Code() int {
	return http.StatusNoContent
}

func (res removeRes) Headers() map[string]string {
	return map[string]string{}
}

func (res removeRes) Empty() bool {
	return true
}

type subscriptionsRes struct {
	Nodes []opcua.Node `json:"nodes"`
}

func (res subscriptionsRes) Code() int {
	return http.StatusOK
}

func (res subscriptionsRes) Headers() map[string]string {
	return map[string]string{}
}

func (res subscriptionsRes) Empty() bool {
	return false
}

type statusRes struct {
	opcua.ConnStatus
}

func (res statusRes) Code() int {
	return http.StatusOK
}

func (res statusRes) Headers() map[string]string {
	return map[string]string{}
}

func (res statusRes) Empty() bool {
	return false
}
