// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"net/http"
)

const (
	version     = "0.1.0"
	description = "OPC-UA bridge service"
)

type healthRes struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Service     string `json:"service"`
	InstanceID  string `json:"instance_id"`
}

// health returns a liveness probe handler for the service.
func health(service, instanceID string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		res := healthRes{
			Status:      "pass",
			Version:     version,
			Description: description,
			Service:     service,
			InstanceID:  instanceID,
		}

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(res); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}
