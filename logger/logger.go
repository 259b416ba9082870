// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package logger contains logger setup for the service.
package logger

import (
	"io"
	"log/slog"
)

// New returns a new structured logger writing JSON records at the given
// level to w. Severity filtering is the logger's responsibility; callers
// log at whatever level fits and the handler drops what is below level.
func New(w io.Writer, levelText string) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelText)); err != nil {
		return nil, err
	}

	logHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})

	return slog.New(logHandler), nil
}
