// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package opcua

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
)

// ValueIO reads and writes point values against a connected session,
// independent of subscriptions. Operation faults are caught locally, logged
// and converted to an empty or false result; callers detect failure from
// the return value, not from a raised error.
type ValueIO struct {
	logger *slog.Logger
}

// NewValueIO returns a new value reader/writer.
func NewValueIO(logger *slog.Logger) *ValueIO {
	return &ValueIO{logger: logger}
}

// ReadOne reads the current value of one node. The zero DataValue and false
// signal failure.
func (v *ValueIO) ReadOne(ctx context.Context, sess Session, node Node) (DataValue, bool) {
	vals := v.ReadMany(ctx, sess, []Node{node})
	if len(vals) == 0 {
		return DataValue{}, false
	}
	return vals[0], true
}

// ReadMany executes one batched read of the current-value attribute and
// returns whatever the remote returned, or nil on a protocol fault.
func (v *ValueIO) ReadMany(ctx context.Context, sess Session, nodes []Node) []DataValue {
	if sess == nil || !sess.Connected() {
		v.logger.Warn("read skipped: no active session")
		return nil
	}
	if len(nodes) == 0 {
		return []DataValue{}
	}

	vals, err := sess.Read(ctx, nodes)
	if err != nil {
		v.logger.Warn(fmt.Sprintf("batched read of %d nodes failed: %s", len(nodes), err))
		return nil
	}

	return vals
}

// WriteOne writes the value to one node.
func (v *ValueIO) WriteOne(ctx context.Context, sess Session, node Node, value interface{}) bool {
	return v.WriteMany(ctx, sess, []Node{node}, value)
}

// WriteMany writes the value to every node in one batched write. It returns
// true only when every per-item status is non-error; a single bad status
// fails the whole call even though the batch may have been partially
// applied on the remote.
func (v *ValueIO) WriteMany(ctx context.Context, sess Session, nodes []Node, value interface{}) bool {
	if sess == nil || !sess.Connected() {
		v.logger.Warn("write skipped: no active session")
		return false
	}
	if len(nodes) == 0 {
		return false
	}

	items := make([]WriteItem, 0, len(nodes))
	for _, n := range nodes {
		item := WriteItem{Node: n, Value: value}
		if validIndexRange(n.IndexRange) {
			item.IndexRange = n.IndexRange
			item.Value = applyIndexRange(value, n.IndexRange)
		}
		items = append(items, item)
	}

	statuses, err := sess.Write(ctx, items)
	if err != nil {
		v.logger.Warn(fmt.Sprintf("batched write of %d nodes failed: %s", len(items), err))
		return false
	}

	for i, s := range statuses {
		if !s.IsOK() {
			v.logger.Warn(fmt.Sprintf("write to node %s rejected with status %d", nodes[i].ID, s))
			return false
		}
	}

	return len(statuses) == len(items)
}

// validIndexRange reports whether the range is a non-empty single dimension
// of the form "n" or "lo:hi".
func validIndexRange(r string) bool {
	if r == "" {
		return false
	}
	_, _, ok := parseIndexRange(r)
	return ok
}

func parseIndexRange(r string) (lo, hi int, ok bool) {
	parts := strings.SplitN(r, ":", 2)
	lo, err := strconv.Atoi(parts[0])
	if err != nil || lo < 0 {
		return 0, 0, false
	}
	hi = lo
	if len(parts) == 2 {
		hi, err = strconv.Atoi(parts[1])
		if err != nil || hi < lo {
			return 0, 0, false
		}
	}
	return lo, hi, true
}

// applyIndexRange restricts a slice value to the declared range. A range
// that does not fit the value leaves it untouched: the write proceeds with
// the whole value and the remote decides whether to accept it.
func applyIndexRange(value interface{}, r string) interface{} {
	lo, hi, ok := parseIndexRange(r)
	if !ok {
		return value
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return value
	}
	if lo >= rv.Len() || hi >= rv.Len() {
		return value
	}

	return rv.Slice(lo, hi+1).Interface()
}
