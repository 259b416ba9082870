// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package opcua

import "time"

// Well-known node identifiers of the standard address space.
const (
	// ObjectsRootID is the canonical "Objects" container every hierarchical
	// browse starts from unless told otherwise.
	ObjectsRootID = "i=85"

	// ServerStatusID is the server status variable monitored to observe
	// remote health.
	ServerStatusID = "i=2256"
)

// NodeClass is a bitmask of address-space node classes.
type NodeClass uint32

const (
	NodeClassUnspecified NodeClass = 0
	NodeClassObject      NodeClass = 1
	NodeClassVariable    NodeClass = 2
	NodeClassMethod      NodeClass = 4
)

// NodeClassAll matches every node class on a browse.
const NodeClassAll = NodeClassObject | NodeClassVariable | NodeClassMethod

// Node identifies one addressable point in the remote address space.
// ID is the canonical string form of the node identifier (e.g. "ns=2;i=42");
// two nodes are the same subscription target when DisplayName and ID match,
// regardless of how the wire representation compared.
type Node struct {
	DisplayName string `json:"display_name"`
	Class       NodeClass `json:"class"`
	ID          string `json:"id"`
	TypeDef     string `json:"type_def,omitempty"`
	IndexRange  string `json:"index_range,omitempty"`
}

// Status is a per-item operation status reported by the remote.
type Status uint32

// StatusOK is the all-good status code.
const StatusOK Status = 0

// IsOK reports whether the status signals success.
func (s Status) IsOK() bool {
	return s == StatusOK
}

// DataValue is a value read from, or delivered by, the remote server.
type DataValue struct {
	Value      interface{} `json:"value"`
	Type       string      `json:"type,omitempty"`
	Status     Status      `json:"status"`
	SourceTime time.Time   `json:"source_time,omitempty"`
}

// WriteItem is one entry of a batched write.
type WriteItem struct {
	Node       Node
	Value      interface{}
	IndexRange string
}

// ValueHandler is invoked for every data change delivered for a monitored
// node. It runs on the transport's dispatch path and must not block.
type ValueHandler func(Node, DataValue)

// LivenessStatus is the periodic health signal of an open session.
type LivenessStatus int

const (
	// LivenessOK means the keep-alive exchange succeeded.
	LivenessOK LivenessStatus = iota

	// LivenessBad means the session failed its keep-alive check and needs
	// recovery.
	LivenessBad
)

func (ls LivenessStatus) String() string {
	if ls == LivenessOK {
		return "ok"
	}
	return "bad"
}
