// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package opcua

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// serverSubtreeMarker is the display-name substring separating the server
// diagnostics subtree from user-addressable nodes.
const serverSubtreeMarker = "Server"

// AddressSpaceWalker browses the remote address space, one level at a time
// or as a full depth-first walk. Browsing is routinely used speculatively,
// so a walker never fails: without a live session it degrades to an empty
// result and logs.
type AddressSpaceWalker struct {
	logger *slog.Logger
}

// NewWalker returns a new address-space walker.
func NewWalker(logger *slog.Logger) *AddressSpaceWalker {
	return &AddressSpaceWalker{logger: logger}
}

// Children performs a single forward hierarchical browse of rootID,
// restricted to the given node-class mask. An empty rootID defaults to the
// canonical objects container. When includeServerSubtree is false,
// references whose display name contains "Server" are dropped; when true,
// only those are kept.
func (w *AddressSpaceWalker) Children(ctx context.Context, sess Session, rootID string, classes NodeClass, includeServerSubtree bool) []Node {
	if sess == nil || !sess.Connected() {
		w.logger.Warn("browse skipped: no active session")
		return []Node{}
	}

	if rootID == "" {
		rootID = ObjectsRootID
	}

	children, err := sess.Children(ctx, rootID, classes)
	if err != nil {
		w.logger.Warn(fmt.Sprintf("browse of node %s failed: %s", rootID, err))
		return []Node{}
	}

	nodes := make([]Node, 0, len(children))
	for _, n := range children {
		if strings.Contains(n.DisplayName, serverSubtreeMarker) != includeServerSubtree {
			continue
		}
		nodes = append(nodes, n)
	}

	return nodes
}

// Walk browses the subtree under every seed reference depth-first,
// returning each reference followed by its descendants, in browse order.
// The remote address space is a tree by protocol convention, but the walk
// does not trust that: a visited set keyed on node id makes reference
// cycles terminate instead of looping.
func (w *AddressSpaceWalker) Walk(ctx context.Context, sess Session, seed []Node, classes NodeClass, includeServerSubtree bool) []Node {
	visited := make(map[string]bool)

	var nodes []Node
	var walk func(refs []Node)
	walk = func(refs []Node) {
		for _, n := range refs {
			if visited[n.ID] {
				w.logger.Warn(fmt.Sprintf("reference cycle at node %s, skipping revisit", n.ID))
				continue
			}
			visited[n.ID] = true
			nodes = append(nodes, n)
			walk(w.Children(ctx, sess, n.ID, classes, includeServerSubtree))
		}
	}
	walk(seed)

	return nodes
}
