// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package runtime

import (
	"golang.org/x/sync/errgroup"

	"grimm.is/reactived/internal/decision"
	"grimm.is/reactived/internal/tracetree"
)

// InvalidateTree discards every trace learned so far and resynchronizes
// every connected switch against a fresh, empty tree. Topology changes
// (a link going down, a new switch joining the same reactive domain)
// can invalidate decisions baked into the old tree — a MAC learned on a
// port that no longer leads anywhere, for instance — so the safe
// response is to forget everything and let packet-ins repopulate it.
// When the InvalidateOnLinkChange setting is false it does nothing.
func (rt *Runtime) InvalidateTree() error {
	if !rt.cfg.InvalidateOnLinkChange {
		return nil
	}

	rt.flowsMu.Lock()
	rt.flows = make(map[uint64]*decision.Flow)
	rt.flowsMu.Unlock()

	rt.treeMu.Lock()
	rt.tree = tracetree.New(rt.cfg.PriorityLow, rt.cfg.PriorityHigh, rt.backendFor)
	rt.treeMu.Unlock()

	tree := rt.currentTree()
	limit := rt.cfg.ResyncConcurrency
	if limit <= 0 {
		limit = -1 // unlimited
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for _, switchID := range rt.ConnectedSwitches() {
		switchID := switchID
		g.Go(func() error { return tree.Commit(switchID) })
	}
	return g.Wait()
}
