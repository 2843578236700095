// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package runtime

import (
	"grimm.is/reactived/internal/decision"
	"grimm.is/reactived/internal/transport"
)

// HandleFlowRemoved retires the Flow cookie names according to reason.
// The live-flow map holds the only strong reference to a Flow; dropping
// it here lets the tree's weak reference go stale, so the next Commit
// naturally omits this leaf instead of the runtime having to walk the
// tree and prune it explicitly.
func (rt *Runtime) HandleFlowRemoved(switchID uint64, cookie uint64, reason transport.FlowRemovedReason) {
	rt.flowsMu.Lock()
	flow, ok := rt.flows[cookie]
	if ok {
		delete(rt.flows, cookie)
	}
	rt.flowsMu.Unlock()
	if !ok {
		return
	}

	prevState := flow.State()
	switch reason {
	case transport.ReasonIdleTimeout:
		flow.SetState(decision.StateIdle)
	case transport.ReasonHardTimeout:
		flow.SetState(decision.StateExpired)
	default: // ReasonDelete, ReasonGroupDelete
		flow.SetState(decision.StateEvicted)
	}

	if rt.metrics != nil {
		rt.metrics.LiveFlowCount.WithLabelValues(switchLabel(switchID), prevState.String()).Dec()
	}
	rt.logf("switch %d: flow %#x removed (%s)", switchID, cookie, flow.State())
}

// LiveFlowCount reports how many flows the runtime currently tracks as
// strongly referenced (any state short of having been flow-removed).
func (rt *Runtime) LiveFlowCount() int {
	rt.flowsMu.RLock()
	defer rt.flowsMu.RUnlock()
	return len(rt.flows)
}

// Flows returns a snapshot of every strongly-referenced flow, keyed by
// cookie. The returned map is a copy; mutating it does not affect the
// runtime.
func (rt *Runtime) Flows() map[uint64]*decision.Flow {
	rt.flowsMu.RLock()
	defer rt.flowsMu.RUnlock()
	out := make(map[uint64]*decision.Flow, len(rt.flows))
	for cookie, flow := range rt.flows {
		out[cookie] = flow
	}
	return out
}

// FlowByCookie looks up a single tracked flow by its cookie.
func (rt *Runtime) FlowByCookie(cookie uint64) (*decision.Flow, bool) {
	rt.flowsMu.RLock()
	defer rt.flowsMu.RUnlock()
	flow, ok := rt.flows[cookie]
	return flow, ok
}
