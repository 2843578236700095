// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package runtime

import (
	"grimm.is/reactived/internal/backend"
	"grimm.is/reactived/internal/transport"
)

// HandleSwitchUp registers conn as switchID's control connection and
// resynchronizes its reactive table against the current tree shape —
// this covers both a genuinely new switch (installing the table-miss
// path for the first time) and a reconnect after a transport drop
// (the tree already reflects every flow the controller still considers
// live; Commit simply re-plays it).
func (rt *Runtime) HandleSwitchUp(switchID uint64, conn *transport.Connection) error {
	rt.connsMu.Lock()
	rt.conns[switchID] = conn
	rt.backends[switchID] = backend.New(conn, switchID, rt.cfg.TableID)
	rt.connsMu.Unlock()

	if rt.metrics != nil {
		rt.metrics.SwitchesConnected.Inc()
	}
	rt.logf("switch %d connected, resyncing reactive table %d", switchID, rt.cfg.TableID)

	return rt.currentTree().Commit(switchID)
}

// HandleSwitchDown marks switchID's connection dead and drops it from
// the registry. Flows belonging to switchID are left in the live-flow
// map as-is; the tree still names them, so a later HandleSwitchUp for
// the same switchID (a reconnect) recompiles them without the
// controller having to re-learn anything.
func (rt *Runtime) HandleSwitchDown(switchID uint64) {
	rt.connsMu.Lock()
	if conn, ok := rt.conns[switchID]; ok {
		conn.MarkDead()
	}
	delete(rt.conns, switchID)
	delete(rt.backends, switchID)
	rt.connsMu.Unlock()

	if rt.metrics != nil {
		rt.metrics.SwitchesConnected.Dec()
	}
	rt.logf("switch %d disconnected", switchID)
}

// ConnectedSwitches returns the switch ids with a live connection, in
// unspecified order.
func (rt *Runtime) ConnectedSwitches() []uint64 {
	rt.connsMu.RLock()
	defer rt.connsMu.RUnlock()
	out := make([]uint64, 0, len(rt.conns))
	for id, c := range rt.conns {
		if c.Alive() {
			out = append(out, id)
		}
	}
	return out
}
