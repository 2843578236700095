// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package runtime

import (
	"time"

	"grimm.is/reactived/internal/decision"
	"grimm.is/reactived/internal/fieldset"
	"grimm.is/reactived/internal/packet"
	"grimm.is/reactived/internal/rerrors"
	"grimm.is/reactived/internal/trace"
)

// HandlePacketIn dispatches one packet-in to either the table-miss path
// (a packet whose cookie names no reactive flow — the fast path grows
// the tree) or the inspect-reactivation path (a packet whose cookie
// belongs to an Active flow that asked to see every packet, not just the
// first one).
func (rt *Runtime) HandlePacketIn(switchID uint64, pictx decision.PacketInContext, pkt packet.Packet) error {
	start := time.Now()
	class := "miss"
	defer func() {
		if rt.metrics != nil {
			rt.metrics.PacketInTotal.WithLabelValues(switchLabel(switchID), class).Inc()
			rt.metrics.PacketInLatency.WithLabelValues(switchLabel(switchID)).Observe(time.Since(start).Seconds())
		}
	}()

	if decision.InReactiveSpace(pictx.Cookie) {
		class = "inspect"
		return rt.handleInspectReactivation(switchID, pictx, pkt)
	}
	return rt.handleTableMiss(switchID, pictx, pkt, rt.cfg.MaxRetriesOnPriorityExceeded)
}

// handleTableMiss looks the packet up in the tree first, in case a
// flow-mod for it is already installed but this packet raced ahead of
// the barrier. A Lookup hit is then dispatched on the found flow's
// lifecycle state, per the runtime's packet-in state switch: an Active
// flow only reruns the policy and re-activates (reactivateWithRerun); an
// Egg/Idle/Evicted flow re-augments the tree exactly like a fresh miss,
// reusing its existing cookie; an Expired flow reaching here is an
// assertion failure, since flow-removed(HARD_TIMEOUT) should have
// already retired it from the tree. A Lookup miss augments a brand-new
// Flow, retrying once per priority_exceeded up to retriesLeft.
func (rt *Runtime) handleTableMiss(switchID uint64, pictx decision.PacketInContext, pkt packet.Packet, retriesLeft int) error {
	flow, ok, err := rt.currentTree().Lookup(pkt)
	if err != nil {
		return err
	}
	if ok {
		switch flow.State() {
		case decision.StateActive:
			return rt.reactivateWithRerun(switchID, pictx, pkt, flow)
		case decision.StateExpired:
			return rerrors.Errorf(rerrors.KindTraceInconsistent, "switch %d: table-miss matched expired flow %#x", switchID, flow.Cookie())
		default: // Egg, Idle, Evicted: re-augment below, reusing this flow's cookie.
		}
	} else {
		flow = decision.New()
	}
	flow.SetPacketInContext(pictx)
	flow.SetState(decision.StateEgg)

	var traced *trace.TraceablePacket
	d, installer, err := rt.currentTree().Augment(pkt, flow, func(tp *trace.TraceablePacket) (decision.Decision, error) {
		traced = tp
		return rt.runPipeline(tp, flow)
	})
	if err != nil {
		if rerrors.GetKind(err) == rerrors.KindPriorityExceeded && retriesLeft > 0 {
			if rt.metrics != nil {
				rt.metrics.PriorityExceededTotal.WithLabelValues(switchLabel(switchID)).Inc()
			}
			rt.currentTree().Update()
			return rt.handleTableMiss(switchID, pictx, pkt, retriesLeft-1)
		}
		return err
	}

	if d.Kind() == decision.KindUndefined {
		if rt.metrics != nil {
			rt.metrics.UnhandledPacketTotal.Inc()
		}
		return rerrors.Errorf(rerrors.KindUnhandledPacket, "switch %d: no handler produced a decision", switchID)
	}

	flow.SetDecision(d)
	if traced != nil {
		flow.SetMods(traced.Mods())
	}

	rt.flowsMu.Lock()
	rt.flows[flow.Cookie()] = flow
	rt.flowsMu.Unlock()

	if err := installer(); err != nil {
		return err
	}
	flow.SetState(decision.StateActive)

	if rt.metrics != nil {
		rt.metrics.TreeLeafCount.Set(float64(rt.currentTree().LeafCount()))
		rt.metrics.LiveFlowCount.WithLabelValues(switchLabel(switchID), flow.State().String()).Inc()
	}

	if handled, err := rt.dispatchInspect(pkt, flow, d); err != nil || handled {
		return err
	}
	return rt.replay(switchID, pictx, flow)
}

// reactivateWithRerun implements the runtime's "Active with table-miss"
// branch: rerun the policy only, with no tree augmentation, update the
// flow's decision, then re-activate by re-sending its Flow-Mod. This is
// reached when the tree already names a rule for pkt's equivalence class
// but the switch still reported a table-miss for it — the flow-mod raced
// behind this packet-in, or the switch evicted the rule without the
// controller having processed the flow-removed yet.
func (rt *Runtime) reactivateWithRerun(switchID uint64, pictx decision.PacketInContext, pkt packet.Packet, flow *decision.Flow) error {
	flow.SetPacketInContext(pictx)

	d, err := rt.runPipeline(pkt, flow)
	if err != nil {
		return err
	}
	if d.Kind() != decision.KindUndefined {
		flow.SetDecision(d)
	}
	flow.SetState(decision.StateActive)

	if err := rt.currentTree().Reinstall(switchID, pkt, flow); err != nil {
		return err
	}

	if handled, err := rt.dispatchInspect(pkt, flow, flow.Decision()); err != nil || handled {
		return err
	}
	return rt.replay(switchID, pictx, flow)
}

// dispatchInspect calls d's InspectHandlerFn, if any, letting a handler
// that produced an Inspect decision answer this packet-in itself (an
// ARP responder emitting its own reply, say) instead of the generic
// Mods/Decision replay path.
func (rt *Runtime) dispatchInspect(pkt packet.Packet, flow *decision.Flow, d decision.Decision) (bool, error) {
	if d.Kind() != decision.KindInspect || d.InspectHandlerFn() == nil {
		return false, nil
	}
	return d.InspectHandlerFn()(pkt, flow)
}

// handleInspectReactivation implements the runtime's "Active without
// table-miss" branch without rerunning the policy — the situation
// implies an Inspect decision asked to see every packet of an
// already-installed flow, so its stored decision's InspectHandlerFn is
// dispatched first. If that handler fully handles the packet-in, nothing
// else is sent; otherwise the flow's rule is re-emitted and the packet
// replayed.
func (rt *Runtime) handleInspectReactivation(switchID uint64, pictx decision.PacketInContext, pkt packet.Packet) error {
	rt.flowsMu.RLock()
	flow, ok := rt.flows[pictx.Cookie]
	rt.flowsMu.RUnlock()
	if !ok {
		// The controller restarted or evicted the flow already known to
		// the switch; fall back to treating this as a fresh miss.
		return rt.handleTableMiss(switchID, pictx, pkt, rt.cfg.MaxRetriesOnPriorityExceeded)
	}
	flow.SetPacketInContext(pictx)

	if handled, err := rt.dispatchInspect(pkt, flow, flow.Decision()); err != nil || handled {
		return err
	}

	if err := rt.currentTree().Reinstall(switchID, pkt, flow); err != nil {
		return err
	}
	return rt.replay(switchID, pictx, flow)
}

// replay compiles flow's current decision into a packet-out and sends
// it for this one packet-in, without installing or altering any rule.
func (rt *Runtime) replay(switchID uint64, pictx decision.PacketInContext, flow *decision.Flow) error {
	return rt.SendPacketOut(switchID, pictx.BufferID, pictx.InPort, pictx.Raw, flow.Mods(), flow.Decision())
}

// SendPacketOut emits a packet-out on switchID's backend directly,
// bypassing any flow's stored decision. It is the collaborator surface
// an Inspect handler (internal/policy.ARPResponder, say) uses to answer
// a packet-in with a reply it built itself.
func (rt *Runtime) SendPacketOut(switchID uint64, bufferID, inPort uint32, raw []byte, mods *fieldset.Set, d decision.Decision) error {
	b := rt.backendFor(switchID)
	if b == nil {
		return rerrors.Errorf(rerrors.KindNoSuchSwitch, "no backend for switch %d", switchID)
	}
	return b.PacketOut(bufferID, inPort, raw, mods, d)
}
