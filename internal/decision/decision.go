// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package decision implements the Decision sum type: a closed variant
// {Undefined, Drop, Unicast, Multicast, Broadcast,
// Inspect, Custom} plus shared base fields (idle/hard timeout, return
// flag), and its composition rule across a pipeline of handlers. The
// Flow object (flow.go) that carries one leaf's decision and lifecycle
// state lives alongside it.
package decision

import (
	"time"

	"grimm.is/reactived/internal/action"
	"grimm.is/reactived/internal/packet"
	"grimm.is/reactived/internal/rerrors"
)

// Kind names the concrete variant held by a Decision.
type Kind int

const (
	KindUndefined Kind = iota
	KindDrop
	KindUnicast
	KindMulticast
	KindBroadcast
	KindInspect
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindDrop:
		return "drop"
	case KindUnicast:
		return "unicast"
	case KindMulticast:
		return "multicast"
	case KindBroadcast:
		return "broadcast"
	case KindInspect:
		return "inspect"
	case KindCustom:
		return "custom"
	default:
		return "undefined"
	}
}

// Infinite is the sentinel "no timeout" duration; every constructor
// below starts both the idle and the hard timeout at Infinite.
const Infinite time.Duration = -1

// CustomDecision lets an embedder supply its own action-list compilation
// for the Custom variant.
type CustomDecision interface {
	Apply(actions *action.List, switchID uint64) error
}

// InspectHandler processes an Inspect decision's packet-in directly; it
// returns true if it fully handled the packet (no further pipeline
// processing required this packet-in).
type InspectHandler func(pkt packet.Packet, flow *Flow) (bool, error)

// Decision is the closed sum of forwarding outcomes a handler can
// produce. The zero value is Undefined with Return false and both
// timeouts 0, not Infinite; Undefined() sets both timeouts to Infinite.
type Decision struct {
	kind Kind

	idleTimeout time.Duration
	hardTimeout time.Duration
	returnFlag  bool

	unicastPort    uint32
	multicastPorts map[uint32]struct{}
	inspectMaxLen  uint16
	inspectHandler InspectHandler
	custom         CustomDecision
}

// Undefined is the left identity for composition: the policy pipeline
// has not yet decided.
func Undefined() Decision {
	return Decision{kind: KindUndefined, idleTimeout: Infinite, hardTimeout: Infinite}
}

// Drop builds a Drop decision.
func Drop() Decision {
	return Decision{kind: KindDrop, idleTimeout: Infinite, hardTimeout: Infinite}
}

// Unicast builds a Unicast decision to the given output port.
func Unicast(port uint32) Decision {
	return Decision{kind: KindUnicast, unicastPort: port, idleTimeout: Infinite, hardTimeout: Infinite}
}

// Multicast builds a Multicast decision to the given set of ports.
func Multicast(ports ...uint32) Decision {
	set := make(map[uint32]struct{}, len(ports))
	for _, p := range ports {
		set[p] = struct{}{}
	}
	return Decision{kind: KindMulticast, multicastPorts: set, idleTimeout: Infinite, hardTimeout: Infinite}
}

// Broadcast builds a Broadcast (flood) decision.
func Broadcast() Decision {
	return Decision{kind: KindBroadcast, idleTimeout: Infinite, hardTimeout: Infinite}
}

// Inspect builds an Inspect decision requesting maxLen bytes be copied to
// the controller alongside continued forwarding, invoking handler on
// each subsequent packet-in that hits this decision's cookie.
func Inspect(maxLen uint16, handler InspectHandler) Decision {
	return Decision{kind: KindInspect, inspectMaxLen: maxLen, inspectHandler: handler, idleTimeout: Infinite, hardTimeout: Infinite}
}

// Custom builds a Custom decision whose action-list compilation is
// delegated to impl.
func Custom(impl CustomDecision) Decision {
	return Decision{kind: KindCustom, custom: impl, idleTimeout: Infinite, hardTimeout: Infinite}
}

// Kind reports the concrete variant.
func (d Decision) Kind() Kind { return d.kind }

// IsUndefined reports whether the pipeline has not yet decided.
func (d Decision) IsUndefined() bool { return d.kind == KindUndefined }

// UnicastPort returns the Unicast variant's output port.
func (d Decision) UnicastPort() uint32 { return d.unicastPort }

// MulticastPorts returns the Multicast variant's output ports.
func (d Decision) MulticastPorts() []uint32 {
	out := make([]uint32, 0, len(d.multicastPorts))
	for p := range d.multicastPorts {
		out = append(out, p)
	}
	return out
}

// InspectMaxLen returns the Inspect variant's requested byte count.
func (d Decision) InspectMaxLen() uint16 { return d.inspectMaxLen }

// InspectHandlerFn returns the Inspect variant's handler.
func (d Decision) InspectHandlerFn() InspectHandler { return d.inspectHandler }

// CustomImpl returns the Custom variant's implementation.
func (d Decision) CustomImpl() CustomDecision { return d.custom }

// IdleTimeout returns the idle timeout, Infinite if unset.
func (d Decision) IdleTimeout() time.Duration { return d.idleTimeout }

// HardTimeout returns the hard timeout, Infinite if unset.
func (d Decision) HardTimeout() time.Duration { return d.hardTimeout }

// Return reports whether this decision short-circuits the pipeline.
func (d Decision) Return() bool { return d.returnFlag }

// WithIdleTimeout returns a copy with the idle timeout set.
func (d Decision) WithIdleTimeout(t time.Duration) Decision { d.idleTimeout = t; return d }

// WithHardTimeout returns a copy with the hard timeout set.
func (d Decision) WithHardTimeout(t time.Duration) Decision { d.hardTimeout = t; return d }

// WithReturn returns a copy with the return flag set, short-circuiting
// the remainder of the pipeline once this Decision is produced.
func (d Decision) WithReturn() Decision { d.returnFlag = true; return d }

// sameVariant reports whether two non-Undefined decisions carry
// compatible data for the same concrete kind.
func (d Decision) sameVariant(o Decision) bool {
	if d.kind != o.kind {
		return false
	}
	switch d.kind {
	case KindUnicast:
		return d.unicastPort == o.unicastPort
	case KindMulticast:
		if len(d.multicastPorts) != len(o.multicastPorts) {
			return false
		}
		for p := range d.multicastPorts {
			if _, ok := o.multicastPorts[p]; !ok {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a == Infinite {
		return b
	}
	if b == Infinite {
		return a
	}
	if a < b {
		return a
	}
	return b
}

// Combine folds next onto d, the composition rule for chaining several
// handlers' decisions into one: an Undefined next decision leaves d
// unchanged; an Undefined d is replaced
// by next; two non-Undefined decisions of the same kind and compatible
// data merge (timeouts take the minimum, the return flag is set if
// either decision has it, other fields take next's);
// anything else is decision_conflict.
func (d Decision) Combine(next Decision) (Decision, error) {
	if next.IsUndefined() {
		return d, nil
	}
	if d.IsUndefined() {
		return next, nil
	}
	if !d.sameVariant(next) {
		return Decision{}, rerrors.Errorf(rerrors.KindDecisionConflict,
			"cannot combine %s with %s", d.kind, next.kind)
	}
	merged := next
	merged.idleTimeout = minDuration(d.idleTimeout, next.idleTimeout)
	merged.hardTimeout = minDuration(d.hardTimeout, next.hardTimeout)
	merged.returnFlag = d.returnFlag || next.returnFlag
	return merged, nil
}
