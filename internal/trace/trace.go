// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package trace implements the traceable packet decorator and the
// Tracer contract it reports to. TraceablePacket
// wraps a target packet, intercepting Load/Test/Modify and reporting
// each interaction to a Tracer, while caching already-revealed bits so
// that equivalent reads never produce duplicate trace entries.
package trace

import (
	"grimm.is/reactived/internal/decision"
	"grimm.is/reactived/internal/fieldset"
	"grimm.is/reactived/internal/match"
)

// Installer is a deferred closure that, when run inside a barrier,
// updates the backend with exactly the rules along one augmented path.
type Installer func() error

// Tracer receives the sequence of Load/Test/VLoad calls a policy makes
// on one packet and folds them into persistent state (a trace tree).
type Tracer interface {
	// Load reports a read of previously-unexplored bits and their live
	// value.
	Load(unexplored match.Field) error
	// Test reports a predicate test (restricted to previously-unexplored
	// bits) and its outcome.
	Test(pred match.Field, ret bool) error
	// VLoad reports a virtual-field load: a concrete source-key value
	// (by) whose result is reduced to a smaller key (what), letting many
	// distinct source values share one downstream continuation.
	VLoad(by match.Field, what match.Field) error
	// Finish attaches flow as the terminal decision at the tracer's
	// current position and returns the Installer that will realize it.
	Finish(flow *decision.Flow) (Installer, error)
}

// TraceablePacket wraps a target packet and a Tracer, caching bits
// already observed or modified so that repeat reads of the same bits
// never re-report to the tracer.
type TraceablePacket struct {
	target packet
	tracer Tracer
	cache  *fieldset.Set
	mods   *fieldset.Set
}

// packet is the minimal slice of internal/packet.Packet TraceablePacket
// needs; spelled out locally to avoid importing internal/packet (which
// would create no cycle here, but every other package in this module
// satisfies Packet structurally rather than importing it, and
// TraceablePacket is no exception).
type packet interface {
	Load(m match.Mask) (match.Field, error)
	Test(need match.Field) (bool, error)
	Modify(patch match.Field) error
}

// New wraps target with a TraceablePacket reporting to t.
func New(target packet, t Tracer) *TraceablePacket {
	return &TraceablePacket{target: target, tracer: t, cache: fieldset.New(), mods: fieldset.New()}
}

// Load reads the live bits named by m, reporting any bits not already in
// the cache to the tracer before returning.
func (tp *TraceablePacket) Load(m match.Mask) (match.Field, error) {
	r, err := tp.target.Load(m)
	if err != nil {
		return match.Field{}, err
	}
	known := tp.cache.KnownMask(m.Type)
	unexploredMask := m.Bits.And(known.Bits.Not())
	if !unexploredMask.AllZero() {
		u, err := match.NewField(m.Type, r.Value.And(unexploredMask), unexploredMask)
		if err != nil {
			return match.Field{}, err
		}
		if err := tp.tracer.Load(u); err != nil {
			return match.Field{}, err
		}
		if err := tp.cache.Modify(u); err != nil {
			return match.Field{}, err
		}
	}
	return r, nil
}

// Test reports whether need matches, consulting the cache first so that
// an already-contradicted or already-confirmed predicate produces no
// trace event at all.
func (tp *TraceablePacket) Test(need match.Field) (bool, error) {
	known := tp.cache.KnownMask(need.Type)
	exploredBits := need.Mask.And(known.Bits)

	if !exploredBits.AllZero() {
		cached, err := tp.cache.Load(match.Mask{Type: need.Type, Bits: exploredBits})
		if err != nil {
			return false, err
		}
		wantExplored, err := match.NewField(need.Type, need.Value.And(exploredBits), exploredBits)
		if err != nil {
			return false, err
		}
		if !cached.Value.Equal(wantExplored.Value) {
			// Already contradicted by a prior load/test: no trace event.
			return false, nil
		}
		if exploredBits.Equal(need.Mask) {
			// Fully explored already: cached result, no trace event.
			return true, nil
		}
	}

	result, err := tp.target.Test(need)
	if err != nil {
		return false, err
	}

	unexploredMask := need.Mask.And(known.Bits.Not())
	unexplored, err := match.NewField(need.Type, need.Value.And(unexploredMask), unexploredMask)
	if err != nil {
		return false, err
	}
	if err := tp.tracer.Test(unexplored, result); err != nil {
		return false, err
	}
	if result {
		// Positive match reveals the whole tested field; a negative
		// match would only prove "not this value", which is not safe
		// to cache as a concrete value.
		if err := tp.cache.Modify(need); err != nil {
			return false, err
		}
	}
	return result, nil
}

// Modify writes patch to the target first (the cache and mods sets are
// left untouched if that fails), then records it in both the cache and
// the modification set Mods returns.
func (tp *TraceablePacket) Modify(patch match.Field) error {
	if err := tp.target.Modify(patch); err != nil {
		return err
	}
	if err := tp.cache.Modify(patch); err != nil {
		return err
	}
	return tp.mods.Modify(patch)
}

// Mods returns every field written via Modify so far, composed in
// application order — exactly what a compiled rule's SET_FIELD actions
// need to reproduce this packet's rewrites.
func (tp *TraceablePacket) Mods() *fieldset.Set {
	return tp.mods
}

// VLoad reports a virtual-field load directly to the tracer without
// touching the target packet or the cache: it is a pure bookkeeping
// operation used by policies that reduce many source keys to one
// downstream continuation.
func (tp *TraceablePacket) VLoad(by match.Field, what match.Field) error {
	return tp.tracer.VLoad(by, what)
}
