// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package policy holds example reactive handlers that plug into
// internal/runtime's pipeline: a MAC-learning forwarder and an ARP
// responder, the same two behaviors a single-table reactive controller
// is expected to provide out of the box.
package policy

import (
	"sync"

	"grimm.is/reactived/internal/decision"
	"grimm.is/reactived/internal/match"
	"grimm.is/reactived/internal/packet"
)

// MACTable is a shared eth_dst -> in_port learning table: every packet
// teaches it where its source MAC lives, and every lookup of a
// destination MAC either names a learned port (Unicast) or falls back
// to Broadcast.
type MACTable struct {
	mu    sync.RWMutex
	ports map[uint64]uint32
}

// NewMACTable returns an empty learning table.
func NewMACTable() *MACTable {
	return &MACTable{ports: make(map[uint64]uint32)}
}

func (t *MACTable) learn(mac uint64, port uint32) {
	t.mu.Lock()
	t.ports[mac] = port
	t.mu.Unlock()
}

func (t *MACTable) lookup(mac uint64) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	port, ok := t.ports[mac]
	return port, ok
}

// Handler returns the HandlerFunc-shaped closure (pkt, flow, previous) ->
// (Decision, error) that drives the table: it is untyped against
// runtime.HandlerFunc to avoid this package importing internal/runtime
// for a single function type. The table never looks at previous; it
// always classifies by its own learned state.
func (t *MACTable) Handler() func(pkt packet.Packet, flow *decision.Flow, previous decision.Decision) (decision.Decision, error) {
	return func(pkt packet.Packet, flow *decision.Flow, previous decision.Decision) (decision.Decision, error) {
		srcField, err := pkt.Load(match.ExactMask(match.EthSrc))
		if err != nil {
			return decision.Decision{}, err
		}
		inPortField, err := pkt.Load(match.ExactMask(match.InPort))
		if err != nil {
			return decision.Decision{}, err
		}
		src, err := srcField.ValueOf().Uint64()
		if err != nil {
			return decision.Decision{}, err
		}
		inPort, err := inPortField.ValueOf().Uint64()
		if err != nil {
			return decision.Decision{}, err
		}
		t.learn(src, uint32(inPort))

		dstField, err := pkt.Load(match.ExactMask(match.EthDst))
		if err != nil {
			return decision.Decision{}, err
		}
		dst, err := dstField.ValueOf().Uint64()
		if err != nil {
			return decision.Decision{}, err
		}
		if port, ok := t.lookup(dst); ok {
			return decision.Unicast(port), nil
		}
		return decision.Broadcast(), nil
	}
}
