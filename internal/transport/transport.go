// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package transport implements the switch-transport contract: send one
// message to one switch, and deliver inbound messages keyed by switch
// id. The wire-level OpenFlow codec itself is a separate external
// collaborator — WireHeader captures just enough of the common OpenFlow
// 1.3 header for the runtime to classify an inbound message without
// decoding its body.
package transport

import (
	"sync/atomic"

	"github.com/google/uuid"

	"grimm.is/reactived/internal/rerrors"
)

// OpenFlow 1.3 message types the core classifies directly; everything
// else is opaque bytes handed to other collaborators.
const (
	OFPTHello        uint8 = 0
	OFPTFeaturesReq  uint8 = 5
	OFPTFeaturesRes  uint8 = 6
	OFPTPacketIn     uint8 = 10
	OFPTFlowRemoved  uint8 = 11
	OFPTPacketOut    uint8 = 13
	OFPTFlowMod      uint8 = 14
	OFPTBarrierReq   uint8 = 20
	OFPTBarrierReply uint8 = 21
	OFPTMultipart    uint8 = 18
)

// FlowRemovedReason is the OpenFlow 1.3 reason code carried on an
// OFPT_FLOW_REMOVED message.
type FlowRemovedReason uint8

const (
	ReasonIdleTimeout FlowRemovedReason = 0
	ReasonHardTimeout FlowRemovedReason = 1
	ReasonDelete      FlowRemovedReason = 2
	ReasonGroupDelete FlowRemovedReason = 3
)

// WireHeader is the fixed 8-byte OpenFlow 1.3 message header.
type WireHeader struct {
	Version uint8
	Type    uint8
	Length  uint16
	Xid     uint32
}

// SendFunc transmits wire-encoded bytes to one switch. The core never
// blocks on a send; a SendFunc that would block should buffer or error.
type SendFunc func(switchID uint64, wireBytes []byte) error

// Connection is one switch's control channel: a reference-counted
// handle (the last reference drops once the connection-closed event
// has been processed) wrapping a SendFunc and liveness flag.
type Connection struct {
	ID       uuid.UUID
	SwitchID uint64

	send  SendFunc
	alive atomic.Bool
	refs  atomic.Int32
}

// NewConnection wraps send as a Connection for switchID, starting alive
// with one reference held by the caller.
func NewConnection(switchID uint64, send SendFunc) *Connection {
	c := &Connection{ID: uuid.New(), SwitchID: switchID, send: send}
	c.alive.Store(true)
	c.refs.Store(1)
	return c
}

// Send transmits wireBytes, marking the connection dead on failure: a
// transport send error marks the switch connection dead, and the caller
// is expected to emit a switch-down event once Send reports
// KindTransport.
func (c *Connection) Send(wireBytes []byte) error {
	if !c.alive.Load() {
		return rerrors.Errorf(rerrors.KindTransport, "switch %d: connection closed", c.SwitchID)
	}
	if err := c.send(c.SwitchID, wireBytes); err != nil {
		c.alive.Store(false)
		return rerrors.Wrapf(err, rerrors.KindTransport, "switch %d: send failed", c.SwitchID)
	}
	return nil
}

// Alive reports whether the connection is still usable.
func (c *Connection) Alive() bool { return c.alive.Load() }

// MarkDead forces the connection into the dead state, e.g. on a
// transport-level close notification.
func (c *Connection) MarkDead() { c.alive.Store(false) }

// Acquire adds a reference, returned by the connection registry to each
// collaborator (backend, runtime) that retains the pointer.
func (c *Connection) Acquire() { c.refs.Add(1) }

// Release drops a reference, returning true once the last reference is
// gone (the caller may now discard the Connection).
func (c *Connection) Release() bool { return c.refs.Add(-1) == 0 }
