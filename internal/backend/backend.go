// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package backend translates compiled trace-tree paths into prioritized
// flow-mod / packet-out / barrier commands sent to one switch's
// transport. It never reasons about tree shape directly
// — tracetree hands it a priority, a compiled match (*fieldset.Set) and
// a Flow (or a barrier predicate), and backend compiles that into wire
// bytes via the injected Sender.
package backend

import (
	"fmt"
	"hash/fnv"
	"time"

	"grimm.is/reactived/internal/action"
	"grimm.is/reactived/internal/decision"
	"grimm.is/reactived/internal/fieldset"
	"grimm.is/reactived/internal/match"
	"grimm.is/reactived/internal/rerrors"
	"grimm.is/reactived/internal/transport"
)

// Sender transmits one wire-encoded message to one switch; in production
// this is a *transport.Connection, in tests a recording stub.
type Sender interface {
	Send(wireBytes []byte) error
}

// FlowModOp names the flow-mod command compiled into a message.
type FlowModOp int

const (
	FlowModAdd FlowModOp = iota
	FlowModDelete
	FlowModDeleteByCookie
)

// FlowMod is the wire-shaped representation of one flow-mod this backend
// would emit; tests assert against these instead of raw bytes, mirroring
// how the OpenFlow codec itself is treated as a separate external
// collaborator — Backend's job ends at producing this struct and
// handing it to Sender.
type FlowMod struct {
	Op            FlowModOp
	TableID       uint8
	Priority      uint32
	Match         []match.Field
	Cookie        uint64
	CookieMask    uint64
	IdleTimeout   uint16
	HardTimeout   uint16
	Flags         uint16
	Actions       []action.Action
}

// Flow-mod flags this engine always sets on reactive rules.
const (
	OFPFFCheckOverlap uint16 = 1 << 1
	OFPFFSendFlowRem  uint16 = 1 << 0
)

// Backend compiles for exactly one switch and one reserved reactive
// table.
type Backend struct {
	sender   Sender
	switchID uint64
	tableID  uint8

	sentinels map[string]struct{} // dedup key: id + hash(prio^match)
}

// New returns a Backend that emits flow-mods for tableID over sender.
func New(sender Sender, switchID uint64, tableID uint8) *Backend {
	return &Backend{sender: sender, switchID: switchID, tableID: tableID, sentinels: make(map[string]struct{})}
}

func saturateSeconds(d time.Duration) uint16 {
	if d == decision.Infinite {
		return 0
	}
	secs := int64(d / time.Second)
	if secs < 0 {
		return 0
	}
	if secs > 0xffff {
		return 0xffff
	}
	return uint16(secs)
}

func compileActions(mods *fieldset.Set, d decision.Decision, switchID uint64) (*action.List, error) {
	list := &action.List{}
	for _, f := range mods.Fields() {
		list.SetField(f)
	}
	switch d.Kind() {
	case decision.KindDrop:
		// no actions
	case decision.KindUnicast:
		list.Output(d.UnicastPort(), 0)
	case decision.KindMulticast:
		for _, p := range d.MulticastPorts() {
			list.Output(p, 0)
		}
	case decision.KindBroadcast:
		list.Output(action.PortFlood, 0)
	case decision.KindInspect:
		list.Output(action.PortController, d.InspectMaxLen())
	case decision.KindCustom:
		if err := d.CustomImpl().Apply(list, switchID); err != nil {
			return nil, err
		}
	default:
		return nil, rerrors.Errorf(rerrors.KindUnhandledPacket, "decision is Undefined for switch %d", switchID)
	}
	return list, nil
}

// Install emits one Flow-Mod ADD for flow at priority over match m.
func (b *Backend) Install(priority uint32, m *fieldset.Set, flow *decision.Flow) error {
	d := flow.Decision()
	actions, err := compileActions(flow.Mods(), d, b.switchID)
	if err != nil {
		return err
	}
	fm := FlowMod{
		Op:          FlowModAdd,
		TableID:     b.tableID,
		Priority:    priority,
		Match:       m.Fields(),
		Cookie:      flow.Cookie(),
		IdleTimeout: saturateSeconds(d.IdleTimeout()),
		HardTimeout: saturateSeconds(d.HardTimeout()),
		Flags:       OFPFFCheckOverlap | OFPFFSendFlowRem,
		Actions:     actions.Flatten(),
	}
	return b.send(fm)
}

// PacketOut is the wire-shaped representation of one packet-out this
// backend would emit.
type PacketOut struct {
	BufferID uint32
	InPort   uint32
	Raw      []byte // only sent when BufferID is OFP_NO_BUFFER
	Actions  []action.Action
}

// OFPNoBuffer marks a packet-in/packet-out as carrying its own payload
// rather than referencing a buffer held by the switch.
const OFPNoBuffer uint32 = 0xffffffff

// PacketOut emits a Packet-Out compiled from d and mods, used to forward
// a packet-in directly instead of installing a new rule — the path taken
// when an Inspect decision asks to see every packet of an otherwise
// Active flow.
func (b *Backend) PacketOut(bufferID, inPort uint32, raw []byte, mods *fieldset.Set, d decision.Decision) error {
	actions, err := compileActions(mods, d, b.switchID)
	if err != nil {
		return err
	}
	po := PacketOut{BufferID: bufferID, InPort: inPort, Actions: actions.Flatten()}
	if bufferID == OFPNoBuffer {
		po.Raw = raw
	}
	return b.sender.Send(encodePacketOut(po))
}

func encodePacketOut(po PacketOut) []byte {
	return []byte(fmt.Sprintf("buffer=%#x in_port=%d raw=%s actions=%+v",
		po.BufferID, po.InPort, po.Raw, po.Actions))
}

// BarrierRule emits a sentinel rule whose action is "send to controller",
// used as a priority-band boundary so that a packet matching what would
// otherwise be a lower-priority branch still produces a packet-in for
// further tracing. Sentinels are deduplicated by (id, hash(prio^match)).
func (b *Backend) BarrierRule(priority uint32, m *fieldset.Set, predicate match.Field, id string) error {
	dk := dedupKey(id, priority, m)
	if _, ok := b.sentinels[dk]; ok {
		return nil
	}
	actions := &action.List{}
	actions.Output(action.PortController, 0)
	fm := FlowMod{
		Op:       FlowModAdd,
		TableID:  b.tableID,
		Priority: priority,
		Match:    m.Fields(),
		Cookie:   decision.CookieBase,
		Flags:    OFPFFCheckOverlap,
		Actions:  actions.Flatten(),
	}
	if err := b.send(fm); err != nil {
		return err
	}
	b.sentinels[dk] = struct{}{}
	return nil
}

func dedupKey(id string, priority uint32, m *fieldset.Set) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d", priority)
	for _, f := range m.Fields() {
		fmt.Fprintf(h, "|%s=%x/%x", f.Type, f.Value.Bytes(), f.Mask.Bytes())
	}
	return fmt.Sprintf("%s:%x", id, h.Sum64())
}

// RemoveBySet emits a Flow-Mod DELETE matching the exact field set.
func (b *Backend) RemoveBySet(m *fieldset.Set) error {
	return b.send(FlowMod{Op: FlowModDelete, TableID: b.tableID, Match: m.Fields(), Cookie: decision.CookieBase, CookieMask: decision.CookieMask})
}

// RemoveByPriorityMatch emits a strict Flow-Mod DELETE at one priority.
func (b *Backend) RemoveByPriorityMatch(priority uint32, m *fieldset.Set) error {
	return b.send(FlowMod{Op: FlowModDelete, TableID: b.tableID, Priority: priority, Match: m.Fields(), CookieMask: decision.CookieMask})
}

// RemoveByCookie emits a Flow-Mod DELETE keyed by cookie, masked to the
// reactive cookie space.
func (b *Backend) RemoveByCookie(cookie uint64) error {
	return b.send(FlowMod{Op: FlowModDeleteByCookie, TableID: b.tableID, Cookie: cookie, CookieMask: decision.CookieMask})
}

// Barrier issues a barrier request and blocks (via the sender's own
// semantics) until its reply, giving prior sends a completion ordering
// guarantee relative to whatever the caller does next.
func (b *Backend) Barrier() error {
	return b.sender.Send([]byte{transport.OFPTBarrierReq})
}

func (b *Backend) send(fm FlowMod) error {
	return b.sender.Send(encodeFlowMod(fm))
}

// OXM is the OpenFlow Extensible Match wire shape of one match.Field:
// namespace/id from the field's Type, value and (when the field is not
// an exact match) mask rendered as big-endian byte strings. The real
// OpenFlow 1.3 codec is a separate external collaborator — this struct
// is as far as this package goes toward "compiles to OXM", but it keeps
// that promise concrete and testable without implementing the wire
// protocol end to end.
type OXM struct {
	Namespace uint16
	ID        uint8
	HasMask   bool
	Value     []byte
	Mask      []byte
}

func toOXM(f match.Field) OXM {
	o := OXM{
		Namespace: uint16(f.Type.Namespace),
		ID:        f.Type.ID,
		HasMask:   !f.Exact(),
		Value:     f.Value.Bytes(),
	}
	if o.HasMask {
		o.Mask = f.Mask.Bytes()
	}
	return o
}

// OXMs renders fm's Match fields in OXM wire shape.
func (fm FlowMod) OXMs() []OXM {
	out := make([]OXM, len(fm.Match))
	for i, f := range fm.Match {
		out[i] = toOXM(f)
	}
	return out
}

// encodeFlowMod is a placeholder wire encoding: the actual OpenFlow 1.3
// codec is a separate external collaborator. A production Sender would
// hand FlowMod to the real codec before calling Send; the in-memory
// Sender used in tests just records the formatted struct. Match fields
// are rendered through OXMs so the recorded message reflects the same
// OXM shape a real codec would encode, not match.Field's internal
// bit-string representation.
func encodeFlowMod(fm FlowMod) []byte {
	return []byte(fmt.Sprintf("op=%d table=%d prio=%d match=%+v cookie=%#x actions=%+v",
		fm.Op, fm.TableID, fm.Priority, fm.OXMs(), fm.Cookie, fm.Actions))
}
