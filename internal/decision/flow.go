// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decision

import (
	"sync"
	"sync/atomic"

	"grimm.is/reactived/internal/fieldset"
)

// State is a Flow's lifecycle state: Egg on creation, Active
// once installed, Evicted on explicit delete, Idle on idle-timeout,
// Expired on hard-timeout (terminal).
type State int

const (
	StateEgg State = iota
	StateActive
	StateEvicted
	StateIdle
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateEvicted:
		return "evicted"
	case StateIdle:
		return "idle"
	case StateExpired:
		return "expired"
	default:
		return "egg"
	}
}

// CookieBase and CookieMask are the canonical reactive-cookie-space
// constants. CookieSpace is the single source for them: every cookie
// this engine mints or recognizes is computed from these two values,
// not duplicated elsewhere.
const (
	CookieBase uint64 = 0x1_0000_0000
	CookieMask uint64 = 0xffff_ffff_0000_0000
)

// CookieSpace returns (base, mask) for the reactive cookie space: a
// switch-originated message is attributable to this engine iff
// cookie&mask == base.
func CookieSpace() (base, mask uint64) { return CookieBase, CookieMask }

// InReactiveSpace reports whether cookie falls within the reactive
// cookie space.
func InReactiveSpace(cookie uint64) bool {
	return cookie&CookieMask == CookieBase&CookieMask
}

var nextFlowID uint64

// NewCookie mints a fresh cookie inside the reactive cookie space. It is
// safe for concurrent use, though in practice each worker mints cookies
// only for switches it owns.
func NewCookie() uint64 {
	id := atomic.AddUint64(&nextFlowID, 1)
	return CookieBase | (id & ^CookieMask)
}

// PacketInContext is the per-switch context of the packet-in that
// created or last touched a Flow: enough to emit a PacketOut or to
// re-run a policy against the original bytes.
type PacketInContext struct {
	SwitchID uint64
	Cookie   uint64 // the flow-mod cookie that sent this packet to the controller, 0 on a genuine table-miss
	BufferID uint32
	InPort   uint32
	Xid      uint32
	Raw      []byte
}

// Flow holds one leaf's decision, per-switch packet-in context, and
// lifecycle state. The live-flow map (owned by the runtime) holds the
// only strong reference; a trace-tree leaf holds a weak.Pointer to it,
// so an evicted Flow's leaf quietly goes stale instead of keeping it
// alive, and a later compile pass can tell the leaf is dead from a nil
// weak.Value().
type Flow struct {
	mu sync.Mutex

	cookie   uint64
	state    State
	decision Decision
	mods     *fieldset.Set
	pictx    PacketInContext
}

// New allocates a fresh Flow in the Egg state with a freshly-minted
// cookie.
func New() *Flow {
	return &Flow{cookie: NewCookie(), state: StateEgg, decision: Undefined(), mods: fieldset.New()}
}

// NewWithCookie allocates a Flow with an explicit cookie (used when
// re-hydrating a Flow the tree already names).
func NewWithCookie(cookie uint64) *Flow {
	return &Flow{cookie: cookie, state: StateEgg, decision: Undefined(), mods: fieldset.New()}
}

// Cookie returns the flow's 64-bit cookie.
func (f *Flow) Cookie() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cookie
}

// State returns the current lifecycle state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SetState transitions the flow to a new lifecycle state.
func (f *Flow) SetState(s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

// Decision returns the flow's current decision.
func (f *Flow) Decision() Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decision
}

// SetDecision replaces the flow's decision.
func (f *Flow) SetDecision(d Decision) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decision = d
}

// Mods returns the field-modification set accumulated via
// TraceablePacket.Modify while this flow's policy ran.
func (f *Flow) Mods() *fieldset.Set {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mods
}

// SetMods replaces the field-modification set.
func (f *Flow) SetMods(s *fieldset.Set) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mods = s
}

// PacketInContext returns the last recorded packet-in context.
func (f *Flow) PacketInContext() PacketInContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pictx
}

// SetPacketInContext records a new packet-in context (buffer id, ingress
// port, xid, raw bytes) on the flow.
func (f *Flow) SetPacketInContext(ctx PacketInContext) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pictx = ctx
}
