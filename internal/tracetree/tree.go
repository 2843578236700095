// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tracetree

import (
	"sync"

	"grimm.is/reactived/internal/backend"
	"grimm.is/reactived/internal/bits"
	"grimm.is/reactived/internal/decision"
	"grimm.is/reactived/internal/fieldset"
	"grimm.is/reactived/internal/match"
	"grimm.is/reactived/internal/packet"
	"grimm.is/reactived/internal/rerrors"
	"grimm.is/reactived/internal/trace"
)

// BackendFor resolves the backend that owns switchID's reactive table,
// or nil if no connection is currently registered for it.
type BackendFor func(switchID uint64) *backend.Backend

// Tree is one reactive domain's Trace Tree: the single persistent
// structure every packet-in for that domain is matched against and, on
// an unexplored read or test, augmented into.
type Tree struct {
	mu    sync.Mutex
	root  *node

	rangeLow, rangeHigh uint32
	backendFor          BackendFor
}

// New returns an empty Tree whose Test nodes allocate priorities inside
// (rangeLow, rangeHigh) exclusive.
func New(rangeLow, rangeHigh uint32, backendFor BackendFor) *Tree {
	return &Tree{root: newUnexplored(), rangeLow: rangeLow, rangeHigh: rangeHigh, backendFor: backendFor}
}

// Lookup walks pkt down the tree along its already-explored bits only,
// reporting the Flow at the matching leaf if the whole path is already
// known. It returns ok=false the moment it reaches an Unexplored node, a
// Load or VLoad value with no child yet, or a Flow leaf whose weak
// reference has gone stale — the caller falls back to Augment in that
// case.
func (t *Tree) Lookup(pkt packet.Packet) (*decision.Flow, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.root
	for {
		switch n.kind {
		case kindFlow:
			f := n.flowWeak.Value()
			if f == nil {
				return nil, false, nil
			}
			return f, true, nil
		case kindLoad:
			v, err := pkt.Load(n.loadMask)
			if err != nil {
				return nil, false, err
			}
			child, ok := n.loadChildren[string(v.Value.Bytes())]
			if !ok {
				return nil, false, nil
			}
			n = child
		case kindTest:
			ok, err := pkt.Test(n.testField)
			if err != nil {
				return nil, false, err
			}
			if ok {
				n = n.positive
			} else {
				n = n.negative
			}
		case kindVLoad:
			v, err := pkt.Load(n.vloadMask)
			if err != nil {
				return nil, false, err
			}
			child, ok := n.vloadBySource[string(v.Value.Bytes())]
			if !ok {
				return nil, false, nil
			}
			n = child
		default: // kindUnexplored
			return nil, false, nil
		}
	}
}

// Augment runs policy over pkt wrapped in a tracer bound to this tree,
// growing whatever part of the tree the policy's reads and tests
// demand, and returns the decision plus an Installer that realizes the
// walked path's rules once run.
func (t *Tree) Augment(pkt packet.Packet, flow *decision.Flow, policy func(*trace.TraceablePacket) (decision.Decision, error)) (decision.Decision, trace.Installer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tt := newTreeTracer(t)
	wrapped := trace.New(pkt, tt)
	d, err := policy(wrapped)
	if err != nil {
		return decision.Decision{}, nil, err
	}
	installer, err := tt.Finish(flow)
	if err != nil {
		return decision.Decision{}, nil, err
	}
	return d, installer, nil
}

// Reinstall re-sends flow's Flow-Mod over the leaf pkt already walks to,
// without growing the tree or emitting the sentinel barrier rules along
// the way (those are assumed already installed). This is the runtime's
// "re-activate" collaborator for both of the Active branches of the
// packet-in state switch: an Active flow that still produced a
// table-miss, and an Active flow whose Inspect decision asked to see
// every packet. It returns KindTraceInconsistent if pkt's path diverges
// from the tree shape Lookup would have walked.
func (t *Tree) Reinstall(switchID uint64, pkt packet.Packet, flow *decision.Flow) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.backendFor(switchID)
	if b == nil {
		return rerrors.Errorf(rerrors.KindNoSuchSwitch, "no backend for switch %d", switchID)
	}

	n := t.root
	m := fieldset.New()
	for {
		switch n.kind {
		case kindFlow:
			return b.Install(n.flowPriority, m, flow)
		case kindLoad:
			v, err := pkt.Load(n.loadMask)
			if err != nil {
				return err
			}
			child, ok := n.loadChildren[string(v.Value.Bytes())]
			if !ok {
				return rerrors.Errorf(rerrors.KindTraceInconsistent, "reinstall: no load child for switch %d", switchID)
			}
			if err := m.Modify(v); err != nil {
				return err
			}
			n = child
		case kindTest:
			ok, err := pkt.Test(n.testField)
			if err != nil {
				return err
			}
			if ok {
				n = n.positive
			} else {
				n = n.negative
			}
		case kindVLoad:
			v, err := pkt.Load(n.vloadMask)
			if err != nil {
				return err
			}
			child, ok := n.vloadBySource[string(v.Value.Bytes())]
			if !ok {
				return rerrors.Errorf(rerrors.KindTraceInconsistent, "reinstall: no vload child for switch %d", switchID)
			}
			if err := m.Modify(v); err != nil {
				return err
			}
			n = child
		default: // kindUnexplored
			return rerrors.Errorf(rerrors.KindTraceInconsistent, "reinstall: unexplored node for switch %d", switchID)
		}
	}
}

// LeafCount returns the number of Flow leaves currently reachable in the
// tree, including ones whose weak reference has already gone stale.
func (t *Tree) LeafCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countLeaves(t.root)
}

// Commit re-synchronizes one switch's reactive table with the tree's
// current shape: it barriers, deletes every reactive flow entry, walks
// the whole tree re-emitting sentinel and terminal rules, then barriers
// again. This is the heavyweight path used after a topology
// invalidation or controller (re)connect, never on the packet-in
// fast path.
func (t *Tree) Commit(switchID uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.backendFor(switchID)
	if b == nil {
		return nil
	}
	if err := b.Barrier(); err != nil {
		return err
	}
	if err := b.RemoveBySet(fieldset.New()); err != nil {
		return err
	}
	if err := t.walkInstall(t.root, fieldset.New(), b); err != nil {
		return err
	}
	return b.Barrier()
}

func (t *Tree) walkInstall(n *node, m *fieldset.Set, b *backend.Backend) error {
	switch n.kind {
	case kindUnexplored:
		return nil
	case kindFlow:
		f := n.flowWeak.Value()
		if f == nil {
			return nil
		}
		return b.Install(n.flowPriority, m, f)
	case kindLoad:
		for key, child := range n.loadChildren {
			next, err := extendMatch(m, n.loadMask, key)
			if err != nil {
				return err
			}
			if err := t.walkInstall(child, next, b); err != nil {
				return err
			}
		}
		return nil
	case kindVLoad:
		for key, child := range n.vloadBySource {
			next, err := extendMatch(m, n.vloadMask, key)
			if err != nil {
				return err
			}
			if err := t.walkInstall(child, next, b); err != nil {
				return err
			}
		}
		return nil
	case kindTest:
		if err := b.BarrierRule(n.testPriority, m, n.testField, n.testID); err != nil {
			return err
		}
		if err := t.walkInstall(n.negative, m.Clone(), b); err != nil {
			return err
		}
		return t.walkInstall(n.positive, m.Clone(), b)
	default:
		return nil
	}
}

func extendMatch(m *fieldset.Set, mask match.Mask, rawKey string) (*fieldset.Set, error) {
	v := bits.FromBytes(mask.Type.NBits, []byte(rawKey))
	f, err := match.NewField(mask.Type, v, mask.Bits)
	if err != nil {
		return nil, err
	}
	out := m.Clone()
	if err := out.Modify(f); err != nil {
		return nil, err
	}
	return out, nil
}

// Update rebalances every Test node's priority across the whole tree,
// weighting each branch by how many Flow leaves it carries, so a branch
// that has grown lopsided gets more of the remaining priority space.
// Runtime calls this after a Test allocation reports priority_exceeded.
func (t *Tree) Update() {
	t.mu.Lock()
	defer t.mu.Unlock()
	rebalance(t.root, t.rangeLow, t.rangeHigh)
}

func rebalance(n *node, low, high uint32) {
	if n == nil {
		return
	}
	switch n.kind {
	case kindTest:
		negLeaves := countLeaves(n.negative)
		posLeaves := countLeaves(n.positive)
		total := negLeaves + posLeaves
		if total == 0 {
			total = 1
		}
		span := uint64(high - low)
		pivot := low + uint32(span*uint64(negLeaves)/uint64(total))
		if pivot <= low {
			pivot = low + 1
		}
		if pivot >= high {
			pivot = high - 1
		}
		n.testPriority = pivot
		rebalance(n.negative, low, pivot)
		rebalance(n.positive, pivot, high)
	case kindLoad:
		for _, c := range n.loadChildren {
			rebalance(c, low, high)
		}
	case kindVLoad:
		for _, c := range n.vloadByWhat {
			rebalance(c, low, high)
		}
	case kindFlow:
		n.flowPriority = midpointForLeaf(low, high)
	}
}
