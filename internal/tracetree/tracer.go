// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tracetree

import (
	"fmt"
	"weak"

	"grimm.is/reactived/internal/decision"
	"grimm.is/reactived/internal/fieldset"
	"grimm.is/reactived/internal/match"
	"grimm.is/reactived/internal/rerrors"
	"grimm.is/reactived/internal/trace"
)

// pathStep records one decision point walked while augmenting the tree,
// so Finish can replay it as a sequence of sentinel rules once the
// terminal Flow is known.
type pathStep struct {
	priority  uint32
	predicate match.Field
	id        string
	match     *fieldset.Set // accumulated match up to (not including) this step
}

// treeTracer implements trace.Tracer for one packet-in augmentation. It
// walks from the tree's root, converting Unexplored nodes into the kind
// the policy's reads and tests demand, and accumulates the match a
// compiled rule at the eventual leaf would need.
type treeTracer struct {
	tree  *Tree
	cur   *node
	low   uint32
	high  uint32
	match *fieldset.Set
	path  []pathStep
}

func newTreeTracer(t *Tree) *treeTracer {
	return &treeTracer{tree: t, cur: t.root, low: t.rangeLow, high: t.rangeHigh, match: fieldset.New()}
}

// Load converts the current node to a Load node (or validates it already
// is one over the same mask), descends into the child keyed by
// unexplored's value, and folds the exact field into the accumulated
// match.
func (tt *treeTracer) Load(unexplored match.Field) error {
	m := unexplored.MaskOf()
	switch tt.cur.kind {
	case kindUnexplored:
		tt.cur.kind = kindLoad
		tt.cur.loadMask = m
		tt.cur.loadChildren = make(map[string]*node)
	case kindLoad:
		if !tt.cur.loadMask.Equal(m) {
			return rerrors.Errorf(rerrors.KindTraceInconsistent, "load at %s: tree expects mask %s, packet offered %s", unexplored.Type, tt.cur.loadMask, m)
		}
	default:
		return rerrors.Errorf(rerrors.KindTraceInconsistent, "load at %s: node is already a %v", unexplored.Type, tt.cur.kind)
	}

	key := string(unexplored.Value.Bytes())
	child, ok := tt.cur.loadChildren[key]
	if !ok {
		child = newUnexplored()
		tt.cur.loadChildren[key] = child
	}
	if err := tt.match.Modify(unexplored); err != nil {
		return err
	}
	tt.cur = child
	return nil
}

// Test converts the current node to a Test node (or validates it already
// tests the same predicate), allocating a fresh priority midpoint the
// first time this predicate is seen at this position, then descends
// along the branch ret picked.
func (tt *treeTracer) Test(pred match.Field, ret bool) error {
	switch tt.cur.kind {
	case kindUnexplored:
		mid, err := allocateMidpoint(tt.low, tt.high)
		if err != nil {
			return err
		}
		tt.cur.kind = kindTest
		tt.cur.testField = pred
		tt.cur.testID = fmt.Sprintf("%s:%x/%x", pred.Type, pred.Value.Bytes(), pred.Mask.Bytes())
		tt.cur.testPriority = mid
		tt.cur.positive = newUnexplored()
		tt.cur.negative = newUnexplored()
	case kindTest:
		if !fieldsEqual(tt.cur.testField, pred) {
			return rerrors.Errorf(rerrors.KindTraceInconsistent, "test at %s: tree expects predicate %s, packet offered %s", pred.Type, tt.cur.testField, pred)
		}
	default:
		return rerrors.Errorf(rerrors.KindTraceInconsistent, "test at %s: node is already a %v", pred.Type, tt.cur.kind)
	}

	tt.path = append(tt.path, pathStep{
		priority:  tt.cur.testPriority,
		predicate: tt.cur.testField,
		id:        tt.cur.testID,
		match:     tt.match.Clone(),
	})

	if ret {
		tt.low = tt.cur.testPriority
		tt.cur = tt.cur.positive
	} else {
		tt.high = tt.cur.testPriority
		tt.cur = tt.cur.negative
	}
	return nil
}

// VLoad converts the current node to a VLoad node (or validates it
// already is one over the same mask), then looks the child up two ways:
// first by by's concrete value (bySource), then — if that value hasn't
// been seen — by what's reduced value (byWhat), so a second source value
// reducing to an already-known continuation reuses the existing subtree
// instead of duplicating it.
func (tt *treeTracer) VLoad(by match.Field, what match.Field) error {
	m := by.MaskOf()
	switch tt.cur.kind {
	case kindUnexplored:
		tt.cur.kind = kindVLoad
		tt.cur.vloadMask = m
		tt.cur.vloadBySource = make(map[string]*node)
		tt.cur.vloadByWhat = make(map[string]*node)
	case kindVLoad:
		if !tt.cur.vloadMask.Equal(m) {
			return rerrors.Errorf(rerrors.KindTraceInconsistent, "vload at %s: tree expects mask %s, packet offered %s", by.Type, tt.cur.vloadMask, m)
		}
	default:
		return rerrors.Errorf(rerrors.KindTraceInconsistent, "vload at %s: node is already a %v", by.Type, tt.cur.kind)
	}

	sourceKey := string(by.Value.Bytes())
	if child, ok := tt.cur.vloadBySource[sourceKey]; ok {
		tt.cur = child
	} else {
		whatKey := fmt.Sprintf("%s:%x", what.Type, what.Value.Bytes())
		child, ok := tt.cur.vloadByWhat[whatKey]
		if !ok {
			child = newUnexplored()
			tt.cur.vloadByWhat[whatKey] = child
		}
		tt.cur.vloadBySource[sourceKey] = child
		tt.cur = child
	}

	if err := tt.match.Modify(by); err != nil {
		return err
	}
	return nil
}

// Finish plants (or overwrites) a Flow leaf at the tracer's current
// position and returns the Installer the caller will run, inside a
// barrier, to realize every sentinel rule walked and the terminal rule
// itself.
func (tt *treeTracer) Finish(flow *decision.Flow) (trace.Installer, error) {
	priority := midpointForLeaf(tt.low, tt.high)
	tt.cur.kind = kindFlow
	tt.cur.flowPriority = priority
	tt.cur.flowWeak = weak.Make(flow)

	steps := tt.path
	finalMatch := tt.match.Clone()
	tree := tt.tree

	return func() error {
		b := tree.backendFor(flow.PacketInContext().SwitchID)
		if b == nil {
			return rerrors.Errorf(rerrors.KindNoSuchSwitch, "no backend for switch %d", flow.PacketInContext().SwitchID)
		}
		for _, step := range steps {
			if err := b.BarrierRule(step.priority, step.match, step.predicate, step.id); err != nil {
				return err
			}
		}
		return b.Install(priority, finalMatch, flow)
	}, nil
}

func allocateMidpoint(low, high uint32) (uint32, error) {
	if high <= low+1 {
		return 0, rerrors.Errorf(rerrors.KindPriorityExceeded, "no priority room left between %d and %d", low, high)
	}
	mid := low + (high-low)/2
	if mid <= low || mid >= high {
		return 0, rerrors.Errorf(rerrors.KindPriorityExceeded, "no priority room left between %d and %d", low, high)
	}
	return mid, nil
}

// midpointForLeaf picks a priority for a terminal Flow node without the
// strict allocateMidpoint failure mode: a leaf's priority only needs to
// separate it from its own Test siblings, never to leave room for a
// future Test at this exact position.
func midpointForLeaf(low, high uint32) uint32 {
	if high <= low+1 {
		return low
	}
	return low + (high-low)/2
}
