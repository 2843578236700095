// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package match

import (
	"grimm.is/reactived/internal/bits"
	"grimm.is/reactived/internal/rerrors"
)

// Mask is a bit-string of width Type.NBits. It is Exact iff all bits are
// set, Wildcard iff none are, and Fuzzy otherwise. A Fuzzy mask on a
// non-maskable Type is invalid (bad_mask).
type Mask struct {
	Type Type
	Bits bits.Bits
}

// NewMask builds a Mask of Type t from a host integer literal
// (`type & mask_literal`). Constructing a fuzzy mask on a non-maskable
// type fails with bad_mask.
func NewMask(t Type, literal uint64) (Mask, error) {
	b, err := bits.FromUint64(t.NBits, literal)
	if err != nil {
		return Mask{}, rerrors.Wrapf(err, rerrors.KindBadBitLength, "mask literal for %s", t)
	}
	m := Mask{Type: t, Bits: b}
	if err := m.validate(); err != nil {
		return Mask{}, err
	}
	return m, nil
}

// ExactMask returns the all-ones mask for t (always valid, regardless of
// maskable).
func ExactMask(t Type) Mask {
	m := Mask{Type: t, Bits: bits.New(t.NBits).Not()}
	return m
}

// WildcardMask returns the all-zero mask for t (always valid).
func WildcardMask(t Type) Mask {
	return Mask{Type: t, Bits: bits.New(t.NBits)}
}

func (m Mask) validate() error {
	if m.Type.Maskable {
		return nil
	}
	if m.Exact() || m.Wildcard() {
		return nil
	}
	return rerrors.Errorf(rerrors.KindBadMask, "fuzzy mask on non-maskable type %s", m.Type)
}

// Exact reports whether every bit is set.
func (m Mask) Exact() bool { return m.Bits.AllOnes() }

// Wildcard reports whether every bit is clear.
func (m Mask) Wildcard() bool { return m.Bits.AllZero() }

// Fuzzy reports whether the mask is neither exact nor wildcard.
func (m Mask) Fuzzy() bool { return !m.Exact() && !m.Wildcard() }

// Equal reports whether two masks share the same type and bits.
func (m Mask) Equal(o Mask) bool {
	return m.Type.Equals(o.Type) && m.Bits.Equal(o.Bits)
}

// Intersect returns the bitwise-AND of two same-Type masks.
func (m Mask) Intersect(o Mask) (Mask, error) {
	if !m.Type.Equals(o.Type) {
		return Mask{}, rerrors.Errorf(rerrors.KindBadOperands, "%s vs %s", m.Type, o.Type)
	}
	return Mask{Type: m.Type, Bits: m.Bits.And(o.Bits)}, nil
}

// Union returns the bitwise-OR of two same-Type masks.
func (m Mask) Union(o Mask) (Mask, error) {
	if !m.Type.Equals(o.Type) {
		return Mask{}, rerrors.Errorf(rerrors.KindBadOperands, "%s vs %s", m.Type, o.Type)
	}
	return Mask{Type: m.Type, Bits: m.Bits.Or(o.Bits)}, nil
}
