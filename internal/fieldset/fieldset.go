// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package fieldset implements a keyed field collection: a map from
// match.Type to match.Field storing only non-wildcarded entries, with
// packet-like Load/Test/Modify so a Set doubles as a compiled-rule
// packet representation (Set satisfies internal/packet's Packet
// interface structurally, without importing it, to keep the two
// packages acyclic).
package fieldset

import (
	"grimm.is/reactived/internal/bits"
	"grimm.is/reactived/internal/match"
	"grimm.is/reactived/internal/rerrors"
)

type key struct {
	ns match.Namespace
	id uint8
}

func keyOf(t match.Type) key { return key{t.Namespace, t.ID} }

// Set is a keyed, packet-compatible collection of match.Field values.
type Set struct {
	fields map[key]match.Field
}

// New returns an empty Set.
func New() *Set {
	return &Set{fields: make(map[key]match.Field)}
}

// Load returns the stored field for the type named by m, with its value
// masked down to m, or an all-zero field under m if the type has no
// stored entry (unspecified types implicitly match any value).
func (s *Set) Load(m match.Mask) (match.Field, error) {
	var valueBits bits.Bits
	if stored, ok := s.fields[keyOf(m.Type)]; ok {
		valueBits = stored.Value.And(m.Bits)
	} else {
		valueBits = bits.New(m.Type.NBits)
	}
	return match.NewField(m.Type, valueBits, m.Bits)
}

// Test reports whether the packet's bits, loaded under need's mask,
// equal need's value.
func (s *Set) Test(need match.Field) (bool, error) {
	loaded, err := s.Load(need.MaskOf())
	if err != nil {
		return false, err
	}
	return loaded.Match(need)
}

// Modify merges patch into the set: if the type is already present, the
// stored field is rewritten by patch (composing masks); if absent and
// patch is non-wildcard, patch is inserted as-is.
func (s *Set) Modify(patch match.Field) error {
	k := keyOf(patch.Type)
	if stored, ok := s.fields[k]; ok {
		composed, err := stored.Compose(patch)
		if err != nil {
			return err
		}
		s.fields[k] = composed
		return nil
	}
	if !patch.Wildcard() {
		s.fields[k] = patch
	}
	return nil
}

// Erase clears the bits named by m from any stored entry for its type,
// dropping the entry entirely once it becomes fully wildcarded.
func (s *Set) Erase(m match.Mask) error {
	k := keyOf(m.Type)
	stored, ok := s.fields[k]
	if !ok {
		return nil
	}
	remainingMask := stored.Mask.And(m.Bits.Not())
	remainingValue := stored.Value.And(remainingMask)
	nf, err := match.NewField(m.Type, remainingValue, remainingMask)
	if err != nil {
		return err
	}
	if nf.Wildcard() {
		delete(s.fields, k)
		return nil
	}
	s.fields[k] = nf
	return nil
}

// KnownMask returns the mask of bits already recorded for t, or the
// wildcard mask if t has no stored entry.
func (s *Set) KnownMask(t match.Type) match.Mask {
	if stored, ok := s.fields[keyOf(t)]; ok {
		return stored.MaskOf()
	}
	return match.WildcardMask(t)
}

// Fields returns every stored entry, in unspecified order.
func (s *Set) Fields() []match.Field {
	out := make([]match.Field, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, f)
	}
	return out
}

// Len reports the number of stored (non-wildcard) entries.
func (s *Set) Len() int { return len(s.fields) }

// Equal reports whether two sets store the same fields.
func (s *Set) Equal(o *Set) bool {
	if len(s.fields) != len(o.fields) {
		return false
	}
	for k, f := range s.fields {
		of, ok := o.fields[k]
		if !ok {
			return false
		}
		if !f.Value.Equal(of.Value) || !f.Mask.Equal(of.Mask) {
			return false
		}
	}
	return true
}

// Clone returns a deep-enough copy (Field values are themselves
// immutable-by-convention, so copying the map suffices).
func (s *Set) Clone() *Set {
	out := New()
	for k, f := range s.fields {
		out.fields[k] = f
	}
	return out
}

// PacketTester is satisfied by anything that can answer Test — the
// packet interface, narrowed to the one method fieldset needs to
// implement "matches packet" without importing internal/packet.
type PacketTester interface {
	Test(f match.Field) (bool, error)
}

// MatchesPacket reports whether every field stored in s also matches on
// pkt, i.e. ∀ f ∈ s: pkt.Test(f).
func (s *Set) MatchesPacket(pkt PacketTester) (bool, error) {
	for _, f := range s.fields {
		ok, err := pkt.Test(f)
		if err != nil {
			return false, rerrors.Wrap(err, rerrors.KindInternal, "fieldset: matches packet")
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
