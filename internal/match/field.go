// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package match

import (
	"fmt"

	"grimm.is/reactived/internal/bits"
	"grimm.is/reactived/internal/netutil"
	"grimm.is/reactived/internal/rerrors"
)

// Field is a value + mask pair under the invariant
// Value & ~Mask == 0 (masked-off bits cleared). It is implicitly
// type-erased: every higher layer (field set, tracer, backend) passes
// Fields around without caring whether they were built from a
// statically-known Type. Downcasting to a specific Type is the checked
// operation (As); it fails with bad_cast on mismatch.
type Field struct {
	Type  Type
	Value bits.Bits
	Mask  bits.Bits
}

func newField(t Type, value, mask bits.Bits) (Field, error) {
	if value.Width() != t.NBits || mask.Width() != t.NBits {
		return Field{}, rerrors.Errorf(rerrors.KindBadBitLength,
			"field %s: value/mask width mismatch", t)
	}
	clipped := value.And(mask)
	if err := (Mask{Type: t, Bits: mask}).validate(); err != nil {
		return Field{}, err
	}
	return Field{Type: t, Value: clipped, Mask: mask}, nil
}

// NewField builds a Field from an explicit Value and Mask of type t,
// masking off bits outside mask per the invariant.
func NewField(t Type, value bits.Bits, mask bits.Bits) (Field, error) {
	return newField(t, value, mask)
}

// FromValue builds an exact Field pinning v's full value.
func FromValue(v Value) Field {
	f, _ := newField(v.Type, v.Bits, bits.New(v.Type.NBits).Not())
	return f
}

// FromValueMask builds a Field from a Value and Mask (`value & mask`).
func FromValueMask(v Value, m Mask) (Field, error) {
	return v.WithMask(m)
}

// Exact reports whether the field's mask is all-ones.
func (f Field) Exact() bool { return Mask{Type: f.Type, Bits: f.Mask}.Exact() }

// Wildcard reports whether the field's mask is all-zero.
func (f Field) Wildcard() bool { return Mask{Type: f.Type, Bits: f.Mask}.Wildcard() }

// Fuzzy reports whether the field's mask is neither exact nor wildcard.
func (f Field) Fuzzy() bool { return Mask{Type: f.Type, Bits: f.Mask}.Fuzzy() }

// MaskOf returns the field's Mask.
func (f Field) MaskOf() Mask { return Mask{Type: f.Type, Bits: f.Mask} }

// ValueOf returns the field's Value (the masked-off bits are already zero).
func (f Field) ValueOf() Value { return Value{Type: f.Type, Bits: f.Value} }

// As downcasts a type-erased Field to a specific Type, checking identity
// by (namespace, id). Mismatch raises bad_cast.
func (f Field) As(t Type) (Field, error) {
	if !f.Type.Equals(t) {
		return Field{}, rerrors.Errorf(rerrors.KindBadCast, "field is %s, not %s", f.Type, t)
	}
	return f, nil
}

// Match implements `field & field`: equal under both masks' intersection.
// Two fields of different Types never match and that is reported as
// bad_operands, mirroring the algebra's binary-operand rule.
func (f Field) Match(o Field) (bool, error) {
	if !f.Type.Equals(o.Type) {
		return false, rerrors.Errorf(rerrors.KindBadOperands, "%s vs %s", f.Type, o.Type)
	}
	common := f.Mask.And(o.Mask)
	return f.Value.And(common).Equal(o.Value.And(common)), nil
}

// MatchValue implements `field & value`: masked equality of this field's
// stored value against a concrete Value of the same Type.
func (f Field) MatchValue(v Value) (bool, error) {
	if !f.Type.Equals(v.Type) {
		return false, rerrors.Errorf(rerrors.KindBadOperands, "%s vs %s", f.Type, v.Type)
	}
	return f.Value.And(f.Mask).Equal(v.Bits.And(f.Mask)), nil
}

// Compose implements `field >> field`: composes values and the union of
// masks. Where both fields specify a bit, the argument's (later-applied)
// rewrite wins, matching rewrite-composition semantics: applying f then g
// is the same as applying f.Compose(g).
func (f Field) Compose(g Field) (Field, error) {
	if !f.Type.Equals(g.Type) {
		return Field{}, rerrors.Errorf(rerrors.KindBadOperands, "%s vs %s", f.Type, g.Type)
	}
	unionMask := f.Mask.Or(g.Mask)
	// g's rewrite is applied after f's: start from f's value, rewrite by g.
	composedValue := f.Value.And(g.Mask.Not()).Or(g.Value)
	return newField(f.Type, composedValue, unionMask)
}

func (f Field) String() string {
	return fmt.Sprintf("%s=%s", f.Type, fieldHex(f))
}

func fieldHex(f Field) string {
	if f.Type.NBits == 48 {
		if mac := netutil.FormatMAC(f.Value.Bytes()); mac != "" {
			if f.Exact() {
				return mac
			}
			return fmt.Sprintf("%s/%x", mac, f.Mask.Bytes())
		}
	}
	if f.Exact() {
		return fmt.Sprintf("%x", f.Value.Bytes())
	}
	return fmt.Sprintf("%x/%x", f.Value.Bytes(), f.Mask.Bytes())
}
