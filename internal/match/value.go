// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package match

import (
	"grimm.is/reactived/internal/bits"
	"grimm.is/reactived/internal/netutil"
	"grimm.is/reactived/internal/rerrors"
)

// Value is a bit-string of width Type.NBits carrying a concrete value of
// that field.
type Value struct {
	Type Type
	Bits bits.Bits
}

// NewValue builds a Value of Type t from a host integer literal,
// corresponding to `type == value_literal` in the algebra.
func NewValue(t Type, literal uint64) (Value, error) {
	b, err := bits.FromUint64(t.NBits, literal)
	if err != nil {
		return Value{}, rerrors.Wrapf(err, rerrors.KindBadBitLength, "value literal for %s", t)
	}
	return Value{Type: t, Bits: b}, nil
}

// NewValueBytes builds a Value of Type t from a big-endian byte buffer.
// The buffer must be exactly wide enough to hold t.NBits bits or
// bad_bit_length is raised.
func NewValueBytes(t Type, buf []byte) (Value, error) {
	want := (t.NBits + 7) / 8
	if len(buf) != want {
		return Value{}, rerrors.Errorf(rerrors.KindBadBitLength,
			"value buffer for %s: got %d bytes, want %d", t, len(buf), want)
	}
	return Value{Type: t, Bits: bits.FromBytes(t.NBits, buf)}, nil
}

// NewValueMAC builds a 48-bit Value of Type t from a colon- or
// dash-separated MAC literal, for fields like eth_src/eth_dst or the
// ARP sha/tha pair.
func NewValueMAC(t Type, macStr string) (Value, error) {
	mac, err := netutil.ParseMAC(macStr)
	if err != nil {
		return Value{}, rerrors.Wrapf(err, rerrors.KindBadBitLength, "MAC literal for %s", t)
	}
	return NewValueBytes(t, mac)
}

// NewValueIPv4 builds a 32-bit Value of Type t from a dotted-quad
// literal, for fields like ipv4_src/ipv4_dst or the ARP spa/tpa pair.
func NewValueIPv4(t Type, s string) (Value, error) {
	ip, err := netutil.ParseIPv4(s)
	if err != nil {
		return Value{}, rerrors.Wrapf(err, rerrors.KindBadBitLength, "IPv4 literal for %s", t)
	}
	return NewValueBytes(t, ip)
}

// NewValueIPv6 builds a 128-bit Value of Type t from an IPv6 literal,
// for fields like ipv6_src/ipv6_dst.
func NewValueIPv6(t Type, s string) (Value, error) {
	ip, err := netutil.ParseIPv6(s)
	if err != nil {
		return Value{}, rerrors.Wrapf(err, rerrors.KindBadBitLength, "IPv6 literal for %s", t)
	}
	return NewValueBytes(t, ip)
}

// Uint64 converts the value to a host integer (widths <= 64 only).
func (v Value) Uint64() (uint64, error) {
	n, err := v.Bits.Uint64()
	if err != nil {
		return 0, rerrors.Wrapf(err, rerrors.KindBadBitLength, "value of %s", v.Type)
	}
	return n, nil
}

// Equal reports value equality (`value & value` → equality). Comparing
// values of different (namespace,id) raises bad_operands.
func (v Value) Equal(o Value) (bool, error) {
	if !v.Type.Equals(o.Type) {
		return false, rerrors.Errorf(rerrors.KindBadOperands, "%s vs %s", v.Type, o.Type)
	}
	return v.Bits.Equal(o.Bits), nil
}

// WithMask constructs a Field from a Value and a Mask of the same Type
// (`value & mask` constructs a field).
func (v Value) WithMask(m Mask) (Field, error) {
	if !v.Type.Equals(m.Type) {
		return Field{}, rerrors.Errorf(rerrors.KindBadOperands, "%s vs %s", v.Type, m.Type)
	}
	return newField(v.Type, v.Bits, m.Bits)
}

// Rewrite applies a field's rewrite to this value: (value & ~f.Mask) |
// f.Value. The field must share this value's Type.
func (v Value) Rewrite(f Field) (Value, error) {
	if !v.Type.Equals(f.Type) {
		return Value{}, rerrors.Errorf(rerrors.KindBadOperands, "%s vs %s", v.Type, f.Type)
	}
	nv := v.Bits.And(f.Mask.Not()).Or(f.Value)
	return Value{Type: v.Type, Bits: nv}, nil
}
