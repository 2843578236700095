// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValueRoundTrip(t *testing.T) {
	v, err := NewValue(IPProto, 6)
	require.NoError(t, err)
	got, err := v.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(6), got)
}

func TestNewValueMACLiteral(t *testing.T) {
	v, err := NewValueMAC(EthSrc, "02:00:00:00:00:01")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0, 0, 0, 0, 0x01}, v.Bits.Bytes())
}

func TestNewValueMACBadLiteral(t *testing.T) {
	_, err := NewValueMAC(EthSrc, "not-a-mac")
	assert.Error(t, err)
}

func TestNewValueIPv4Literal(t *testing.T) {
	v, err := NewValueIPv4(IPv4Src, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 0, 0, 1}, v.Bits.Bytes())
}

func TestNewValueIPv4RejectsIPv6(t *testing.T) {
	_, err := NewValueIPv4(IPv4Src, "::1")
	assert.Error(t, err)
}

func TestNewValueIPv6Literal(t *testing.T) {
	v, err := NewValueIPv6(IPv6Src, "fe80::1")
	require.NoError(t, err)
	assert.Len(t, v.Bits.Bytes(), 16)
}

func TestValueEqualRejectsMismatchedTypes(t *testing.T) {
	a, _ := NewValue(IPProto, 6)
	b, _ := NewValue(TCPSrc, 6)
	_, err := a.Equal(b)
	assert.Error(t, err)
}

func TestValueRewrite(t *testing.T) {
	base, _ := NewValue(VlanVid, 0)
	f, err := FromValueMaskFromLiterals(VlanVid, 5, 0xfff)
	require.NoError(t, err)
	rewritten, err := base.Rewrite(f)
	require.NoError(t, err)
	got, _ := rewritten.Uint64()
	assert.Equal(t, uint64(5), got)
}

// FromValueMaskFromLiterals is a small test-local helper combining NewValue
// and NewMask, since most tests want a field shape without also exercising
// a separate value/mask construction path.
func FromValueMaskFromLiterals(t Type, value, mask uint64) (Field, error) {
	v, err := NewValue(t, value)
	if err != nil {
		return Field{}, err
	}
	m, err := NewMask(t, mask)
	if err != nil {
		return Field{}, err
	}
	return v.WithMask(m)
}

func TestMaskExactWildcardFuzzy(t *testing.T) {
	assert.True(t, ExactMask(IPProto).Exact())
	assert.True(t, WildcardMask(IPProto).Wildcard())

	fuzzy, err := NewMask(VlanVid, 0x0ff)
	require.NoError(t, err)
	assert.True(t, fuzzy.Fuzzy())
}

func TestFuzzyMaskOnNonMaskableTypeRejected(t *testing.T) {
	_, err := NewMask(IPProto, 0x0f)
	assert.Error(t, err)
}

func TestMaskIntersectUnion(t *testing.T) {
	a, _ := NewMask(VlanVid, 0x0f0)
	b, _ := NewMask(VlanVid, 0x00f)

	inter, err := a.Intersect(b)
	require.NoError(t, err)
	assert.True(t, inter.Wildcard())

	union, err := a.Union(b)
	require.NoError(t, err)
	assert.True(t, union.Exact())
}

func TestMaskMismatchedTypesRejected(t *testing.T) {
	a := ExactMask(IPProto)
	b := ExactMask(TCPSrc)
	_, err := a.Intersect(b)
	assert.Error(t, err)
	_, err = a.Union(b)
	assert.Error(t, err)
}

func TestFieldInvariantClipsValueToMask(t *testing.T) {
	v, _ := NewValue(VlanVid, 0xfff)
	m, _ := NewMask(VlanVid, 0x00f)
	f, err := v.WithMask(m)
	require.NoError(t, err)
	got, _ := f.ValueOf().Uint64()
	assert.Equal(t, uint64(0x00f), got)
}

func TestFieldExactWildcardFuzzy(t *testing.T) {
	v, _ := NewValue(IPProto, 6)
	exact := FromValue(v)
	assert.True(t, exact.Exact())
	assert.False(t, exact.Wildcard())
}

func TestFieldAsDowncast(t *testing.T) {
	v, _ := NewValue(IPProto, 6)
	f := FromValue(v)

	same, err := f.As(IPProto)
	require.NoError(t, err)
	assert.Equal(t, f, same)

	_, err = f.As(TCPSrc)
	assert.Error(t, err)
}

func TestFieldMatch(t *testing.T) {
	a, _ := FromValueMaskFromLiterals(VlanVid, 0x100, 0xf00)
	b, _ := FromValueMaskFromLiterals(VlanVid, 0x1ab, 0xf00)
	ok, err := a.Match(b)
	require.NoError(t, err)
	assert.True(t, ok)

	c, _ := FromValueMaskFromLiterals(VlanVid, 0x200, 0xf00)
	ok, err = a.Match(c)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFieldMatchMismatchedTypes(t *testing.T) {
	a, _ := NewValue(IPProto, 6)
	fa := FromValue(a)
	b, _ := NewValue(TCPSrc, 80)
	fb := FromValue(b)
	_, err := fa.Match(fb)
	assert.Error(t, err)
}

func TestFieldMatchValue(t *testing.T) {
	f, _ := FromValueMaskFromLiterals(IPProto, 6, 0xff)
	v, _ := NewValue(IPProto, 6)
	ok, err := f.MatchValue(v)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFieldComposeLaterRewriteWins(t *testing.T) {
	f, _ := FromValueMaskFromLiterals(VlanVid, 0x100, 0xf00)
	g, _ := FromValueMaskFromLiterals(VlanVid, 0x0ab, 0x0ff)

	composed, err := f.Compose(g)
	require.NoError(t, err)
	got, _ := composed.ValueOf().Uint64()
	assert.Equal(t, uint64(0x1ab), got)
	assert.True(t, composed.Exact())
}

func TestFieldComposeMismatchedTypesRejected(t *testing.T) {
	a, _ := NewValue(IPProto, 6)
	fa := FromValue(a)
	b, _ := NewValue(TCPSrc, 80)
	fb := FromValue(b)
	_, err := fa.Compose(fb)
	assert.Error(t, err)
}

func TestFieldStringRendersMACAddresses(t *testing.T) {
	v, err := NewValueMAC(EthSrc, "02:00:00:00:00:01")
	require.NoError(t, err)
	f, err := v.WithMask(ExactMask(EthSrc))
	require.NoError(t, err)
	assert.Equal(t, "eth_src=02:00:00:00:00:01", f.String())
}

func TestTypeEqualsIgnoresWidthAndMaskable(t *testing.T) {
	custom := NewExperimenter(EthSrc.ID, 8, false, "")
	assert.False(t, EthSrc.Equals(custom)) // different namespace
	assert.True(t, EthSrc.Equals(Type{Namespace: EthSrc.Namespace, ID: EthSrc.ID}))
}

func TestAllBasicListsEveryType(t *testing.T) {
	all := AllBasic()
	assert.Len(t, all, 21)
	seen := make(map[Type]bool)
	for _, ty := range all {
		seen[Type{Namespace: ty.Namespace, ID: ty.ID}] = true
	}
	assert.True(t, seen[Type{Namespace: EthSrc.Namespace, ID: EthSrc.ID}])
}
