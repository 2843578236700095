// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorfFormatsMessage(t *testing.T) {
	err := Errorf(KindBadBitLength, "field %s too wide", "eth_src")
	assert.EqualError(t, err, "bad_bit_length: field eth_src too wide")
}

func TestWrapPreservesUnderlyingAndNilPassesThrough(t *testing.T) {
	cause := errors.New("boom")
	wrapped := Wrap(cause, KindTransport, "send failed")
	require.Error(t, wrapped)
	assert.ErrorIs(t, wrapped, cause)
	assert.Nil(t, Wrap(nil, KindTransport, "unused"))
}

func TestGetKindOnForeignErrorIsUnknown(t *testing.T) {
	assert.Equal(t, KindUnknown, GetKind(errors.New("not ours")))
}

func TestGetKindOnWrappedChainFindsFirstError(t *testing.T) {
	inner := New(KindBadMask, "fuzzy mask on non-maskable type")
	outer := Wrap(inner, KindInternal, "propagated")
	assert.Equal(t, KindInternal, GetKind(outer))
}

func TestAttrAttachesAndAccumulatesAlongChain(t *testing.T) {
	err := New(KindNoSuchSwitch, "switch 7 unknown")
	err = Attr(err, "switch_id", uint64(7))
	inner := err
	outer := Wrap(inner, KindInternal, "dispatch failed")
	outer = Attr(outer, "handler", "packet_in")

	attrs := GetAttributes(outer)
	assert.Equal(t, "packet_in", attrs["handler"])
	assert.Equal(t, uint64(7), attrs["switch_id"])
}

func TestAttrWrapsForeignErrorAsInternal(t *testing.T) {
	err := Attr(errors.New("plain"), "key", "value")
	assert.Equal(t, KindInternal, GetKind(err))
	assert.Equal(t, "value", GetAttributes(err)["key"])
}

func TestKindStringNames(t *testing.T) {
	cases := map[Kind]string{
		KindMalformed:        "malformed",
		KindDecisionConflict: "decision_conflict",
		KindPriorityExceeded: "priority_exceeded",
		KindUnknown:          "unknown",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
}
