// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/reactived/internal/decision"
	"grimm.is/reactived/internal/fieldset"
	"grimm.is/reactived/internal/match"
	"grimm.is/reactived/internal/transport"
)

type recordingSender struct {
	sent [][]byte
}

func (s *recordingSender) Send(b []byte) error {
	s.sent = append(s.sent, b)
	return nil
}

func newMatchSet(t *testing.T, ty match.Type, val uint64) *fieldset.Set {
	t.Helper()
	s := fieldset.New()
	v, err := match.NewValue(ty, val)
	require.NoError(t, err)
	require.NoError(t, s.Modify(match.FromValue(v)))
	return s
}

func TestInstallEmitsFlowModAddWithActions(t *testing.T) {
	sender := &recordingSender{}
	b := New(sender, 1, 0)

	f := decision.New()
	f.SetDecision(decision.Unicast(5))
	m := newMatchSet(t, match.IPProto, 6)

	require.NoError(t, b.Install(42, m, f))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, string(sender.sent[0]), "op=0")
	assert.Contains(t, string(sender.sent[0]), "prio=42")
}

func TestInstallOnUndefinedDecisionErrors(t *testing.T) {
	sender := &recordingSender{}
	b := New(sender, 1, 0)
	f := decision.New()
	m := fieldset.New()
	err := b.Install(1, m, f)
	assert.Error(t, err)
}

func TestBarrierRuleDeduplicatesSameMatch(t *testing.T) {
	sender := &recordingSender{}
	b := New(sender, 1, 0)
	m := newMatchSet(t, match.IPProto, 6)
	pred := m.Fields()[0]

	require.NoError(t, b.BarrierRule(100, m, pred, "step-1"))
	require.NoError(t, b.BarrierRule(100, m, pred, "step-1"))
	assert.Len(t, sender.sent, 1)
}

func TestBarrierRuleDistinctMatchesNotDeduplicated(t *testing.T) {
	sender := &recordingSender{}
	b := New(sender, 1, 0)
	m1 := newMatchSet(t, match.IPProto, 6)
	m2 := newMatchSet(t, match.IPProto, 17)

	require.NoError(t, b.BarrierRule(100, m1, m1.Fields()[0], "step-1"))
	require.NoError(t, b.BarrierRule(100, m2, m2.Fields()[0], "step-1"))
	assert.Len(t, sender.sent, 2)
}

func TestBarrierSendsBarrierRequestByte(t *testing.T) {
	sender := &recordingSender{}
	b := New(sender, 1, 0)
	require.NoError(t, b.Barrier())
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []byte{transport.OFPTBarrierReq}, sender.sent[0])
}

func TestRemoveByCookieMasksToReactiveSpace(t *testing.T) {
	sender := &recordingSender{}
	b := New(sender, 1, 0)
	require.NoError(t, b.RemoveByCookie(decision.CookieBase))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, string(sender.sent[0]), "op=2")
}

func TestPacketOutWithBufferIDOmitsRawPayload(t *testing.T) {
	sender := &recordingSender{}
	b := New(sender, 1, 0)
	mods := fieldset.New()
	err := b.PacketOut(7, 3, []byte("payload"), mods, decision.Broadcast())
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.NotContains(t, string(sender.sent[0]), "payload")
}

func TestPacketOutWithNoBufferCarriesRaw(t *testing.T) {
	sender := &recordingSender{}
	b := New(sender, 1, 0)
	mods := fieldset.New()
	err := b.PacketOut(OFPNoBuffer, 3, []byte("payload"), mods, decision.Broadcast())
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, string(sender.sent[0]), "payload")
}

func TestFlowModOXMsReflectExactAndMaskedFields(t *testing.T) {
	exactVal, err := match.NewValue(match.IPProto, 6)
	require.NoError(t, err)
	exact := match.FromValue(exactVal)

	vlanVal, err := match.NewValue(match.VlanVid, 0x100)
	require.NoError(t, err)
	vlanMask, err := match.NewMask(match.VlanVid, 0xf00)
	require.NoError(t, err)
	masked, err := vlanVal.WithMask(vlanMask)
	require.NoError(t, err)

	fm := FlowMod{Match: []match.Field{exact, masked}}
	oxms := fm.OXMs()
	require.Len(t, oxms, 2)
	assert.False(t, oxms[0].HasMask)
	assert.Nil(t, oxms[0].Mask)
	assert.True(t, oxms[1].HasMask)
	assert.NotEmpty(t, oxms[1].Mask)
}
