// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package runtime

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/reactived/internal/decision"
	"grimm.is/reactived/internal/fieldset"
	"grimm.is/reactived/internal/match"
	"grimm.is/reactived/internal/metrics"
	"grimm.is/reactived/internal/packet"
	"grimm.is/reactived/internal/rconfig"
	"grimm.is/reactived/internal/transport"
)

type recordingTransport struct {
	sent [][]byte
}

func (r *recordingTransport) sendFunc() transport.SendFunc {
	return func(switchID uint64, b []byte) error {
		r.sent = append(r.sent, b)
		return nil
	}
}

func (r *recordingTransport) countContaining(substr string) int {
	n := 0
	for _, b := range r.sent {
		if strings.Contains(string(b), substr) {
			n++
		}
	}
	return n
}

func newTestRuntime() *Runtime {
	return New(rconfig.Default(), nil, nil)
}

func ipProtoPacket(t *testing.T, proto uint64) *fieldset.Set {
	t.Helper()
	p := fieldset.New()
	v, err := match.NewValue(match.IPProto, proto)
	require.NoError(t, err)
	require.NoError(t, p.Modify(match.FromValue(v)))
	return p
}

func connectSwitch(t *testing.T, rt *Runtime, switchID uint64) *recordingTransport {
	t.Helper()
	rec := &recordingTransport{}
	conn := transport.NewConnection(switchID, rec.sendFunc())
	require.NoError(t, rt.HandleSwitchUp(switchID, conn))
	return rec
}

func TestHandleSwitchUpRegistersConnectionAndResyncs(t *testing.T) {
	rt := newTestRuntime()
	rec := connectSwitch(t, rt, 1)

	assert.Contains(t, rt.ConnectedSwitches(), uint64(1))
	assert.NotEmpty(t, rec.sent) // Commit barriers even an empty tree
}

func TestHandleSwitchDownRemovesConnection(t *testing.T) {
	rt := newTestRuntime()
	connectSwitch(t, rt, 1)
	rt.HandleSwitchDown(1)
	assert.NotContains(t, rt.ConnectedSwitches(), uint64(1))
}

func TestHandleTableMissInstallsFlowAndReplays(t *testing.T) {
	rt := newTestRuntime()
	rec := connectSwitch(t, rt, 1)
	rt.Use("forward", func(pkt packet.Packet, flow *decision.Flow, previous decision.Decision) (decision.Decision, error) {
		return decision.Unicast(3), nil
	})

	pkt := ipProtoPacket(t, 6)
	pictx := decision.PacketInContext{SwitchID: 1, InPort: 2, BufferID: backendNoBuffer}
	require.NoError(t, rt.HandlePacketIn(1, pictx, pkt))

	assert.Equal(t, 1, rt.LiveFlowCount())
	assert.Equal(t, 1, rt.TreeLeafCount())
	assert.Equal(t, 1, rec.countContaining("op=0"))    // flow-mod add
	assert.Equal(t, 1, rec.countContaining("buffer=")) // packet-out replay
}

func TestRepeatedTableMissOnActiveFlowReactivatesWithoutReaugmenting(t *testing.T) {
	rt := newTestRuntime()
	rec := connectSwitch(t, rt, 1)
	rt.Use("forward", func(pkt packet.Packet, flow *decision.Flow, previous decision.Decision) (decision.Decision, error) {
		return decision.Unicast(3), nil
	})

	pkt := ipProtoPacket(t, 6)
	pictx := decision.PacketInContext{SwitchID: 1, InPort: 2}
	require.NoError(t, rt.HandlePacketIn(1, pictx, pkt))
	require.Equal(t, 1, rt.TreeLeafCount())

	require.NoError(t, rt.HandlePacketIn(1, pictx, pkt))

	// The second table-miss hits the same tree leaf the first one
	// installed, which is now Active: the tree is not re-augmented (the
	// leaf count and cookie both stay put) but the flow is reactivated,
	// re-sending its Flow-Mod rather than replaying a stale decision.
	assert.Equal(t, 1, rt.LiveFlowCount())
	assert.Equal(t, 1, rt.TreeLeafCount())
	assert.Equal(t, 2, rec.countContaining("op=0"))
}

func TestUndefinedPipelineResultIsUnhandledPacket(t *testing.T) {
	rt := newTestRuntime()
	connectSwitch(t, rt, 1)

	pkt := ipProtoPacket(t, 6)
	pictx := decision.PacketInContext{SwitchID: 1}
	err := rt.HandlePacketIn(1, pictx, pkt)
	assert.Error(t, err)
}

func TestHandleFlowRemovedRetiresFlowAndClearsLiveMap(t *testing.T) {
	rt := newTestRuntime()
	connectSwitch(t, rt, 1)
	rt.Use("forward", func(pkt packet.Packet, flow *decision.Flow, previous decision.Decision) (decision.Decision, error) {
		return decision.Unicast(3), nil
	})
	pkt := ipProtoPacket(t, 6)
	require.NoError(t, rt.HandlePacketIn(1, decision.PacketInContext{SwitchID: 1}, pkt))

	flows := rt.Flows()
	require.Len(t, flows, 1)
	var cookie uint64
	for c := range flows {
		cookie = c
	}

	rt.HandleFlowRemoved(1, cookie, transport.ReasonIdleTimeout)
	assert.Equal(t, 0, rt.LiveFlowCount())
	_, ok := rt.FlowByCookie(cookie)
	assert.False(t, ok)
}

func TestIdleFlowReaugmentsOnFollowUpTableMiss(t *testing.T) {
	rt := newTestRuntime()
	connectSwitch(t, rt, 1)
	rt.Use("forward", func(pkt packet.Packet, flow *decision.Flow, previous decision.Decision) (decision.Decision, error) {
		return decision.Unicast(3), nil
	})
	pkt := ipProtoPacket(t, 6)
	pictx := decision.PacketInContext{SwitchID: 1}
	require.NoError(t, rt.HandlePacketIn(1, pictx, pkt))

	flows := rt.Flows()
	require.Len(t, flows, 1)
	var cookie uint64
	var flow *decision.Flow
	for c, f := range flows {
		cookie, flow = c, f
	}

	// Kept alive by this local, so the tree's weak leaf still resolves to
	// it: an idle-timeout removal transitions it to Idle without evicting
	// its tree leaf.
	rt.HandleFlowRemoved(1, cookie, transport.ReasonIdleTimeout)
	require.Equal(t, decision.StateIdle, flow.State())
	require.Equal(t, 0, rt.LiveFlowCount())

	// A later packet-in for the same equivalence class must re-learn via
	// the tree's Egg/Idle/Evicted augmentation branch, not silently
	// replay the stale Idle-state decision.
	require.NoError(t, rt.HandlePacketIn(1, pictx, pkt))
	assert.Equal(t, decision.StateActive, flow.State())
	assert.Equal(t, 1, rt.LiveFlowCount())
	_, ok := rt.FlowByCookie(cookie)
	assert.True(t, ok)
}

func TestInvalidateTreeResetsFlowsAndTreeAndResyncsConnectedSwitches(t *testing.T) {
	rt := newTestRuntime()
	rec := connectSwitch(t, rt, 1)
	rt.Use("forward", func(pkt packet.Packet, flow *decision.Flow, previous decision.Decision) (decision.Decision, error) {
		return decision.Unicast(3), nil
	})
	require.NoError(t, rt.HandlePacketIn(1, decision.PacketInContext{SwitchID: 1}, ipProtoPacket(t, 6)))
	require.Equal(t, 1, rt.LiveFlowCount())

	rec.sent = nil
	require.NoError(t, rt.InvalidateTree())

	assert.Equal(t, 0, rt.LiveFlowCount())
	assert.Equal(t, 0, rt.TreeLeafCount())
	assert.NotEmpty(t, rec.sent) // resync committed the fresh empty tree
}

func TestInvalidateTreeIsNoopWhenDisabled(t *testing.T) {
	cfg := rconfig.Default()
	cfg.InvalidateOnLinkChange = false
	rt := New(cfg, nil, nil)
	connectSwitch(t, rt, 1)
	rt.Use("forward", func(pkt packet.Packet, flow *decision.Flow, previous decision.Decision) (decision.Decision, error) {
		return decision.Unicast(3), nil
	})
	require.NoError(t, rt.HandlePacketIn(1, decision.PacketInContext{SwitchID: 1}, ipProtoPacket(t, 6)))

	require.NoError(t, rt.InvalidateTree())
	assert.Equal(t, 1, rt.LiveFlowCount())
}

func TestSendPacketOutWithNoBackendErrors(t *testing.T) {
	rt := newTestRuntime()
	mods := fieldset.New()
	err := rt.SendPacketOut(99, 0, 1, nil, mods, decision.Drop())
	assert.Error(t, err)
}

func TestInspectHandlerShortCircuitsReplay(t *testing.T) {
	rt := newTestRuntime()
	rec := connectSwitch(t, rt, 1)
	var handlerCalled bool
	rt.Use("inspect", func(pkt packet.Packet, flow *decision.Flow, previous decision.Decision) (decision.Decision, error) {
		handler := func(pkt packet.Packet, flow *decision.Flow) (bool, error) {
			handlerCalled = true
			return true, nil
		}
		return decision.Inspect(64, handler), nil
	})

	rec.sent = nil
	require.NoError(t, rt.HandlePacketIn(1, decision.PacketInContext{SwitchID: 1}, ipProtoPacket(t, 6)))
	assert.True(t, handlerCalled)
	// The handler fully answered the packet-in, so the only message
	// emitted is the flow-mod install itself — no packet-out replay.
	assert.Len(t, rec.sent, 1)
}

func TestMetricsAreUpdatedWhenProvided(t *testing.T) {
	m := metrics.New()
	rt := New(rconfig.Default(), m, nil)
	connectSwitch(t, rt, 1)
	rt.Use("forward", func(pkt packet.Packet, flow *decision.Flow, previous decision.Decision) (decision.Decision, error) {
		return decision.Unicast(3), nil
	})
	require.NoError(t, rt.HandlePacketIn(1, decision.PacketInContext{SwitchID: 1}, ipProtoPacket(t, 6)))
	assert.Equal(t, 1, rt.TreeLeafCount())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TreeLeafCount))
}

const backendNoBuffer = 0xffffffff
