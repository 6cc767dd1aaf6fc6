package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcctl/avrcp-go/pkg/peersim"
	"github.com/rcctl/avrcp-go/pkg/procedure"
	"github.com/rcctl/avrcp-go/pkg/transport"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

const controllerAddr = "66:55:44:33:22:11"

// simulated connects a session to a simulated target over a loopback pair.
type simulated struct {
	sess   *Session
	target *peersim.Target
	cb     *recorder
}

func newSimulated(t *testing.T, profile *peersim.Profile, cfg SessionConfig) *simulated {
	t.Helper()
	ctrl, tgt := transport.NewLoopbackPair(controllerAddr, testPeer)

	target, err := peersim.NewTarget(profile, tgt, controllerAddr, nil)
	require.NoError(t, err)
	require.NoError(t, tgt.Start(target.Handle))

	cb := &recorder{}
	sess := NewSession(ctrl, cb, cfg)
	require.NoError(t, sess.Start(context.Background()))
	require.NoError(t, ctrl.Start(sess.OnMessage))

	t.Cleanup(func() {
		sess.Stop()
		target.Close()
		ctrl.Close()
		tgt.Close()
	})

	require.NoError(t, sess.OnConnect(testPeer, target.Features()))
	return &simulated{sess: sess, target: target, cb: cb}
}

func (s *simulated) waitState(t *testing.T, cond func(State) bool) State {
	t.Helper()
	var st State
	require.Eventually(t, func() bool {
		var err error
		st, err = s.sess.State()
		return err == nil && cond(st)
	}, 2*time.Second, time.Millisecond)
	return st
}

func complete(st State) bool {
	return st.Phase == procedure.PhaseComplete
}

func TestSimulatedFullProcedure(t *testing.T) {
	sim := newSimulated(t, peersim.DefaultProfile(), testConfig())

	st := sim.waitState(t, func(st State) bool { return complete(st) && st.VolumeSubscribed })
	assert.True(t, st.ProcedureComplete)
	assert.Len(t, st.Events, 3)
	assert.Equal(t, uint64(1), st.TrackUID)
	assert.Equal(t, uint8(64), st.Volume)
	// Three notifications and the volume registration stay held.
	assert.Equal(t, 4, st.LabelsInUse)

	settings := sim.cb.waitFor(t, "PlayerAppSettings", 1)[0].args[0].(procedure.PlayerSettings)
	require.Len(t, settings.Standard, 2)
	assert.Equal(t, wire.AppAttrRepeat, settings.Standard[0].AttrID)
	assert.Equal(t, []uint8{1, 2, 3}, settings.Standard[0].Values)
	require.Len(t, settings.Extended, 1)
	assert.Equal(t, "Crossfade", settings.Extended[0].Text)
	assert.Equal(t, "On", settings.Extended[0].ValueText[2])

	current := sim.cb.waitFor(t, "PlayerAppSettingsChanged", 1)[0].args[0].([]wire.AttrValue)
	assert.Len(t, current, 3)

	attrs := sim.cb.waitFor(t, "TrackChanged", 1)[0].args[0].([]wire.ElementAttribute)
	assert.Len(t, attrs, 7)

	assert.Equal(t, 1, sim.target.Count(wire.PduListAppAttr))
	assert.True(t, sim.target.Registered(wire.EventVolumeChanged))
}

func TestSimulatedFragmentedAttributes(t *testing.T) {
	profile := peersim.DefaultProfile()
	profile.FragmentLimit = 24
	sim := newSimulated(t, profile, testConfig())

	sim.waitState(t, complete)
	attrs := sim.cb.waitFor(t, "TrackChanged", 1)[0].args[0].([]wire.ElementAttribute)
	require.Len(t, attrs, 7)
	assert.Equal(t, "Intro", attrs[0].Value)
	assert.Greater(t, sim.target.Count(wire.PduRequestContinuation), 0)
}

func TestSimulatedDroppedRegistration(t *testing.T) {
	profile := peersim.DefaultProfile()
	profile.Faults = []peersim.Fault{{
		PDU:    wire.PduRegisterNotification.String(),
		Event:  wire.EventTrackChanged.String(),
		Action: peersim.FaultDrop,
	}}
	cfg := testConfig()
	cfg.InterimTimeout = 30 * time.Millisecond
	sim := newSimulated(t, profile, cfg)

	st := sim.waitState(t, complete)
	require.Len(t, st.Events, 2)
	for _, e := range st.Events {
		assert.NotEqual(t, wire.EventTrackChanged, e.ID)
	}

	// The track event is gone for good: changing the track re-registers
	// nothing.
	sim.target.ChangeTrack(peersim.Track{UID: 2, Title: "Second"})
	time.Sleep(50 * time.Millisecond)
	assert.False(t, sim.target.Registered(wire.EventTrackChanged))
}

func TestSimulatedPlaybackChanges(t *testing.T) {
	cfg := testConfig()
	cfg.PlayStatusInterval = 20 * time.Millisecond
	sim := newSimulated(t, peersim.DefaultProfile(), cfg)
	sim.waitState(t, complete)

	sim.target.SetPosition(5000)
	sim.target.SetPlayStatus(wire.PlayStatusPlaying)
	sim.waitState(t, func(st State) bool { return st.Polling })

	require.Eventually(t, func() bool {
		for _, c := range sim.cb.named("PlayPositionChanged") {
			if c.args[1] == uint32(5000) {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	sim.target.SetPlayStatus(wire.PlayStatusPaused)
	sim.waitState(t, func(st State) bool { return !st.Polling && st.PlayStatus == wire.PlayStatusPaused })

	sim.target.ChangeTrack(peersim.Track{UID: 2, Title: "Second", Artist: "B"})
	require.Eventually(t, func() bool {
		calls := sim.cb.named("TrackChanged")
		if len(calls) < 2 {
			return false
		}
		attrs := calls[len(calls)-1].args[0].([]wire.ElementAttribute)
		return len(attrs) > 0 && attrs[0].Value == "Second"
	}, time.Second, time.Millisecond)
	assert.Equal(t, uint64(2), sim.waitState(t, func(st State) bool { return st.TrackUID == 2 }).TrackUID)

	// Every notification is armed again.
	assert.True(t, sim.target.Registered(wire.EventPlayStatusChanged))
	assert.True(t, sim.target.Registered(wire.EventTrackChanged))
}

func TestSimulatedVolumeAndSettings(t *testing.T) {
	sim := newSimulated(t, peersim.DefaultProfile(), testConfig())
	sim.waitState(t, func(st State) bool { return complete(st) && st.VolumeSubscribed })

	require.NoError(t, sim.sess.SetVolume(100))
	sim.waitState(t, func(st State) bool { return st.Volume == 100 && st.VolumeSubscribed })
	assert.Equal(t, uint8(100), sim.target.Volume())

	sim.target.SetVolume(20)
	sim.waitState(t, func(st State) bool { return st.Volume == 20 })

	require.NoError(t, sim.sess.ChangePlayerAppSetting([]wire.AttrValue{{AttrID: wire.AppAttrShuffle, Value: 2}}))
	results := sim.cb.waitFor(t, "SetPlayerAppSettingResult", 1)
	assert.Nil(t, results[0].args[0])
	require.Eventually(t, func() bool {
		for _, c := range sim.cb.named("PlayerAppSettingsChanged") {
			values := c.args[0].([]wire.AttrValue)
			for _, v := range values {
				if v.AttrID == wire.AppAttrShuffle && v.Value == 2 {
					return true
				}
			}
		}
		return false
	}, time.Second, time.Millisecond)

	require.NoError(t, sim.sess.SendPassThrough(wire.OpPlay, wire.KeyReleased))
	sim.cb.waitFor(t, "PassThroughResponse", 1)
	assert.Equal(t, wire.PlayStatusPlaying, sim.target.PlayStatus())
}

func TestSimulatedDisconnect(t *testing.T) {
	sim := newSimulated(t, peersim.DefaultProfile(), testConfig())
	sim.waitState(t, complete)

	require.NoError(t, sim.sess.OnDisconnect(testPeer))
	st := sim.waitState(t, func(st State) bool { return !st.Connected })
	assert.Zero(t, st.LabelsInUse)
	assert.Empty(t, st.Events)

	// Target-side changes no longer reach the host.
	before := len(sim.cb.named("PlayStatusChanged"))
	sim.target.SetPlayStatus(wire.PlayStatusPlaying)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, sim.cb.named("PlayStatusChanged"), before)
}
