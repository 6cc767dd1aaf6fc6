package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcctl/avrcp-go/pkg/procedure"
	"github.com/rcctl/avrcp-go/pkg/transaction"
	"github.com/rcctl/avrcp-go/pkg/transport/mocks"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

var threeEvents = []wire.EventID{
	wire.EventPlayStatusChanged,
	wire.EventTrackChanged,
	wire.EventAppSettingChanged,
}

func TestConnectSendsOneCapabilityQuery(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(metadataPeer)
	h.sync()

	cmds := h.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, wire.PduGetCapabilities, cmds[0].cmd.PDU)
	assert.Equal(t, wire.CapabilityCompanyID, cmds[0].cmd.Params.(*wire.CapabilityParams).CapabilityID)

	// Features arriving again for the same connection do not restart it.
	require.NoError(t, h.sess.OnFeatures(testPeer, metadataPeer))
	h.sync()
	assert.Len(t, h.commands(), 1)

	h.cb.waitFor(t, "ConnectionStateChanged", 1)
	rf := h.cb.waitFor(t, "RemoteFeatures", 2)
	assert.Equal(t, wire.RemoteFeatureMetadata, rf[0].args[0])
}

func TestRegistrationIsSequential(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(metadataPeer)

	first := h.last()
	h.respond(first.label, &wire.Response{
		Code:   wire.CodeStable,
		PDU:    wire.PduGetCapabilities,
		Params: &wire.CapabilityResult{CapabilityID: wire.CapabilityEventsSupported, Events: threeEvents},
	})

	for i, id := range threeEvents {
		regs := h.commandsFor(wire.PduRegisterNotification)
		require.Len(t, regs, i+1, "only one registration may be outstanding")
		reg := regs[i]
		assert.Equal(t, id, reg.cmd.Params.(*wire.RegisterNotificationParams).EventID)
		assert.Equal(t, wire.CodeNotify, reg.code)

		h.interim(reg.label, &wire.NotificationResult{EventID: id, PlayStatus: wire.PlayStatusPaused, TrackUID: 7})
	}

	assert.Len(t, h.commandsFor(wire.PduRegisterNotification), 3)
	assert.Equal(t, wire.PduGetElementAttributes, h.last().cmd.PDU)

	st := h.sync()
	assert.Equal(t, procedure.PhaseQueryElementAttributes, st.Phase)
	assert.True(t, st.ProcedureComplete)
	assert.Equal(t, uint64(7), st.TrackUID)
	require.Len(t, st.Events, 3)
	// Three held registrations plus the element attribute query.
	assert.Equal(t, 4, st.LabelsInUse)
}

func TestPoolExhaustion(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(0)

	for i := 0; i < transaction.PoolSize; i++ {
		require.NoError(t, h.sess.GetPlayStatus(), "request %d", i)
	}
	err := h.sess.GetPlayStatus()
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.Equal(t, transaction.PoolSize, h.sync().LabelsInUse)

	h.respond(5, &wire.Response{
		Code:   wire.CodeStable,
		PDU:    wire.PduGetPlayStatus,
		Params: &wire.PlayStatusResult{SongLength: 1000, SongPosition: 10, Status: wire.PlayStatusPlaying},
	})
	assert.Equal(t, transaction.PoolSize-1, h.sync().LabelsInUse)

	require.NoError(t, h.sess.GetPlayStatus())
	assert.Equal(t, uint8(5), h.last().label, "the freed label is reused")

	calls := h.cb.waitFor(t, "PlayPositionChanged", 1)
	assert.Equal(t, []any{uint32(1000), uint32(10), wire.PlayStatusPlaying}, calls[0].args)
}

func TestInterimTimeoutDropsEvent(t *testing.T) {
	cfg := testConfig()
	cfg.InterimTimeout = 20 * time.Millisecond
	h := newHarness(t, cfg)
	h.connect(metadataPeer)

	reg := h.runToRegistration(wire.EventPlayStatusChanged, wire.EventTrackChanged)
	require.Equal(t, wire.PduRegisterNotification, reg.cmd.PDU)

	// Both registrations time out one after the other, then the procedure
	// moves on to the element attributes.
	require.Eventually(t, func() bool {
		return len(h.commandsFor(wire.PduGetElementAttributes)) == 1
	}, time.Second, time.Millisecond)

	ps := h.registrations(wire.EventPlayStatusChanged)
	track := h.registrations(wire.EventTrackChanged)
	require.Len(t, ps, 1, "a dropped event is never registered again")
	require.Len(t, track, 1)
	assert.Equal(t, ps[0].label, track[0].label, "the timed out label was released")

	st := h.sync()
	assert.Empty(t, st.Events)
	assert.Equal(t, 1, st.LabelsInUse)
}

func TestRejectedRegistrationDropsEvent(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(metadataPeer)

	reg := h.runToRegistration(wire.EventPlayStatusChanged, wire.EventTrackChanged)
	h.respond(reg.label, &wire.Response{
		Code:   wire.CodeRejected,
		PDU:    wire.PduRegisterNotification,
		Status: wire.StatusInvalidParameter,
	})

	assert.Equal(t, wire.EventTrackChanged, h.last().cmd.Params.(*wire.RegisterNotificationParams).EventID)
	events := h.sync().Events
	require.Len(t, events, 1)
	assert.Equal(t, wire.EventTrackChanged, events[0].ID)
}

func TestRejectAfterInterimDropsEvent(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(metadataPeer)

	reg := h.runToRegistration(wire.EventPlayStatusChanged, wire.EventTrackChanged)
	h.interim(reg.label, &wire.NotificationResult{EventID: wire.EventPlayStatusChanged, PlayStatus: wire.PlayStatusPaused})
	require.Equal(t, 2, h.sync().LabelsInUse)

	// The player went away; the target withdraws the registration.
	h.respond(reg.label, &wire.Response{
		Code:   wire.CodeRejected,
		PDU:    wire.PduRegisterNotification,
		Status: wire.StatusAddressedPlayerChanged,
	})

	st := h.sync()
	require.Len(t, st.Events, 1)
	assert.Equal(t, wire.EventTrackChanged, st.Events[0].ID)
	assert.Equal(t, 1, st.LabelsInUse, "only the track registration holds a label")
	assert.Len(t, h.registrations(wire.EventPlayStatusChanged), 1)
}

func TestPlayStatusPolling(t *testing.T) {
	cfg := testConfig()
	cfg.PlayStatusInterval = 20 * time.Millisecond
	h := newHarness(t, cfg)
	h.connect(metadataPeer)

	reg := h.runToRegistration(wire.EventPlayStatusChanged)
	h.interim(reg.label, &wire.NotificationResult{EventID: wire.EventPlayStatusChanged, PlayStatus: wire.PlayStatusPaused})
	assert.False(t, h.sync().Polling)

	h.changed(reg.label, &wire.NotificationResult{EventID: wire.EventPlayStatusChanged, PlayStatus: wire.PlayStatusPlaying})
	st := h.sync()
	assert.True(t, st.Polling)
	assert.Equal(t, wire.PlayStatusPlaying, st.PlayStatus)

	require.Eventually(t, func() bool {
		return len(h.commandsFor(wire.PduGetPlayStatus)) > 0
	}, time.Second, time.Millisecond)

	again := h.registrations(wire.EventPlayStatusChanged)
	require.Len(t, again, 2)
	h.changed(again[1].label, &wire.NotificationResult{EventID: wire.EventPlayStatusChanged, PlayStatus: wire.PlayStatusStopped})
	assert.False(t, h.sync().Polling)

	statuses := h.cb.waitFor(t, "PlayStatusChanged", 3)
	assert.Equal(t, wire.PlayStatusPaused, statuses[0].args[0])
	assert.Equal(t, wire.PlayStatusPlaying, statuses[1].args[0])
	assert.Equal(t, wire.PlayStatusStopped, statuses[2].args[0])
}

func TestChangedReRegistersEveryTime(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(metadataPeer)

	reg := h.runToRegistration(wire.EventAppSettingChanged)
	h.interim(reg.label, &wire.NotificationResult{EventID: wire.EventAppSettingChanged})

	const cycles = 5
	for i := 0; i < cycles; i++ {
		regs := h.registrations(wire.EventAppSettingChanged)
		h.changed(regs[len(regs)-1].label, &wire.NotificationResult{
			EventID:     wire.EventAppSettingChanged,
			AppSettings: []wire.AttrValue{{AttrID: wire.AppAttrRepeat, Value: uint8(i + 1)}},
		})
	}

	assert.Len(t, h.registrations(wire.EventAppSettingChanged), cycles+1)
	changed := h.cb.waitFor(t, "PlayerAppSettingsChanged", cycles)
	assert.Equal(t, []wire.AttrValue{{AttrID: wire.AppAttrRepeat, Value: cycles}}, changed[cycles-1].args[0])

	// One held registration plus the element attribute query.
	assert.Equal(t, 2, h.sync().LabelsInUse)
}

func TestTrackChangeFetchesAttributes(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(metadataPeer)

	reg := h.runToRegistration(wire.EventTrackChanged)
	h.interim(reg.label, &wire.NotificationResult{EventID: wire.EventTrackChanged, TrackUID: 1})
	first := h.last()
	require.Equal(t, wire.PduGetElementAttributes, first.cmd.PDU)
	h.respond(first.label, &wire.Response{
		Code:   wire.CodeStable,
		PDU:    wire.PduGetElementAttributes,
		Params: &wire.ElementAttributes{Attributes: []wire.ElementAttribute{{ID: wire.MediaAttrTitle, Charset: 0x6A, Value: "One"}}},
	})

	h.changed(reg.label, &wire.NotificationResult{EventID: wire.EventTrackChanged, TrackUID: 2})
	fetches := h.commandsFor(wire.PduGetElementAttributes)
	require.Len(t, fetches, 2)
	assert.Len(t, h.registrations(wire.EventTrackChanged), 2)
	assert.Equal(t, uint64(2), h.sync().TrackUID)

	// An invalid UID re-registers without fetching.
	regs := h.registrations(wire.EventTrackChanged)
	h.changed(regs[1].label, &wire.NotificationResult{EventID: wire.EventTrackChanged, TrackUID: wire.InvalidTrackUID})
	assert.Len(t, h.commandsFor(wire.PduGetElementAttributes), 2)
	assert.Len(t, h.registrations(wire.EventTrackChanged), 3)

	tracks := h.cb.waitFor(t, "TrackChanged", 1)
	assert.Equal(t, "One", tracks[0].args[0].([]wire.ElementAttribute)[0].Value)
}

func TestFragmentedResponseIsReassembled(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(metadataPeer)

	reg := h.runToRegistration(wire.EventTrackChanged)
	h.interim(reg.label, &wire.NotificationResult{EventID: wire.EventTrackChanged, TrackUID: 1})
	query := h.last()
	require.Equal(t, wire.PduGetElementAttributes, query.cmd.PDU)

	rsp := &wire.Response{
		Code: wire.CodeStable,
		PDU:  wire.PduGetElementAttributes,
		Params: &wire.ElementAttributes{Attributes: []wire.ElementAttribute{
			{ID: wire.MediaAttrTitle, Charset: 0x6A, Value: "A rather long title that needs splitting"},
			{ID: wire.MediaAttrArtist, Charset: 0x6A, Value: "Someone"},
		}},
	}
	packets, err := wire.EncodeFragments(rsp, 16)
	require.NoError(t, err)
	require.Greater(t, len(packets), 2)

	for i, p := range packets {
		h.inject(transportMessage(query.label, wire.CodeStable, p))
		if i < len(packets)-1 {
			cont := h.last()
			assert.Equal(t, wire.PduRequestContinuation, cont.cmd.PDU)
			assert.Equal(t, query.label, cont.label, "continuations reuse the label")
		}
	}

	tracks := h.cb.waitFor(t, "TrackChanged", 1)
	attrs := tracks[0].args[0].([]wire.ElementAttribute)
	require.Len(t, attrs, 2)
	assert.Equal(t, "A rather long title that needs splitting", attrs[0].Value)
	assert.Equal(t, procedure.PhaseComplete, h.sync().Phase)
}

func TestEmptyStartPacketIsReassembled(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(metadataPeer)

	reg := h.runToRegistration(wire.EventTrackChanged)
	h.interim(reg.label, &wire.NotificationResult{EventID: wire.EventTrackChanged, TrackUID: 1})
	query := h.last()
	require.Equal(t, wire.PduGetElementAttributes, query.cmd.PDU)

	packets, err := wire.EncodeFragments(&wire.Response{
		Code: wire.CodeStable,
		PDU:  wire.PduGetElementAttributes,
		Params: &wire.ElementAttributes{Attributes: []wire.ElementAttribute{
			{ID: wire.MediaAttrTitle, Charset: 0x6A, Value: "Starts with nothing at all"},
		}},
	}, 16)
	require.NoError(t, err)
	require.Greater(t, len(packets), 1)

	// The target opens with a START that carries no parameters, so the
	// first real packet becomes a CONTINUE.
	start := []byte{0x00, 0x19, 0x58, byte(wire.PduGetElementAttributes), byte(wire.PacketStart), 0x00, 0x00}
	packets[0][4] = byte(wire.PacketContinue)
	packets = append([][]byte{start}, packets...)

	for _, p := range packets {
		h.inject(transportMessage(query.label, wire.CodeStable, p))
	}

	assert.Len(t, h.commandsFor(wire.PduRequestContinuation), len(packets)-1)
	tracks := h.cb.waitFor(t, "TrackChanged", 1)
	attrs := tracks[0].args[0].([]wire.ElementAttribute)
	require.Len(t, attrs, 1)
	assert.Equal(t, "Starts with nothing at all", attrs[0].Value)
}

func TestStalledFragmentsAreAborted(t *testing.T) {
	cfg := testConfig()
	cfg.ControlTimeout = 20 * time.Millisecond
	h := newHarness(t, cfg)
	h.connect(metadataPeer)

	reg := h.runToRegistration(wire.EventTrackChanged)
	h.interim(reg.label, &wire.NotificationResult{EventID: wire.EventTrackChanged, TrackUID: 1})
	query := h.last()
	require.Equal(t, wire.PduGetElementAttributes, query.cmd.PDU)
	queries := len(h.commandsFor(wire.PduGetElementAttributes))

	rsp := &wire.Response{
		Code: wire.CodeStable,
		PDU:  wire.PduGetElementAttributes,
		Params: &wire.ElementAttributes{Attributes: []wire.ElementAttribute{
			{ID: wire.MediaAttrTitle, Charset: 0x6A, Value: "Only the first packet ever arrives"},
		}},
	}
	packets, err := wire.EncodeFragments(rsp, 16)
	require.NoError(t, err)
	require.Greater(t, len(packets), 1)

	h.inject(transportMessage(query.label, wire.CodeStable, packets[0]))
	require.Len(t, h.commandsFor(wire.PduRequestContinuation), 1)

	require.Eventually(t, func() bool {
		return len(h.commandsFor(wire.PduAbortContinuation)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, query.label, h.commandsFor(wire.PduAbortContinuation)[0].label)

	// The timed out query is retried from scratch.
	require.Eventually(t, func() bool {
		return len(h.commandsFor(wire.PduGetElementAttributes)) == queries+1
	}, time.Second, 5*time.Millisecond)
}

func TestResponseOnFreeLabelIsIgnored(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(0)

	h.respond(3, &wire.Response{
		Code:   wire.CodeStable,
		PDU:    wire.PduGetPlayStatus,
		Params: &wire.PlayStatusResult{SongPosition: 1},
	})
	assert.Equal(t, 0, h.sync().LabelsInUse)

	require.NoError(t, h.sess.GetPlayStatus())
	h.respond(h.last().label, &wire.Response{
		Code:   wire.CodeStable,
		PDU:    wire.PduGetPlayStatus,
		Params: &wire.PlayStatusResult{SongPosition: 2},
	})
	calls := h.cb.waitFor(t, "PlayPositionChanged", 1)
	require.Len(t, calls, 1)
	assert.Equal(t, uint32(2), calls[0].args[1])
}

func TestMismatchedResponseFailsTransaction(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(0)

	require.NoError(t, h.sess.GetPlayStatus())
	h.respond(h.last().label, &wire.Response{Code: wire.CodeStable, PDU: wire.PduListAppAttr, Params: &wire.AppAttrList{}})

	assert.Equal(t, 0, h.sync().LabelsInUse)
	assert.Empty(t, h.cb.named("PlayPositionChanged"))
}

func TestDisconnect(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(metadataPeer)
	reg := h.runToRegistration(wire.EventPlayStatusChanged)

	assert.ErrorIs(t, h.sess.OnDisconnect("aa:bb:cc:dd:ee:ff"), ErrUnknownPeer)
	require.NoError(t, h.sess.OnDisconnect(testPeer))
	require.NoError(t, h.sess.OnDisconnect(testPeer))

	st := h.sync()
	assert.False(t, st.Connected)
	assert.Empty(t, st.Events)
	assert.Zero(t, st.LabelsInUse)
	assert.Equal(t, procedure.PhaseIdle, st.Phase)

	calls := h.cb.waitFor(t, "ConnectionStateChanged", 2)
	assert.Equal(t, []any{testPeer, false}, calls[1].args)
	assert.Len(t, calls, 2, "a second disconnect reports nothing")

	// Late responses for the old connection are dropped.
	h.respond(reg.label, &wire.Response{Code: wire.CodeInterim, PDU: wire.PduRegisterNotification,
		Params: &wire.NotificationResult{EventID: wire.EventPlayStatusChanged}})
	assert.Empty(t, h.cb.named("PlayStatusChanged"))

	assert.ErrorIs(t, h.sess.GetPlayStatus(), ErrNotConnected)
	assert.ErrorIs(t, h.sess.OnFeatures(testPeer, metadataPeer), ErrNotConnected)
}

func TestReconnectStartsOver(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(metadataPeer)
	firstID := h.sync().ConnectionID
	require.NoError(t, h.sess.OnDisconnect(testPeer))

	h.connect(metadataPeer)
	st := h.sync()
	assert.NotEqual(t, firstID, st.ConnectionID)
	assert.Len(t, h.commandsFor(wire.PduGetCapabilities), 2)
	assert.Equal(t, procedure.PhaseQueryCompanyID, st.Phase)
}

func TestSecondPeerIsRefused(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(0)

	require.NoError(t, h.sess.OnConnect(testPeer, 0))
	assert.ErrorIs(t, h.sess.OnConnect("aa:bb:cc:dd:ee:ff", 0), ErrAlreadyConnected)
	assert.Equal(t, testPeer, h.sync().Peer)
}

func TestLateFeatures(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(0)
	assert.Empty(t, h.commands())

	require.NoError(t, h.sess.OnFeatures(testPeer, metadataPeer))
	h.sync()
	assert.Len(t, h.commandsFor(wire.PduGetCapabilities), 1)
	assert.ErrorIs(t, h.sess.OnFeatures("aa:bb:cc:dd:ee:ff", metadataPeer), ErrUnknownPeer)
}

func TestMessagesFromOtherPeersAreDropped(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(0)
	require.NoError(t, h.sess.GetPlayStatus())

	data, err := h.codec.EncodeResponse(&wire.Response{
		Code: wire.CodeStable, PDU: wire.PduGetPlayStatus, Status: wire.StatusNoError,
		Params: &wire.PlayStatusResult{},
	})
	require.NoError(t, err)
	msg := transportMessage(h.last().label, wire.CodeStable, data)
	msg.Peer = "aa:bb:cc:dd:ee:ff"
	h.inject(msg)

	assert.Equal(t, 1, h.sync().LabelsInUse)
}

func TestSessionLifecycle(t *testing.T) {
	sess := NewSession(mocks.NewMockTransport(t), nil, testConfig())

	assert.ErrorIs(t, sess.OnConnect(testPeer, 0), ErrNotStarted)
	_, err := sess.State()
	assert.ErrorIs(t, err, ErrNotStarted)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sess.Start(ctx))
	assert.ErrorIs(t, sess.Start(ctx), ErrAlreadyStarted)
	require.NoError(t, sess.OnConnect(testPeer, 0))

	cancel()
	require.Eventually(t, func() bool {
		_, err := sess.State()
		return err != nil
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, sess.Start(context.Background()), ErrNotStarted, "a stopped session cannot restart")
	assert.ErrorIs(t, sess.Stop(), ErrNotStarted, "already stopped by the context")
}

func TestStopWithoutStart(t *testing.T) {
	sess := NewSession(mocks.NewMockTransport(t), nil, testConfig())
	assert.ErrorIs(t, sess.Stop(), ErrNotStarted)
}

func TestStopTwice(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(0)

	require.NoError(t, h.sess.Stop())
	assert.ErrorIs(t, h.sess.Stop(), ErrNotStarted)
	assert.Len(t, h.cb.named("ConnectionStateChanged"), 2, "the second Stop reports nothing")
}

func TestStopReportsDisconnect(t *testing.T) {
	h := newHarness(t, testConfig())
	h.connect(0)

	require.NoError(t, h.sess.Stop())
	calls := h.cb.named("ConnectionStateChanged")
	require.Len(t, calls, 2, "callbacks queued before Stop are delivered")
	assert.Equal(t, false, calls[1].args[1])
}

func TestStatusError(t *testing.T) {
	err := &StatusError{PDU: wire.PduGetPlayStatus, Status: wire.StatusTimeout}
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "GET_PLAY_STATUS")

	err = &StatusError{PDU: wire.PduSetAppValue, Status: wire.StatusInvalidParameter}
	assert.NotErrorIs(t, err, ErrTimeout)

	assert.NoError(t, statusError(&wire.Response{Code: wire.CodeAccepted, Status: wire.StatusNoError}))
	assert.Error(t, statusError(&wire.Response{Code: wire.CodeNotImplemented, Status: wire.StatusNoError}))
}

func TestConfigTimeouts(t *testing.T) {
	cfg := SessionConfig{}.withDefaults()
	assert.Equal(t, transaction.DefaultStatusTimeout, cfg.timeoutFor(wire.CodeStatus))
	assert.Equal(t, transaction.DefaultControlTimeout, cfg.timeoutFor(wire.CodeControl))
	assert.Equal(t, transaction.DefaultInterimTimeout, cfg.timeoutFor(wire.CodeNotify))
	assert.Equal(t, DefaultPlayStatusInterval, cfg.PlayStatusInterval)
	assert.NotNil(t, cfg.Codec)
}
