package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rcctl/avrcp-go/pkg/log"
	"github.com/rcctl/avrcp-go/pkg/procedure"
	"github.com/rcctl/avrcp-go/pkg/transport"
	"github.com/rcctl/avrcp-go/pkg/transport/mocks"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

const testPeer = "00:11:22:33:44:55"

const (
	metadataPeer = wire.FeatureTarget | wire.FeatureVendor | wire.FeatureMetadata
	volumePeer   = wire.FeatureTarget | wire.FeatureAdvancedControl
)

// frame is one frame the session sent.
type frame struct {
	label uint8
	op    wire.Opcode
	code  wire.Code
	cmd   *wire.Command
	rsp   *wire.Response
	pass  *wire.PassThrough
}

// harness drives a session over a mocked transport.
type harness struct {
	t     *testing.T
	sess  *Session
	tr    *mocks.MockTransport
	cb    *recorder
	codec wire.BinaryCodec

	mu     sync.Mutex
	frames []frame
}

func testConfig() SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.StatusTimeout = time.Minute
	cfg.ControlTimeout = time.Minute
	cfg.InterimTimeout = time.Minute
	cfg.PlayStatusInterval = time.Minute
	return cfg
}

func newHarness(t *testing.T, cfg SessionConfig) *harness {
	t.Helper()
	h := &harness{t: t, tr: mocks.NewMockTransport(t), cb: &recorder{}}

	h.tr.EXPECT().
		Send(testPeer, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(h.record).
		Maybe()

	h.sess = NewSession(h.tr, h.cb, cfg)
	require.NoError(t, h.sess.Start(context.Background()))
	t.Cleanup(func() { h.sess.Stop() })
	return h
}

func (h *harness) record(_ string, label uint8, op wire.Opcode, code wire.Code, data []byte) error {
	f := frame{label: label, op: op, code: code}
	switch {
	case op == wire.OpcodePassThrough:
		if pt, err := wire.DecodePassThrough(data); err == nil {
			f.pass = &pt
		}
	case code.IsResponse():
		f.rsp, _ = h.codec.DecodeResponse(code, data)
	default:
		f.cmd, _ = h.codec.DecodeCommand(code, data)
	}
	h.mu.Lock()
	h.frames = append(h.frames, f)
	h.mu.Unlock()
	return nil
}

// sync waits until every task queued so far has run.
func (h *harness) sync() State {
	h.t.Helper()
	st, err := h.sess.State()
	require.NoError(h.t, err)
	return st
}

func (h *harness) connect(features wire.Features) {
	h.t.Helper()
	require.NoError(h.t, h.sess.OnConnect(testPeer, features))
}

// commands returns the vendor commands sent so far.
func (h *harness) commands() []frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []frame
	for _, f := range h.frames {
		if f.cmd != nil {
			out = append(out, f)
		}
	}
	return out
}

func (h *harness) commandsFor(pdu wire.PduID) []frame {
	var out []frame
	for _, f := range h.commands() {
		if f.cmd.PDU == pdu {
			out = append(out, f)
		}
	}
	return out
}

func (h *harness) registrations(id wire.EventID) []frame {
	var out []frame
	for _, f := range h.commandsFor(wire.PduRegisterNotification) {
		if f.cmd.Params.(*wire.RegisterNotificationParams).EventID == id {
			out = append(out, f)
		}
	}
	return out
}

func (h *harness) last() frame {
	h.t.Helper()
	cmds := h.commands()
	require.NotEmpty(h.t, cmds)
	return cmds[len(cmds)-1]
}

// responses returns the vendor responses the session sent to the peer.
func (h *harness) responses() []frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []frame
	for _, f := range h.frames {
		if f.rsp != nil {
			out = append(out, f)
		}
	}
	return out
}

func (h *harness) passThroughs() []frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []frame
	for _, f := range h.frames {
		if f.pass != nil {
			out = append(out, f)
		}
	}
	return out
}

// respond injects a response from the peer and waits for it to be handled.
func (h *harness) respond(label uint8, rsp *wire.Response) {
	h.t.Helper()
	if rsp.Status == 0 && rsp.Code != wire.CodeRejected {
		rsp.Status = wire.StatusNoError
	}
	data, err := h.codec.EncodeResponse(rsp)
	require.NoError(h.t, err)
	h.inject(transportMessage(label, rsp.Code, data))
}

// command injects a command from the peer.
func (h *harness) command(label uint8, cmd *wire.Command) {
	h.t.Helper()
	data, err := h.codec.EncodeCommand(cmd)
	require.NoError(h.t, err)
	h.inject(transportMessage(label, cmd.Code, data))
}

func transportMessage(label uint8, code wire.Code, data []byte) transport.Message {
	return transport.Message{Peer: testPeer, Label: label, Opcode: wire.OpcodeVendor, Code: code, Data: data}
}

func (h *harness) inject(msg transport.Message) {
	h.t.Helper()
	h.sess.OnMessage(msg)
	h.sync()
}

func (h *harness) interim(label uint8, n *wire.NotificationResult) {
	h.t.Helper()
	h.respond(label, &wire.Response{Code: wire.CodeInterim, PDU: wire.PduRegisterNotification, Params: n})
}

func (h *harness) changed(label uint8, n *wire.NotificationResult) {
	h.t.Helper()
	h.respond(label, &wire.Response{Code: wire.CodeChanged, PDU: wire.PduRegisterNotification, Params: n})
}

// runToRegistration answers both capability queries and returns the first
// registration.
func (h *harness) runToRegistration(events ...wire.EventID) frame {
	h.t.Helper()
	first := h.last()
	require.Equal(h.t, wire.PduGetCapabilities, first.cmd.PDU)
	h.respond(first.label, &wire.Response{
		Code:   wire.CodeStable,
		PDU:    wire.PduGetCapabilities,
		Params: &wire.CapabilityResult{CapabilityID: wire.CapabilityCompanyID, CompanyIDs: []uint32{wire.CompanyIDBluetoothSIG}},
	})
	second := h.last()
	require.Equal(h.t, wire.CapabilityEventsSupported, second.cmd.Params.(*wire.CapabilityParams).CapabilityID)
	h.respond(second.label, &wire.Response{
		Code:   wire.CodeStable,
		PDU:    wire.PduGetCapabilities,
		Params: &wire.CapabilityResult{CapabilityID: wire.CapabilityEventsSupported, Events: events},
	})
	return h.last()
}

// call is one recorded callback.
type call struct {
	name string
	args []any
}

// recorder records every callback.
type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) add(name string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{name: name, args: args})
}

func (r *recorder) named(name string) []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []call
	for _, c := range r.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// waitFor waits for at least n calls of name and returns them.
func (r *recorder) waitFor(t *testing.T, name string, n int) []call {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(r.named(name)) >= n
	}, time.Second, time.Millisecond, "waiting for %d %s", n, name)
	return r.named(name)
}

func (r *recorder) ConnectionStateChanged(peer string, connected bool) {
	r.add("ConnectionStateChanged", peer, connected)
}

func (r *recorder) RemoteFeatures(peer string, features wire.RemoteFeatures) {
	r.add("RemoteFeatures", features)
}

func (r *recorder) PlayStatusChanged(peer string, status wire.PlayStatus) {
	r.add("PlayStatusChanged", status)
}

func (r *recorder) PlayPositionChanged(peer string, length, position uint32, status wire.PlayStatus) {
	r.add("PlayPositionChanged", length, position, status)
}

func (r *recorder) TrackChanged(peer string, attrs []wire.ElementAttribute) {
	r.add("TrackChanged", attrs)
}

func (r *recorder) PlayerAppSettings(peer string, settings procedure.PlayerSettings) {
	r.add("PlayerAppSettings", settings)
}

func (r *recorder) PlayerAppSettingsChanged(peer string, values []wire.AttrValue) {
	r.add("PlayerAppSettingsChanged", values)
}

func (r *recorder) SetPlayerAppSettingResult(peer string, err error) {
	r.add("SetPlayerAppSettingResult", err)
}

func (r *recorder) PassThroughResponse(peer string, op wire.PassThroughOp, state wire.KeyState, err error) {
	r.add("PassThroughResponse", op, state, err)
}

func (r *recorder) GroupNavigationResponse(peer string, op wire.GroupNavOp, state wire.KeyState, err error) {
	r.add("GroupNavigationResponse", op, state, err)
}

func (r *recorder) VolumeChanged(peer string, volume uint8) {
	r.add("VolumeChanged", volume)
}

func (r *recorder) SetAbsoluteVolumeCommand(peer string, volume uint8, label uint8) {
	r.add("SetAbsoluteVolumeCommand", volume, label)
}

func (r *recorder) VolumeNotificationRegistered(peer string, label uint8) {
	r.add("VolumeNotificationRegistered", label)
}

var _ Callbacks = (*recorder)(nil)

// testCapturingLogger records protocol log events.
type testCapturingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *testCapturingLogger) Log(event log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *testCapturingLogger) Events() []log.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]log.Event, len(l.events))
	copy(result, l.events)
	return result
}
