package peersim

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcctl/avrcp-go/pkg/transport"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// client is the controller end of a loopback pair.
type client struct {
	t     *testing.T
	end   *transport.Loopback
	codec wire.BinaryCodec

	mu   sync.Mutex
	msgs []transport.Message
}

func newHarness(t *testing.T, profile *Profile) (*Target, *client) {
	t.Helper()
	a, b := transport.NewLoopbackPair("controller", "target")

	target, err := NewTarget(profile, b, "controller", nil)
	require.NoError(t, err)
	require.NoError(t, b.Start(target.Handle))

	c := &client{t: t, end: a}
	require.NoError(t, a.Start(func(m transport.Message) {
		c.mu.Lock()
		c.msgs = append(c.msgs, m)
		c.mu.Unlock()
	}))

	t.Cleanup(func() {
		target.Close()
		a.Close()
		b.Close()
	})
	return target, c
}

func (c *client) send(label uint8, cmd *wire.Command) {
	c.t.Helper()
	data, err := c.codec.EncodeCommand(cmd)
	require.NoError(c.t, err)
	require.NoError(c.t, c.end.Send("target", label, wire.OpcodeVendor, cmd.Code, data))
}

// wait returns the n-th message once it arrived.
func (c *client) wait(n int) transport.Message {
	c.t.Helper()
	require.Eventually(c.t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.msgs) >= n
	}, time.Second, time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgs[n-1]
}

func (c *client) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func (c *client) decode(m transport.Message) *wire.Response {
	c.t.Helper()
	rsp, err := c.codec.DecodeResponse(m.Code, m.Data)
	require.NoError(c.t, err)
	return rsp
}

func TestTargetCapabilities(t *testing.T) {
	_, c := newHarness(t, nil)

	c.send(0, wire.NewGetCapabilities(wire.CapabilityEventsSupported))
	m := c.wait(1)
	assert.Equal(t, uint8(0), m.Label)
	assert.Equal(t, wire.CodeStable, m.Code)

	res := c.decode(m).Params.(*wire.CapabilityResult)
	assert.Equal(t, []wire.EventID{
		wire.EventPlayStatusChanged,
		wire.EventTrackChanged,
		wire.EventAppSettingChanged,
		wire.EventVolumeChanged,
	}, res.Events)
}

func TestTargetNotificationInterimThenChanged(t *testing.T) {
	target, c := newHarness(t, nil)

	c.send(3, wire.NewRegisterNotification(wire.EventPlayStatusChanged))
	m := c.wait(1)
	assert.Equal(t, wire.CodeInterim, m.Code)
	assert.Equal(t, wire.PlayStatusPaused, c.decode(m).Params.(*wire.NotificationResult).PlayStatus)
	require.True(t, target.Registered(wire.EventPlayStatusChanged))

	target.SetPlayStatus(wire.PlayStatusPlaying)
	m = c.wait(2)
	assert.Equal(t, uint8(3), m.Label)
	assert.Equal(t, wire.CodeChanged, m.Code)
	assert.Equal(t, wire.PlayStatusPlaying, c.decode(m).Params.(*wire.NotificationResult).PlayStatus)
	assert.False(t, target.Registered(wire.EventPlayStatusChanged))

	// Without a registration nothing is sent.
	target.SetPlayStatus(wire.PlayStatusStopped)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, c.count())
}

func TestTargetRejectsUnadvertisedEvent(t *testing.T) {
	_, c := newHarness(t, nil)

	c.send(1, wire.NewRegisterNotification(wire.EventBatteryStatusChanged))
	m := c.wait(1)
	assert.Equal(t, wire.CodeRejected, m.Code)
	assert.Equal(t, wire.StatusInvalidParameter, c.decode(m).Status)
}

func TestTargetSetAppValueNotifies(t *testing.T) {
	target, c := newHarness(t, nil)

	c.send(0, wire.NewRegisterNotification(wire.EventAppSettingChanged))
	c.wait(1)

	c.send(1, wire.NewSetAppValue([]wire.AttrValue{{AttrID: wire.AppAttrRepeat, Value: 3}}))
	accepted := c.wait(2)
	assert.Equal(t, uint8(1), accepted.Label)
	assert.Equal(t, wire.CodeAccepted, accepted.Code)

	changed := c.wait(3)
	assert.Equal(t, uint8(0), changed.Label)
	assert.Equal(t, wire.CodeChanged, changed.Code)
	assert.Contains(t, c.decode(changed).Params.(*wire.NotificationResult).AppSettings,
		wire.AttrValue{AttrID: wire.AppAttrRepeat, Value: 3})
	assert.Equal(t, 1, target.Count(wire.PduSetAppValue))
}

func TestTargetFragmentsElementAttributes(t *testing.T) {
	p := DefaultProfile()
	p.FragmentLimit = 20
	_, c := newHarness(t, p)

	c.send(2, wire.NewGetElementAttributes(wire.AllMediaAttributes))
	first := c.decode(c.wait(1))
	require.Equal(t, wire.PacketStart, first.PacketType)
	params := append([]byte(nil), first.Fragment...)

	for n := 2; ; n++ {
		c.send(2, wire.NewRequestContinuation(wire.PduGetElementAttributes))
		rsp := c.decode(c.wait(n))
		params = append(params, rsp.Fragment...)
		if rsp.PacketType == wire.PacketEnd {
			break
		}
		require.Equal(t, wire.PacketContinue, rsp.PacketType)
		require.Less(t, n, 50)
	}

	out, err := c.codec.DecodeResponseParams(wire.PduGetElementAttributes, params)
	require.NoError(t, err)
	attrs := out.(*wire.ElementAttributes).Attributes
	require.Len(t, attrs, 7)
	assert.Equal(t, "Intro", attrs[0].Value)
}

func TestTargetFaults(t *testing.T) {
	p := DefaultProfile()
	p.Faults = []Fault{
		{PDU: "GET_PLAY_STATUS", Action: FaultDrop, Count: 1},
		{PDU: "LIST_APP_ATTR", Action: FaultReject, Status: "INTERNAL_ERROR"},
		{PDU: "GET_CAPABILITIES", Action: FaultDelay, Delay: "30ms"},
	}
	_, c := newHarness(t, p)

	// First GetPlayStatus is dropped, the second answered.
	c.send(0, wire.NewGetPlayStatus())
	c.send(1, wire.NewGetPlayStatus())
	m := c.wait(1)
	assert.Equal(t, uint8(1), m.Label)
	assert.Equal(t, wire.CodeStable, m.Code)

	c.send(2, wire.NewListAppAttr())
	m = c.wait(2)
	assert.Equal(t, wire.CodeRejected, m.Code)
	assert.Equal(t, wire.StatusInternalError, c.decode(m).Status)

	start := time.Now()
	c.send(3, wire.NewGetCapabilities(wire.CapabilityCompanyID))
	m = c.wait(3)
	assert.Equal(t, uint8(3), m.Label)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestTargetPassThrough(t *testing.T) {
	target, c := newHarness(t, nil)

	for _, state := range []wire.KeyState{wire.KeyPressed, wire.KeyReleased} {
		data := wire.EncodePassThrough(wire.PassThrough{Op: wire.OpPlay, State: state})
		require.NoError(t, c.end.Send("target", 4, wire.OpcodePassThrough, wire.CodeControl, data))
	}
	m := c.wait(2)
	assert.Equal(t, wire.OpcodePassThrough, m.Opcode)
	assert.Equal(t, wire.CodeAccepted, m.Code)
	assert.Equal(t, wire.PlayStatusPlaying, target.PlayStatus())
}

func TestTargetClosedIgnoresCommands(t *testing.T) {
	target, c := newHarness(t, nil)
	target.Close()

	c.send(0, wire.NewGetPlayStatus())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, c.count())
}
