package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcctl/avrcp-go/pkg/log"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

func TestProtocolCapture(t *testing.T) {
	logger := &testCapturingLogger{}
	cfg := testConfig()
	cfg.ProtocolLogger = logger
	h := newHarness(t, cfg)
	h.connect(0)
	connID := h.sync().ConnectionID

	require.NoError(t, h.sess.GetPlayStatus())
	h.respond(h.last().label, &wire.Response{
		Code:   wire.CodeStable,
		PDU:    wire.PduGetPlayStatus,
		Params: &wire.PlayStatusResult{SongLength: 10},
	})

	events := logger.Events()
	require.NotEmpty(t, events)

	var (
		state    *log.StateChangeEvent
		actions  []log.TransactionAction
		messages []*log.MessageEvent
	)
	for _, ev := range events {
		assert.Equal(t, connID, ev.ConnectionID)
		assert.Equal(t, log.RoleController, ev.LocalRole)
		assert.Equal(t, testPeer, ev.PeerAddr)
		switch {
		case ev.StateChange != nil && state == nil:
			state = ev.StateChange
		case ev.Transaction != nil:
			actions = append(actions, ev.Transaction.Action)
		case ev.Message != nil:
			messages = append(messages, ev.Message)
		}
	}

	require.NotNil(t, state)
	assert.Equal(t, log.StateEntityConnection, state.Entity)
	assert.Equal(t, "CONNECTED", state.NewState)

	assert.Equal(t, []log.TransactionAction{log.TransactionAcquire, log.TransactionRelease}, actions)

	require.Len(t, messages, 2)
	assert.Equal(t, log.MessageTypeCommand, messages[0].Type)
	assert.Equal(t, wire.PduGetPlayStatus, messages[0].PDU)
	assert.Equal(t, log.MessageTypeResponse, messages[1].Type)
	require.NotNil(t, messages[1].RoundTrip)
	require.NotNil(t, messages[1].Status)
	assert.Equal(t, wire.StatusNoError, *messages[1].Status)
}

func TestProtocolCaptureExhausted(t *testing.T) {
	logger := &testCapturingLogger{}
	cfg := testConfig()
	cfg.ProtocolLogger = logger
	h := newHarness(t, cfg)
	h.connect(0)

	for i := 0; i < 17; i++ {
		_ = h.sess.GetPlayStatus()
	}

	var exhausted int
	for _, ev := range logger.Events() {
		if ev.Transaction != nil && ev.Transaction.Action == log.TransactionExhausted {
			exhausted++
		}
	}
	assert.Equal(t, 1, exhausted)
}
