package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcctl/avrcp-go/pkg/log"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

var testTime = time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.rclog")

	logger, err := log.NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())
	return path
}

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, event)
	}
}

// sessionEvents is a short trace of one volume registration.
func sessionEvents() []log.Event {
	event := wire.EventVolumeChanged
	ok := wire.StatusNoError
	rtt := 12 * time.Millisecond
	return []log.Event{
		{
			Timestamp: testTime, ConnectionID: "c0ffee00-1111-2222-3333-444455556666",
			Layer: log.LayerService, Category: log.CategoryState, PeerAddr: "00:11:22:33:44:55",
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityConnection, NewState: "CONNECTED"},
		},
		{
			Timestamp: testTime.Add(time.Millisecond), ConnectionID: "c0ffee00-1111-2222-3333-444455556666",
			Layer: log.LayerService, Category: log.CategoryTransaction,
			Transaction: &log.TransactionEvent{Action: log.TransactionAcquire, Label: 3, PDU: wire.PduRegisterNotification, InUse: 1},
		},
		{
			Timestamp: testTime.Add(2 * time.Millisecond), ConnectionID: "c0ffee00-1111-2222-3333-444455556666",
			Direction: log.DirectionOut, Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{
				Type: log.MessageTypeCommand, Label: 3, Code: wire.CodeNotify,
				PDU: wire.PduRegisterNotification, EventID: &event,
			},
		},
		{
			Timestamp: testTime.Add(14 * time.Millisecond), ConnectionID: "c0ffee00-1111-2222-3333-444455556666",
			Direction: log.DirectionIn, Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{
				Type: log.MessageTypeResponse, Label: 3, Code: wire.CodeInterim,
				PDU: wire.PduRegisterNotification, EventID: &event, Status: &ok,
				Payload: map[string]any{"Volume": 40}, RoundTrip: &rtt,
			},
		},
		{
			Timestamp: testTime.Add(20 * time.Millisecond), ConnectionID: "c0ffee00-1111-2222-3333-444455556666",
			Direction: log.DirectionOut, Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Type: log.MessageTypeCommand, Label: 4, Code: wire.CodeStatus, PDU: wire.PduGetPlayStatus},
		},
		{
			Timestamp: testTime.Add(30 * time.Millisecond), ConnectionID: "c0ffee00-1111-2222-3333-444455556666",
			Layer: log.LayerService, Category: log.CategoryTransaction,
			Transaction: &log.TransactionEvent{Action: log.TransactionTimeout, Label: 4, PDU: wire.PduGetPlayStatus, InUse: 2},
		},
	}
}

func TestFormatEvent(t *testing.T) {
	events := sessionEvents()

	tests := []struct {
		name  string
		event log.Event
		want  []string
	}{
		{
			name:  "state",
			event: events[0],
			want:  []string{"2026-03-14T09:26:53.589793Z", "[conn:c0ffee00]", "SERVICE State", "-> CONNECTED", "Peer: 00:11:22:33:44:55 (CONTROLLER)"},
		},
		{
			name:  "transaction",
			event: events[1],
			want:  []string{"SERVICE ACQUIRE", "Label: 3", "PDU: REGISTER_NOTIFICATION", "InUse: 1"},
		},
		{
			name:  "command",
			event: events[2],
			want:  []string{"OUT WIRE COMMAND", "Code: NOTIFY", "PDU: REGISTER_NOTIFICATION (0x31)", "Event: VOLUME_CHANGED"},
		},
		{
			name:  "interim",
			event: events[3],
			want:  []string{"IN  WIRE RESPONSE", "Code: INTERIM", "Duration: 12.000ms", `Payload: {"Volume":40}`},
		},
		{
			name: "frame",
			event: log.Event{
				Timestamp: testTime, ConnectionID: "abc", Direction: log.DirectionOut,
				Layer: log.LayerTransport, Frame: &log.FrameEvent{Size: 8, Data: []byte{0x30, 0x00, 0x11, 0x0e}, Truncated: true},
			},
			want: []string{"[conn:abc]", "TRANSPORT Frame", "Size: 8 bytes", "Data: 3000110e (truncated)"},
		},
		{
			name: "error",
			event: log.Event{
				Timestamp: testTime, Layer: log.LayerService, Category: log.CategoryError,
				Error: &log.ErrorEventData{Layer: log.LayerWire, Message: "decode failed", Code: intPtr(int(wire.StatusInvalidParameter)), Context: "GET_PLAY_STATUS"},
			},
			want: []string{"SERVICE Error", "Layer: WIRE", "Message: decode failed", "Context: GET_PLAY_STATUS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			formatEvent(&buf, tt.event)
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestFormatEventOmitsNoErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sessionEvents()[3])
	assert.NotContains(t, buf.String(), "Status:")
}

func intPtr(v int) *int { return &v }

func TestParseFlags(t *testing.T) {
	pdu, err := ParsePDUFlag("get_play_status")
	require.NoError(t, err)
	assert.Equal(t, wire.PduGetPlayStatus, pdu)

	pdu, err = ParsePDUFlag("0x50")
	require.NoError(t, err)
	assert.Equal(t, wire.PduSetAbsoluteVolume, pdu)

	_, err = ParsePDUFlag("bogus")
	assert.Error(t, err)

	label, err := ParseLabelFlag("15")
	require.NoError(t, err)
	assert.Equal(t, uint8(15), label)

	_, err = ParseLabelFlag("16")
	assert.Error(t, err)

	cat, err := ParseCategoryFlag("Transaction")
	require.NoError(t, err)
	assert.Equal(t, log.CategoryTransaction, cat)

	_, err = ParseLayerFlag("session")
	assert.Error(t, err)

	dir, err := ParseDirectionFlag("OUT")
	require.NoError(t, err)
	assert.Equal(t, log.DirectionOut, dir)
}

func TestFilterOptionsBuild(t *testing.T) {
	filter, err := FilterOptions{
		Peer:      "00:11:22:33:44:55",
		TimeStart: "2026-03-14T09:00:00Z",
		Layer:     "wire",
		PDU:       "register_notification",
		Label:     "3",
	}.Build()
	require.NoError(t, err)

	assert.Equal(t, "00:11:22:33:44:55", filter.PeerAddr)
	require.NotNil(t, filter.TimeStart)
	assert.Nil(t, filter.TimeEnd)
	assert.Equal(t, log.LayerWire, *filter.Layer)
	assert.Equal(t, wire.PduRegisterNotification, *filter.PDU)
	assert.Equal(t, uint8(3), *filter.Label)

	_, err = FilterOptions{TimeEnd: "yesterday"}.Build()
	assert.ErrorContains(t, err, "time-end")

	_, err = FilterOptions{Direction: "sideways"}.Build()
	assert.ErrorContains(t, err, "invalid direction")
}

func TestRunView(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	label := uint8(4)
	var buf bytes.Buffer
	require.NoError(t, RunView(path, log.Filter{Label: &label}, &buf))

	out := buf.String()
	assert.Contains(t, out, "GET_PLAY_STATUS")
	assert.Contains(t, out, "TIMEOUT")
	assert.NotContains(t, out, "REGISTER_NOTIFICATION")
	assert.Equal(t, 2, strings.Count(out, "[conn:c0ffee00]"))
}

func TestRunViewMissingFile(t *testing.T) {
	err := RunView(filepath.Join(t.TempDir(), "missing.rclog"), log.Filter{}, io.Discard)
	assert.ErrorContains(t, err, "failed to open log file")
}

func TestRunFilter(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "filtered.rclog")

	n, err := RunFilter(path, out, FilterOptions{Category: "message", PDU: "register_notification"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events := readAll(t, out)
	require.Len(t, events, 2)
	for _, e := range events {
		require.NotNil(t, e.Message)
		assert.Equal(t, wire.PduRegisterNotification, e.Message.PDU)
	}
	assert.Equal(t, log.MessageTypeCommand, events[0].Message.Type)
	assert.Equal(t, log.MessageTypeResponse, events[1].Message.Type)
}

func TestRunFilterTimeRange(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "filtered.rclog")

	n, err := RunFilter(path, out, FilterOptions{
		TimeStart: testTime.Add(time.Millisecond).Format(time.RFC3339Nano),
		TimeEnd:   testTime.Add(20 * time.Millisecond).Format(time.RFC3339Nano),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRunFilterRejectsBadOptions(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	_, err := RunFilter(path, filepath.Join(t.TempDir(), "x.rclog"), FilterOptions{Label: "99"})
	assert.ErrorContains(t, err, "invalid label")
}

func TestRunStats(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))
	out := buf.String()

	assert.Contains(t, out, "Total Events: 6")
	assert.Contains(t, out, "TRANSACTION:")
	assert.Contains(t, out, "REGISTER_NOTIFICATION:")
	assert.Contains(t, out, "GET_PLAY_STATUS:")
	assert.Contains(t, out, "ACQUIRE:")
	assert.Contains(t, out, "TIMEOUT:")
	assert.Contains(t, out, "Peak labels in use: 2")
	assert.Contains(t, out, "Connections: 1")
	assert.Contains(t, out, "Peer: 00:11:22:33:44:55 (local CONTROLLER)")
	assert.Contains(t, out, "Responses: 1 (slowest 12.000ms)")
	assert.NotContains(t, out, "Errors:")
}

func TestStatsCountsRejections(t *testing.T) {
	stats := newStats()
	for _, code := range []wire.Code{wire.CodeAccepted, wire.CodeRejected, wire.CodeNotImplemented} {
		stats.add(log.Event{
			Timestamp: testTime,
			Category:  log.CategoryMessage,
			Message:   &log.MessageEvent{Type: log.MessageTypeResponse, Code: code},
		})
	}
	stats.add(log.Event{Timestamp: testTime, Category: log.CategoryError, Error: &log.ErrorEventData{Message: "boom"}})

	assert.Equal(t, 2, stats.RejectedResponses)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 4, stats.TotalEvents)
}

func TestRunExportJSONL(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, "jsonl", &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)

	var interim map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[3]), &interim))
	msg, ok := interim["Message"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), msg["Label"])
	assert.Equal(t, map[string]any{"Volume": float64(40)}, msg["Payload"])
}

func TestRunExportCSV(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, "csv", &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, csvHeader, rows[0])

	// Command row for the volume registration.
	assert.Equal(t, []string{
		"2026-03-14T09:26:53.591793Z", "c0ffee00-1111-2222-3333-444455556666", "OUT", "WIRE", "MESSAGE",
		"", "COMMAND", "3", "NOTIFY", "REGISTER_NOTIFICATION", "VOLUME_CHANGED",
	}, rows[3])
	assert.Equal(t, "TIMEOUT", rows[6][6])
	assert.Equal(t, "4", rows[6][7])
}

func TestRunExportUnknownFormat(t *testing.T) {
	err := RunExport("unused.rclog", "xml", io.Discard)
	assert.ErrorContains(t, err, "unknown format")
}
