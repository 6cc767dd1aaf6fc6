package log

import (
	"context"
	"log/slog"

	"github.com/rcctl/avrcp-go/pkg/wire"
)

// SlogAdapter renders capture events as slog records, one record per event.
// Routine traffic is logged at Debug. Error events and label timeouts or
// exhaustion are logged at Warn so they stay visible at the default level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter returns an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log emits one record for event.
func (a *SlogAdapter) Log(event Event) {
	attrs := make([]slog.Attr, 0, 12)
	attrs = append(attrs,
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	)
	if event.PeerAddr != "" {
		attrs = append(attrs, slog.String("peer", event.PeerAddr))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated))
	case event.Message != nil:
		attrs = appendMessageAttrs(attrs, event.Message)
	case event.StateChange != nil:
		attrs = appendStateAttrs(attrs, event.StateChange)
	case event.Transaction != nil:
		attrs = appendTransactionAttrs(attrs, event.Transaction)
	case event.Error != nil:
		attrs = appendErrorAttrs(attrs, event.Error)
	}

	a.logger.LogAttrs(context.Background(), eventLevel(event), "avrcp", attrs...)
}

func eventLevel(event Event) slog.Level {
	switch {
	case event.Error != nil:
		return slog.LevelWarn
	case event.Transaction != nil &&
		(event.Transaction.Action == TransactionTimeout || event.Transaction.Action == TransactionExhausted):
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}

func appendMessageAttrs(attrs []slog.Attr, m *MessageEvent) []slog.Attr {
	attrs = append(attrs,
		slog.Uint64("label", uint64(m.Label)),
		slog.String("msg_type", m.Type.String()),
		slog.String("code", m.Code.String()))
	if m.PDU != wire.PduNone {
		attrs = append(attrs, slog.String("pdu", m.PDU.String()))
	}
	if m.EventID != nil {
		attrs = append(attrs, slog.String("event", m.EventID.String()))
	}
	if m.Status != nil {
		attrs = append(attrs, slog.String("status", m.Status.String()))
	}
	if m.PacketType != wire.PacketSingle {
		attrs = append(attrs, slog.String("packet", m.PacketType.String()))
	}
	if m.RoundTrip != nil {
		attrs = append(attrs, slog.Duration("round_trip", *m.RoundTrip))
	}
	return attrs
}

func appendStateAttrs(attrs []slog.Attr, s *StateChangeEvent) []slog.Attr {
	attrs = append(attrs,
		slog.String("entity", s.Entity.String()),
		slog.String("old_state", s.OldState),
		slog.String("new_state", s.NewState))
	if s.Reason != "" {
		attrs = append(attrs, slog.String("reason", s.Reason))
	}
	return attrs
}

func appendTransactionAttrs(attrs []slog.Attr, t *TransactionEvent) []slog.Attr {
	attrs = append(attrs,
		slog.String("action", t.Action.String()),
		slog.Uint64("label", uint64(t.Label)),
		slog.Int("in_use", t.InUse))
	if t.PDU != wire.PduNone {
		attrs = append(attrs, slog.String("pdu", t.PDU.String()))
	}
	return attrs
}

func appendErrorAttrs(attrs []slog.Attr, e *ErrorEventData) []slog.Attr {
	attrs = append(attrs,
		slog.String("error_layer", e.Layer.String()),
		slog.String("error", e.Message))
	if e.Context != "" {
		attrs = append(attrs, slog.String("during", e.Context))
	}
	if e.Code != nil {
		attrs = append(attrs, slog.Int("status_code", *e.Code))
	}
	return attrs
}

var _ Logger = (*SlogAdapter)(nil)
