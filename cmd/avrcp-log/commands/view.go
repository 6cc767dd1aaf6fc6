// Package commands implements the avrcp-log CLI commands.
package commands

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rcctl/avrcp-go/pkg/log"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [conn:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n",
		ts, connID, event.Direction.String(), event.Layer.String(), eventType(event))

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.Transaction != nil:
		formatTransactionDetails(w, event.Transaction)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}
	if event.PeerAddr != "" && event.StateChange != nil {
		fmt.Fprintf(w, "  Peer: %s (%s)\n", event.PeerAddr, event.LocalRole.String())
	}

	fmt.Fprintln(w)
}

// eventType returns the short type label used in the header and exports.
func eventType(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.Message != nil:
		return event.Message.Type.String()
	case event.Transaction != nil:
		return event.Transaction.Action.String()
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprint(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	fmt.Fprintf(w, "  Label: %d  Code: %s\n", msg.Label, msg.Code.String())
	if msg.PDU != wire.PduNone {
		fmt.Fprintf(w, "  PDU: %s (0x%02X)", msg.PDU.String(), uint8(msg.PDU))
		if msg.PacketType != wire.PacketSingle {
			fmt.Fprintf(w, "  Packet: %s", msg.PacketType.String())
		}
		fmt.Fprintln(w)
	}
	if msg.EventID != nil {
		fmt.Fprintf(w, "  Event: %s\n", msg.EventID.String())
	}
	if msg.Status != nil && msg.Status.IsError() {
		fmt.Fprintf(w, "  Status: %s (0x%02X)\n", msg.Status.String(), uint8(*msg.Status))
	}
	if msg.RoundTrip != nil {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(*msg.RoundTrip))
	}
	if msg.Payload != nil {
		if payload, err := json.Marshal(msg.Payload); err == nil {
			fmt.Fprintf(w, "  Payload: %s\n", payload)
		}
	}
}

func formatTransactionDetails(w io.Writer, tx *log.TransactionEvent) {
	fmt.Fprintf(w, "  Label: %d", tx.Label)
	if tx.PDU != wire.PduNone {
		fmt.Fprintf(w, "  PDU: %s", tx.PDU.String())
	}
	fmt.Fprintf(w, "  InUse: %d\n", tx.InUse)
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %s (0x%02X)\n", wire.Status(*err.Code).String(), *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer name (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "service":
		return log.LayerService, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or service)", s)
	}
}

// ParseDirectionFlag parses a direction name (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "transaction":
		return log.CategoryTransaction, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, transaction, state, or error)", s)
	}
}

// knownPDUs lists the PDUs accepted by ParsePDUFlag.
var knownPDUs = []wire.PduID{
	wire.PduGetCapabilities,
	wire.PduListAppAttr,
	wire.PduListAppValues,
	wire.PduGetCurrentAppValues,
	wire.PduSetAppValue,
	wire.PduGetAppAttrText,
	wire.PduGetAppValueText,
	wire.PduGetElementAttributes,
	wire.PduGetPlayStatus,
	wire.PduRegisterNotification,
	wire.PduRequestContinuation,
	wire.PduAbortContinuation,
	wire.PduSetAbsoluteVolume,
	wire.PduNone,
}

// ParsePDUFlag parses a PDU given by name (e.g. get_play_status) or by
// numeric ID (e.g. 0x30).
func ParsePDUFlag(s string) (wire.PduID, error) {
	for _, pdu := range knownPDUs {
		if strings.EqualFold(pdu.String(), s) {
			return pdu, nil
		}
	}
	if n, err := strconv.ParseUint(s, 0, 8); err == nil {
		return wire.PduID(n), nil
	}
	return 0, fmt.Errorf("invalid pdu: %s", s)
}

// ParseLabelFlag parses a transaction label (0-15).
func ParseLabelFlag(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || n > 15 {
		return 0, fmt.Errorf("invalid label: %s (must be 0-15)", s)
	}
	return uint8(n), nil
}

// RunView prints every event matching filter.
func RunView(path string, filter log.Filter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
}
