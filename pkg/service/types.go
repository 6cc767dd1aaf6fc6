package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rcctl/avrcp-go/pkg/log"
	"github.com/rcctl/avrcp-go/pkg/procedure"
	"github.com/rcctl/avrcp-go/pkg/properties"
	"github.com/rcctl/avrcp-go/pkg/transaction"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// Session errors.
var (
	ErrNotStarted        = errors.New("session not started")
	ErrAlreadyStarted    = errors.New("session already started")
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyConnected  = errors.New("already connected to another peer")
	ErrUnknownPeer       = errors.New("unknown peer")
	ErrTimeout           = errors.New("transaction timed out")
	ErrUnsupported       = errors.New("not supported by peer")
	ErrNoPendingResponse = errors.New("no pending command to answer")
	ErrAlreadySet        = errors.New("volume already set")
	ErrInvalidVolume     = errors.New("volume out of range")
	ErrInvalidCode       = errors.New("invalid response code")

	// ErrPoolExhausted is returned when all 16 labels are outstanding.
	ErrPoolExhausted = transaction.ErrPoolExhausted
)

// StatusError is a failed transaction: a REJECTED or NOT_IMPLEMENTED
// response, or a local timeout.
type StatusError struct {
	PDU     wire.PduID
	Status  wire.Status
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.PDU, e.Status)
}

// Is matches ErrTimeout for synthesized timeouts.
func (e *StatusError) Is(target error) bool {
	return target == ErrTimeout && e.Status == wire.StatusTimeout
}

// statusError returns nil for successful responses.
func statusError(rsp *wire.Response) error {
	if !rsp.Status.IsError() && rsp.Code != wire.CodeRejected && rsp.Code != wire.CodeNotImplemented {
		return nil
	}
	return &StatusError{PDU: rsp.PDU, Status: rsp.Status}
}

// Default intervals.
const (
	// DefaultPlayStatusInterval is the GetPlayStatus poll period while the
	// target is playing.
	DefaultPlayStatusInterval = 2 * time.Second

	// DefaultTaskQueueSize bounds the executor's task backlog.
	DefaultTaskQueueSize = 64
)

// SessionConfig configures a Session.
type SessionConfig struct {
	// StatusTimeout bounds STATUS commands (default: 2s).
	StatusTimeout time.Duration

	// ControlTimeout bounds CONTROL commands and pass-through (default: 2s).
	ControlTimeout time.Duration

	// InterimTimeout bounds the wait for a notification INTERIM (default: 2s).
	InterimTimeout time.Duration

	// PlayStatusInterval is the poll period while playing (default: 2s).
	PlayStatusInterval time.Duration

	// ElementAttributes is the attribute list requested for the current
	// track (default: all seven).
	ElementAttributes []wire.MediaAttrID

	// MaxElementRetries bounds GetElementAttributes retries after timeouts.
	MaxElementRetries int

	// TrackedEvents are the notification events kept from the target's
	// EventsSupported list (default: play status, track, app settings).
	TrackedEvents []wire.EventID

	// DisableAbsoluteVolume clears the peer's advanced-control bit.
	DisableAbsoluteVolume bool

	// AbsoluteVolumeDenyList lists peer addresses whose absolute volume
	// support is ignored.
	AbsoluteVolumeDenyList []string

	// Properties is consulted for properties.DisableAbsoluteVolume on each
	// feature report (optional).
	Properties properties.Source

	// Codec encodes and decodes PDUs (default: wire.BinaryCodec).
	Codec wire.Codec

	// TaskQueueSize bounds the executor backlog (default: 64).
	TaskQueueSize int

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger captures commands, responses and state changes
	// (optional).
	ProtocolLogger log.Logger
}

// DefaultSessionConfig returns the default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		StatusTimeout:      transaction.DefaultStatusTimeout,
		ControlTimeout:     transaction.DefaultControlTimeout,
		InterimTimeout:     transaction.DefaultInterimTimeout,
		PlayStatusInterval: DefaultPlayStatusInterval,
		ElementAttributes:  wire.AllMediaAttributes,
		MaxElementRetries:  procedure.DefaultMaxElementRetries,
		Codec:              wire.BinaryCodec{},
		TaskQueueSize:      DefaultTaskQueueSize,
	}
}

// withDefaults fills zero fields from DefaultSessionConfig.
func (c SessionConfig) withDefaults() SessionConfig {
	d := DefaultSessionConfig()
	if c.StatusTimeout <= 0 {
		c.StatusTimeout = d.StatusTimeout
	}
	if c.ControlTimeout <= 0 {
		c.ControlTimeout = d.ControlTimeout
	}
	if c.InterimTimeout <= 0 {
		c.InterimTimeout = d.InterimTimeout
	}
	if c.PlayStatusInterval <= 0 {
		c.PlayStatusInterval = d.PlayStatusInterval
	}
	if len(c.ElementAttributes) == 0 {
		c.ElementAttributes = d.ElementAttributes
	}
	if c.MaxElementRetries == 0 {
		c.MaxElementRetries = d.MaxElementRetries
	}
	if c.Codec == nil {
		c.Codec = d.Codec
	}
	if c.TaskQueueSize <= 0 {
		c.TaskQueueSize = d.TaskQueueSize
	}
	return c
}

// timeoutFor picks the transaction timeout for a command type.
func (c SessionConfig) timeoutFor(code wire.Code) time.Duration {
	switch code {
	case wire.CodeControl:
		return c.ControlTimeout
	case wire.CodeNotify:
		return c.InterimTimeout
	default:
		return c.StatusTimeout
	}
}
