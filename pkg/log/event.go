package log

import (
	"time"

	"github.com/rcctl/avrcp-go/pkg/wire"
)

// Event is a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole is the AVRCP role of the local endpoint.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// PeerAddr is the peer's Bluetooth address.
	PeerAddr string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/procedure state
	Transaction *TransactionEvent `cbor:"13,keyasint,omitempty"` // Label lifecycle
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the AVRCP PDU layer.
	LayerWire Layer = 1
	// LayerService is the session layer.
	LayerService Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage is a command or response.
	CategoryMessage Category = 0
	// CategoryTransaction is a label acquire, release or timeout.
	CategoryTransaction Category = 1
	// CategoryState is a state change.
	CategoryState Category = 2
	// CategoryError is an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryTransaction:
		return "TRANSACTION"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role is the AVRCP role of the local endpoint.
type Role uint8

const (
	// RoleController sends commands to a target.
	RoleController Role = 0
	// RoleTarget answers commands.
	RoleTarget Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleController:
		return "CONTROLLER"
	case RoleTarget:
		return "TARGET"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded AVRCP message.
type MessageEvent struct {
	// Type distinguishes commands from responses.
	Type MessageType `cbor:"1,keyasint"`

	// Label is the transaction label.
	Label uint8 `cbor:"2,keyasint"`

	// Code is the AV/C ctype or response code.
	Code wire.Code `cbor:"3,keyasint"`

	// PDU is the vendor-dependent PDU ID (PduNone for pass-through).
	PDU wire.PduID `cbor:"4,keyasint,omitempty"`

	// EventID is set for RegisterNotification commands and responses.
	EventID *wire.EventID `cbor:"5,keyasint,omitempty"`

	// Status is set for responses.
	Status *wire.Status `cbor:"6,keyasint,omitempty"`

	// PacketType is the fragmentation marker of the response.
	PacketType wire.PacketType `cbor:"7,keyasint,omitempty"`

	// Payload is a loggable rendering of the decoded parameters.
	Payload any `cbor:"8,keyasint,omitempty"`

	// RoundTrip is the time from command send to response receipt
	// (responses only). Stored as nanoseconds.
	RoundTrip *time.Duration `cbor:"9,keyasint,omitempty"`
}

// MessageType distinguishes commands from responses.
type MessageType uint8

const (
	// MessageTypeCommand is a command.
	MessageTypeCommand MessageType = 0
	// MessageTypeResponse is a response.
	MessageTypeResponse MessageType = 1
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeCommand:
		return "COMMAND"
	case MessageTypeResponse:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection and procedure lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection is the peer connection.
	StateEntityConnection StateEntity = 0
	// StateEntityProcedure is the discovery procedure phase.
	StateEntityProcedure StateEntity = 1
	// StateEntityNotification is a notification registration.
	StateEntityNotification StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityProcedure:
		return "PROCEDURE"
	case StateEntityNotification:
		return "NOTIFICATION"
	default:
		return "UNKNOWN"
	}
}

// TransactionEvent captures the lifecycle of a transaction label.
type TransactionEvent struct {
	// Action taken on the label.
	Action TransactionAction `cbor:"1,keyasint"`

	// Label is the transaction label.
	Label uint8 `cbor:"2,keyasint"`

	// PDU the transaction is waiting on.
	PDU wire.PduID `cbor:"3,keyasint,omitempty"`

	// InUse is the number of labels in use after the action.
	InUse int `cbor:"4,keyasint"`
}

// TransactionAction is what happened to a label.
type TransactionAction uint8

const (
	// TransactionAcquire marks a label as taken.
	TransactionAcquire TransactionAction = 0
	// TransactionRelease returns a label to the pool.
	TransactionRelease TransactionAction = 1
	// TransactionTimeout is a timer expiry.
	TransactionTimeout TransactionAction = 2
	// TransactionExhausted is a failed acquire.
	TransactionExhausted TransactionAction = 3
)

// String returns the action name.
func (a TransactionAction) String() string {
	switch a {
	case TransactionAcquire:
		return "ACQUIRE"
	case TransactionRelease:
		return "RELEASE"
	case TransactionTimeout:
		return "TIMEOUT"
	case TransactionExhausted:
		return "EXHAUSTED"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the AVRCP status code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
