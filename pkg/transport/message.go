package transport

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rcctl/avrcp-go/pkg/wire"
)

// Frame header constants.
const (
	// ProfileIDAVRemote is the A/V remote control profile ID.
	ProfileIDAVRemote uint16 = 0x110E

	// SubunitPanel is the AV/C panel subunit, ID 0.
	SubunitPanel byte = 0x48

	// FrameHeaderSize is the AVCTP plus AV/C header size.
	FrameHeaderSize = 6

	// MaxLabel is the highest transaction label a frame can carry.
	MaxLabel = 0x0F
)

// Frame errors.
var (
	ErrInvalidFrame = errors.New("invalid frame")
	ErrInvalidLabel = errors.New("invalid transaction label")
)

// Message is one AVRCP frame exchanged with a peer.
type Message struct {
	// Peer is the address of the remote device.
	Peer string

	// Label is the transaction label.
	Label uint8

	// Opcode selects vendor-dependent or pass-through.
	Opcode wire.Opcode

	// Code is the command type or response code.
	Code wire.Code

	// Data holds the operands following the AV/C header.
	Data []byte
}

// IsCommand reports whether the message is a command.
func (m Message) IsCommand() bool {
	return !m.Code.IsResponse()
}

// Handler receives inbound messages.
type Handler func(msg Message)

// Transport sends frames to the connected peer.
type Transport interface {
	// Send transmits one frame. It must not block on the peer processing it.
	Send(peer string, label uint8, op wire.Opcode, code wire.Code, data []byte) error
}

// EncodeFrame serializes a message into an AVCTP frame.
func EncodeFrame(msg Message) ([]byte, error) {
	if msg.Label > MaxLabel {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLabel, msg.Label)
	}
	buf := make([]byte, FrameHeaderSize+len(msg.Data))
	b0 := msg.Label << 4
	if !msg.IsCommand() {
		b0 |= 0x02
	}
	buf[0] = b0
	binary.BigEndian.PutUint16(buf[1:3], ProfileIDAVRemote)
	buf[3] = byte(msg.Code) & 0x0F
	buf[4] = SubunitPanel
	buf[5] = byte(msg.Opcode)
	copy(buf[FrameHeaderSize:], msg.Data)
	return buf, nil
}

// DecodeFrame parses an AVCTP frame. The peer is not part of the frame and
// is left empty.
func DecodeFrame(data []byte) (Message, error) {
	if len(data) < FrameHeaderSize {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrInvalidFrame, len(data))
	}
	if pid := binary.BigEndian.Uint16(data[1:3]); pid != ProfileIDAVRemote {
		return Message{}, fmt.Errorf("%w: profile 0x%04X", ErrInvalidFrame, pid)
	}
	if data[0]&0x01 != 0 {
		return Message{}, fmt.Errorf("%w: invalid profile indicator set", ErrInvalidFrame)
	}
	msg := Message{
		Label:  data[0] >> 4,
		Code:   wire.Code(data[3] & 0x0F),
		Opcode: wire.Opcode(data[5]),
	}
	response := data[0]&0x02 != 0
	if response != msg.Code.IsResponse() {
		return Message{}, fmt.Errorf("%w: C/R bit disagrees with %s", ErrInvalidFrame, msg.Code)
	}
	if len(data) > FrameHeaderSize {
		msg.Data = append([]byte(nil), data[FrameHeaderSize:]...)
	}
	return msg, nil
}
