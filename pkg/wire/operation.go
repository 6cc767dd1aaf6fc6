package wire

import (
	"encoding/binary"
	"fmt"
)

// PassThroughOp is a panel operation ID.
type PassThroughOp uint8

const (
	OpVolumeUp     PassThroughOp = 0x41
	OpVolumeDown   PassThroughOp = 0x42
	OpMute         PassThroughOp = 0x43
	OpPlay         PassThroughOp = 0x44
	OpStop         PassThroughOp = 0x45
	OpPause        PassThroughOp = 0x46
	OpRewind       PassThroughOp = 0x48
	OpFastForward  PassThroughOp = 0x49
	OpForward      PassThroughOp = 0x4B
	OpBackward     PassThroughOp = 0x4C
	OpVendorUnique PassThroughOp = 0x7E
)

// String returns the operation name.
func (o PassThroughOp) String() string {
	switch o {
	case OpVolumeUp:
		return "VOLUME_UP"
	case OpVolumeDown:
		return "VOLUME_DOWN"
	case OpMute:
		return "MUTE"
	case OpPlay:
		return "PLAY"
	case OpStop:
		return "STOP"
	case OpPause:
		return "PAUSE"
	case OpRewind:
		return "REWIND"
	case OpFastForward:
		return "FAST_FORWARD"
	case OpForward:
		return "FORWARD"
	case OpBackward:
		return "BACKWARD"
	case OpVendorUnique:
		return "VENDOR_UNIQUE"
	default:
		return "UNKNOWN"
	}
}

// ParsePassThroughOp parses an operation name as returned by String.
func ParsePassThroughOp(s string) (PassThroughOp, bool) {
	for _, op := range []PassThroughOp{
		OpVolumeUp, OpVolumeDown, OpMute, OpPlay, OpStop, OpPause,
		OpRewind, OpFastForward, OpForward, OpBackward,
	} {
		if op.String() == s {
			return op, true
		}
	}
	return 0, false
}

// KeyState is the press/release flag of a pass-through command.
type KeyState uint8

const (
	KeyPressed  KeyState = 0
	KeyReleased KeyState = 1
)

// String returns the key state name.
func (k KeyState) String() string {
	if k == KeyReleased {
		return "RELEASED"
	}
	return "PRESSED"
}

// GroupNavOp is a vendor-unique group navigation operation.
type GroupNavOp uint16

const (
	GroupNavNext     GroupNavOp = 0x0000
	GroupNavPrevious GroupNavOp = 0x0001
)

// String returns the group navigation name.
func (g GroupNavOp) String() string {
	switch g {
	case GroupNavNext:
		return "NEXT_GROUP"
	case GroupNavPrevious:
		return "PREVIOUS_GROUP"
	default:
		return "UNKNOWN"
	}
}

// PassThrough is a panel key event.
type PassThrough struct {
	Op    PassThroughOp
	State KeyState

	// GroupNav is set when Op is OpVendorUnique.
	GroupNav *GroupNavOp
}

// EncodePassThrough encodes a pass-through frame body.
func EncodePassThrough(p PassThrough) []byte {
	head := byte(p.Op) & 0x7F
	if p.State == KeyReleased {
		head |= 0x80
	}
	if p.Op != OpVendorUnique || p.GroupNav == nil {
		return []byte{head, 0}
	}
	buf := make([]byte, 7)
	buf[0] = head
	buf[1] = 5
	putCompanyID(buf[2:5], CompanyIDBluetoothSIG)
	binary.BigEndian.PutUint16(buf[5:7], uint16(*p.GroupNav))
	return buf
}

// DecodePassThrough decodes a pass-through frame body.
func DecodePassThrough(data []byte) (PassThrough, error) {
	if len(data) < 2 {
		return PassThrough{}, fmt.Errorf("%w: pass-through too short (%d bytes)", ErrDecodeFailure, len(data))
	}
	p := PassThrough{
		Op:    PassThroughOp(data[0] & 0x7F),
		State: KeyState(data[0] >> 7),
	}
	n := int(data[1])
	if len(data) < 2+n {
		return PassThrough{}, fmt.Errorf("%w: pass-through data truncated", ErrDecodeFailure)
	}
	if p.Op == OpVendorUnique && n == 5 {
		op := GroupNavOp(binary.BigEndian.Uint16(data[5:7]))
		p.GroupNav = &op
	}
	return p, nil
}
