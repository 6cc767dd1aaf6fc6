package wire

// Status is an AVRCP error/status code carried in REJECTED responses.
type Status uint8

const (
	// StatusInvalidCommand indicates the PDU is unknown to the target.
	StatusInvalidCommand Status = 0x00

	// StatusInvalidParameter indicates a malformed or unknown parameter.
	StatusInvalidParameter Status = 0x01

	// StatusParameterNotFound indicates a parameter was missing.
	StatusParameterNotFound Status = 0x02

	// StatusInternalError indicates a target-side failure.
	StatusInternalError Status = 0x03

	// StatusNoError indicates success.
	StatusNoError Status = 0x04

	// StatusUIDChanged indicates the UID counter moved.
	StatusUIDChanged Status = 0x05

	// StatusInvalidDirection indicates a bad browsing direction.
	StatusInvalidDirection Status = 0x07

	// StatusNotADirectory indicates the UID is not a folder.
	StatusNotADirectory Status = 0x08

	// StatusDoesNotExist indicates the UID does not exist.
	StatusDoesNotExist Status = 0x09

	// StatusInvalidScope indicates a bad scope.
	StatusInvalidScope Status = 0x0A

	// StatusRangeOutOfBounds indicates a bad range.
	StatusRangeOutOfBounds Status = 0x0B

	// StatusPlayerNotAddressed indicates no addressed player.
	StatusPlayerNotAddressed Status = 0x13

	// StatusNoAvailablePlayers indicates no players are available.
	StatusNoAvailablePlayers Status = 0x15

	// StatusAddressedPlayerChanged indicates the addressed player moved.
	StatusAddressedPlayerChanged Status = 0x16

	// StatusTimeout is never sent on the air. It is synthesized locally
	// when a transaction times out.
	StatusTimeout Status = 0xFE
)

// IsError reports whether the status is anything other than StatusNoError.
func (s Status) IsError() bool {
	return s != StatusNoError
}

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusInvalidCommand:
		return "INVALID_COMMAND"
	case StatusInvalidParameter:
		return "INVALID_PARAMETER"
	case StatusParameterNotFound:
		return "PARAMETER_NOT_FOUND"
	case StatusInternalError:
		return "INTERNAL_ERROR"
	case StatusNoError:
		return "NO_ERROR"
	case StatusUIDChanged:
		return "UID_CHANGED"
	case StatusInvalidDirection:
		return "INVALID_DIRECTION"
	case StatusNotADirectory:
		return "NOT_A_DIRECTORY"
	case StatusDoesNotExist:
		return "DOES_NOT_EXIST"
	case StatusInvalidScope:
		return "INVALID_SCOPE"
	case StatusRangeOutOfBounds:
		return "RANGE_OUT_OF_BOUNDS"
	case StatusPlayerNotAddressed:
		return "PLAYER_NOT_ADDRESSED"
	case StatusNoAvailablePlayers:
		return "NO_AVAILABLE_PLAYERS"
	case StatusAddressedPlayerChanged:
		return "ADDRESSED_PLAYER_CHANGED"
	case StatusTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}
