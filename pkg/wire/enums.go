package wire

import "strings"

// Code is an AV/C command type or response code.
type Code uint8

// Command types.
const (
	CodeControl         Code = 0x00
	CodeStatus          Code = 0x01
	CodeSpecificInquiry Code = 0x02
	CodeNotify          Code = 0x03
	CodeGeneralInquiry  Code = 0x04
)

// Response codes.
const (
	CodeNotImplemented Code = 0x08
	CodeAccepted       Code = 0x09
	CodeRejected       Code = 0x0A
	CodeInTransition   Code = 0x0B
	CodeStable         Code = 0x0C
	CodeChanged        Code = 0x0D
	CodeInterim        Code = 0x0F
)

// IsResponse reports whether the code is a response code.
func (c Code) IsResponse() bool {
	return c >= CodeNotImplemented
}

// String returns the code name.
func (c Code) String() string {
	switch c {
	case CodeControl:
		return "CONTROL"
	case CodeStatus:
		return "STATUS"
	case CodeSpecificInquiry:
		return "SPECIFIC_INQUIRY"
	case CodeNotify:
		return "NOTIFY"
	case CodeGeneralInquiry:
		return "GENERAL_INQUIRY"
	case CodeNotImplemented:
		return "NOT_IMPLEMENTED"
	case CodeAccepted:
		return "ACCEPTED"
	case CodeRejected:
		return "REJECTED"
	case CodeInTransition:
		return "IN_TRANSITION"
	case CodeStable:
		return "STABLE"
	case CodeChanged:
		return "CHANGED"
	case CodeInterim:
		return "INTERIM"
	default:
		return "UNKNOWN"
	}
}

// Opcode is the AV/C opcode of a frame.
type Opcode uint8

const (
	// OpcodeVendor carries vendor-dependent metadata PDUs.
	OpcodeVendor Opcode = 0x00

	// OpcodePassThrough carries panel key presses.
	OpcodePassThrough Opcode = 0x7C
)

// String returns the opcode name.
func (o Opcode) String() string {
	switch o {
	case OpcodeVendor:
		return "VENDOR"
	case OpcodePassThrough:
		return "PASS_THROUGH"
	default:
		return "UNKNOWN"
	}
}

// PduID identifies a vendor-dependent AVRCP PDU.
type PduID uint8

const (
	PduGetCapabilities      PduID = 0x10
	PduListAppAttr          PduID = 0x11
	PduListAppValues        PduID = 0x12
	PduGetCurrentAppValues  PduID = 0x13
	PduSetAppValue          PduID = 0x14
	PduGetAppAttrText       PduID = 0x15
	PduGetAppValueText      PduID = 0x16
	PduGetElementAttributes PduID = 0x20
	PduGetPlayStatus        PduID = 0x30
	PduRegisterNotification PduID = 0x31
	PduRequestContinuation  PduID = 0x40
	PduAbortContinuation    PduID = 0x41
	PduSetAbsoluteVolume    PduID = 0x50

	// PduNone marks a transaction that is not waiting on a vendor PDU
	// (pass-through commands).
	PduNone PduID = 0x00
)

// String returns the PDU name.
func (p PduID) String() string {
	switch p {
	case PduGetCapabilities:
		return "GET_CAPABILITIES"
	case PduListAppAttr:
		return "LIST_APP_ATTR"
	case PduListAppValues:
		return "LIST_APP_VALUES"
	case PduGetCurrentAppValues:
		return "GET_CURRENT_APP_VALUES"
	case PduSetAppValue:
		return "SET_APP_VALUE"
	case PduGetAppAttrText:
		return "GET_APP_ATTR_TEXT"
	case PduGetAppValueText:
		return "GET_APP_VALUE_TEXT"
	case PduGetElementAttributes:
		return "GET_ELEMENT_ATTRIBUTES"
	case PduGetPlayStatus:
		return "GET_PLAY_STATUS"
	case PduRegisterNotification:
		return "REGISTER_NOTIFICATION"
	case PduRequestContinuation:
		return "REQUEST_CONTINUATION"
	case PduAbortContinuation:
		return "ABORT_CONTINUATION"
	case PduSetAbsoluteVolume:
		return "SET_ABSOLUTE_VOLUME"
	case PduNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// IsControl reports whether the PDU is sent with the CONTROL command type.
// Control commands use the control timeout, all others the status timeout.
func (p PduID) IsControl() bool {
	switch p {
	case PduSetAppValue, PduSetAbsoluteVolume, PduRequestContinuation, PduAbortContinuation:
		return true
	default:
		return false
	}
}

// PacketType is the fragmentation marker of a vendor-dependent packet.
type PacketType uint8

const (
	PacketSingle   PacketType = 0x00
	PacketStart    PacketType = 0x01
	PacketContinue PacketType = 0x02
	PacketEnd      PacketType = 0x03
)

// String returns the packet type name.
func (p PacketType) String() string {
	switch p {
	case PacketSingle:
		return "SINGLE"
	case PacketStart:
		return "START"
	case PacketContinue:
		return "CONTINUE"
	case PacketEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// CapabilityID selects what GetCapabilities returns.
type CapabilityID uint8

const (
	CapabilityCompanyID       CapabilityID = 0x02
	CapabilityEventsSupported CapabilityID = 0x03
)

// String returns the capability name.
func (c CapabilityID) String() string {
	switch c {
	case CapabilityCompanyID:
		return "COMPANY_ID"
	case CapabilityEventsSupported:
		return "EVENTS_SUPPORTED"
	default:
		return "UNKNOWN"
	}
}

// EventID identifies a notification event.
type EventID uint8

const (
	EventPlayStatusChanged       EventID = 0x01
	EventTrackChanged            EventID = 0x02
	EventTrackReachedEnd         EventID = 0x03
	EventTrackReachedStart       EventID = 0x04
	EventPlayPosChanged          EventID = 0x05
	EventBatteryStatusChanged    EventID = 0x06
	EventSystemStatusChanged     EventID = 0x07
	EventAppSettingChanged       EventID = 0x08
	EventNowPlayingChanged       EventID = 0x09
	EventAvailablePlayersChanged EventID = 0x0A
	EventAddressedPlayerChanged  EventID = 0x0B
	EventUIDsChanged             EventID = 0x0C
	EventVolumeChanged           EventID = 0x0D
)

// String returns the event name.
func (e EventID) String() string {
	switch e {
	case EventPlayStatusChanged:
		return "PLAY_STATUS_CHANGED"
	case EventTrackChanged:
		return "TRACK_CHANGED"
	case EventTrackReachedEnd:
		return "TRACK_REACHED_END"
	case EventTrackReachedStart:
		return "TRACK_REACHED_START"
	case EventPlayPosChanged:
		return "PLAY_POS_CHANGED"
	case EventBatteryStatusChanged:
		return "BATTERY_STATUS_CHANGED"
	case EventSystemStatusChanged:
		return "SYSTEM_STATUS_CHANGED"
	case EventAppSettingChanged:
		return "APP_SETTING_CHANGED"
	case EventNowPlayingChanged:
		return "NOW_PLAYING_CHANGED"
	case EventAvailablePlayersChanged:
		return "AVAILABLE_PLAYERS_CHANGED"
	case EventAddressedPlayerChanged:
		return "ADDRESSED_PLAYER_CHANGED"
	case EventUIDsChanged:
		return "UIDS_CHANGED"
	case EventVolumeChanged:
		return "VOLUME_CHANGED"
	default:
		return "UNKNOWN"
	}
}

// PlayStatus is the playback state reported by a target.
type PlayStatus uint8

const (
	PlayStatusStopped PlayStatus = 0x00
	PlayStatusPlaying PlayStatus = 0x01
	PlayStatusPaused  PlayStatus = 0x02
	PlayStatusFwdSeek PlayStatus = 0x03
	PlayStatusRevSeek PlayStatus = 0x04
	PlayStatusError   PlayStatus = 0xFF
)

// String returns the play status name.
func (p PlayStatus) String() string {
	switch p {
	case PlayStatusStopped:
		return "STOPPED"
	case PlayStatusPlaying:
		return "PLAYING"
	case PlayStatusPaused:
		return "PAUSED"
	case PlayStatusFwdSeek:
		return "FWD_SEEK"
	case PlayStatusRevSeek:
		return "REV_SEEK"
	case PlayStatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MediaAttrID identifies a media element attribute.
type MediaAttrID uint32

const (
	MediaAttrTitle       MediaAttrID = 0x01
	MediaAttrArtist      MediaAttrID = 0x02
	MediaAttrAlbum       MediaAttrID = 0x03
	MediaAttrTrackNumber MediaAttrID = 0x04
	MediaAttrTotalTracks MediaAttrID = 0x05
	MediaAttrGenre       MediaAttrID = 0x06
	MediaAttrPlayingTime MediaAttrID = 0x07
)

// String returns the media attribute name.
func (m MediaAttrID) String() string {
	switch m {
	case MediaAttrTitle:
		return "TITLE"
	case MediaAttrArtist:
		return "ARTIST"
	case MediaAttrAlbum:
		return "ALBUM"
	case MediaAttrTrackNumber:
		return "TRACK_NUMBER"
	case MediaAttrTotalTracks:
		return "TOTAL_TRACKS"
	case MediaAttrGenre:
		return "GENRE"
	case MediaAttrPlayingTime:
		return "PLAYING_TIME"
	default:
		return "UNKNOWN"
	}
}

// AllMediaAttributes lists every media attribute, in ID order.
var AllMediaAttributes = []MediaAttrID{
	MediaAttrTitle,
	MediaAttrArtist,
	MediaAttrAlbum,
	MediaAttrTrackNumber,
	MediaAttrTotalTracks,
	MediaAttrGenre,
	MediaAttrPlayingTime,
}

// AppAttrID identifies a player application setting attribute.
type AppAttrID uint8

const (
	AppAttrEqualizer AppAttrID = 0x01
	AppAttrRepeat    AppAttrID = 0x02
	AppAttrShuffle   AppAttrID = 0x03
	AppAttrScan      AppAttrID = 0x04

	// AppAttrLowMenuExt is the upper bound of the reserved range. Attribute
	// IDs above it are target-defined and need text queries.
	AppAttrLowMenuExt AppAttrID = 0x80
)

// IsExtended reports whether the attribute is target-defined.
func (a AppAttrID) IsExtended() bool {
	return a > AppAttrLowMenuExt
}

// String returns the attribute name.
func (a AppAttrID) String() string {
	switch a {
	case AppAttrEqualizer:
		return "EQUALIZER"
	case AppAttrRepeat:
		return "REPEAT"
	case AppAttrShuffle:
		return "SHUFFLE"
	case AppAttrScan:
		return "SCAN"
	default:
		if a.IsExtended() {
			return "EXTENDED"
		}
		return "UNKNOWN"
	}
}

// CharsetUTF8 is the IANA MIBenum for UTF-8.
const CharsetUTF8 uint16 = 0x006A

// Volume limits for absolute volume.
const (
	// MaxVolume is the sentinel for "no volume known yet". Valid volumes
	// are 0..0x7F.
	MaxVolume uint8 = 128

	// VolumeMask keeps the 7 valid volume bits.
	VolumeMask uint8 = 0x7F
)

// ParseEventID parses an event name as returned by String, ignoring case.
func ParseEventID(name string) (EventID, bool) {
	for id := EventPlayStatusChanged; id <= EventVolumeChanged; id++ {
		if strings.EqualFold(id.String(), name) {
			return id, true
		}
	}
	return 0, false
}

// ParseMediaAttrID parses a media attribute name as returned by String,
// ignoring case.
func ParseMediaAttrID(name string) (MediaAttrID, bool) {
	for _, id := range AllMediaAttributes {
		if strings.EqualFold(id.String(), name) {
			return id, true
		}
	}
	return 0, false
}
