package wire

// Command is an outbound (or inbound, on the target side) vendor-dependent
// PDU.
type Command struct {
	// Code is the command type (CONTROL, STATUS, NOTIFY).
	Code Code

	// PDU identifies the command.
	PDU PduID

	// Params holds the typed parameters. The concrete type depends on PDU:
	//   GET_CAPABILITIES: *CapabilityParams
	//   LIST_APP_ATTR, GET_PLAY_STATUS: nil
	//   LIST_APP_VALUES: *ListAppValuesParams
	//   GET_CURRENT_APP_VALUES, GET_APP_ATTR_TEXT: *AppAttrList
	//   SET_APP_VALUE: *AppSettingValues
	//   GET_APP_VALUE_TEXT: *AppValueTextParams
	//   GET_ELEMENT_ATTRIBUTES: *ElementAttributesParams
	//   REGISTER_NOTIFICATION: *RegisterNotificationParams
	//   REQUEST_CONTINUATION, ABORT_CONTINUATION: *ContinuationParams
	//   SET_ABSOLUTE_VOLUME: *AbsoluteVolume
	Params any
}

// Response is a decoded vendor-dependent response.
type Response struct {
	// Code is the response code.
	Code Code

	// PDU identifies the command being answered.
	PDU PduID

	// Status is StatusNoError for accepted responses. Rejected responses
	// carry the target's error status; timeouts carry StatusTimeout.
	Status Status

	// PacketType marks fragmented responses.
	PacketType PacketType

	// Params holds the typed result for single or reassembled packets:
	//   GET_CAPABILITIES: *CapabilityResult
	//   LIST_APP_ATTR: *AppAttrList
	//   LIST_APP_VALUES: *AppValueList
	//   GET_CURRENT_APP_VALUES: *AppSettingValues
	//   GET_APP_ATTR_TEXT, GET_APP_VALUE_TEXT: *TextList
	//   GET_ELEMENT_ATTRIBUTES: *ElementAttributes
	//   GET_PLAY_STATUS: *PlayStatusResult
	//   REGISTER_NOTIFICATION: *NotificationResult
	//   SET_ABSOLUTE_VOLUME: *AbsoluteVolume
	Params any

	// Fragment holds raw parameter bytes of START/CONTINUE/END packets.
	Fragment []byte
}

// IsFragment reports whether the response is part of a fragmented sequence.
func (r *Response) IsFragment() bool {
	return r.PacketType != PacketSingle
}

// CapabilityParams selects the capability to query.
type CapabilityParams struct {
	CapabilityID CapabilityID
}

// CapabilityResult is the GetCapabilities result.
type CapabilityResult struct {
	CapabilityID CapabilityID
	CompanyIDs   []uint32
	Events       []EventID
}

// ListAppValuesParams asks for the values of one attribute.
type ListAppValuesParams struct {
	AttrID AppAttrID
}

// AppAttrList is a list of player application setting attribute IDs.
type AppAttrList struct {
	AttrIDs []AppAttrID
}

// AppValueList is a list of allowed values for one attribute.
type AppValueList struct {
	Values []uint8
}

// AttrValue pairs a setting attribute with its value.
type AttrValue struct {
	AttrID AppAttrID
	Value  uint8
}

// AppSettingValues is a list of attribute/value pairs.
type AppSettingValues struct {
	Values []AttrValue
}

// AppValueTextParams asks for the display text of values of one attribute.
type AppValueTextParams struct {
	AttrID   AppAttrID
	ValueIDs []uint8
}

// TextEntry is one displayable string keyed by attribute or value ID.
type TextEntry struct {
	ID      uint8
	Charset uint16
	Text    string
}

// TextList is a list of displayable strings.
type TextList struct {
	Entries []TextEntry
}

// ElementAttributesParams asks for media attributes of an element.
// Identifier 0 is the currently playing track.
type ElementAttributesParams struct {
	Identifier uint64
	AttrIDs    []MediaAttrID
}

// ElementAttribute is one media attribute value.
type ElementAttribute struct {
	ID      MediaAttrID
	Charset uint16
	Value   string
}

// ElementAttributes is the GetElementAttributes result.
type ElementAttributes struct {
	Attributes []ElementAttribute
}

// PlayStatusResult is the GetPlayStatus result.
type PlayStatusResult struct {
	SongLength   uint32
	SongPosition uint32
	Status       PlayStatus
}

// RegisterNotificationParams registers for one event.
type RegisterNotificationParams struct {
	EventID          EventID
	PlaybackInterval uint32
}

// InvalidTrackUID is the all-ones UID sent when no track is selected.
const InvalidTrackUID uint64 = 0xFFFFFFFFFFFFFFFF

// NotificationResult is an INTERIM or CHANGED notification body.
// Only the field matching EventID is meaningful.
type NotificationResult struct {
	EventID     EventID
	PlayStatus  PlayStatus
	TrackUID    uint64
	Position    uint32
	AppSettings []AttrValue
	Volume      uint8

	// Raw holds event data for events without a typed field.
	Raw []byte
}

// ContinuationParams names the PDU whose fragmented response is continued
// or aborted.
type ContinuationParams struct {
	TargetPDU PduID
}

// AbsoluteVolume carries a 7-bit volume.
type AbsoluteVolume struct {
	Volume uint8
}

// NewGetCapabilities builds a GetCapabilities command.
func NewGetCapabilities(id CapabilityID) *Command {
	return &Command{Code: CodeStatus, PDU: PduGetCapabilities, Params: &CapabilityParams{CapabilityID: id}}
}

// NewListAppAttr builds a ListPlayerApplicationSettingAttributes command.
func NewListAppAttr() *Command {
	return &Command{Code: CodeStatus, PDU: PduListAppAttr}
}

// NewListAppValues builds a ListPlayerApplicationSettingValues command.
func NewListAppValues(attr AppAttrID) *Command {
	return &Command{Code: CodeStatus, PDU: PduListAppValues, Params: &ListAppValuesParams{AttrID: attr}}
}

// NewGetCurrentAppValues builds a GetCurrentPlayerApplicationSettingValue command.
func NewGetCurrentAppValues(attrs []AppAttrID) *Command {
	return &Command{Code: CodeStatus, PDU: PduGetCurrentAppValues, Params: &AppAttrList{AttrIDs: attrs}}
}

// NewSetAppValue builds a SetPlayerApplicationSettingValue command.
func NewSetAppValue(values []AttrValue) *Command {
	return &Command{Code: CodeControl, PDU: PduSetAppValue, Params: &AppSettingValues{Values: values}}
}

// NewGetAppAttrText builds a GetPlayerApplicationSettingAttributeText command.
func NewGetAppAttrText(attrs []AppAttrID) *Command {
	return &Command{Code: CodeStatus, PDU: PduGetAppAttrText, Params: &AppAttrList{AttrIDs: attrs}}
}

// NewGetAppValueText builds a GetPlayerApplicationSettingValueText command.
func NewGetAppValueText(attr AppAttrID, values []uint8) *Command {
	return &Command{Code: CodeStatus, PDU: PduGetAppValueText, Params: &AppValueTextParams{AttrID: attr, ValueIDs: values}}
}

// NewGetElementAttributes builds a GetElementAttributes command for the
// currently playing track.
func NewGetElementAttributes(attrs []MediaAttrID) *Command {
	return &Command{Code: CodeStatus, PDU: PduGetElementAttributes, Params: &ElementAttributesParams{AttrIDs: attrs}}
}

// NewGetPlayStatus builds a GetPlayStatus command.
func NewGetPlayStatus() *Command {
	return &Command{Code: CodeStatus, PDU: PduGetPlayStatus}
}

// NewRegisterNotification builds a RegisterNotification command.
func NewRegisterNotification(event EventID) *Command {
	return &Command{Code: CodeNotify, PDU: PduRegisterNotification, Params: &RegisterNotificationParams{EventID: event}}
}

// NewRequestContinuation builds a RequestContinuingResponse command.
func NewRequestContinuation(target PduID) *Command {
	return &Command{Code: CodeControl, PDU: PduRequestContinuation, Params: &ContinuationParams{TargetPDU: target}}
}

// NewAbortContinuation builds an AbortContinuingResponse command.
func NewAbortContinuation(target PduID) *Command {
	return &Command{Code: CodeControl, PDU: PduAbortContinuation, Params: &ContinuationParams{TargetPDU: target}}
}

// NewSetAbsoluteVolume builds a SetAbsoluteVolume command.
func NewSetAbsoluteVolume(volume uint8) *Command {
	return &Command{Code: CodeControl, PDU: PduSetAbsoluteVolume, Params: &AbsoluteVolume{Volume: volume & VolumeMask}}
}
