package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// CompanyIDBluetoothSIG is the company ID that prefixes every metadata PDU.
const CompanyIDBluetoothSIG uint32 = 0x001958

// HeaderSize is the size of the vendor-dependent PDU header.
const HeaderSize = 7

// MaxParamsPerPacket is the largest parameter block that fits in one
// vendor-dependent packet. Larger responses are fragmented.
const MaxParamsPerPacket = 502

// Codec errors.
var (
	ErrEncodeFailure = errors.New("encode failure")
	ErrDecodeFailure = errors.New("decode failure")
)

// DecodeError describes a malformed PDU. It carries the status to reject the
// PDU with and unwraps to ErrDecodeFailure.
type DecodeError struct {
	PDU    PduID
	Status Status
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s (%s)", e.PDU, e.Reason, e.Status)
}

// Unwrap returns ErrDecodeFailure.
func (e *DecodeError) Unwrap() error {
	return ErrDecodeFailure
}

// Codec converts between PDU structs and frame bodies.
type Codec interface {
	EncodeCommand(cmd *Command) ([]byte, error)
	DecodeCommand(code Code, data []byte) (*Command, error)
	EncodeResponse(rsp *Response) ([]byte, error)
	DecodeResponse(code Code, data []byte) (*Response, error)
	DecodeResponseParams(pdu PduID, params []byte) (any, error)
}

// BinaryCodec implements Codec with the AVRCP binary layout.
// The zero value is ready to use.
type BinaryCodec struct{}

// Compile-time interface satisfaction check.
var _ Codec = BinaryCodec{}

// EncodeCommand encodes a command frame body.
func (BinaryCodec) EncodeCommand(cmd *Command) ([]byte, error) {
	params, err := encodeCommandParams(cmd)
	if err != nil {
		return nil, err
	}
	return encodePacket(cmd.PDU, PacketSingle, params)
}

// DecodeCommand decodes a command frame body. Errors are *DecodeError.
func (BinaryCodec) DecodeCommand(code Code, data []byte) (*Command, error) {
	pdu, pt, params, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	if pt != PacketSingle {
		return nil, &DecodeError{PDU: pdu, Status: StatusInvalidParameter, Reason: "fragmented command"}
	}
	cmd := &Command{Code: code, PDU: pdu}
	r := newReader(params)
	switch pdu {
	case PduGetCapabilities:
		cmd.Params = &CapabilityParams{CapabilityID: CapabilityID(r.u8())}
	case PduListAppAttr, PduGetPlayStatus:
	case PduListAppValues:
		cmd.Params = &ListAppValuesParams{AttrID: AppAttrID(r.u8())}
	case PduGetCurrentAppValues, PduGetAppAttrText:
		cmd.Params = &AppAttrList{AttrIDs: r.attrIDs()}
	case PduSetAppValue:
		cmd.Params = &AppSettingValues{Values: r.attrValues()}
	case PduGetAppValueText:
		p := &AppValueTextParams{AttrID: AppAttrID(r.u8())}
		p.ValueIDs = r.bytes(int(r.u8()))
		cmd.Params = p
	case PduGetElementAttributes:
		p := &ElementAttributesParams{Identifier: r.u64()}
		n := int(r.u8())
		for i := 0; i < n && r.err == nil; i++ {
			p.AttrIDs = append(p.AttrIDs, MediaAttrID(r.u32()))
		}
		cmd.Params = p
	case PduRegisterNotification:
		cmd.Params = &RegisterNotificationParams{EventID: EventID(r.u8()), PlaybackInterval: r.u32()}
	case PduRequestContinuation, PduAbortContinuation:
		cmd.Params = &ContinuationParams{TargetPDU: PduID(r.u8())}
	case PduSetAbsoluteVolume:
		cmd.Params = &AbsoluteVolume{Volume: r.u8() & VolumeMask}
	default:
		return cmd, &DecodeError{PDU: pdu, Status: StatusInvalidCommand, Reason: "unknown pdu"}
	}
	if r.err != nil {
		return cmd, &DecodeError{PDU: pdu, Status: StatusParameterNotFound, Reason: r.err.Error()}
	}
	return cmd, nil
}

// EncodeResponse encodes a single-packet response frame body.
func (BinaryCodec) EncodeResponse(rsp *Response) ([]byte, error) {
	params, err := encodeResponseParams(rsp)
	if err != nil {
		return nil, err
	}
	return encodePacket(rsp.PDU, PacketSingle, params)
}

// DecodeResponse decodes a response frame body. Fragmented packets are
// returned with their raw parameters in Fragment. On parameter errors the
// returned Response is still populated with the PDU so the caller can fail
// the transaction.
func (c BinaryCodec) DecodeResponse(code Code, data []byte) (*Response, error) {
	pdu, pt, params, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	rsp := &Response{Code: code, PDU: pdu, PacketType: pt, Status: StatusNoError}
	if code == CodeRejected || code == CodeNotImplemented {
		rsp.Status = StatusInternalError
		if len(params) > 0 {
			rsp.Status = Status(params[0])
		}
		return rsp, nil
	}
	if pt != PacketSingle {
		rsp.Fragment = params
		return rsp, nil
	}
	rsp.Params, err = c.DecodeResponseParams(pdu, params)
	if err != nil {
		rsp.Status = StatusInternalError
		return rsp, err
	}
	return rsp, nil
}

// DecodeResponseParams decodes the parameter block of an accepted response.
func (BinaryCodec) DecodeResponseParams(pdu PduID, params []byte) (any, error) {
	r := newReader(params)
	var out any
	switch pdu {
	case PduGetCapabilities:
		res := &CapabilityResult{CapabilityID: CapabilityID(r.u8())}
		n := int(r.u8())
		for i := 0; i < n && r.err == nil; i++ {
			switch res.CapabilityID {
			case CapabilityCompanyID:
				res.CompanyIDs = append(res.CompanyIDs, r.u24())
			default:
				res.Events = append(res.Events, EventID(r.u8()))
			}
		}
		out = res
	case PduListAppAttr:
		out = &AppAttrList{AttrIDs: r.attrIDs()}
	case PduListAppValues:
		out = &AppValueList{Values: r.bytes(int(r.u8()))}
	case PduGetCurrentAppValues:
		out = &AppSettingValues{Values: r.attrValues()}
	case PduGetAppAttrText, PduGetAppValueText:
		res := &TextList{}
		n := int(r.u8())
		for i := 0; i < n && r.err == nil; i++ {
			e := TextEntry{ID: r.u8(), Charset: r.u16()}
			e.Text = string(r.bytes(int(r.u8())))
			res.Entries = append(res.Entries, e)
		}
		out = res
	case PduGetElementAttributes:
		res := &ElementAttributes{}
		n := int(r.u8())
		for i := 0; i < n && r.err == nil; i++ {
			a := ElementAttribute{ID: MediaAttrID(r.u32()), Charset: r.u16()}
			a.Value = string(r.bytes(int(r.u16())))
			res.Attributes = append(res.Attributes, a)
		}
		out = res
	case PduGetPlayStatus:
		out = &PlayStatusResult{SongLength: r.u32(), SongPosition: r.u32(), Status: PlayStatus(r.u8())}
	case PduRegisterNotification:
		out = decodeNotification(r)
	case PduSetAbsoluteVolume:
		out = &AbsoluteVolume{Volume: r.u8() & VolumeMask}
	case PduSetAppValue, PduAbortContinuation:
	default:
		return nil, &DecodeError{PDU: pdu, Status: StatusInvalidCommand, Reason: "unknown pdu"}
	}
	if r.err != nil {
		return nil, &DecodeError{PDU: pdu, Status: StatusInternalError, Reason: r.err.Error()}
	}
	return out, nil
}

// EncodeFragments encodes a response, splitting the parameters into
// START/CONTINUE/END packets when they exceed limit bytes. A limit of zero
// uses MaxParamsPerPacket.
func EncodeFragments(rsp *Response, limit int) ([][]byte, error) {
	if limit <= 0 {
		limit = MaxParamsPerPacket
	}
	params, err := encodeResponseParams(rsp)
	if err != nil {
		return nil, err
	}
	if len(params) <= limit {
		pkt, err := encodePacket(rsp.PDU, PacketSingle, params)
		if err != nil {
			return nil, err
		}
		return [][]byte{pkt}, nil
	}
	var out [][]byte
	for off := 0; off < len(params); off += limit {
		end := min(off+limit, len(params))
		pt := PacketContinue
		switch {
		case off == 0:
			pt = PacketStart
		case end == len(params):
			pt = PacketEnd
		}
		pkt, err := encodePacket(rsp.PDU, pt, params[off:end])
		if err != nil {
			return nil, err
		}
		out = append(out, pkt)
	}
	return out, nil
}

func encodePacket(pdu PduID, pt PacketType, params []byte) ([]byte, error) {
	if len(params) > 0xFFFF {
		return nil, fmt.Errorf("%w: %s params too large (%d bytes)", ErrEncodeFailure, pdu, len(params))
	}
	buf := make([]byte, HeaderSize, HeaderSize+len(params))
	putCompanyID(buf[0:3], CompanyIDBluetoothSIG)
	buf[3] = byte(pdu)
	buf[4] = byte(pt) & 0x03
	binary.BigEndian.PutUint16(buf[5:7], uint16(len(params)))
	return append(buf, params...), nil
}

func decodeHeader(data []byte) (PduID, PacketType, []byte, error) {
	if len(data) < HeaderSize {
		return 0, 0, nil, &DecodeError{Status: StatusInvalidCommand, Reason: fmt.Sprintf("short header (%d bytes)", len(data))}
	}
	pdu := PduID(data[3])
	if cid := uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2]); cid != CompanyIDBluetoothSIG {
		return pdu, 0, nil, &DecodeError{PDU: pdu, Status: StatusInvalidCommand, Reason: fmt.Sprintf("company id %06x", cid)}
	}
	pt := PacketType(data[4] & 0x03)
	n := int(binary.BigEndian.Uint16(data[5:7]))
	if len(data)-HeaderSize < n {
		return pdu, pt, nil, &DecodeError{PDU: pdu, Status: StatusParameterNotFound, Reason: "truncated parameters"}
	}
	return pdu, pt, data[HeaderSize : HeaderSize+n], nil
}

func encodeCommandParams(cmd *Command) ([]byte, error) {
	var b []byte
	switch p := cmd.Params.(type) {
	case nil:
		if cmd.PDU != PduListAppAttr && cmd.PDU != PduGetPlayStatus {
			return nil, fmt.Errorf("%w: %s requires parameters", ErrEncodeFailure, cmd.PDU)
		}
	case *CapabilityParams:
		b = append(b, byte(p.CapabilityID))
	case *ListAppValuesParams:
		b = append(b, byte(p.AttrID))
	case *AppAttrList:
		b = appendAttrIDs(b, p.AttrIDs)
	case *AppSettingValues:
		b = appendAttrValues(b, p.Values)
	case *AppValueTextParams:
		b = append(b, byte(p.AttrID), byte(len(p.ValueIDs)))
		b = append(b, p.ValueIDs...)
	case *ElementAttributesParams:
		b = binary.BigEndian.AppendUint64(b, p.Identifier)
		b = append(b, byte(len(p.AttrIDs)))
		for _, id := range p.AttrIDs {
			b = binary.BigEndian.AppendUint32(b, uint32(id))
		}
	case *RegisterNotificationParams:
		b = append(b, byte(p.EventID))
		b = binary.BigEndian.AppendUint32(b, p.PlaybackInterval)
	case *ContinuationParams:
		b = append(b, byte(p.TargetPDU))
	case *AbsoluteVolume:
		b = append(b, p.Volume&VolumeMask)
	default:
		return nil, fmt.Errorf("%w: unsupported command params %T", ErrEncodeFailure, cmd.Params)
	}
	return b, nil
}

func encodeResponseParams(rsp *Response) ([]byte, error) {
	if rsp.Code == CodeRejected || rsp.Code == CodeNotImplemented {
		return []byte{byte(rsp.Status)}, nil
	}
	var b []byte
	switch p := rsp.Params.(type) {
	case nil:
	case *CapabilityResult:
		b = append(b, byte(p.CapabilityID))
		if p.CapabilityID == CapabilityCompanyID {
			b = append(b, byte(len(p.CompanyIDs)))
			for _, id := range p.CompanyIDs {
				b = append(b, byte(id>>16), byte(id>>8), byte(id))
			}
		} else {
			b = append(b, byte(len(p.Events)))
			for _, e := range p.Events {
				b = append(b, byte(e))
			}
		}
	case *AppAttrList:
		b = appendAttrIDs(b, p.AttrIDs)
	case *AppValueList:
		b = append(b, byte(len(p.Values)))
		b = append(b, p.Values...)
	case *AppSettingValues:
		b = appendAttrValues(b, p.Values)
	case *TextList:
		b = append(b, byte(len(p.Entries)))
		for _, e := range p.Entries {
			if len(e.Text) > 0xFF {
				return nil, fmt.Errorf("%w: text entry %d too long", ErrEncodeFailure, e.ID)
			}
			b = append(b, e.ID)
			b = binary.BigEndian.AppendUint16(b, e.Charset)
			b = append(b, byte(len(e.Text)))
			b = append(b, e.Text...)
		}
	case *ElementAttributes:
		b = append(b, byte(len(p.Attributes)))
		for _, a := range p.Attributes {
			if len(a.Value) > 0xFFFF {
				return nil, fmt.Errorf("%w: attribute %s too long", ErrEncodeFailure, a.ID)
			}
			b = binary.BigEndian.AppendUint32(b, uint32(a.ID))
			b = binary.BigEndian.AppendUint16(b, a.Charset)
			b = binary.BigEndian.AppendUint16(b, uint16(len(a.Value)))
			b = append(b, a.Value...)
		}
	case *PlayStatusResult:
		b = binary.BigEndian.AppendUint32(b, p.SongLength)
		b = binary.BigEndian.AppendUint32(b, p.SongPosition)
		b = append(b, byte(p.Status))
	case *NotificationResult:
		b = appendNotification(b, p)
	case *AbsoluteVolume:
		b = append(b, p.Volume&VolumeMask)
	default:
		return nil, fmt.Errorf("%w: unsupported response params %T", ErrEncodeFailure, rsp.Params)
	}
	return b, nil
}

func appendNotification(b []byte, n *NotificationResult) []byte {
	b = append(b, byte(n.EventID))
	switch n.EventID {
	case EventPlayStatusChanged:
		b = append(b, byte(n.PlayStatus))
	case EventTrackChanged:
		b = binary.BigEndian.AppendUint64(b, n.TrackUID)
	case EventPlayPosChanged:
		b = binary.BigEndian.AppendUint32(b, n.Position)
	case EventAppSettingChanged:
		b = appendAttrValues(b, n.AppSettings)
	case EventVolumeChanged:
		b = append(b, n.Volume&VolumeMask)
	default:
		b = append(b, n.Raw...)
	}
	return b
}

func decodeNotification(r *reader) *NotificationResult {
	n := &NotificationResult{EventID: EventID(r.u8())}
	switch n.EventID {
	case EventPlayStatusChanged:
		n.PlayStatus = PlayStatus(r.u8())
	case EventTrackChanged:
		n.TrackUID = r.u64()
	case EventPlayPosChanged:
		n.Position = r.u32()
	case EventAppSettingChanged:
		n.AppSettings = r.attrValues()
	case EventVolumeChanged:
		n.Volume = r.u8() & VolumeMask
	default:
		n.Raw = r.rest()
	}
	return n
}

func appendAttrIDs(b []byte, ids []AppAttrID) []byte {
	b = append(b, byte(len(ids)))
	for _, id := range ids {
		b = append(b, byte(id))
	}
	return b
}

func appendAttrValues(b []byte, values []AttrValue) []byte {
	b = append(b, byte(len(values)))
	for _, v := range values {
		b = append(b, byte(v.AttrID), v.Value)
	}
	return b
}

func putCompanyID(b []byte, id uint32) {
	b[0] = byte(id >> 16)
	b[1] = byte(id >> 8)
	b[2] = byte(id)
}

var errShortParams = errors.New("parameters too short")

// reader is a sticky-error big-endian cursor over a parameter block.
type reader struct {
	b   []byte
	off int
	err error
}

func newReader(b []byte) *reader {
	return &reader{b: b}
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.b) {
		r.err = errShortParams
		return nil
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u24() uint32 {
	if b := r.take(3); b != nil {
		return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

func (r *reader) bytes(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (r *reader) rest() []byte {
	return r.bytes(len(r.b) - r.off)
}

func (r *reader) attrIDs() []AppAttrID {
	n := int(r.u8())
	var ids []AppAttrID
	for i := 0; i < n && r.err == nil; i++ {
		ids = append(ids, AppAttrID(r.u8()))
	}
	return ids
}

func (r *reader) attrValues() []AttrValue {
	n := int(r.u8())
	var vals []AttrValue
	for i := 0; i < n && r.err == nil; i++ {
		vals = append(vals, AttrValue{AttrID: AppAttrID(r.u8()), Value: r.u8()})
	}
	return vals
}
