package peersim

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/rcctl/avrcp-go/pkg/transport"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// Received is one command seen by the target.
type Received struct {
	Label uint8
	Code  wire.Code
	PDU   wire.PduID

	// Event is set for REGISTER_NOTIFICATION.
	Event wire.EventID

	// PassThrough is set for pass-through commands.
	PassThrough *wire.PassThrough
}

// Target is a simulated AVRCP target bound to one transport.
type Target struct {
	mu sync.Mutex

	profile *Profile
	events  []wire.EventID
	status  wire.PlayStatus
	faults  []*compiledFault
	codec   wire.BinaryCodec

	tr     transport.Transport
	peer   string
	logger *slog.Logger

	// Notification labels by event, and pending fragments by label.
	registrations map[wire.EventID]uint8
	fragments     map[uint8][][]byte

	// outbox holds CHANGED responses produced under mu, sent after unlock.
	outbox []outbound

	received []Received
	closed   bool
}

type outbound struct {
	label uint8
	rsp   *wire.Response
}

// NewTarget creates a target answering peer over tr. The profile is copied.
func NewTarget(profile *Profile, tr transport.Transport, peer string, logger *slog.Logger) (*Target, error) {
	if profile == nil {
		profile = DefaultProfile()
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	p, err := profile.Clone()
	if err != nil {
		return nil, err
	}
	events, _ := p.EventIDs()
	status := wire.PlayStatusStopped
	if p.PlayStatus != "" {
		status, _ = parsePlayStatus(p.PlayStatus)
	}
	t := &Target{
		profile:       p,
		events:        events,
		status:        status,
		tr:            tr,
		peer:          peer,
		logger:        logger,
		registrations: make(map[wire.EventID]uint8),
		fragments:     make(map[uint8][][]byte),
	}
	for _, f := range p.Faults {
		cf, _ := f.compile()
		t.faults = append(t.faults, cf)
	}
	return t, nil
}

// Features returns the profile's SDP feature bitmap.
func (t *Target) Features() wire.Features {
	f, _ := t.profile.FeatureBits()
	return f
}

// Handle is the transport handler for the target's end.
func (t *Target) Handle(msg transport.Message) {
	if !msg.IsCommand() {
		t.debugLog("peersim: ignoring response", "label", msg.Label, "code", msg.Code.String())
		return
	}
	if msg.Opcode == wire.OpcodePassThrough {
		t.handlePassThrough(msg)
		return
	}

	cmd, err := t.codec.DecodeCommand(msg.Code, msg.Data)
	if err != nil {
		var derr *wire.DecodeError
		status, pdu := wire.StatusInternalError, wire.PduNone
		if errors.As(err, &derr) {
			status, pdu = derr.Status, derr.PDU
		}
		t.reply(msg.Label, &wire.Response{Code: wire.CodeRejected, PDU: pdu, Status: status})
		return
	}

	rec := Received{Label: msg.Label, Code: msg.Code, PDU: cmd.PDU}
	if p, ok := cmd.Params.(*wire.RegisterNotificationParams); ok {
		rec.Event = p.EventID
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.received = append(t.received, rec)
	fault := t.matchFault(rec)
	t.mu.Unlock()

	if fault != nil {
		switch fault.action {
		case FaultDrop:
			t.debugLog("peersim: dropping", "pdu", cmd.PDU.String(), "label", msg.Label)
			return
		case FaultReject:
			t.reply(msg.Label, &wire.Response{Code: wire.CodeRejected, PDU: cmd.PDU, Status: fault.status})
			return
		case FaultNotImplemented:
			t.reply(msg.Label, &wire.Response{Code: wire.CodeNotImplemented, PDU: cmd.PDU, Status: fault.status})
			return
		case FaultDelay:
			time.AfterFunc(fault.delay, func() { t.answer(msg.Label, cmd) })
			return
		}
	}
	t.answer(msg.Label, cmd)
}

// matchFault returns the first live fault for rec. Caller holds mu.
func (t *Target) matchFault(rec Received) *compiledFault {
	for _, f := range t.faults {
		if f.pdu != rec.PDU || (f.hasEvent && f.event != rec.Event) {
			continue
		}
		if f.left < 0 {
			continue
		}
		if f.left > 0 {
			f.left--
			if f.left == 0 {
				f.left = -1
			}
		}
		return f
	}
	return nil
}

func (t *Target) answer(label uint8, cmd *wire.Command) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	rsp := t.respond(label, cmd)
	out := t.takeOutbox()
	t.mu.Unlock()

	if rsp != nil {
		t.reply(label, rsp)
	}
	t.send(out)
}

// takeOutbox empties the outbox. Caller holds mu.
func (t *Target) takeOutbox() []outbound {
	out := t.outbox
	t.outbox = nil
	return out
}

func (t *Target) send(out []outbound) {
	for _, o := range out {
		t.reply(o.label, o.rsp)
	}
}

// unlock releases mu and sends whatever the outbox collected.
func (t *Target) unlock() {
	out := t.takeOutbox()
	closed := t.closed
	t.mu.Unlock()
	if !closed {
		t.send(out)
	}
}

// respond builds the answer to cmd. Caller holds mu.
func (t *Target) respond(label uint8, cmd *wire.Command) *wire.Response {
	stable := func(params any) *wire.Response {
		return &wire.Response{Code: wire.CodeStable, PDU: cmd.PDU, Status: wire.StatusNoError, Params: params}
	}
	reject := func(status wire.Status) *wire.Response {
		return &wire.Response{Code: wire.CodeRejected, PDU: cmd.PDU, Status: status}
	}

	switch p := cmd.Params.(type) {
	case *wire.CapabilityParams:
		switch p.CapabilityID {
		case wire.CapabilityCompanyID:
			return stable(&wire.CapabilityResult{CapabilityID: p.CapabilityID, CompanyIDs: t.profile.CompanyIDs})
		case wire.CapabilityEventsSupported:
			return stable(&wire.CapabilityResult{CapabilityID: p.CapabilityID, Events: t.events})
		}
		return reject(wire.StatusInvalidParameter)

	case *wire.ListAppValuesParams:
		s := t.setting(p.AttrID)
		if s == nil {
			return reject(wire.StatusInvalidParameter)
		}
		values := make([]uint8, 0, len(s.Values))
		for _, v := range s.Values {
			values = append(values, v.ID)
		}
		return stable(&wire.AppValueList{Values: values})

	case *wire.AppAttrList:
		if cmd.PDU == wire.PduGetAppAttrText {
			var entries []wire.TextEntry
			for _, id := range p.AttrIDs {
				if s := t.setting(id); s != nil {
					entries = append(entries, wire.TextEntry{ID: s.ID, Charset: wire.CharsetUTF8, Text: s.Text})
				}
			}
			return stable(&wire.TextList{Entries: entries})
		}
		var values []wire.AttrValue
		for _, id := range p.AttrIDs {
			s := t.setting(id)
			if s == nil {
				return reject(wire.StatusInvalidParameter)
			}
			values = append(values, wire.AttrValue{AttrID: id, Value: s.Current})
		}
		return stable(&wire.AppSettingValues{Values: values})

	case *wire.AppValueTextParams:
		s := t.setting(p.AttrID)
		if s == nil {
			return reject(wire.StatusInvalidParameter)
		}
		var entries []wire.TextEntry
		for _, id := range p.ValueIDs {
			for _, v := range s.Values {
				if v.ID == id {
					entries = append(entries, wire.TextEntry{ID: id, Charset: wire.CharsetUTF8, Text: v.Text})
				}
			}
		}
		return stable(&wire.TextList{Entries: entries})

	case *wire.AppSettingValues:
		for _, v := range p.Values {
			s := t.setting(v.AttrID)
			if s == nil {
				return reject(wire.StatusInvalidParameter)
			}
			s.Current = v.Value
		}
		t.notifyLocked(wire.EventAppSettingChanged)
		return &wire.Response{Code: wire.CodeAccepted, PDU: cmd.PDU, Status: wire.StatusNoError}

	case *wire.ElementAttributesParams:
		return t.fragment(label, stable(&wire.ElementAttributes{Attributes: t.elementAttributes(p.AttrIDs)}))

	case *wire.RegisterNotificationParams:
		if !t.advertised(p.EventID) {
			return reject(wire.StatusInvalidParameter)
		}
		t.registrations[p.EventID] = label
		return &wire.Response{Code: wire.CodeInterim, PDU: cmd.PDU, Status: wire.StatusNoError, Params: t.notificationLocked(p.EventID)}

	case *wire.ContinuationParams:
		return t.continuation(label, cmd.PDU, p.TargetPDU)

	case *wire.AbsoluteVolume:
		if t.profile.Volume != p.Volume {
			t.profile.Volume = p.Volume
			t.notifyLocked(wire.EventVolumeChanged)
		}
		return &wire.Response{Code: wire.CodeAccepted, PDU: cmd.PDU, Status: wire.StatusNoError, Params: &wire.AbsoluteVolume{Volume: p.Volume}}
	}

	switch cmd.PDU {
	case wire.PduListAppAttr:
		ids := make([]wire.AppAttrID, 0, len(t.profile.Settings))
		for _, s := range t.profile.Settings {
			ids = append(ids, wire.AppAttrID(s.ID))
		}
		return stable(&wire.AppAttrList{AttrIDs: ids})
	case wire.PduGetPlayStatus:
		return stable(&wire.PlayStatusResult{
			SongLength:   t.profile.SongLength,
			SongPosition: t.profile.SongPosition,
			Status:       t.status,
		})
	}
	return reject(wire.StatusInvalidCommand)
}

// fragment splits rsp when it exceeds the profile's fragment limit and
// keeps the remaining packets for REQUEST_CONTINUATION. Caller holds mu.
func (t *Target) fragment(label uint8, rsp *wire.Response) *wire.Response {
	if t.profile.FragmentLimit <= 0 {
		return rsp
	}
	packets, err := wire.EncodeFragments(rsp, t.profile.FragmentLimit)
	if err != nil || len(packets) == 1 {
		return rsp
	}
	t.fragments[label] = packets[1:]
	return &wire.Response{Code: rsp.Code, PDU: rsp.PDU, Status: wire.StatusNoError, Params: rawPacket(packets[0])}
}

func (t *Target) continuation(label uint8, pdu, target wire.PduID) *wire.Response {
	pending := t.fragments[label]
	if pdu == wire.PduAbortContinuation {
		delete(t.fragments, label)
		return &wire.Response{Code: wire.CodeAccepted, PDU: pdu, Status: wire.StatusNoError}
	}
	if len(pending) == 0 {
		return &wire.Response{Code: wire.CodeRejected, PDU: pdu, Status: wire.StatusInvalidParameter}
	}
	next := pending[0]
	if len(pending) == 1 {
		delete(t.fragments, label)
	} else {
		t.fragments[label] = pending[1:]
	}
	return &wire.Response{Code: wire.CodeStable, PDU: target, Status: wire.StatusNoError, Params: rawPacket(next)}
}

// rawPacket is a pre-encoded packet body passed through reply untouched.
type rawPacket []byte

func (t *Target) reply(label uint8, rsp *wire.Response) {
	var data []byte
	if raw, ok := rsp.Params.(rawPacket); ok {
		data = raw
	} else {
		var err error
		data, err = t.codec.EncodeResponse(rsp)
		if err != nil {
			t.debugLog("peersim: encode failed", "pdu", rsp.PDU.String(), "error", err)
			return
		}
	}
	if err := t.tr.Send(t.peer, label, wire.OpcodeVendor, rsp.Code, data); err != nil {
		t.debugLog("peersim: send failed", "label", label, "error", err)
	}
}

func (t *Target) handlePassThrough(msg transport.Message) {
	pt, err := wire.DecodePassThrough(msg.Data)
	code := wire.CodeAccepted
	if err != nil {
		code = wire.CodeRejected
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if err == nil {
		t.received = append(t.received, Received{Label: msg.Label, Code: msg.Code, PDU: wire.PduNone, PassThrough: &pt})
		if pt.State == wire.KeyReleased {
			t.applyKeyLocked(pt.Op)
		}
	}
	out := t.takeOutbox()
	t.mu.Unlock()

	if err := t.tr.Send(t.peer, msg.Label, wire.OpcodePassThrough, code, msg.Data); err != nil {
		t.debugLog("peersim: send failed", "label", msg.Label, "error", err)
	}
	t.send(out)
}

// applyKeyLocked maps transport keys onto the play status.
func (t *Target) applyKeyLocked(op wire.PassThroughOp) {
	switch op {
	case wire.OpPlay:
		t.setStatusLocked(wire.PlayStatusPlaying)
	case wire.OpPause:
		t.setStatusLocked(wire.PlayStatusPaused)
	case wire.OpStop:
		t.setStatusLocked(wire.PlayStatusStopped)
	}
}

// SetPlayStatus changes the play status and notifies a registered peer.
func (t *Target) SetPlayStatus(status wire.PlayStatus) {
	t.mu.Lock()
	defer t.unlock()
	t.setStatusLocked(status)
}

func (t *Target) setStatusLocked(status wire.PlayStatus) {
	if t.status == status {
		return
	}
	t.status = status
	t.notifyLocked(wire.EventPlayStatusChanged)
}

// SetPosition changes the song position reported by GetPlayStatus.
func (t *Target) SetPosition(ms uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.profile.SongPosition = ms
}

// ChangeTrack replaces the current track and notifies a registered peer.
func (t *Target) ChangeTrack(track Track) {
	t.mu.Lock()
	defer t.unlock()
	t.profile.Track = track
	t.notifyLocked(wire.EventTrackChanged)
}

// SetSetting changes a setting value and notifies a registered peer.
func (t *Target) SetSetting(id wire.AppAttrID, value uint8) error {
	t.mu.Lock()
	defer t.unlock()
	s := t.setting(id)
	if s == nil {
		return fmt.Errorf("unknown setting %d", id)
	}
	s.Current = value
	t.notifyLocked(wire.EventAppSettingChanged)
	return nil
}

// SetVolume changes the local volume and notifies a registered peer.
func (t *Target) SetVolume(volume uint8) {
	t.mu.Lock()
	defer t.unlock()
	t.profile.Volume = volume & wire.VolumeMask
	t.notifyLocked(wire.EventVolumeChanged)
}

// Volume returns the current volume.
func (t *Target) Volume() uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.profile.Volume
}

// PlayStatus returns the current play status.
func (t *Target) PlayStatus() wire.PlayStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Registered reports whether the peer holds a registration for id.
func (t *Target) Registered(id wire.EventID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.registrations[id]
	return ok
}

// Received returns the commands seen so far.
func (t *Target) Received() []Received {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Received(nil), t.received...)
}

// Count returns how many commands with pdu were received.
func (t *Target) Count(pdu wire.PduID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, r := range t.received {
		if r.PDU == pdu {
			n++
		}
	}
	return n
}

// Close stops all further answers, including delayed ones. The transport
// is left to the caller.
func (t *Target) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.outbox = nil
}

// notifyLocked sends CHANGED for a registered event and consumes the
// registration. Caller holds mu; the send happens after unlock.
func (t *Target) notifyLocked(id wire.EventID) {
	label, ok := t.registrations[id]
	if !ok {
		return
	}
	delete(t.registrations, id)
	rsp := &wire.Response{Code: wire.CodeChanged, PDU: wire.PduRegisterNotification, Status: wire.StatusNoError, Params: t.notificationLocked(id)}
	t.outbox = append(t.outbox, outbound{label: label, rsp: rsp})
}

func (t *Target) notificationLocked(id wire.EventID) *wire.NotificationResult {
	n := &wire.NotificationResult{EventID: id}
	switch id {
	case wire.EventPlayStatusChanged:
		n.PlayStatus = t.status
	case wire.EventTrackChanged:
		n.TrackUID = t.profile.Track.UID
	case wire.EventPlayPosChanged:
		n.Position = t.profile.SongPosition
	case wire.EventAppSettingChanged:
		for _, s := range t.profile.Settings {
			n.AppSettings = append(n.AppSettings, wire.AttrValue{AttrID: wire.AppAttrID(s.ID), Value: s.Current})
		}
	case wire.EventVolumeChanged:
		n.Volume = t.profile.Volume
	}
	return n
}

func (t *Target) setting(id wire.AppAttrID) *Setting {
	for i := range t.profile.Settings {
		if wire.AppAttrID(t.profile.Settings[i].ID) == id {
			return &t.profile.Settings[i]
		}
	}
	return nil
}

func (t *Target) advertised(id wire.EventID) bool {
	for _, e := range t.events {
		if e == id {
			return true
		}
	}
	return false
}

func (t *Target) elementAttributes(ids []wire.MediaAttrID) []wire.ElementAttribute {
	tr := t.profile.Track
	values := map[wire.MediaAttrID]string{
		wire.MediaAttrTitle:       tr.Title,
		wire.MediaAttrArtist:      tr.Artist,
		wire.MediaAttrAlbum:       tr.Album,
		wire.MediaAttrTrackNumber: tr.TrackNumber,
		wire.MediaAttrTotalTracks: tr.TotalTracks,
		wire.MediaAttrGenre:       tr.Genre,
		wire.MediaAttrPlayingTime: tr.PlayingTime,
	}
	if len(ids) == 0 {
		ids = wire.AllMediaAttributes
	}
	var out []wire.ElementAttribute
	for _, id := range ids {
		if v := values[id]; v != "" {
			out = append(out, wire.ElementAttribute{ID: id, Charset: wire.CharsetUTF8, Value: v})
		}
	}
	return out
}

func (t *Target) debugLog(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, args...)
	}
}

// FormatTrackUID renders a UID the way the console prints it.
func FormatTrackUID(uid uint64) string {
	if uid == wire.InvalidTrackUID {
		return "none"
	}
	return strconv.FormatUint(uid, 10)
}
