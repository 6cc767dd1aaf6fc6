package peersim

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/rcctl/avrcp-go/pkg/wire"
)

// Profile describes a simulated target.
type Profile struct {
	Name       string   `yaml:"name" cbor:"1,keyasint"`
	Features   []string `yaml:"features" cbor:"2,keyasint,omitempty"`
	CompanyIDs []uint32 `yaml:"company_ids" cbor:"3,keyasint,omitempty"`
	Events     []string `yaml:"events" cbor:"4,keyasint,omitempty"`

	PlayStatus   string `yaml:"play_status" cbor:"5,keyasint,omitempty"`
	SongLength   uint32 `yaml:"song_length_ms" cbor:"6,keyasint,omitempty"`
	SongPosition uint32 `yaml:"song_position_ms" cbor:"7,keyasint,omitempty"`

	Track    Track     `yaml:"track" cbor:"8,keyasint"`
	Settings []Setting `yaml:"settings" cbor:"9,keyasint,omitempty"`
	Volume   uint8     `yaml:"volume" cbor:"10,keyasint"`

	// FragmentLimit splits responses with more parameter bytes into
	// START/CONTINUE/END packets (0: wire.MaxParamsPerPacket).
	FragmentLimit int `yaml:"fragment_limit" cbor:"11,keyasint,omitempty"`

	Faults []Fault `yaml:"faults" cbor:"12,keyasint,omitempty"`
}

// Track is the currently playing element.
type Track struct {
	UID         uint64 `yaml:"uid" cbor:"1,keyasint"`
	Title       string `yaml:"title" cbor:"2,keyasint,omitempty"`
	Artist      string `yaml:"artist" cbor:"3,keyasint,omitempty"`
	Album       string `yaml:"album" cbor:"4,keyasint,omitempty"`
	TrackNumber string `yaml:"track_number" cbor:"5,keyasint,omitempty"`
	TotalTracks string `yaml:"total_tracks" cbor:"6,keyasint,omitempty"`
	Genre       string `yaml:"genre" cbor:"7,keyasint,omitempty"`
	PlayingTime string `yaml:"playing_time_ms" cbor:"8,keyasint,omitempty"`
}

// Setting is one player application setting attribute.
type Setting struct {
	ID      uint8          `yaml:"id" cbor:"1,keyasint"`
	Text    string         `yaml:"text" cbor:"2,keyasint,omitempty"`
	Values  []SettingValue `yaml:"values" cbor:"3,keyasint,omitempty"`
	Current uint8          `yaml:"current" cbor:"4,keyasint"`
}

// SettingValue is one allowed value of a setting.
type SettingValue struct {
	ID   uint8  `yaml:"id" cbor:"1,keyasint"`
	Text string `yaml:"text" cbor:"2,keyasint,omitempty"`
}

// FaultAction is what a fault does to a matching command.
type FaultAction string

const (
	FaultDrop           FaultAction = "drop"
	FaultReject         FaultAction = "reject"
	FaultNotImplemented FaultAction = "not_implemented"
	FaultDelay          FaultAction = "delay"
)

// Fault alters the answer to matching commands.
type Fault struct {
	PDU    string      `yaml:"pdu" cbor:"1,keyasint"`
	Event  string      `yaml:"event,omitempty" cbor:"2,keyasint,omitempty"`
	Action FaultAction `yaml:"action" cbor:"3,keyasint"`
	Status string      `yaml:"status,omitempty" cbor:"4,keyasint,omitempty"`
	Delay  string      `yaml:"delay,omitempty" cbor:"5,keyasint,omitempty"`
	Count  int         `yaml:"count,omitempty" cbor:"6,keyasint,omitempty"`
}

// DefaultProfile returns a target that supports the full discovery
// procedure, including one target-defined setting.
func DefaultProfile() *Profile {
	return &Profile{
		Name:       "default",
		Features:   []string{"TARGET", "VENDOR", "METADATA", "APP_SETTING", "ADV_CTRL"},
		CompanyIDs: []uint32{wire.CompanyIDBluetoothSIG},
		Events: []string{
			wire.EventPlayStatusChanged.String(),
			wire.EventTrackChanged.String(),
			wire.EventAppSettingChanged.String(),
			wire.EventVolumeChanged.String(),
		},
		PlayStatus:   wire.PlayStatusPaused.String(),
		SongLength:   240000,
		SongPosition: 0,
		Track: Track{
			UID:         1,
			Title:       "Intro",
			Artist:      "The Simulators",
			Album:       "Loopback",
			TrackNumber: "1",
			TotalTracks: "10",
			Genre:       "Test",
			PlayingTime: "240000",
		},
		Settings: []Setting{
			{ID: uint8(wire.AppAttrRepeat), Values: []SettingValue{{ID: 1}, {ID: 2}, {ID: 3}}, Current: 1},
			{ID: uint8(wire.AppAttrShuffle), Values: []SettingValue{{ID: 1}, {ID: 2}}, Current: 1},
			{ID: 0x81, Text: "Crossfade", Values: []SettingValue{{ID: 1, Text: "Off"}, {ID: 2, Text: "On"}}, Current: 1},
		},
		Volume: 64,
	}
}

// ParseProfile parses a YAML profile.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadProfile reads a YAML profile from path.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	p, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Validate checks every name in the profile.
func (p *Profile) Validate() error {
	if _, err := p.FeatureBits(); err != nil {
		return err
	}
	if _, err := p.EventIDs(); err != nil {
		return err
	}
	if p.PlayStatus != "" {
		if _, ok := parsePlayStatus(p.PlayStatus); !ok {
			return fmt.Errorf("unknown play status %q", p.PlayStatus)
		}
	}
	if p.Volume > wire.VolumeMask {
		return fmt.Errorf("volume %d out of range", p.Volume)
	}
	for i, f := range p.Faults {
		if _, err := f.compile(); err != nil {
			return fmt.Errorf("fault %d: %w", i, err)
		}
	}
	return nil
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() (*Profile, error) {
	data, err := cbor.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("clone profile: %w", err)
	}
	var out Profile
	if err := cbor.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("clone profile: %w", err)
	}
	return &out, nil
}

// FeatureBits returns the SDP feature bitmap.
func (p *Profile) FeatureBits() (wire.Features, error) {
	var f wire.Features
	for _, name := range p.Features {
		bit, ok := featureNames[strings.ToUpper(name)]
		if !ok {
			return 0, fmt.Errorf("unknown feature %q", name)
		}
		f |= bit
	}
	return f, nil
}

// EventIDs returns the advertised notification events.
func (p *Profile) EventIDs() ([]wire.EventID, error) {
	out := make([]wire.EventID, 0, len(p.Events))
	for _, name := range p.Events {
		id, ok := wire.ParseEventID(name)
		if !ok {
			return nil, fmt.Errorf("unknown event %q", name)
		}
		out = append(out, id)
	}
	return out, nil
}

var featureNames = map[string]wire.Features{
	"TARGET":      wire.FeatureTarget,
	"CONTROLLER":  wire.FeatureController,
	"VENDOR":      wire.FeatureVendor,
	"BROWSE":      wire.FeatureBrowse,
	"METADATA":    wire.FeatureMetadata,
	"ADV_CTRL":    wire.FeatureAdvancedControl,
	"APP_SETTING": wire.FeatureAppSetting,
}

func parsePlayStatus(name string) (wire.PlayStatus, bool) {
	for _, s := range []wire.PlayStatus{
		wire.PlayStatusStopped,
		wire.PlayStatusPlaying,
		wire.PlayStatusPaused,
		wire.PlayStatusFwdSeek,
		wire.PlayStatusRevSeek,
		wire.PlayStatusError,
	} {
		if strings.EqualFold(s.String(), name) {
			return s, true
		}
	}
	return 0, false
}

func parsePduID(name string) (wire.PduID, bool) {
	for _, p := range []wire.PduID{
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
	} {
		if strings.EqualFold(p.String(), name) {
			return p, true
		}
	}
	return 0, false
}

func parseStatus(name string) (wire.Status, bool) {
	for s := wire.StatusInvalidCommand; s <= wire.StatusAddressedPlayerChanged; s++ {
		if s.String() != "UNKNOWN" && strings.EqualFold(s.String(), name) {
			return s, true
		}
	}
	return 0, false
}

// compiledFault is a Fault with its names resolved.
type compiledFault struct {
	pdu      wire.PduID
	event    wire.EventID
	hasEvent bool
	action   FaultAction
	status   wire.Status
	delay    time.Duration
	left     int
}

func (f Fault) compile() (*compiledFault, error) {
	pdu, ok := parsePduID(f.PDU)
	if !ok {
		return nil, fmt.Errorf("unknown pdu %q", f.PDU)
	}
	cf := &compiledFault{pdu: pdu, action: f.Action, status: wire.StatusInternalError, left: f.Count}
	if f.Event != "" {
		id, ok := wire.ParseEventID(f.Event)
		if !ok {
			return nil, fmt.Errorf("unknown event %q", f.Event)
		}
		cf.event, cf.hasEvent = id, true
	}
	if f.Status != "" {
		st, ok := parseStatus(f.Status)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", f.Status)
		}
		cf.status = st
	}
	switch f.Action {
	case FaultDrop, FaultReject, FaultNotImplemented:
	case FaultDelay:
		d, err := time.ParseDuration(f.Delay)
		if err != nil {
			return nil, fmt.Errorf("delay: %w", err)
		}
		cf.delay = d
	default:
		return nil, fmt.Errorf("unknown action %q", f.Action)
	}
	return cf, nil
}
