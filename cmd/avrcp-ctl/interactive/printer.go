package interactive

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rcctl/avrcp-go/pkg/procedure"
	"github.com/rcctl/avrcp-go/pkg/service"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// VolumeResponder answers inbound absolute volume commands from the peer.
type VolumeResponder interface {
	SetVolumeResponse(volume uint8, label uint8) error
	VolumeChangeNotificationResponse(code wire.Code, volume uint8, label uint8) error
}

// Printer implements service.Callbacks by printing each event on one line.
// Inbound volume commands are answered from the volume tracked here.
type Printer struct {
	mu        sync.Mutex
	w         io.Writer
	responder VolumeResponder
	volume    uint8
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, volume: 64}
}

// SetOutput redirects output, e.g. to the readline stdout.
func (p *Printer) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.w = w
}

// SetResponder enables answering inbound volume commands.
func (p *Printer) SetResponder(r VolumeResponder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responder = r
}

func (p *Printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[EVENT] "+format+"\n", args...)
}

func (p *Printer) ConnectionStateChanged(peer string, connected bool) {
	if connected {
		p.printf("Connected: %s", peer)
	} else {
		p.printf("Disconnected: %s", peer)
	}
}

func (p *Printer) RemoteFeatures(peer string, features wire.RemoteFeatures) {
	var names []string
	if features&wire.RemoteFeatureMetadata != 0 {
		names = append(names, "metadata")
	}
	if features&wire.RemoteFeatureAbsoluteVolume != 0 {
		names = append(names, "absolute-volume")
	}
	if features&wire.RemoteFeatureBrowse != 0 {
		names = append(names, "browse")
	}
	if len(names) == 0 {
		names = append(names, "none")
	}
	p.printf("Remote features: %s", strings.Join(names, ", "))
}

func (p *Printer) PlayStatusChanged(peer string, status wire.PlayStatus) {
	p.printf("Play status: %s", status)
}

func (p *Printer) PlayPositionChanged(peer string, songLen, songPos uint32, status wire.PlayStatus) {
	p.printf("Position: %s / %s (%s)", formatMillis(songPos), formatMillis(songLen), status)
}

func (p *Printer) TrackChanged(peer string, attrs []wire.ElementAttribute) {
	var b strings.Builder
	for i, a := range attrs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%q", strings.ToLower(a.ID.String()), a.Value)
	}
	p.printf("Track: %s", b.String())
}

func (p *Printer) PlayerAppSettings(peer string, settings procedure.PlayerSettings) {
	p.printf("Player settings: %s", FormatSettings(settings))
}

func (p *Printer) PlayerAppSettingsChanged(peer string, values []wire.AttrValue) {
	p.printf("Player settings changed: %s", formatValues(values))
}

func (p *Printer) SetPlayerAppSettingResult(peer string, err error) {
	if err != nil {
		p.printf("Set player setting failed: %v", err)
		return
	}
	p.printf("Set player setting accepted")
}

func (p *Printer) PassThroughResponse(peer string, op wire.PassThroughOp, state wire.KeyState, err error) {
	if err != nil {
		p.printf("%s %s failed: %v", op, state, err)
		return
	}
	p.printf("%s %s accepted", op, state)
}

func (p *Printer) GroupNavigationResponse(peer string, op wire.GroupNavOp, state wire.KeyState, err error) {
	if err != nil {
		p.printf("%s %s failed: %v", op, state, err)
		return
	}
	p.printf("%s %s accepted", op, state)
}

func (p *Printer) VolumeChanged(peer string, volume uint8) {
	p.printf("Volume: %d", volume)
}

func (p *Printer) SetAbsoluteVolumeCommand(peer string, volume uint8, label uint8) {
	p.mu.Lock()
	p.volume = volume & wire.VolumeMask
	r, v := p.responder, p.volume
	p.mu.Unlock()

	p.printf("Peer set volume to %d (label %d)", volume, label)
	if r != nil {
		if err := r.SetVolumeResponse(v, label); err != nil {
			p.printf("Volume response failed: %v", err)
		}
	}
}

func (p *Printer) VolumeNotificationRegistered(peer string, label uint8) {
	p.mu.Lock()
	r, v := p.responder, p.volume
	p.mu.Unlock()

	p.printf("Peer registered for volume changes (label %d)", label)
	if r != nil {
		if err := r.VolumeChangeNotificationResponse(wire.CodeInterim, v, label); err != nil {
			p.printf("Volume interim failed: %v", err)
		}
	}
}

// FormatSettings renders a settings walk result as "attr=[values]" pairs.
func FormatSettings(settings procedure.PlayerSettings) string {
	var parts []string
	for _, s := range settings.Standard {
		parts = append(parts, fmt.Sprintf("%s=%v", strings.ToLower(s.AttrID.String()), s.Values))
	}
	for _, s := range settings.Extended {
		name := s.Text
		if name == "" {
			name = fmt.Sprintf("0x%02x", uint8(s.AttrID))
		}
		vals := make([]string, 0, len(s.Values))
		for _, v := range s.Values {
			if text, ok := s.ValueText[v]; ok {
				vals = append(vals, text)
			} else {
				vals = append(vals, fmt.Sprint(v))
			}
		}
		parts = append(parts, fmt.Sprintf("%s=[%s]", name, strings.Join(vals, " ")))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func formatValues(values []wire.AttrValue) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		name := strings.ToLower(v.AttrID.String())
		if v.AttrID.IsExtended() {
			name = fmt.Sprintf("0x%02x", uint8(v.AttrID))
		}
		parts = append(parts, fmt.Sprintf("%s=%d", name, v.Value))
	}
	return strings.Join(parts, ", ")
}

// formatMillis renders a millisecond count as m:ss.
func formatMillis(ms uint32) string {
	if ms == 0xFFFFFFFF {
		return "--:--"
	}
	s := ms / 1000
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

var _ service.Callbacks = (*Printer)(nil)
