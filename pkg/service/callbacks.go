package service

import (
	"sync"

	"github.com/rcctl/avrcp-go/pkg/procedure"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// Callbacks receives session outcomes. Methods run on the session's
// notifier goroutine, one at a time, in the order they were produced.
type Callbacks interface {
	// ConnectionStateChanged reports connect and disconnect.
	ConnectionStateChanged(peer string, connected bool)

	// RemoteFeatures reports the host-facing feature set of the peer.
	RemoteFeatures(peer string, features wire.RemoteFeatures)

	// PlayStatusChanged reports a PLAY_STATUS_CHANGED notification.
	PlayStatusChanged(peer string, status wire.PlayStatus)

	// PlayPositionChanged reports a GetPlayStatus result.
	PlayPositionChanged(peer string, length, position uint32, status wire.PlayStatus)

	// TrackChanged reports element attributes of the current track.
	TrackChanged(peer string, attrs []wire.ElementAttribute)

	// PlayerAppSettings reports the discovered setting attributes.
	PlayerAppSettings(peer string, settings procedure.PlayerSettings)

	// PlayerAppSettingsChanged reports current setting values.
	PlayerAppSettingsChanged(peer string, values []wire.AttrValue)

	// SetPlayerAppSettingResult reports the outcome of
	// ChangePlayerAppSetting. err is a *StatusError on failure.
	SetPlayerAppSettingResult(peer string, err error)

	// PassThroughResponse reports the outcome of SendPassThrough.
	PassThroughResponse(peer string, op wire.PassThroughOp, state wire.KeyState, err error)

	// GroupNavigationResponse reports the outcome of SendGroupNavigation.
	GroupNavigationResponse(peer string, op wire.GroupNavOp, state wire.KeyState, err error)

	// VolumeChanged reports the peer's absolute volume.
	VolumeChanged(peer string, volume uint8)

	// SetAbsoluteVolumeCommand reports an inbound SET_ABSOLUTE_VOLUME.
	// Answer it with SetVolumeResponse and the same label.
	SetAbsoluteVolumeCommand(peer string, volume uint8, label uint8)

	// VolumeNotificationRegistered reports an inbound
	// REGISTER_NOTIFICATION(VOLUME_CHANGED). Answer it with
	// VolumeChangeNotificationResponse and the same label.
	VolumeNotificationRegistered(peer string, label uint8)
}

// NopCallbacks ignores every outcome. Embed it to implement a subset.
type NopCallbacks struct{}

func (NopCallbacks) ConnectionStateChanged(string, bool)                                   {}
func (NopCallbacks) RemoteFeatures(string, wire.RemoteFeatures)                            {}
func (NopCallbacks) PlayStatusChanged(string, wire.PlayStatus)                             {}
func (NopCallbacks) PlayPositionChanged(string, uint32, uint32, wire.PlayStatus)           {}
func (NopCallbacks) TrackChanged(string, []wire.ElementAttribute)                          {}
func (NopCallbacks) PlayerAppSettings(string, procedure.PlayerSettings)                    {}
func (NopCallbacks) PlayerAppSettingsChanged(string, []wire.AttrValue)                     {}
func (NopCallbacks) SetPlayerAppSettingResult(string, error)                               {}
func (NopCallbacks) PassThroughResponse(string, wire.PassThroughOp, wire.KeyState, error)  {}
func (NopCallbacks) GroupNavigationResponse(string, wire.GroupNavOp, wire.KeyState, error) {}
func (NopCallbacks) VolumeChanged(string, uint8)                                           {}
func (NopCallbacks) SetAbsoluteVolumeCommand(string, uint8, uint8)                         {}
func (NopCallbacks) VolumeNotificationRegistered(string, uint8)                            {}

var _ Callbacks = NopCallbacks{}

// notifier delivers callbacks on its own goroutine through an unbounded
// FIFO, so the executor never waits on the host.
type notifier struct {
	mu      sync.Mutex
	queue   []func()
	running bool
	wake    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

func newNotifier() *notifier {
	return &notifier{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (n *notifier) start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return
	}
	n.running = true
	n.wg.Add(1)
	go n.loop()
}

// stop delivers what is already queued, then exits.
func (n *notifier) stop() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return
	}
	n.running = false
	close(n.done)
	n.mu.Unlock()
	n.wg.Wait()
}

func (n *notifier) post(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return
	}
	n.queue = append(n.queue, fn)
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) loop() {
	defer n.wg.Done()
	for {
		select {
		case <-n.wake:
			n.drain()
		case <-n.done:
			n.drain()
			return
		}
	}
}

func (n *notifier) drain() {
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			n.mu.Unlock()
			return
		}
		fn := n.queue[0]
		n.queue[0] = nil
		n.queue = n.queue[1:]
		n.mu.Unlock()
		fn()
	}
}
