package notification

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rcctl/avrcp-go/pkg/transaction"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// Registry errors.
var (
	ErrUnknownEvent = errors.New("event not tracked")
)

// State is the registration state of one event.
type State uint8

const (
	// StateNotRegistered - no registration outstanding.
	StateNotRegistered State = iota

	// StateRegistered - REGISTER_NOTIFICATION sent, waiting for INTERIM.
	StateRegistered

	// StateInterim - INTERIM received, waiting for CHANGED.
	StateInterim
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotRegistered:
		return "NOT_REGISTERED"
	case StateRegistered:
		return "REGISTERED"
	case StateInterim:
		return "INTERIM"
	default:
		return "UNKNOWN"
	}
}

// Event is one tracked notification event.
type Event struct {
	ID    wire.EventID
	Label uint8
	State State
}

// Registrar sends REGISTER_NOTIFICATION for an event and returns the
// transaction label used.
type Registrar interface {
	Register(id wire.EventID) (uint8, error)
}

// RegistrarFunc adapts a function to Registrar.
type RegistrarFunc func(id wire.EventID) (uint8, error)

// Register calls f(id).
func (f RegistrarFunc) Register(id wire.EventID) (uint8, error) {
	return f(id)
}

// Config configures a Registry.
type Config struct {
	// Tracked lists the events the registry keeps from a capabilities
	// response. Other advertised events are ignored.
	Tracked []wire.EventID
}

// DefaultConfig returns the default event set.
func DefaultConfig() Config {
	return Config{
		Tracked: []wire.EventID{
			wire.EventPlayStatusChanged,
			wire.EventTrackChanged,
			wire.EventAppSettingChanged,
		},
	}
}

// Registry tracks notification registrations for one connection.
type Registry struct {
	mu sync.Mutex

	config    Config
	registrar Registrar

	// Supported events in target order, plus an index by ID.
	events []*Event
	index  map[wire.EventID]*Event

	loaded    bool
	completed bool

	onComplete func()
}

// NewRegistry creates a registry with the default configuration.
func NewRegistry(registrar Registrar) *Registry {
	return NewRegistryWithConfig(registrar, DefaultConfig())
}

// NewRegistryWithConfig creates a registry with a custom configuration.
func NewRegistryWithConfig(registrar Registrar, config Config) *Registry {
	if len(config.Tracked) == 0 {
		config = DefaultConfig()
	}
	return &Registry{
		config:    config,
		registrar: registrar,
		index:     make(map[wire.EventID]*Event),
	}
}

// OnComplete sets the callback invoked once when the registration phase
// finishes.
func (r *Registry) OnComplete(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onComplete = fn
}

// Load replaces the supported event list with the tracked subset of ids and
// starts the registration phase.
func (r *Registry) Load(ids []wire.EventID) error {
	r.mu.Lock()
	r.events = nil
	r.index = make(map[wire.EventID]*Event)
	r.completed = false
	r.loaded = true
	for _, id := range ids {
		if !slices.Contains(r.config.Tracked, id) {
			continue
		}
		if _, dup := r.index[id]; dup {
			continue
		}
		e := &Event{ID: id, Label: transaction.NoLabel, State: StateNotRegistered}
		r.events = append(r.events, e)
		r.index[id] = e
	}
	r.mu.Unlock()

	return r.Advance()
}

// Advance registers the next unregistered event if no registration is
// awaiting its INTERIM. When nothing is left it signals completion.
func (r *Registry) Advance() error {
	var errs []error
	for {
		r.mu.Lock()
		if !r.loaded {
			r.mu.Unlock()
			return errors.Join(errs...)
		}
		var next *Event
		waiting := false
		for _, e := range r.events {
			if e.State == StateRegistered {
				waiting = true
				break
			}
			if next == nil && e.State == StateNotRegistered {
				next = e
			}
		}
		if waiting {
			r.mu.Unlock()
			return errors.Join(errs...)
		}
		if next == nil {
			fire := !r.completed
			r.completed = true
			cb := r.onComplete
			r.mu.Unlock()
			if fire && cb != nil {
				cb()
			}
			return errors.Join(errs...)
		}
		next.State = StateRegistered
		id := next.ID
		r.mu.Unlock()

		label, err := r.registrar.Register(id)

		r.mu.Lock()
		if err != nil {
			// Unregistrable events are dropped so the phase can finish.
			r.removeLocked(id)
			errs = append(errs, fmt.Errorf("register %s: %w", id, err))
			r.mu.Unlock()
			continue
		}
		if e, ok := r.index[id]; ok {
			e.Label = label
		}
		r.mu.Unlock()
		return errors.Join(errs...)
	}
}

// HandleInterim records the INTERIM response for an event and moves on to
// the next registration.
func (r *Registry) HandleInterim(label uint8, id wire.EventID) error {
	r.mu.Lock()
	e, ok := r.index[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownEvent, id)
	}
	e.State = StateInterim
	e.Label = label
	r.mu.Unlock()

	return r.Advance()
}

// HandleChanged resets an event and registers it again right away.
func (r *Registry) HandleChanged(id wire.EventID) error {
	r.mu.Lock()
	e, ok := r.index[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownEvent, id)
	}
	e.State = StateRegistered
	r.mu.Unlock()

	label, err := r.registrar.Register(id)

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok = r.index[id]
	if !ok {
		return nil
	}
	if err != nil {
		e.State = StateNotRegistered
		return fmt.Errorf("re-register %s: %w", id, err)
	}
	e.Label = label
	return nil
}

// HandleTimeout drops the first event still waiting for INTERIM on label and
// continues the registration phase. It returns the dropped event ID.
func (r *Registry) HandleTimeout(label uint8) (wire.EventID, bool, error) {
	return r.drop(label)
}

// HandleRejected drops event id for the rest of the connection. A target
// may reject a registration it already answered with INTERIM, so the event
// is removed whatever its state.
func (r *Registry) HandleRejected(id wire.EventID) (bool, error) {
	r.mu.Lock()
	_, found := r.index[id]
	if found {
		r.removeLocked(id)
	}
	r.mu.Unlock()

	if !found {
		return false, nil
	}
	return true, r.Advance()
}

func (r *Registry) drop(label uint8) (wire.EventID, bool, error) {
	r.mu.Lock()
	var id wire.EventID
	found := false
	for _, e := range r.events {
		if e.Label == label && e.State == StateRegistered {
			id = e.ID
			found = true
			break
		}
	}
	if found {
		r.removeLocked(id)
	}
	r.mu.Unlock()

	if !found {
		return 0, false, nil
	}
	return id, true, r.Advance()
}

// Lookup returns a copy of the tracked event.
func (r *Registry) Lookup(id wire.EventID) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.index[id]
	if !ok {
		return Event{}, false
	}
	return *e, true
}

// Events returns copies of the tracked events in registration order.
func (r *Registry) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, *e)
	}
	return out
}

// Completed reports whether the registration phase has finished.
func (r *Registry) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// Reset forgets every event. Used on disconnect.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.index = make(map[wire.EventID]*Event)
	r.loaded = false
	r.completed = false
}

func (r *Registry) removeLocked(id wire.EventID) {
	delete(r.index, id)
	for i, e := range r.events {
		if e.ID == id {
			r.events = append(r.events[:i], r.events[i+1:]...)
			return
		}
	}
}
