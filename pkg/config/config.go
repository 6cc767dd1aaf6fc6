package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rcctl/avrcp-go/pkg/properties"
	"github.com/rcctl/avrcp-go/pkg/service"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// File is the engine configuration.
type File struct {
	Session        Session           `yaml:"session"`
	AbsoluteVolume AbsoluteVolume    `yaml:"absolute_volume"`
	Properties     map[string]string `yaml:"properties"`
	Target         Target            `yaml:"target"`
	Log            Log               `yaml:"log"`
}

// Session holds the session tunables.
type Session struct {
	StatusTimeout      time.Duration `yaml:"status_timeout"`
	ControlTimeout     time.Duration `yaml:"control_timeout"`
	InterimTimeout     time.Duration `yaml:"interim_timeout"`
	PlayStatusInterval time.Duration `yaml:"play_status_interval"`
	ElementAttributes  []string      `yaml:"element_attributes"`
	TrackedEvents      []string      `yaml:"tracked_events"`
	MaxElementRetries  int           `yaml:"max_element_retries"`
	TaskQueueSize      int           `yaml:"task_queue_size"`
}

// AbsoluteVolume is the absolute volume policy.
type AbsoluteVolume struct {
	// Disabled ignores absolute volume support on every peer.
	Disabled bool `yaml:"disabled"`

	// DenyList lists peer addresses whose absolute volume support is
	// ignored.
	DenyList []string `yaml:"deny_list"`
}

// Target describes the peer the console drives.
type Target struct {
	// Profile is a simulated target profile. Relative paths are resolved
	// against the configuration file's directory.
	Profile string `yaml:"profile"`

	// Address is host:port of a served simulated target.
	Address string `yaml:"address"`

	// Peer is the Bluetooth address reported for the target.
	Peer string `yaml:"peer"`
}

// Log configures logging.
type Log struct {
	// Level is debug, info, warn or error (default: info).
	Level string `yaml:"level"`

	// Capture is the path of a protocol capture file (optional).
	Capture string `yaml:"capture"`
}

// DefaultPeer is the peer address used when none is configured.
const DefaultPeer = "00:00:00:00:00:01"

// Default returns an empty configuration.
func Default() *File {
	return &File{Target: Target{Peer: DefaultPeer}}
}

// LoadError provides details about a configuration loading error.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Line is the line number where the error occurred (0 if unknown).
	Line int

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	switch {
	case e.File != "" && e.Line > 0:
		return e.File + ":" + strconv.Itoa(e.Line) + ": " + msg
	case e.File != "":
		return e.File + ": " + msg
	default:
		return msg
	}
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Parse parses a configuration from YAML bytes.
func Parse(data []byte) (*File, error) {
	f := Default()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, &LoadError{
			Line:    yamlLine(err),
			Message: "failed to parse YAML",
			Cause:   err,
		}
	}
	if f.Target.Peer == "" {
		f.Target.Peer = DefaultPeer
	}
	if err := f.Validate(); err != nil {
		return nil, &LoadError{Message: "invalid configuration", Cause: err}
	}
	return f, nil
}

// Load reads a configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{
			File:    path,
			Message: "failed to read file",
			Cause:   err,
		}
	}

	f, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}

	if f.Target.Profile != "" && !filepath.IsAbs(f.Target.Profile) {
		f.Target.Profile = filepath.Join(filepath.Dir(path), f.Target.Profile)
	}
	return f, nil
}

// Validate checks names and ranges.
func (f *File) Validate() error {
	var errs []error
	for name, d := range map[string]time.Duration{
		"status_timeout":       f.Session.StatusTimeout,
		"control_timeout":      f.Session.ControlTimeout,
		"interim_timeout":      f.Session.InterimTimeout,
		"play_status_interval": f.Session.PlayStatusInterval,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("session.%s: negative duration %s", name, d))
		}
	}
	if f.Session.TaskQueueSize < 0 {
		errs = append(errs, errors.New("session.task_queue_size: must not be negative"))
	}
	if _, err := f.trackedEvents(); err != nil {
		errs = append(errs, err)
	}
	if _, err := f.elementAttributes(); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseLevel(f.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SessionConfig builds a session configuration. Zero fields keep the
// defaults.
func (f *File) SessionConfig() (service.SessionConfig, error) {
	cfg := service.DefaultSessionConfig()

	s := f.Session
	if s.StatusTimeout > 0 {
		cfg.StatusTimeout = s.StatusTimeout
	}
	if s.ControlTimeout > 0 {
		cfg.ControlTimeout = s.ControlTimeout
	}
	if s.InterimTimeout > 0 {
		cfg.InterimTimeout = s.InterimTimeout
	}
	if s.PlayStatusInterval > 0 {
		cfg.PlayStatusInterval = s.PlayStatusInterval
	}
	if s.MaxElementRetries != 0 {
		cfg.MaxElementRetries = s.MaxElementRetries
	}
	if s.TaskQueueSize > 0 {
		cfg.TaskQueueSize = s.TaskQueueSize
	}

	events, err := f.trackedEvents()
	if err != nil {
		return cfg, err
	}
	if len(events) > 0 {
		cfg.TrackedEvents = events
	}
	attrs, err := f.elementAttributes()
	if err != nil {
		return cfg, err
	}
	if len(attrs) > 0 {
		cfg.ElementAttributes = attrs
	}

	cfg.DisableAbsoluteVolume = f.AbsoluteVolume.Disabled
	cfg.AbsoluteVolumeDenyList = f.AbsoluteVolume.DenyList
	cfg.Properties = f.PropertySource()
	return cfg, nil
}

// PropertySource returns the environment layered over the file's
// properties.
func (f *File) PropertySource() properties.Source {
	return properties.Chain{
		properties.EnvSource{Prefix: properties.DefaultEnvPrefix},
		properties.MapSource(f.Properties),
	}
}

// LogLevel returns the configured slog level.
func (f *File) LogLevel() slog.Level {
	level, _ := parseLevel(f.Log.Level)
	return level
}

func (f *File) trackedEvents() ([]wire.EventID, error) {
	out := make([]wire.EventID, 0, len(f.Session.TrackedEvents))
	for _, name := range f.Session.TrackedEvents {
		id, ok := wire.ParseEventID(name)
		if !ok {
			return nil, fmt.Errorf("session.tracked_events: unknown event %q", name)
		}
		if id == wire.EventVolumeChanged {
			return nil, fmt.Errorf("session.tracked_events: %s is registered separately", id)
		}
		out = append(out, id)
	}
	return out, nil
}

func (f *File) elementAttributes() ([]wire.MediaAttrID, error) {
	out := make([]wire.MediaAttrID, 0, len(f.Session.ElementAttributes))
	for _, name := range f.Session.ElementAttributes {
		id, ok := wire.ParseMediaAttrID(name)
		if !ok {
			return nil, fmt.Errorf("session.element_attributes: unknown attribute %q", name)
		}
		out = append(out, id)
	}
	return out, nil
}

func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level: unknown level %q", name)
	}
}

// yamlLine extracts the line number from a yaml.v3 error, or 0.
func yamlLine(err error) int {
	msg := err.Error()
	if te, ok := err.(*yaml.TypeError); ok && len(te.Errors) > 0 {
		msg = te.Errors[0]
	}
	i := strings.Index(msg, "line ")
	if i < 0 {
		return 0
	}
	var line int
	if _, err := fmt.Sscanf(msg[i:], "line %d", &line); err != nil {
		return 0
	}
	return line
}
