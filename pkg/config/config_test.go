package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcctl/avrcp-go/pkg/properties"
	"github.com/rcctl/avrcp-go/pkg/service"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

const sample = `
session:
  status_timeout: 500ms
  interim_timeout: 1s
  play_status_interval: 250ms
  tracked_events: [PLAY_STATUS_CHANGED, track_changed]
  element_attributes: [TITLE, ARTIST]
  max_element_retries: -1
absolute_volume:
  deny_list: ["AA:BB:CC:DD:EE:FF"]
properties:
  persist.bluetooth.disableabsvol: "true"
target:
  profile: headphones.yaml
log:
  level: debug
  capture: out.rclog
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, f.Session.StatusTimeout)
	assert.Equal(t, []string{"AA:BB:CC:DD:EE:FF"}, f.AbsoluteVolume.DenyList)
	assert.Equal(t, DefaultPeer, f.Target.Peer)
	assert.Equal(t, slog.LevelDebug, f.LogLevel())
	assert.Equal(t, "out.rclog", f.Log.Capture)

	cfg, err := f.SessionConfig()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.StatusTimeout)
	assert.Equal(t, service.DefaultSessionConfig().ControlTimeout, cfg.ControlTimeout)
	assert.Equal(t, time.Second, cfg.InterimTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.PlayStatusInterval)
	assert.Equal(t, []wire.EventID{wire.EventPlayStatusChanged, wire.EventTrackChanged}, cfg.TrackedEvents)
	assert.Equal(t, []wire.MediaAttrID{wire.MediaAttrTitle, wire.MediaAttrArtist}, cfg.ElementAttributes)
	assert.Equal(t, -1, cfg.MaxElementRetries)
	assert.Equal(t, []string{"AA:BB:CC:DD:EE:FF"}, cfg.AbsoluteVolumeDenyList)
	assert.True(t, properties.Bool(cfg.Properties, properties.DisableAbsoluteVolume, false))
}

func TestParseEmpty(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)

	cfg, err := f.SessionConfig()
	require.NoError(t, err)
	def := service.DefaultSessionConfig()
	assert.Equal(t, def.StatusTimeout, cfg.StatusTimeout)
	assert.Equal(t, def.ElementAttributes, cfg.ElementAttributes)
	assert.Empty(t, cfg.TrackedEvents)
	assert.False(t, cfg.DisableAbsoluteVolume)
	assert.Equal(t, slog.LevelInfo, f.LogLevel())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		line int
	}{
		{"syntax", "session:\n\tstatus_timeout: 1s\n", 2},
		{"type", "session:\n  max_element_retries: lots\n", 2},
		{"unknown event", "session:\n  tracked_events: [NOPE]\n", 0},
		{"volume event", "session:\n  tracked_events: [VOLUME_CHANGED]\n", 0},
		{"unknown attribute", "session:\n  element_attributes: [COVER_ART]\n", 0},
		{"negative timeout", "session:\n  status_timeout: -1s\n", 0},
		{"unknown level", "log:\n  level: chatty\n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.line, le.Line)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "avrcp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "headphones.yaml"), f.Target.Profile)
}

func TestLoadErrorsCarryPath(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "missing.yaml")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("log:\n  level: [\n"), 0o600))
	_, err = Load(bad)
	require.ErrorAs(t, err, &le)
	assert.Equal(t, bad, le.File)
	assert.Contains(t, err.Error(), "bad.yaml:")
}

func TestEnvironmentOverridesProperties(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)

	t.Setenv("AVRCP_PERSIST_BLUETOOTH_DISABLEABSVOL", "false")
	assert.False(t, properties.Bool(f.PropertySource(), properties.DisableAbsoluteVolume, true))
}
