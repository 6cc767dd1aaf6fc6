package peersim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcctl/avrcp-go/pkg/wire"
)

const sampleProfile = `
name: car-kit
features: [target, VENDOR, METADATA]
company_ids: [6488]
events: [PLAY_STATUS_CHANGED, TRACK_CHANGED]
play_status: PLAYING
track:
  uid: 7
  title: Road
settings:
  - id: 2
    values: [{id: 1}, {id: 2}]
    current: 2
volume: 20
fragment_limit: 16
faults:
  - pdu: REGISTER_NOTIFICATION
    event: TRACK_CHANGED
    action: drop
  - pdu: GET_PLAY_STATUS
    action: delay
    delay: 10ms
    count: 1
`

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile([]byte(sampleProfile))
	require.NoError(t, err)

	assert.Equal(t, "car-kit", p.Name)
	assert.Equal(t, uint64(7), p.Track.UID)
	assert.Equal(t, 16, p.FragmentLimit)
	require.Len(t, p.Faults, 2)
	assert.Equal(t, FaultDelay, p.Faults[1].Action)

	features, err := p.FeatureBits()
	require.NoError(t, err)
	assert.Equal(t, wire.FeatureTarget|wire.FeatureVendor|wire.FeatureMetadata, features)

	events, err := p.EventIDs()
	require.NoError(t, err)
	assert.Equal(t, []wire.EventID{wire.EventPlayStatusChanged, wire.EventTrackChanged}, events)
}

func TestParseProfileErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "features: [unclosed"},
		{"unknown feature", "features: [JETPACK]"},
		{"unknown event", "events: [NOPE]"},
		{"unknown play status", "play_status: DANCING"},
		{"volume range", "volume: 200"},
		{"fault pdu", "faults: [{pdu: NOPE, action: drop}]"},
		{"fault action", "faults: [{pdu: GET_PLAY_STATUS, action: explode}]"},
		{"fault delay", "faults: [{pdu: GET_PLAY_STATUS, action: delay, delay: soon}]"},
		{"fault status", "faults: [{pdu: GET_PLAY_STATUS, action: reject, status: MAYBE}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfile([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestProfileClone(t *testing.T) {
	p := DefaultProfile()
	c, err := p.Clone()
	require.NoError(t, err)
	assert.Equal(t, p, c)

	c.Settings[0].Current = 3
	c.Track.Title = "Other"
	assert.Equal(t, uint8(1), p.Settings[0].Current)
	assert.Equal(t, "Intro", p.Track.Title)
}

func TestDefaultProfileValid(t *testing.T) {
	require.NoError(t, DefaultProfile().Validate())
}
