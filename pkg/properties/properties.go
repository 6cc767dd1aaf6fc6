// Package properties looks up platform properties that tune the session,
// such as the absolute volume kill switch.
package properties

import (
	"os"
	"strconv"
	"strings"
)

// Well-known property keys.
const (
	// DisableAbsoluteVolume turns off absolute volume for every peer.
	DisableAbsoluteVolume = "persist.bluetooth.disableabsvol"
)

// DefaultEnvPrefix is prepended to environment variable names by EnvSource.
const DefaultEnvPrefix = "AVRCP_"

// Source looks up a property by key.
type Source interface {
	Get(key string) (string, bool)
}

// MapSource is a Source backed by a map.
type MapSource map[string]string

// Get returns the value stored under key.
func (m MapSource) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// EnvSource reads properties from environment variables. The key
// "persist.bluetooth.disableabsvol" maps to
// AVRCP_PERSIST_BLUETOOTH_DISABLEABSVOL.
type EnvSource struct {
	// Prefix is prepended to the variable name (default: DefaultEnvPrefix).
	Prefix string
}

// Get returns the value of the environment variable for key.
func (e EnvSource) Get(key string) (string, bool) {
	return os.LookupEnv(e.VarName(key))
}

// VarName returns the environment variable consulted for key.
func (e EnvSource) VarName(key string) string {
	prefix := e.Prefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
	return prefix + name
}

// Chain consults each source in order. The first hit wins.
type Chain []Source

// Get returns the first value found.
func (c Chain) Get(key string) (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if v, ok := s.Get(key); ok {
			return v, true
		}
	}
	return "", false
}

// Bool reads a boolean property. Missing or unparsable values return def.
func Bool(src Source, key string, def bool) bool {
	if src == nil {
		return def
	}
	v, ok := src.Get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

var (
	_ Source = MapSource(nil)
	_ Source = EnvSource{}
	_ Source = Chain(nil)
)
