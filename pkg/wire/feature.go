package wire

import "strings"

// Features is the SDP feature bitmap of a connected peer.
type Features uint16

const (
	// FeatureTarget means the peer is an AVRCP target.
	FeatureTarget Features = 0x0001

	// FeatureController means the peer is an AVRCP controller.
	FeatureController Features = 0x0002

	// FeatureVendor means the peer accepts vendor-dependent commands.
	FeatureVendor Features = 0x0008

	// FeatureBrowse means the peer supports the browsing channel.
	FeatureBrowse Features = 0x0020

	// FeatureMetadata means the peer supports metadata PDUs.
	FeatureMetadata Features = 0x0040

	// FeatureAdvancedControl means the peer supports absolute volume.
	FeatureAdvancedControl Features = 0x0200

	// FeatureAppSetting means the peer exposes player application settings.
	FeatureAppSetting Features = 0x2000
)

// Has reports whether all bits in f2 are set.
func (f Features) Has(f2 Features) bool {
	return f&f2 == f2
}

// String returns a "|" separated list of set feature names.
func (f Features) String() string {
	names := []struct {
		bit  Features
		name string
	}{
		{FeatureTarget, "TARGET"},
		{FeatureController, "CONTROLLER"},
		{FeatureVendor, "VENDOR"},
		{FeatureBrowse, "BROWSE"},
		{FeatureMetadata, "METADATA"},
		{FeatureAdvancedControl, "ADV_CTRL"},
		{FeatureAppSetting, "APP_SETTING"},
	}
	var parts []string
	for _, n := range names {
		if f&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// RemoteFeatures is the reduced feature set reported to the host.
type RemoteFeatures uint8

const (
	RemoteFeatureNone           RemoteFeatures = 0x00
	RemoteFeatureMetadata       RemoteFeatures = 0x01
	RemoteFeatureAbsoluteVolume RemoteFeatures = 0x02
	RemoteFeatureBrowse         RemoteFeatures = 0x04
)

// RemoteFeaturesOf derives the host-facing feature set from a peer bitmap.
func RemoteFeaturesOf(f Features) RemoteFeatures {
	rf := RemoteFeatureNone
	if f.Has(FeatureBrowse) {
		rf |= RemoteFeatureBrowse
	}
	if f.Has(FeatureAdvancedControl | FeatureTarget) {
		rf |= RemoteFeatureAbsoluteVolume
	}
	if f.Has(FeatureMetadata) {
		rf |= RemoteFeatureMetadata
	}
	return rf
}
