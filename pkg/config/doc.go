// Package config loads the engine configuration from YAML.
//
// A configuration file sets session timeouts, the notification and media
// attribute sets, absolute volume policy and platform properties:
//
//	session:
//	  status_timeout: 2s
//	  interim_timeout: 2s
//	  play_status_interval: 2s
//	  tracked_events: [PLAY_STATUS_CHANGED, TRACK_CHANGED]
//	  element_attributes: [TITLE, ARTIST, ALBUM]
//	absolute_volume:
//	  deny_list: ["00:11:22:33:44:55"]
//	properties:
//	  persist.bluetooth.disableabsvol: "false"
//	target:
//	  profile: headphones.yaml
//	log:
//	  level: debug
//	  capture: session.rclog
//
// Zero values keep the defaults of service.DefaultSessionConfig. Properties
// from the environment (AVRCP_ prefix) take precedence over the file.
package config
