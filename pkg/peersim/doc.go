// Package peersim simulates an AVRCP target for tests and the console.
//
// A Target answers vendor-dependent and pass-through commands from a
// Profile, holds notification registrations and emits CHANGED responses
// when its state is changed through the scripting methods (SetPlayStatus,
// ChangeTrack, SetSetting, SetVolume).
//
// # Profiles
//
// Profiles are YAML:
//
//	name: phone
//	features: [TARGET, VENDOR, METADATA, APP_SETTING, ADV_CTRL]
//	events: [PLAY_STATUS_CHANGED, TRACK_CHANGED, APP_SETTING_CHANGED, VOLUME_CHANGED]
//	play_status: PAUSED
//	track:
//	  uid: 1
//	  title: Intro
//	settings:
//	  - id: 2
//	    values: [{id: 1}, {id: 2}]
//	    current: 1
//	faults:
//	  - pdu: REGISTER_NOTIFICATION
//	    event: TRACK_CHANGED
//	    action: drop
//
// # Faults
//
// A fault matches a PDU (and optionally a notification event) and drops,
// rejects, answers NOT_IMPLEMENTED, or delays the answer. Count limits how
// many commands it applies to; zero means every matching command.
package peersim
