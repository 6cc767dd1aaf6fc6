// Package notification tracks AVRCP notification registrations.
//
// A controller learns the events a target supports from GetCapabilities and
// then registers for each one with REGISTER_NOTIFICATION. The target answers
// every registration twice: an INTERIM response with the current value right
// away, and a CHANGED response once the value changes. After CHANGED the
// registration is spent and must be renewed.
//
// # Event States
//
//	NotRegistered --register--> Registered --INTERIM--> Interim
//	      ^                                                |
//	      +--------------------- CHANGED ------------------+
//
// # Registration Phase
//
// Registrations are sent one at a time, in the order the target listed the
// events. The next one goes out only after the previous INTERIM arrives (or
// its wait times out). When no event is left unregistered the registry
// reports completion once through the OnComplete callback.
//
// # Dropped Events
//
// An event whose INTERIM never arrives, or whose registration is rejected,
// is removed for the rest of the connection.
package notification
