// Package transaction allocates AVRCP transaction labels.
//
// AVCTP correlates a response with its command through a 4-bit label, so at
// most 16 exchanges can be outstanding with one peer. The Pool hands out free
// labels and owns one timeout per label.
//
// # Timer Lifecycle
//
// A timer is armed after the command is handed to the transport. Arming
// again replaces the previous timer for that label. Release stops the timer
// and frees the label.
//
// # Stale Expiry
//
// Every acquisition and every arm bumps a per-slot generation. A timer
// captures the generation it was armed with and its expiry is delivered as an
// immutable Timeout. Expire only accepts a Timeout whose generation still
// matches, so a timer that fires while its label is being released or reused
// is ignored.
//
// # Connection Loss
//
// Reset stops every timer and frees every label. Timeouts already in flight
// are rejected by Expire afterwards.
package transaction
