// Package service runs an AVRCP controller session against one connected
// target.
//
// A Session ties the lower layers together:
//
//   - transaction labels and their timers (pkg/transaction)
//   - PDU encoding and decoding (pkg/wire)
//   - notification registrations (pkg/notification)
//   - the post-connect discovery procedure (pkg/procedure)
//   - the frame transport to the peer (pkg/transport)
//
// # Threading
//
// All protocol state is owned by one executor goroutine per session. Public
// methods and transport input are submitted to it as tasks; timer expiries
// submit an immutable transaction.Timeout that the executor validates
// before acting on it. Host callbacks run on a separate notifier goroutine
// in the order the executor produced them, so a callback may call back into
// the session without deadlocking.
//
// # Usage
//
//	cfg := service.DefaultSessionConfig()
//	sess := service.NewSession(tr, callbacks, cfg)
//	sess.Start(ctx)
//	defer sess.Stop()
//
//	tr.Start(sess.OnMessage)
//	sess.OnConnect(peer, wire.FeatureTarget|wire.FeatureVendor|wire.FeatureMetadata)
//
// # Target-side volume
//
// The peer may drive our absolute volume. SET_ABSOLUTE_VOLUME and
// REGISTER_NOTIFICATION(VOLUME_CHANGED) commands are passed to the host with
// their label and answered with SetVolumeResponse and
// VolumeChangeNotificationResponse.
package service
