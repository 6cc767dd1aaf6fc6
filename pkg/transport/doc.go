// Package transport carries AVRCP frames between a session and its peer.
//
// The engine only needs a narrow boundary: Send one frame to the connected
// peer, and receive inbound frames through a Handler. Two implementations
// are provided:
//   - Loopback: an in-memory pair with asynchronous, ordered delivery
//   - StreamTransport: frames over any io.ReadWriteCloser (TCP, pipes)
//
// # Frame Layout
//
// Every frame carries an AVCTP-style header followed by the AV/C header:
//
//	┌──────────────────────────────────────────┐
//	│ label(4) | pkt(2) | C/R(1) | IPID(1)     │  AVCTP
//	│ profile ID 0x110E (2 bytes, big-endian)  │
//	├──────────────────────────────────────────┤
//	│ ctype / response code (1)                │  AV/C
//	│ subunit type/ID 0x48 (1)                 │
//	│ opcode (1)                               │
//	├──────────────────────────────────────────┤
//	│ operands                                 │
//	└──────────────────────────────────────────┘
//
// StreamTransport prefixes each frame with a 4-byte big-endian length.
package transport
