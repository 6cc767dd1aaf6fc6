// Package wire defines the AVRCP vendor-dependent PDU types and their binary
// encoding.
//
// Every metadata command and response travels inside an AV/C VENDOR DEPENDENT
// frame. The frame body starts with the Bluetooth SIG company ID followed by
// a fixed PDU header:
//
//	+----------+--------+-------------+--------------+----------------+
//	| 00 19 58 | PDU id | packet type | param length | parameters ... |
//	| 3 bytes  | 1 byte | 1 byte      | 2 bytes (BE) | length bytes   |
//	+----------+--------+-------------+--------------+----------------+
//
// Pass-through commands (play, pause, group navigation) use the PASS THROUGH
// opcode and have their own two byte header.
//
// # Codes
//
// Commands carry a command type (CONTROL, STATUS, NOTIFY...). Responses
// carry a response code (ACCEPTED, REJECTED, INTERIM, CHANGED...). Both share
// the Code type; IsResponse distinguishes them.
//
// # Fragmentation
//
// Targets may split a large response into START, CONTINUE and END packets.
// DecodeResponse returns the raw parameter bytes of such packets in
// Response.Fragment; the caller reassembles them and passes the result to
// DecodeResponseParams.
package wire
