// Package log provides structured protocol capture for AVRCP sessions.
//
// Capture is separate from operational logging (slog). It records a complete
// machine-readable trace of frames, decoded commands and responses,
// transaction label lifecycle and state changes.
//
// # Basic Usage
//
//	// Development: print events through slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Capture to a binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/avrcp/session.rclog")
//
//	// Both, with only decoded PDUs on the console
//	wireLayer := log.LayerWire
//	cfg.ProtocolLogger = log.Tee(
//	    fileLogger,
//	    log.Only(log.NewSlogAdapter(slog.Default()), log.Filter{Layer: &wireLayer}),
//	)
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with the .rclog
// extension. The avrcp-log tool views, filters and summarizes them.
package log
