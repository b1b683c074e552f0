// Package trace captures protocol-level events exchanged with televisions.
//
// Trace capture is separate from operational logging (slog). It records a
// machine-readable stream of what went over the wire: socket sessions to the
// FollowTV and network remote listeners, DIAL probe and launch requests, and
// SmartCenter key dispatch.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.Trace = trace.NewSlogAdapter(slog.Default())
//
//	// For later analysis: write to a binary file
//	cfg.Trace, _ = trace.NewFileLogger("/var/log/vestel/tv.vtrace")
//
//	// Both
//	cfg.Trace = trace.NewMultiLogger(
//	    trace.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Trace files are a sequence of CBOR-encoded events with integer keys. The
// vestel-trace command views, summarizes and exports them.
package trace
