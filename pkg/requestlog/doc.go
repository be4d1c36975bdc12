// Package requestlog records application requests received by the mock server
// so that tests can inspect them afterwards.
//
// It is distinct from operational logging (which uses log/slog for platform
// debugging): entries here are user-facing data retrieved over the control
// plane.
//
// # Core Types
//
// Entry is an immutable capture of one request: request line, headers, body,
// decoded form fields and server metadata (host, ports, remote address, user
// agent and basic-auth credentials).
//
// Log is an ordered deque of entries. Positions are 0-based from the live
// head, so popping the head shifts every later position down by one. Sequence
// numbers are assigned on append and are never renumbered; they restart at 0
// after Clear.
//
// # Usage
//
//	log := requestlog.New(0)
//	log.Append(requestlog.NewEntry(r, body))
//	first, err := log.First()
//	if errors.Is(err, requestlog.ErrNotFound) {
//	    // nothing recorded yet
//	}
//
// # Package Design
//
// This is a leaf package with no internal dependencies, allowing it to be
// imported by any package without creating import cycles.
package requestlog
