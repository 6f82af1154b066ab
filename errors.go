package mdc

import "errors"

var (
	// ErrOrchestratorClosed is returned by Append or Flush when the
	// orchestrator has already been closed. A repeated Close returns nil.
	ErrOrchestratorClosed = errors.New("mdc: orchestrator is closed")

	// ErrWALCorrupted is returned when WAL recovery cannot make sense of
	// the segment directory at all (as opposed to individual corrupted
	// lines, which are logged and skipped).
	ErrWALCorrupted = errors.New("mdc: wal directory is corrupted")

	// ErrFlushFailed wraps a sink flush failure surfaced from
	// Orchestrator.flush; per the error taxonomy, the corresponding COMMIT
	// is never written, so the events will be re-delivered on the next
	// flush.
	ErrFlushFailed = errors.New("mdc: flush failed")
)
