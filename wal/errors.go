package wal

import "errors"

var (
	// ErrChecksumMismatch is returned by parseRecord when a line's stored
	// checksum disagrees with the recomputed one. Recovery treats it as a
	// signal to skip the line, not to abort.
	ErrChecksumMismatch = errors.New("wal: checksum mismatch")

	// ErrSegmentCorrupted indicates a segment's header line is missing or
	// malformed.
	ErrSegmentCorrupted = errors.New("wal: segment header corrupted")

	// ErrSequenceGap indicates two records in the same segment were not
	// strictly ascending in wal_sequence.
	ErrSequenceGap = errors.New("wal: non-monotonic sequence")

	// ErrClosed is returned by WAL operations invoked after Close.
	ErrClosed = errors.New("wal: closed")
)
