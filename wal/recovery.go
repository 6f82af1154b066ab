package wal

import (
	"encoding/json"
	"fmt"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/internal/logger"
)

// uncommittedRecords implements the WAL's uncommitted_records() contract: it
// scans every segment in lexicographic (creation) order, determines the
// final last_committed_sequence by following every COMMIT marker, then
// returns every EVENT whose sequence exceeds that value, in ascending
// sequence order. Records that fail to parse as JSON are logged and
// dropped, matching the orchestrator's recovery protocol (step 2 of
// startup recovery).
func uncommittedRecords(dir string) ([]Record, error) {
	segments, err := scanSegments(dir)
	if err != nil {
		return nil, err
	}

	var lastCommitted int64
	for _, seg := range segments {
		if err := readSegment(seg.Path, func(r Record) error {
			if r.Type == RecordCommit {
				if through, ok := parseCommitPayload(r.Payload); ok && through > lastCommitted {
					lastCommitted = through
				}
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}

	var pending []Record
	for _, seg := range segments {
		if err := readSegment(seg.Path, func(r Record) error {
			if r.Type != RecordEvent || r.Sequence <= lastCommitted {
				return nil
			}
			if !json.Valid([]byte(r.Payload)) {
				logger.Log.Warn("Dropping unrecoverable WAL record at sequence {sequence}: payload is not valid JSON", r.Sequence)
				return nil
			}
			pending = append(pending, r)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return pending, nil
}

// LastCommittedSequence scans every segment in dir and returns the highest
// throughSequence recorded by any COMMIT marker, or 0 if the WAL has never
// committed.
func LastCommittedSequence(dir string) (int64, error) {
	segments, err := scanSegments(dir)
	if err != nil {
		return 0, err
	}

	var lastCommitted int64
	for _, seg := range segments {
		if err := readSegment(seg.Path, func(r Record) error {
			if r.Type == RecordCommit {
				if through, ok := parseCommitPayload(r.Payload); ok && through > lastCommitted {
					lastCommitted = through
				}
			}
			return nil
		}); err != nil {
			return 0, err
		}
	}
	return lastCommitted, nil
}

func parseCommitPayload(payload string) (int64, bool) {
	var through int64
	if _, err := fmt.Sscanf(payload, "%d", &through); err != nil {
		return 0, false
	}
	return through, true
}
