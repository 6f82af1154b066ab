// Package mdc is the market data collector's front door for event
// persistence: the Orchestrator enforces write-ahead durability around an
// arbitrary primary sink and coordinates background flushing and crash
// recovery.
package mdc

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/event"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/internal/logger"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/monitoring"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/resilience"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/retention"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/wal"
)

// Sink is anything the orchestrator can deliver committed batches to. Both
// sinks/jsonl.Sink and sinks/columnar.Sink satisfy it.
type Sink interface {
	Append(event.MarketEvent) error
	Flush() error
	Close() error
}

// FailureHandler, if set, is invoked whenever an append or flush fails,
// in addition to the error being returned to the caller. Kept from the
// teacher's sink.go for operators who want a side-channel alerting hook.
type FailureHandler func(error)

type pendingEntry struct {
	sequence   int64
	event      event.MarketEvent
	receivedAt time.Time
}

// Orchestrator is the Archival Orchestrator described in the component
// design: the same append/flush/close contract as a sink, but backed by a
// write-ahead log and a background flush loop.
type Orchestrator struct {
	cfg Config
	wal *wal.WAL

	mu                    sync.Mutex
	buffer                []pendingEntry
	pendingCount          int
	lastCommittedSequence int64
	lastFlushTime         time.Time
	closed                bool

	failureHandler FailureHandler
	panicOnFailure bool

	backgroundCancel context.CancelFunc
	backgroundDone   chan struct{}

	recoveredCount int

	monitor          *monitoring.Monitor
	lastBreakerState resilience.State
	retentionMgr     *retention.Manager
}

// New constructs an Orchestrator: it initializes the WAL, replays any
// uncommitted records left over from a prior crash, and starts the
// background flush loop.
func New(opts ...Option) (*Orchestrator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.WALDir == "" {
		cfg.WALDir = filepath.Join(cfg.DataRoot, "wal")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	w, err := wal.New(cfg.WALDir,
		wal.WithMaxSegmentBytes(cfg.WALMaxSegmentBytes),
		wal.WithMaxSegmentAge(cfg.WALMaxSegmentAge),
		wal.WithSyncMode(cfg.WALSyncMode),
		wal.WithSyncBatchSize(cfg.WALSyncBatchSize),
		wal.WithMaxFlushDelay(cfg.WALMaxFlushDelay),
		wal.WithArchiveAfterTruncate(cfg.WALArchiveAfterTruncate),
		wal.WithArchiveEncryptor(cfg.WALArchiveEncryptor),
	)
	if err != nil {
		return nil, fmt.Errorf("mdc: initializing wal: %w", err)
	}

	o := &Orchestrator{
		cfg:            cfg,
		wal:            w,
		lastFlushTime:  time.Now(),
		failureHandler: cfg.FailureHandler,
		panicOnFailure: cfg.PanicOnFailure,
	}
	if cfg.CircuitBreaker != nil {
		o.lastBreakerState = cfg.CircuitBreaker.GetState()
	}

	if cfg.MetricsEnabled {
		o.monitor = monitoring.New()
		o.monitor.Start()
	}

	if cfg.RetentionDays > 0 || cfg.RetentionMaxTotalMegabytes > 0 {
		o.retentionMgr = retention.New(retention.Config{
			DataRoot:      cfg.DataRoot,
			RetentionDays: cfg.RetentionDays,
			MaxTotalBytes: cfg.RetentionMaxTotalMegabytes * 1024 * 1024,
			SweepInterval: cfg.RetentionSweepInterval,
		})
		o.retentionMgr.Start()
	}

	if err := o.recover(); err != nil {
		_ = w.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.backgroundCancel = cancel
	o.backgroundDone = make(chan struct{})
	go o.backgroundLoop(ctx)

	return o, nil
}

// recover implements startup recovery: re-enqueue every uncommitted WAL
// record, then synchronously flush before accepting new appends.
func (o *Orchestrator) recover() error {
	pending, err := o.wal.UncommittedRecords()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWALCorrupted, err)
	}

	for _, rec := range pending {
		var evt event.MarketEvent
		if err := json.Unmarshal([]byte(rec.Payload), &evt); err != nil {
			logger.Log.Warn("Dropping unrecoverable WAL record at sequence {sequence}: {error}", rec.Sequence, err)
			continue
		}
		o.buffer = append(o.buffer, pendingEntry{sequence: rec.Sequence, event: evt, receivedAt: time.Now()})
		o.pendingCount++
	}

	o.recoveredCount = len(o.buffer)
	if len(o.buffer) > 0 {
		logger.Log.Info("Recovered {count} uncommitted WAL records, flushing before accepting new appends", len(o.buffer))
		if err := o.flush(); err != nil {
			return fmt.Errorf("mdc: recovery flush: %w", err)
		}
	}
	return nil
}

// RecoveredCount reports how many uncommitted WAL records New's startup
// recovery replayed and re-committed to the primary sink.
func (o *Orchestrator) RecoveredCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.recoveredCount
}

func (o *Orchestrator) backgroundLoop(ctx context.Context) {
	defer close(o.backgroundDone)
	ticker := time.NewTicker(o.cfg.BackgroundFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.mu.Lock()
			due := o.pendingCount > 0 && time.Since(o.lastFlushTime) >= o.cfg.MaxFlushDelay
			o.mu.Unlock()
			if !due {
				continue
			}
			if err := o.flush(); err != nil {
				logger.Log.Warn("Background flush failed: {error}", err)
			}
		}
	}
}

// Append implements the append(evt) protocol from §4.6: write to the WAL,
// enqueue, and flush synchronously once the threshold or max delay is hit.
func (o *Orchestrator) Append(evt event.MarketEvent) error {
	if err := evt.Validate(); err != nil {
		return fmt.Errorf("mdc: invalid event: %w", err)
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrOrchestratorClosed
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		o.mu.Unlock()
		return fmt.Errorf("mdc: serializing event: %w", err)
	}

	rec, err := o.wal.Append(string(payload))
	if err != nil {
		o.mu.Unlock()
		if o.monitor != nil {
			o.monitor.RecordAppendError(string(evt.Type))
		}
		o.onFailure(err)
		return fmt.Errorf("mdc: wal append: %w", err)
	}

	o.buffer = append(o.buffer, pendingEntry{sequence: rec.Sequence, event: evt, receivedAt: time.Now()})
	o.pendingCount++
	needsFlush := o.pendingCount >= o.cfg.FlushThreshold || time.Since(o.lastFlushTime) >= o.cfg.MaxFlushDelay
	o.mu.Unlock()

	if o.monitor != nil {
		o.monitor.RecordAppend(string(evt.Type))
	}

	if needsFlush {
		return o.Flush()
	}
	return nil
}

// Flush runs the flush() protocol from §4.6 under the orchestrator's
// mutex: drain, sort, deliver to the sink in order, flush the sink,
// commit the WAL, and optionally truncate.
func (o *Orchestrator) Flush() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrOrchestratorClosed
	}
	o.mu.Unlock()
	return o.flush()
}

// flush is the unguarded implementation, used both by the public Flush and
// by recovery/shutdown paths that must run even after Close has begun.
func (o *Orchestrator) flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.buffer) == 0 {
		return nil
	}

	batch := o.buffer
	o.buffer = nil
	sort.Slice(batch, func(i, j int) bool { return batch[i].sequence < batch[j].sequence })
	maxSeq := batch[len(batch)-1].sequence

	for _, entry := range batch {
		if err := o.cfg.PrimarySink.Append(entry.event); err != nil {
			o.buffer = append(batch, o.buffer...)
			if o.monitor != nil {
				o.monitor.RecordFlushFailure()
			}
			o.onFailure(err)
			return fmt.Errorf("%w: sink append: %v", ErrFlushFailed, err)
		}
	}

	if err := o.flushSink(); err != nil {
		o.buffer = append(batch, o.buffer...)
		if o.monitor != nil {
			o.monitor.RecordFlushFailure()
		}
		o.onFailure(err)
		return fmt.Errorf("%w: sink flush: %v", ErrFlushFailed, err)
	}

	if err := o.wal.Commit(maxSeq); err != nil {
		return fmt.Errorf("mdc: wal commit: %w", err)
	}

	o.lastCommittedSequence = maxSeq
	o.pendingCount -= len(batch)
	o.lastFlushTime = time.Now()

	if o.cfg.AutoTruncateWAL {
		if err := o.wal.Truncate(o.lastCommittedSequence); err != nil {
			logger.Log.Warn("WAL truncate after commit failed: {error}", err)
		}
	}
	return nil
}

// flushSink delivers the sink flush through the circuit breaker (outermost,
// so a tripped breaker fails fast without burning a retry budget) and the
// retry policy (innermost, so transient errors are absorbed before the
// breaker ever sees them).
func (o *Orchestrator) flushSink() error {
	start := time.Now()
	attempt := o.cfg.PrimarySink.Flush
	if o.cfg.RetryPolicy != nil {
		retry := attempt
		attempt = func() error { return o.cfg.RetryPolicy.Execute(retry) }
	}

	var err error
	if o.cfg.CircuitBreaker != nil {
		err = o.cfg.CircuitBreaker.Execute(attempt)
		o.recordBreakerState()
	} else {
		err = attempt()
	}

	if o.cfg.MetricsEnabled {
		monitoring.RecordSinkFlush(sinkLabel(o.cfg.PrimarySink), time.Since(start), err == nil)
	}
	return err
}

// recordBreakerState polls the configured circuit breaker's current state
// and reports it, plus any trip (transition into StateOpen) since the last
// poll. The breaker itself has no hook to notify the orchestrator directly
// (its OnStateChange callback, if any, belongs to whoever constructed it
// before handing it to WithCircuitBreaker), so polling after every attempt
// is the simplest way to keep this reading current.
func (o *Orchestrator) recordBreakerState() {
	if !o.cfg.MetricsEnabled {
		return
	}
	name := o.cfg.CircuitBreaker.GetStats().Name
	state := o.cfg.CircuitBreaker.GetState()
	monitoring.UpdateCircuitBreakerState(name, int(state))
	if state == resilience.StateOpen && o.lastBreakerState != resilience.StateOpen {
		monitoring.RecordCircuitBreakerTrip(name)
	}
	o.lastBreakerState = state
}

// sinkLabel derives a metric label from the sink's concrete type name,
// e.g. "*jsonl.Sink".
func sinkLabel(s Sink) string {
	return fmt.Sprintf("%T", s)
}

func (o *Orchestrator) onFailure(err error) {
	if o.failureHandler != nil {
		o.failureHandler(err)
	}
	if o.panicOnFailure {
		panic(fmt.Sprintf("mdc: unrecoverable failure (panic-on-failure enabled): %v", err))
	}
}

// VerifyIntegrity scans the orchestrator's WAL directory and returns an
// integrity report, without requiring a separate CLI invocation.
func (o *Orchestrator) VerifyIntegrity() (wal.IntegrityReport, error) {
	return wal.VerifyIntegrityReport(o.wal.Dir(), true)
}

// Close cancels the background flush loop, performs one final
// non-cancellable flush (bounded by ShutdownFlushBudget), then disposes
// the WAL and the primary sink.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	o.backgroundCancel()
	<-o.backgroundDone

	done := make(chan error, 1)
	go func() { done <- o.flush() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Log.Warn("Final shutdown flush failed: {error}", err)
		}
	case <-time.After(o.cfg.ShutdownFlushBudget):
		logger.Log.Warn("Shutdown flush budget exceeded; some data may be lost from this process's view, but the WAL retains it for recovery on next start")
	}

	if o.retentionMgr != nil {
		o.retentionMgr.Stop()
	}
	if o.monitor != nil {
		o.monitor.Stop()
	}

	if err := o.wal.Close(); err != nil {
		logger.Log.Warn("Error closing wal: {error}", err)
	}
	return o.cfg.PrimarySink.Close()
}
