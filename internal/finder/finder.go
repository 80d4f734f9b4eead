// Package finder implements the cycle-anchored driver spec.md §4.3
// describes: once per invocation, enumerate every catalog entry's
// resources, evaluate schedule tags against the cycle instant, apply the
// one-operation-per-resource conflict policy, and enqueue exactly one
// operation request per matching (resource, operation) pair. Adapted
// from the teacher's internal/scheduler.Scheduler — generalized from a
// ticker-driven cron catch-up loop against a Postgres schedules table to
// a single cycle-anchored pass over the static AWS resource catalog.
package finder

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sqlxpert/lights-off-aws/internal/catalog"
	"github.com/sqlxpert/lights-off-aws/internal/cycleclock"
	"github.com/sqlxpert/lights-off-aws/internal/domain"
	"github.com/sqlxpert/lights-off-aws/internal/lease"
	"github.com/sqlxpert/lights-off-aws/internal/logx"
	"github.com/sqlxpert/lights-off-aws/internal/metrics"
	"github.com/sqlxpert/lights-off-aws/internal/queue"
	"github.com/sqlxpert/lights-off-aws/internal/schedule"
)

// Finder holds everything one Find invocation needs: the catalog, the
// queue client, the dispatch lease manager that gives the at-most-once
// guarantee described in spec.md §1, and the tunables from spec.md §6.
type Finder struct {
	Table       []catalog.Entry
	Clients     *catalog.Clients
	RDB         *redis.Client
	Lease       *lease.Manager
	QueueName   string
	CycleLength time.Duration
	MaxBytes    int
	CopyTags    bool
	LeaseTTL    time.Duration
	Log         logx.Logger
}

// Stats summarizes one Run; the find subcommand logs it as its
// find.done entry.
type Stats struct {
	ResourcesScanned int
	Matched          int
	Conflicts        int
	ParseErrors      int
	EnqueueErrors    int
}

// Run executes exactly one Finder pass (spec.md §4.3). The cycle instant
// is computed once, at the top, from the process's own wall clock
// floored to the cycle boundary — never re-read during the scan, so the
// whole pass is atomic with respect to clock drift (spec.md §4.6).
func (f *Finder) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	instant := cycleclock.Now(f.CycleLength)
	cycleStart := instant.Time().Format(time.RFC3339)
	f.Log.Info("find.cycle_start", cycleStart)

	defer func() {
		metrics.FinderScanDuration.Observe(time.Since(start).Seconds())
	}()

	var stats Stats
	for _, entry := range f.Table {
		n, matched, conflicts, parseErrs, enqErrs := f.scanEntry(ctx, entry, instant)
		stats.ResourcesScanned += n
		stats.Matched += matched
		stats.Conflicts += conflicts
		stats.ParseErrors += parseErrs
		stats.EnqueueErrors += enqErrs
	}

	f.Log.Info("find.cycle_complete", map[string]any{
		"cycle_start":       cycleStart,
		"resources_scanned": stats.ResourcesScanned,
		"matched":           stats.Matched,
		"conflicts":         stats.Conflicts,
		"parse_errors":      stats.ParseErrors,
		"enqueue_errors":    stats.EnqueueErrors,
	})
	return stats, nil
}

// scanEntry enumerates one catalog entry's resources. An enumeration
// error for this entry is logged and does not abort the rest of the
// scan (spec.md §4.3, §7 "Enumeration/describe failure").
func (f *Finder) scanEntry(ctx context.Context, entry catalog.Entry, instant cycleclock.Instant) (scanned, matched, conflicts, parseErrs, enqErrs int) {
	records, errc := entry.List(ctx, f.Clients)
	for rec := range records {
		scanned++
		m, c, p, e := f.evaluateResource(ctx, entry, rec, instant)
		matched += m
		conflicts += c
		parseErrs += p
		enqErrs += e
	}
	if err := <-errc; err != nil {
		f.Log.Error("find.enumeration_failed", map[string]any{
			"service":   entry.Service,
			"rsrc_type": entry.RsrcType,
			"error":     err.Error(),
		})
	}
	return scanned, matched, conflicts, parseErrs, enqErrs
}

// evaluateResource scans one resource's tags for operation tags this
// entry supports, parses and matches each against the cycle instant,
// applies the conflict policy, and enqueues the single surviving
// request, if any (spec.md §4.3 step 2).
func (f *Finder) evaluateResource(ctx context.Context, entry catalog.Entry, rec catalog.Record, instant cycleclock.Instant) (matched, conflicts, parseErrs, enqErrs int) {
	type candidate struct {
		op    domain.Operation
		value string
	}
	var matches []candidate

	for _, tag := range rec.Tags {
		op, ok := domain.ParseOperationTagKey(tag.Key)
		if !ok {
			continue
		}
		if _, supported := entry.Operations[op]; !supported {
			continue
		}
		sch, err := schedule.Parse(tag.Value, int(f.CycleLength/time.Minute))
		if err != nil {
			parseErrs++
			metrics.ScheduleParseErrors.Inc()
			f.Log.Warning("find.schedule_parse_error", map[string]any{
				"service": entry.Service, "rsrc_type": entry.RsrcType,
				"rsrc_id": rec.RsrcID, "op": string(op), "error": err.Error(),
			})
			continue
		}
		if schedule.Matches(sch, instant) {
			matches = append(matches, candidate{op: op, value: tag.Value})
		}
	}

	if len(matches) == 0 {
		return 0, 0, parseErrs, 0
	}

	// Conflict policy (spec.md §4.3 step 2.5): more than one match for
	// the same resource in the same cycle is a hard invariant violation —
	// emit nothing, log an error naming every conflicting operation.
	if len(matches) > 1 {
		ops := make([]string, 0, len(matches))
		for _, m := range matches {
			ops = append(ops, string(m.op))
		}
		f.Log.Error("find.operation_conflict", map[string]any{
			"service": entry.Service, "rsrc_type": entry.RsrcType,
			"rsrc_id": rec.RsrcID, "operations": ops,
		})
		metrics.ScanConflicts.Inc()
		return 0, 1, parseErrs, 0
	}

	op := matches[0].op
	if !f.acquireDispatchLease(ctx, rec.RsrcID, string(op), instant) {
		// Another Finder invocation already dispatched this
		// (resource, operation, cycle) tuple — the at-most-once guard
		// spec.md §1 requires on top of at-least-once Finder retries.
		return 0, 0, parseErrs, 0
	}

	req := domain.OperationRequest{
		CycleStart: instant.Time().Format(time.RFC3339),
		Service:    entry.Service,
		RsrcType:   entry.RsrcType,
		RsrcID:     rec.RsrcID,
		Op:         string(op),
		Tags:       rec.Tags,
		CopyTags:   f.CopyTags,
	}
	if err := f.enqueueWithBackoff(ctx, req); err != nil {
		f.Log.Error("find.enqueue_failed", map[string]any{
			"service": entry.Service, "rsrc_type": entry.RsrcType,
			"rsrc_id": rec.RsrcID, "op": string(op), "error": err.Error(),
		})
		return 0, 0, parseErrs, 1
	}
	metrics.OperationsEnqueued.WithLabelValues(entry.Service, entry.RsrcType, string(op)).Inc()
	return 1, 0, parseErrs, 0
}

// acquireDispatchLease wins the SetNX race for one (resource, operation,
// cycle) tuple. ttl comfortably exceeds the cycle length so a retried
// Finder invocation within the same cycle always loses.
func (f *Finder) acquireDispatchLease(ctx context.Context, rsrcID, op string, instant cycleclock.Instant) bool {
	if f.Lease == nil {
		return true
	}
	key := lease.DispatchKey(rsrcID, op, instant.Time().Format(time.RFC3339))
	ttl := f.LeaseTTL
	if ttl <= 0 {
		ttl = f.CycleLength * 3
	}
	ok, err := f.Lease.Acquire(ctx, key, "finder", ttl)
	if err != nil {
		f.Log.Warning("find.lease_acquire_error", map[string]any{"key": key, "error": err.Error()})
		return true // fail open: better a possible duplicate than a silently skipped operation
	}
	return ok
}

// enqueueWithBackoff retries a bounded number of times with short
// backoff before giving up on one message (spec.md §4.3, §7 "Queue send
// failure"), and enforces the size cap before ever calling Redis
// (spec.md §4.3, "Backpressure").
func (f *Finder) enqueueWithBackoff(ctx context.Context, req domain.OperationRequest) error {
	const maxAttempts = 3
	backoff := 200 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := queue.Enqueue(ctx, f.RDB, f.QueueName, req, f.MaxBytes)
		if err == nil {
			return nil
		}
		if _, oversize := err.(*queue.ErrMessageTooLarge); oversize {
			return err // not retryable
		}
		lastErr = err
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("enqueue: giving up after %d attempts: %w", maxAttempts, lastErr)
}
