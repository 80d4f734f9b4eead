// Package doer implements the queue consumer spec.md §4.4 describes:
// pull one operation request at a time, apply the expiration discipline,
// invoke the matching catalog operation, and route the outcome to
// ack/requeue/dead-letter. Adapted from the teacher's internal/worker
// package (Pool + Runner), generalized from an arbitrary job payload and
// a hand-rolled exponential-backoff retry ladder to the fixed
// OperationRequest shape and the Ok/Benign/Transient/Permanent sum type
// Design Notes §9 calls for.
package doer

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sqlxpert/lights-off-aws/internal/catalog"
	"github.com/sqlxpert/lights-off-aws/internal/cycleclock"
	"github.com/sqlxpert/lights-off-aws/internal/domain"
	"github.com/sqlxpert/lights-off-aws/internal/logx"
	"github.com/sqlxpert/lights-off-aws/internal/metrics"
	"github.com/sqlxpert/lights-off-aws/internal/naming"
	"github.com/sqlxpert/lights-off-aws/internal/queue"
)

// Recorder persists one OperationRecord to the audit trail (Postgres in
// production, a no-op or in-memory fake in tests); kept as an interface
// so doer does not import internal/repo directly.
type Recorder interface {
	Insert(ctx context.Context, rec domain.OperationRecord) error
}

// Pool runs N Doer workers, each consuming one message at a time with
// long-polling receive, per spec.md §5 ("Doer runs in N parallel
// workers... Worker parallelism is independent of cycle boundaries").
type Pool struct {
	Table             []catalog.Entry
	Clients           *catalog.Clients
	RDB               *redis.Client
	Recorder          Recorder
	QueueName         string
	WorkerID          string
	Concurrency       int
	CycleLength       time.Duration
	Expiration        time.Duration
	MsgWaitFor        time.Duration
	MsgTimeout        time.Duration
	VisibilityTimeout time.Duration
	CopyTags          bool
	Log               logx.Logger
}

// Run launches Concurrency workers plus one reclaim loop, and blocks
// until ctx is canceled.
func (p *Pool) Run(ctx context.Context) {
	n := p.Concurrency
	if n <= 0 {
		n = 5
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			p.workerLoop(ctx, idx)
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.reclaimLoop(ctx)
	}()
	wg.Wait()
}

// reclaimLoop periodically sweeps the processing list for entries a
// crashed or budget-exceeding worker never resolved, requeuing them for
// redelivery (spec.md §5's visibility-timeout guarantee). Grounded on the
// teacher's worker.StartLeaseReaper ticker loop, generalized from a
// Postgres task-run scan to queue.ReclaimExpired's Redis-only sweep.
func (p *Pool) reclaimLoop(ctx context.Context) {
	vt := p.VisibilityTimeout
	if vt <= 0 {
		vt = 90 * time.Second
	}
	interval := vt / 2
	if interval <= 0 {
		interval = 45 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := queue.ReclaimExpired(ctx, p.RDB, p.QueueName, vt, time.Now())
			if err != nil {
				p.Log.Warning("do.reclaim_error", map[string]any{"error": err.Error()})
				continue
			}
			if n > 0 {
				p.Log.Info("do.reclaimed", map[string]any{"count": n})
				metrics.QueueReclaimed.Add(float64(n))
			}
		}
	}
}

func (p *Pool) workerLoop(ctx context.Context, idx int) {
	waitFor := p.MsgWaitFor
	if waitFor <= 0 {
		waitFor = 20 * time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		payload, err := queue.Receive(ctx, p.RDB, p.QueueName, waitFor)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.Log.Error("do.receive_error", map[string]any{"worker": idx, "error": err.Error()})
			continue
		}
		if payload == "" {
			continue // long-poll timeout, nothing waiting
		}

		msgCtx, cancel := context.WithTimeout(ctx, p.msgBudget())
		p.handleMessage(msgCtx, payload)
		cancel()
	}
}

func (p *Pool) msgBudget() time.Duration {
	if p.MsgTimeout <= 0 {
		return 30 * time.Second
	}
	return p.MsgTimeout
}

// handleMessage implements spec.md §4.4's Doer algorithm end to end for
// one queue message: decode, expire, dispatch, classify, and resolve the
// queue's ack/requeue/dead-letter decision as a pure function of the
// resulting Outcome (spec.md §9).
func (p *Pool) handleMessage(ctx context.Context, payload string) {
	start := time.Now()
	req, err := queue.DecodeOperationRequest(payload)
	if err != nil {
		// An undecodable message can never succeed on redelivery either;
		// treat it as a malformed-beyond-repair permanent failure.
		p.Log.Error("do.decode_error", map[string]any{"error": err.Error()})
		_ = queue.DeadLetter(ctx, p.RDB, p.QueueName, payload, time.Now())
		return
	}

	cycleTime, err := time.Parse(time.RFC3339, req.CycleStart)
	if err != nil {
		p.Log.Error("do.bad_cycle_start", map[string]any{"cycle_start": req.CycleStart, "error": err.Error()})
		_ = queue.DeadLetter(ctx, p.RDB, p.QueueName, payload, time.Now())
		return
	}
	instant := cycleclock.FromTime(cycleTime)
	now := time.Now().UTC()

	if instant.Expired(now, p.Expiration) {
		p.Log.Info("do.message_expired", map[string]any{
			"cycle_start": req.CycleStart, "service": req.Service,
			"rsrc_type": req.RsrcType, "rsrc_id": req.RsrcID, "op": req.Op,
		})
		_ = queue.Ack(ctx, p.RDB, p.QueueName, payload)
		p.record(ctx, req, now, "expired", "", start)
		return
	}

	entry, ok := catalog.Lookup(p.Table, req.Service, req.RsrcType)
	if !ok {
		p.Log.Error("do.unknown_catalog_entry", map[string]any{"service": req.Service, "rsrc_type": req.RsrcType})
		_ = queue.DeadLetter(ctx, p.RDB, p.QueueName, payload, now)
		p.record(ctx, req, now, "permanent", "unknown catalog entry", start)
		return
	}
	op := domain.Operation(req.Op)
	desc, ok := entry.Operations[op]
	if !ok {
		p.Log.Error("do.unsupported_operation", map[string]any{"service": req.Service, "rsrc_type": req.RsrcType, "op": req.Op})
		_ = queue.DeadLetter(ctx, p.RDB, p.QueueName, payload, now)
		p.record(ctx, req, now, "permanent", "operation not supported on this catalog entry", start)
		return
	}

	rec := catalog.Record{RsrcID: req.RsrcID, Tags: req.Tags}
	if name, found := req.Tags.Get(domain.TagKeyName); found {
		rec.NameFromTag = name
	}

	outcome := desc.Invoke(ctx, p.Clients, rec)
	if outcome.Kind == catalog.OutcomeOk && desc.NeedsChild {
		outcome = p.dispatchChild(ctx, desc, rec, req, instant)
	}

	p.resolve(ctx, payload, req, now, outcome, start)
}

// dispatchChild builds the child resource name and tags and invokes the
// operation's child constructor (spec.md §4.4 step 4, §4.5).
func (p *Pool) dispatchChild(ctx context.Context, desc catalog.OperationDescriptor, rec catalog.Record, req domain.OperationRequest, instant cycleclock.Instant) catalog.Outcome {
	parent := rec.NameFromTag
	if parent == "" {
		parent = rec.RsrcID
	}
	constraint := desc.Constraint
	if constraint == (naming.Constraint{}) {
		constraint = naming.Constraint{MaxLen: 255}
	}
	childName := naming.ChildName(parent, instant.CompactUTC(), constraint)

	childResult, outcome := desc.BuildChild(ctx, p.Clients, rec, req, childName)
	if outcome.Kind != catalog.OutcomeOk {
		return outcome
	}
	p.Log.Info("do.child_created", map[string]any{
		"parent_id": rec.RsrcID, "child_name": childResult.ChildName, "child_id": childResult.ChildID,
		"op": req.Op,
	})
	return outcome
}

// resolve applies the Outcome→ack/requeue/dead-letter mapping spec.md §7
// specifies, and writes the audit record.
func (p *Pool) resolve(ctx context.Context, payload string, req domain.OperationRequest, now time.Time, outcome catalog.Outcome, start time.Time) {
	switch outcome.Kind {
	case catalog.OutcomeOk:
		_ = queue.Ack(ctx, p.RDB, p.QueueName, payload)
		p.Log.Info("do.operation_ok", map[string]any{"service": req.Service, "rsrc_id": req.RsrcID, "op": req.Op})
		p.record(ctx, req, now, "ok", outcome.Detail, start)

	case catalog.OutcomeBenign:
		_ = queue.Ack(ctx, p.RDB, p.QueueName, payload)
		p.Log.Info("do.operation_benign", map[string]any{"service": req.Service, "rsrc_id": req.RsrcID, "op": req.Op, "detail": outcome.Detail})
		p.record(ctx, req, now, "benign", outcome.Detail, start)

	case catalog.OutcomeTransient:
		_ = queue.Requeue(ctx, p.RDB, p.QueueName, payload)
		p.Log.Warning("do.operation_transient", map[string]any{"service": req.Service, "rsrc_id": req.RsrcID, "op": req.Op, "detail": outcome.Detail})
		p.record(ctx, req, now, "transient", outcome.Detail, start)

	case catalog.OutcomePermanent:
		_ = queue.DeadLetter(ctx, p.RDB, p.QueueName, payload, now)
		p.Log.Error("do.operation_permanent", map[string]any{"service": req.Service, "rsrc_id": req.RsrcID, "op": req.Op, "detail": outcome.Detail})
		p.record(ctx, req, now, "permanent", outcome.Detail, start)
	}
}

func (p *Pool) record(ctx context.Context, req domain.OperationRequest, observedAt time.Time, outcome, detail string, start time.Time) {
	metrics.DoerMessageDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	metrics.OperationsProcessed.WithLabelValues(req.Service, req.RsrcType, req.Op, outcome).Inc()

	if p.Recorder == nil {
		return
	}
	cycleTime, err := time.Parse(time.RFC3339, req.CycleStart)
	if err != nil {
		cycleTime = observedAt
	}
	rec := domain.OperationRecord{
		CycleStart: cycleTime,
		Service:    req.Service,
		RsrcType:   req.RsrcType,
		RsrcID:     req.RsrcID,
		Op:         req.Op,
		Outcome:    outcome,
		Detail:     detail,
		WorkerID:   p.WorkerID,
		ObservedAt: observedAt,
		FinishedAt: time.Now().UTC(),
	}
	if err := p.Recorder.Insert(ctx, rec); err != nil {
		p.Log.Warning("do.audit_write_failed", map[string]any{"error": err.Error()})
	}
}
