// Package lease implements the SetNX-based dispatch lease that gives the
// Finder its at-most-once-per-cycle guarantee on top of an at-least-once
// Finder invocation (spec.md §1: "the at-most-once-within-cycle dispatch
// guarantee built on at-least-once queue delivery"). Adapted unchanged
// in mechanism from the teacher's internal/lease/manager.go — only the
// key's meaning changes, from a task-run id to a (resource, operation,
// cycle) dispatch key.
package lease

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DispatchKey returns the lease key for one (resource, operation, cycle)
// tuple. Holding this lease is what lets the Finder enqueue a given
// operation request for a given resource exactly once per cycle, even if
// the Finder invocation itself is retried.
func DispatchKey(rsrcID, op, cycleStart string) string {
	return "lease:dispatch:" + rsrcID + ":" + op + ":" + cycleStart
}

type Manager struct {
	rdb *redis.Client
}

func NewManager(rdb *redis.Client) *Manager {
	return &Manager{rdb: rdb}
}

// Acquire sets the lease only if absent, returning whether this caller
// won it. ttl should comfortably exceed one cycle length so a retried
// Finder invocation within the same cycle always loses the race.
//
// There is deliberately no Renew or Release here: the teacher's lease
// manager (built for long-running task-run ownership) offers both, but a
// dispatch lease's job is to outlive the whole cycle so a *later* retried
// Finder invocation still loses the race — releasing it early would
// reopen the very duplicate-dispatch window this lease exists to close,
// and the Finder has no long-running work to renew across (spec.md
// §4.3 step 3: the process exits once the pass is done). The TTL alone
// is the lease's entire lifecycle.
func (m *Manager) Acquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	return m.rdb.SetNX(ctx, key, holder, ttl).Result()
}
