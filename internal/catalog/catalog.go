// Package catalog is the static resource-type registry spec.md §4.2
// describes: a compile-time table, keyed by (service, resource type),
// exposing list/describe, tag extraction, and per-operation invocation
// for every supported AWS resource. Where the original lights_off_aws.py
// builds SPECS and SPECS_CHILD by instantiating plain dicts at import
// time (Design Notes §9's "runtime reflection over provider API naming
// conventions"), this package expresses the same table as a typed Go
// slice of Entry values assembled once in BuildTable, so the supported
// matrix is discoverable by reading this file rather than tracing
// string-keyed lookups.
package catalog

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/sqlxpert/lights-off-aws/internal/domain"
	"github.com/sqlxpert/lights-off-aws/internal/naming"
)

// Filter is a provider describe-call filter (spec.md SPEC_FULL §12,
// "per-catalog-entry provider-side pre-filtering"): Name/Values pairs
// that narrow enumeration to resources actually eligible for scheduling,
// e.g. EC2 instance-state-name in {running, stopping, stopped}.
type Filter struct {
	Name   string
	Values []string
}

// Record is one enumerated resource: its physical identifier, its tag
// list in the shape the Finder needs for schedule scanning and child-tag
// propagation, and any state the operation's authorization check needs
// (e.g. an RDS DBInstance's current status, a CloudFormation stack's
// Capabilities).
type Record struct {
	RsrcID       string
	NameFromTag  string
	Tags         domain.Tags
	State        string
	Capabilities []string
}

// ChildResult is what a backup operation's child-resource constructor
// produces: the child's physical identifier (when the provider returns
// one synchronously) and its name, which the Doer writes into its
// do.child_created log entry. Neither is stored in the audit record.
type ChildResult struct {
	ChildID   string
	ChildName string
}

// OperationDescriptor is one operation supported on a catalog entry:
// the canonical name, a human-readable API verb for logging, whether it
// requires the build-child capability, and the closures that actually
// invoke the provider API (spec.md §4.2).
type OperationDescriptor struct {
	Op         domain.Operation
	APIVerb    string
	NeedsChild bool
	Invoke     func(ctx context.Context, c *Clients, rec Record) Outcome
	BuildChild func(ctx context.Context, c *Clients, rec Record, req domain.OperationRequest, childName string) (ChildResult, Outcome)
	Constraint naming.Constraint
}

// Lister lazily enumerates resources of one catalog entry's type,
// pushing each Record (or a terminal error) onto the returned channels
// and closing both when enumeration finishes. This is the "lazy paged
// enumeration" spec.md §4.2 requires: a catalog entry never loads an
// entire account's resources into memory before the Finder can start
// evaluating schedules on the first page.
type Lister func(ctx context.Context, c *Clients) (<-chan Record, <-chan error)

// Entry is one (service, resource-type) catalog row.
type Entry struct {
	Service         string
	RsrcType        string
	DescribeFilters []Filter
	List            Lister
	Operations      map[domain.Operation]OperationDescriptor
}

// Key returns the (service, resource-type) pair used to route an
// OperationRequest back to its catalog entry.
func (e Entry) Key() string { return e.Service + "/" + e.RsrcType }

// Clients bundles the provider SDK clients every catalog entry's
// closures share, plus a per-service rate limiter (SPEC_FULL §11) that
// caps outbound API calls so a large fleet scan cannot trip provider
// throttling on its own.
type Clients struct {
	EC2            EC2API
	RDS            RDSAPI
	CloudFormation CloudFormationAPI

	Limiters map[string]*rate.Limiter
}

// wait blocks until the named service's limiter admits one call, the way
// every Invoke/List closure below must before issuing a provider request.
func (c *Clients) wait(ctx context.Context, service string) error {
	lim := c.Limiters[service]
	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}

// NewClients constructs the rate limiters used across the table; the SDK
// clients themselves are supplied by the caller (cmd/lightsoff wires them
// from aws-sdk-go-v2 config), since only the CLI knows the target region
// and credential chain.
func NewClients(ec2c EC2API, rdsc RDSAPI, cfnc CloudFormationAPI, perServiceRPS float64) *Clients {
	if perServiceRPS <= 0 {
		perServiceRPS = 10
	}
	limiters := map[string]*rate.Limiter{}
	for _, svc := range []string{"ec2", "rds", "cloudformation"} {
		limiters[svc] = rate.NewLimiter(rate.Limit(perServiceRPS), int(perServiceRPS))
	}
	return &Clients{
		EC2:            ec2c,
		RDS:            rdsc,
		CloudFormation: cfnc,
		Limiters:       limiters,
	}
}

// BuildTable assembles the full static catalog. Applicability is
// enforced structurally: an Entry's Operations map lists exactly the
// operations that resource type supports, so a schedule tag for an
// inapplicable operation is simply never recognized by the Finder's tag
// scan (spec.md §4.2, "Extensibility contract" — rejected at
// catalog-build time, not at runtime, because the map that would
// authorize it never exists).
func BuildTable() ([]Entry, error) {
	table := []Entry{
		ec2InstanceEntry(),
		ec2VolumeEntry(),
		rdsDBInstanceEntry(),
		rdsDBClusterEntry(),
		cloudformationStackEntry(),
	}

	seen := map[string]bool{}
	for _, e := range table {
		if e.Service == "" || e.RsrcType == "" {
			return nil, fmt.Errorf("catalog: entry missing service/resource-type")
		}
		if seen[e.Key()] {
			return nil, fmt.Errorf("catalog: duplicate entry %s", e.Key())
		}
		seen[e.Key()] = true
		if len(e.Operations) == 0 {
			return nil, fmt.Errorf("catalog: entry %s has no operations", e.Key())
		}
		for op, desc := range e.Operations {
			if desc.Invoke == nil {
				return nil, fmt.Errorf("catalog: %s operation %s has no Invoke closure", e.Key(), op)
			}
			if desc.NeedsChild && desc.BuildChild == nil {
				return nil, fmt.Errorf("catalog: %s operation %s requires build-child but has none", e.Key(), op)
			}
		}
	}
	return table, nil
}

// Lookup finds the entry matching a queue message's (service, rsrc_type).
func Lookup(table []Entry, service, rsrcType string) (Entry, bool) {
	for _, e := range table {
		if e.Service == service && e.RsrcType == rsrcType {
			return e, true
		}
	}
	return Entry{}, false
}

// backupChildTags builds the fixed + propagated child tag set for one
// backup dispatch (spec.md §3, §4.5). sched-op carries the full matched
// tag key (e.g. "sched-backup"), not the bare operation name, matching
// lights_off_aws_find_do.py's tag_key_join("op"): op, where op is the
// matched tag key selected during schedule evaluation.
func backupChildTags(rec Record, req domain.OperationRequest, childName string, copyTags bool) domain.Tags {
	opTagKey := domain.Operation(req.Op).TagKey()
	return naming.ChildTags(childName, rec.RsrcID, rec.NameFromTag, opTagKey, req.CycleStart, req.Tags, copyTags)
}

// rateLimitedCall is shared scaffolding: wait on the per-service limiter,
// then run fn, so every Invoke/BuildChild closure gets throttling for
// free instead of repeating the wait call.
func rateLimitedCall(ctx context.Context, c *Clients, service string, fn func(context.Context) error) error {
	if err := c.wait(ctx, service); err != nil {
		return err
	}
	return fn(ctx)
}

// opTimeout bounds a single provider call inside the Doer's overall
// per-message wall-clock budget (spec.md §5); callers pass the parent
// context already carrying that budget, so this only protects against a
// single stuck call monopolizing it.
const opTimeout = 20 * time.Second

func withOpTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}
