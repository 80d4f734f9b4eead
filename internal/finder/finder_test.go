package finder

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sqlxpert/lights-off-aws/internal/catalog"
	"github.com/sqlxpert/lights-off-aws/internal/cycleclock"
	"github.com/sqlxpert/lights-off-aws/internal/domain"
	"github.com/sqlxpert/lights-off-aws/internal/logx"
)

func testEntry() catalog.Entry {
	return catalog.Entry{
		Service:  "ec2",
		RsrcType: "Instance",
		Operations: map[domain.Operation]catalog.OperationDescriptor{
			domain.OpStart: {Op: domain.OpStart, Invoke: func(ctx context.Context, c *catalog.Clients, rec catalog.Record) catalog.Outcome { return catalog.Ok("") }},
			domain.OpStop:  {Op: domain.OpStop, Invoke: func(ctx context.Context, c *catalog.Clients, rec catalog.Record) catalog.Outcome { return catalog.Ok("") }},
		},
	}
}

func TestEvaluateResource_NoRecognizedTags_NoMatch(t *testing.T) {
	f := &Finder{CycleLength: 10 * time.Minute, Log: logx.Nop()}
	entry := testEntry()
	rec := catalog.Record{RsrcID: "i-1", Tags: domain.Tags{{Key: "Name", Value: "web-1"}}}
	instant := cycleclock.Now(f.CycleLength)

	matched, conflicts, parseErrs, enqErrs := f.evaluateResource(context.Background(), entry, rec, instant)
	assert.Equal(t, 0, matched)
	assert.Equal(t, 0, conflicts)
	assert.Equal(t, 0, parseErrs)
	assert.Equal(t, 0, enqErrs)
}

func TestEvaluateResource_UnsupportedOperationTagIgnored(t *testing.T) {
	f := &Finder{CycleLength: 10 * time.Minute, Log: logx.Nop()}
	entry := testEntry() // supports only start/stop
	rec := catalog.Record{RsrcID: "i-1", Tags: domain.Tags{
		{Key: domain.OpReboot.TagKey(), Value: "_"}, // not in entry.Operations
	}}
	instant := cycleclock.Now(f.CycleLength)

	matched, conflicts, parseErrs, _ := f.evaluateResource(context.Background(), entry, rec, instant)
	assert.Equal(t, 0, matched)
	assert.Equal(t, 0, conflicts)
	assert.Equal(t, 0, parseErrs)
}

func TestEvaluateResource_ScheduleParseErrorIsCounted(t *testing.T) {
	f := &Finder{CycleLength: 10 * time.Minute, Log: logx.Nop()}
	entry := testEntry()
	rec := catalog.Record{RsrcID: "i-1", Tags: domain.Tags{
		{Key: domain.OpStop.TagKey(), Value: "not a valid schedule"},
	}}
	instant := cycleclock.Now(f.CycleLength)

	matched, conflicts, parseErrs, _ := f.evaluateResource(context.Background(), entry, rec, instant)
	assert.Equal(t, 0, matched)
	assert.Equal(t, 0, conflicts)
	assert.Equal(t, 1, parseErrs)
}

func TestEvaluateResource_TwoMatchingOpsIsConflict(t *testing.T) {
	f := &Finder{CycleLength: 10 * time.Minute, Log: logx.Nop()}
	entry := testEntry()
	instant := cycleclock.Now(f.CycleLength)
	everyInstant := fmt.Sprintf("d=%02d H=%02d M=%02d", instant.DayOfMonth(), instant.Hour(), instant.Minute())
	rec := catalog.Record{RsrcID: "i-1", Tags: domain.Tags{
		{Key: domain.OpStart.TagKey(), Value: everyInstant},
		{Key: domain.OpStop.TagKey(), Value: everyInstant},
	}}

	matched, conflicts, parseErrs, enqErrs := f.evaluateResource(context.Background(), entry, rec, instant)
	assert.Equal(t, 0, matched)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 0, parseErrs)
	assert.Equal(t, 0, enqErrs)
}

func TestAcquireDispatchLease_FailsOpenWithoutLeaseManager(t *testing.T) {
	f := &Finder{Log: logx.Nop()}
	ok := f.acquireDispatchLease(context.Background(), "i-1", "start", cycleclock.Now(10*time.Minute))
	assert.True(t, ok)
}
