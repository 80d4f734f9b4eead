package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlxpert/lights-off-aws/internal/domain"
)

func TestBuildTable_NoDuplicateKeysAndEveryOpHasInvoke(t *testing.T) {
	table, err := BuildTable()
	require.NoError(t, err)
	require.NotEmpty(t, table)

	seen := map[string]bool{}
	for _, e := range table {
		assert.False(t, seen[e.Key()], "duplicate catalog key %s", e.Key())
		seen[e.Key()] = true
		assert.NotEmpty(t, e.Operations)
		for op, desc := range e.Operations {
			assert.NotNil(t, desc.Invoke, "%s/%s missing Invoke", e.Key(), op)
			if desc.NeedsChild {
				assert.NotNil(t, desc.BuildChild, "%s/%s needs a BuildChild", e.Key(), op)
			}
		}
	}
}

func TestBuildTable_EC2InstanceSupportsExpectedOps(t *testing.T) {
	table, err := BuildTable()
	require.NoError(t, err)
	entry, ok := Lookup(table, "ec2", "Instance")
	require.True(t, ok)

	for _, op := range []domain.Operation{
		domain.OpStart, domain.OpStop, domain.OpHibernate, domain.OpReboot,
		domain.OpBackup, domain.OpRebootBackup,
	} {
		_, ok := entry.Operations[op]
		assert.True(t, ok, "ec2/Instance should support %s", op)
	}
	_, ok = entry.Operations[domain.OpRebootFailover]
	assert.False(t, ok, "ec2/Instance should not support reboot-failover")
}

func TestBuildTable_RDSClusterHasNoRebootFailover(t *testing.T) {
	table, err := BuildTable()
	require.NoError(t, err)
	entry, ok := Lookup(table, "rds", "DBCluster")
	require.True(t, ok)
	_, ok = entry.Operations[domain.OpRebootFailover]
	assert.False(t, ok)

	instEntry, ok := Lookup(table, "rds", "DBInstance")
	require.True(t, ok)
	_, ok = instEntry.Operations[domain.OpRebootFailover]
	assert.True(t, ok, "rds/DBInstance should support reboot-failover")
}

func TestLookup_UnknownEntry(t *testing.T) {
	table, err := BuildTable()
	require.NoError(t, err)
	_, ok := Lookup(table, "s3", "Bucket")
	assert.False(t, ok)
}

func TestClassifyError_NilIsOk(t *testing.T) {
	outcome := ClassifyError(nil)
	assert.Equal(t, OutcomeOk, outcome.Kind)
}

func TestNewClients_DefaultsRPSWhenNonPositive(t *testing.T) {
	c := NewClients(nil, nil, nil, 0)
	require.NotNil(t, c.Limiters["ec2"])
	require.NotNil(t, c.Limiters["rds"])
	require.NotNil(t, c.Limiters["cloudformation"])
	assert.Equal(t, 10.0, float64(c.Limiters["ec2"].Limit()))
	assert.Equal(t, 10, c.Limiters["ec2"].Burst())
}

func TestClients_WaitWithNoLimiterIsNoop(t *testing.T) {
	c := &Clients{}
	err := c.wait(context.Background(), "unregistered")
	assert.NoError(t, err)
}
