package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagKey_RoundTripsThroughParseOperationTagKey(t *testing.T) {
	for _, op := range AllOperations {
		key := op.TagKey()
		parsed, ok := ParseOperationTagKey(key)
		assert.True(t, ok, "tag key %s should parse", key)
		assert.Equal(t, op, parsed)
	}
}

func TestParseOperationTagKey_RejectsUnreservedKey(t *testing.T) {
	_, ok := ParseOperationTagKey("Environment")
	assert.False(t, ok)
}

func TestParseOperationTagKey_RejectsUnknownOperation(t *testing.T) {
	_, ok := ParseOperationTagKey("sched-defragment")
	assert.False(t, ok)
}

func TestTags_GetAndWithoutReservedPrefix(t *testing.T) {
	tags := Tags{
		{Key: "Name", Value: "web-1"},
		{Key: "sched-stop", Value: "H=22"},
		{Key: "env", Value: "prod"},
	}
	v, ok := tags.Get("env")
	assert.True(t, ok)
	assert.Equal(t, "prod", v)

	_, ok = tags.Get("missing")
	assert.False(t, ok)

	kept := tags.WithoutReservedPrefix()
	assert.Len(t, kept, 2)
	for _, tag := range kept {
		assert.NotEqual(t, "sched-stop", tag.Key)
	}
}
