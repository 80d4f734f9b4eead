package naming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sqlxpert/lights-off-aws/internal/domain"
)

func TestUniqueSuffix_LengthAndAlphabet(t *testing.T) {
	s := UniqueSuffix()
	assert.Len(t, s, suffixLen)
	for _, r := range s {
		assert.Contains(t, suffixAlphabet, string(r))
	}
}

func TestUniqueSuffix_VariesAcrossCalls(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		seen[UniqueSuffix()] = true
	}
	assert.Greater(t, len(seen), 1, "suffixes should not all collide across 50 draws")
}

func TestChildName_HasPrefixAndSegments(t *testing.T) {
	name := ChildName("my-instance", "20260803T0300Z", EC2Snapshot)
	assert.True(t, strings.HasPrefix(name, namePrefix+nameDelim))
	assert.Contains(t, name, "my-instance")
	assert.Contains(t, name, "20260803T0300Z")
}

func TestChildName_SanitizesUnsafeCharacters(t *testing.T) {
	name := ChildName("weird:name/with*chars", "20260803T0300Z", EC2Image)
	assert.NotContains(t, name, ":")
	assert.NotContains(t, name, "*")
}

func TestChildName_TruncatesToMaxLenPreservingSuffix(t *testing.T) {
	longParent := strings.Repeat("p", 500)
	name := ChildName(longParent, "20260803T0300Z", RDSDBClusterSnapshot)
	assert.LessOrEqual(t, len(name), RDSDBClusterSnapshot.MaxLen)
	assert.True(t, strings.HasPrefix(name, namePrefix+nameDelim))
	// The suffix segment must survive truncation so names stay unique.
	lastDash := strings.LastIndex(name, nameDelim)
	assert.Equal(t, suffixLen, len(name)-lastDash-1)
	// The cycle-time segment must survive too — only the parent segment
	// is allowed to be cut (spec.md §4.5).
	assert.Contains(t, name, "20260803T0300Z")
}

func TestChildName_DifferentCallsProduceDifferentNames(t *testing.T) {
	a := ChildName("shared-parent", "20260803T0300Z", EC2Snapshot)
	b := ChildName("shared-parent", "20260803T0300Z", EC2Snapshot)
	assert.NotEqual(t, a, b, "same parent and cycle must still disambiguate via the random suffix")
}

func TestChildTags_FixedSetAlwaysPresent(t *testing.T) {
	tags := ChildTags("child-1", "i-0123", "my-instance", "sched-backup", "2026-08-03T03:00:00Z", nil, false)
	v, ok := tags.Get(domain.TagKeyName)
	assert.True(t, ok)
	assert.Equal(t, "child-1", v)

	v, ok = tags.Get(domain.TagKeyParentID)
	assert.True(t, ok)
	assert.Equal(t, "i-0123", v)

	v, ok = tags.Get(domain.TagKeyOp)
	assert.True(t, ok)
	assert.Equal(t, "sched-backup", v)

	_, ok = tags.Get(domain.TagKeyTime)
	assert.False(t, ok, "sched-time is not part of the fixed child tag set ChildTags builds")
}

func TestChildTags_PropagationRespectsCopyTagsFlag(t *testing.T) {
	parentTags := domain.Tags{
		{Key: "Environment", Value: "prod"},
		{Key: "sched-backup", Value: "d=_ H=_ M=00"},
	}

	withCopy := ChildTags("child-1", "i-0123", "my-instance", "backup", "2026-08-03T03:00:00Z", parentTags, true)
	v, ok := withCopy.Get("Environment")
	assert.True(t, ok)
	assert.Equal(t, "prod", v)
	_, ok = withCopy.Get("sched-backup")
	assert.False(t, ok, "reserved-prefix parent tags never propagate, even with CopyTags enabled")

	withoutCopy := ChildTags("child-1", "i-0123", "my-instance", "backup", "2026-08-03T03:00:00Z", parentTags, false)
	_, ok = withoutCopy.Get("Environment")
	assert.False(t, ok, "CopyTags=false must not propagate any parent tag")
}

func TestChildTags_ParentNameTagDoesNotDuplicateFixedName(t *testing.T) {
	parentTags := domain.Tags{
		{Key: "Name", Value: "web"},
		{Key: "Environment", Value: "prod"},
	}

	tags := ChildTags("child-1", "i-0123", "web", "backup", "2026-08-03T03:00:00Z", parentTags, true)

	count := 0
	for _, tag := range tags {
		if tag.Key == "Name" {
			count++
		}
	}
	assert.Equal(t, 1, count, "Name must appear exactly once; the fixed child name wins over the propagated parent Name tag")

	v, ok := tags.Get("Name")
	assert.True(t, ok)
	assert.Equal(t, "child-1", v, "the fixed child name, not the propagated parent Name, must survive")

	v, ok = tags.Get("Environment")
	assert.True(t, ok)
	assert.Equal(t, "prod", v, "non-colliding parent tags still propagate")
}
