// Package naming builds deterministic-enough child (backup) resource
// names and the fixed child tag set, grounded on lights_off_aws_find_do.py's
// unique_suffix() and op_kwargs_child(): a "z<prefix>-" marker so child
// resources sort after manually created ones in a console list, followed
// by the parent's name-or-id, the cycle instant, and a short random
// suffix to break collisions within the same cycle.
package naming

import (
	"crypto/rand"
	"regexp"
	"strings"

	"github.com/sqlxpert/lights-off-aws/internal/domain"
)

// suffixAlphabet excludes digits/letters that are easy to confuse when
// read aloud or typed (0/O, 1/l/i) rather than using the full
// alphanumeric set.
const suffixAlphabet = "23456789abcdefghjkmnpqrstuvwxyz"

const suffixLen = 5

const namePrefix = "zsched"

const nameDelim = "-"

const unsafeCharFill = "X"

// Constraint describes a child resource type's name validity rules: the
// characters a name must not contain (replaced with unsafeCharFill) and
// the maximum length the provider API accepts (spec.md §4.5's per-type
// sanitization, SPEC_FULL §12).
type Constraint struct {
	Unsafe *regexp.Regexp
	MaxLen int
}

// Common child resource-type constraints (SPECS_CHILD in the source this
// descends from): EC2 images, EC2 snapshots, RDS instance snapshots, RDS
// cluster snapshots.
var (
	EC2Image = Constraint{
		Unsafe: regexp.MustCompile(`[^a-zA-Z0-9()\[\] ./\-'@_]`),
		MaxLen: 128,
	}
	EC2Snapshot = Constraint{
		MaxLen: 255,
	}
	RDSDBSnapshot = Constraint{
		Unsafe: regexp.MustCompile(`[^\w.:/=+\-]`),
		MaxLen: 255,
	}
	RDSDBClusterSnapshot = Constraint{
		Unsafe: regexp.MustCompile(`[^a-zA-Z0-9-]`),
		MaxLen: 63,
	}
)

// UniqueSuffix returns a short random string from a small, unambiguous
// alphabet, used to disambiguate child names created in the same cycle
// for the same parent.
func UniqueSuffix() string {
	b := make([]byte, suffixLen)
	idx := make([]byte, suffixLen)
	if _, err := rand.Read(idx); err != nil {
		// crypto/rand.Read on the standard reader does not fail in
		// practice; fall back to the first character rather than panic.
		for i := range b {
			b[i] = suffixAlphabet[0]
		}
		return string(b)
	}
	for i, v := range idx {
		b[i] = suffixAlphabet[int(v)%len(suffixAlphabet)]
	}
	return string(b)
}

// ChildName builds a child resource's name: zsched-<parent>-<cycle>-<suffix>,
// sanitized and length-capped per the target resource type's Constraint.
// parentNameFromTag is the parent's Name tag value if it has one,
// otherwise callers should pass the parent's physical id instead.
func ChildName(parentNameFromTag, cycleCompactUTC string, c Constraint) string {
	suffix := UniqueSuffix()
	parent := parentNameFromTag
	if c.Unsafe != nil {
		// Unsafe's character classes match one rune at a time, so
		// sanitizing the parent segment alone and the full joined name
		// produce the same bytes for that segment — sanitizing it here,
		// before any truncation, keeps the prefix/cycle/suffix segments
		// (which never contain unsafe characters) out of the regex pass.
		parent = c.Unsafe.ReplaceAllString(parent, unsafeCharFill)
	}
	name := strings.Join([]string{namePrefix, parent, cycleCompactUTC, suffix}, nameDelim)
	if c.MaxLen > 0 && len(name) > c.MaxLen {
		name = truncateParentSegment(parent, cycleCompactUTC, suffix, c.MaxLen)
	}
	return name
}

// truncateParentSegment shortens an overlong name by cutting only the
// parent-name segment, keeping the leading prefix, the cycle-time
// segment, and the trailing random suffix fully intact (spec.md §4.5:
// "truncating the parent segment (never other segments)").
func truncateParentSegment(parent, cycleCompactUTC, suffix string, maxLen int) string {
	fixedLen := len(namePrefix) + 3*len(nameDelim) + len(cycleCompactUTC) + len(suffix)
	parentBudget := maxLen - fixedLen
	if parentBudget < 0 {
		parentBudget = 0
	}
	if parentBudget > len(parent) {
		parentBudget = len(parent)
	}
	return strings.Join([]string{namePrefix, parent[:parentBudget], cycleCompactUTC, suffix}, nameDelim)
}

// fixedChildTagKeys is the reserved set ChildTags always sets itself
// (spec.md §6, "Child tag keys (reserved)"); a propagated parent tag
// whose key collides with one of these is dropped rather than appended a
// second time — the fixed value wins (spec.md §4.5, §8 "Tag propagation").
// domain.Tags.WithoutReservedPrefix only strips the "sched-"-prefixed
// members of this set, so Name (which carries no such prefix) needs its
// own check here.
var fixedChildTagKeys = map[string]bool{
	domain.TagKeyName:       true,
	domain.TagKeyParentName: true,
	domain.TagKeyParentID:   true,
	domain.TagKeyOp:         true,
	domain.TagKeyCycleStart: true,
}

// ChildTags builds the fixed child tag set (spec.md §3, "Child tags" and
// §6, "Child tag keys (reserved)"), optionally including every
// non-reserved parent tag when copyTags is enabled.
func ChildTags(childName, parentID, parentNameFromTag, op, cycleStartISO8601 string, parentTags domain.Tags, copyTags bool) domain.Tags {
	tags := domain.Tags{
		{Key: domain.TagKeyName, Value: childName},
		{Key: domain.TagKeyParentName, Value: parentNameFromTag},
		{Key: domain.TagKeyParentID, Value: parentID},
		{Key: domain.TagKeyOp, Value: op},
		{Key: domain.TagKeyCycleStart, Value: cycleStartISO8601},
	}
	if copyTags {
		for _, tag := range parentTags.WithoutReservedPrefix() {
			if fixedChildTagKeys[tag.Key] {
				continue
			}
			tags = append(tags, tag)
		}
	}
	return tags
}
