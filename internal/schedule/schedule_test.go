package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlxpert/lights-off-aws/internal/cycleclock"
)

func instant(t *testing.T, value string) cycleclock.Instant {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return cycleclock.FromTime(parsed)
}

func TestParse_Rejects(t *testing.T) {
	cases := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"unknown key", "x=01"},
		{"malformed term no equals", "d01"},
		{"malformed term trailing equals", "d="},
		{"day out of range", "d=32 H=_ M=00"},
		{"day single digit", "d=1 H=_ M=00"},
		{"weekday out of range", "u=8 H:M=03:00"},
		{"hour out of range", "d=_ H=24 M=00"},
		{"minute not multiple of cycle", "d=_ H=_ M=05"},
		{"H:M minute not multiple of cycle", "d=_ H:M=03:05"},
		{"day only, no time", "d=01"},
		{"weekday only, no time", "u=1"},
		{"hour only, no day", "H=03 M=00"},
		{"hour wildcard and malformed minute, no day", "H=_ M=invalid"},
		{"dangling day beside unrelated full compound", "d=_ uTH:M=5T03:00"},
		{"dangling weekday beside full compound", "u=1 dTH:M=01T00:00"},
		{"bad uTH:M shape", "uTH:M=53:00"},
		{"bad dTH:M shape", "dTH:M=1T03:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.value, DefaultCycleMinutes)
			require.Error(t, err)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestParse_Accepts(t *testing.T) {
	cases := []string{
		"d=_ H=_ M=00",
		"d=01 d=15 H=03 H=19 M=00",
		"d=31 H:M=00:00",
		"u=1 H:M=14:20",
		"uTH:M=5T03:00",
		"dTH:M=01T00:00",
		"dTH:M=01T00:00 uTH:M=5T03:00",
		"d=_ H=_ M=00 uTH:M=5T03:00",
		"d=01 M=00 M=00 H=03",
	}
	for _, value := range cases {
		t.Run(value, func(t *testing.T) {
			_, err := Parse(value, DefaultCycleMinutes)
			assert.NoError(t, err)
		})
	}
}

func TestMatches_DailyWildcardAtTopOfHour(t *testing.T) {
	sch, err := Parse("d=_ H=_ M=00", DefaultCycleMinutes)
	require.NoError(t, err)

	assert.True(t, Matches(sch, instant(t, "2026-08-03T00:00:00Z")))
	assert.True(t, Matches(sch, instant(t, "2026-08-03T23:00:00Z")))
	assert.True(t, Matches(sch, instant(t, "2026-02-28T05:00:00Z")))
	assert.False(t, Matches(sch, instant(t, "2026-08-03T00:10:00Z")))
}

func TestMatches_DayOfMonthWithCompoundTime(t *testing.T) {
	sch, err := Parse("d=31 H:M=00:00", DefaultCycleMinutes)
	require.NoError(t, err)

	assert.True(t, Matches(sch, instant(t, "2026-01-31T00:00:00Z")))
	assert.False(t, Matches(sch, instant(t, "2026-01-31T00:10:00Z")), "wrong minute")
	assert.False(t, Matches(sch, instant(t, "2026-01-30T00:00:00Z")), "wrong day")
	// April has no 31st: every instant in April must miss, for every hour/minute.
	assert.False(t, Matches(sch, instant(t, "2026-04-30T00:00:00Z")))
}

func TestMatches_WeekdayWithCompoundTime(t *testing.T) {
	sch, err := Parse("u=1 H:M=14:20", DefaultCycleMinutes)
	require.NoError(t, err)

	// 2026-08-03 is a Monday.
	assert.True(t, Matches(sch, instant(t, "2026-08-03T14:20:00Z")))
	assert.False(t, Matches(sch, instant(t, "2026-08-03T14:30:00Z")), "right day, wrong time")
	assert.False(t, Matches(sch, instant(t, "2026-08-04T14:20:00Z")), "right time, wrong day")
}

func TestMatches_FullCompoundAlone(t *testing.T) {
	sch, err := Parse("uTH:M=5T03:00", DefaultCycleMinutes)
	require.NoError(t, err)

	// 2026-08-07 is a Friday (ISO weekday 5).
	assert.True(t, Matches(sch, instant(t, "2026-08-07T03:00:00Z")))
	assert.False(t, Matches(sch, instant(t, "2026-08-07T03:10:00Z")))
	assert.False(t, Matches(sch, instant(t, "2026-08-08T03:00:00Z")), "Saturday, not Friday")
}

func TestMatches_DayOfMonthCompoundAlone(t *testing.T) {
	sch, err := Parse("dTH:M=01T00:00", DefaultCycleMinutes)
	require.NoError(t, err)

	assert.True(t, Matches(sch, instant(t, "2026-09-01T00:00:00Z")))
	assert.False(t, Matches(sch, instant(t, "2026-09-02T00:00:00Z")))
}

func TestMatches_MultipleTermsAreDisjunctivePerDimension(t *testing.T) {
	sch, err := Parse("d=01 d=15 H=03 H=19 M=00", DefaultCycleMinutes)
	require.NoError(t, err)

	assert.True(t, Matches(sch, instant(t, "2026-08-01T03:00:00Z")))
	assert.True(t, Matches(sch, instant(t, "2026-08-01T19:00:00Z")))
	assert.True(t, Matches(sch, instant(t, "2026-08-15T19:00:00Z")))
	assert.False(t, Matches(sch, instant(t, "2026-08-01T04:00:00Z")), "hour not in set")
	assert.False(t, Matches(sch, instant(t, "2026-08-02T03:00:00Z")), "day not in set")
	assert.False(t, Matches(sch, instant(t, "2026-08-01T03:10:00Z")), "minute not in set")
}

func TestMatches_MixedRegularAndFullCompoundIsDisjunction(t *testing.T) {
	sch, err := Parse("d=_ H=_ M=00 uTH:M=5T03:30", DefaultCycleMinutes)
	require.NoError(t, err)

	// The regular portion (d=_ H=_ M=00) matches every top-of-hour cycle.
	assert.True(t, Matches(sch, instant(t, "2026-08-04T11:00:00Z")))
	// The full compound matches Friday 03:30 even though minute isn't :00.
	assert.True(t, Matches(sch, instant(t, "2026-08-07T03:30:00Z")))
	// Neither clause matches an off-the-hour, non-Friday-03:30 instant.
	assert.False(t, Matches(sch, instant(t, "2026-08-04T11:20:00Z")))
}

func TestParse_DuplicateTermsAreIdempotent(t *testing.T) {
	withDup, err := Parse("d=01 d=01 H=03 H=03 M=00 M=00", DefaultCycleMinutes)
	require.NoError(t, err)
	withoutDup, err := Parse("d=01 H=03 M=00", DefaultCycleMinutes)
	require.NoError(t, err)

	probe := instant(t, "2026-08-01T03:00:00Z")
	assert.Equal(t, Matches(withoutDup, probe), Matches(withDup, probe))

	miss := instant(t, "2026-08-01T04:00:00Z")
	assert.Equal(t, Matches(withoutDup, miss), Matches(withDup, miss))
}

func TestParse_CustomCycleLength(t *testing.T) {
	_, err := Parse("d=_ H=_ M=15", 15)
	assert.NoError(t, err)

	_, err = Parse("d=_ H=_ M=15", DefaultCycleMinutes)
	assert.Error(t, err, "15 is not a multiple of the default 10-minute cycle")
}
