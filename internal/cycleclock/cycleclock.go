// Package cycleclock implements the cycle instant arithmetic spec.md §4.6
// describes: UTC, floored to a fixed cycle length, with a cutoff the Doer
// uses for its expiration check. Grounded on lights_off_aws.py's
// cycle_start_end(), translated from a (floor, floor+9min) datetime pair
// to the Go time.Time equivalent.
package cycleclock

import "time"

// Instant is a UTC timestamp whose minute is a multiple of the cycle
// length and whose seconds/nanoseconds are zero — the canonical "now"
// spec.md §3 describes. It is a distinct type from time.Time so a
// not-yet-floored timestamp can't be passed where an Instant is expected.
type Instant struct {
	t time.Time
}

// Floor rounds t down to the nearest multiple of cycleLength, in UTC.
func Floor(t time.Time, cycleLength time.Duration) Instant {
	u := t.UTC()
	cl := cycleLength
	if cl <= 0 {
		cl = 10 * time.Minute
	}
	floored := u.Truncate(cl)
	return Instant{t: floored}
}

// Now floors the current wall-clock time. The Finder calls this exactly
// once per invocation (spec.md §4.3 step 1); the Doer never calls it —
// it reads the cycle instant out of the message instead (spec.md §4.6).
func Now(cycleLength time.Duration) Instant {
	return Floor(time.Now(), cycleLength)
}

// FromTime wraps an already-floored time.Time, as when decoding one off
// a queue message. It does not re-floor; callers that need flooring
// should use Floor.
func FromTime(t time.Time) Instant {
	return Instant{t: t.UTC()}
}

// Time returns the underlying UTC time.Time.
func (c Instant) Time() time.Time { return c.t }

// DayOfMonth, Weekday, Hour, Minute expose the four schedule dimensions
// (spec.md §3) the matcher tests against.
func (c Instant) DayOfMonth() int { return c.t.Day() }

// ISOWeekday returns 1 (Monday) through 7 (Sunday), per spec.md §3's `u` key.
func (c Instant) ISOWeekday() int {
	wd := int(c.t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func (c Instant) Hour() int   { return c.t.Hour() }
func (c Instant) Minute() int { return c.t.Minute() }

// Expired reports whether observedAt is at least threshold past the
// cycle instant — the Doer's expiration discipline (spec.md §4.4).
func (c Instant) Expired(observedAt time.Time, threshold time.Duration) bool {
	return observedAt.Sub(c.t) >= threshold
}

// CompactUTC renders the instant in the compact form used by child
// backup names (spec.md §3): YYYYMMDDTHHMMZ.
func (c Instant) CompactUTC() string {
	return c.t.Format("20060102T1504Z")
}

// ISO8601 renders the instant as the sched-time tag value (spec.md §6).
func (c Instant) ISO8601() string {
	return c.t.Format(time.RFC3339)
}

// Before and Equal support the ordering checks cycle-matching and
// queue-message validation need.
func (c Instant) Before(other Instant) bool { return c.t.Before(other.t) }
func (c Instant) Equal(other Instant) bool  { return c.t.Equal(other.t) }

// String implements fmt.Stringer for logging.
func (c Instant) String() string { return c.t.Format(time.RFC3339) }
