// Package schedule implements the tag-value grammar and cycle-match
// predicate spec.md §3 and §4.1 define: a compact, cron-like language
// embedded directly in resource tags, and a pure function that decides
// whether a given discrete cycle instant satisfies a parsed schedule.
//
// This package has no side effects and no dependency on the provider,
// the queue, or the clock's wall-time source; it only knows about the
// cycleclock.Instant it is asked to test.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sqlxpert/lights-off-aws/internal/cycleclock"
)

// ParseError reports why a schedule tag value failed to parse. It is
// always per-resource and never fatal (spec.md §4.1, §7): callers log it
// and skip the resource for the cycle.
type ParseError struct {
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("schedule: invalid tag value %q: %s", e.Value, e.Reason)
}

func parseErr(value, format string, args ...any) *ParseError {
	return &ParseError{Value: value, Reason: fmt.Sprintf(format, args...)}
}

// DefaultCycleMinutes is the fixed cycle length spec.md assumes (10
// minutes); minute terms and the minute half of compound terms must be a
// multiple of it in every term shape — the Open Question in spec.md §9
// resolves to "reject uniformly."
const DefaultCycleMinutes = 10

type hourMinute struct {
	hour, minute int
}

type fullCompoundKind int

const (
	compoundWeekday fullCompoundKind = iota
	compoundDayOfMonth
)

type fullCompound struct {
	kind         fullCompoundKind
	weekday, dom int
	hourMinute
}

// Schedule is a parsed schedule tag value: the disjoint day, weekday, and
// time term sets plus any compound terms, per spec.md §3.
type Schedule struct {
	dayLiterals     map[int]bool
	dayWildcard     bool
	weekdayLiterals map[int]bool
	hourLiterals    map[int]bool
	hourWildcard    bool
	minuteLiterals  map[int]bool
	hmCompounds     map[hourMinute]bool
	fullCompounds   map[fullCompound]bool
}

func newSchedule() *Schedule {
	return &Schedule{
		dayLiterals:     map[int]bool{},
		weekdayLiterals: map[int]bool{},
		hourLiterals:    map[int]bool{},
		minuteLiterals:  map[int]bool{},
		hmCompounds:     map[hourMinute]bool{},
		fullCompounds:   map[fullCompound]bool{},
	}
}

var tokenSplit = regexp.MustCompile(`\s+`)

// Parse tokenizes and classifies a schedule tag value, rejecting unknown
// keys, malformed literals, and schedules that leave any dimension
// unconstrained (spec.md §4.1). cycleMinutes is normally
// DefaultCycleMinutes; it is a parameter so a deployment that changes the
// cycle length (spec.md §4.6) validates minute terms against it.
func Parse(tagValue string, cycleMinutes int) (*Schedule, error) {
	if cycleMinutes <= 0 {
		cycleMinutes = DefaultCycleMinutes
	}
	trimmed := strings.TrimSpace(tagValue)
	sch := newSchedule()
	if trimmed == "" {
		return nil, parseErr(tagValue, "no terms")
	}

	hasRegular := false
	hasFullCompound := false
	regularDay, regularHour, regularMinute := false, false, false

	for _, tok := range tokenSplit.Split(trimmed, -1) {
		if tok == "" {
			continue
		}
		key, value, ok := splitTerm(tok)
		if !ok {
			return nil, parseErr(tagValue, "malformed term %q", tok)
		}
		switch key {
		case "d":
			if value == "_" {
				sch.dayWildcard = true
			} else {
				d, err := parseTwoDigit(value, 1, 31)
				if err != nil {
					return nil, parseErr(tagValue, "bad day-of-month %q: %v", tok, err)
				}
				sch.dayLiterals[d] = true
			}
			hasRegular, regularDay = true, true

		case "u":
			u, err := parseWeekday(value)
			if err != nil {
				return nil, parseErr(tagValue, "bad weekday %q: %v", tok, err)
			}
			sch.weekdayLiterals[u] = true
			hasRegular, regularDay = true, true

		case "H":
			if value == "_" {
				sch.hourWildcard = true
			} else {
				h, err := parseTwoDigit(value, 0, 23)
				if err != nil {
					return nil, parseErr(tagValue, "bad hour %q: %v", tok, err)
				}
				sch.hourLiterals[h] = true
			}
			hasRegular, regularHour = true, true

		case "M":
			m, err := parseMinute(value, cycleMinutes)
			if err != nil {
				return nil, parseErr(tagValue, "bad minute %q: %v", tok, err)
			}
			sch.minuteLiterals[m] = true
			hasRegular, regularMinute = true, true

		case "H:M":
			h, m, err := parseHourMinute(value, cycleMinutes)
			if err != nil {
				return nil, parseErr(tagValue, "bad H:M %q: %v", tok, err)
			}
			sch.hmCompounds[hourMinute{h, m}] = true
			hasRegular, regularHour, regularMinute = true, true, true

		case "uTH:M":
			u, h, m, err := parseWeekdayCompound(value, cycleMinutes)
			if err != nil {
				return nil, parseErr(tagValue, "bad uTH:M %q: %v", tok, err)
			}
			sch.fullCompounds[fullCompound{kind: compoundWeekday, weekday: u, hourMinute: hourMinute{h, m}}] = true
			hasFullCompound = true

		case "dTH:M":
			d, h, m, err := parseDayCompound(value, cycleMinutes)
			if err != nil {
				return nil, parseErr(tagValue, "bad dTH:M %q: %v", tok, err)
			}
			sch.fullCompounds[fullCompound{kind: compoundDayOfMonth, dom: d, hourMinute: hourMinute{h, m}}] = true
			hasFullCompound = true

		default:
			return nil, parseErr(tagValue, "unrecognized key %q", key)
		}
	}

	if !hasRegular && !hasFullCompound {
		return nil, parseErr(tagValue, "no terms")
	}

	// The non-compound ("regular") portion, if any term in it is present,
	// must be self-sufficient across all three dimensions on its own —
	// a full compound term elsewhere cannot complete it. This is what
	// makes "d=_ uTH:M=5T03:00" illegal while "uTH:M=5T03:00" alone is
	// legal (spec.md §8).
	if hasRegular {
		if !regularDay {
			return nil, parseErr(tagValue, "day dimension (d= or u=) unconstrained")
		}
		if !regularHour {
			return nil, parseErr(tagValue, "hour dimension (H= or H:M=) unconstrained")
		}
		if !regularMinute {
			return nil, parseErr(tagValue, "minute dimension (M= or H:M=) unconstrained")
		}
	}

	return sch, nil
}

func splitTerm(tok string) (key, value string, ok bool) {
	// Compound keys contain a literal ':' in the value, so split on the
	// first '=' — keys never contain '='.
	i := strings.IndexByte(tok, '=')
	if i <= 0 || i == len(tok)-1 {
		return "", "", false
	}
	return tok[:i], tok[i+1:], true
}

func parseTwoDigit(value string, lo, hi int) (int, error) {
	if len(value) != 2 {
		return 0, fmt.Errorf("expected 2 digits, got %q", value)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("not numeric: %q", value)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%d out of range [%d, %d]", n, lo, hi)
	}
	return n, nil
}

func parseWeekday(value string) (int, error) {
	if len(value) != 1 {
		return 0, fmt.Errorf("expected 1 digit, got %q", value)
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 || n > 7 {
		return 0, fmt.Errorf("weekday must be 1..7, got %q", value)
	}
	return n, nil
}

func parseMinute(value string, cycleMinutes int) (int, error) {
	m, err := parseTwoDigit(value, 0, 59)
	if err != nil {
		return 0, err
	}
	if m%cycleMinutes != 0 {
		return 0, fmt.Errorf("minute %02d is not a multiple of the cycle length (%d)", m, cycleMinutes)
	}
	return m, nil
}

func parseHourMinute(value string, cycleMinutes int) (hour, minute int, err error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	h, err := parseTwoDigit(parts[0], 0, 23)
	if err != nil {
		return 0, 0, fmt.Errorf("hour: %w", err)
	}
	m, err := parseMinute(parts[1], cycleMinutes)
	if err != nil {
		return 0, 0, fmt.Errorf("minute: %w", err)
	}
	return h, m, nil
}

func parseWeekdayCompound(value string, cycleMinutes int) (weekday, hour, minute int, err error) {
	i := strings.IndexByte(value, 'T')
	if i != 1 {
		return 0, 0, 0, fmt.Errorf("expected <digit>T<HH:MM>, got %q", value)
	}
	u, err := parseWeekday(value[:1])
	if err != nil {
		return 0, 0, 0, err
	}
	h, m, err := parseHourMinute(value[2:], cycleMinutes)
	if err != nil {
		return 0, 0, 0, err
	}
	return u, h, m, nil
}

func parseDayCompound(value string, cycleMinutes int) (dom, hour, minute int, err error) {
	i := strings.IndexByte(value, 'T')
	if i != 2 {
		return 0, 0, 0, fmt.Errorf("expected <DD>T<HH:MM>, got %q", value)
	}
	d, err := parseTwoDigit(value[:2], 1, 31)
	if err != nil {
		return 0, 0, 0, err
	}
	h, m, err := parseHourMinute(value[3:], cycleMinutes)
	if err != nil {
		return 0, 0, 0, err
	}
	return d, h, m, nil
}

// Matches evaluates the cycle-match predicate from spec.md §3 against a
// single cycle instant.
func Matches(sch *Schedule, instant cycleclock.Instant) bool {
	if sch == nil {
		return false
	}
	dom := instant.DayOfMonth()
	dow := instant.ISOWeekday()
	hour := instant.Hour()
	minute := instant.Minute()

	fullCompoundMatch := false
	for fc := range sch.fullCompounds {
		switch fc.kind {
		case compoundDayOfMonth:
			if fc.dom == dom && fc.hour == hour && fc.minute == minute {
				fullCompoundMatch = true
			}
		case compoundWeekday:
			if fc.weekday == dow && fc.hour == hour && fc.minute == minute {
				fullCompoundMatch = true
			}
		}
		if fullCompoundMatch {
			break
		}
	}

	hmCompoundMatch := sch.hmCompounds[hourMinute{hour, minute}]

	dayDirect := sch.dayWildcard || sch.dayLiterals[dom] || sch.weekdayLiterals[dow]
	hourDirect := sch.hourWildcard || sch.hourLiterals[hour]
	minuteDirect := sch.minuteLiterals[minute]

	dayOK := dayDirect || fullCompoundMatch
	hourOK := hourDirect || hmCompoundMatch || fullCompoundMatch
	minuteOK := minuteDirect || hmCompoundMatch || fullCompoundMatch

	return dayOK && hourOK && minuteOK
}
