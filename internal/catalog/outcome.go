package catalog

import (
	"errors"

	"github.com/aws/smithy-go"
)

// OutcomeKind is the tagged-result sum type Design Notes call for in
// place of the source's exception-driven control flow (spec.md §9):
// "Ok | Benign | Transient | Permanent". The Doer's ack/retry/dead-letter
// decision is a pure function of this value (spec.md §7).
type OutcomeKind int

const (
	OutcomeOk OutcomeKind = iota
	OutcomeBenign
	OutcomeTransient
	OutcomePermanent
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOk:
		return "ok"
	case OutcomeBenign:
		return "benign"
	case OutcomeTransient:
		return "transient"
	case OutcomePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Outcome is the result of one provider API invocation: a kind plus the
// detail a log entry or dead-letter record should carry.
type Outcome struct {
	Kind   OutcomeKind
	Detail string
}

func Ok(detail string) Outcome        { return Outcome{Kind: OutcomeOk, Detail: detail} }
func Benign(detail string) Outcome    { return Outcome{Kind: OutcomeBenign, Detail: detail} }
func Transient(detail string) Outcome { return Outcome{Kind: OutcomeTransient, Detail: detail} }
func Permanent(detail string) Outcome { return Outcome{Kind: OutcomePermanent, Detail: detail} }

// benignErrorCodes are provider error codes meaning "already in the
// desired state" or "duplicate of a prior idempotent request" — the
// source's boto3_success()-adjacent tolerance list, generalized across
// services (spec.md §7: "Operation 'benign' error").
var benignErrorCodes = map[string]bool{
	"IncorrectInstanceState":          true, // e.g. stop on an already-stopped instance
	"InvalidInstanceState":            true,
	"InvalidStateTransitionException": true,
	"InvalidDBInstanceState":          true,
	"InvalidDBClusterStateFault":      true,
	"ResourceAlreadyExistsException":  true, // duplicate backup name from a retried request
	"DBSnapshotAlreadyExistsFault":    true,
	"ImageAlreadyExists":              true,
}

// throttlingErrorCodes are the AWS error codes APIs return for
// rate-limiting, all of which arrive over HTTP 400 rather than 429 or
// 5xx (spec.md §7: "Operation transient error (throttling, 5xx,
// timeout)" must redeliver, not dead-letter).
var throttlingErrorCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"RequestLimitExceeded":                   true,
	"TooManyRequestsException":               true,
	"ProvisionedThroughputExceededException": true,
	"SlowDown":                               true,
}

// ClassifyError turns a provider SDK error into an Outcome. nil in,
// Outcome{OutcomeOk} out. Any non-nil error that does not carry a
// smithy.APIError is treated as Transient, since it is typically a
// network- or context-level failure rather than a provider rejection.
func ClassifyError(err error) Outcome {
	if err == nil {
		return Ok("")
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return Transient(err.Error())
	}

	code := apiErr.ErrorCode()
	if benignErrorCodes[code] {
		return Benign(apiErr.ErrorMessage())
	}
	if throttlingErrorCodes[code] {
		return Transient(apiErr.ErrorMessage())
	}

	var httpErr interface{ HTTPStatusCode() int }
	if errors.As(err, &httpErr) {
		switch status := httpErr.HTTPStatusCode(); {
		case status == 429 || status >= 500:
			return Transient(apiErr.ErrorMessage())
		case status >= 400:
			return Permanent(apiErr.ErrorMessage())
		}
	}

	if apiErr.ErrorFault() == smithy.FaultServer {
		return Transient(apiErr.ErrorMessage())
	}

	// Default to Permanent: authorization and validation errors (the
	// common case for a misconfigured catalog entry or a stale tag) must
	// not be retried into an infinite loop (spec.md §7).
	return Permanent(apiErr.ErrorMessage())
}
