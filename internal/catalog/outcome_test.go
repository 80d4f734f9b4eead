package catalog

import (
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

// fakeAPIError implements smithy.APIError plus the optional
// HTTPStatusCode() interface ClassifyError checks for, so tests can
// exercise the status-code and error-code branches without depending on
// a real AWS SDK response.
type fakeAPIError struct {
	code       string
	message    string
	statusCode int
}

func (e fakeAPIError) ErrorCode() string             { return e.code }
func (e fakeAPIError) ErrorMessage() string          { return e.message }
func (e fakeAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }
func (e fakeAPIError) Error() string                 { return e.code + ": " + e.message }
func (e fakeAPIError) HTTPStatusCode() int           { return e.statusCode }

func TestClassifyError_ThrottlingCodeIsTransientDespite400(t *testing.T) {
	err := fakeAPIError{code: "ThrottlingException", message: "Rate exceeded", statusCode: 400}
	outcome := ClassifyError(err)
	assert.Equal(t, OutcomeTransient, outcome.Kind)
}

func TestClassifyError_RequestLimitExceededIsTransient(t *testing.T) {
	err := fakeAPIError{code: "RequestLimitExceeded", message: "limit exceeded", statusCode: 400}
	outcome := ClassifyError(err)
	assert.Equal(t, OutcomeTransient, outcome.Kind)
}

func TestClassifyError_OrdinaryValidationErrorIsPermanent(t *testing.T) {
	err := fakeAPIError{code: "ValidationError", message: "bad parameter", statusCode: 400}
	outcome := ClassifyError(err)
	assert.Equal(t, OutcomePermanent, outcome.Kind)
}

func TestClassifyError_ServerErrorIsTransient(t *testing.T) {
	err := fakeAPIError{code: "InternalFailure", message: "oops", statusCode: 500}
	outcome := ClassifyError(err)
	assert.Equal(t, OutcomeTransient, outcome.Kind)
}

func TestClassifyError_BenignCodeWinsOverStatus(t *testing.T) {
	err := fakeAPIError{code: "IncorrectInstanceState", message: "already stopped", statusCode: 400}
	outcome := ClassifyError(err)
	assert.Equal(t, OutcomeBenign, outcome.Kind)
}
