package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationRequest_MarshalUnmarshalRoundTrip(t *testing.T) {
	req := OperationRequest{
		CycleStart: "2026-08-03T03:00:00Z",
		Service:    "ec2",
		RsrcType:   "Instance",
		RsrcID:     "i-0123456789abcdef0",
		Op:         string(OpStop),
		Tags:       Tags{{Key: "Name", Value: "web-1"}},
		CopyTags:   true,
	}
	payload, err := req.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalOperationRequest(payload)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestUnmarshalOperationRequest_RejectsGarbage(t *testing.T) {
	_, err := UnmarshalOperationRequest([]byte("not json"))
	assert.Error(t, err)
}
