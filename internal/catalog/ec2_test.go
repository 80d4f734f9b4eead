package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlxpert/lights-off-aws/internal/domain"
)

type fakeEC2 struct {
	startErr, stopErr, rebootErr, imageErr, snapshotErr error
	stopInput                                           *ec2.StopInstancesInput
	imageInput                                          *ec2.CreateImageInput
}

func (f *fakeEC2) DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return &ec2.DescribeInstancesOutput{}, nil
}
func (f *fakeEC2) DescribeVolumes(ctx context.Context, in *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
	return &ec2.DescribeVolumesOutput{}, nil
}
func (f *fakeEC2) StartInstances(ctx context.Context, in *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error) {
	return &ec2.StartInstancesOutput{}, f.startErr
}
func (f *fakeEC2) StopInstances(ctx context.Context, in *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
	f.stopInput = in
	return &ec2.StopInstancesOutput{}, f.stopErr
}
func (f *fakeEC2) RebootInstances(ctx context.Context, in *ec2.RebootInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RebootInstancesOutput, error) {
	return &ec2.RebootInstancesOutput{}, f.rebootErr
}
func (f *fakeEC2) CreateImage(ctx context.Context, in *ec2.CreateImageInput, optFns ...func(*ec2.Options)) (*ec2.CreateImageOutput, error) {
	f.imageInput = in
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	id := "ami-test"
	return &ec2.CreateImageOutput{ImageId: &id}, nil
}
func (f *fakeEC2) CreateSnapshot(ctx context.Context, in *ec2.CreateSnapshotInput, optFns ...func(*ec2.Options)) (*ec2.CreateSnapshotOutput, error) {
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	id := "snap-test"
	return &ec2.CreateSnapshotOutput{SnapshotId: &id}, nil
}

func TestEC2Instance_InvokeStart_Ok(t *testing.T) {
	fake := &fakeEC2{}
	clients := NewClients(fake, nil, nil, 5)
	entry := ec2InstanceEntry()
	desc, ok := entry.Operations[domain.OpStart]
	require.True(t, ok)

	outcome := desc.Invoke(context.Background(), clients, Record{RsrcID: "i-123"})
	assert.Equal(t, OutcomeOk, outcome.Kind)
}

func TestEC2Instance_InvokeHibernate_SetsHibernateFlag(t *testing.T) {
	fake := &fakeEC2{}
	clients := NewClients(fake, nil, nil, 5)
	entry := ec2InstanceEntry()
	desc, ok := entry.Operations[domain.OpHibernate]
	require.True(t, ok)

	outcome := desc.Invoke(context.Background(), clients, Record{RsrcID: "i-123"})
	assert.Equal(t, OutcomeOk, outcome.Kind)
	require.NotNil(t, fake.stopInput.Hibernate)
	assert.True(t, *fake.stopInput.Hibernate)
}

func TestEC2Instance_InvokeStop_TransientOnProviderError(t *testing.T) {
	fake := &fakeEC2{stopErr: errors.New("network blip")}
	clients := NewClients(fake, nil, nil, 5)
	entry := ec2InstanceEntry()
	desc := entry.Operations[domain.OpStop]

	outcome := desc.Invoke(context.Background(), clients, Record{RsrcID: "i-123"})
	assert.Equal(t, OutcomeTransient, outcome.Kind)
}

func TestEC2Instance_BuildChild_TagsBothImageAndSnapshot(t *testing.T) {
	fake := &fakeEC2{}
	clients := NewClients(fake, nil, nil, 5)
	entry := ec2InstanceEntry()
	desc := entry.Operations[domain.OpBackup]

	rec := Record{RsrcID: "i-123", NameFromTag: "web-1"}
	req := domain.OperationRequest{Op: string(domain.OpBackup), CycleStart: "2026-08-03T03:00:00Z", CopyTags: true,
		Tags: domain.Tags{{Key: "env", Value: "prod"}}}

	result, outcome := desc.BuildChild(context.Background(), clients, rec, req, "zsched-web-1-abc")
	require.Equal(t, OutcomeOk, outcome.Kind)
	assert.Equal(t, "ami-test", result.ChildID)
	require.Len(t, fake.imageInput.TagSpecifications, 2)
}
