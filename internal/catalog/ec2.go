package catalog

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/sqlxpert/lights-off-aws/internal/domain"
	"github.com/sqlxpert/lights-off-aws/internal/naming"
)

func ec2TagsToDomain(tags []types.Tag) domain.Tags {
	out := make(domain.Tags, 0, len(tags))
	for _, t := range tags {
		out = append(out, domain.Tag{Key: aws.ToString(t.Key), Value: aws.ToString(t.Value)})
	}
	return out
}

func domainTagsToEC2(tags domain.Tags) []types.Tag {
	out := make([]types.Tag, 0, len(tags))
	for _, t := range tags {
		out = append(out, types.Tag{Key: aws.String(t.Key), Value: aws.String(t.Value)})
	}
	return out
}

// ec2InstanceEntry grounds on lights_off_aws_find_do.py's
// SPECS["ec2"]["Instance"]: instances eligible for scheduling are
// running, stopping, or stopped (a terminated instance has nothing left
// to schedule); ops are start/stop/hibernate/reboot/backup/reboot-backup.
func ec2InstanceEntry() Entry {
	filters := []Filter{
		{Name: "instance-state-name", Values: []string{"running", "stopping", "stopped"}},
	}

	list := func(ctx context.Context, c *Clients) (<-chan Record, <-chan error) {
		out := make(chan Record)
		errc := make(chan error, 1)
		go func() {
			defer close(out)
			defer close(errc)

			sdkFilters := make([]types.Filter, 0, len(filters))
			for _, f := range filters {
				sdkFilters = append(sdkFilters, types.Filter{Name: aws.String(f.Name), Values: f.Values})
			}

			paginator := ec2.NewDescribeInstancesPaginator(c.EC2, &ec2.DescribeInstancesInput{Filters: sdkFilters})
			for paginator.HasMorePages() {
				if err := c.wait(ctx, "ec2"); err != nil {
					errc <- err
					return
				}
				page, err := paginator.NextPage(ctx)
				if err != nil {
					errc <- err
					return
				}
				for _, res := range page.Reservations {
					for _, inst := range res.Instances {
						tags := ec2TagsToDomain(inst.Tags)
						name, _ := tags.Get(domain.TagKeyName)
						rec := Record{
							RsrcID:      aws.ToString(inst.InstanceId),
							NameFromTag: name,
							Tags:        tags,
							State:       string(inst.State.Name),
						}
						select {
						case out <- rec:
						case <-ctx.Done():
							errc <- ctx.Err()
							return
						}
					}
				}
			}
		}()
		return out, errc
	}

	invokeStart := func(ctx context.Context, c *Clients, rec Record) Outcome {
		ctx, cancel := withOpTimeout(ctx)
		defer cancel()
		var err error
		rErr := rateLimitedCall(ctx, c, "ec2", func(ctx context.Context) error {
			_, err = c.EC2.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{rec.RsrcID}})
			return err
		})
		if rErr != nil {
			return ClassifyError(rErr)
		}
		return ClassifyError(err)
	}

	invokeStop := func(ctx context.Context, c *Clients, rec Record) Outcome {
		ctx, cancel := withOpTimeout(ctx)
		defer cancel()
		var err error
		rErr := rateLimitedCall(ctx, c, "ec2", func(ctx context.Context) error {
			_, err = c.EC2.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{rec.RsrcID}})
			return err
		})
		if rErr != nil {
			return ClassifyError(rErr)
		}
		return ClassifyError(err)
	}

	invokeHibernate := func(ctx context.Context, c *Clients, rec Record) Outcome {
		ctx, cancel := withOpTimeout(ctx)
		defer cancel()
		var err error
		rErr := rateLimitedCall(ctx, c, "ec2", func(ctx context.Context) error {
			_, err = c.EC2.StopInstances(ctx, &ec2.StopInstancesInput{
				InstanceIds: []string{rec.RsrcID},
				Hibernate:   aws.Bool(true),
			})
			return err
		})
		if rErr != nil {
			return ClassifyError(rErr)
		}
		return ClassifyError(err)
	}

	invokeReboot := func(ctx context.Context, c *Clients, rec Record) Outcome {
		ctx, cancel := withOpTimeout(ctx)
		defer cancel()
		var err error
		rErr := rateLimitedCall(ctx, c, "ec2", func(ctx context.Context) error {
			_, err = c.EC2.RebootInstances(ctx, &ec2.RebootInstancesInput{InstanceIds: []string{rec.RsrcID}})
			return err
		})
		if rErr != nil {
			return ClassifyError(rErr)
		}
		return ClassifyError(err)
	}

	// buildImageChild is shared by backup and reboot-backup: both create
	// an EC2 image, differing only in NoReboot (SPEC_FULL §12). It tags
	// both the image and its underlying snapshot in one TagSpecifications
	// call, the way create_image's op_kwargs_update_fn does in the
	// original — a Console page may show only the image or only the
	// snapshot, so both need Name/Description set directly.
	buildImageChild := func(noReboot bool) func(ctx context.Context, c *Clients, rec Record, req domain.OperationRequest, childName string) (ChildResult, Outcome) {
		return func(ctx context.Context, c *Clients, rec Record, req domain.OperationRequest, childName string) (ChildResult, Outcome) {
			ctx, cancel := withOpTimeout(ctx)
			defer cancel()
			childTags := domainTagsToEC2(backupChildTags(rec, req, childName, req.CopyTags))
			var out *ec2.CreateImageOutput
			var err error
			rErr := rateLimitedCall(ctx, c, "ec2", func(ctx context.Context) error {
				out, err = c.EC2.CreateImage(ctx, &ec2.CreateImageInput{
					InstanceId:  aws.String(rec.RsrcID),
					Name:        aws.String(childName),
					Description: aws.String(childName),
					NoReboot:    aws.Bool(noReboot),
					TagSpecifications: []types.TagSpecification{
						{ResourceType: types.ResourceTypeImage, Tags: childTags},
						{ResourceType: types.ResourceTypeSnapshot, Tags: childTags},
					},
				})
				return err
			})
			if rErr != nil {
				return ChildResult{}, ClassifyError(rErr)
			}
			if err != nil {
				return ChildResult{}, ClassifyError(err)
			}
			return ChildResult{ChildID: aws.ToString(out.ImageId), ChildName: childName}, Ok("")
		}
	}

	return Entry{
		Service:  "ec2",
		RsrcType: "Instance",
		DescribeFilters: filters,
		List:     list,
		Operations: map[domain.Operation]OperationDescriptor{
			domain.OpStart: {Op: domain.OpStart, APIVerb: "StartInstances", Invoke: invokeStart},
			domain.OpStop:  {Op: domain.OpStop, APIVerb: "StopInstances", Invoke: invokeStop},
			domain.OpHibernate: {Op: domain.OpHibernate, APIVerb: "StopInstances(Hibernate)", Invoke: invokeHibernate},
			domain.OpReboot: {Op: domain.OpReboot, APIVerb: "RebootInstances", Invoke: invokeReboot},
			domain.OpBackup: {
				Op: domain.OpBackup, APIVerb: "CreateImage", NeedsChild: true,
				Invoke:     func(ctx context.Context, c *Clients, rec Record) Outcome { return Ok("") },
				BuildChild: buildImageChild(true),
				Constraint: naming.EC2Image,
			},
			domain.OpRebootBackup: {
				Op: domain.OpRebootBackup, APIVerb: "CreateImage(NoReboot=false)", NeedsChild: true,
				Invoke:     func(ctx context.Context, c *Clients, rec Record) Outcome { return Ok("") },
				BuildChild: buildImageChild(false),
				Constraint: naming.EC2Image,
			},
		},
	}
}

// ec2VolumeEntry grounds on SPECS["ec2"]["Volume"]: only backup applies
// (an EBS volume cannot be started/stopped/rebooted independently of its
// attachment).
func ec2VolumeEntry() Entry {
	filters := []Filter{
		{Name: "status", Values: []string{"available", "in-use"}},
	}

	list := func(ctx context.Context, c *Clients) (<-chan Record, <-chan error) {
		out := make(chan Record)
		errc := make(chan error, 1)
		go func() {
			defer close(out)
			defer close(errc)

			sdkFilters := make([]types.Filter, 0, len(filters))
			for _, f := range filters {
				sdkFilters = append(sdkFilters, types.Filter{Name: aws.String(f.Name), Values: f.Values})
			}

			paginator := ec2.NewDescribeVolumesPaginator(c.EC2, &ec2.DescribeVolumesInput{Filters: sdkFilters})
			for paginator.HasMorePages() {
				if err := c.wait(ctx, "ec2"); err != nil {
					errc <- err
					return
				}
				page, err := paginator.NextPage(ctx)
				if err != nil {
					errc <- err
					return
				}
				for _, vol := range page.Volumes {
					tags := ec2TagsToDomain(vol.Tags)
					name, _ := tags.Get(domain.TagKeyName)
					rec := Record{
						RsrcID:      aws.ToString(vol.VolumeId),
						NameFromTag: name,
						Tags:        tags,
						State:       string(vol.State),
					}
					select {
					case out <- rec:
					case <-ctx.Done():
						errc <- ctx.Err()
						return
					}
				}
			}
		}()
		return out, errc
	}

	buildSnapshotChild := func(ctx context.Context, c *Clients, rec Record, req domain.OperationRequest, childName string) (ChildResult, Outcome) {
		ctx, cancel := withOpTimeout(ctx)
		defer cancel()
		childTags := domainTagsToEC2(backupChildTags(rec, req, childName, req.CopyTags))
		var out *ec2.CreateSnapshotOutput
		var err error
		rErr := rateLimitedCall(ctx, c, "ec2", func(ctx context.Context) error {
			out, err = c.EC2.CreateSnapshot(ctx, &ec2.CreateSnapshotInput{
				VolumeId:    aws.String(rec.RsrcID),
				Description: aws.String(childName),
				TagSpecifications: []types.TagSpecification{
					{ResourceType: types.ResourceTypeSnapshot, Tags: childTags},
				},
			})
			return err
		})
		if rErr != nil {
			return ChildResult{}, ClassifyError(rErr)
		}
		if err != nil {
			return ChildResult{}, ClassifyError(err)
		}
		return ChildResult{ChildID: aws.ToString(out.SnapshotId), ChildName: childName}, Ok("")
	}

	return Entry{
		Service:  "ec2",
		RsrcType: "Volume",
		DescribeFilters: filters,
		List:     list,
		Operations: map[domain.Operation]OperationDescriptor{
			domain.OpBackup: {
				Op: domain.OpBackup, APIVerb: "CreateSnapshot", NeedsChild: true,
				Invoke:     func(ctx context.Context, c *Clients, rec Record) Outcome { return Ok("") },
				BuildChild: buildSnapshotChild,
				Constraint: naming.EC2Snapshot,
			},
		},
	}
}
