package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sqlxpert/lights-off-aws/internal/finder"
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Run one Finder pass: scan tagged resources and enqueue matching operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		findCtx, findCancel := context.WithTimeout(ctx, rt.cfg.FindTimeout)
		defer findCancel()

		f := &finder.Finder{
			Table:       rt.table,
			Clients:     rt.clients,
			RDB:         rt.rdb,
			Lease:       rt.lease,
			QueueName:   rt.queueName(),
			CycleLength: rt.cfg.CycleLength,
			MaxBytes:    rt.cfg.QueueMessageBytesMax,
			CopyTags:    rt.cfg.CopyTags,
			LeaseTTL:    rt.cfg.DispatchLeaseTTL,
			Log:         rt.log,
		}

		if !rt.cfg.Enable {
			rt.log.Info("find.disabled", nil)
			return nil
		}

		stats, err := f.Run(findCtx)
		if err != nil {
			return err
		}
		rt.log.Info("find.done", stats)
		return nil
	},
}
