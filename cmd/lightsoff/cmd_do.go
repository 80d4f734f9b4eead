package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sqlxpert/lights-off-aws/internal/doer"
)

var doCmd = &cobra.Command{
	Use:   "do",
	Short: "Run the Doer worker pool: drain the operation queue until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		pool := &doer.Pool{
			Table:             rt.table,
			Clients:           rt.clients,
			RDB:               rt.rdb,
			Recorder:          rt.repo,
			QueueName:         rt.queueName(),
			WorkerID:          uuid.NewString(),
			Concurrency:       rt.cfg.DoerConcurrency,
			CycleLength:       rt.cfg.CycleLength,
			Expiration:        rt.cfg.ExpirationThreshold,
			MsgTimeout:        rt.cfg.DoTimeout,
			VisibilityTimeout: rt.cfg.QueueVisibilityTimeout,
			CopyTags:          rt.cfg.CopyTags,
			Log:               rt.log,
		}

		rt.log.Info("do.starting", map[string]any{"worker_id": pool.WorkerID, "concurrency": pool.Concurrency})
		pool.Run(ctx)
		return nil
	},
}
