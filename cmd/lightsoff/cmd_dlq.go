package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqlxpert/lights-off-aws/internal/queue"
)

var dlqReplayCount int64

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and replay dead-lettered operation requests",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered messages, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		items, err := queue.ListDLQ(ctx, rt.rdb, rt.queueName(), 100)
		if err != nil {
			return err
		}
		for _, item := range items {
			fmt.Println(item)
		}
		return nil
	},
}

var dlqReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Move dead-lettered messages back onto the ready list",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		moved, err := queue.ReplayDLQ(ctx, rt.rdb, rt.queueName(), dlqReplayCount)
		if err != nil {
			return err
		}
		fmt.Printf("replayed %d message(s)\n", moved)
		return nil
	},
}

func init() {
	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqReplayCmd)
	dlqReplayCmd.Flags().Int64Var(&dlqReplayCount, "count", 1, "number of dead-lettered messages to replay")
}
