package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lightsoff",
	Short: "Tag-driven start/stop/backup scheduler for AWS resources",
	Long: `lightsoff enumerates tagged AWS resources, matches their
sched-* schedule tags against the current ten-minute cycle, and
dispatches the matching start/stop/hibernate/reboot/backup operations
through a Redis-backed queue.`,
}

func init() {
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(doCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dlqCmd)
}
