package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var tasks []string

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Process every document dropped into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, logger, err := initApp(flags)
			if logger != nil {
				defer logger.Sync()
			}
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application.ProbeService(ctx)
			return application.Watch(ctx, args[0], tasks)
		},
	}

	cmd.Flags().StringSliceVarP(&tasks, "task", "t", nil, "task to run, repeatable; defaults to pipeline.tasks")
	return cmd
}
