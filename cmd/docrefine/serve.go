package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the HTTP API. Documents are only accepted from server.input_dir
and results are written inside output.dir.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, logger, err := initApp(flags)
			if logger != nil {
				defer logger.Sync()
			}
			if err != nil {
				return err
			}
			defer application.Close()

			application.ProbeService(context.Background())
			return application.RunServer()
		},
	}
}
