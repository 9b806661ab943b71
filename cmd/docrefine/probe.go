package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newProbeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that the model service is reachable and has the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, logger, err := initApp(flags)
			if logger != nil {
				defer logger.Sync()
			}
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			models, err := application.Refiner.Probe(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Service: %s (%d models)\n", application.Config.Service.BaseURL, len(models))
			if !application.Refiner.HasModel(models) {
				return fmt.Errorf("model %s not available; found %v", application.Refiner.Model(), models)
			}
			fmt.Fprintf(out, "Model:   %s ok\n", application.Refiner.Model())
			return nil
		},
	}
}
