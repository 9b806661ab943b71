package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gmsas95/docrefine/internal/batch"
)

func newBatchCmd(flags *globalFlags) *cobra.Command {
	var (
		listFile string
		report   string
		tasks    []string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "batch [file...]",
		Short: "Process several documents and report the outcome of each",
		Example: `  docrefine batch scans/*.png
  docrefine batch --list docs.txt --report report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listFile == "" && len(args) == 0 {
				return fmt.Errorf("give documents as arguments or with --list")
			}

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

			cfg := batch.DefaultConfig()
			cfg.Timeout = timeout
			processor := batch.NewProcessor(application, cfg, logger)

			items := batch.ItemsFromPaths(args)
			if listFile != "" {
				listed, err := processor.LoadInputFile(listFile)
				if err != nil {
					return err
				}
				items = append(items, listed...)
			}

			result := processor.Process(ctx, items, tasks)
			if report != "" {
				if err := batch.SaveReport(report, result); err != nil {
					return fmt.Errorf("failed to save report: %w", err)
				}
			}

			fmt.Fprint(cmd.OutOrStdout(), result.Summary())
			if result.Failed > 0 {
				return fmt.Errorf("%d of %d documents failed", result.Failed, result.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&listFile, "list", "l", "", "file listing documents (.txt, .json or .jsonl)")
	cmd.Flags().StringVarP(&report, "report", "r", "", "write a report (.json or text)")
	cmd.Flags().StringSliceVarP(&tasks, "task", "t", nil, "task to run, repeatable; defaults to pipeline.tasks")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-document deadline (0 for none)")
	return cmd
}
