package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gmsas95/docrefine/internal/app"
	"github.com/gmsas95/docrefine/internal/config"
)

type globalFlags struct {
	configPath string
	dataDir    string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "docrefine",
		Short: "OCR documents and refine the text with a vision model",
		Long: `docrefine extracts text from scanned images and PDFs with Tesseract,
then asks a vision-capable model to correct it against the original image.
Each run writes one JSON (or YAML) record with the OCR output and one entry
per task.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadEnvFiles()
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&flags.dataDir, "data", "", "path to data directory")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newProcessCmd(flags),
		newProbeCmd(flags),
		newHistoryCmd(flags),
		newBatchCmd(flags),
		newWatchCmd(flags),
		newServeCmd(flags),
		newVersionCmd(),
	)

	return root
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

// initApp loads configuration and wires the application. The caller closes
// the returned app and syncs the logger.
func initApp(flags *globalFlags) (*app.App, *zap.Logger, error) {
	logger, err := newLogger(flags.verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load(flags.configPath, flags.dataDir)
	if err != nil {
		return nil, logger, err
	}

	application, err := app.New(cfg, logger, version)
	if err != nil {
		return nil, logger, err
	}

	logger.Debug("Starting docrefine",
		zap.String("version", version),
		zap.String("model", cfg.Service.Model),
		zap.Strings("languages", cfg.OCR.Languages),
	)
	return application, logger, nil
}
