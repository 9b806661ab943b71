package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gmsas95/docrefine/internal/pipeline"
	"github.com/gmsas95/docrefine/internal/refine"
	"github.com/gmsas95/docrefine/internal/task"
)

func newProcessCmd(flags *globalFlags) *cobra.Command {
	var (
		tasks  []string
		output string
		render bool
	)

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Run OCR and refinement on one document",
		Example: `  docrefine process factura.pdf
  docrefine process scan.jpg --task clean --task extract --output out/scan.yaml
  docrefine process scan.jpg --task summarize --render`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, logger, err := initApp(flags)
			if logger != nil {
				defer logger.Sync()
			}
			if err != nil {
				return err
			}
			defer application.Close()

			ctx := cmd.Context()
			application.ProbeService(ctx)

			run, record, err := application.ProcessDocument(ctx, args[0], tasks, output)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", run.OutputPath)
			if render {
				return renderSummary(cmd, record)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&tasks, "task", "t", nil,
		fmt.Sprintf("task to run, repeatable (%v); defaults to pipeline.tasks", task.Names()))
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (.json, .yaml or .yml)")
	cmd.Flags().BoolVar(&render, "render", false, "render the summarize result as markdown")

	return cmd
}

func renderSummary(cmd *cobra.Command, record *pipeline.Record) error {
	text, ok := record.Get(pipeline.KeyFor(task.Summarize.String()))
	if !ok || refine.IsSoftError(text) {
		return nil
	}

	out := cmd.OutOrStdout()
	if f, isFile := out.(*os.File); !isFile || !term.IsTerminal(int(f.Fd())) {
		fmt.Fprintln(out, text)
		return nil
	}

	width := 100
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		width = w - 4
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	rendered, err := r.Render(text)
	if err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}
	fmt.Fprint(out, rendered)
	return nil
}
