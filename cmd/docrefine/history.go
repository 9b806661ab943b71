package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/gmsas95/docrefine/internal/store"
)

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, logger, err := initApp(flags)
			if logger != nil {
				defer logger.Sync()
			}
			if err != nil {
				return err
			}
			defer application.Close()

			runs, err := application.Store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show (0 for all)")
	return cmd
}

func printRuns(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs yet.")
		return
	}

	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("WHEN", "DOCUMENT", "OUTPUT", "TASKS", "CONF", "ERRORS", "TIME").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})

	for _, r := range runs {
		cached := ""
		if r.CacheHit {
			cached = " (cached)"
		}
		t.Row(
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			filepath.Base(r.SourcePath),
			r.OutputPath,
			r.Tasks,
			fmt.Sprintf("%.2f", r.Confidence),
			strconv.Itoa(r.SoftErrors),
			(time.Duration(r.DurationMs)*time.Millisecond).String()+cached,
		)
	}

	fmt.Fprintln(w, t.Render())
}
