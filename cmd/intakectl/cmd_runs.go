package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/school-intake-api/internal/models"
	"github.com/noah-isme/school-intake-api/internal/repository"
	"github.com/noah-isme/school-intake-api/internal/service"
	"github.com/noah-isme/school-intake-api/pkg/database"
)

var (
	runsStatus string
	runsSchool string
	runsSince  string
	runsLimit  int
	runsFormat string
	runsOutput string
	pruneOlder time.Duration
)

// runsCmd groups ledger maintenance commands.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect and maintain the submission run ledger",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent submission runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export submission runs as CSV or PDF",
	Args:  cobra.NoArgs,
	RunE:  runRunsExport,
}

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than the retention window",
	Args:  cobra.NoArgs,
	RunE:  runRunsPrune,
}

func init() {
	for _, c := range []*cobra.Command{runsListCmd, runsExportCmd} {
		c.Flags().StringVar(&runsStatus, "status", "", "SUCCEEDED or FAILED")
		c.Flags().StringVar(&runsSchool, "school", "", "School name contains")
		c.Flags().StringVar(&runsSince, "since", "", "Started on or after (YYYY-MM-DD or RFC3339)")
		c.Flags().IntVar(&runsLimit, "limit", 50, "Maximum rows")
	}
	runsExportCmd.Flags().StringVar(&runsFormat, "format", "csv", "csv or pdf")
	runsExportCmd.Flags().StringVarP(&runsOutput, "output", "o", "", "Output file (default submission-runs.<ext>)")
	runsPruneCmd.Flags().DurationVar(&pruneOlder, "older-than", 90*24*time.Hour, "Retention window")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsPruneCmd)
}

// openRuns connects to the ledger. The returned func closes the connection.
func openRuns(ctx context.Context) (*service.RunService, func(), error) {
	if !cfg.Ledger.Enabled {
		return nil, nil, fmt.Errorf("submission ledger disabled; set ENABLE_LEDGER=true")
	}
	db, err := database.Open(cfg.Ledger)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	runs := service.NewRunService(repository.NewSubmissionRunRepository(db), log)
	return runs, func() { _ = db.Close() }, nil
}

func runFilter() (models.SubmissionRunFilter, error) {
	filter := models.SubmissionRunFilter{
		Status:     models.RunStatus(strings.ToUpper(strings.TrimSpace(runsStatus))),
		SchoolName: strings.TrimSpace(runsSchool),
		Limit:      runsLimit,
	}
	if runsSince != "" {
		since, err := parseSince(runsSince)
		if err != nil {
			return filter, err
		}
		filter.Since = &since
	}
	return filter, nil
}

func parseSince(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--since must be YYYY-MM-DD or RFC3339")
	}
	return t, nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	filter, err := runFilter()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	runs, closeFn, err := openRuns(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	rows, total, err := runs.List(ctx, filter)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tSCHOOL\tCHILDREN\tFAILURES")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%d\n",
			r.ID,
			r.StartedAt.UTC().Format(time.RFC3339),
			r.Status,
			r.SchoolName,
			r.ChildrenCreated,
			r.TeacherCount,
			r.Stages.Failures(),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d runs\n", len(rows), total)
	return nil
}

func runRunsExport(cmd *cobra.Command, args []string) error {
	filter, err := runFilter()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	runs, closeFn, err := openRuns(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	data, exporter, err := runs.Export(ctx, filter, runsFormat)
	if err != nil {
		return err
	}
	path := runsOutput
	if path == "" {
		path = "submission-runs." + exporter.Extension()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	log.Info("runs exported", zap.String("path", path), zap.Int("bytes", len(data)))
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runRunsPrune(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	runs, closeFn, err := openRuns(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	removed, err := runs.Prune(ctx, pruneOlder)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d runs\n", removed)
	return nil
}
