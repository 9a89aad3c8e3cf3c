package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/wgyd/mereport/internal/config"
	"github.com/wgyd/mereport/internal/db"
	"github.com/wgyd/mereport/internal/inputs"
	"github.com/wgyd/mereport/internal/repository"
)

// newTestEnv lays out a full working directory: registry workbook, one
// period of submission files, a migrated sqlite store, and output dirs.
func newTestEnv(t *testing.T) (config.Config, *db.Conn) {
	t.Helper()
	root := t.TempDir()

	cfg := config.Config{
		DB:             db.DefaultConfig(),
		SubmissionsDir: filepath.Join(root, "submissions"),
		RegistryPath:   filepath.Join(root, "registry.xlsx"),
		ExceptionsDir:  filepath.Join(root, "out", "exceptions"),
		BriefsDir:      filepath.Join(root, "out", "briefs"),
		ExportsDir:     filepath.Join(root, "out", "exports"),
	}
	cfg.DB.Path = filepath.Join(root, "store.sqlite")

	writeRegistry(t, cfg.RegistryPath)

	conn, err := db.Open(context.Background(), cfg.DB)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.Migrate())

	return cfg, conn
}

func writeRegistry(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	_, err := f.NewSheet(inputs.RegistrySheet)
	require.NoError(t, err)
	require.NoError(t, f.DeleteSheet("Sheet1"))

	rows := [][]any{
		{"indicator_code", "indicator_name", "baseline", "target"},
		{"X", "Indicator X", 0, 100},
	}
	for i, row := range rows {
		for j, cell := range row {
			ref, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(inputs.RegistrySheet, ref, cell))
		}
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
}

func writeSubmission(t *testing.T, cfg config.Config, month, name, content string) {
	t.Helper()
	dir := filepath.Join(cfg.SubmissionsDir, month)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func seedPeriod(t *testing.T, cfg config.Config) {
	t.Helper()
	writeSubmission(t, cfg, "2025-01", "team_a.csv",
		"month,team,indicator,region,reported_value,submission_date\n"+
			"2025-01,Team A,X,NORTH,30,2025-01-31\n"+
			"2025-01,Team A,X,South,20,2025-1-20\n")
	writeSubmission(t, cfg, "2025-01", "team_b.csv",
		"month,indicator,value\n"+
			"2025-01,X,abc\n")
}

func TestRunPeriodEndToEnd(t *testing.T) {
	cfg, conn := newTestEnv(t)
	seedPeriod(t, cfg)
	ctx := context.Background()

	runner := NewRunner(cfg, conn, slog.New(slog.DiscardHandler))
	summary, err := runner.RunPeriod(ctx, "2025-01")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.FilesRead)
	assert.Equal(t, 3, summary.RawRows)
	assert.Equal(t, 2, summary.CleanRows, "the record missing its team never reaches the clean set")
	// team_a: one date-format warning. team_b: missing team, null value
	// (required + non-numeric), missing region, missing date.
	assert.Equal(t, 6, summary.ExceptionRows)

	assert.FileExists(t, summary.ExceptionsPath)
	assert.FileExists(t, summary.BriefPath)

	// Region variant NORTH was standardized, so it aggregates with the
	// canonical spelling and raised no region-validity warning.
	var progress float64
	err = conn.DB.QueryRowContext(ctx, `
		SELECT progress_to_target FROM gold_indicator_mart
		WHERE report_month = '2025-01' AND indicator_code = 'X' AND region = 'North'`).
		Scan(&progress)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, progress, 1e-9)

	runs := 0
	require.NoError(t, conn.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM etl_runs").Scan(&runs))
	assert.Equal(t, 1, runs)
}

func TestRunPeriodIsIdempotent(t *testing.T) {
	cfg, conn := newTestEnv(t)
	seedPeriod(t, cfg)
	ctx := context.Background()

	runner := NewRunner(cfg, conn, slog.New(slog.DiscardHandler))

	first, err := runner.RunPeriod(ctx, "2025-01")
	require.NoError(t, err)
	second, err := runner.RunPeriod(ctx, "2025-01")
	require.NoError(t, err)

	assert.Equal(t, first.RawRows, second.RawRows)
	assert.Equal(t, first.CleanRows, second.CleanRows)
	assert.Equal(t, first.ExceptionRows, second.ExceptionRows)

	submissions := repository.NewSubmissionRepository(conn)
	raw, err := submissions.CountMonth(ctx, conn.DB, "raw_submissions", "2025-01")
	require.NoError(t, err)
	assert.Equal(t, first.RawRows, raw, "rerunning a period never duplicates rows")

	clean, err := submissions.CountMonth(ctx, conn.DB, "clean_submissions", "2025-01")
	require.NoError(t, err)
	assert.Equal(t, first.CleanRows, clean)

	exceptions, err := repository.NewExceptionRepository(conn).CountMonth(ctx, conn.DB, "2025-01")
	require.NoError(t, err)
	assert.Equal(t, first.ExceptionRows, exceptions)

	mart, err := repository.NewMartRepository(conn).CountRows(ctx, conn.DB)
	require.NoError(t, err)
	assert.Equal(t, 2, mart, "mart rebuild stays stable across reruns")
}

func TestRunPeriodNoSubmissionsIsFatal(t *testing.T) {
	cfg, conn := newTestEnv(t)
	ctx := context.Background()

	runner := NewRunner(cfg, conn, slog.New(slog.DiscardHandler))
	_, err := runner.RunPeriod(ctx, "2025-03")
	require.ErrorIs(t, err, ErrNoSubmissions)

	// Nothing was persisted for the aborted run.
	var runs int
	require.NoError(t, conn.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM etl_runs").Scan(&runs))
	assert.Equal(t, 0, runs)
}

func TestRunPeriodLeavesOtherPeriodsAlone(t *testing.T) {
	cfg, conn := newTestEnv(t)
	seedPeriod(t, cfg)
	writeSubmission(t, cfg, "2025-02", "team_a.csv",
		"month,team,indicator,region,reported_value,submission_date\n"+
			"2025-02,Team A,X,North,40,2025-02-28\n")
	ctx := context.Background()

	runner := NewRunner(cfg, conn, slog.New(slog.DiscardHandler))
	_, err := runner.RunPeriod(ctx, "2025-01")
	require.NoError(t, err)
	_, err = runner.RunPeriod(ctx, "2025-02")
	require.NoError(t, err)

	submissions := repository.NewSubmissionRepository(conn)
	jan, err := submissions.CountMonth(ctx, conn.DB, "clean_submissions", "2025-01")
	require.NoError(t, err)
	assert.Equal(t, 2, jan)

	// Mart spans both periods after the second run.
	mart, err := repository.NewMartRepository(conn).CountRows(ctx, conn.DB)
	require.NoError(t, err)
	assert.Equal(t, 3, mart)
}
