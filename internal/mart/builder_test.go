package mart

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wgyd/mereport/internal/db"
	"github.com/wgyd/mereport/internal/domain"
	"github.com/wgyd/mereport/internal/repository"
)

func newTestConn(t *testing.T) *db.Conn {
	t.Helper()
	cfg := db.DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "test.sqlite")

	conn, err := db.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.Migrate())
	return conn
}

func strp(s string) *string   { return &s }
func fltp(f float64) *float64 { return &f }

func cleanRecord(month, team, code, region string, value float64) domain.Submission {
	return domain.Submission{
		ReportMonth:   strp(month),
		Team:          strp(team),
		IndicatorCode: strp(code),
		Region:        strp(region),
		Value:         fltp(value),
		SourceFile:    team + ".csv",
		LoadedAt:      time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestProgressToTarget(t *testing.T) {
	require.Nil(t, ProgressToTarget(50, nil), "null target yields null progress")
	require.Nil(t, ProgressToTarget(50, fltp(0)), "zero target yields null progress")

	progress := ProgressToTarget(50, fltp(100))
	require.NotNil(t, progress)
	assert.Equal(t, 0.5, *progress)

	// Rounded to exactly 4 decimal places.
	progress = ProgressToTarget(1, fltp(3))
	require.NotNil(t, progress)
	assert.Equal(t, 0.3333, *progress)

	progress = ProgressToTarget(2, fltp(3))
	require.NotNil(t, progress)
	assert.Equal(t, 0.6667, *progress)
}

func TestRebuildAggregatesCleanRecords(t *testing.T) {
	conn := newTestConn(t)
	ctx := context.Background()

	registry := repository.NewRegistryRepository(conn)
	require.NoError(t, registry.Replace(ctx, conn.DB, []domain.RegistryEntry{
		{IndicatorCode: "X", IndicatorName: "Indicator X", Baseline: fltp(0), Target: fltp(100)},
		{IndicatorCode: "UNUSED", IndicatorName: "No submissions", Target: fltp(10)},
	}))

	submissions := repository.NewSubmissionRepository(conn)
	require.NoError(t, submissions.InsertClean(ctx, conn.DB, []domain.Submission{
		cleanRecord("2025-01", "Team A", "X", "North", 30),
		cleanRecord("2025-01", "Team B", "X", "North", 20),
		cleanRecord("2025-01", "Team A", "X", "South", 5),
	}))

	martRepo := repository.NewMartRepository(conn)
	builder := NewBuilder(martRepo)
	require.NoError(t, builder.Rebuild(ctx, conn.DB))

	rows, err := martRepo.CountRows(ctx, conn.DB)
	require.NoError(t, err)
	assert.Equal(t, 2, rows, "registry rows with no clean records do not appear")

	var (
		actual   float64
		progress float64
	)
	err = conn.DB.QueryRowContext(ctx, `
		SELECT actual_value, progress_to_target
		FROM gold_indicator_mart
		WHERE report_month = '2025-01' AND indicator_code = 'X' AND region = 'North'`).
		Scan(&actual, &progress)
	require.NoError(t, err)
	assert.Equal(t, 50.0, actual)
	assert.InDelta(t, 0.5, progress, 1e-9)
}

func TestRebuildIsFullClearAndRecompute(t *testing.T) {
	conn := newTestConn(t)
	ctx := context.Background()

	registry := repository.NewRegistryRepository(conn)
	require.NoError(t, registry.Replace(ctx, conn.DB, []domain.RegistryEntry{
		{IndicatorCode: "X", IndicatorName: "Indicator X", Target: fltp(100)},
	}))

	martRepo := repository.NewMartRepository(conn)
	builder := NewBuilder(martRepo)

	submissions := repository.NewSubmissionRepository(conn)
	require.NoError(t, submissions.InsertClean(ctx, conn.DB, []domain.Submission{
		cleanRecord("2025-01", "Team A", "X", "North", 10),
	}))
	require.NoError(t, builder.Rebuild(ctx, conn.DB))
	require.NoError(t, builder.Rebuild(ctx, conn.DB))

	rows, err := martRepo.CountRows(ctx, conn.DB)
	require.NoError(t, err)
	assert.Equal(t, 1, rows, "rebuilds never accumulate rows")
}

func TestRebuildSpansAllPeriods(t *testing.T) {
	conn := newTestConn(t)
	ctx := context.Background()

	registry := repository.NewRegistryRepository(conn)
	require.NoError(t, registry.Replace(ctx, conn.DB, []domain.RegistryEntry{
		{IndicatorCode: "X", IndicatorName: "Indicator X", Target: fltp(100)},
	}))

	submissions := repository.NewSubmissionRepository(conn)
	require.NoError(t, submissions.InsertClean(ctx, conn.DB, []domain.Submission{
		cleanRecord("2025-01", "Team A", "X", "North", 10),
		cleanRecord("2025-02", "Team A", "X", "North", 20),
	}))

	martRepo := repository.NewMartRepository(conn)
	require.NoError(t, NewBuilder(martRepo).Rebuild(ctx, conn.DB))

	rows, err := martRepo.CountRows(ctx, conn.DB)
	require.NoError(t, err)
	assert.Equal(t, 2, rows, "rebuild covers the full accumulated history")
}
