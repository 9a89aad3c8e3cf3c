package repository

import (
	"context"
	"fmt"

	"github.com/wgyd/mereport/internal/db"
	"github.com/wgyd/mereport/internal/domain"
)

// SubmissionRepository owns the raw_submissions and clean_submissions tables.
type SubmissionRepository struct {
	conn *db.Conn
}

// NewSubmissionRepository creates a new submission repository.
func NewSubmissionRepository(conn *db.Conn) *SubmissionRepository {
	return &SubmissionRepository{conn: conn}
}

// DeleteMonth removes all raw and clean rows for one reporting period, so a
// rerun never duplicates data.
func (r *SubmissionRepository) DeleteMonth(ctx context.Context, ex db.Executor, reportMonth string) error {
	for _, table := range []string{"raw_submissions", "clean_submissions"} {
		query := r.conn.Rebind(fmt.Sprintf("DELETE FROM %s WHERE report_month = ?", table))
		if _, err := ex.ExecContext(ctx, query, reportMonth); err != nil {
			return fmt.Errorf("failed to clear %s for %s: %w", table, reportMonth, err)
		}
	}
	return nil
}

// InsertRaw appends records to raw_submissions.
func (r *SubmissionRepository) InsertRaw(ctx context.Context, ex db.Executor, records []domain.Submission) error {
	return r.insert(ctx, ex, "raw_submissions", records)
}

// InsertClean appends records to clean_submissions.
func (r *SubmissionRepository) InsertClean(ctx context.Context, ex db.Executor, records []domain.Submission) error {
	return r.insert(ctx, ex, "clean_submissions", records)
}

func (r *SubmissionRepository) insert(ctx context.Context, ex db.Executor, table string, records []domain.Submission) error {
	query := r.conn.Rebind(fmt.Sprintf(`
		INSERT INTO %s
			(report_month, team, indicator_code, region, gender, age_band,
			 value, submitted_on, source_file, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table))

	for i, record := range records {
		_, err := ex.ExecContext(ctx, query,
			nullString(record.ReportMonth),
			nullString(record.Team),
			nullString(record.IndicatorCode),
			nullString(record.Region),
			nullString(record.Gender),
			nullString(record.AgeBand),
			nullFloat(record.Value),
			nullString(record.SubmittedOn),
			record.SourceFile,
			record.LoadedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert row %d into %s: %w", i, table, err)
		}
	}
	return nil
}

// CountMonth returns the number of rows in the given submissions table for
// one reporting period.
func (r *SubmissionRepository) CountMonth(ctx context.Context, ex db.Executor, table, reportMonth string) (int, error) {
	query := r.conn.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE report_month = ?", table))
	var n int
	if err := ex.QueryRowContext(ctx, query, reportMonth).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s for %s: %w", table, reportMonth, err)
	}
	return n, nil
}

// IntakeStats summarizes raw submission volume for one reporting period.
type IntakeStats struct {
	TeamsReporting int
	FilesReceived  int
	RawRows        int
}

// Intake reports distinct teams, distinct source files, and total raw rows
// for one reporting period.
func (r *SubmissionRepository) Intake(ctx context.Context, ex db.Executor, reportMonth string) (IntakeStats, error) {
	query := r.conn.Rebind(`
		SELECT COUNT(DISTINCT team) AS teams_reporting,
		       COUNT(DISTINCT source_file) AS files_received,
		       COUNT(*) AS raw_rows
		FROM raw_submissions
		WHERE report_month = ?`)

	var stats IntakeStats
	err := ex.QueryRowContext(ctx, query, reportMonth).
		Scan(&stats.TeamsReporting, &stats.FilesReceived, &stats.RawRows)
	if err != nil {
		return IntakeStats{}, fmt.Errorf("failed to compute intake stats for %s: %w", reportMonth, err)
	}
	return stats, nil
}

// TeamFlagCount pairs a team with the number of its flagged rows.
type TeamFlagCount struct {
	Team string
	Rows int
}

// LateReportingTeams lists teams with missing or truncated submission dates
// in a period, most-flagged first.
func (r *SubmissionRepository) LateReportingTeams(ctx context.Context, ex db.Executor, reportMonth string) ([]TeamFlagCount, error) {
	query := r.conn.Rebind(`
		SELECT team, COUNT(*) AS rows_submitted
		FROM raw_submissions
		WHERE report_month = ?
		  AND (submitted_on IS NULL OR LENGTH(submitted_on) < 10)
		  AND team IS NOT NULL
		GROUP BY team
		ORDER BY rows_submitted DESC, team`)

	rows, err := ex.QueryContext(ctx, query, reportMonth)
	if err != nil {
		return nil, fmt.Errorf("failed to query late reporting teams for %s: %w", reportMonth, err)
	}
	defer rows.Close()

	var counts []TeamFlagCount
	for rows.Next() {
		var c TeamFlagCount
		if err := rows.Scan(&c.Team, &c.Rows); err != nil {
			return nil, fmt.Errorf("failed to scan late reporting row: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read late reporting rows: %w", err)
	}
	return counts, nil
}
