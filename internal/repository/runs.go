package repository

import (
	"context"
	"fmt"

	"github.com/wgyd/mereport/internal/db"
	"github.com/wgyd/mereport/internal/domain"
)

// RunRepository owns the etl_runs log table.
type RunRepository struct {
	conn *db.Conn
}

// NewRunRepository creates a new run repository.
func NewRunRepository(conn *db.Conn) *RunRepository {
	return &RunRepository{conn: conn}
}

// Record appends one run outcome to the log.
func (r *RunRepository) Record(ctx context.Context, ex db.Executor, run domain.RunRecord) error {
	query := r.conn.Rebind(`
		INSERT INTO etl_runs
			(run_id, report_month, files_read, raw_rows, clean_rows,
			 exception_rows, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := ex.ExecContext(ctx, query,
		run.ID.String(),
		run.ReportMonth,
		run.FilesRead,
		run.RawRows,
		run.CleanRows,
		run.ExceptionRows,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}
