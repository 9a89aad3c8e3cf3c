package repository

import (
	"context"
	"fmt"

	"github.com/wgyd/mereport/internal/db"
	"github.com/wgyd/mereport/internal/domain"
)

// ExceptionRepository owns the dq_exceptions log table.
type ExceptionRepository struct {
	conn *db.Conn
}

// NewExceptionRepository creates a new exception repository.
func NewExceptionRepository(conn *db.Conn) *ExceptionRepository {
	return &ExceptionRepository{conn: conn}
}

// DeleteMonth removes the full exception set for one reporting period.
// Exceptions are immutable once written; reruns replace the whole period.
func (r *ExceptionRepository) DeleteMonth(ctx context.Context, ex db.Executor, reportMonth string) error {
	query := r.conn.Rebind("DELETE FROM dq_exceptions WHERE report_month = ?")
	if _, err := ex.ExecContext(ctx, query, reportMonth); err != nil {
		return fmt.Errorf("failed to clear dq_exceptions for %s: %w", reportMonth, err)
	}
	return nil
}

// Insert appends exception entries in order.
func (r *ExceptionRepository) Insert(ctx context.Context, ex db.Executor, exceptions []domain.Exception) error {
	query := r.conn.Rebind(`
		INSERT INTO dq_exceptions
			(report_month, team, indicator_code, field, issue, severity,
			 source_file, row_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	for i, exc := range exceptions {
		_, err := ex.ExecContext(ctx, query,
			nullString(exc.ReportMonth),
			nullString(exc.Team),
			nullString(exc.IndicatorCode),
			exc.Field,
			exc.Issue,
			string(exc.Severity),
			exc.SourceFile,
			exc.RowRef,
			exc.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert exception %d: %w", i, err)
		}
	}
	return nil
}

// SeverityCount pairs a severity with its exception count.
type SeverityCount struct {
	Severity domain.Severity
	Count    int
}

// SeverityCounts returns exception counts by severity for one reporting
// period, ordered by severity name.
func (r *ExceptionRepository) SeverityCounts(ctx context.Context, ex db.Executor, reportMonth string) ([]SeverityCount, error) {
	query := r.conn.Rebind(`
		SELECT severity, COUNT(*) AS n
		FROM dq_exceptions
		WHERE report_month = ?
		GROUP BY severity
		ORDER BY severity`)

	rows, err := ex.QueryContext(ctx, query, reportMonth)
	if err != nil {
		return nil, fmt.Errorf("failed to query exception counts for %s: %w", reportMonth, err)
	}
	defer rows.Close()

	var counts []SeverityCount
	for rows.Next() {
		var c SeverityCount
		if err := rows.Scan(&c.Severity, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan exception count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read exception counts: %w", err)
	}
	return counts, nil
}

// CountMonth returns the total number of exceptions for one period.
func (r *ExceptionRepository) CountMonth(ctx context.Context, ex db.Executor, reportMonth string) (int, error) {
	query := r.conn.Rebind("SELECT COUNT(*) FROM dq_exceptions WHERE report_month = ?")
	var n int
	if err := ex.QueryRowContext(ctx, query, reportMonth).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count exceptions for %s: %w", reportMonth, err)
	}
	return n, nil
}
