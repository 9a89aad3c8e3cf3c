package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wgyd/mereport/internal/db"
	"github.com/wgyd/mereport/internal/domain"
)

// MartRepository owns the gold_indicator_mart table and its summary views.
type MartRepository struct {
	conn *db.Conn
}

// NewMartRepository creates a new mart repository.
func NewMartRepository(conn *db.Conn) *MartRepository {
	return &MartRepository{conn: conn}
}

// Clear empties the whole aggregate table ahead of a rebuild.
func (r *MartRepository) Clear(ctx context.Context, ex db.Executor) error {
	if _, err := ex.ExecContext(ctx, "DELETE FROM gold_indicator_mart"); err != nil {
		return fmt.Errorf("failed to clear gold_indicator_mart: %w", err)
	}
	return nil
}

// GroupTotal is one clean-record group with its registry lookup: the summed
// value per (report_month, indicator_code, region, gender, age_band) plus
// the indicator's baseline and target.
type GroupTotal struct {
	ReportMonth   string
	IndicatorCode string
	Region        *string
	Gender        *string
	AgeBand       *string
	ActualValue   float64
	Baseline      *float64
	Target        *float64
}

// GroupedCleanTotals aggregates all clean records, across every period in
// the store, left-joined against the registry. Null values count as zero in
// the sum. Registry rows with no matching clean records do not appear.
func (r *MartRepository) GroupedCleanTotals(ctx context.Context, ex db.Executor) ([]GroupTotal, error) {
	query := `
		SELECT
			c.report_month,
			c.indicator_code,
			c.region,
			c.gender,
			c.age_band,
			SUM(COALESCE(c.value, 0)) AS actual_value,
			MAX(r.baseline) AS baseline,
			MAX(r.target) AS target
		FROM clean_submissions c
		LEFT JOIN dim_indicator_registry r
			ON c.indicator_code = r.indicator_code
		GROUP BY c.report_month, c.indicator_code, c.region, c.gender, c.age_band
		ORDER BY c.report_month, c.indicator_code, c.region, c.gender, c.age_band`

	rows, err := ex.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate clean submissions: %w", err)
	}
	defer rows.Close()

	var totals []GroupTotal
	for rows.Next() {
		var (
			t                       GroupTotal
			month, code             sql.NullString
			region, gender, ageBand sql.NullString
			baseline, target        sql.NullFloat64
		)
		if err := rows.Scan(&month, &code, &region, &gender, &ageBand, &t.ActualValue, &baseline, &target); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
		}
		t.ReportMonth = month.String
		t.IndicatorCode = code.String
		t.Region = stringPtr(region)
		t.Gender = stringPtr(gender)
		t.AgeBand = stringPtr(ageBand)
		t.Baseline = floatPtr(baseline)
		t.Target = floatPtr(target)
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read aggregate rows: %w", err)
	}
	return totals, nil
}

// Insert appends mart rows in order.
func (r *MartRepository) Insert(ctx context.Context, ex db.Executor, rows []domain.MartRow) error {
	query := r.conn.Rebind(`
		INSERT INTO gold_indicator_mart
			(report_month, indicator_code, region, gender, age_band,
			 actual_value, baseline, target, progress_to_target)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	for i, row := range rows {
		_, err := ex.ExecContext(ctx, query,
			row.ReportMonth,
			row.IndicatorCode,
			nullString(row.Region),
			nullString(row.Gender),
			nullString(row.AgeBand),
			row.ActualValue,
			nullFloat(row.Baseline),
			nullFloat(row.Target),
			nullFloat(row.ProgressToTarget),
		)
		if err != nil {
			return fmt.Errorf("failed to insert mart row %d: %w", i, err)
		}
	}
	return nil
}

// SummaryRow is one line of the national indicator summary view.
type SummaryRow struct {
	ReportMonth      string
	IndicatorCode    string
	IndicatorName    *string
	ActualValue      float64
	Target           *float64
	ProgressToTarget *float64
}

// NationalSummary reads the per-indicator national totals for one period,
// best progress first. Rows with null progress sort last.
func (r *MartRepository) NationalSummary(ctx context.Context, ex db.Executor, reportMonth string) ([]SummaryRow, error) {
	query := r.conn.Rebind(`
		SELECT report_month, indicator_code, indicator_name,
		       actual_value, target, progress_to_target
		FROM vw_indicator_summary_national
		WHERE report_month = ?
		ORDER BY progress_to_target DESC`)

	rows, err := ex.QueryContext(ctx, query, reportMonth)
	if err != nil {
		return nil, fmt.Errorf("failed to query national summary for %s: %w", reportMonth, err)
	}
	defer rows.Close()

	var summary []SummaryRow
	for rows.Next() {
		var (
			s        SummaryRow
			name     sql.NullString
			target   sql.NullFloat64
			progress sql.NullFloat64
		)
		if err := rows.Scan(&s.ReportMonth, &s.IndicatorCode, &name, &s.ActualValue, &target, &progress); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		s.IndicatorName = stringPtr(name)
		s.Target = floatPtr(target)
		s.ProgressToTarget = floatPtr(progress)
		summary = append(summary, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read summary rows: %w", err)
	}
	return summary, nil
}

// CountRows returns the total number of mart rows.
func (r *MartRepository) CountRows(ctx context.Context, ex db.Executor) (int, error) {
	var n int
	if err := ex.QueryRowContext(ctx, "SELECT COUNT(*) FROM gold_indicator_mart").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count mart rows: %w", err)
	}
	return n, nil
}
