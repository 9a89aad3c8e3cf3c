// Package export extracts store tables and summary views into flat CSV
// files for downstream BI tooling.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/wgyd/mereport/internal/db"
)

// dataset pairs an export file name with the query producing its rows.
type dataset struct {
	Name  string
	Query string
}

// datasets lists every export in write order. One CSV per dataset.
var datasets = []dataset{
	{"gold_indicator_mart", "SELECT * FROM gold_indicator_mart"},
	{"vw_indicator_summary_national", "SELECT * FROM vw_indicator_summary_national"},
	{"vw_indicator_trend_national", "SELECT * FROM vw_indicator_trend_national"},
	{"dq_exceptions", "SELECT * FROM dq_exceptions"},
	{"dq_exceptions_monthly", `
		SELECT report_month, severity, COUNT(*) AS n
		FROM dq_exceptions
		GROUP BY report_month, severity
		ORDER BY report_month, severity`},
	{"dim_indicator_registry", "SELECT * FROM dim_indicator_registry"},
	{"late_reporting_flags", `
		SELECT report_month, team, COUNT(*) AS flagged_rows
		FROM raw_submissions
		WHERE submitted_on IS NULL OR LENGTH(submitted_on) < 10
		GROUP BY report_month, team
		ORDER BY report_month, team`},
}

// Service writes the export dataset files.
type Service struct {
	conn   *db.Conn
	outDir string
}

// NewService creates an export service writing into outDir.
func NewService(conn *db.Conn, outDir string) *Service {
	return &Service{conn: conn, outDir: outDir}
}

// Result reports one written export file.
type Result struct {
	Name string
	Path string
	Rows int
}

// Run extracts every dataset to a CSV file and reports what was written.
func (s *Service) Run(ctx context.Context) ([]Result, error) {
	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}

	results := make([]Result, 0, len(datasets))
	for _, ds := range datasets {
		path := filepath.Join(s.outDir, ds.Name+".csv")
		rows, err := s.writeDataset(ctx, ds, path)
		if err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", ds.Name, err)
		}
		results = append(results, Result{Name: ds.Name, Path: path, Rows: rows})
	}
	return results, nil
}

func (s *Service) writeDataset(ctx context.Context, ds dataset, path string) (int, error) {
	rows, err := s.conn.DB.QueryContext(ctx, ds.Query)
	if err != nil {
		return 0, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("failed to read columns: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	values := make([]any, len(columns))
	scanTargets := make([]any, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return 0, fmt.Errorf("failed to scan row: %w", err)
		}
		record := make([]string, len(values))
		for i, value := range values {
			record[i] = formatCell(value)
		}
		if err := w.Write(record); err != nil {
			return 0, fmt.Errorf("failed to write row: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read rows: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush file: %w", err)
	}
	return count, nil
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
