package domain

import "time"

// Severity classifies a data-quality finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Exception records one rule violation against one record. A record may
// accumulate any number of exceptions across rules. Exceptions are immutable
// once written; the full set for a period is replaced on rerun.
type Exception struct {
	ReportMonth   *string
	Team          *string
	IndicatorCode *string
	Field         string
	Issue         string
	Severity      Severity
	SourceFile    string
	RowRef        string
	CreatedAt     time.Time
}

// ExceptionColumns returns the column order used for the per-period
// exceptions artifact and the dq_exceptions table.
func ExceptionColumns() []string {
	return []string{
		"report_month",
		"team",
		"indicator_code",
		"field",
		"issue",
		"severity",
		"source_file",
		"row_ref",
		"created_at",
	}
}
