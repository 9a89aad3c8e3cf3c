package domain

import (
	"time"

	"github.com/google/uuid"
)

// MartRow is one fully derived aggregate row: the summed clean value for a
// (report_month, indicator_code, region, gender, age_band) group joined
// against the registry. Never hand-edited; always rebuilt.
type MartRow struct {
	ReportMonth      string
	IndicatorCode    string
	Region           *string
	Gender           *string
	AgeBand          *string
	ActualValue      float64
	Baseline         *float64
	Target           *float64
	ProgressToTarget *float64
}

// RunRecord captures the outcome of one pipeline run for the etl_runs log.
type RunRecord struct {
	ID            uuid.UUID
	ReportMonth   string
	FilesRead     int
	RawRows       int
	CleanRows     int
	ExceptionRows int
	StartedAt     time.Time
	FinishedAt    time.Time
}
