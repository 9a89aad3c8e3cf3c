package domain

import "time"

// Submission is one canonical (team, indicator, disaggregation) observation
// for a reporting period. Nil pointers represent nulls: fields the source
// file did not provide, or values that failed coercion.
type Submission struct {
	ReportMonth   *string
	Team          *string
	IndicatorCode *string
	Region        *string
	Gender        *string
	AgeBand       *string
	Value         *float64
	SubmittedOn   *string
	SourceFile    string
	LoadedAt      time.Time
}

// RegistryEntry is one reference row from the indicator registry. The
// registry is reloaded wholesale at the start of every run and is read-only
// to the pipeline.
type RegistryEntry struct {
	IndicatorCode  string
	IndicatorName  string
	Definition     string
	Unit           string
	DisaggRequired string
	DataSource     string
	Baseline       *float64
	Target         *float64
	Frequency      string
	Owner          string
}
