// Package validate applies the data-quality rule set to standardized
// submission batches. Rules are evaluated in a fixed order and never
// short-circuit each other; findings are data, not errors. A record with at
// least one error-severity finding is excluded from the clean set, warnings
// never exclude.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wgyd/mereport/internal/domain"
)

// Result partitions a validated batch: the clean records, unmodified, and
// the full exception log across all rules.
type Result struct {
	Clean      []domain.Submission
	Exceptions []domain.Exception
}

// requiredFields are checked for presence by the first rule, in this order.
var requiredFields = []domain.Field{
	domain.FieldReportMonth,
	domain.FieldTeam,
	domain.FieldIndicatorCode,
	domain.FieldValue,
}

// ValidRegions enumerates the accepted region disaggregation values.
var ValidRegions = map[string]bool{
	"North": true,
	"South": true,
	"East":  true,
	"West":  true,
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// outlierMinSample gates the outlier rule: it only runs when a batch carries
// more than this many non-null values.
const outlierMinSample = 10

// finding is one rule violation located by batch row index. Findings are
// produced per rule and flattened into exceptions afterwards, so rules never
// share mutable state.
type finding struct {
	row      int
	field    string
	issue    string
	severity domain.Severity
}

// rule evaluates one check against the whole batch.
type rule func(batch []domain.Submission, codes map[string]bool) []finding

// rules in evaluation order; this order determines exception-log ordering.
var rules = []rule{
	checkRequiredFields,
	checkRegistryMembership,
	checkNumericValue,
	checkNonNegative,
	checkRegionPresent,
	checkRegionValid,
	checkDateFormat,
	checkDuplicates,
	checkOutliers,
}

// Validate runs every rule against the batch and partitions it into the
// clean set and the exception log. The batch's records are passed through
// unmodified; violations are reported, never corrected. An empty batch
// yields empty outputs.
func Validate(batch []domain.Submission, validCodes map[string]bool) Result {
	now := time.Now().UTC().Truncate(time.Second)

	var exceptions []domain.Exception
	hasError := make([]bool, len(batch))

	for _, check := range rules {
		for _, f := range check(batch, validCodes) {
			record := batch[f.row]
			exceptions = append(exceptions, domain.Exception{
				ReportMonth:   record.ReportMonth,
				Team:          record.Team,
				IndicatorCode: record.IndicatorCode,
				Field:         f.field,
				Issue:         f.issue,
				Severity:      f.severity,
				SourceFile:    record.SourceFile,
				RowRef:        strconv.Itoa(f.row),
				CreatedAt:     now,
			})
			if f.severity == domain.SeverityError {
				hasError[f.row] = true
			}
		}
	}

	clean := make([]domain.Submission, 0, len(batch))
	for i, record := range batch {
		if !hasError[i] {
			clean = append(clean, record)
		}
	}

	return Result{Clean: clean, Exceptions: exceptions}
}

func missing(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func checkRequiredFields(batch []domain.Submission, _ map[string]bool) []finding {
	var findings []finding
	for _, field := range requiredFields {
		for i, record := range batch {
			var absent bool
			if field == domain.FieldValue {
				absent = record.Value == nil
			} else {
				absent = missing(stringField(record, field))
			}
			if absent {
				findings = append(findings, finding{
					row:      i,
					field:    string(field),
					issue:    "Missing required field",
					severity: domain.SeverityError,
				})
			}
		}
	}
	return findings
}

func stringField(record domain.Submission, field domain.Field) *string {
	switch field {
	case domain.FieldReportMonth:
		return record.ReportMonth
	case domain.FieldTeam:
		return record.Team
	case domain.FieldIndicatorCode:
		return record.IndicatorCode
	default:
		return nil
	}
}

func checkRegistryMembership(batch []domain.Submission, codes map[string]bool) []finding {
	var findings []finding
	for i, record := range batch {
		if record.IndicatorCode != nil && codes[*record.IndicatorCode] {
			continue
		}
		findings = append(findings, finding{
			row:      i,
			field:    string(domain.FieldIndicatorCode),
			issue:    "Indicator code not found in registry",
			severity: domain.SeverityError,
		})
	}
	return findings
}

func checkNumericValue(batch []domain.Submission, _ map[string]bool) []finding {
	var findings []finding
	for i, record := range batch {
		if record.Value == nil {
			findings = append(findings, finding{
				row:      i,
				field:    string(domain.FieldValue),
				issue:    "Value is not numeric",
				severity: domain.SeverityError,
			})
		}
	}
	return findings
}

func checkNonNegative(batch []domain.Submission, _ map[string]bool) []finding {
	var findings []finding
	for i, record := range batch {
		// Null counts as zero for this check only.
		value := 0.0
		if record.Value != nil {
			value = *record.Value
		}
		if value < 0 {
			findings = append(findings, finding{
				row:      i,
				field:    string(domain.FieldValue),
				issue:    "Negative values not allowed",
				severity: domain.SeverityError,
			})
		}
	}
	return findings
}

func checkRegionPresent(batch []domain.Submission, _ map[string]bool) []finding {
	var findings []finding
	for i, record := range batch {
		if missing(record.Region) {
			findings = append(findings, finding{
				row:      i,
				field:    string(domain.FieldRegion),
				issue:    "Missing region (disaggregation incomplete)",
				severity: domain.SeverityWarning,
			})
		}
	}
	return findings
}

func checkRegionValid(batch []domain.Submission, _ map[string]bool) []finding {
	var findings []finding
	for i, record := range batch {
		if missing(record.Region) || ValidRegions[*record.Region] {
			continue
		}
		findings = append(findings, finding{
			row:      i,
			field:    string(domain.FieldRegion),
			issue:    fmt.Sprintf("Invalid region value: %s", *record.Region),
			severity: domain.SeverityWarning,
		})
	}
	return findings
}

func checkDateFormat(batch []domain.Submission, _ map[string]bool) []finding {
	var findings []finding
	for i, record := range batch {
		if record.SubmittedOn != nil && datePattern.MatchString(*record.SubmittedOn) {
			continue
		}
		findings = append(findings, finding{
			row:      i,
			field:    string(domain.FieldSubmittedOn),
			issue:    "Invalid date format (expected YYYY-MM-DD)",
			severity: domain.SeverityWarning,
		})
	}
	return findings
}

// duplicateKeyFields is the tuple duplicates are detected on. Canonical
// records always carry every field, so the whole tuple applies to every batch.
var duplicateKeyFields = []domain.Field{
	domain.FieldReportMonth,
	domain.FieldTeam,
	domain.FieldIndicatorCode,
	domain.FieldRegion,
	domain.FieldGender,
	domain.FieldAgeBand,
}

func checkDuplicates(batch []domain.Submission, _ map[string]bool) []finding {
	keyNames := make([]string, len(duplicateKeyFields))
	for i, field := range duplicateKeyFields {
		keyNames[i] = string(field)
	}
	issue := fmt.Sprintf("Duplicate record detected on keys: %s", strings.Join(keyNames, ", "))

	var findings []finding
	seen := make(map[string]bool, len(batch))
	for i, record := range batch {
		key := duplicateKey(record)
		if seen[key] {
			// First occurrence wins; every later occurrence is flagged.
			findings = append(findings, finding{
				row:      i,
				field:    "record",
				issue:    issue,
				severity: domain.SeverityWarning,
			})
			continue
		}
		seen[key] = true
	}
	return findings
}

func duplicateKey(record domain.Submission) string {
	parts := []*string{
		record.ReportMonth,
		record.Team,
		record.IndicatorCode,
		record.Region,
		record.Gender,
		record.AgeBand,
	}
	var b strings.Builder
	for _, part := range parts {
		if part == nil {
			b.WriteByte(0x00)
		} else {
			b.WriteString(*part)
		}
		b.WriteByte(0x1F)
	}
	return b.String()
}

// checkOutliers flags values strictly above Q3 + 3*IQR across the whole
// batch. It is deliberately a single unscoped pass, not grouped by indicator
// or team, and only runs on batches with more than outlierMinSample non-null
// values.
func checkOutliers(batch []domain.Submission, _ map[string]bool) []finding {
	var values []float64
	for _, record := range batch {
		if record.Value != nil {
			values = append(values, *record.Value)
		}
	}
	if len(values) <= outlierMinSample {
		return nil
	}

	q1 := Quantile(values, 0.25)
	q3 := Quantile(values, 0.75)
	upper := q3 + 3*(q3-q1)

	var findings []finding
	for i, record := range batch {
		if record.Value == nil || *record.Value <= upper {
			continue
		}
		findings = append(findings, finding{
			row:   i,
			field: string(domain.FieldValue),
			issue: fmt.Sprintf("Potential outlier value: %s (upper bound ~ %s)",
				formatValue(*record.Value), formatValue(round2(upper))),
			severity: domain.SeverityWarning,
		})
	}
	return findings
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
