// Package standardize reshapes heterogeneous source tables onto the
// canonical submission record. It is a pure function over in-memory batches:
// no storage, no network, no mutation of its input.
package standardize

import (
	"strconv"
	"strings"

	"github.com/wgyd/mereport/internal/domain"
)

// regionVariants rewrites known spelling and casing variants of region names
// onto their canonical form. Lookup happens after whitespace trimming; the
// trailing-space variant is kept for completeness of the known list.
var regionVariants = map[string]string{
	"NORTH":  "North",
	"Nrth":   "North",
	"North ": "North",
}

// Standardize maps one raw source table onto canonical submission records.
// Aliased columns are resolved onto canonical fields, unrecognized columns
// are dropped, and canonical fields absent from the source are materialized
// as nulls, so the output always carries exactly the canonical field set.
// Region spellings and submitted_on separators are normalized; values that
// fail numeric coercion become null and are left for the validator to
// classify. Every record is stamped with the originating file's name.
func Standardize(table domain.RawTable, sourceFile string) []domain.Submission {
	// Resolve each source column onto a canonical field. Later duplicates of
	// an already-mapped field are ignored, first column wins.
	columnField := make(map[int]domain.Field)
	seen := make(map[domain.Field]bool)
	for idx, header := range table.Headers {
		field, ok := domain.ResolveAlias(header)
		if !ok || seen[field] {
			continue
		}
		columnField[idx] = field
		seen[field] = true
	}

	records := make([]domain.Submission, 0, len(table.Rows))
	for _, row := range table.Rows {
		cells := make(map[domain.Field]*string)
		for idx, field := range columnField {
			if idx >= len(row) {
				continue
			}
			cells[field] = optional(row[idx])
		}

		record := domain.Submission{
			ReportMonth:   cells[domain.FieldReportMonth],
			Team:          cells[domain.FieldTeam],
			IndicatorCode: cells[domain.FieldIndicatorCode],
			Region:        normalizeRegion(cells[domain.FieldRegion]),
			Gender:        cells[domain.FieldGender],
			AgeBand:       cells[domain.FieldAgeBand],
			Value:         coerceValue(cells[domain.FieldValue]),
			SubmittedOn:   normalizeDate(cells[domain.FieldSubmittedOn]),
			SourceFile:    sourceFile,
		}
		records = append(records, record)
	}
	return records
}

// optional turns an all-whitespace cell into a null and keeps everything else
// verbatim. Trimming of meaningful content is a per-field concern.
func optional(cell string) *string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	return &cell
}

func normalizeRegion(region *string) *string {
	if region == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*region)
	if canonical, ok := regionVariants[trimmed]; ok {
		return &canonical
	}
	// Unrecognized spellings pass through for the validator to flag.
	return &trimmed
}

// normalizeDate rewrites slash separators to dashes without validating the
// result's structure; the date-format rule judges it later.
func normalizeDate(date *string) *string {
	if date == nil {
		return nil
	}
	rewritten := strings.ReplaceAll(*date, "/", "-")
	return &rewritten
}

func coerceValue(raw *string) *float64 {
	if raw == nil {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
	if err != nil {
		return nil
	}
	return &value
}
