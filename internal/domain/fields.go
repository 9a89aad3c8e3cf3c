package domain

import "strings"

// Field identifies one canonical submission column.
type Field string

const (
	FieldReportMonth   Field = "report_month"
	FieldTeam          Field = "team"
	FieldIndicatorCode Field = "indicator_code"
	FieldRegion        Field = "region"
	FieldGender        Field = "gender"
	FieldAgeBand       Field = "age_band"
	FieldValue         Field = "value"
	FieldSubmittedOn   Field = "submitted_on"
)

// CanonicalFields returns the canonical submission columns in canonical order.
func CanonicalFields() []Field {
	return []Field{
		FieldReportMonth,
		FieldTeam,
		FieldIndicatorCode,
		FieldRegion,
		FieldGender,
		FieldAgeBand,
		FieldValue,
		FieldSubmittedOn,
	}
}

// fieldAliases maps each canonical field to the source column names teams are
// known to use for it. The canonical name itself is always accepted.
var fieldAliases = map[Field][]string{
	FieldReportMonth:   {"month", "report_month"},
	FieldTeam:          {"team"},
	FieldIndicatorCode: {"indicator", "indicator_code"},
	FieldRegion:        {"region"},
	FieldGender:        {"gender"},
	FieldAgeBand:       {"age_group", "age_band"},
	FieldValue:         {"reported_value", "value"},
	FieldSubmittedOn:   {"submission_date", "submitted_on"},
}

var aliasLookup = buildAliasLookup()

func buildAliasLookup() map[string]Field {
	lookup := make(map[string]Field)
	for field, aliases := range fieldAliases {
		for _, alias := range aliases {
			lookup[alias] = field
		}
	}
	return lookup
}

// ResolveAlias maps a raw source column name onto its canonical field. The
// name is trimmed before lookup. The second return is false for columns that
// are not part of the alias vocabulary.
func ResolveAlias(name string) (Field, bool) {
	field, ok := aliasLookup[strings.TrimSpace(name)]
	return field, ok
}

// RawTable is an unprocessed tabular payload as read from a submission file:
// one header row and zero or more data rows, with no shape guarantees.
type RawTable struct {
	Headers []string
	Rows    [][]string
}
