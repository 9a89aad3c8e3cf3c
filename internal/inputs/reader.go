// Package inputs reads submission and registry files from disk into raw
// tabular form. It understands flat CSV and sheet-scoped XLSX containers;
// everything downstream works on domain.RawTable.
package inputs

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/wgyd/mereport/internal/domain"
)

// ErrUnsupportedFormat is returned when a submission file is not a supported
// tabular container.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// SubmissionSheet is the sheet submissions are read from in xlsx containers.
const SubmissionSheet = "submission"

// RegistrySheet is the sheet the indicator registry workbook carries.
const RegistrySheet = "indicator_registry"

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// ListSubmissionFiles returns the sorted submission files for one reporting
// period, located in the period-named subdirectory of root. A missing
// directory yields an empty list, not an error; the orchestrator decides
// whether that is fatal.
func ListSubmissionFiles(root, reportMonth string) ([]string, error) {
	monthDir := filepath.Join(root, reportMonth)

	entries, err := os.ReadDir(monthDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read submissions directory %s: %w", monthDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".xlsx", ".csv":
			files = append(files, filepath.Join(monthDir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// ReadTable reads one submission file into a raw table. The first row is
// treated as the header; trailing all-empty rows are dropped and short data
// rows are padded so every row has one cell per header.
func ReadTable(path string) (domain.RawTable, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload, SubmissionSheet)
	default:
		return domain.RawTable{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte) (domain.RawTable, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("failed to read csv: %w", err)
	}
	return normalizeTable(records)
}

func parseExcel(payload []byte, preferredSheet string) (domain.RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return domain.RawTable{}, errors.New("excel file has no sheets")
	}

	sheet := sheets[0]
	for _, name := range sheets {
		if name == preferredSheet {
			sheet = name
			break
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	return normalizeTable(rows)
}

func normalizeTable(records [][]string) (domain.RawTable, error) {
	if len(records) == 0 {
		return domain.RawTable{}, errors.New("no rows found in file")
	}

	headers := records[0]
	dataRows := make([][]string, 0, len(records)-1)
	for _, row := range records[1:] {
		if isEmptyRow(row) {
			continue
		}
		dataRows = append(dataRows, padRow(row, len(headers)))
	}

	return domain.RawTable{Headers: headers, Rows: dataRows}, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

// ReadRegistry loads the indicator registry workbook. The registry sheet
// carries a fixed header row; indicator_code and indicator_name are required
// columns, the rest are optional descriptive metadata.
func ReadRegistry(path string) ([]domain.RegistryEntry, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry %s: %w", path, err)
	}

	table, err := parseExcel(payload, RegistrySheet)
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", path, err)
	}

	col := make(map[string]int, len(table.Headers))
	for i, header := range table.Headers {
		col[strings.TrimSpace(header)] = i
	}
	if _, ok := col["indicator_code"]; !ok {
		return nil, fmt.Errorf("registry %s has no indicator_code column", path)
	}

	cell := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	entries := make([]domain.RegistryEntry, 0, len(table.Rows))
	for _, row := range table.Rows {
		code := cell(row, "indicator_code")
		if code == "" {
			continue
		}
		entries = append(entries, domain.RegistryEntry{
			IndicatorCode:  code,
			IndicatorName:  cell(row, "indicator_name"),
			Definition:     cell(row, "definition"),
			Unit:           cell(row, "unit"),
			DisaggRequired: cell(row, "disagg_required"),
			DataSource:     cell(row, "data_source"),
			Baseline:       parseOptionalFloat(cell(row, "baseline")),
			Target:         parseOptionalFloat(cell(row, "target")),
			Frequency:      cell(row, "frequency"),
			Owner:          cell(row, "owner"),
		})
	}
	return entries, nil
}

func parseOptionalFloat(raw string) *float64 {
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &f
}
