package inputs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeCSV(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeXLSX(t *testing.T, path, sheet string, rows [][]string) {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	_, err := f.NewSheet(sheet)
	require.NoError(t, err)
	require.NoError(t, f.DeleteSheet("Sheet1"))

	for i, row := range rows {
		for j, cell := range row {
			ref, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, ref, cell))
		}
	}
	require.NoError(t, f.SaveAs(path))
}

func TestListSubmissionFiles(t *testing.T) {
	root := t.TempDir()
	monthDir := filepath.Join(root, "2025-01")
	require.NoError(t, os.MkdirAll(monthDir, 0o755))

	writeCSV(t, filepath.Join(monthDir, "team_b.csv"), "team,value\nB,1\n")
	writeCSV(t, filepath.Join(monthDir, "team_a.csv"), "team,value\nA,1\n")
	writeCSV(t, filepath.Join(monthDir, "notes.txt"), "not tabular")

	files, err := ListSubmissionFiles(root, "2025-01")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "team_a.csv", filepath.Base(files[0]), "listing is sorted")
	assert.Equal(t, "team_b.csv", filepath.Base(files[1]))
}

func TestListSubmissionFilesMissingPeriodDir(t *testing.T) {
	files, err := ListSubmissionFiles(t.TempDir(), "2030-12")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestReadTableCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub.csv")
	writeCSV(t, path, "month,team,value\n2025-01,Team A,10\n\n2025-01,Team B,20\n")

	table, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"month", "team", "value"}, table.Headers)
	require.Len(t, table.Rows, 2, "blank rows are dropped")
	assert.Equal(t, []string{"2025-01", "Team A", "10"}, table.Rows[0])
}

func TestReadTableCSVStripsByteOrderMark(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub.csv")
	writeCSV(t, path, "\xEF\xBB\xBFteam,value\nA,1\n")

	table, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"team", "value"}, table.Headers)
}

func TestReadTableXLSXPrefersSubmissionSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "wrong"))
	_, err := f.NewSheet(SubmissionSheet)
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(SubmissionSheet, "A1", "team"))
	require.NoError(t, f.SetCellValue(SubmissionSheet, "B1", "value"))
	require.NoError(t, f.SetCellValue(SubmissionSheet, "A2", "Team A"))
	require.NoError(t, f.SetCellValue(SubmissionSheet, "B2", "30"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"team", "value"}, table.Headers)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"Team A", "30"}, table.Rows[0])
}

func TestReadTableRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub.json")
	writeCSV(t, path, "{}")

	_, err := ReadTable(path)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.xlsx")
	writeXLSX(t, path, RegistrySheet, [][]string{
		{"indicator_code", "indicator_name", "baseline", "target", "unit"},
		{"YTH_EMP_001", "Youth employment placements supported", "0", "1200", "count"},
		{"WEE_BIZ_002", "Women-led SMEs receiving business support", "", "600", "count"},
		{"", "row without a code is skipped", "", "", ""},
	})

	entries, err := ReadRegistry(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "YTH_EMP_001", first.IndicatorCode)
	assert.Equal(t, "Youth employment placements supported", first.IndicatorName)
	require.NotNil(t, first.Target)
	assert.Equal(t, 1200.0, *first.Target)
	require.NotNil(t, first.Baseline)
	assert.Equal(t, 0.0, *first.Baseline)

	assert.Nil(t, entries[1].Baseline, "blank baseline stays null")
}

func TestReadRegistryRequiresCodeColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.xlsx")
	writeXLSX(t, path, RegistrySheet, [][]string{
		{"name", "target"},
		{"x", "1"},
	})

	_, err := ReadRegistry(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indicator_code")
}
