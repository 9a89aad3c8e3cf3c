// Package report produces the per-period output artifacts: the exceptions
// CSV and the rendered monthly brief. Both are derived from already-persisted
// data and never write to the store.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wgyd/mereport/internal/domain"
)

// WriteExceptions writes the period's exception set to a delimited artifact,
// one row per exception plus a header. The file is written even when the set
// is empty so downstream consumers always find it. Returns the written path.
func WriteExceptions(dir, reportMonth string, exceptions []domain.Exception) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create exceptions directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("exceptions_%s.csv", reportMonth))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create exceptions file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(domain.ExceptionColumns()); err != nil {
		return "", fmt.Errorf("failed to write exceptions header: %w", err)
	}

	for _, exc := range exceptions {
		row := []string{
			orEmpty(exc.ReportMonth),
			orEmpty(exc.Team),
			orEmpty(exc.IndicatorCode),
			exc.Field,
			exc.Issue,
			string(exc.Severity),
			exc.SourceFile,
			exc.RowRef,
			exc.CreatedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write exception row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush exceptions file: %w", err)
	}
	return path, nil
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
