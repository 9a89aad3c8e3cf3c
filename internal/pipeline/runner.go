// Package pipeline orchestrates the standardize → validate → load →
// aggregate sequence for one reporting period.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/wgyd/mereport/internal/config"
	"github.com/wgyd/mereport/internal/db"
	"github.com/wgyd/mereport/internal/domain"
	"github.com/wgyd/mereport/internal/inputs"
	"github.com/wgyd/mereport/internal/mart"
	"github.com/wgyd/mereport/internal/report"
	"github.com/wgyd/mereport/internal/repository"
	"github.com/wgyd/mereport/internal/standardize"
	"github.com/wgyd/mereport/internal/validate"
)

// ErrNoSubmissions is returned when a period has no submission files at all.
// The run aborts before touching the store.
var ErrNoSubmissions = errors.New("no submission files found")

// Runner drives the full pipeline for a reporting period.
type Runner struct {
	cfg  config.Config
	conn *db.Conn

	registry    *repository.RegistryRepository
	submissions *repository.SubmissionRepository
	exceptions  *repository.ExceptionRepository
	runs        *repository.RunRepository
	martBuilder *mart.Builder
	brief       *report.BriefGenerator

	logger *slog.Logger
	now    func() time.Time
}

// NewRunner wires a runner and its repositories onto one store connection.
func NewRunner(cfg config.Config, conn *db.Conn, logger *slog.Logger) *Runner {
	submissions := repository.NewSubmissionRepository(conn)
	exceptions := repository.NewExceptionRepository(conn)
	martRepo := repository.NewMartRepository(conn)

	return &Runner{
		cfg:         cfg,
		conn:        conn,
		registry:    repository.NewRegistryRepository(conn),
		submissions: submissions,
		exceptions:  exceptions,
		runs:        repository.NewRunRepository(conn),
		martBuilder: mart.NewBuilder(martRepo),
		brief:       report.NewBriefGenerator(conn, submissions, exceptions, martRepo, cfg.BriefsDir),
		logger:      logger,
		now:         time.Now,
	}
}

// Summary reports the user-visible outcome of one period run.
type Summary struct {
	RunID          uuid.UUID
	ReportMonth    string
	FilesRead      int
	RawRows        int
	CleanRows      int
	ExceptionRows  int
	ExceptionsPath string
	BriefPath      string
}

// RunPeriod executes the full pipeline for one reporting period: registry
// reload, per-file standardize and validate, idempotent period replacement
// plus mart rebuild in a single transaction, exceptions artifact, and brief.
// Any read or persistence failure aborts the whole run; there is no
// partial-file skip policy.
func (r *Runner) RunPeriod(ctx context.Context, reportMonth string) (Summary, error) {
	startedAt := r.now().UTC()
	runID := uuid.New()
	log := r.logger.With("run_id", runID.String(), "report_month", reportMonth)

	registryEntries, err := inputs.ReadRegistry(r.cfg.RegistryPath)
	if err != nil {
		return Summary{}, err
	}
	validCodes := make(map[string]bool, len(registryEntries))
	for _, entry := range registryEntries {
		validCodes[entry.IndicatorCode] = true
	}

	files, err := inputs.ListSubmissionFiles(r.cfg.SubmissionsDir, reportMonth)
	if err != nil {
		return Summary{}, err
	}
	if len(files) == 0 {
		return Summary{}, fmt.Errorf("%w in %s", ErrNoSubmissions,
			filepath.Join(r.cfg.SubmissionsDir, reportMonth))
	}

	// One batch-wide load timestamp shared by every record in the run.
	loadedAt := startedAt.Truncate(time.Second)

	var (
		allRaw        []domain.Submission
		allClean      []domain.Submission
		allExceptions []domain.Exception
	)

	for _, file := range files {
		table, err := inputs.ReadTable(file)
		if err != nil {
			return Summary{}, err
		}

		batch := standardize.Standardize(table, filepath.Base(file))
		for i := range batch {
			batch[i].LoadedAt = loadedAt
		}

		result := validate.Validate(batch, validCodes)
		log.Info("validated submission file",
			"file", filepath.Base(file),
			"rows", len(batch),
			"clean", len(result.Clean),
			"exceptions", len(result.Exceptions))

		allRaw = append(allRaw, batch...)
		allClean = append(allClean, result.Clean...)
		allExceptions = append(allExceptions, result.Exceptions...)
	}

	// Replace the period's data and rebuild derived aggregates atomically:
	// either the full replace-and-rebuild lands or nothing does.
	err = r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if err := r.registry.Replace(ctx, tx, registryEntries); err != nil {
			return err
		}
		if err := r.submissions.DeleteMonth(ctx, tx, reportMonth); err != nil {
			return err
		}
		if err := r.exceptions.DeleteMonth(ctx, tx, reportMonth); err != nil {
			return err
		}
		if err := r.submissions.InsertRaw(ctx, tx, allRaw); err != nil {
			return err
		}
		if err := r.submissions.InsertClean(ctx, tx, allClean); err != nil {
			return err
		}
		if err := r.exceptions.Insert(ctx, tx, allExceptions); err != nil {
			return err
		}
		if err := r.martBuilder.Rebuild(ctx, tx); err != nil {
			return err
		}
		return r.runs.Record(ctx, tx, domain.RunRecord{
			ID:            runID,
			ReportMonth:   reportMonth,
			FilesRead:     len(files),
			RawRows:       len(allRaw),
			CleanRows:     len(allClean),
			ExceptionRows: len(allExceptions),
			StartedAt:     startedAt,
			FinishedAt:    r.now().UTC(),
		})
	})
	if err != nil {
		return Summary{}, err
	}

	// The exceptions artifact is always produced, even when empty.
	exceptionsPath, err := report.WriteExceptions(r.cfg.ExceptionsDir, reportMonth, allExceptions)
	if err != nil {
		return Summary{}, err
	}

	briefPath, err := r.brief.Generate(ctx, reportMonth)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		RunID:          runID,
		ReportMonth:    reportMonth,
		FilesRead:      len(files),
		RawRows:        len(allRaw),
		CleanRows:      len(allClean),
		ExceptionRows:  len(allExceptions),
		ExceptionsPath: exceptionsPath,
		BriefPath:      briefPath,
	}

	log.Info("period run complete",
		"files_read", summary.FilesRead,
		"raw_rows", summary.RawRows,
		"clean_rows", summary.CleanRows,
		"exception_rows", summary.ExceptionRows)

	return summary, nil
}

// Print writes the end-of-run console summary.
func (s Summary) Print() {
	fmt.Printf("Month processed: %s\n", s.ReportMonth)
	fmt.Printf("Files read: %d\n", s.FilesRead)
	fmt.Printf("Raw rows loaded: %d\n", s.RawRows)
	fmt.Printf("Clean rows loaded: %d\n", s.CleanRows)
	fmt.Printf("Exceptions logged: %d\n", s.ExceptionRows)
	fmt.Printf("Exceptions report: %s\n", s.ExceptionsPath)
	fmt.Printf("Monthly brief: %s\n", s.BriefPath)
}
