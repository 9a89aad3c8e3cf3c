// Package mart recomputes the denormalized aggregate table from the
// accumulated clean records. The mart is fully derived: every rebuild clears
// it and recomputes from scratch.
package mart

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/wgyd/mereport/internal/db"
	"github.com/wgyd/mereport/internal/domain"
	"github.com/wgyd/mereport/internal/repository"
)

// Builder rebuilds gold_indicator_mart from clean_submissions.
type Builder struct {
	mart *repository.MartRepository
}

// NewBuilder creates a new mart builder.
func NewBuilder(mart *repository.MartRepository) *Builder {
	return &Builder{mart: mart}
}

// Rebuild clears the aggregate table and recomputes one row per
// (report_month, indicator_code, region, gender, age_band) group over all
// periods' clean records, registry-joined. The rebuild covers the full
// history on every run so that reruns of any single period leave the mart
// consistent with the store.
func (b *Builder) Rebuild(ctx context.Context, ex db.Executor) error {
	if err := b.mart.Clear(ctx, ex); err != nil {
		return err
	}

	totals, err := b.mart.GroupedCleanTotals(ctx, ex)
	if err != nil {
		return err
	}

	rows := make([]domain.MartRow, len(totals))
	for i, total := range totals {
		rows[i] = domain.MartRow{
			ReportMonth:      total.ReportMonth,
			IndicatorCode:    total.IndicatorCode,
			Region:           total.Region,
			Gender:           total.Gender,
			AgeBand:          total.AgeBand,
			ActualValue:      total.ActualValue,
			Baseline:         total.Baseline,
			Target:           total.Target,
			ProgressToTarget: ProgressToTarget(total.ActualValue, total.Target),
		}
	}

	return b.mart.Insert(ctx, ex, rows)
}

// ProgressToTarget computes actual/target rounded to 4 decimal places.
// It is null when the target is null or zero.
func ProgressToTarget(actual float64, target *float64) *float64 {
	if target == nil || *target == 0 {
		return nil
	}
	progress, _ := decimal.NewFromFloat(actual).
		Div(decimal.NewFromFloat(*target)).
		Round(4).
		Float64()
	return &progress
}
