// Package repository persists pipeline data through the relational store,
// one repository per table. Methods take a db.Executor so the same calls run
// standalone or inside the orchestrator's transaction.
package repository

import (
	"context"
	"fmt"

	"github.com/wgyd/mereport/internal/db"
	"github.com/wgyd/mereport/internal/domain"
)

// RegistryRepository owns the dim_indicator_registry reference table.
type RegistryRepository struct {
	conn *db.Conn
}

// NewRegistryRepository creates a new registry repository.
func NewRegistryRepository(conn *db.Conn) *RegistryRepository {
	return &RegistryRepository{conn: conn}
}

// Replace reloads the registry wholesale: the existing table content is
// dropped and the supplied entries inserted in order.
func (r *RegistryRepository) Replace(ctx context.Context, ex db.Executor, entries []domain.RegistryEntry) error {
	if _, err := ex.ExecContext(ctx, "DELETE FROM dim_indicator_registry"); err != nil {
		return fmt.Errorf("failed to clear indicator registry: %w", err)
	}

	insert := r.conn.Rebind(`
		INSERT INTO dim_indicator_registry
			(indicator_code, indicator_name, definition, unit, disagg_required,
			 data_source, baseline, target, frequency, owner)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	for _, entry := range entries {
		_, err := ex.ExecContext(ctx, insert,
			entry.IndicatorCode,
			entry.IndicatorName,
			entry.Definition,
			entry.Unit,
			entry.DisaggRequired,
			entry.DataSource,
			nullFloat(entry.Baseline),
			nullFloat(entry.Target),
			entry.Frequency,
			entry.Owner,
		)
		if err != nil {
			return fmt.Errorf("failed to insert registry entry %s: %w", entry.IndicatorCode, err)
		}
	}
	return nil
}

// Count returns the number of registry entries currently loaded.
func (r *RegistryRepository) Count(ctx context.Context, ex db.Executor) (int, error) {
	var n int
	if err := ex.QueryRowContext(ctx, "SELECT COUNT(*) FROM dim_indicator_registry").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count registry entries: %w", err)
	}
	return n, nil
}
