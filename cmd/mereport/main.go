// Command mereport runs the monthly indicator-reporting pipeline.
//
//	mereport run -month 2025-01      process one reporting period end to end
//	mereport export                  extract store tables and views to CSV
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wgyd/mereport/internal/config"
	"github.com/wgyd/mereport/internal/db"
	"github.com/wgyd/mereport/internal/export"
	"github.com/wgyd/mereport/internal/pipeline"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runPeriod(os.Args[2:], logger)
	case "export":
		err = runExport(os.Args[2:], logger)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mereport run -month YYYY-MM | mereport export")
}

func runPeriod(args []string, logger *slog.Logger) error {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	month := flags.String("month", "", "reporting period to process (YYYY-MM)")
	configPath := flags.String("config", ".", "directory holding config.yaml")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	reportMonth := *month
	if reportMonth == "" {
		reportMonth = cfg.ReportMonth
	}
	if reportMonth == "" {
		return fmt.Errorf("no reporting period: pass -month or set report_month in config")
	}

	ctx := context.Background()
	conn, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	runner := pipeline.NewRunner(cfg, conn, logger)
	summary, err := runner.RunPeriod(ctx, reportMonth)
	if err != nil {
		return err
	}
	summary.Print()
	return nil
}

func runExport(args []string, logger *slog.Logger) error {
	flags := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := flags.String("config", ".", "directory holding config.yaml")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	conn, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	results, err := export.NewService(conn, cfg.ExportsDir).Run(ctx)
	if err != nil {
		return err
	}
	for _, result := range results {
		fmt.Printf("Exported: %s (%d rows)\n", result.Path, result.Rows)
	}
	logger.Info("export complete", "datasets", len(results), "dir", cfg.ExportsDir)
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (*db.Conn, error) {
	if cfg.DB.Driver == db.DriverSQLite {
		if dir := dirOf(cfg.DB.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create store directory: %w", err)
			}
		}
	}

	conn, err := db.Open(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := conn.Migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func dirOf(path string) string {
	if path == "" || path == ":memory:" {
		return ""
	}
	return filepath.Dir(path)
}
