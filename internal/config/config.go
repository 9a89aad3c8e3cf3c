// Package config loads pipeline configuration from an optional config.yaml
// and environment overrides. Components receive an explicit Config; nothing
// reads ambient process state after startup.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/wgyd/mereport/internal/db"
)

// Config carries every recognized pipeline option.
type Config struct {
	DB db.Config

	// SubmissionsDir is the root holding one period-named subdirectory of
	// submission files per reporting month.
	SubmissionsDir string
	// RegistryPath points at the indicator registry workbook.
	RegistryPath string

	ExceptionsDir string
	BriefsDir     string
	ExportsDir    string

	// ReportMonth is the default period (YYYY-MM) when none is given on the
	// command line.
	ReportMonth string
}

// Load reads configuration from config.yaml in configPath (when present) and
// environment variables prefixed MEREPORT, applying defaults for everything
// unset. Environment keys use underscores, e.g. MEREPORT_DB_DRIVER or
// MEREPORT_SUBMISSIONS_DIR.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.SetEnvPrefix("MEREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dbDefaults := db.DefaultConfig()
	v.SetDefault("db.driver", string(dbDefaults.Driver))
	v.SetDefault("db.path", dbDefaults.Path)
	v.SetDefault("db.host", dbDefaults.Host)
	v.SetDefault("db.port", dbDefaults.Port)
	v.SetDefault("db.user", dbDefaults.User)
	v.SetDefault("db.password", dbDefaults.Password)
	v.SetDefault("db.dbname", dbDefaults.DBName)
	v.SetDefault("db.sslmode", dbDefaults.SSLMode)

	v.SetDefault("submissions_dir", "./data/submissions_raw")
	v.SetDefault("registry_path", "./data/indicator_registry/indicator_registry.xlsx")
	v.SetDefault("exceptions_dir", "./data/outputs/exceptions")
	v.SetDefault("briefs_dir", "./data/outputs/briefs")
	v.SetDefault("exports_dir", "./data/outputs/exports")
	v.SetDefault("report_month", "")

	// Nested keys need an explicit binding for env overrides to register.
	for _, key := range []string{
		"db.driver", "db.path", "db.host", "db.port",
		"db.user", "db.password", "db.dbname", "db.sslmode",
		"submissions_dir", "registry_path",
		"exceptions_dir", "briefs_dir", "exports_dir", "report_month",
	} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config.yaml is fine: defaults plus env cover everything.
	}

	cfg := Config{
		DB: db.Config{
			Driver:   db.Driver(v.GetString("db.driver")),
			Path:     v.GetString("db.path"),
			Host:     v.GetString("db.host"),
			Port:     v.GetInt("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			DBName:   v.GetString("db.dbname"),
			SSLMode:  v.GetString("db.sslmode"),
		},
		SubmissionsDir: v.GetString("submissions_dir"),
		RegistryPath:   v.GetString("registry_path"),
		ExceptionsDir:  v.GetString("exceptions_dir"),
		BriefsDir:      v.GetString("briefs_dir"),
		ExportsDir:     v.GetString("exports_dir"),
		ReportMonth:    v.GetString("report_month"),
	}

	switch cfg.DB.Driver {
	case db.DriverSQLite, db.DriverPostgres:
	default:
		return Config{}, fmt.Errorf("unsupported db.driver %q (expected sqlite or postgres)", cfg.DB.Driver)
	}

	return cfg, nil
}
