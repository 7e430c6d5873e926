package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/harvest"
	"github.com/nao1215/harvester/internal/log"
	"github.com/nao1215/harvester/internal/report"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getJSONLogsFlag retrieves the json-logs flag from the command or its parent.
func getJSONLogsFlag(cmd *cobra.Command) bool {
	jsonLogs, err := cmd.Flags().GetBool("json-logs")
	if err != nil {
		jsonLogs, err = cmd.Root().PersistentFlags().GetBool("json-logs")
		if err != nil {
			return false
		}
	}
	return jsonLogs
}

// setupLogger creates the structured logger of a command. Logs go to
// stderr so reports on stdout stay machine readable.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return log.NewLogger(w, log.Options{Verbose: cfg.Verbose, JSON: cfg.JSONLogs})
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// addStorageFlags registers the flags selecting the result store.
func addStorageFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", config.BackendSQLite,
		"Result store: sqlite, redis or memory")
	cmd.Flags().String("db-dir", "",
		"SQLite database directory (default: XDG data directory)")
	cmd.Flags().String("redis-url", "",
		"Redis URL for the redis backend (e.g. redis://localhost:6379/0)")
}

// readStorageFlags copies the storage flags into cfg.
func readStorageFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.Backend, err = cmd.Flags().GetString("backend"); err != nil {
		return err
	}
	if cfg.DBDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return err
	}
	if cfg.RedisURL, err = cmd.Flags().GetString("redis-url"); err != nil {
		return err
	}
	return nil
}

// addReportFlags registers the report format flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("report", "r", "",
		"Write output to the specified file path (creates directories if needed)")
}

// readReportFlags copies the report flags into cfg.
func readReportFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("report"); err != nil {
		return err
	}
	return nil
}

// readCommonFlags reads the flags shared by every command that opens a store.
func readCommonFlags(cmd *cobra.Command, cfg *config.Config) error {
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.JSONLogs = getJSONLogsFlag(cmd)
	if err := readStorageFlags(cmd, cfg); err != nil {
		return err
	}
	return readReportFlags(cmd, cfg)
}

// loadSiteConfigs loads the configuration file into cfg.SiteConfigs.
// A missing file is an error only when the path was given explicitly.
func loadSiteConfigs(cfg *config.Config) error {
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath == "" {
		if cfg.ConfigFilePath != "" {
			return fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
		}
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
		return nil
	}

	siteConfigs, err := config.LoadConfigFile(configPath)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return fmt.Errorf("configuration file not found: %s", configPath)
		}
		return fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	cfg.SiteConfigs = siteConfigs
	return nil
}

// openReportOutput returns the report destination: the report file when
// one is configured, stdout otherwise. The returned func closes it.
func openReportOutput(cfg *config.Config, stdout io.Writer) (io.Writer, func() error, error) {
	if cfg.ReportFile == "" {
		return stdout, func() error { return nil }, nil
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may quote cookies or URLs with credentials.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// newReportWriter returns the writer for the configured format.
func newReportWriter(w io.Writer, cfg *config.Config) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// openService opens the configured store and wraps it in a Service.
// The returned func closes the store.
func openService(cfg *config.Config, logger *slog.Logger) (*harvest.Service, func(), error) {
	store, err := harvest.OpenStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", slog.String("error", err.Error()))
		}
	}
	return harvest.NewService(cfg, store, harvest.WithLogger(logger)), closeStore, nil
}
