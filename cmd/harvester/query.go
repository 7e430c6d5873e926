package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/harvest"
	"github.com/nao1215/harvester/internal/report"
)

// NewQueryCmd creates the query command.
func NewQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List the content stored for an output directory",
		Long: `Query prints the items harvested into the namespace of --output, grouped by
collection (content, images, files, audio, videos). Every item carries a
stable string id.

The output is JSON unless --markdown or --text is given. When nothing was
stored the command fails with "no data found", or "no <collection> found"
when a single collection was requested.

Examples:
  # All content harvested into out/example
  harvester query -o out/example

  # Only images, as a readable list
  harvester query -o out/example -t images --text

  # Results kept in Redis
  harvester query -o out/example --backend redis --redis-url redis://localhost:6379/0`,
		Args: cobra.NoArgs,
		RunE: runQueryCmd,
	}

	cmd.Flags().StringP("output", "o", "",
		"Output directory used for the crawl (required)")
	cmd.Flags().StringP("type", "t", config.NewConfig().ContentFilter,
		"Collection to list: content, images, files, audio, videos or all")
	cmd.Flags().Bool("text", false,
		"Output plain text instead of JSON")

	addStorageFlags(cmd)
	addReportFlags(cmd)

	return cmd
}

// runQueryCmd executes the query command.
func runQueryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildQueryConfig(cmd)
	if err != nil {
		return err
	}
	if err := validateQueryConfig(cfg); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	svc, closeStore, err := openService(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	out, closeOut, err := openReportOutput(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOut() //nolint:errcheck // the file is only written to

	return runQuery(cmd.Context(), svc, cfg, newReportWriter(out, cfg))
}

// buildQueryConfig creates a Config from the query flags.
func buildQueryConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	if cfg.OutputDir, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}
	if cfg.ContentFilter, err = cmd.Flags().GetString("type"); err != nil {
		return nil, err
	}
	if err := readCommonFlags(cmd, cfg); err != nil {
		return nil, err
	}

	text, err := cmd.Flags().GetBool("text")
	if err != nil {
		return nil, err
	}
	// Query results are JSON unless another format was asked for.
	if !text && !cfg.MarkdownReport {
		cfg.JSONReport = true
	}
	return cfg, nil
}

// validateQueryConfig checks the options a query depends on.
func validateQueryConfig(cfg *config.Config) error {
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return config.ErrNoOutputDir
	}
	if _, err := cfg.Namespace(); err != nil {
		return config.ErrInvalidOutputDir
	}
	if _, err := cfg.Filter(); err != nil {
		return config.ErrInvalidContentFilter
	}
	return cfg.ValidateStorage()
}

// runQuery writes the items of cfg.OutputDir selected by cfg.ContentFilter.
func runQuery(ctx context.Context, svc *harvest.Service, cfg *config.Config, w report.Writer) error {
	filter, err := cfg.Filter()
	if err != nil {
		return err
	}
	items, err := svc.Query(ctx, cfg.OutputDir, filter)
	if err != nil {
		return err
	}
	_, err = w.WriteItems(items)
	return err
}
