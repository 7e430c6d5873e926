package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/harvest"
	"github.com/nao1215/harvester/internal/report"
)

// defaultHistoryLimit is the number of sessions listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past crawl sessions",
		Long: `History lists the crawl sessions recorded in the store, most recent first.
Each crawl records its session, including cancelled ones, so the item counts
and failed URLs of earlier runs can be reviewed.

The memory backend forgets its history when the process exits.

Examples:
  # The last 20 sessions of every output directory
  harvester history

  # Sessions of one output directory
  harvester history -o out/example

  # Full report of one session
  harvester history --session 7f1c2a4e-5b6d-4e7f-8a9b-0c1d2e3f4a5b

  # History as Markdown
  harvester history --markdown -r history.md`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("output", "o", "",
		"Only list sessions of this output directory")
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit,
		"Maximum number of sessions listed (0 for all)")
	cmd.Flags().StringP("session", "s", "",
		"Show the full report of one session")

	addStorageFlags(cmd)
	addReportFlags(cmd)

	return cmd
}

// historyOptions are the history flags that are not part of Config.
type historyOptions struct {
	limit     int
	sessionID string
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()

	var err error
	if cfg.OutputDir, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}
	if err := readCommonFlags(cmd, cfg); err != nil {
		return err
	}

	var opts historyOptions
	if opts.limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return err
	}
	if opts.sessionID, err = cmd.Flags().GetString("session"); err != nil {
		return err
	}

	if err := cfg.ValidateStorage(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if opts.limit < 0 {
		return fmt.Errorf("configuration error: invalid limit %d: must be non-negative", opts.limit)
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

	return runHistory(cmd.Context(), svc, cfg, opts, newReportWriter(out, cfg))
}

// runHistory writes either one session report or the session list.
func runHistory(ctx context.Context, svc *harvest.Service, cfg *config.Config, opts historyOptions, w report.Writer) error {
	if opts.sessionID != "" {
		summary, err := svc.Session(ctx, opts.sessionID)
		if err != nil {
			return fmt.Errorf("failed to load session %s: %w", opts.sessionID, err)
		}
		_, err = w.Write(summary)
		return err
	}

	sessions, err := svc.History(ctx, cfg.OutputDir, opts.limit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	_, err = w.WriteHistory(sessions)
	return err
}
