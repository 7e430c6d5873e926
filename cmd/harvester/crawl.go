package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/harvest"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Crawl websites and store the content found",
		Long: `Crawl traverses each seed URL breadth-first, fetches every in-scope page and
embedded resource once, and stores the results in collections:

  content  extracted page text
  images   image files
  files    downloadable documents and archives
  audio    audio files
  videos   video files

Results are stored under a namespace derived from --output. Each seed runs in
its own crawl session; several seeds are crawled at the same time (--batch).
Failures of single URLs are listed in the report and never stop the crawl.

Examples:
  # Crawl a site and store everything
  harvester crawl -o out/example https://example.com/

  # Store only images, follow links up to 5 hops away
  harvester crawl -o out/example -t images -d 5 https://example.com/

  # Also save binary payloads below the output directory
  harvester crawl -o out/example --save-files https://example.com/

  # Crawl an onion service through an embedded Tor daemon
  harvester crawl -o out/onion --tor http://<56-character-address>.onion/

  # Output the crawl summary as JSON
  harvester crawl -o out/example --json https://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Target flags
	cmd.Flags().StringP("output", "o", "",
		"Output directory; names the result namespace (required)")
	cmd.Flags().StringP("type", "t", config.NewConfig().ContentFilter,
		"Content to store: content, images, files, audio, videos or all")

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum number of link hops from the seed (0 fetches only the seed)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of URLs fetched per seed")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of concurrent workers per seed")
	cmd.Flags().Duration("timeout", config.DefaultRequestTimeout,
		"Timeout of each HTTP request")
	cmd.Flags().Int("retries", config.DefaultMaxRetries,
		"Retries after a transient fetch failure")
	cmd.Flags().Int("max-queue", config.DefaultMaxQueueSize,
		"Maximum number of queued URLs (0 for no limit)")
	cmd.Flags().String("scope", config.DefaultScope,
		"Traversal scope: same-origin, same-host, same-site or any")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Minimum delay between two requests to the same host")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes; larger bodies are truncated")
	cmd.Flags().StringSlice("download-ext", nil,
		"Anchor extensions treated as downloadable files (default: common document and archive types)")
	cmd.Flags().Bool("no-robots", false,
		"Ignore robots.txt")
	cmd.Flags().Bool("sitemap", false,
		"Also queue the URLs listed in the site's sitemap.xml")
	cmd.Flags().Bool("save-files", false,
		"Write binary payloads below the output directory")

	// Network flags
	cmd.Flags().String("proxy", "",
		"Route all traffic through a SOCKS5 proxy (e.g. 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route all traffic through it")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Batch crawling flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled at the same time")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .harvester in current or home directory)")

	addStorageFlags(cmd)
	addReportFlags(cmd)

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// buildCrawlConfig creates a Config from cobra command flags.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.OutputDir, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.ContentFilter, err = flags.GetString("type"); err != nil {
		return nil, err
	}
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = flags.GetInt("retries"); err != nil {
		return nil, err
	}
	if cfg.MaxQueueSize, err = flags.GetInt("max-queue"); err != nil {
		return nil, err
	}
	if cfg.Scope, err = flags.GetString("scope"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.DownloadExtensions, err = flags.GetStringSlice("download-ext"); err != nil {
		return nil, err
	}

	noRobots, err := flags.GetBool("no-robots")
	if err != nil {
		return nil, err
	}
	cfg.RespectRobots = !noRobots

	if cfg.UseSitemap, err = flags.GetBool("sitemap"); err != nil {
		return nil, err
	}
	if cfg.SaveFiles, err = flags.GetBool("save-files"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	if err := readCommonFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := loadSiteConfigs(cfg); err != nil {
		return nil, err
	}

	cfg.SeedURLs = args
	return cfg, nil
}

// runCrawl opens the store and the transport, crawls every seed and
// writes one report per finished session. It fails when a seed could not
// be crawled, after all other seeds were processed.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	logger.InfoContext(ctx, "starting crawl",
		slog.Int("seeds", len(cfg.SeedURLs)),
		slog.String("output", cfg.OutputDir),
		slog.String("type", cfg.ContentFilter),
		slog.String("backend", cfg.Backend),
		slog.Int("batch", cfg.BatchSize))

	store, err := harvest.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.UseTor {
		fmt.Fprintln(stderr, "Starting embedded Tor daemon...")
		fmt.Fprintf(stderr, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")
	}
	transport, err := harvest.StartTransport(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer transport.Close()

	out, closeOut, err := openReportOutput(cfg, stdout)
	if err != nil {
		return err
	}
	defer closeOut() //nolint:errcheck // the file is only written to

	svc := harvest.NewService(cfg, store, append(transport.Options(), harvest.WithLogger(logger))...)
	writer := newReportWriter(out, cfg)
	batch := harvest.NewBatch(svc,
		harvest.WithConcurrency(cfg.BatchSize),
		harvest.WithBatchLogger(logger),
	)

	start := time.Now()
	var (
		mu     sync.Mutex
		failed int
	)
	err = batch.RunWithCallback(ctx, cfg.SeedURLs, func(r harvest.Result) {
		mu.Lock()
		defer mu.Unlock()

		if r.Err != nil {
			failed++
			fmt.Fprintf(stderr, "Crawl error for %s: %v\n", r.Seed, r.Err)
			return
		}
		if len(cfg.SeedURLs) > 1 {
			fmt.Fprintf(stderr, "[%d/%d] Crawl completed: %s\n", r.Index+1, len(cfg.SeedURLs), r.Seed)
		}
		if _, err := writer.Write(r.Summary); err != nil {
			logger.ErrorContext(ctx, "report failed",
				slog.String("seed", r.Seed),
				slog.String("error", err.Error()))
		}
	})
	if len(cfg.SeedURLs) > 1 {
		fmt.Fprintf(stderr, "\nBatch crawl completed in %s\n", time.Since(start).Round(time.Millisecond))
	}
	if err != nil {
		return fmt.Errorf("crawl cancelled: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d seed(s) could not be crawled", failed, len(cfg.SeedURLs))
	}
	return nil
}
