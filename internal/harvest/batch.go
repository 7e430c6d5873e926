package harvest

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/model"
)

// Crawler runs one crawl session per seed. *Service implements it.
type Crawler interface {
	Crawl(ctx context.Context, seed string) (*model.CrawlSummary, error)
}

// Result is the outcome of one seed of a batch.
type Result struct {
	// Index is the position of Seed in the batch input.
	Index int

	// Seed is the seed URL as given.
	Seed string

	// Summary is nil when Err is set.
	Summary *model.CrawlSummary

	// Err is the error that aborted the session.
	Err error
}

// Batch crawls several seeds at the same time, each in its own session.
// A failing seed never stops the others.
type Batch struct {
	crawler     Crawler
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithBatchLogger sets the logger for batch-level messages.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *Batch) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithConcurrency sets the number of sessions running at the same time.
func WithConcurrency(n int) BatchOption {
	return func(b *Batch) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatch creates a Batch running sessions with c.
func NewBatch(c Crawler, opts ...BatchOption) *Batch {
	b := &Batch{
		crawler:     c,
		concurrency: config.DefaultBatchSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run crawls every seed and returns the results in input order. The
// error is non-nil only when ctx was cancelled before every seed started;
// seeds that never started carry the context error.
func (b *Batch) Run(ctx context.Context, seeds []string) ([]Result, error) {
	results := make([]Result, len(seeds))
	err := b.RunWithCallback(ctx, seeds, func(r Result) {
		// Each index is written by exactly one goroutine.
		results[r.Index] = r
	})
	return results, err
}

// RunWithCallback crawls every seed and calls fn as each session ends.
// fn is called from the worker goroutines and must be safe for
// concurrent use.
func (b *Batch) RunWithCallback(ctx context.Context, seeds []string, fn func(Result)) error {
	b.logger.InfoContext(ctx, "starting batch",
		slog.Int("seeds", len(seeds)),
		slog.Int("concurrency", b.concurrency))
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(b.concurrency)

	var cancelled error
	for i, seed := range seeds {
		if err := ctx.Err(); err != nil {
			cancelled = err
			fn(Result{Index: i, Seed: seed, Err: err})
			continue
		}
		g.Go(func() error {
			summary, err := b.crawler.Crawl(ctx, seed)
			if err != nil {
				b.logger.WarnContext(ctx, "session failed",
					slog.String("seed", seed),
					slog.String("error", err.Error()))
			}
			fn(Result{Index: i, Seed: seed, Summary: summary, Err: err})
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // session errors are reported through fn

	b.logger.InfoContext(ctx, "batch complete",
		slog.Int("seeds", len(seeds)),
		slog.Duration("elapsed", time.Since(start)))
	return cancelled
}
