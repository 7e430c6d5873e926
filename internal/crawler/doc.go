// Package crawler discovers and classifies the content reachable from a seed URL.
//
// # Architecture
//
// The package is built around the Spider type, which runs crawl sessions.
// A session owns a Frontier (the breadth-first queue and visited set), a
// Scope (the traversal boundary) and an ExtractorSet. A fixed pool of
// workers loops over the frontier:
//
//	claim -> robots check -> fetch -> extract links -> classify -> store
//
// The Frontier is the only shared mutable state. Claiming an entry and
// marking its URL visited happen under one lock, so a canonical URL is
// fetched at most once per session however many pages reference it.
//
// # Components
//
//   - Spider: the coordinator; returns a model.CrawlSummary or a *CrawlError
//   - Frontier: FIFO queue with depth, page and queue size limits
//   - Scope: same-origin, same-host, same-site or any, plus path globs
//   - HTMLExtractor, FeedExtractor, SitemapExtractor: link extraction
//   - Classify: media type, then tag hint, then extension, then file
//   - ExtractText: readable page text for page-text items
//
// # Errors
//
// Per URL failures never stop a session. Fetch and store failures are
// recorded in the summary, extraction problems are counted as warnings.
// Only an invalid session, an unusable namespace or an unreachable seed
// produce a *CrawlError.
//
// # Usage
//
//	spider := crawler.NewSpider(f, sink, crawler.WithRobots(robots))
//	sess := crawler.NewSession("https://example.com", "example", filter)
//	summary, err := spider.Run(ctx, sess)
//
// # Politeness
//
//   - robots.txt is honoured when a RobotsChecker is configured
//   - the fetcher can rate limit requests per host
//   - concurrency and the page budget bound the work of a session
package crawler
