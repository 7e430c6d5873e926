// Package model defines the data structures shared by the harvester packages.
//
// This package contains the following main types:
//   - ContentKind and ContentFilter: the five kinds of harvested content and
//     the collection names they are stored under
//   - URLRecord: a discovered URL and its canonical form
//   - ContentItem: a classified resource handed to a result sink
//   - CrawlSummary: counters and failures of one crawl session
//
// The models live in their own package so that crawler, database, harvest
// and report can share them without import cycles. All of them serialize to
// JSON for reports and storage.
package model
