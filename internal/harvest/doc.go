// Package harvest wires the crawler, the fetcher, the metadata inspector
// and a result store into the operations of the harvester: crawling a
// seed, crawling many seeds as a batch, reading back what was harvested
// and listing past sessions.
//
// A Service is built once per run from a config.Config and a store. Each
// crawl gets its own HTTP client, host limiter and robots cache, so
// sessions running at the same time share nothing but the store.
package harvest
