// Package fetcher downloads single resources for the crawler.
//
// A Fetcher performs one GET per call with a per-attempt timeout, follows
// redirects up to a cap and retries transient failures (timeouts, 5xx,
// 429, reset connections) with capped exponential backoff. 4xx responses
// and unknown hosts fail immediately. Failures are reported as *FetchError.
//
// The package also provides the session HTTP client (NewHTTPClient), a
// per-host politeness limiter and a robots.txt policy.
package fetcher
