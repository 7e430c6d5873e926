package model

import "time"

// FailureStage tells whether a URL failed while fetching or while storing.
type FailureStage string

const (
	// StageFetch marks failures of the HTTP fetch after retries.
	StageFetch FailureStage = "fetch"
	// StageStore marks failures of the result sink.
	StageStore FailureStage = "store"
)

// FailedURL records a URL that could not be harvested.
type FailedURL struct {
	URL        string       `json:"url"`
	Stage      FailureStage `json:"stage"`
	Kind       ContentKind  `json:"kind,omitempty"`
	StatusCode int          `json:"status_code,omitempty"`
	Transient  bool         `json:"transient,omitempty"`
	Attempts   int          `json:"attempts,omitempty"`
	Reason     string       `json:"reason"`
}

// CrawlSummary is the result of one crawl session.
// Counters are filled by the coordinator; callers only read it.
type CrawlSummary struct {
	SessionID string `json:"session_id"`
	SeedURL   string `json:"seed_url"`
	Namespace string `json:"namespace"`
	Filter    string `json:"filter"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// PagesVisited counts URLs that were fetched successfully, of any kind.
	PagesVisited int `json:"pages_visited"`

	// ItemsByKind counts items acknowledged by the sink.
	ItemsByKind map[ContentKind]int `json:"items_by_kind"`

	// FailedURLs lists fetch and store failures.
	FailedURLs []FailedURL `json:"failed_urls,omitempty"`

	// SkippedByRobots counts URLs disallowed by robots.txt.
	SkippedByRobots int `json:"skipped_by_robots,omitempty"`

	// SkippedByScope counts URLs that redirected outside the crawl scope.
	SkippedByScope int `json:"skipped_by_scope,omitempty"`

	// FilteredOut counts fetched resources whose kind the filter excluded.
	FilteredOut int `json:"filtered_out,omitempty"`

	// FrontierDropped counts discovered URLs rejected because the queue was full.
	FrontierDropped int `json:"frontier_dropped,omitempty"`

	// Warnings counts soft extraction problems such as malformed markup.
	Warnings int `json:"warnings,omitempty"`

	// Cancelled is set when the caller cancelled the session before the
	// frontier was exhausted.
	Cancelled bool `json:"cancelled,omitempty"`
}

// NewCrawlSummary returns an empty summary for a session.
func NewCrawlSummary(sessionID, seedURL, namespace string, filter ContentFilter) *CrawlSummary {
	return &CrawlSummary{
		SessionID:   sessionID,
		SeedURL:     seedURL,
		Namespace:   namespace,
		Filter:      filter.String(),
		StartedAt:   time.Now().UTC(),
		ItemsByKind: make(map[ContentKind]int, len(AllKinds)),
	}
}

// RecordItem counts one stored item.
func (s *CrawlSummary) RecordItem(kind ContentKind) {
	if s.ItemsByKind == nil {
		s.ItemsByKind = make(map[ContentKind]int, len(AllKinds))
	}
	s.ItemsByKind[kind]++
}

// RecordFailure appends a failure.
func (s *CrawlSummary) RecordFailure(f FailedURL) {
	s.FailedURLs = append(s.FailedURLs, f)
}

// TotalItems returns the number of stored items over all kinds.
func (s *CrawlSummary) TotalItems() int {
	total := 0
	for _, n := range s.ItemsByKind {
		total += n
	}
	return total
}

// Failures returns the failures recorded at the given stage.
func (s *CrawlSummary) Failures(stage FailureStage) []FailedURL {
	var out []FailedURL
	for _, f := range s.FailedURLs {
		if f.Stage == stage {
			out = append(out, f)
		}
	}
	return out
}

// Duration returns how long the session ran.
func (s *CrawlSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
