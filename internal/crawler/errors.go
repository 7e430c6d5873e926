package crawler

import (
	"errors"
	"fmt"

	"github.com/nao1215/harvester/internal/model"
)

var (
	// ErrSeedUnreachable means the seed URL could not be fetched within its retry budget.
	ErrSeedUnreachable = errors.New("seed URL unreachable")

	// ErrNamespaceUnusable means the sink refused the namespace.
	ErrNamespaceUnusable = errors.New("namespace unusable")

	// ErrDisallowedByRobots is reported when robots.txt forbids the seed.
	ErrDisallowedByRobots = errors.New("disallowed by robots.txt")

	// ErrInvalidSession is returned for sessions with impossible limits.
	ErrInvalidSession = errors.New("invalid crawl session")
)

// CrawlError aborts a whole session. It is returned only when the seed
// cannot be fetched, the namespace cannot be used or the session limits
// are invalid.
type CrawlError struct {
	// Reason is ErrSeedUnreachable, ErrNamespaceUnusable or ErrInvalidSession.
	Reason error

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawl aborted: %v: %v", e.Reason, e.Err)
}

// Unwrap exposes both the reason and the cause to errors.Is and errors.As.
func (e *CrawlError) Unwrap() []error {
	return []error{e.Reason, e.Err}
}

// StoreError reports that the sink rejected an item. It is recorded in the
// summary and never aborts the crawl.
type StoreError struct {
	URL  string
	Kind model.ContentKind
	Err  error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s item %s: %v", e.Kind, e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// ParseError is a soft extraction problem. Extractors collect them as
// warnings next to whatever they managed to recover; they are never returned
// as errors.
type ParseError struct {
	// Ref is the offending reference or document, when known.
	Ref string

	// Err is the parser error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("parse: %v", e.Err)
	}
	return fmt.Sprintf("parse %q: %v", e.Ref, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}
