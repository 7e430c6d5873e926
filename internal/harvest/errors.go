package harvest

import (
	"errors"
	"fmt"
)

var (
	// ErrNoContent is matched by the error Query returns when nothing was
	// harvested for the requested collections.
	ErrNoContent = errors.New("no data found")

	// ErrOnionNeedsProxy is returned for a .onion seed when neither a
	// SOCKS5 proxy nor the embedded Tor daemon is configured.
	ErrOnionNeedsProxy = errors.New("onion seeds require --proxy or --tor")

	// ErrNoHistory is returned when the store does not keep session history.
	ErrNoHistory = errors.New("store does not keep session history")
)

// NoContentError reports an empty query result. Collection is empty when
// every collection was queried.
type NoContentError struct {
	Collection string
}

// Error returns "no <collection> found" or "no data found".
func (e *NoContentError) Error() string {
	if e.Collection == "" {
		return ErrNoContent.Error()
	}
	return fmt.Sprintf("no %s found", e.Collection)
}

// Is matches ErrNoContent.
func (e *NoContentError) Is(target error) bool {
	return target == ErrNoContent
}
