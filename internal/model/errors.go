package model

import "errors"

var (
	// ErrUnknownContentKind is returned when a kind or collection name is not recognized.
	ErrUnknownContentKind = errors.New("unknown content kind")

	// ErrInvalidContentFilter is returned for filters outside content|images|files|audio|videos|all.
	ErrInvalidContentFilter = errors.New("invalid content type filter")

	// ErrInvalidURL is returned when a URL cannot be parsed or has no host.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrUnsupportedScheme is returned for URLs that are not http or https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrEmptyNamespace is returned when no namespace or output directory is given.
	ErrEmptyNamespace = errors.New("namespace is empty")

	// ErrInvalidNamespace is returned when a namespace contains characters
	// that cannot be used as a storage partition name.
	ErrInvalidNamespace = errors.New("invalid namespace")
)
