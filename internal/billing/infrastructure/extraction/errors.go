package extraction

import "errors"

var (
	// ErrMissingCredential is returned when the recognition service has no API key.
	ErrMissingCredential = errors.New("extraction: missing recognition credential")
	// ErrUnsupportedDocument is returned for a document kind the extractor cannot read.
	ErrUnsupportedDocument = errors.New("extraction: unsupported document")
	// ErrIncompleteDocument is returned when mandatory values are absent.
	ErrIncompleteDocument = errors.New("extraction: incomplete document")
	// ErrNoText is returned when a PDF has no text layer.
	ErrNoText = errors.New("extraction: document has no text")
)
