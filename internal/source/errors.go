package source

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// TextCodeUpstreamQuery is the text code carried by every upstream failure.
const TextCodeUpstreamQuery = "UPSTREAM_QUERY_FAILED"

// UpstreamQueryError reports that the external store was unreachable or
// returned a page that could not be used. Any such failure aborts the whole
// fetch; partial results are never returned alongside it.
type UpstreamQueryError struct {
	Message    string
	Cursor     string
	StatusCode int
	Cause      error

	rich *goerrors.Error
}

func (e *UpstreamQueryError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes the go-errors envelope, which in turn wraps Cause.
func (e *UpstreamQueryError) Unwrap() error {
	return e.rich
}

// IsUpstreamQuery reports whether err is (or wraps) an UpstreamQueryError.
func IsUpstreamQuery(err error) bool {
	var uq *UpstreamQueryError
	return errors.As(err, &uq)
}

func upstreamError(message, cursor string, status int, metadata map[string]any) error {
	rich := goerrors.New(message, goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(TextCodeUpstreamQuery)
	if len(metadata) > 0 {
		rich.WithMetadata(metadata)
	}
	return &UpstreamQueryError{Message: message, Cursor: cursor, StatusCode: status, rich: rich}
}

func upstreamWrapError(source error, message, cursor string, status int, metadata map[string]any) error {
	if source == nil {
		return upstreamError(message, cursor, status, metadata)
	}
	rich := goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(TextCodeUpstreamQuery)
	if len(metadata) > 0 {
		rich.WithMetadata(metadata)
	}
	return &UpstreamQueryError{Message: message, Cursor: cursor, StatusCode: status, Cause: source, rich: rich}
}
