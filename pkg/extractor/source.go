package extractor

import (
	"context"
	"net/url"
)

// Source decides pagination for one data source.
type Source interface {
	// Name is the source identifier used as the artifact name prefix.
	Name() string

	// IsLastPage reports whether body is the final page.
	IsLastPage(body any) bool

	// NextPagination returns the parameters merged into the next request.
	NextPagination(body any) url.Values
}

// Resetter is implemented by sources that keep per-run pagination state.
// Reset is called at the start of every Run.
type Resetter interface {
	Reset()
}

// Transport fetches decoded JSON pages. Fetch is only valid between Open and Close.
type Transport interface {
	Open() error
	Close() error
	Fetch(ctx context.Context, rawURL string, params url.Values) (any, error)
}

// SinglePage is the pagination half of a source that returns everything in one response.
type SinglePage struct{}

// IsLastPage always reports true.
func (SinglePage) IsLastPage(any) bool { return true }

// NextPagination always returns empty parameters.
func (SinglePage) NextPagination(any) url.Values { return url.Values{} }
