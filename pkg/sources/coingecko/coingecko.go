// Package coingecko defines the CoinGecko endpoints the ingestion pipeline extracts.
package coingecko

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/Sternrassler/coin-ingest/pkg/extractor"
)

const (
	// BaseURL is the public CoinGecko API root.
	BaseURL = "https://api.coingecko.com/api/v3/"

	// SourceName prefixes every artifact and storage path.
	SourceName = "CoinGecko"
)

// Endpoint is an extractor.Source bound to one API path.
type Endpoint interface {
	extractor.Source
	RelativePath() string
	Params() url.Values
}

// NewJob builds the extraction job for ep against baseURL.
func NewJob(ep Endpoint, baseURL, destination string) (extractor.Job, error) {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return extractor.NewJob(baseURL, ep.RelativePath(), ep.Params(), destination)
}

// CoinsList is /coins/list: every supported coin in a single response.
type CoinsList struct {
	extractor.SinglePage

	// IncludePlatform adds contract addresses per platform.
	IncludePlatform bool
}

// NewCoinsList returns the coins/list endpoint with platforms included.
func NewCoinsList() *CoinsList {
	return &CoinsList{IncludePlatform: true}
}

// Name returns the source segment used in artifact names.
func (*CoinsList) Name() string { return SourceName }

// RelativePath returns the endpoint path below BaseURL.
func (*CoinsList) RelativePath() string { return "coins/list" }

// Params returns include_platform, set from IncludePlatform.
func (c *CoinsList) Params() url.Values {
	return url.Values{"include_platform": {strconv.FormatBool(c.IncludePlatform)}}
}

// CoinsMarkets is /coins/markets, paginated by page number.
// A page shorter than PerPage is the last one.
type CoinsMarkets struct {
	VsCurrency string
	PerPage    int
	Order      string

	page int
}

// MaxPerPage is the largest page size the API accepts.
const MaxPerPage = 250

// NewCoinsMarkets returns the coins/markets endpoint priced in vsCurrency.
func NewCoinsMarkets(vsCurrency string, perPage int) (*CoinsMarkets, error) {
	if vsCurrency == "" {
		return nil, fmt.Errorf("vs_currency is required")
	}
	if perPage <= 0 || perPage > MaxPerPage {
		return nil, fmt.Errorf("per_page must be in 1..%d (got %d)", MaxPerPage, perPage)
	}
	return &CoinsMarkets{VsCurrency: vsCurrency, PerPage: perPage, Order: "market_cap_desc", page: 1}, nil
}

// Name returns the source segment used in artifact names.
func (*CoinsMarkets) Name() string { return SourceName }

// RelativePath returns the endpoint path below BaseURL.
func (*CoinsMarkets) RelativePath() string { return "coins/markets" }

// Params returns the fixed query: vs_currency, per_page and order. The page
// number comes from NextPagination.
func (m *CoinsMarkets) Params() url.Values {
	params := url.Values{
		"vs_currency": {m.VsCurrency},
		"per_page":    {strconv.Itoa(m.PerPage)},
	}
	if m.Order != "" {
		params.Set("order", m.Order)
	}
	return params
}

// Reset rewinds the page counter before a run.
func (m *CoinsMarkets) Reset() { m.page = 1 }

// IsLastPage reports a short or non-array page as the last one.
func (m *CoinsMarkets) IsLastPage(body any) bool {
	items, ok := body.([]any)
	if !ok {
		return true
	}
	return len(items) < m.PerPage
}

// NextPagination advances to the following page number.
func (m *CoinsMarkets) NextPagination(any) url.Values {
	if m.page < 1 {
		m.page = 1
	}
	m.page++
	return url.Values{"page": {strconv.Itoa(m.page)}}
}

// Lookup returns the endpoint for a relative path.
func Lookup(relativePath string) (Endpoint, error) {
	switch relativePath {
	case "coins/list":
		return NewCoinsList(), nil
	case "coins/markets":
		return NewCoinsMarkets("usd", MaxPerPage)
	default:
		return nil, fmt.Errorf("unknown CoinGecko endpoint %q (known: %v)", relativePath, Endpoints())
	}
}

// Endpoints lists the relative paths Lookup accepts.
func Endpoints() []string {
	paths := []string{"coins/list", "coins/markets"}
	sort.Strings(paths)
	return paths
}
