// Package source defines the adapter contract and the normalization helpers
// shared by every upstream adapter.
package source

import (
	"context"
	"time"

	"github.com/timmy/layoffwatch/internal/domain"
	"github.com/timmy/layoffwatch/internal/fetcher"
)

// Adapter fetches and normalizes data from one upstream origin.
type Adapter interface {
	// SourceID is used both as the records' source_id and as the registry key.
	SourceID() string

	// FetchRaw retrieves the unprocessed payload. It returns ErrSourceUnavailable
	// when the upstream cannot be reached and ErrSourceFormatChanged when the
	// expected structure is missing entirely.
	FetchRaw(ctx context.Context) (*RawPayload, error)

	// Normalize maps the payload to canonical records. Row-level problems are
	// logged and skipped; an error means the payload as a whole is unusable.
	Normalize(ctx context.Context, raw *RawPayload) ([]domain.NormalizedRecord, error)
}

// HTTPClient is the subset of *fetcher.Fetcher adapters use.
type HTTPClient interface {
	Fetch(ctx context.Context, req fetcher.Request) (*fetcher.Response, error)
}

// Page is one fetched document.
type Page struct {
	URL  string
	Body []byte
	// Context carries per-page facts needed during normalization, e.g. the year of a yearly table.
	Context map[string]string
}

// RawPayload is what FetchRaw hands to Normalize.
type RawPayload struct {
	SourceID    string
	ContentType string
	Pages       []Page
	FetchedAt   time.Time
}

// Size returns the total body bytes across pages.
func (p *RawPayload) Size() int {
	n := 0
	for _, pg := range p.Pages {
		n += len(pg.Body)
	}
	return n
}

// Clock returns the current time. Adapters take one so date fallbacks are testable.
type Clock func() time.Time
