// Package officepulse reads the India-focused officepulse.live tracker through
// its WordPress Ninja Tables endpoint.
package officepulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/timmy/layoffwatch/internal/domain"
	"github.com/timmy/layoffwatch/internal/fetcher"
	"github.com/timmy/layoffwatch/internal/source"
)

const (
	SourceID      = "officepulse"
	DefaultAPIURL = "https://officepulse.live/wp-admin/admin-ajax.php"
	HomeURL       = "https://officepulse.live/"
	DefaultRegion = "India"
	globalMarker  = "Global"
)

var (
	hrefPattern  = regexp.MustCompile(`href="([^"]+)"`)
	silentFiring = regexp.MustCompile(`(?i)^\s*silent\s+firing\s*$`)
	tableQuery   = map[string]string{
		"action":                   "wp_ajax_ninja_tables_public_action",
		"table_id":                 "15",
		"target_action":            "get-all-data",
		"default_sorting":          "old_first",
		"skip_rows":                "0",
		"limit_rows":               "0",
		"ninja_table_public_nonce": "b2c5640fad",
	}
)

// entry is one Ninja Tables row. Cells are left loosely typed: the table
// mixes strings and numbers in the same column.
type entry struct {
	Value map[string]interface{} `json:"value"`
}

// text renders a cell as trimmed text. Numbers keep their integer form.
func (e entry) text(key string) string {
	switch v := e.Value[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Adapter implements source.Adapter for officepulse.live.
type Adapter struct {
	apiURL string
	client source.HTTPClient
	clock  source.Clock
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithClock sets the clock for the date fallback.
func WithClock(c source.Clock) Option {
	return func(a *Adapter) { a.clock = c }
}

// New creates the adapter. An empty apiURL uses DefaultAPIURL.
func New(apiURL string, client source.HTTPClient, opts ...Option) *Adapter {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	a := &Adapter{apiURL: apiURL, client: client, clock: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) SourceID() string { return SourceID }

func (a *Adapter) FetchRaw(ctx context.Context) (*source.RawPayload, error) {
	resp, err := a.client.Fetch(ctx, fetcher.Request{
		URL:   a.apiURL,
		Query: tableQuery,
		Headers: map[string]string{
			"Accept":           "*/*",
			"Referer":          HomeURL,
			"X-Requested-With": "XMLHttpRequest",
		},
	})
	if err != nil {
		return nil, source.Unavailable(SourceID, err)
	}

	rows, err := decode(resp.Body)
	if err != nil {
		return nil, source.FormatChanged(SourceID, "table data is not a JSON array: "+err.Error())
	}
	if len(rows) == 0 {
		return nil, source.FormatChanged(SourceID, "table returned no rows")
	}

	return &source.RawPayload{
		SourceID:    SourceID,
		ContentType: resp.ContentType,
		Pages:       []source.Page{{URL: a.apiURL, Body: resp.Body}},
		FetchedAt:   a.clock(),
	}, nil
}

// decode splits the array into rows. Each row is decoded on its own so a
// single malformed row is skipped instead of failing the whole table.
func decode(body []byte) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (a *Adapter) Normalize(ctx context.Context, raw *source.RawPayload) ([]domain.NormalizedRecord, error) {
	if raw == nil || len(raw.Pages) == 0 {
		return nil, source.Structural(SourceID, errors.New("empty payload"))
	}
	rows, err := decode(raw.Pages[0].Body)
	if err != nil {
		return nil, source.Structural(SourceID, err)
	}

	c := source.NewCollector(ctx, SourceID)
	for i := range rows {
		row := rows[i]
		c.Collect(i, func() (*domain.NormalizedRecord, error) {
			var e entry
			if err := json.Unmarshal(row, &e); err != nil {
				return nil, source.RowErrorf(i, "undecodable row: %v", err)
			}
			return a.convert(i, e)
		})
	}
	return c.Finish(), nil
}

func (a *Adapter) convert(idx int, e entry) (*domain.NormalizedRecord, error) {
	company := e.text("company")
	if company == "" {
		return nil, source.RowErrorf(idx, "empty company")
	}

	var magnitude *int
	if !silentFiring.MatchString(e.text("laidoff")) {
		magnitude = source.MagnitudeValue(e.Value["laidoff"])
	}

	date, _ := source.ParseDateOr(e.text("layofftimeline"), 0, a.clock)

	link := e.text("source")
	ref := HomeURL
	if m := hrefPattern.FindStringSubmatch(link); m != nil {
		ref = m[1]
	} else if strings.HasPrefix(link, "http") {
		ref = link
	}

	return &domain.NormalizedRecord{
		EntityName:      company,
		Category:        e.text("industry"),
		EventDate:       date,
		Magnitude:       magnitude,
		SourceID:        SourceID,
		SourceReference: ref,
		Region:          region(e.text("laidoffcountry"), e.text("headquarter")),
		Notes: source.JoinNotes(
			source.Labeled("Status", e.text("status")),
			source.Labeled("Percentage", e.text("laidoff_1")),
		),
	}, nil
}

// region applies the tracker's country rules: blank means India, "Global"
// defers to the headquarter, then to the US.
func region(country, headquarter string) string {
	country = strings.TrimSpace(country)
	switch {
	case country == "":
		return DefaultRegion
	case strings.EqualFold(country, globalMarker):
		return source.FirstNonEmpty(headquarter, domain.DefaultRegion)
	default:
		return country
	}
}

// String identifies the adapter in logs.
func (a *Adapter) String() string {
	return fmt.Sprintf("%s(%s)", SourceID, a.apiURL)
}
