// Package airtable reads public Airtable shared views, the backing store of
// layoffs.fyi and layoffstracker.com.
package airtable

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/timmy/layoffwatch/internal/domain"
	"github.com/timmy/layoffwatch/internal/fetcher"
	"github.com/timmy/layoffwatch/internal/logger"
	"github.com/timmy/layoffwatch/internal/source"
)

// Variant describes one shared view and how its rows map to records.
type Variant struct {
	ID       string
	ShareURL string
	// HomeURL is the source reference for rows without their own link.
	HomeURL string
	// ForcedCategory and ForcedRegion override whatever the row says.
	ForcedCategory string
	ForcedRegion   string
	DefaultRegion  string
	// FirstTextFallback uses the first text cell as the entity when no company column matched.
	FirstTextFallback bool
}

// LayoffsFyi is the layoffs.fyi tech tracker.
func LayoffsFyi(shareURL string) Variant {
	return Variant{ID: "layoffs_fyi", ShareURL: shareURL, HomeURL: "https://layoffs.fyi/", FirstTextFallback: true}
}

// LayoffsFyiFederal is the layoffs.fyi federal government tracker.
func LayoffsFyiFederal(shareURL string) Variant {
	return Variant{
		ID:                "layoffs_fyi_federal",
		ShareURL:          shareURL,
		HomeURL:           "https://layoffs.fyi/",
		ForcedCategory:    "Government",
		ForcedRegion:      "US",
		FirstTextFallback: true,
	}
}

// LayoffsTracker is the layoffstracker.com tech view.
func LayoffsTracker(shareURL string) Variant {
	return Variant{ID: "layoffstracker", ShareURL: shareURL, HomeURL: "https://layoffstracker.com/"}
}

// LayoffsTrackerNonTech is the layoffstracker.com non-tech view.
func LayoffsTrackerNonTech(shareURL string) Variant {
	return Variant{ID: "layoffstracker_nontech", ShareURL: shareURL, HomeURL: "https://layoffstracker.com/non-tech-layoffs/"}
}

var (
	dataURLPattern = regexp.MustCompile(`urlWithParams\s*:\s*"([^"]*readSharedViewData[^"]*)"`)
	appIDKeyed     = regexp.MustCompile(`"applicationId"\s*:\s*"(app[A-Za-z0-9]+)"`)
	appIDLoose     = regexp.MustCompile(`\bapp[A-Za-z0-9]{14}\b`)
)

// Adapter implements source.Adapter for one Variant.
type Adapter struct {
	v      Variant
	client source.HTTPClient
	clock  source.Clock
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithClock sets the clock used for the unparseable-date fallback.
func WithClock(c source.Clock) Option {
	return func(a *Adapter) { a.clock = c }
}

// New creates an adapter for v.
func New(v Variant, client source.HTTPClient, opts ...Option) *Adapter {
	if v.DefaultRegion == "" {
		v.DefaultRegion = domain.DefaultRegion
	}
	a := &Adapter{v: v, client: client, clock: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) SourceID() string { return a.v.ID }

// FetchRaw loads the share page, locates the embedded readSharedViewData
// request and replays it with Airtable's XHR headers.
func (a *Adapter) FetchRaw(ctx context.Context) (*source.RawPayload, error) {
	page, err := a.client.Fetch(ctx, fetcher.Request{URL: a.v.ShareURL})
	if err != nil {
		return nil, source.Unavailable(a.v.ID, err)
	}

	dataURL, appID, err := a.locateView(page.Body)
	if err != nil {
		return nil, err
	}
	logger.CtxDebug(ctx, "Located shared view data at %s", dataURL)

	resp, err := a.client.Fetch(ctx, fetcher.Request{
		URL: dataURL,
		Headers: map[string]string{
			"X-Airtable-Application-Id": appID,
			"X-Requested-With":          "XMLHttpRequest",
			"X-Time-Zone":               "UTC",
			"X-User-Locale":             "en",
			"Accept":                    "application/json",
		},
	})
	if err != nil {
		return nil, source.Unavailable(a.v.ID, err)
	}

	tbl, err := decodeView(resp.Body)
	if err != nil {
		return nil, source.FormatChanged(a.v.ID, "shared view data is not JSON: "+err.Error())
	}
	if len(tbl.Columns) == 0 || len(tbl.Rows) == 0 {
		return nil, source.FormatChanged(a.v.ID, fmt.Sprintf("shared view returned %d columns and %d rows", len(tbl.Columns), len(tbl.Rows)))
	}

	return &source.RawPayload{
		SourceID:    a.v.ID,
		ContentType: resp.ContentType,
		Pages: []source.Page{{
			URL:     dataURL,
			Body:    resp.Body,
			Context: map[string]string{"share_url": a.v.ShareURL},
		}},
		FetchedAt: a.clock(),
	}, nil
}

func (a *Adapter) locateView(html []byte) (dataURL, appID string, err error) {
	m := dataURLPattern.FindSubmatch(html)
	if m == nil {
		return "", "", source.FormatChanged(a.v.ID, "share page has no readSharedViewData url")
	}
	raw, uerr := strconv.Unquote(`"` + string(m[1]) + `"`)
	if uerr != nil {
		raw = strings.ReplaceAll(string(m[1]), `\u002F`, "/")
	}

	base, perr := url.Parse(a.v.ShareURL)
	if perr != nil {
		return "", "", source.FormatChanged(a.v.ID, "invalid share url: "+perr.Error())
	}
	ref, perr := url.Parse(raw)
	if perr != nil {
		return "", "", source.FormatChanged(a.v.ID, "invalid data url: "+perr.Error())
	}
	dataURL = base.ResolveReference(ref).String()

	switch {
	case appIDKeyed.Match(html):
		appID = string(appIDKeyed.FindSubmatch(html)[1])
	case appIDLoose.MatchString(a.v.ShareURL):
		appID = appIDLoose.FindString(a.v.ShareURL)
	default:
		appID = string(appIDLoose.Find(html))
	}
	if appID == "" {
		return "", "", source.FormatChanged(a.v.ID, "share page has no application id")
	}
	return dataURL, appID, nil
}

// Normalize maps every row of the shared view to a record.
func (a *Adapter) Normalize(ctx context.Context, raw *source.RawPayload) ([]domain.NormalizedRecord, error) {
	if raw == nil || len(raw.Pages) == 0 {
		return nil, source.Structural(a.v.ID, fmt.Errorf("empty payload"))
	}
	tbl, err := decodeView(raw.Pages[0].Body)
	if err != nil {
		return nil, source.Structural(a.v.ID, err)
	}

	cols := classifyColumns(tbl.Columns)
	c := source.NewCollector(ctx, a.v.ID)
	for i := range tbl.Rows {
		r := tbl.Rows[i]
		c.Collect(i, func() (*domain.NormalizedRecord, error) {
			return a.convert(i, cols, r)
		})
	}
	return c.Finish(), nil
}

func (a *Adapter) convert(idx int, cols []mappedColumn, r row) (*domain.NormalizedRecord, error) {
	var (
		company, category, link, region, location, stage, percent string
		magnitude, remaining                                      *int
		date                                                      time.Time
		haveDate                                                  bool
	)

	for _, col := range cols {
		value, ok := r.Cells[col.id]
		if !ok || value == nil {
			continue
		}
		switch col.field {
		case fieldCompany:
			if company == "" {
				company = source.ResolveChoice(value, col.choices)
			}
		case fieldPercent:
			percent = formatPercent(value)
		case fieldRemaining:
			if remaining == nil {
				remaining = source.MagnitudeValue(value)
			}
		case fieldMagnitude:
			if magnitude == nil {
				magnitude = source.MagnitudeValue(value)
			}
		case fieldDate:
			if !haveDate {
				date, haveDate = source.ParseDateValue(value, 0)
			}
		case fieldCategory:
			category = source.ResolveChoice(value, col.choices)
		case fieldLink:
			if s, ok := value.(string); ok && strings.HasPrefix(s, "http") {
				link = s
			}
		case fieldRegion:
			region = source.ResolveChoice(value, col.choices)
		case fieldLocation:
			location = source.ResolveChoice(value, col.choices)
		case fieldStage:
			stage = source.ResolveChoice(value, col.choices)
		}
	}

	if company == "" && a.v.FirstTextFallback {
		company = firstText(cols, r)
	}
	if company == "" {
		return nil, source.RowErrorf(idx, "no company value in row %s", r.ID)
	}
	if !haveDate {
		date = domain.DateOf(a.clock())
	}

	switch {
	case a.v.ForcedRegion != "":
		region = a.v.ForcedRegion
	case region == "":
		region = source.InferRegion(location, a.v.DefaultRegion)
	}
	if a.v.ForcedCategory != "" {
		category = a.v.ForcedCategory
	}

	return &domain.NormalizedRecord{
		EntityName:         company,
		Category:           category,
		EventDate:          date,
		Magnitude:          magnitude,
		SecondaryMagnitude: remaining,
		SourceID:           a.v.ID,
		SourceReference:    source.FirstNonEmpty(link, a.v.HomeURL),
		Region:             region,
		Notes: source.JoinNotes(
			source.Labeled("Stage", stage),
			source.Labeled("Location", location),
			source.Labeled("Percentage", percent),
		),
	}, nil
}

func firstText(cols []mappedColumn, r row) string {
	for _, col := range cols {
		if s, ok := r.Cells[col.id].(string); ok && len(strings.TrimSpace(s)) > 1 && !strings.HasPrefix(s, "http") {
			return s
		}
	}
	return ""
}

// formatPercent renders a percent cell. Airtable stores percent fields as fractions.
func formatPercent(v interface{}) string {
	switch x := v.(type) {
	case float64:
		if x <= 1 {
			x = math.Round(x*1e4) / 100
		}
		return strconv.FormatFloat(x, 'f', -1, 64) + "%"
	case string:
		x = strings.TrimSpace(x)
		if x == "" || strings.HasSuffix(x, "%") {
			return x
		}
		return x + "%"
	default:
		return ""
	}
}
