// Package peerlist scrapes the yearly layoff tables on peerlist.io. The tables
// are rendered client-side, so pages go through a headless browser.
package peerlist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/timmy/layoffwatch/internal/domain"
	"github.com/timmy/layoffwatch/internal/logger"
	"github.com/timmy/layoffwatch/internal/source"
)

const (
	SourceID       = "peerlist"
	DefaultBaseURL = "https://peerlist.io/layoffs-tracker"
)

// Renderer returns the rendered HTML of a page. *browser.Chrome implements it.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Config selects the tracker pages.
type Config struct {
	BaseURL string
	// Years to fetch; empty means the two calendar years before the current one.
	Years []int
}

// Adapter implements source.Adapter for peerlist.io.
type Adapter struct {
	cfg      Config
	renderer Renderer
	clock    source.Clock
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithClock sets the clock for year selection and the date fallback.
func WithClock(c source.Clock) Option {
	return func(a *Adapter) { a.clock = c }
}

// New creates the adapter.
func New(cfg Config, r Renderer, opts ...Option) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	a := &Adapter{cfg: cfg, renderer: r, clock: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) SourceID() string { return SourceID }

func (a *Adapter) years() []int {
	if len(a.cfg.Years) > 0 {
		return a.cfg.Years
	}
	y := a.clock().Year()
	return []int{y - 1, y - 2}
}

func (a *Adapter) pageURL(year int) string {
	return a.cfg.BaseURL + "/" + strconv.Itoa(year)
}

// FetchRaw renders one page per year. A failing year is logged and skipped;
// the fetch only fails when no year could be rendered.
func (a *Adapter) FetchRaw(ctx context.Context) (*source.RawPayload, error) {
	var (
		pages   []source.Page
		lastErr error
		rows    int
	)
	for _, year := range a.years() {
		url := a.pageURL(year)
		html, err := a.renderer.Render(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, source.Unavailable(SourceID, ctx.Err())
			}
			lastErr = err
			logger.FromContext(ctx).WithError(err).WithField("url", url).Warn("Failed to render tracker page")
			continue
		}
		n, err := countRows([]byte(html))
		if err != nil {
			return nil, source.Structural(SourceID, err)
		}
		rows += n
		pages = append(pages, source.Page{
			URL:     url,
			Body:    []byte(html),
			Context: map[string]string{"year": strconv.Itoa(year)},
		})
	}

	if len(pages) == 0 {
		if lastErr == nil {
			lastErr = errors.New("no years configured")
		}
		return nil, source.Unavailable(SourceID, lastErr)
	}
	if rows == 0 {
		return nil, source.FormatChanged(SourceID, fmt.Sprintf("no table rows on %d rendered page(s)", len(pages)))
	}

	return &source.RawPayload{
		SourceID:    SourceID,
		ContentType: "text/html",
		Pages:       pages,
		FetchedAt:   a.clock(),
	}, nil
}

// tableRow is one data row: company, employees, date, industry, location, source.
type tableRow struct {
	cells []string
}

func (r tableRow) cell(i int) string {
	if i < len(r.cells) {
		return r.cells[i]
	}
	return ""
}

// extractRows returns every table body row with at least four cells.
func extractRows(html []byte) ([]tableRow, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	var rows []tableRow
	doc.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			tds := tr.Find("td")
			if tds.Length() < 4 {
				return // header or spacer
			}
			r := tableRow{cells: make([]string, 0, tds.Length())}
			tds.Each(func(_ int, td *goquery.Selection) {
				r.cells = append(r.cells, strings.TrimSpace(td.Text()))
			})
			rows = append(rows, r)
		})
	})
	return rows, nil
}

func countRows(html []byte) (int, error) {
	rows, err := extractRows(html)
	return len(rows), err
}

// Normalize parses the table rows on every page. Repeated companies are only
// dropped within one year's table: the same company in two years is two events.
func (a *Adapter) Normalize(ctx context.Context, raw *source.RawPayload) ([]domain.NormalizedRecord, error) {
	if raw == nil || len(raw.Pages) == 0 {
		return nil, source.Structural(SourceID, errors.New("empty payload"))
	}

	var records []domain.NormalizedRecord
	idx := 0
	for _, page := range raw.Pages {
		year, _ := strconv.Atoi(page.Context["year"])
		rows, err := extractRows(page.Body)
		if err != nil {
			return nil, source.Structural(SourceID, err)
		}
		c := source.NewCollector(logger.WithField(ctx, "year", year), SourceID)
		for _, r := range rows {
			c.Collect(idx, func() (*domain.NormalizedRecord, error) {
				return a.convert(r, year, page.URL)
			})
			idx++
		}
		records = append(records, c.Finish()...)
	}
	return records, nil
}

func (a *Adapter) convert(r tableRow, year int, pageURL string) (*domain.NormalizedRecord, error) {
	company := r.cell(0)
	if len([]rune(company)) <= 1 {
		return nil, nil
	}

	date, _ := source.ParseDateOr(r.cell(2), year, a.clock)
	location := r.cell(4)

	ref := pageURL
	if link := r.cell(5); link != "" {
		if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
			ref = link
		} else {
			ref = "https://" + link
		}
	}

	return &domain.NormalizedRecord{
		EntityName:      company,
		Category:        r.cell(3),
		EventDate:       date,
		Magnitude:       source.ExtractMagnitude(r.cell(1)),
		SourceID:        SourceID,
		SourceReference: ref,
		Region:          source.InferRegion(location, domain.DefaultRegion),
		Notes:           source.Labeled("Location", location),
	}, nil
}
