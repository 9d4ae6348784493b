// Package staging reads curated layoff rows dropped into a local directory as
// JSON Lines. Field names are matched loosely so hand-edited files and exports
// from other tools load without a fixed schema.
package staging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/timmy/layoffwatch/internal/domain"
	"github.com/timmy/layoffwatch/internal/source"
)

const (
	// SourceID is the default identifier of the staging source.
	SourceID = "staging"
	// RowsFileName is the JSON Lines file read from each staging directory.
	RowsFileName = "rows.jsonl"
)

// Adapter implements source.Adapter for one staging directory.
type Adapter struct {
	basePath string
	name     string
	clock    source.Clock
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithClock sets the clock for the date fallback.
func WithClock(c source.Clock) Option {
	return func(a *Adapter) { a.clock = c }
}

// NewAdapter creates a new staging adapter.
// Parameters:
//   - basePath: base path to the staging directory.
//   - name: subdirectory holding rows.jsonl.
//
// Returns:
//   - *Adapter: initialized staging adapter.
func NewAdapter(basePath, name string, opts ...Option) *Adapter {
	a := &Adapter{basePath: basePath, name: name, clock: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SourceID returns the unique identifier for this source.
func (a *Adapter) SourceID() string { return SourceID }

// RowsPath returns the path of the rows file.
func (a *Adapter) RowsPath() string {
	return filepath.Join(a.basePath, a.name, RowsFileName)
}

func (a *Adapter) reference() string {
	abs, err := filepath.Abs(a.RowsPath())
	if err != nil {
		abs = a.RowsPath()
	}
	return "file://" + filepath.ToSlash(abs)
}

// FetchRaw reads the rows file.
// Parameters:
//   - ctx: context for cancellation (checked before reading).
//
// Returns:
//   - *source.RawPayload: one page holding the file contents.
//   - error: ErrSourceUnavailable if the file cannot be read,
//     ErrSourceFormatChanged if it holds no rows.
func (a *Adapter) FetchRaw(ctx context.Context) (*source.RawPayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, source.Unavailable(SourceID, err)
	}

	path := a.RowsPath()
	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, source.Unavailable(SourceID, a.missingRows(path))
		}
		return nil, source.Unavailable(SourceID, fmt.Errorf("failed to read rows file: %w", err))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, source.FormatChanged(SourceID, "rows file is empty: "+path)
	}

	return &source.RawPayload{
		SourceID:    SourceID,
		ContentType: "application/x-ndjson",
		Pages: []source.Page{{
			URL:     a.reference(),
			Body:    body,
			Context: map[string]string{"name": a.name},
		}},
		FetchedAt: a.clock(),
	}, nil
}

// missingRows reports a missing rows file together with the staging names
// that do have one, so a misconfigured name is easy to spot.
func (a *Adapter) missingRows(path string) error {
	names, err := ListStagingSources(a.basePath)
	if err != nil || len(names) == 0 {
		return fmt.Errorf("rows file not found: %s", path)
	}
	return fmt.Errorf("rows file not found: %s (available: %s)", path, strings.Join(names, ", "))
}

// Normalize parses one record per non-blank line. Lines that are not JSON
// objects are skipped as malformed rows.
func (a *Adapter) Normalize(ctx context.Context, raw *source.RawPayload) ([]domain.NormalizedRecord, error) {
	if raw == nil || len(raw.Pages) == 0 {
		return nil, source.Structural(SourceID, fmt.Errorf("empty payload"))
	}
	page := raw.Pages[0]
	ref := source.FirstNonEmpty(page.URL, a.reference())

	c := source.NewCollector(ctx, SourceID)
	scanner := bufio.NewScanner(bytes.NewReader(page.Body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	row := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx := row
		row++
		c.Collect(idx, func() (*domain.NormalizedRecord, error) {
			return a.convert(idx, line, ref)
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, source.Structural(SourceID, fmt.Errorf("error reading rows: %w", err))
	}
	return c.Finish(), nil
}

func (a *Adapter) convert(idx int, line, ref string) (*domain.NormalizedRecord, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return nil, source.RowErrorf(idx, "invalid json: %v", err)
	}

	var (
		company, category, region, location, link, notes string
		magnitude, remaining                             *int
		date                                             time.Time
		haveDate                                         bool
	)
	for _, key := range sortedKeys(obj) {
		value := obj[key]
		if value == nil {
			continue
		}
		switch classify(key) {
		case fieldCompany:
			if company == "" {
				company = text(value)
			}
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
			category = source.FirstNonEmpty(category, text(value))
		case fieldRegion:
			region = source.FirstNonEmpty(region, text(value))
		case fieldLocation:
			location = source.FirstNonEmpty(location, text(value))
		case fieldLink:
			if s := text(value); strings.HasPrefix(s, "http") {
				link = source.FirstNonEmpty(link, s)
			}
		case fieldNotes:
			notes = source.FirstNonEmpty(notes, text(value))
		}
	}

	if company == "" {
		return nil, source.RowErrorf(idx, "no company field")
	}
	if !haveDate {
		date = domain.DateOf(a.clock())
	}
	if region == "" {
		region = source.InferRegion(location, domain.DefaultRegion)
	}

	return &domain.NormalizedRecord{
		EntityName:         company,
		Category:           category,
		EventDate:          date,
		Magnitude:          magnitude,
		SecondaryMagnitude: remaining,
		SourceID:           SourceID,
		SourceReference:    source.FirstNonEmpty(link, ref),
		Region:             region,
		Notes:              source.JoinNotes(notes, source.Labeled("Location", location)),
	}, nil
}

type field int

const (
	fieldIgnored field = iota
	fieldCompany
	fieldRemaining
	fieldMagnitude
	fieldDate
	fieldCategory
	fieldRegion
	fieldLocation
	fieldLink
	fieldNotes
)

// classify maps a loose key to a record field. Order matters: "employees_remaining"
// must hit remaining before the magnitude keywords.
func classify(key string) field {
	k := source.NormalizeColumnName(key)
	switch {
	case source.ContainsAny(k, "company", "entity", "organization", "organisation") || k == "name":
		return fieldCompany
	case source.ContainsAny(k, "remaining"):
		return fieldRemaining
	case source.ContainsAny(k, "laid_off", "laidoff", "employees", "affected", "magnitude", "headcount"):
		return fieldMagnitude
	case source.ContainsAny(k, "date", "when") && !source.ContainsAny(k, "added", "updated"):
		return fieldDate
	case source.ContainsAny(k, "industry", "category", "sector"):
		return fieldCategory
	case source.ContainsAny(k, "country", "region"):
		return fieldRegion
	case source.ContainsAny(k, "location", "hq", "headquarter", "city"):
		return fieldLocation
	case source.ContainsAny(k, "source", "link", "url"):
		return fieldLink
	case source.ContainsAny(k, "note", "comment"):
		return fieldNotes
	default:
		return fieldIgnored
	}
}

// sortedKeys gives a stable field order; JSON object order is lost after decoding.
func sortedKeys(obj map[string]interface{}) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func text(v interface{}) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case []interface{}:
		parts := make([]string, 0, len(x))
		for _, p := range x {
			if s := text(p); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// ListStagingSources lists the subdirectories of basePath that hold a rows file.
// Parameters:
//   - basePath: base path to the staging directory.
//
// Returns:
//   - []string: staging names, sorted.
//   - error: non-nil if reading the directory fails.
func ListStagingSources(basePath string) ([]string, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(basePath, entry.Name(), RowsFileName)); err == nil {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
