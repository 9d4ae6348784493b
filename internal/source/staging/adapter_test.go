package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/timmy/layoffwatch/internal/domain"
	"github.com/timmy/layoffwatch/internal/logger"
	"github.com/timmy/layoffwatch/internal/source"
)

func clock() time.Time { return time.Date(2025, time.May, 20, 9, 0, 0, 0, time.UTC) }

func writeRows(t *testing.T, name string, lines ...string) string {
	t.Helper()
	base := t.TempDir()
	dir := filepath.Join(base, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	body := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, RowsFileName), []byte(body), 0o644); err != nil {
		t.Fatalf("write rows: %v", err)
	}
	return base
}

func fetchAndNormalize(t *testing.T, ctx context.Context, a *Adapter) []domain.NormalizedRecord {
	t.Helper()
	raw, err := a.FetchRaw(ctx)
	if err != nil {
		t.Fatalf("FetchRaw: %v", err)
	}
	recs, err := a.Normalize(ctx, raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return recs
}

func TestDuplicateRowsCollapse(t *testing.T) {
	row := `{"Company":"Acme","Date":"2024-03-10","Laid Off":"1,000"}`
	base := writeRows(t, "manual", row, row)

	recs := fetchAndNormalize(t, context.Background(), NewAdapter(base, "manual", WithClock(clock)))
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	r := recs[0]
	if r.EntityName != "Acme" || r.Magnitude == nil || *r.Magnitude != 1000 {
		t.Errorf("unexpected record: %+v", r)
	}
	if !r.EventDate.Equal(domain.Date(2024, time.March, 10)) {
		t.Errorf("date = %v", r.EventDate)
	}
	if !strings.HasPrefix(r.SourceReference, "file://") || !strings.HasSuffix(r.SourceReference, RowsFileName) {
		t.Errorf("source reference = %q", r.SourceReference)
	}
	if r.Region != "US" || r.SourceID != SourceID {
		t.Errorf("region/source = %q/%q", r.Region, r.SourceID)
	}
}

func TestMalformedRowIsIsolated(t *testing.T) {
	var lines []string
	for i := 0; i < 10; i++ {
		if i == 4 {
			lines = append(lines, `{"Company": "Broken", "Date": `)
			continue
		}
		lines = append(lines, fmt.Sprintf(`{"company_name":"Company %c","# Employees":"%d","date":"2024-01-%02d"}`, 'A'+i, 10*(i+1), i+1))
	}
	base := writeRows(t, "bulk", lines...)

	l := logger.New(logger.Options{Output: io.Discard})
	hook := test.NewLocal(l.Entry.Logger)
	ctx := l.WithContext(context.Background())

	recs := fetchAndNormalize(t, ctx, NewAdapter(base, "bulk", WithClock(clock)))
	if len(recs) != 9 {
		t.Fatalf("expected 9 records, got %d", len(recs))
	}

	skips := 0
	for _, e := range hook.AllEntries() {
		if e.Message == "Skipped malformed row" {
			skips++
			if e.Data[logger.FieldRow] != 4 {
				t.Errorf("skip logged for row %v, want 4", e.Data[logger.FieldRow])
			}
		}
	}
	if skips != 1 {
		t.Errorf("expected 1 logged skip, got %d", skips)
	}
}

func TestFieldMatching(t *testing.T) {
	base := writeRows(t, "loose",
		`{"Organization":"globex","Employees Remaining":500,"Laid Off":"700 (15%)","Layoff Date":"3 Nov, 2024","Date Added":"2025-01-01","Sector":"SaaS","Location HQ":"Bengaluru, IN","Source URL":"https://news.example/g","Notes":"second round"}`,
		`{"name":"Initech","country":"Canada","when":"garbled"}`,
		`{"Laid Off":20}`,
	)

	recs := fetchAndNormalize(t, context.Background(), NewAdapter(base, "loose", WithClock(clock)))
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(recs), recs)
	}

	g := recs[0]
	if g.EntityName != "Globex" {
		t.Errorf("entity = %q", g.EntityName)
	}
	if g.Magnitude == nil || *g.Magnitude != 700 {
		t.Errorf("magnitude = %v", g.Magnitude)
	}
	if g.SecondaryMagnitude == nil || *g.SecondaryMagnitude != 500 {
		t.Errorf("remaining = %v", g.SecondaryMagnitude)
	}
	if !g.EventDate.Equal(domain.Date(2024, time.November, 3)) {
		t.Errorf("date = %v, the added date must not be used", g.EventDate)
	}
	if g.Category != "SaaS" || g.Region != "India" {
		t.Errorf("category/region = %q/%q", g.Category, g.Region)
	}
	if g.SourceReference != "https://news.example/g" {
		t.Errorf("reference = %q", g.SourceReference)
	}
	if g.Notes != "second round; Location: Bengaluru, IN" {
		t.Errorf("notes = %q", g.Notes)
	}

	i := recs[1]
	if i.Region != "Canada" {
		t.Errorf("region = %q", i.Region)
	}
	if !i.EventDate.Equal(domain.Date(2025, time.May, 20)) {
		t.Errorf("garbled date should fall back to today, got %v", i.EventDate)
	}
}

func TestFetchRawErrors(t *testing.T) {
	if _, err := NewAdapter(t.TempDir(), "missing").FetchRaw(context.Background()); !errors.Is(err, source.ErrSourceUnavailable) {
		t.Errorf("missing file: err = %v, want ErrSourceUnavailable", err)
	}

	base := writeRows(t, "empty", "", "  ")
	if _, err := NewAdapter(base, "empty").FetchRaw(context.Background()); !errors.Is(err, source.ErrSourceFormatChanged) {
		t.Errorf("empty file: err = %v, want ErrSourceFormatChanged", err)
	}
}

func TestMissingRowsNamesAvailableDrops(t *testing.T) {
	base := writeRows(t, "curated", `{"Company":"X"}`)

	_, err := NewAdapter(base, "manual").FetchRaw(context.Background())
	if !errors.Is(err, source.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	if !strings.Contains(err.Error(), "available: curated") {
		t.Errorf("error should list existing drops, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		key  string
		want field
	}{
		{"Company", fieldCompany},
		{"name", fieldCompany},
		{"# Laid Off", fieldMagnitude},
		{"employees_affected", fieldMagnitude},
		{"Employees Remaining", fieldRemaining},
		{"Date", fieldDate},
		{"Date Added", fieldIgnored},
		{"Industry", fieldCategory},
		{"Country", fieldRegion},
		{"HQ", fieldLocation},
		{"link", fieldLink},
		{"Stage", fieldIgnored},
	}
	for _, tt := range tests {
		if got := classify(tt.key); got != tt.want {
			t.Errorf("classify(%q) = %d, want %d", tt.key, got, tt.want)
		}
	}
}

func TestListStagingSources(t *testing.T) {
	base := writeRows(t, "b", `{"Company":"X"}`)
	if err := os.MkdirAll(filepath.Join(base, "a"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(base, "c"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "c", RowsFileName), []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	names, err := ListStagingSources(base)
	if err != nil {
		t.Fatalf("ListStagingSources: %v", err)
	}
	if len(names) != 2 || names[0] != "b" || names[1] != "c" {
		t.Errorf("names = %v", names)
	}

	names, err = ListStagingSources(filepath.Join(base, "nope"))
	if err != nil || len(names) != 0 {
		t.Errorf("missing dir: %v, %v", names, err)
	}
}
