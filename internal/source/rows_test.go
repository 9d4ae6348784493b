package source

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/timmy/layoffwatch/internal/domain"
	"github.com/timmy/layoffwatch/internal/logger"
)

func newTestContext(t *testing.T) (context.Context, *test.Hook) {
	t.Helper()
	l := logger.New(logger.Options{Output: io.Discard, Level: "debug"})
	hook := test.NewLocal(l.Entry.Logger)
	return l.WithContext(context.Background()), hook
}

func record(name string) *domain.NormalizedRecord {
	return &domain.NormalizedRecord{
		EntityName:      name,
		EventDate:       domain.Date(2024, time.March, 1),
		SourceReference: "https://example.com",
	}
}

func TestCollectorIsolatesBadRows(t *testing.T) {
	ctx, hook := newTestContext(t)
	c := NewCollector(ctx, "demo")

	c.Collect(0, func() (*domain.NormalizedRecord, error) { return record("Acme"), nil })
	c.Collect(1, func() (*domain.NormalizedRecord, error) { return nil, RowErrorf(1, "unexpected cell type") })
	c.Collect(2, func() (*domain.NormalizedRecord, error) {
		var cells []string
		_ = cells[3] // index out of range
		return nil, nil
	})
	c.Collect(3, func() (*domain.NormalizedRecord, error) { return record("Globex"), nil })

	recs := c.Finish()
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].EntityName != "Acme" || recs[1].EntityName != "Globex" {
		t.Errorf("unexpected order: %q, %q", recs[0].EntityName, recs[1].EntityName)
	}
	if c.Skipped() != 2 {
		t.Errorf("skipped = %d, want 2", c.Skipped())
	}

	var malformed int
	for _, e := range hook.AllEntries() {
		if e.Message == "Skipped malformed row" {
			malformed++
			if _, ok := e.Data[logger.FieldReason]; !ok {
				t.Error("skip entry missing reason field")
			}
			if _, ok := e.Data[logger.FieldRow]; !ok {
				t.Error("skip entry missing row field")
			}
		}
	}
	if malformed != 2 {
		t.Errorf("logged %d malformed rows, want 2", malformed)
	}
}

func TestCollectorDedupsWithinFetch(t *testing.T) {
	ctx, hook := newTestContext(t)
	c := NewCollector(ctx, "demo")

	c.Add(0, record("Google"), nil)
	c.Add(1, record("GOOGLE "), nil)
	c.Add(2, record("google"), nil)

	if n := len(c.Records()); n != 1 {
		t.Fatalf("expected 1 record after dedup, got %d", n)
	}
	rec := c.Records()[0]
	if rec.SourceID != "demo" {
		t.Errorf("source id not defaulted: %q", rec.SourceID)
	}
	if rec.IdentityKey != domain.ComputeIdentityKey("Google", rec.EventDate, "demo") {
		t.Error("identity key not computed")
	}

	var dups int
	for _, e := range hook.AllEntries() {
		if e.Message == "Skipped duplicate row" {
			dups++
		}
	}
	if dups != 2 {
		t.Errorf("logged %d duplicate skips, want 2", dups)
	}
}

func TestCollectorSkipsBlankNamesAndNilRows(t *testing.T) {
	ctx, _ := newTestContext(t)
	c := NewCollector(ctx, "demo")

	c.Add(0, nil, nil)
	c.Add(1, record("   "), nil)

	if len(c.Records()) != 0 {
		t.Errorf("expected no records, got %d", len(c.Records()))
	}
	if c.Skipped() != 1 {
		t.Errorf("nil rows are silent; blank names count as skipped, got %d", c.Skipped())
	}
}

func TestSourceErrorsWrap(t *testing.T) {
	base := errors.New("dial tcp: refused")
	err := Unavailable("demo", base)
	if !errors.Is(err, ErrSourceUnavailable) || !errors.Is(err, base) {
		t.Errorf("Unavailable should wrap both: %v", err)
	}
	if !errors.Is(FormatChanged("demo", "no rows"), ErrSourceFormatChanged) {
		t.Error("FormatChanged should match ErrSourceFormatChanged")
	}
	if !errors.Is(Structural("demo", base), ErrStructural) {
		t.Error("Structural should match ErrStructural")
	}
}
