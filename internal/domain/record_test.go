package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestComputeIdentityKeyDeterministic(t *testing.T) {
	d := Date(2024, time.March, 10)

	k1 := ComputeIdentityKey("Acme", d, "staging")
	k2 := ComputeIdentityKey("Acme", d, "staging")
	if k1 != k2 {
		t.Fatalf("key mismatch: %s != %s", k1, k2)
	}
	if len(k1) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(k1))
	}

	// A time-of-day component on the same calendar date must not change the key.
	withClock := time.Date(2024, time.March, 10, 17, 45, 0, 0, time.UTC)
	if got := ComputeIdentityKey("Acme", withClock, "staging"); got != k1 {
		t.Errorf("time of day changed the key: %s != %s", got, k1)
	}
}

func TestComputeIdentityKeyCaseAndWhitespaceInsensitive(t *testing.T) {
	d := Date(2025, time.January, 6)
	want := ComputeIdentityKey("Google", d, "src")

	for _, tc := range []struct {
		name   string
		entity string
		source string
	}{
		{"upper", "GOOGLE", "SRC"},
		{"padded", " google ", "src"},
		{"inner spaces", "google", " src "},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputeIdentityKey(tc.entity, d, tc.source); got != want {
				t.Errorf("ComputeIdentityKey(%q, %q) = %s, want %s", tc.entity, tc.source, got, want)
			}
		})
	}
}

func TestComputeIdentityKeyDistinguishesInputs(t *testing.T) {
	d := Date(2025, time.January, 6)
	base := ComputeIdentityKey("Meta", d, "layoffs_fyi")

	if ComputeIdentityKey("Meta", d.AddDate(0, 0, 1), "layoffs_fyi") == base {
		t.Error("different dates should produce different keys")
	}
	if ComputeIdentityKey("Meta", d, "peerlist") == base {
		t.Error("different sources should produce different keys")
	}
	if ComputeIdentityKey("Facebook", d, "layoffs_fyi") == base {
		t.Error("different entities should produce different keys")
	}
}

func TestCanonicalEntityName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"GOOGLE", "Google"},
		{"Google ", "Google"},
		{"  meta   platforms ", "Meta Platforms"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := CanonicalEntityName(tt.in); got != tt.want {
			t.Errorf("CanonicalEntityName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := strings.Repeat("a", MaxEntityNameLen+50)
	if got := CanonicalEntityName(long); len([]rune(got)) != MaxEntityNameLen {
		t.Errorf("expected truncation to %d runes, got %d", MaxEntityNameLen, len([]rune(got)))
	}
}

func TestNormalizeRecord(t *testing.T) {
	r := &NormalizedRecord{
		EntityName:      "  acme corp ",
		EventDate:       time.Date(2024, time.March, 10, 13, 0, 0, 0, time.UTC),
		SourceID:        "staging",
		SourceReference: "https://example.com",
	}
	r.Normalize()

	if r.EntityName != "Acme Corp" {
		t.Errorf("entity name = %q", r.EntityName)
	}
	if r.Region != DefaultRegion {
		t.Errorf("region = %q, want %q", r.Region, DefaultRegion)
	}
	if !r.EventDate.Equal(Date(2024, time.March, 10)) {
		t.Errorf("event date not truncated: %v", r.EventDate)
	}
	if r.IdentityKey != ComputeIdentityKey("Acme Corp", Date(2024, time.March, 10), "staging") {
		t.Errorf("identity key not recomputed: %s", r.IdentityKey)
	}
}

func TestValidate(t *testing.T) {
	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	valid := func() *NormalizedRecord {
		return &NormalizedRecord{
			EntityName:      "Acme",
			EventDate:       Date(2025, time.May, 30),
			Magnitude:       IntPtr(100),
			SourceID:        "staging",
			SourceReference: "https://example.com",
			Region:          "US",
		}
	}

	tests := []struct {
		name    string
		mutate  func(r *NormalizedRecord)
		wantErr string
	}{
		{"valid", func(r *NormalizedRecord) {}, ""},
		{"today is allowed", func(r *NormalizedRecord) { r.EventDate = Date(2025, time.June, 1) }, ""},
		{"tomorrow rejected", func(r *NormalizedRecord) { r.EventDate = Date(2025, time.June, 2) }, "event_date"},
		{"blank entity", func(r *NormalizedRecord) { r.EntityName = "   " }, "entity_name"},
		{"missing date", func(r *NormalizedRecord) { r.EventDate = time.Time{} }, "event_date"},
		{"negative magnitude", func(r *NormalizedRecord) { r.Magnitude = IntPtr(-1) }, "magnitude"},
		{"negative secondary", func(r *NormalizedRecord) { r.SecondaryMagnitude = IntPtr(-5) }, "secondary_magnitude"},
		{"zero magnitude ok", func(r *NormalizedRecord) { r.Magnitude = IntPtr(0) }, ""},
		{"missing source", func(r *NormalizedRecord) { r.SourceID = "" }, "source_id"},
		{"missing reference", func(r *NormalizedRecord) { r.SourceReference = "" }, "source_reference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			err := Validate(r, now)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error on %s", tt.wantErr)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %s", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateFutureDateAgainstWallClock(t *testing.T) {
	r := &NormalizedRecord{
		EntityName:      "Acme",
		EventDate:       DateOf(time.Now()).AddDate(0, 0, 1),
		SourceID:        "staging",
		SourceReference: "https://example.com",
	}
	if err := Validate(r, time.Now()); err == nil {
		t.Error("expected tomorrow's date to fail validation")
	}
}

func TestRunSummaryAggregate(t *testing.T) {
	s := NewRunSummary()
	s.Add("a", RunResult{SourceID: "a", Success: true})
	if !s.Success {
		t.Fatal("summary should succeed with only successful results")
	}
	s.Add("b", RunResult{SourceID: "b", Success: false})
	if s.Success {
		t.Error("summary should fail once any result fails")
	}
	if len(s.Order) != 2 || s.Order[0] != "a" || s.Order[1] != "b" {
		t.Errorf("unexpected order: %v", s.Order)
	}
}
