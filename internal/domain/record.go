package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// DefaultRegion is applied when an adapter cannot determine a region.
	DefaultRegion = "US"

	// MaxEntityNameLen bounds entity names coming from upstream free text.
	MaxEntityNameLen = 200

	identityKeySeparator = "_"
	dateLayout           = "2006-01-02"
)

// NormalizedRecord is one ingested layoff event in the canonical schema.
// Optional numeric fields use pointers so that "unknown" stays distinct from zero.
type NormalizedRecord struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityName         string    `gorm:"type:varchar(255);not null;index:idx_layoffs_entity_date,priority:1" json:"entity_name"`
	Category           string    `gorm:"type:varchar(255)" json:"category,omitempty"`
	EventDate          time.Time `gorm:"type:date;not null;index;index:idx_layoffs_entity_date,priority:2;index:idx_layoffs_date_source,priority:1" json:"event_date"`
	Magnitude          *int      `json:"magnitude,omitempty"`
	SecondaryMagnitude *int      `json:"secondary_magnitude,omitempty"`
	SourceID           string    `gorm:"type:varchar(100);not null;index;index:idx_layoffs_date_source,priority:2" json:"source_id"`
	SourceReference    string    `gorm:"type:text;not null" json:"source_reference"`
	Region             string    `gorm:"type:varchar(100);not null;default:US" json:"region"`
	Notes              string    `gorm:"type:text" json:"notes,omitempty"`
	IdentityKey        string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_layoffs_identity" json:"identity_key"`
	ScrapedAt          time.Time `gorm:"not null" json:"scraped_at"`
}

// TableName returns the database table name for NormalizedRecord.
func (NormalizedRecord) TableName() string {
	return "layoffs"
}

var titleCaser = cases.Title(language.English)

// CanonicalEntityName trims, collapses inner whitespace and title-cases name,
// so "GOOGLE" and " google " map to "Google".
func CanonicalEntityName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	if r := []rune(name); len(r) > MaxEntityNameLen {
		name = strings.TrimSpace(string(r[:MaxEntityNameLen]))
	}
	return titleCaser.String(name)
}

// ComputeIdentityKey derives the deduplication key for an event.
// The key only depends on the canonical entity name, the calendar date and the
// source id, all lowercased, so re-scraping the same event yields the same key.
func ComputeIdentityKey(entityName string, eventDate time.Time, sourceID string) string {
	parts := []string{
		strings.ToLower(CanonicalEntityName(entityName)),
		eventDate.Format(dateLayout),
		strings.ToLower(strings.TrimSpace(sourceID)),
	}
	sum := md5.Sum([]byte(strings.Join(parts, identityKeySeparator)))
	return hex.EncodeToString(sum[:])
}

// Date returns the calendar date y-m-d at UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates t to its calendar date in t's own location and re-expresses it at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// Normalize applies the canonical rewrites to r in place and recomputes its identity key.
func (r *NormalizedRecord) Normalize() {
	r.EntityName = CanonicalEntityName(r.EntityName)
	r.Category = strings.TrimSpace(r.Category)
	r.Region = strings.TrimSpace(r.Region)
	if r.Region == "" {
		r.Region = DefaultRegion
	}
	r.Notes = strings.TrimSpace(r.Notes)
	if !r.EventDate.IsZero() {
		r.EventDate = DateOf(r.EventDate)
	}
	r.IdentityKey = ComputeIdentityKey(r.EntityName, r.EventDate, r.SourceID)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
