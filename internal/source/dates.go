package source

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/timmy/layoffwatch/internal/domain"
)

// dateLayouts are tried in order; the first successful parse wins.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2/1/2006",
	"2 Jan, 2006",
	"2 January, 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2006/01/02",
}

// yearless layouts need a context year appended before parsing.
var yearlessLayouts = []string{
	"2 Jan",
	"2 January",
	"Jan 2",
}

var (
	// "April-24", "Nov'25"
	shortPeriodPattern = regexp.MustCompile(`^([A-Za-z]+)\s*[-']\s*(\d{2})$`)
	// "December 2024", "Dec-2024"
	longPeriodPattern = regexp.MustCompile(`^([A-Za-z]+)[-\s]+(\d{4})$`)
)

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// ParseDate parses the upstream date formats: ISO-8601 timestamps and dates,
// DD/MM/YYYY, "D Mon, YYYY", "D Mon" (using contextYear when > 0) and
// "Month-YY" periods, which map to the first of the month.
func ParseDate(s string, contextYear int) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.DateOf(t), true
		}
	}

	if contextYear > 0 {
		for _, layout := range yearlessLayouts {
			if t, err := time.Parse(layout+" 2006", s+" "+strconv.Itoa(contextYear)); err == nil {
				return domain.DateOf(t), true
			}
		}
	}

	return parsePeriod(s)
}

// parsePeriod handles "April-24", "Nov-25", "December 2024".
func parsePeriod(s string) (time.Time, bool) {
	m := shortPeriodPattern.FindStringSubmatch(s)
	if m == nil {
		m = longPeriodPattern.FindStringSubmatch(s)
	}
	if m == nil {
		return time.Time{}, false
	}
	month, ok := monthNames[strings.ToLower(m[1])]
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, false
	}
	if year < 100 {
		year += 2000
	}
	return domain.Date(year, month, 1), true
}

// ParseDateOr parses s and falls back to today's date from clock, so a garbled
// date never drops a row. The bool reports whether s parsed.
func ParseDateOr(s string, contextYear int, clock Clock) (time.Time, bool) {
	if t, ok := ParseDate(s, contextYear); ok {
		return t, true
	}
	return domain.DateOf(clock()), false
}

// ParseDateValue accepts a decoded JSON cell: strings are parsed with
// ParseDate, numbers are Unix milliseconds.
func ParseDateValue(v interface{}, contextYear int) (time.Time, bool) {
	switch x := v.(type) {
	case string:
		return ParseDate(x, contextYear)
	case float64:
		if x <= 0 {
			return time.Time{}, false
		}
		return domain.DateOf(time.UnixMilli(int64(x)).UTC()), true
	default:
		return time.Time{}, false
	}
}
