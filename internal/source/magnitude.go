package source

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	percentPattern = regexp.MustCompile(`\(?\s*\d+(?:\.\d+)?\s*%\s*\)?`)
	digitsPattern  = regexp.MustCompile(`\d+`)
)

// ExtractMagnitude pulls the first integer out of noisy text such as
// "700 (15%)", "1,000+" or "~250 employees". Percentages are ignored and text
// without digits ("Silent Firing") yields nil.
func ExtractMagnitude(s string) *int {
	s = strings.ReplaceAll(s, ",", "")
	s = percentPattern.ReplaceAllString(s, " ")
	m := digitsPattern.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}

// MagnitudeValue accepts a decoded JSON cell. Negative or fractional numbers
// are truncated toward zero; negatives yield nil.
func MagnitudeValue(v interface{}) *int {
	switch x := v.(type) {
	case float64:
		if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		n := int(x)
		return &n
	case int:
		if x < 0 {
			return nil
		}
		return &x
	case string:
		return ExtractMagnitude(x)
	default:
		return nil
	}
}
