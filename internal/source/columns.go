package source

import "strings"

// NormalizeColumnName lowercases name, drops '#', turns spaces into
// underscores and trims surrounding underscores: "# Laid Off" -> "laid_off".
func NormalizeColumnName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "#", "")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.Trim(name, "_")
}

// ContainsAny reports whether col contains any of the keywords.
func ContainsAny(col string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(col, k) {
			return true
		}
	}
	return false
}

// FirstNonEmpty returns the first value that is not blank after trimming.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// JoinNotes joins the non-empty parts with "; ".
func JoinNotes(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "; ")
}

// Labeled renders "Label: value", or "" when value is blank.
func Labeled(label, value string) string {
	if value = strings.TrimSpace(value); value == "" {
		return ""
	}
	return label + ": " + value
}
