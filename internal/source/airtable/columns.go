package airtable

import (
	"strings"

	"github.com/timmy/layoffwatch/internal/source"
)

type field int

const (
	fieldIgnored field = iota
	fieldCompany
	fieldPercent
	fieldRemaining
	fieldMagnitude
	fieldDate
	fieldCategory
	fieldLink
	fieldRegion
	fieldLocation
	fieldStage
)

type mappedColumn struct {
	id      string
	name    string
	field   field
	choices map[string]source.Choice
}

// classifyColumns resolves each column to a logical field by keyword. Order
// matters: "Percentage Laid Off" is a percentage, not a headcount.
func classifyColumns(cols []column) []mappedColumn {
	out := make([]mappedColumn, 0, len(cols))
	for _, c := range cols {
		name := source.NormalizeColumnName(c.Name)
		out = append(out, mappedColumn{
			id:      c.ID,
			name:    name,
			field:   classify(name),
			choices: c.choices(),
		})
	}
	return out
}

func classify(col string) field {
	switch {
	case col == "":
		return fieldIgnored
	case strings.Contains(col, "company") || col == "name":
		return fieldCompany
	case source.ContainsAny(col, "%", "percent"):
		return fieldPercent
	case strings.Contains(col, "remaining"):
		return fieldRemaining
	case source.ContainsAny(col, "laid_off", "employees", "affected", "laid"):
		return fieldMagnitude
	case strings.Contains(col, "date") && !strings.Contains(col, "added"):
		return fieldDate
	case source.ContainsAny(col, "industry", "category", "sector"):
		return fieldCategory
	case col == "source" || source.ContainsAny(col, "link", "url"):
		return fieldLink
	case strings.Contains(col, "country"):
		return fieldRegion
	case source.ContainsAny(col, "location", "hq", "headquarter"):
		return fieldLocation
	case strings.Contains(col, "stage"):
		return fieldStage
	default:
		return fieldIgnored
	}
}
