package source

import (
	"fmt"
	"strings"
)

// Choice is one entry of a choice-definition table.
type Choice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ResolveChoice maps an opaque choice id, or a list of ids for multi-select
// fields, to display labels using choices. Multiple labels are joined with
// ", ". Strings that are not choice ids pass through; ids with no definition
// fall back to the raw id.
func ResolveChoice(value interface{}, choices map[string]Choice) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return resolveOne(v, choices)
	case []interface{}:
		labels := make([]string, 0, len(v))
		for _, item := range v {
			if s := ResolveChoice(item, choices); s != "" {
				labels = append(labels, s)
			}
		}
		return strings.Join(labels, ", ")
	case []string:
		labels := make([]string, 0, len(v))
		for _, item := range v {
			if s := resolveOne(item, choices); s != "" {
				labels = append(labels, s)
			}
		}
		return strings.Join(labels, ", ")
	case map[string]interface{}:
		// Linked-record cells arrive as {"foreignRowDisplayName": ...}.
		if name, ok := v["foreignRowDisplayName"].(string); ok {
			return strings.TrimSpace(name)
		}
		if name, ok := v["name"].(string); ok {
			return strings.TrimSpace(name)
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func resolveOne(id string, choices map[string]Choice) string {
	id = strings.TrimSpace(id)
	if c, ok := choices[id]; ok && c.Name != "" {
		return c.Name
	}
	return id
}
