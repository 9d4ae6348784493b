package source

import "strings"

// regionMarker maps a substring of a free-text location to a region.
type regionMarker struct {
	region  string
	markers []string
	unless  string // skip the marker when the location also contains this
}

// regionTable is checked in order.
var regionTable = []regionMarker{
	{region: "US", markers: []string{", US", "United States"}},
	{region: "India", markers: []string{", IN", "India"}},
	{region: "Israel", markers: []string{", IL"}},
	{region: "US", markers: []string{", CA"}, unless: "Canada"}, // California
	{region: "UK", markers: []string{", UK", ", GB"}},
	{region: "Germany", markers: []string{", DE"}},
	{region: "Japan", markers: []string{", JP"}},
	{region: "Australia", markers: []string{", AU"}},
	{region: "Singapore", markers: []string{", SG"}},
	{region: "China", markers: []string{", CN"}},
}

// InferRegion guesses a region from a location such as "San Francisco, CA".
// def is returned when nothing matches.
func InferRegion(location, def string) string {
	if strings.TrimSpace(location) == "" {
		return def
	}
	for _, rm := range regionTable {
		if rm.unless != "" && strings.Contains(location, rm.unless) {
			continue
		}
		for _, m := range rm.markers {
			if strings.Contains(location, m) {
				return rm.region
			}
		}
	}
	return def
}
