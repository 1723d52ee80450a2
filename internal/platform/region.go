package platform

import "strings"

var regionAliases = map[string]string{
	"na":            "North America",
	"us":            "North America",
	"usa":           "North America",
	"north america": "North America",
	"ntsc-u":        "North America",
	"eu":            "Europe",
	"eur":           "Europe",
	"europe":        "Europe",
	"pal":           "Europe",
	"jp":            "Japan",
	"jpn":           "Japan",
	"japan":         "Japan",
	"ntsc-j":        "Japan",
	"au":            "Australia",
	"aus":           "Australia",
	"australia":     "Australia",
	"kr":            "Korea",
	"korea":         "Korea",
	"cn":            "China",
	"china":         "China",
	"ww":            "World",
	"world":         "World",
	"worldwide":     "World",
}

// NormalizeRegion maps common provider region labels onto a small canonical
// set. Unknown labels are returned trimmed but otherwise unchanged.
func NormalizeRegion(label string) string {
	trimmed := strings.TrimSpace(label)
	if canonical, ok := regionAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// NormalizeRegions normalizes every label and drops empty and repeated entries.
func NormalizeRegions(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		r := NormalizeRegion(l)
		if r == "" {
			continue
		}
		key := strings.ToLower(r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
