package merge

import (
	"slices"
	"strings"

	"github.com/ryanm101/gamemeta/internal/metadata"
	"github.com/ryanm101/gamemeta/internal/platform"
)

// Fields is the set of values an import commits to one record.
type Fields struct {
	Names       []string
	Platforms   []platform.Handle
	Regions     []string
	ReleaseDate *metadata.ReleaseDate
	CoverURL    string
	Description string
	Links       []metadata.Link
	Properties  map[metadata.Slot]metadata.PropertySet
}

// FieldsFromDetails copies the descriptive fields of details. Properties
// are left empty; see ResolveProperties.
func FieldsFromDetails(d *metadata.GameDetails) Fields {
	if d == nil {
		return Fields{}
	}
	return Fields{
		Names:       d.Names,
		Platforms:   d.Platforms,
		Regions:     platform.NormalizeRegions(d.Regions),
		ReleaseDate: d.ReleaseDate,
		CoverURL:    d.CoverURL,
		Description: d.Description,
		Links:       d.Links,
	}
}

// Options controls Apply.
type Options struct {
	Policy Policy
	// PropertiesOnly skips names, platforms, regions, links and scalars.
	PropertiesOnly bool
}

// Change describes one field Apply modified.
type Change struct {
	Field string
	// Added counts values appended to a list field.
	Added int
	// Replaced is set when existing content was overwritten.
	Replaced bool
}

// Changes lists the fields modified by Apply, in application order.
type Changes []Change

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c) == 0
}

// Fields returns the names of the changed fields.
func (c Changes) Fields() []string {
	out := make([]string, len(c))
	for i, ch := range c {
		out[i] = ch.Field
	}
	return out
}

// Apply commits fields to record and reports what changed.
func Apply(record *metadata.Record, fields Fields, opts Options) Changes {
	var changes Changes
	policy := opts.Policy

	if !opts.PropertiesOnly {
		if record.Name == "" && len(fields.Names) > 0 {
			record.Name = fields.Names[0]
			changes = append(changes, Change{Field: "name"})
		}
		record.Names = mergeList(&changes, "names", record.Names, fields.Names, foldKey, policy)
		record.Platforms = mergeList(&changes, "platforms", record.Platforms, fields.Platforms, platform.Handle.Key, policy)
		record.Regions = mergeList(&changes, "regions", record.Regions, fields.Regions, foldKey, policy)
		record.Links = mergeList(&changes, "links", record.Links, fields.Links, linkKey, policy)

		if !fields.ReleaseDate.IsZero() && (policy == Replace || record.ReleaseDate.IsZero()) {
			if record.ReleaseDate.String() != fields.ReleaseDate.String() {
				changes = append(changes, Change{Field: "release_date", Replaced: !record.ReleaseDate.IsZero()})
				rd := *fields.ReleaseDate
				record.ReleaseDate = &rd
			}
		}
		record.CoverURL = mergeScalar(&changes, "cover_url", record.CoverURL, fields.CoverURL, policy)
		record.Description = mergeScalar(&changes, "description", record.Description, fields.Description, policy)
	}

	for _, acc := range accessors {
		incoming, ok := fields.Properties[acc.Slot]
		if !ok {
			continue
		}
		existing := acc.Get(record)
		merged := ApplyProperty(existing, incoming, policy)
		if slices.Equal(existing, merged) {
			continue
		}
		acc.Set(record, merged)
		changes = append(changes, Change{
			Field:    acc.Slot.String(),
			Added:    countAdded(existing, merged),
			Replaced: policy == Replace && len(existing) > 0,
		})
	}

	return changes
}

func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func linkKey(l metadata.Link) string {
	return strings.ToLower(strings.TrimSpace(l.URL))
}

// mergeList applies policy to a keyed list. Entries with an empty key are
// dropped from incoming.
func mergeList[T any](changes *Changes, field string, existing, incoming []T, key func(T) string, policy Policy) []T {
	if len(incoming) == 0 {
		return existing
	}

	var base []T
	if policy == Append {
		base = existing
	}

	out := slices.Clone(base)
	seen := make(map[string]struct{}, len(base)+len(incoming))
	for _, v := range base {
		seen[key(v)] = struct{}{}
	}
	for _, v := range incoming {
		k := key(v)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}

	if len(out) == 0 || sameKeys(existing, out, key) {
		return existing
	}

	have := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		have[key(v)] = struct{}{}
	}
	added := 0
	for _, v := range out {
		if _, ok := have[key(v)]; !ok {
			added++
		}
	}

	*changes = append(*changes, Change{
		Field:    field,
		Added:    added,
		Replaced: policy == Replace && len(existing) > 0,
	})
	return out
}

func sameKeys[T any](a, b []T, key func(T) string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if key(a[i]) != key(b[i]) {
			return false
		}
	}
	return true
}

func mergeScalar(changes *Changes, field, existing, incoming string, policy Policy) string {
	incoming = strings.TrimSpace(incoming)
	if incoming == "" || incoming == existing {
		return existing
	}
	if policy == Append && existing != "" {
		return existing
	}
	*changes = append(*changes, Change{Field: field, Replaced: existing != ""})
	return incoming
}

func countAdded(existing, merged metadata.PropertySet) int {
	have := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		have[id] = struct{}{}
	}
	n := 0
	for _, id := range merged {
		if _, ok := have[id]; !ok {
			n++
		}
	}
	return n
}
