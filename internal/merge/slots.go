package merge

import (
	"context"
	"fmt"

	"github.com/ryanm101/gamemeta/internal/metadata"
)

// Accessor reads and writes one id slot of a record and knows which names
// a source supplies for it.
type Accessor struct {
	Slot    metadata.Slot
	Extract func(*metadata.GameDetails) []string
	Get     func(*metadata.Record) metadata.PropertySet
	Set     func(*metadata.Record, metadata.PropertySet)
}

func propertyAccessor(slot metadata.Slot, extract func(*metadata.GameDetails) []string) Accessor {
	return Accessor{
		Slot:    slot,
		Extract: extract,
		Get: func(r *metadata.Record) metadata.PropertySet {
			return r.Properties[slot]
		},
		Set: func(r *metadata.Record, ids metadata.PropertySet) {
			if r.Properties == nil {
				r.Properties = make(map[metadata.Slot]metadata.PropertySet)
			}
			r.Properties[slot] = ids
		},
	}
}

var accessors = []Accessor{
	propertyAccessor(metadata.SlotGenres, func(d *metadata.GameDetails) []string { return d.Genres }),
	propertyAccessor(metadata.SlotDevelopers, func(d *metadata.GameDetails) []string { return d.Developers }),
	propertyAccessor(metadata.SlotPublishers, func(d *metadata.GameDetails) []string { return d.Publishers }),
	propertyAccessor(metadata.SlotTags, func(d *metadata.GameDetails) []string { return d.Tags }),
	propertyAccessor(metadata.SlotPlatforms, platformNames),
	propertyAccessor(metadata.SlotRegions, func(d *metadata.GameDetails) []string { return d.Regions }),
	propertyAccessor(metadata.SlotFeatures, func(d *metadata.GameDetails) []string { return d.Features }),
	propertyAccessor(metadata.SlotSeries, func(d *metadata.GameDetails) []string { return d.Series }),
}

// Canonical platforms are named by their specification id so the host can
// link them to its own platform entries.
func platformNames(d *metadata.GameDetails) []string {
	names := make([]string, 0, len(d.Platforms))
	for _, h := range d.Platforms {
		if h.IsCanonical() {
			names = append(names, h.SpecID())
		} else if h.Name() != "" {
			names = append(names, h.Name())
		}
	}
	return names
}

// Slots lists every mergeable id slot in table order.
func Slots() []metadata.Slot {
	out := make([]metadata.Slot, len(accessors))
	for i, a := range accessors {
		out[i] = a.Slot
	}
	return out
}

// AccessorFor returns the accessor registered for slot.
func AccessorFor(slot metadata.Slot) (Accessor, bool) {
	for _, a := range accessors {
		if a.Slot == slot {
			return a, true
		}
	}
	return Accessor{}, false
}

// IDResolver turns property names into host ids, creating entries as needed.
type IDResolver interface {
	ResolveIDs(ctx context.Context, slot metadata.Slot, names []string) (metadata.PropertySet, error)
}

// IDLookup finds the ids of names the host already knows without creating
// entries. The result maps the lower-cased, trimmed name to its id.
type IDLookup interface {
	LookupIDs(ctx context.Context, slot metadata.Slot, names []string) (map[string]string, error)
}

// PendingID is the placeholder id reported for a name the host has not
// created yet.
func PendingID(slot metadata.Slot, name string) string {
	return "pending:" + slot.String() + ":" + foldKey(name)
}

// ReadOnly wraps ids so that resolution never creates entries. Known names
// keep their ids when ids implements IDLookup; every other name gets a
// PendingID.
func ReadOnly(ids IDResolver) IDResolver {
	lookup, _ := ids.(IDLookup)
	return readOnlyIDs{lookup: lookup}
}

type readOnlyIDs struct {
	lookup IDLookup
}

func (r readOnlyIDs) ResolveIDs(ctx context.Context, slot metadata.Slot, names []string) (metadata.PropertySet, error) {
	var known map[string]string
	if r.lookup != nil {
		var err error
		if known, err = r.lookup.LookupIDs(ctx, slot, names); err != nil {
			return nil, err
		}
	}

	out := make(metadata.PropertySet, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		key := foldKey(name)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if id, ok := known[key]; ok {
			out = append(out, id)
			continue
		}
		out = append(out, PendingID(slot, name))
	}
	return out, nil
}

// ResolveProperties extracts the names details supplies for each slot and
// resolves them to ids. Slots without names are omitted. A nil slots list
// means every slot.
func ResolveProperties(ctx context.Context, ids IDResolver, details *metadata.GameDetails, slots []metadata.Slot) (map[metadata.Slot]metadata.PropertySet, error) {
	if slots == nil {
		slots = Slots()
	}
	out := make(map[metadata.Slot]metadata.PropertySet, len(slots))
	for _, slot := range slots {
		acc, ok := AccessorFor(slot)
		if !ok {
			return nil, fmt.Errorf("no accessor for slot %s", slot)
		}
		names := acc.Extract(details)
		if len(names) == 0 {
			continue
		}
		set, err := ids.ResolveIDs(ctx, slot, names)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", slot, err)
		}
		if len(set) > 0 {
			out[slot] = set
		}
	}
	return out, nil
}
