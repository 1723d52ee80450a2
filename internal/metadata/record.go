package metadata

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ryanm101/gamemeta/internal/platform"
)

// PropertySet is an ordered list of opaque property ids.
type PropertySet []string

// Slot names a multi-valued id property of a record.
type Slot int

const (
	SlotGenres Slot = iota
	SlotDevelopers
	SlotPublishers
	SlotTags
	SlotPlatforms
	SlotRegions
	SlotFeatures
	SlotSeries
)

var slotNames = [...]string{
	SlotGenres:     "genres",
	SlotDevelopers: "developers",
	SlotPublishers: "publishers",
	SlotTags:       "tags",
	SlotPlatforms:  "platforms",
	SlotRegions:    "regions",
	SlotFeatures:   "features",
	SlotSeries:     "series",
}

func (s Slot) String() string {
	if s < 0 || int(s) >= len(slotNames) {
		return fmt.Sprintf("slot(%d)", int(s))
	}
	return slotNames[s]
}

// ParseSlot maps a slot name (case-insensitive, singular or plural) to a Slot.
func ParseSlot(name string) (Slot, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, sn := range slotNames {
		if n == sn || n+"s" == sn {
			return Slot(i), nil
		}
	}
	return 0, fmt.Errorf("unknown property slot %q", name)
}

// Record is a host game entry that imports write into.
type Record struct {
	ID          string
	Name        string
	Names       []string
	Platforms   []platform.Handle
	Regions     []string
	ReleaseDate *ReleaseDate
	CoverURL    string
	Description string
	Links       []Link
	Barcode     string
	Properties  map[Slot]PropertySet
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Names = slices.Clone(r.Names)
	c.Platforms = slices.Clone(r.Platforms)
	c.Regions = slices.Clone(r.Regions)
	c.Links = slices.Clone(r.Links)
	if r.ReleaseDate != nil {
		rd := *r.ReleaseDate
		c.ReleaseDate = &rd
	}
	if r.Properties != nil {
		c.Properties = make(map[Slot]PropertySet, len(r.Properties))
		for k, v := range r.Properties {
			c.Properties[k] = slices.Clone(v)
		}
	}
	return &c
}
