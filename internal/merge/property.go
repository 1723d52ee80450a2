// Package merge commits fetched metadata into host records under an Append
// or Replace policy.
package merge

import (
	"fmt"
	"strings"

	"github.com/ryanm101/gamemeta/internal/metadata"
)

// Policy decides how incoming values combine with existing ones.
type Policy int

const (
	// Append keeps existing values and adds new ones. Scalars are only
	// filled when empty.
	Append Policy = iota
	// Replace overwrites every field the incoming data provides.
	Replace
)

func (p Policy) String() string {
	if p == Replace {
		return "replace"
	}
	return "append"
}

// ParsePolicy parses "append" or "replace".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "append":
		return Append, nil
	case "replace":
		return Replace, nil
	default:
		return Append, fmt.Errorf("unknown merge policy %q (want append or replace)", s)
	}
}

// MergeProperty returns existing followed by every id of incoming not
// already present. Neither input is modified and the result never contains
// an id twice that was not already duplicated in existing.
func MergeProperty(existing, incoming metadata.PropertySet) metadata.PropertySet {
	out := make(metadata.PropertySet, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, id := range existing {
		out = append(out, id)
		seen[id] = struct{}{}
	}
	for _, id := range incoming {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ApplyProperty combines one slot's ids under policy. Replace with an empty
// incoming set leaves the slot untouched.
func ApplyProperty(existing, incoming metadata.PropertySet, policy Policy) metadata.PropertySet {
	if policy == Replace {
		if len(incoming) == 0 {
			return existing
		}
		return MergeProperty(nil, incoming)
	}
	return MergeProperty(existing, incoming)
}
