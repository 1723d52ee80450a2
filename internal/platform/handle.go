// Package platform resolves provider platform labels into canonical
// platform handles and normalizes region labels.
package platform

import "strings"

// Handle identifies a platform either by canonical specification id or, when
// no canonical match is known, by the provider's free-text name. Exactly one
// of the two is set.
type Handle struct {
	specID string
	name   string
}

// Spec returns a handle referencing a canonical specification id.
func Spec(id string) Handle {
	return Handle{specID: id}
}

// Named returns a free-text handle.
func Named(name string) Handle {
	return Handle{name: name}
}

// IsCanonical reports whether the handle references a specification id.
func (h Handle) IsCanonical() bool {
	return h.specID != ""
}

// SpecID returns the canonical id, or "" for free-text handles.
func (h Handle) SpecID() string {
	return h.specID
}

// Name returns the free-text name, or "" for canonical handles.
func (h Handle) Name() string {
	return h.name
}

// IsZero reports whether the handle is empty.
func (h Handle) IsZero() bool {
	return h.specID == "" && h.name == ""
}

// Key returns a stable identity used for de-duplication. Free-text names
// compare case-insensitively.
func (h Handle) Key() string {
	if h.specID != "" {
		return "spec:" + h.specID
	}
	return "name:" + strings.ToLower(strings.TrimSpace(h.name))
}

// String renders the handle for display.
func (h Handle) String() string {
	if h.specID != "" {
		return h.specID
	}
	return h.name
}

// MarshalText renders the handle as its display string.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}
