// Package metadata holds the data model shared by metadata sources, the
// match and merge engines and the host record store, plus the Adapter
// contract every source implements.
package metadata

import (
	"fmt"
	"strings"
	"time"

	"github.com/ryanm101/gamemeta/internal/platform"
)

// RawSearchResult is one candidate returned by a source search. Values are
// produced by adapters and not mutated afterwards.
type RawSearchResult struct {
	Name           string
	AlternateNames []string
	Platforms      []string // raw provider labels
	ReleaseDate    *ReleaseDate
	ProviderID     string
	URL            string
	Source         string // adapter name
}

// Link is a named external URL attached to a game.
type Link struct {
	Name string
	URL  string
}

// GameDetails is the full metadata for one candidate.
type GameDetails struct {
	ID          string
	Names       []string
	Platforms   []platform.Handle
	Regions     []string
	Developers  []string
	Publishers  []string
	Genres      []string
	Tags        []string
	Features    []string
	Series      []string
	ReleaseDate *ReleaseDate
	CoverURL    string
	Description string
	Links       []Link
	Source      string
}

// ReleaseDate is a calendar date of varying precision. Month and Day are zero
// when unknown.
type ReleaseDate struct {
	Year  int
	Month int
	Day   int
}

var releaseDateLayouts = []struct {
	layout    string
	precision int // 1 year, 2 month, 3 day
}{
	{"2006-01-02", 3},
	{"2006-01", 2},
	{"2006", 1},
	{"January 2, 2006", 3},
	{"Jan 2, 2006", 3},
	{"2 January 2006", 3},
	{"2 Jan 2006", 3},
	{"January 2006", 2},
	{"2006/01/02", 3},
}

// ParseReleaseDate parses the date formats commonly found on provider pages.
func ParseReleaseDate(s string) (*ReleaseDate, error) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return nil, fmt.Errorf("parse release date: empty")
	}
	for _, l := range releaseDateLayouts {
		t, err := time.Parse(l.layout, s)
		if err != nil {
			continue
		}
		rd := &ReleaseDate{Year: t.Year()}
		if l.precision >= 2 {
			rd.Month = int(t.Month())
		}
		if l.precision >= 3 {
			rd.Day = t.Day()
		}
		return rd, nil
	}
	return nil, fmt.Errorf("parse release date %q: unrecognized format", s)
}

// ReleaseDateFromTime builds a day-precision date.
func ReleaseDateFromTime(t time.Time) *ReleaseDate {
	return &ReleaseDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// IsZero reports whether no year is set.
func (d *ReleaseDate) IsZero() bool {
	return d == nil || d.Year == 0
}

// String renders the most precise ISO form: 2019, 2019-08 or 2019-08-30.
func (d *ReleaseDate) String() string {
	switch {
	case d.IsZero():
		return ""
	case d.Month == 0:
		return fmt.Sprintf("%04d", d.Year)
	case d.Day == 0:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	default:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	}
}
