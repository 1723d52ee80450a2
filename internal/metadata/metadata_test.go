package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanm101/gamemeta/internal/platform"
)

func TestParseReleaseDate(t *testing.T) {
	tests := []struct {
		in   string
		want ReleaseDate
	}{
		{"2019", ReleaseDate{Year: 2019}},
		{"2019-08", ReleaseDate{Year: 2019, Month: 8}},
		{"2019-08-30", ReleaseDate{Year: 2019, Month: 8, Day: 30}},
		{"August 30, 2019", ReleaseDate{Year: 2019, Month: 8, Day: 30}},
		{"Aug 30, 2019", ReleaseDate{Year: 2019, Month: 8, Day: 30}},
		{"30 August 2019", ReleaseDate{Year: 2019, Month: 8, Day: 30}},
		{"  30   August 2019 ", ReleaseDate{Year: 2019, Month: 8, Day: 30}},
		{"August 2019", ReleaseDate{Year: 2019, Month: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseReleaseDate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseReleaseDate_Invalid(t *testing.T) {
	for _, in := range []string{"", "TBA", "Q3 2019", "2019-13-01"} {
		_, err := ParseReleaseDate(in)
		assert.Error(t, err, in)
	}
}

func TestReleaseDate_String(t *testing.T) {
	assert.Equal(t, "2019", (&ReleaseDate{Year: 2019}).String())
	assert.Equal(t, "2019-08", (&ReleaseDate{Year: 2019, Month: 8}).String())
	assert.Equal(t, "2019-08-30", (&ReleaseDate{Year: 2019, Month: 8, Day: 30}).String())

	var nilDate *ReleaseDate
	assert.Empty(t, nilDate.String())
	assert.True(t, nilDate.IsZero())
}

func TestReleaseDateFromTime(t *testing.T) {
	rd := ReleaseDateFromTime(time.Date(2017, time.March, 3, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "2017-03-03", rd.String())
}

func TestParseSlot(t *testing.T) {
	for _, s := range []Slot{SlotGenres, SlotDevelopers, SlotPublishers, SlotTags, SlotPlatforms, SlotRegions, SlotFeatures, SlotSeries} {
		got, err := ParseSlot(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	got, err := ParseSlot("Genre")
	require.NoError(t, err)
	assert.Equal(t, SlotGenres, got)

	_, err = ParseSlot("ratings")
	assert.Error(t, err)
	assert.Equal(t, "slot(99)", Slot(99).String())
}

func TestRecord_Clone(t *testing.T) {
	orig := &Record{
		ID:          "r1",
		Name:        "Astral Chain",
		Names:       []string{"Astral Chain"},
		Platforms:   []platform.Handle{platform.Spec("nintendo_switch")},
		ReleaseDate: &ReleaseDate{Year: 2019},
		Links:       []Link{{Name: "Official", URL: "https://example.com"}},
		Properties:  map[Slot]PropertySet{SlotGenres: {"g1"}},
	}

	c := orig.Clone()
	if diff := cmp.Diff(orig, c, cmp.AllowUnexported(platform.Handle{})); diff != "" {
		t.Errorf("clone mismatch (-want +got):\n%s", diff)
	}

	c.Names[0] = "changed"
	c.ReleaseDate.Year = 2020
	c.Properties[SlotGenres][0] = "g2"
	c.Properties[SlotTags] = PropertySet{"t"}

	assert.Equal(t, "Astral Chain", orig.Names[0])
	assert.Equal(t, 2019, orig.ReleaseDate.Year)
	assert.Equal(t, PropertySet{"g1"}, orig.Properties[SlotGenres])
	assert.NotContains(t, orig.Properties, SlotTags)

	var nilRec *Record
	assert.Nil(t, nilRec.Clone())
}

func TestProviderError(t *testing.T) {
	err := BadResponse("barcode", "search barcode", "missing %s", ".product")
	assert.EqualError(t, err, "barcode: search barcode: unparsable response: missing .product")
	assert.ErrorIs(t, err, ErrBadResponse)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "barcode", pe.Provider)

	assert.ErrorIs(t, Unsupported("igdb", "search barcode"), ErrUnsupported)
}

type stubAdapter struct{ name string }

func (s stubAdapter) Name() string { return s.name }
func (s stubAdapter) SearchByBarcode(context.Context, string) ([]RawSearchResult, error) {
	return nil, nil
}
func (s stubAdapter) SearchByQuery(context.Context, string) ([]RawSearchResult, error) {
	return nil, nil
}
func (s stubAdapter) GetDetails(context.Context, RawSearchResult) (*GameDetails, error) {
	return &GameDetails{}, nil
}

func TestRegistry(t *testing.T) {
	require.NoError(t, Register("Stub-Test", func(d Deps) (Adapter, error) {
		return stubAdapter{name: d.Setting("name", "stub")}, nil
	}))
	assert.Error(t, Register("stub-test", nil))
	assert.Error(t, Register("", nil))

	_, ok := Lookup("STUB-TEST")
	assert.True(t, ok)
	assert.Contains(t, Adapters(), "stub-test")

	a, err := Open("stub-test", Deps{Settings: map[string]string{"name": "custom"}})
	require.NoError(t, err)
	assert.Equal(t, "custom", a.Name())

	_, err = Open("missing-source", Deps{})
	assert.ErrorContains(t, err, "unknown source")
}
