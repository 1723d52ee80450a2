package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanm101/gamemeta/internal/config"
	"github.com/ryanm101/gamemeta/internal/metadata"
	"github.com/ryanm101/gamemeta/internal/platform"
	"github.com/ryanm101/gamemeta/internal/store"
)

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "Bayon...", truncateString("Bayonetta 3", 5))
	assert.Equal(t, "大神...", truncateString("大神伝", 2), "runes are not split")
}

func TestParseSlots(t *testing.T) {
	slots, err := parseSlots([]string{"genres", "Developer"})
	require.NoError(t, err)
	assert.Equal(t, []metadata.Slot{metadata.SlotGenres, metadata.SlotDevelopers}, slots)

	_, err = parseSlots([]string{"colour"})
	assert.Error(t, err)

	slots, err = parseSlots(nil)
	require.NoError(t, err)
	assert.Nil(t, slots, "no slots means every slot")
}

func TestSourceSettings(t *testing.T) {
	cfg = config.DefaultConfig()
	cfg.Sources.Barcode.BaseURL = "https://barcodes.example"
	cfg.Sources.IGDB.ClientID = "id"
	cfg.Sources.IGDB.ClientSecret = "secret"

	assert.Equal(t, "https://barcodes.example", sourceSettings("Barcode")["base_url"])
	assert.Equal(t, ";", sourceSettings("wiki")["platform_delimiter"])
	assert.Equal(t, "secret", sourceSettings("igdb")["client_secret"])
	assert.Nil(t, sourceSettings("unknown"))
}

func TestRegisteredSources(t *testing.T) {
	assert.Equal(t, []string{"barcode", "igdb", "wiki"}, metadata.Adapters())
}

func TestSelectRecords(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	a := &metadata.Record{Name: "Vanquish"}
	b := &metadata.Record{Name: "Astral Chain"}
	require.NoError(t, st.AddRecord(ctx, a))
	require.NoError(t, st.AddRecord(ctx, b))

	all, err := selectRecords(ctx, st, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Astral Chain", all[0].Name)

	some, err := selectRecords(ctx, st, []string{a.ID})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "Vanquish", some[0].Name)

	_, err = selectRecords(ctx, st, []string{"missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJoinHandles(t *testing.T) {
	got := joinHandles([]platform.Handle{platform.Spec("nintendo_switch"), platform.Named("Zeebo")})
	assert.Equal(t, "nintendo_switch, Zeebo", got)
}
