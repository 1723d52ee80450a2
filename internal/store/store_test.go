package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanm101/gamemeta/internal/metadata"
	"github.com/ryanm101/gamemeta/internal/platform"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(context.Background(), dbPath)
	require.NoError(t, err, "should open database without error")
	defer func() { _ = s.Close() }()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist")
	assert.Equal(t, dbPath, s.Path())
}

func TestSchemaVersion(t *testing.T) {
	s := openTestStore(t)

	var version int
	err := s.Conn().QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestReopenKeepsSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, s.AddRecord(ctx, &metadata.Record{Name: "Okami"}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestTablesExist(t *testing.T) {
	s := openTestStore(t)

	tables := []string{
		"records", "record_names", "record_platforms", "record_regions",
		"record_links", "properties", "record_properties", "import_runs",
	}
	for _, table := range tables {
		var name string
		err := s.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %s should exist", table)
	}
}

func TestAddRecordAssignsID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := &metadata.Record{Name: "Astral Chain", Barcode: "045496424671"}
	require.NoError(t, s.AddRecord(ctx, rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, []string{"Astral Chain"}, rec.Names)

	got, err := s.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Astral Chain", got.Name)
	assert.Equal(t, "045496424671", got.Barcode)
}

func TestAddRecordRequiresName(t *testing.T) {
	s := openTestStore(t)
	err := s.AddRecord(context.Background(), &metadata.Record{Name: "  "})
	assert.Error(t, err)
}

func TestSaveRecordRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	genres, err := s.ResolveIDs(ctx, metadata.SlotGenres, []string{"Action", "Hack and slash"})
	require.NoError(t, err)

	rec := &metadata.Record{
		ID:          "rec-1",
		Name:        "Astral Chain",
		Names:       []string{"Astral Chain", "アストラルチェイン"},
		Platforms:   []platform.Handle{platform.Spec("nintendo_switch"), platform.Named("Arcade Board")},
		Regions:     []string{"NA", "JP"},
		ReleaseDate: &metadata.ReleaseDate{Year: 2019, Month: 8, Day: 30},
		CoverURL:    "https://img.example/astral.jpg",
		Description: "Action game",
		Links:       []metadata.Link{{Name: "Official", URL: "https://astralchain.example"}},
		Properties:  map[metadata.Slot]metadata.PropertySet{metadata.SlotGenres: genres},
	}
	require.NoError(t, s.SaveRecord(ctx, rec))

	got, err := s.GetRecord(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Names, got.Names)
	assert.Equal(t, rec.Platforms, got.Platforms)
	assert.Equal(t, rec.Regions, got.Regions)
	assert.Equal(t, "2019-08-30", got.ReleaseDate.String())
	assert.Equal(t, rec.CoverURL, got.CoverURL)
	assert.Equal(t, rec.Description, got.Description)
	assert.Equal(t, rec.Links, got.Links)
	assert.Equal(t, genres, got.Properties[metadata.SlotGenres])
}

func TestSaveRecordReplacesChildren(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := &metadata.Record{ID: "rec-1", Name: "Okami", Names: []string{"Okami", "Ōkami"}, Regions: []string{"NA", "EU"}}
	require.NoError(t, s.SaveRecord(ctx, rec))

	rec.Names = []string{"Okami HD"}
	rec.Regions = nil
	rec.ReleaseDate = &metadata.ReleaseDate{Year: 2006}
	require.NoError(t, s.SaveRecord(ctx, rec))

	got, err := s.GetRecord(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Okami HD"}, got.Names)
	assert.Empty(t, got.Regions)
	assert.Equal(t, "2006", got.ReleaseDate.String())
}

func TestGetRecordNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := &metadata.Record{Name: "Okami", Regions: []string{"NA"}}
	require.NoError(t, s.AddRecord(ctx, rec))
	require.NoError(t, s.DeleteRecord(ctx, rec.ID))

	_, err := s.GetRecord(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteRecord(ctx, rec.ID), ErrNotFound)

	var n int
	require.NoError(t, s.Conn().QueryRow("SELECT COUNT(*) FROM record_regions").Scan(&n))
	assert.Zero(t, n, "child rows should cascade")
}

func TestListRecordsOrderedByName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"okami", "Bayonetta", "Astral Chain"} {
		require.NoError(t, s.AddRecord(ctx, &metadata.Record{Name: name}))
	}

	records, err := s.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Astral Chain", records[0].Name)
	assert.Equal(t, "Bayonetta", records[1].Name)
	assert.Equal(t, "okami", records[2].Name)
}

func TestResolveIDsGetOrCreate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.ResolveIDs(ctx, metadata.SlotDevelopers, []string{"PlatinumGames", "Nintendo", "platinumgames", ""})
	require.NoError(t, err)
	require.Len(t, first, 2)

	again, err := s.ResolveIDs(ctx, metadata.SlotDevelopers, []string{"NINTENDO", "PlatinumGames"})
	require.NoError(t, err)
	assert.Equal(t, metadata.PropertySet{first[1], first[0]}, again)

	other, err := s.ResolveIDs(ctx, metadata.SlotPublishers, []string{"Nintendo"})
	require.NoError(t, err)
	assert.NotEqual(t, first[1], other[0], "slots keep separate namespaces")

	names, err := s.PropertyNames(ctx, append(first, "unknown"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{first[0]: "PlatinumGames", first[1]: "Nintendo"}, names)
}

func TestResolveIDsConcurrent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]metadata.PropertySet, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.ResolveIDs(ctx, metadata.SlotGenres, []string{"Action"})
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}

	props, err := s.ListProperties(ctx, metadata.SlotGenres)
	require.NoError(t, err)
	assert.Len(t, props, 1)
}

func TestImportRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, wf := range []string{"barcode", "name", "category"} {
		_, err := s.RecordImportRun(ctx, ImportRun{
			Workflow:  wf,
			Source:    "barcode",
			Policy:    "append",
			DryRun:    i == 1,
			Succeeded: i + 1,
			Duration:  1500 * time.Millisecond,
			StartedAt: started,
		})
		require.NoError(t, err)
	}

	runs, err := s.ListImportRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "category", runs[0].Workflow)
	assert.Equal(t, "name", runs[1].Workflow)
	assert.True(t, runs[1].DryRun)
	assert.Equal(t, 2, runs[1].Succeeded)
	assert.Equal(t, 1500*time.Millisecond, runs[0].Duration)
	assert.True(t, started.Equal(runs[0].StartedAt))
}

func TestLookupIDsDoesNotCreate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.ResolveIDs(ctx, metadata.SlotGenres, []string{"Action"})
	require.NoError(t, err)

	found, err := s.LookupIDs(ctx, metadata.SlotGenres, []string{" ACTION ", "Puzzle", ""})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"action": created[0]}, found)

	props, err := s.ListProperties(ctx, metadata.SlotGenres)
	require.NoError(t, err)
	assert.Len(t, props, 1, "lookup must not add Puzzle")
}

func TestPropertyNamesReportsQueryErrors(t *testing.T) {
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	ids, err := s.ResolveIDs(context.Background(), metadata.SlotGenres, []string{"Action"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.PropertyNames(context.Background(), ids)
	assert.Error(t, err)
}
