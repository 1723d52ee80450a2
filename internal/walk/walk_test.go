package walk

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanm101/gamemeta/internal/metadata"
)

// fixturePages serves pages from a fixed slice using offset pagination.
func fixturePages(pages [][]string) PageFunc[string] {
	return func(_ context.Context, cursor PageCursor) ([]string, PageCursor, error) {
		if cursor.Page >= len(pages) {
			return nil, PageCursor{}, nil
		}
		items := pages[cursor.Page]
		next := PageCursor{Offset: cursor.Offset + len(items), HasMore: cursor.Page+1 < len(pages)}
		return items, next, nil
	}
}

func TestLinear_TwoPages(t *testing.T) {
	got, err := Linear(context.Background(), fixturePages([][]string{{"a", "b"}, {"c", "d"}}), Limits{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestLinear_CursorAdvances(t *testing.T) {
	var seen []PageCursor
	fetch := func(_ context.Context, c PageCursor) ([]int, PageCursor, error) {
		seen = append(seen, c)
		return []int{c.Page}, PageCursor{Offset: c.Offset + 10, Token: "t" + strconv.Itoa(c.Page+1), HasMore: c.Page < 2}, nil
	}

	got, err := Linear(context.Background(), fetch, Limits{})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got)
	require.Len(t, seen, 3)
	assert.Equal(t, PageCursor{}, seen[0])
	assert.Equal(t, PageCursor{Offset: 10, Token: "t1", Page: 1, HasMore: true}, seen[1])
	assert.Equal(t, 20, seen[2].Offset)
	assert.Equal(t, 2, seen[2].Page)
}

func TestLinear_PageCapOnEndlessSource(t *testing.T) {
	calls := 0
	endless := func(_ context.Context, c PageCursor) ([]string, PageCursor, error) {
		calls++
		return []string{fmt.Sprintf("item-%d", c.Page)}, PageCursor{HasMore: true}, nil
	}

	got, err := Linear(context.Background(), endless, Limits{MaxPages: 7})
	require.NoError(t, err)
	assert.Len(t, got, 7)
	assert.Equal(t, 7, calls)

	calls = 0
	got, err = Linear(context.Background(), endless, Limits{})
	require.NoError(t, err)
	assert.Len(t, got, DefaultMaxPages)
	assert.Equal(t, DefaultMaxPages, calls)
}

func TestLinear_ResultCap(t *testing.T) {
	got, err := Linear(context.Background(), fixturePages([][]string{{"a", "b", "c"}, {"d", "e", "f"}}), Limits{MaxResults: 4})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestLinearUnique(t *testing.T) {
	pages := fixturePages([][]string{{"Astral Chain", "Bayonetta"}, {"astral chain", "Vanquish"}})
	got, err := LinearUnique(context.Background(), pages, Limits{}, strings.ToLower)
	require.NoError(t, err)
	assert.Equal(t, []string{"Astral Chain", "Bayonetta", "Vanquish"}, got)
}

func TestLinear_FetchError(t *testing.T) {
	boom := errors.New("boom")
	fetch := func(_ context.Context, c PageCursor) ([]string, PageCursor, error) {
		if c.Page == 1 {
			return nil, c, boom
		}
		return []string{"x"}, PageCursor{HasMore: true}, nil
	}
	got, err := Linear(context.Background(), fetch, Limits{})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
}

func TestLinear_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetch := func(_ context.Context, c PageCursor) ([]string, PageCursor, error) {
		if c.Page == 1 {
			cancel()
		}
		return []string{"x"}, PageCursor{HasMore: true}, nil
	}

	got, err := Linear(ctx, fetch, Limits{})
	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWalkAborted)
	assert.ErrorIs(t, err, context.Canceled)

	var aborted *WalkAbortedError
	require.ErrorAs(t, err, &aborted)
	assert.Equal(t, 2, aborted.Pages)
}

// fakeCategories is an in-memory category tree. Listings are split into
// single-entry pages to exercise continuation tokens.
type fakeCategories struct {
	tree  map[string]metadata.CategoryPage
	calls map[string]int
}

func (f *fakeCategories) CategoryMembers(_ context.Context, category, token string) (metadata.CategoryPage, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	key := CategoryKey(category)
	f.calls[key]++

	full, ok := f.tree[key]
	if !ok {
		return metadata.CategoryPage{}, fmt.Errorf("no such category %q", category)
	}

	var entries []metadata.CategoryPage
	for _, a := range full.Articles {
		entries = append(entries, metadata.CategoryPage{Articles: []string{a}})
	}
	for _, s := range full.Subcategories {
		entries = append(entries, metadata.CategoryPage{Subcategories: []string{s}})
	}
	if len(entries) == 0 {
		return metadata.CategoryPage{}, nil
	}

	idx := 0
	if token != "" {
		idx, _ = strconv.Atoi(token)
	}
	page := entries[idx]
	if idx+1 < len(entries) {
		page.Next = strconv.Itoa(idx + 1)
	}
	return page, nil
}

func TestCategories_Cycle(t *testing.T) {
	src := &fakeCategories{tree: map[string]metadata.CategoryPage{
		"nintendo switch games": {
			Articles:      []string{"Astral Chain", "Bayonetta 2"},
			Subcategories: []string{"Category:Nintendo Switch-only games"},
		},
		"nintendo switch-only games": {
			Articles:      []string{"Astral_Chain", "Splatoon 2"},
			Subcategories: []string{"Category:Nintendo_Switch_games"},
		},
	}}

	got, err := Categories(context.Background(), src, "Nintendo Switch games", CategoryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Astral Chain", "Bayonetta 2", "Splatoon 2"}, got)
	assert.Equal(t, 3, src.calls["nintendo switch games"])
	assert.Equal(t, 3, src.calls["nintendo switch-only games"])
}

func TestCategories_SelfLoop(t *testing.T) {
	src := &fakeCategories{tree: map[string]metadata.CategoryPage{
		"loop": {Articles: []string{"A"}, Subcategories: []string{"Category:Loop", "category:LOOP"}},
	}}
	got, err := Categories(context.Background(), src, "Category:Loop", CategoryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, got)
}

func TestCategories_MaxDepth(t *testing.T) {
	src := &fakeCategories{tree: map[string]metadata.CategoryPage{
		"root":   {Articles: []string{"R"}, Subcategories: []string{"Level1"}},
		"level1": {Articles: []string{"L1"}, Subcategories: []string{"Level2"}},
		"level2": {Articles: []string{"L2"}},
	}}

	got, err := Categories(context.Background(), src, "Root", CategoryOptions{MaxDepth: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"R", "L1"}, got)

	got, err = Categories(context.Background(), src, "Root", CategoryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"R", "L1", "L2"}, got)
}

func TestCategories_SourceError(t *testing.T) {
	src := &fakeCategories{tree: map[string]metadata.CategoryPage{
		"root": {Subcategories: []string{"Missing"}},
	}}
	_, err := Categories(context.Background(), src, "Root", CategoryOptions{})
	assert.ErrorContains(t, err, `category "Missing"`)
}

func TestCategories_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeCategories{tree: map[string]metadata.CategoryPage{"root": {Articles: []string{"A"}}}}
	got, err := Categories(ctx, src, "Root", CategoryOptions{})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrWalkAborted)
}

func TestCategoryKey(t *testing.T) {
	assert.Equal(t, "nintendo switch games", CategoryKey("Category:Nintendo_Switch_games"))
	assert.Equal(t, "nintendo switch games", CategoryKey("  nintendo switch   GAMES "))
	assert.Equal(t, "nintendo switch games", CategoryKey("category: Nintendo Switch games"))
	assert.Equal(t, "astral chain", TitleKey("Astral_Chain"))
}
