package wiki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanm101/gamemeta/internal/download"
	"github.com/ryanm101/gamemeta/internal/metadata"
	"github.com/ryanm101/gamemeta/internal/platform"
	"github.com/ryanm101/gamemeta/internal/walk"
)

const astralChainInfobox = `<div class="mw-parser-output"><table class="infobox ib-video-game">
<tbody>
<tr><td colspan="2"><img src="//upload.wikimedia.org/astral.png"></td></tr>
<tr><th class="infobox-label">Developer(s)</th><td class="infobox-data">PlatinumGames</td></tr>
<tr><th class="infobox-label">Publisher(s)</th><td class="infobox-data">Nintendo<sup>[1]</sup></td></tr>
<tr><th class="infobox-label">Platform(s)</th><td class="infobox-data">Nintendo Switch; Arcade Board</td></tr>
<tr><th class="infobox-label">Release</th><td class="infobox-data"><ul><li>JP: August 30, 2019</li><li>NA: August 30, 2019</li></ul></td></tr>
<tr><th class="infobox-label">Genre(s)</th><td class="infobox-data">Action<br>Hack and slash</td></tr>
<tr><th class="infobox-label">Mode(s)</th><td class="infobox-data">Single-player, multiplayer</td></tr>
</tbody></table><p>Astral Chain is a game.</p></div>`

type fakeWiki struct {
	t *testing.T
	// categories maps cmtitle to pages keyed by cmcontinue.
	categories map[string]map[string]membersPage
}

type membersPage struct {
	members []member
	next    string
}

type member struct {
	NS    int    `json:"ns"`
	Title string `json:"title"`
}

func (f *fakeWiki) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	assert.Equal(f.t, "json", q.Get("format"))
	w.Header().Set("Content-Type", "application/json")

	var body any
	switch {
	case q.Get("list") == "search":
		switch q.Get("sroffset") {
		case "0":
			body = map[string]any{
				"continue": map[string]any{"sroffset": 2},
				"query": map[string]any{"search": []map[string]any{
					{"title": "Astral Chain", "pageid": 100},
					{"title": "Astral Chain (soundtrack)", "pageid": 101},
				}},
			}
		default:
			body = map[string]any{
				"query": map[string]any{"search": []map[string]any{
					{"title": "Astral_Chain", "pageid": 100},
					{"title": "PlatinumGames", "pageid": 102},
				}},
			}
		}
	case q.Get("list") == "categorymembers":
		pages, ok := f.categories[q.Get("cmtitle")]
		if !ok {
			body = map[string]any{"query": map[string]any{"categorymembers": []member{}}}
			break
		}
		page := pages[q.Get("cmcontinue")]
		resp := map[string]any{"query": map[string]any{"categorymembers": page.members}}
		if page.next != "" {
			resp["continue"] = map[string]any{"cmcontinue": page.next}
		}
		body = resp
	case q.Get("action") == "parse":
		if q.Get("page") != "Astral Chain" {
			body = map[string]any{"error": map[string]any{"code": "missingtitle", "info": "The page you specified doesn't exist."}}
			break
		}
		body = map[string]any{"parse": map[string]any{"title": "Astral Chain", "pageid": 100, "text": astralChainInfobox}}
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func newAdapter(t *testing.T, f *fakeWiki) *Adapter {
	t.Helper()
	f.t = t
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	client, err := download.New(download.Options{})
	require.NoError(t, err)
	a, err := New(metadata.Deps{
		HTTP:      client,
		Platforms: platform.NewResolver(platform.DefaultMapping()),
		Settings:  map[string]string{"api_url": srv.URL + "/w/api.php"},
	})
	require.NoError(t, err)
	return a
}

func TestSearchByQuery_FollowsOffset(t *testing.T) {
	a := newAdapter(t, &fakeWiki{})

	results, err := a.SearchByQuery(context.Background(), "astral chain")
	require.NoError(t, err)
	require.Len(t, results, 3, "underscore spelling of a seen title is a duplicate")

	assert.Equal(t, "Astral Chain", results[0].Name)
	assert.Equal(t, "100", results[0].ProviderID)
	assert.Equal(t, a.api.Scheme+"://"+a.api.Host+"/wiki/Astral_Chain", results[0].URL)
	assert.Equal(t, "PlatinumGames", results[2].Name)
}

func TestSearchByBarcode_Unsupported(t *testing.T) {
	a := newAdapter(t, &fakeWiki{})
	_, err := a.SearchByBarcode(context.Background(), "045496424671")
	assert.ErrorIs(t, err, metadata.ErrUnsupported)
}

func TestCategoryMembers_SplitsNamespaces(t *testing.T) {
	a := newAdapter(t, &fakeWiki{categories: map[string]map[string]membersPage{
		"Category:PlatinumGames games": {
			"": {members: []member{
				{NS: 0, Title: "Bayonetta"},
				{NS: 14, Title: "Category:Bayonetta"},
				{NS: 6, Title: "File:Logo.png"},
			}, next: "page|2"},
		},
	}})

	page, err := a.CategoryMembers(context.Background(), "PlatinumGames games", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bayonetta"}, page.Articles)
	assert.Equal(t, []string{"Category:Bayonetta"}, page.Subcategories)
	assert.Equal(t, "page|2", page.Next)
}

func TestCategoryWalk_TerminatesOnCycle(t *testing.T) {
	a := newAdapter(t, &fakeWiki{categories: map[string]map[string]membersPage{
		"Category:A": {
			"": {members: []member{{NS: 0, Title: "Okami"}, {NS: 14, Title: "Category:B"}}, next: "a2"},
			"a2": {members: []member{{NS: 0, Title: "Bayonetta"}}},
		},
		"Category:B": {
			"": {members: []member{{NS: 14, Title: "Category:A"}, {NS: 0, Title: "okami"}, {NS: 0, Title: "Vanquish"}}},
		},
	}})

	titles, err := walk.Categories(context.Background(), a, "Category:A", walk.CategoryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Okami", "Bayonetta", "Vanquish"}, titles)
}

func TestGetDetails_Infobox(t *testing.T) {
	a := newAdapter(t, &fakeWiki{})

	d, err := a.GetDetails(context.Background(), metadata.RawSearchResult{Name: "Astral Chain"})
	require.NoError(t, err)

	assert.Equal(t, "100", d.ID)
	assert.Equal(t, []string{"Astral Chain"}, d.Names)
	assert.Equal(t, []string{"PlatinumGames"}, d.Developers)
	assert.Equal(t, []string{"Nintendo"}, d.Publishers)
	assert.Equal(t, []platform.Handle{platform.Spec("nintendo_switch"), platform.Named("Arcade Board")}, d.Platforms)
	assert.Equal(t, []string{"Action", "Hack and slash"}, d.Genres)
	assert.Equal(t, []string{"Single-player, multiplayer"}, d.Features)
	assert.Equal(t, []string{"JP", "NA"}, d.Regions)
	assert.Equal(t, "2019-08-30", d.ReleaseDate.String())
	assert.Equal(t, a.api.Scheme+"://upload.wikimedia.org/astral.png", d.CoverURL)
	require.Len(t, d.Links, 1)
	assert.Equal(t, "Wikipedia", d.Links[0].Name)
}

func TestGetDetails_MissingPage(t *testing.T) {
	a := newAdapter(t, &fakeWiki{})

	_, err := a.GetDetails(context.Background(), metadata.RawSearchResult{Name: "Nope"})
	var perr *metadata.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "missingtitle")
}
