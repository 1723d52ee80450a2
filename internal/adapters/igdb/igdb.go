// Package igdb adapts the IGDB API (authenticated through Twitch) as a
// metadata source.
package igdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Henry-Sarabia/igdb/v2"

	"github.com/ryanm101/gamemeta/internal/download"
	"github.com/ryanm101/gamemeta/internal/logging"
	"github.com/ryanm101/gamemeta/internal/metadata"
	"github.com/ryanm101/gamemeta/internal/platform"
	"github.com/ryanm101/gamemeta/internal/walk"
)

// Name is the registry name of this source.
const Name = "igdb"

const (
	defaultTokenURL = "https://id.twitch.tv/oauth2/token"
	coverURLFormat  = "https://images.igdb.com/igdb/image/upload/t_cover_big/%s.jpg"
	pageSize        = 50
	idPrefix        = "igdb:"
)

func init() {
	if err := metadata.Register(Name, func(deps metadata.Deps) (metadata.Adapter, error) {
		a, err := New(deps)
		if err != nil {
			return nil, err
		}
		return a, nil
	}); err != nil {
		panic(err)
	}
}

// Adapter queries IGDB. The access token is fetched on first use and
// refreshed when it expires.
type Adapter struct {
	http         *download.Client
	platforms    *platform.Resolver
	limits       walk.Limits
	clientID     string
	clientSecret string
	tokenURL     string
	apiClient    *http.Client

	mu      sync.Mutex
	client  *igdb.Client
	expires time.Time
}

// New builds the adapter. Settings: client_id and client_secret (required),
// token_url, api_url.
func New(deps metadata.Deps) (*Adapter, error) {
	if deps.HTTP == nil {
		return nil, errors.New("igdb: http client is required")
	}
	clientID := deps.Setting("client_id", "")
	clientSecret := deps.Setting("client_secret", "")
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("IGDB Client ID and Secret are required")
	}

	transport := deps.HTTP.Transport(nil)
	if raw := deps.Setting("api_url", ""); raw != "" {
		base, err := url.Parse(raw)
		if err != nil || base.Host == "" {
			return nil, fmt.Errorf("igdb: invalid api_url %q", raw)
		}
		transport = &rewriteTransport{base: base, next: transport}
	}
	apiClient := &http.Client{
		Timeout:   deps.HTTP.Resty().GetClient().Timeout,
		Transport: transport,
	}

	return &Adapter{
		http:         deps.HTTP,
		platforms:    deps.Platforms,
		limits:       walk.Limits{MaxPages: deps.MaxPages, MaxResults: deps.MaxResults},
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     deps.Setting("token_url", defaultTokenURL),
		apiClient:    apiClient,
	}, nil
}

func (a *Adapter) Name() string {
	return Name
}

// SearchByBarcode is not offered by IGDB.
func (a *Adapter) SearchByBarcode(ctx context.Context, code string) ([]metadata.RawSearchResult, error) {
	return nil, metadata.Unsupported(Name, "search barcode")
}

// SearchByQuery runs an IGDB full-text game search.
func (a *Adapter) SearchByQuery(ctx context.Context, text string) ([]metadata.RawSearchResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	client, err := a.api(ctx)
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context, cursor walk.PageCursor) ([]metadata.RawSearchResult, walk.PageCursor, error) {
		if err := ctx.Err(); err != nil {
			return nil, walk.PageCursor{}, err
		}
		games, err := client.Games.Search(
			text,
			igdb.SetFields("id", "name", "first_release_date", "url"),
			igdb.SetLimit(pageSize),
			igdb.SetOffset(cursor.Offset),
		)
		if errors.Is(err, igdb.ErrNoResults) {
			return nil, walk.PageCursor{}, nil
		}
		if err != nil {
			return nil, walk.PageCursor{}, apiError("search query", err)
		}

		results := make([]metadata.RawSearchResult, 0, len(games))
		for _, g := range games {
			results = append(results, metadata.RawSearchResult{
				Name:        g.Name,
				ProviderID:  idPrefix + strconv.Itoa(g.ID),
				URL:         g.URL,
				ReleaseDate: releaseDate(g.FirstReleaseDate),
				Source:      Name,
			})
		}
		return results, walk.PageCursor{Offset: cursor.Offset + len(games), HasMore: len(games) == pageSize}, nil
	}

	results, err := walk.LinearUnique(ctx, fetch, a.limits, func(r metadata.RawSearchResult) string { return r.ProviderID })
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []metadata.RawSearchResult{}
	}
	return results, nil
}

// GetDetails loads a game and resolves its referenced entities.
func (a *Adapter) GetDetails(ctx context.Context, candidate metadata.RawSearchResult) (*metadata.GameDetails, error) {
	id, err := parseID(candidate.ProviderID)
	if err != nil {
		return nil, metadata.BadResponse(Name, "get details", "%v", err)
	}
	client, err := a.api(ctx)
	if err != nil {
		return nil, err
	}

	game, err := client.Games.Get(id, igdb.SetFields("*"))
	if err != nil {
		return nil, apiError("get details", err)
	}

	d := &metadata.GameDetails{
		ID:          idPrefix + strconv.Itoa(game.ID),
		Names:       []string{game.Name},
		ReleaseDate: releaseDate(game.FirstReleaseDate),
		Description: strings.TrimSpace(game.Summary),
		Source:      Name,
	}
	if game.URL != "" {
		d.Links = append(d.Links, metadata.Link{Name: "IGDB", URL: game.URL})
	}

	r := &resolver{ctx: ctx, client: client}
	d.Names = append(d.Names, r.alternativeNames(game.AlternativeNames)...)
	d.Platforms = a.platforms.ResolveAll(r.platforms(game.Platforms))
	d.Genres = r.genres(game.Genres)
	d.Tags = r.themes(game.Themes)
	d.Features = r.gameModes(game.GameModes)
	d.Developers, d.Publishers = r.companies(game.InvolvedCompanies)
	d.Series = r.collection(game.Collection)
	d.CoverURL = r.cover(game.Cover)
	d.Links = append(d.Links, r.websites(game.Websites)...)

	if r.err != nil {
		return nil, apiError("get details", r.err)
	}
	return d, nil
}

// api returns an authenticated client, fetching a new token when the
// current one is missing or expired.
func (a *Adapter) api(ctx context.Context) (*igdb.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil && time.Now().Before(a.expires) {
		return a.client, nil
	}

	token, ttl, err := a.fetchToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate with Twitch: %w", err)
	}
	a.client = igdb.NewClient(a.clientID, token, a.apiClient)
	// Refresh a minute early so in-flight requests never carry a stale token.
	a.expires = time.Now().Add(ttl - time.Minute)
	logging.For("igdb").Debug("fetched access token", "expires_in", ttl)
	return a.client, nil
}

// fetchToken fetches an App Access Token from Twitch.
func (a *Adapter) fetchToken(ctx context.Context) (string, time.Duration, error) {
	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	res, err := a.http.Resty().R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     a.clientID,
			"client_secret": a.clientSecret,
			"grant_type":    "client_credentials",
		}).
		SetResult(&result).
		Post(a.tokenURL)
	if err != nil {
		return "", 0, err
	}
	if res.StatusCode() != http.StatusOK {
		return "", 0, &download.DownloadError{URL: a.tokenURL, Status: res.StatusCode(), Reason: http.StatusText(res.StatusCode())}
	}
	if result.AccessToken == "" {
		return "", 0, errors.New("empty access token")
	}

	ttl := time.Duration(result.ExpiresIn) * time.Second
	if ttl <= time.Minute {
		ttl = 2 * time.Minute
	}
	return result.AccessToken, ttl, nil
}

// apiError passes network failures through as *download.DownloadError and
// reports anything else as a ProviderError.
func apiError(op string, err error) error {
	var de *download.DownloadError
	if errors.As(err, &de) {
		return err
	}
	return &metadata.ProviderError{Provider: Name, Op: op, Err: err}
}

func parseID(providerID string) (int, error) {
	raw, ok := strings.CutPrefix(providerID, idPrefix)
	if !ok {
		return 0, fmt.Errorf("invalid IGDB ID: %s", providerID)
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid numeric ID: %s", raw)
	}
	return id, nil
}

func releaseDate(unix int) *metadata.ReleaseDate {
	if unix == 0 {
		return nil
	}
	return metadata.ReleaseDateFromTime(time.Unix(int64(unix), 0).UTC())
}

// rewriteTransport sends API requests to an alternate endpoint, keeping
// the final path segment (the IGDB resource name).
type rewriteTransport struct {
	base *url.URL
	next http.RoundTripper
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = t.base.Scheme
	r.URL.Host = t.base.Host
	r.URL.Path = strings.TrimRight(t.base.Path, "/") + "/" + path.Base(req.URL.Path)
	r.Host = t.base.Host
	return t.next.RoundTrip(r)
}
