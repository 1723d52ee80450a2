// Package wiki reads game metadata from a MediaWiki site: title search,
// article infoboxes and category listings.
package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ryanm101/gamemeta/internal/download"
	"github.com/ryanm101/gamemeta/internal/metadata"
	"github.com/ryanm101/gamemeta/internal/platform"
	"github.com/ryanm101/gamemeta/internal/walk"
)

// Name is the registry name of this source.
const Name = "wiki"

const (
	defaultAPIURL = "https://en.wikipedia.org/w/api.php"
	searchLimit   = 50
	memberLimit   = 500

	namespaceArticle  = 0
	namespaceCategory = 14
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

// Adapter talks to the MediaWiki action API. It also implements
// metadata.CategorySource.
type Adapter struct {
	http      *download.Client
	api       *url.URL
	platforms *platform.Resolver
	delimiter string
	limits    walk.Limits
	retry     download.RetryPolicy
}

var _ metadata.CategorySource = (*Adapter)(nil)

// New builds the adapter. Settings: api_url, platform_delimiter.
func New(deps metadata.Deps) (*Adapter, error) {
	if deps.HTTP == nil {
		return nil, errors.New("wiki: http client is required")
	}
	raw := deps.Setting("api_url", defaultAPIURL)
	api, err := url.Parse(raw)
	if err != nil || api.Host == "" {
		return nil, fmt.Errorf("wiki: invalid api_url %q", raw)
	}
	return &Adapter{
		http:      deps.HTTP,
		api:       api,
		platforms: deps.Platforms,
		delimiter: deps.Setting("platform_delimiter", ";"),
		limits:    walk.Limits{MaxPages: deps.MaxPages, MaxResults: deps.MaxResults},
		retry:     download.DefaultRetryPolicy(),
	}, nil
}

func (a *Adapter) Name() string {
	return Name
}

// SearchByBarcode is not offered by MediaWiki.
func (a *Adapter) SearchByBarcode(ctx context.Context, code string) ([]metadata.RawSearchResult, error) {
	return nil, metadata.Unsupported(Name, "search barcode")
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type searchResponse struct {
	Error    *apiError `json:"error"`
	Continue struct {
		SROffset *int `json:"sroffset"`
	} `json:"continue"`
	Query struct {
		Search []struct {
			Title  string `json:"title"`
			PageID int    `json:"pageid"`
		} `json:"search"`
	} `json:"query"`
}

// SearchByQuery runs a full-text article search, paging by offset.
func (a *Adapter) SearchByQuery(ctx context.Context, text string) ([]metadata.RawSearchResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	fetch := func(ctx context.Context, cursor walk.PageCursor) ([]metadata.RawSearchResult, walk.PageCursor, error) {
		q := url.Values{}
		q.Set("action", "query")
		q.Set("list", "search")
		q.Set("srsearch", text)
		q.Set("srlimit", strconv.Itoa(searchLimit))
		q.Set("sroffset", strconv.Itoa(cursor.Offset))

		var resp searchResponse
		if err := a.call(ctx, q, &resp, "search query"); err != nil {
			return nil, walk.PageCursor{}, err
		}
		if resp.Error != nil {
			return nil, walk.PageCursor{}, metadata.BadResponse(Name, "search query", "%s: %s", resp.Error.Code, resp.Error.Info)
		}

		results := make([]metadata.RawSearchResult, 0, len(resp.Query.Search))
		for _, hit := range resp.Query.Search {
			results = append(results, metadata.RawSearchResult{
				Name:       hit.Title,
				ProviderID: strconv.Itoa(hit.PageID),
				URL:        a.articleURL(hit.Title),
				Source:     Name,
			})
		}

		next := walk.PageCursor{}
		if resp.Continue.SROffset != nil {
			next.Offset = *resp.Continue.SROffset
			next.HasMore = true
		}
		return results, next, nil
	}

	results, err := walk.LinearUnique(ctx, fetch, a.limits, func(r metadata.RawSearchResult) string {
		return walk.TitleKey(r.Name)
	})
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []metadata.RawSearchResult{}
	}
	return results, nil
}

type membersResponse struct {
	Error    *apiError `json:"error"`
	Continue struct {
		CMContinue string `json:"cmcontinue"`
	} `json:"continue"`
	Query struct {
		CategoryMembers []struct {
			NS    int    `json:"ns"`
			Title string `json:"title"`
		} `json:"categorymembers"`
	} `json:"query"`
}

// CategoryMembers lists one page of a category's articles and
// subcategories. token is the cmcontinue value of the previous page.
func (a *Adapter) CategoryMembers(ctx context.Context, category, token string) (metadata.CategoryPage, error) {
	title := strings.TrimSpace(category)
	if !strings.HasPrefix(strings.ToLower(title), "category:") {
		title = "Category:" + title
	}

	q := url.Values{}
	q.Set("action", "query")
	q.Set("list", "categorymembers")
	q.Set("cmtitle", title)
	q.Set("cmtype", "page|subcat")
	q.Set("cmlimit", strconv.Itoa(memberLimit))
	if token != "" {
		q.Set("cmcontinue", token)
	}

	var resp membersResponse
	if err := a.call(ctx, q, &resp, "category members"); err != nil {
		return metadata.CategoryPage{}, err
	}
	if resp.Error != nil {
		return metadata.CategoryPage{}, metadata.BadResponse(Name, "category members", "%s: %s", resp.Error.Code, resp.Error.Info)
	}

	page := metadata.CategoryPage{Next: resp.Continue.CMContinue}
	for _, m := range resp.Query.CategoryMembers {
		switch m.NS {
		case namespaceArticle:
			page.Articles = append(page.Articles, m.Title)
		case namespaceCategory:
			page.Subcategories = append(page.Subcategories, m.Title)
		}
	}
	return page, nil
}

type parseResponse struct {
	Error *apiError `json:"error"`
	Parse struct {
		Title  string `json:"title"`
		PageID int    `json:"pageid"`
		Text   string `json:"text"`
	} `json:"parse"`
}

// GetDetails reads the article's infobox.
func (a *Adapter) GetDetails(ctx context.Context, candidate metadata.RawSearchResult) (*metadata.GameDetails, error) {
	title := candidate.Name
	if title == "" {
		return nil, metadata.BadResponse(Name, "get details", "candidate has no title")
	}

	q := url.Values{}
	q.Set("action", "parse")
	q.Set("page", title)
	q.Set("prop", "text")
	q.Set("redirects", "1")

	var resp parseResponse
	if err := a.call(ctx, q, &resp, "get details"); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, metadata.BadResponse(Name, "get details", "%s: %s", resp.Error.Code, resp.Error.Info)
	}
	if resp.Parse.Title == "" {
		return nil, metadata.BadResponse(Name, "get details", "no parse result for %q", title)
	}

	d, err := a.parseInfobox(resp.Parse.Text)
	if err != nil {
		return nil, err
	}
	d.ID = strconv.Itoa(resp.Parse.PageID)
	d.Names = append([]string{resp.Parse.Title}, d.Names...)
	d.Links = append(d.Links, metadata.Link{Name: "Wikipedia", URL: a.articleURL(resp.Parse.Title)})
	d.Source = Name
	return d, nil
}

// call issues an API request with the common parameters and decodes the
// JSON response into out.
func (a *Adapter) call(ctx context.Context, q url.Values, out any, op string) error {
	q.Set("format", "json")
	q.Set("formatversion", "2")

	u := *a.api
	u.RawQuery = q.Encode()

	res, err := a.http.FetchRetry(ctx, u.String(), a.retry)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return &metadata.ProviderError{Provider: Name, Op: op, Err: fmt.Errorf("%w: %v", metadata.ErrBadResponse, err)}
	}
	return nil
}

// articleURL builds the /wiki/ URL of title on the API's host.
func (a *Adapter) articleURL(title string) string {
	u := url.URL{
		Scheme: a.api.Scheme,
		Host:   a.api.Host,
		Path:   "/wiki/" + strings.ReplaceAll(title, " ", "_"),
	}
	return u.String()
}
