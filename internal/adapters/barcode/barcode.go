// Package barcode scrapes an HTML product lookup site for game releases by
// UPC/EAN barcode or title.
package barcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ryanm101/gamemeta/internal/download"
	"github.com/ryanm101/gamemeta/internal/metadata"
	"github.com/ryanm101/gamemeta/internal/platform"
	"github.com/ryanm101/gamemeta/internal/walk"
)

// Name is the registry name of this source.
const Name = "barcode"

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

// Adapter is the barcode lookup scraper.
type Adapter struct {
	http      *download.Client
	base      *url.URL
	platforms *platform.Resolver
	limits    walk.Limits
	retry     download.RetryPolicy
}

// New builds the adapter. Settings: base_url (required), max_tries,
// retry_interval.
func New(deps metadata.Deps) (*Adapter, error) {
	if deps.HTTP == nil {
		return nil, errors.New("barcode: http client is required")
	}
	raw := deps.Setting("base_url", "")
	if raw == "" {
		return nil, errors.New("barcode: base_url is required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("barcode: invalid base_url %q", raw)
	}

	retry := download.DefaultRetryPolicy()
	if v := deps.Setting("max_tries", ""); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("barcode: invalid max_tries %q: %w", v, err)
		}
		retry.MaxTries = uint(n)
	}
	if v := deps.Setting("retry_interval", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("barcode: invalid retry_interval %q: %w", v, err)
		}
		retry.InitialInterval = d
		retry.MaxInterval = 4 * d
	}

	return &Adapter{
		http:      deps.HTTP,
		base:      base,
		platforms: deps.Platforms,
		limits:    walk.Limits{MaxPages: deps.MaxPages, MaxResults: deps.MaxResults},
		retry:     retry,
	}, nil
}

func (a *Adapter) Name() string {
	return Name
}

// SearchByBarcode looks up a single product code.
func (a *Adapter) SearchByBarcode(ctx context.Context, code string) ([]metadata.RawSearchResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	doc, err := a.document(ctx, a.base.String()+"/barcode/"+url.PathEscape(code))
	if err != nil {
		if download.IsNotFound(err) {
			return []metadata.RawSearchResult{}, nil
		}
		return nil, err
	}
	results, _, err := a.parseResults(doc, "search barcode")
	return results, err
}

// SearchByQuery runs a title search, following "next" links until the
// listing ends or a walk cap is hit.
func (a *Adapter) SearchByQuery(ctx context.Context, text string) ([]metadata.RawSearchResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	fetch := func(ctx context.Context, cursor walk.PageCursor) ([]metadata.RawSearchResult, walk.PageCursor, error) {
		q := url.Values{}
		q.Set("q", text)
		if cursor.Page > 0 {
			q.Set("page", strconv.Itoa(cursor.Page+1))
		}
		doc, err := a.document(ctx, a.base.String()+"/search?"+q.Encode())
		if err != nil {
			if download.IsNotFound(err) {
				return nil, walk.PageCursor{}, nil
			}
			return nil, walk.PageCursor{}, err
		}
		results, more, err := a.parseResults(doc, "search query")
		if err != nil {
			return nil, walk.PageCursor{}, err
		}
		return results, walk.PageCursor{HasMore: more}, nil
	}

	results, err := walk.LinearUnique(ctx, fetch, a.limits, func(r metadata.RawSearchResult) string {
		if r.ProviderID != "" {
			return r.ProviderID
		}
		return r.URL
	})
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []metadata.RawSearchResult{}
	}
	return results, nil
}

// GetDetails fetches and parses a product page.
func (a *Adapter) GetDetails(ctx context.Context, candidate metadata.RawSearchResult) (*metadata.GameDetails, error) {
	if candidate.URL == "" {
		return nil, metadata.BadResponse(Name, "get details", "candidate %q has no url", candidate.Name)
	}
	doc, err := a.document(ctx, candidate.URL)
	if err != nil {
		return nil, err
	}
	return a.parseDetails(doc, candidate)
}

func (a *Adapter) document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	res, err := a.http.FetchRetry(ctx, rawURL, a.retry)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body))
	if err != nil {
		return nil, &metadata.ProviderError{Provider: Name, Op: "parse html", Err: err}
	}
	doc.Url, _ = url.Parse(res.URL)
	return doc, nil
}

// parseResults reads the product blocks of a listing page and reports
// whether a next page exists.
func (a *Adapter) parseResults(doc *goquery.Document, op string) ([]metadata.RawSearchResult, bool, error) {
	if doc.Find(".no-results").Length() > 0 {
		return []metadata.RawSearchResult{}, false, nil
	}
	container := doc.Find(".results")
	if container.Length() == 0 {
		return nil, false, metadata.BadResponse(Name, op, "page has no results container")
	}

	results := []metadata.RawSearchResult{}
	container.Find(".product").Each(func(_ int, s *goquery.Selection) {
		name := cleanText(s.Find(".product-name").First().Text())
		if name == "" {
			return
		}

		r := metadata.RawSearchResult{
			Name:       name,
			ProviderID: strings.TrimSpace(s.AttrOr("data-id", "")),
			Source:     Name,
		}
		if href, ok := s.Find("a.product-link").First().Attr("href"); ok {
			r.URL = resolve(doc, href)
		}
		if r.ProviderID == "" {
			r.ProviderID = r.URL
		}
		s.Find(".product-alt").Each(func(_ int, alt *goquery.Selection) {
			if n := cleanText(alt.Text()); n != "" {
				r.AlternateNames = append(r.AlternateNames, n)
			}
		})
		s.Find(".product-platform").Each(func(_ int, p *goquery.Selection) {
			if label := cleanText(p.Text()); label != "" {
				r.Platforms = append(r.Platforms, label)
			}
		})
		if rd, err := metadata.ParseReleaseDate(s.Find(".product-release").First().Text()); err == nil {
			r.ReleaseDate = rd
		}
		results = append(results, r)
	})

	more := doc.Find("a.next").Length() > 0
	return results, more, nil
}

func (a *Adapter) parseDetails(doc *goquery.Document, candidate metadata.RawSearchResult) (*metadata.GameDetails, error) {
	details := doc.Find(".details").First()
	if details.Length() == 0 {
		return nil, metadata.BadResponse(Name, "get details", "page has no details container")
	}

	title := cleanText(details.Find(".title").First().Text())
	if title == "" {
		title = candidate.Name
	}

	d := &metadata.GameDetails{
		ID:          candidate.ProviderID,
		Names:       append([]string{title}, listItems(details, ".alt-names")...),
		Platforms:   a.platforms.ResolveAll(listItems(details, ".platforms")),
		Regions:     listItems(details, ".regions"),
		Developers:  listItems(details, ".developers"),
		Publishers:  listItems(details, ".publishers"),
		Genres:      listItems(details, ".genres"),
		Tags:        listItems(details, ".tags"),
		Features:    listItems(details, ".features"),
		Series:      listItems(details, ".series"),
		Description: cleanText(details.Find(".description").First().Text()),
		Source:      Name,
	}
	if len(d.Platforms) == 0 {
		d.Platforms = a.platforms.ResolveAll(candidate.Platforms)
	}
	if rd, err := metadata.ParseReleaseDate(details.Find(".release-date").First().Text()); err == nil {
		d.ReleaseDate = rd
	} else {
		d.ReleaseDate = candidate.ReleaseDate
	}
	if src, ok := details.Find("img.cover").First().Attr("src"); ok {
		d.CoverURL = resolve(doc, src)
	}
	details.Find(".links a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		d.Links = append(d.Links, metadata.Link{Name: cleanText(s.Text()), URL: resolve(doc, href)})
	})
	return d, nil
}

// listItems returns the trimmed non-empty <li> texts under selector.
func listItems(s *goquery.Selection, selector string) []string {
	var out []string
	s.Find(selector).Find("li").Each(func(_ int, li *goquery.Selection) {
		if t := cleanText(li.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

func resolve(doc *goquery.Document, href string) string {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil || doc.Url == nil {
		return href
	}
	return doc.Url.ResolveReference(ref).String()
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
