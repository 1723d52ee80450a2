package igdb

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/Henry-Sarabia/igdb/v2"

	"github.com/ryanm101/gamemeta/internal/metadata"
)

// resolver expands the numeric references of a game into names. The first
// error stops further lookups and is kept in err.
type resolver struct {
	ctx    context.Context
	client *igdb.Client
	err    error
}

// ok reports whether another lookup should run, recording context
// cancellation.
func (r *resolver) ok(ids ...int) bool {
	if r.err != nil {
		return false
	}
	if err := r.ctx.Err(); err != nil {
		r.err = err
		return false
	}
	for _, id := range ids {
		if id > 0 {
			return true
		}
	}
	return false
}

// check keeps err unless it only means the lookup matched nothing.
func (r *resolver) check(what string, err error) bool {
	if err == nil {
		return true
	}
	if !errors.Is(err, igdb.ErrNoResults) {
		r.err = fmt.Errorf("%s: %w", what, err)
	}
	return false
}

func (r *resolver) alternativeNames(ids []int) []string {
	if !r.ok(ids...) {
		return nil
	}
	names, err := r.client.AlternativeNames.List(ids, igdb.SetFields("name"))
	if !r.check("alternative names", err) {
		return nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, n.Name)
	}
	return out
}

func (r *resolver) platforms(ids []int) []string {
	if !r.ok(ids...) {
		return nil
	}
	platforms, err := r.client.Platforms.List(ids, igdb.SetFields("name"))
	if !r.check("platforms", err) {
		return nil
	}
	out := make([]string, 0, len(platforms))
	for _, p := range platforms {
		out = append(out, p.Name)
	}
	return out
}

func (r *resolver) genres(ids []int) []string {
	if !r.ok(ids...) {
		return nil
	}
	genres, err := r.client.Genres.List(ids, igdb.SetFields("name"))
	if !r.check("genres", err) {
		return nil
	}
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		out = append(out, g.Name)
	}
	return out
}

func (r *resolver) themes(ids []int) []string {
	if !r.ok(ids...) {
		return nil
	}
	themes, err := r.client.Themes.List(ids, igdb.SetFields("name"))
	if !r.check("themes", err) {
		return nil
	}
	out := make([]string, 0, len(themes))
	for _, t := range themes {
		out = append(out, t.Name)
	}
	return out
}

func (r *resolver) gameModes(ids []int) []string {
	if !r.ok(ids...) {
		return nil
	}
	modes, err := r.client.GameModes.List(ids, igdb.SetFields("name"))
	if !r.check("game modes", err) {
		return nil
	}
	out := make([]string, 0, len(modes))
	for _, m := range modes {
		out = append(out, m.Name)
	}
	return out
}

func (r *resolver) collection(id int) []string {
	if !r.ok(id) {
		return nil
	}
	c, err := r.client.Collections.Get(id, igdb.SetFields("name"))
	if !r.check("collection", err) {
		return nil
	}
	return []string{c.Name}
}

// companies splits the involved companies into developers and publishers,
// keeping the order IGDB lists them in.
func (r *resolver) companies(ids []int) (developers, publishers []string) {
	if !r.ok(ids...) {
		return nil, nil
	}
	involved, err := r.client.InvolvedCompanies.List(ids, igdb.SetFields("company", "developer", "publisher"))
	if !r.check("involved companies", err) {
		return nil, nil
	}

	companyIDs := make([]int, 0, len(involved))
	for _, ic := range involved {
		companyIDs = append(companyIDs, ic.Company)
	}
	if !r.ok(companyIDs...) {
		return nil, nil
	}
	companies, err := r.client.Companies.List(companyIDs, igdb.SetFields("name"))
	if !r.check("companies", err) {
		return nil, nil
	}
	names := make(map[int]string, len(companies))
	for _, c := range companies {
		names[c.ID] = c.Name
	}

	for _, ic := range involved {
		name := names[ic.Company]
		if name == "" {
			continue
		}
		if ic.Developer {
			developers = append(developers, name)
		}
		if ic.Publisher {
			publishers = append(publishers, name)
		}
	}
	return developers, publishers
}

func (r *resolver) cover(id int) string {
	if !r.ok(id) {
		return ""
	}
	c, err := r.client.Covers.Get(id, igdb.SetFields("image_id"))
	if !r.check("cover", err) || c.ImageID == "" {
		return ""
	}
	return fmt.Sprintf(coverURLFormat, c.ImageID)
}

func (r *resolver) websites(ids []int) []metadata.Link {
	if !r.ok(ids...) {
		return nil
	}
	sites, err := r.client.Websites.List(ids, igdb.SetFields("url"))
	if !r.check("websites", err) {
		return nil
	}
	var links []metadata.Link
	for _, w := range sites {
		if w.URL == "" {
			continue
		}
		name := w.URL
		if u, err := url.Parse(w.URL); err == nil && u.Host != "" {
			name = u.Host
		}
		links = append(links, metadata.Link{Name: name, URL: w.URL})
	}
	return links
}
