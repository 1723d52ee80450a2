package wiki

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ryanm101/gamemeta/internal/metadata"
)

var (
	// footnoteRe matches reference markers such as "[1]" or "[a]".
	footnoteRe = regexp.MustCompile(`\[[^\]]{1,3}\]`)
	// regionPrefixRe matches a leading region code like "NA:" or "JP: ".
	regionPrefixRe = regexp.MustCompile(`^([A-Z]{2,4})\s*:\s*`)
)

// parseInfobox reads the label/value rows of the first infobox table.
func (a *Adapter) parseInfobox(html string) (*metadata.GameDetails, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &metadata.ProviderError{Provider: Name, Op: "parse infobox", Err: err}
	}

	d := &metadata.GameDetails{}
	box := doc.Find("table.infobox").First()
	if box.Length() == 0 {
		return d, nil
	}

	if src, ok := box.Find("img").First().Attr("src"); ok {
		if strings.HasPrefix(src, "//") {
			src = a.api.Scheme + ":" + src
		}
		d.CoverURL = src
	}

	box.Find("tr").Each(func(_ int, row *goquery.Selection) {
		label := strings.ToLower(cleanText(row.Find("th").First().Text()))
		data := row.Find("td").First()
		if label == "" || data.Length() == 0 {
			return
		}
		values := cellValues(data)

		switch {
		case strings.HasPrefix(label, "developer"):
			d.Developers = append(d.Developers, values...)
		case strings.HasPrefix(label, "publisher"):
			d.Publishers = append(d.Publishers, values...)
		case strings.HasPrefix(label, "platform"):
			for _, v := range values {
				d.Platforms = append(d.Platforms, a.platforms.ResolveList(v, a.delimiter)...)
			}
		case strings.HasPrefix(label, "genre"):
			d.Genres = append(d.Genres, values...)
		case strings.HasPrefix(label, "mode"):
			d.Features = append(d.Features, values...)
		case label == "series":
			d.Series = append(d.Series, values...)
		case strings.HasPrefix(label, "release"):
			for _, v := range values {
				if m := regionPrefixRe.FindStringSubmatch(v); m != nil {
					d.Regions = append(d.Regions, m[1])
					v = v[len(m[0]):]
				}
				if d.ReleaseDate == nil {
					if rd, err := metadata.ParseReleaseDate(v); err == nil {
						d.ReleaseDate = rd
					}
				}
			}
		}
	})
	return d, nil
}

// cellValues splits an infobox cell into its list items, or its
// line-broken parts when it has no list.
func cellValues(cell *goquery.Selection) []string {
	cell.Find("sup, style, .noprint").Remove()

	var values []string
	add := func(s string) {
		s = cleanText(footnoteRe.ReplaceAllString(s, ""))
		if s != "" {
			values = append(values, s)
		}
	}

	if items := cell.Find("li"); items.Length() > 0 {
		items.Each(func(_ int, li *goquery.Selection) { add(li.Text()) })
		return values
	}

	cell.Find("br").ReplaceWithHtml("\n")
	for _, line := range strings.Split(cell.Text(), "\n") {
		add(line)
	}
	return values
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
