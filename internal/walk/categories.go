package walk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ryanm101/gamemeta/internal/logging"
	"github.com/ryanm101/gamemeta/internal/metadata"
)

// CategoryOptions configures Categories.
type CategoryOptions struct {
	// MaxDepth limits how many subcategory levels below the root are
	// visited. Zero means unlimited.
	MaxDepth int
	// Limits applies to each category's member listing and to the union of
	// article titles.
	Limits Limits
}

// CategoryKey canonicalizes a category title so different spellings of the
// same category share one visited entry.
func CategoryKey(name string) string {
	key := TitleKey(name)
	if rest, ok := strings.CutPrefix(key, "category:"); ok {
		key = strings.TrimSpace(rest)
	}
	return key
}

// TitleKey canonicalizes an article title: case-folded, underscores read
// as spaces and whitespace collapsed.
func TitleKey(title string) string {
	title = strings.ReplaceAll(title, "_", " ")
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

type member struct {
	title  string
	subcat bool
}

// Categories walks the category tree under root breadth-first and returns
// the de-duplicated article titles in first-seen order. Each category is
// visited at most once, so cycles terminate.
func Categories(ctx context.Context, source metadata.CategorySource, root string, opts CategoryOptions) ([]string, error) {
	limits := opts.Limits.withDefaults()
	log := logging.For("walk")

	type entry struct {
		name  string
		depth int
	}

	queue := []entry{{name: root}}
	visited := map[string]struct{}{CategoryKey(root): {}}
	seenTitles := make(map[string]struct{})
	var titles []string
	pages := 0

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, &WalkAbortedError{Op: "categories", Pages: pages, Err: err}
		}

		cur := queue[0]
		queue = queue[1:]

		fetch := func(ctx context.Context, cursor PageCursor) ([]member, PageCursor, error) {
			page, err := source.CategoryMembers(ctx, cur.name, cursor.Token)
			if err != nil {
				return nil, cursor, err
			}
			members := make([]member, 0, len(page.Articles)+len(page.Subcategories))
			for _, a := range page.Articles {
				members = append(members, member{title: a})
			}
			for _, s := range page.Subcategories {
				members = append(members, member{title: s, subcat: true})
			}
			return members, PageCursor{Token: page.Next, HasMore: page.Next != ""}, nil
		}

		members, n, err := linear(ctx, "category", fetch, limits, nil)
		pages += n
		if err != nil {
			var aborted *WalkAbortedError
			if errors.As(err, &aborted) {
				aborted.Op = "categories"
				aborted.Pages = pages
				return nil, aborted
			}
			return nil, fmt.Errorf("category %q: %w", cur.name, err)
		}

		for _, m := range members {
			if m.subcat {
				if opts.MaxDepth > 0 && cur.depth+1 > opts.MaxDepth {
					continue
				}
				key := CategoryKey(m.title)
				if _, done := visited[key]; done {
					continue
				}
				visited[key] = struct{}{}
				queue = append(queue, entry{name: m.title, depth: cur.depth + 1})
				continue
			}

			key := TitleKey(m.title)
			if key == "" {
				continue
			}
			if _, dup := seenTitles[key]; dup {
				continue
			}
			seenTitles[key] = struct{}{}
			titles = append(titles, m.title)
		}

		if len(titles) >= limits.MaxResults {
			log.Warn("result cap reached, stopping category walk", "root", root, "results", limits.MaxResults)
			titles = titles[:limits.MaxResults]
			break
		}
	}

	log.Debug("category walk finished", "root", root, "categories", len(visited), "pages", pages, "titles", len(titles))
	return titles, nil
}
