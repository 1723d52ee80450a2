// Package walk drives paginated provider listings and category hierarchies
// to completion with hard caps on pages and results.
package walk

import (
	"context"
	"errors"
	"fmt"

	"github.com/ryanm101/gamemeta/internal/logging"
	"github.com/ryanm101/gamemeta/internal/metrics"
)

const (
	DefaultMaxPages   = 50
	DefaultMaxResults = 5000
)

// ErrWalkAborted is matched by every *WalkAbortedError.
var ErrWalkAborted = errors.New("walk aborted")

// WalkAbortedError reports a walk stopped by context cancellation. Partial
// results are discarded.
type WalkAbortedError struct {
	Op    string // "linear" or "categories"
	Pages int    // pages fetched before the abort
	Err   error  // context error
}

func (e *WalkAbortedError) Error() string {
	return fmt.Sprintf("%s walk aborted after %d pages: %v", e.Op, e.Pages, e.Err)
}

func (e *WalkAbortedError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrWalkAborted) succeed.
func (e *WalkAbortedError) Is(target error) bool {
	return target == ErrWalkAborted
}

// PageCursor tracks the position of a walk. Fetch functions read the field
// their provider uses (Offset or Token) and return the cursor for the next
// page with HasMore set.
type PageCursor struct {
	Offset  int
	Token   string
	Page    int
	Total   int
	HasMore bool
}

// PageFunc fetches the page at cursor and returns its items plus the cursor
// for the following page.
type PageFunc[T any] func(ctx context.Context, cursor PageCursor) ([]T, PageCursor, error)

// Limits caps a walk. Zero values mean the defaults.
type Limits struct {
	MaxPages   int
	MaxResults int
}

// DefaultLimits returns the default caps.
func DefaultLimits() Limits {
	return Limits{MaxPages: DefaultMaxPages, MaxResults: DefaultMaxResults}
}

func (l Limits) withDefaults() Limits {
	if l.MaxPages <= 0 {
		l.MaxPages = DefaultMaxPages
	}
	if l.MaxResults <= 0 {
		l.MaxResults = DefaultMaxResults
	}
	return l
}

// Linear fetches pages until the provider reports no more, or a cap is hit.
// Hitting a cap truncates the result and is not an error.
func Linear[T any](ctx context.Context, fetch PageFunc[T], limits Limits) ([]T, error) {
	return LinearUnique(ctx, fetch, limits, nil)
}

// LinearUnique is Linear with duplicate items, as identified by key,
// dropped. A nil key keeps every item.
func LinearUnique[T any](ctx context.Context, fetch PageFunc[T], limits Limits, key func(T) string) ([]T, error) {
	items, _, err := linear(ctx, "linear", fetch, limits, key)
	return items, err
}

func linear[T any](ctx context.Context, kind string, fetch PageFunc[T], limits Limits, key func(T) string) ([]T, int, error) {
	limits = limits.withDefaults()
	log := logging.For("walk")

	var (
		out    []T
		seen   map[string]struct{}
		cursor PageCursor
		pages  int
	)
	if key != nil {
		seen = make(map[string]struct{})
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, pages, &WalkAbortedError{Op: kind, Pages: pages, Err: err}
		}
		if pages >= limits.MaxPages {
			log.Warn("page cap reached, truncating", "kind", kind, "pages", pages, "results", len(out))
			break
		}

		batch, next, err := fetch(ctx, cursor)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, pages, &WalkAbortedError{Op: kind, Pages: pages, Err: ctxErr}
			}
			return nil, pages, err
		}
		pages++
		metrics.PagesFetched.WithLabelValues(kind).Inc()

		for _, item := range batch {
			if seen != nil {
				k := key(item)
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
			}
			out = append(out, item)
		}

		if len(out) >= limits.MaxResults {
			if len(out) > limits.MaxResults || next.HasMore {
				log.Warn("result cap reached, truncating", "kind", kind, "pages", pages, "results", limits.MaxResults)
			}
			out = out[:limits.MaxResults]
			break
		}
		if !next.HasMore {
			break
		}

		next.Page = cursor.Page + 1
		cursor = next
	}

	log.Debug("walk finished", "kind", kind, "pages", pages, "results", len(out))
	return out, pages, nil
}
