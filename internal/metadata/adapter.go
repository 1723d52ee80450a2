package metadata

import "context"

// Adapter is a metadata source. A search with no candidates returns an empty
// slice and a nil error. Implementations must be safe for concurrent use.
type Adapter interface {
	// Name returns the source name, e.g. "igdb".
	Name() string
	// SearchByBarcode looks up a product barcode (UPC/EAN).
	SearchByBarcode(ctx context.Context, code string) ([]RawSearchResult, error)
	// SearchByQuery runs a free-text title search.
	SearchByQuery(ctx context.Context, text string) ([]RawSearchResult, error)
	// GetDetails fetches the full metadata for a candidate.
	GetDetails(ctx context.Context, candidate RawSearchResult) (*GameDetails, error)
}

// CategoryPage is one page of a category listing.
type CategoryPage struct {
	Articles      []string
	Subcategories []string
	// Next is the continuation token; empty when the listing is exhausted.
	Next string
}

// CategorySource is implemented by adapters that expose hierarchical
// category listings.
type CategorySource interface {
	CategoryMembers(ctx context.Context, category, token string) (CategoryPage, error)
}
