// Package catalog provides the product catalog and fuzzy product-name
// resolution used to detect which products a query refers to.
package catalog

import "context"

// Product is a catalog entry. Immutable once loaded.
type Product struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

// Source fetches the product catalog from an external system.
type Source interface {
	FetchProducts(ctx context.Context) ([]Product, error)
}

// MatchType describes how a resolver match was found.
type MatchType string

const (
	// MatchExact is a full-string match after normalization.
	MatchExact MatchType = "exact"
	// MatchAlias is an alias containment match.
	MatchAlias MatchType = "alias"
	// MatchFuzzy is an edit-distance or token-overlap match.
	MatchFuzzy MatchType = "fuzzy"
)

// Match is a scored resolver result.
type Match struct {
	Product   Product
	Score     float64
	MatchType MatchType
}
