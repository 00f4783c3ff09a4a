package retriever

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/answerforge/answerd/internal/expander"
	"github.com/answerforge/answerd/internal/vectorstore"
)

// catalogChunksPerProduct caps depth per product in catalog mode so the
// result set spans the whole catalog instead of piling onto the
// top-scoring product.
const catalogChunksPerProduct = 3

// retrieveCatalog searches without a product filter and then caps the
// merged results per product named in chunk metadata.
func (r *Retriever) retrieveCatalog(ctx context.Context, plan expander.Expanded, limit int, scoreThreshold float64) ([]SearchResult, error) {
	perQuery, err := r.searchAll(ctx, plan.SearchQueries, limit, scoreThreshold, nil)
	if err != nil {
		return nil, err
	}

	merged := mergeFirstSeen(perQuery)
	perProduct := make(map[string]int)
	kept := merged[:0]
	for _, result := range merged {
		product, _ := result.Metadata[metaProductName].(string)
		if perProduct[product] >= catalogChunksPerProduct {
			continue
		}
		perProduct[product]++
		kept = append(kept, result)
	}
	return kept, nil
}

// retrieveComparison partitions the queries by the product named in
// their text, searches each partition concurrently with that product as
// a hard filter and merges with the standard first-seen rule.
func (r *Retriever) retrieveComparison(ctx context.Context, plan expander.Expanded, limit int, scoreThreshold float64) ([]SearchResult, error) {
	partitions := partitionByProduct(plan.SearchQueries, plan.ComparisonProducts)

	perProduct := make([][][]vectorstore.Hit, len(partitions))
	g, ctx := errgroup.WithContext(ctx)
	for i, part := range partitions {
		if len(part.queries) == 0 {
			continue
		}
		g.Go(func() error {
			filter := map[string]any{metaProductName: part.product}
			hits, err := r.searchAll(ctx, part.queries, limit, scoreThreshold, filter)
			if err != nil {
				return err
			}
			perProduct[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var flattened [][]vectorstore.Hit
	for _, hits := range perProduct {
		flattened = append(flattened, hits...)
	}
	return mergeFirstSeen(flattened), nil
}

type partition struct {
	product string
	queries []string
}

// partitionByProduct assigns each query to the product its text names.
// Longer product names are checked first so a short name's substring
// cannot capture a longer variant's query ("Insoles" must not claim an
// "Insoles Pro" query). Queries naming no product go to the first
// product rather than being dropped.
func partitionByProduct(queries, products []string) []partition {
	if len(products) == 0 {
		return nil
	}
	byLength := make([]string, len(products))
	copy(byLength, products)
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i]) > len(byLength[j])
	})

	index := make(map[string]int, len(products))
	partitions := make([]partition, len(products))
	for i, product := range products {
		index[product] = i
		partitions[i] = partition{product: product}
	}

	for _, query := range queries {
		lower := strings.ToLower(query)
		assigned := 0
		for _, product := range byLength {
			if strings.Contains(lower, strings.ToLower(product)) {
				assigned = index[product]
				break
			}
		}
		partitions[assigned].queries = append(partitions[assigned].queries, query)
	}
	return partitions
}
