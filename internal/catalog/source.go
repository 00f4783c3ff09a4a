package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSource fetches the product catalog from an HTTP endpoint returning
// a JSON array of products.
type HTTPSource struct {
	url        string
	httpClient *http.Client
}

// NewHTTPSource creates an HTTP catalog source.
func NewHTTPSource(url string) (*HTTPSource, error) {
	if url == "" {
		return nil, fmt.Errorf("catalog URL is required")
	}
	return &HTTPSource{
		url: url,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

// FetchProducts retrieves the catalog.
func (s *HTTPSource) FetchProducts(ctx context.Context) ([]Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var products []Product
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return products, nil
}

// StaticSource serves a fixed product list. Useful for tests and for
// deployments that ship the catalog as configuration.
type StaticSource struct {
	products []Product
}

// NewStaticSource creates a source returning the given products.
func NewStaticSource(products []Product) *StaticSource {
	return &StaticSource{products: products}
}

// FetchProducts returns the fixed product list.
func (s *StaticSource) FetchProducts(_ context.Context) ([]Product, error) {
	return s.products, nil
}
