package pipeline

// Options tune one query. Nil booleans take the server default (true),
// so an explicit false from the caller is distinguishable from absence.
type Options struct {
	RetrievalCount      int      `json:"retrievalCount,omitempty"`
	SimilarityThreshold float64  `json:"similarityThreshold,omitempty"`
	ProductName         string   `json:"productName,omitempty"`
	UseReranking        *bool    `json:"useReranking,omitempty"`
	UseCompression      *bool    `json:"useCompression,omitempty"`
	UseMultiQuery       *bool    `json:"useMultiQuery,omitempty"`
	MaxQueries          int      `json:"maxQueries,omitempty"`
	FinalChunkCount     int      `json:"finalChunkCount,omitempty"`
	FormatAsMarkdown    *bool    `json:"formatAsMarkdown,omitempty"`
}

// resolved is Options with defaults applied.
type resolved struct {
	retrievalCount      int
	similarityThreshold float64
	productName         string
	useReranking        bool
	useCompression      bool
	useMultiQuery       bool
	maxQueries          int
	finalChunkCount     int
	formatAsMarkdown    bool
}

func (o Options) resolve() resolved {
	r := resolved{
		retrievalCount:      o.RetrievalCount,
		similarityThreshold: o.SimilarityThreshold,
		productName:         o.ProductName,
		useReranking:        boolOr(o.UseReranking, true),
		useCompression:      boolOr(o.UseCompression, true),
		useMultiQuery:       boolOr(o.UseMultiQuery, true),
		maxQueries:          o.MaxQueries,
		finalChunkCount:     o.FinalChunkCount,
		formatAsMarkdown:    boolOr(o.FormatAsMarkdown, true),
	}
	if r.retrievalCount <= 0 {
		r.retrievalCount = 30
	}
	if r.similarityThreshold <= 0 {
		r.similarityThreshold = 0.5
	}
	if r.maxQueries <= 0 {
		r.maxQueries = 5
	}
	if r.finalChunkCount <= 0 {
		r.finalChunkCount = 10
	}
	return r
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
