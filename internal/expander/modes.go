package expander

// ModeKind selects the retrieval strategy for an expanded query.
// Downstream stages switch on it exhaustively instead of re-deriving
// the mode from boolean flags.
type ModeKind int

const (
	// ModeStandard retrieves with reformulated query variants.
	ModeStandard ModeKind = iota
	// ModeDirect short-circuits the pipeline with a canned response.
	ModeDirect
	// ModeCatalog retrieves breadth-first across the whole catalog.
	ModeCatalog
	// ModeComparison retrieves per compared product with hard filters.
	ModeComparison
)

func (k ModeKind) String() string {
	switch k {
	case ModeDirect:
		return "direct"
	case ModeCatalog:
		return "catalog"
	case ModeComparison:
		return "comparison"
	default:
		return "standard"
	}
}

// Expanded is the retrieval plan for one query.
type Expanded struct {
	Kind ModeKind

	OriginalQuery   string
	NormalizedQuery string

	// SearchQueries drive retrieval; between 1 and 8 entries in every
	// non-direct mode.
	SearchQueries []string

	QueryType        string
	NeedsRAG         bool
	DetectedProducts []string

	// ComparisonProducts is set only in ModeComparison.
	ComparisonProducts []string

	// DirectResponse is set only in ModeDirect.
	DirectResponse string

	// LockedProduct, when non-empty, restricts retrieval to one catalog
	// product.
	LockedProduct string
}
