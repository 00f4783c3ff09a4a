package analyzer

import "regexp"

// recommendationPatterns detect questions asking for a best-fit
// suggestion across a category rather than about one named product.
// Evaluated deterministically so a fuzzy product-name overlap can never
// lock retrieval to a single product on these queries.
var recommendationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwhich\s+(?:\w+\s+)?is\s+(?:the\s+)?best\b`),
	regexp.MustCompile(`(?i)\bwhat\s+is\s+the\s+best\b`),
	regexp.MustCompile(`(?i)\bbest\s+[\w\s]{1,40}\bfor\b`),
	regexp.MustCompile(`(?i)\brecommend`),
	regexp.MustCompile(`(?i)\bsuggest(?:ion)?\b`),
	regexp.MustCompile(`(?i)\bsuitable\s+(?:\w+\s+)?for\b`),
	regexp.MustCompile(`(?i)\blooking\s+for\s+an?\b`),
	regexp.MustCompile(`(?i)\bwhat\s+should\s+i\s+(?:buy|get|use|choose)\b`),
	regexp.MustCompile(`(?i)\bhelp\s+me\s+(?:choose|pick|decide)\b`),
	regexp.MustCompile(`(?i)\bany\s+options?\s+for\b`),
}

// isRecommendationQuery returns true when the query matches any
// recommendation/category pattern.
func isRecommendationQuery(query string) bool {
	for _, pattern := range recommendationPatterns {
		if pattern.MatchString(query) {
			return true
		}
	}
	return false
}
