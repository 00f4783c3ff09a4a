package assembler

import (
	"regexp"
	"strings"
)

// CitationParser extracts and strips inline citation markers, isolating
// the marker syntax from pipeline logic so the prompt format can change
// without touching callers.
type CitationParser interface {
	// Extract returns the cited chunk ids in order of first citation.
	Extract(answer string) []string
	// Strip removes citation markers and collapses leftover whitespace.
	Strip(answer string) string
}

// MarkerParser parses [USED_CHUNK: id] markers.
type MarkerParser struct{}

var (
	markerPattern      = regexp.MustCompile(`\[USED_CHUNK:\s*([^\]]+)\]`)
	whitespacePattern  = regexp.MustCompile(`[ \t]{2,}`)
	blankLinePattern   = regexp.MustCompile(`\n{3,}`)
	punctuationPattern = regexp.MustCompile(`\s+([.,;:!?])`)
)

func (MarkerParser) Extract(answer string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, match := range markerPattern.FindAllStringSubmatch(answer, -1) {
		id := strings.TrimSpace(match[1])
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func (MarkerParser) Strip(answer string) string {
	out := markerPattern.ReplaceAllString(answer, "")
	out = whitespacePattern.ReplaceAllString(out, " ")
	out = blankLinePattern.ReplaceAllString(out, "\n\n")
	// Remove space left hanging before punctuation by marker removal.
	out = punctuationPattern.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}
