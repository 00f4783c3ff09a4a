package expander

import (
	"fmt"
	"regexp"
	"strings"
)

// brandWords are boilerplate tokens excluded when building a product's
// match pattern, since they appear in most product names and would make
// the patterns indistinct.
var brandWords = map[string]bool{
	"frido":    true,
	"ultimate": true,
	"the":      true,
	"and":      true,
	"with":     true,
}

// wordSeparator joins significant words in a product pattern. It also
// skips short filler words ("gel", "pro") dropped from the pattern so
// "dual gel insoles" still matches a pattern built from "dual, insoles".
const wordSeparator = `\W+(?:\w{1,3}\W+)*`

// productPattern builds a tolerant regex for one product name from its
// significant words (longer than 3 chars, brand boilerplate excluded).
// Words longer than 4 chars anchor on their first and last letter and
// tolerate interior misspellings, which covers the common typos ("slep"
// for "sleep", "pilow" for "pillow").
func productPattern(name string) *regexp.Regexp {
	var parts []string
	for _, word := range strings.Fields(strings.ToLower(name)) {
		word = strings.Trim(word, ".,!?:;\"'")
		if len(word) <= 3 || brandWords[word] {
			continue
		}
		parts = append(parts, wordPattern(word))
	}
	if len(parts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b` + strings.Join(parts, wordSeparator) + `\b`)
}

func wordPattern(word string) string {
	if len(word) <= 4 {
		return regexp.QuoteMeta(word)
	}
	first := regexp.QuoteMeta(word[:1])
	last := regexp.QuoteMeta(word[len(word)-1:])
	return fmt.Sprintf(`%s\w{%d,%d}%s`, first, len(word)-3, len(word)-1, last)
}

// normalizeProductMentions rewrites misspelled or aliased mentions of
// each detected product to its canonical catalog name. Each product's
// pattern is applied once so a canonical name already substituted is not
// rewritten again.
func normalizeProductMentions(query string, products []string) string {
	out := query
	for _, name := range products {
		pattern := productPattern(name)
		if pattern == nil {
			continue
		}
		replaced := false
		out = pattern.ReplaceAllStringFunc(out, func(match string) string {
			if replaced {
				return match
			}
			replaced = true
			return name
		})
	}
	return out
}

// domainTerms maps lexical triggers to vocabulary appended to search
// queries so document-side terminology is reachable from casual phrasing.
var domainTerms = []struct {
	triggers []string
	terms    string
}{
	{[]string{"pain", "ache", "support", "posture", "relief"}, "orthopedic support relief"},
	{[]string{"comfort", "comfortable", "cushion", "soft"}, "material cushioning foam"},
	{[]string{"size", "weight", "dimension", "fit", "measurement"}, "dimensions specifications"},
}

// expandDomainTerms appends domain vocabulary to a query when it
// contains a matching trigger word.
func expandDomainTerms(query string) string {
	lower := strings.ToLower(query)
	for _, group := range domainTerms {
		for _, trigger := range group.triggers {
			if strings.Contains(lower, trigger) {
				return query + " " + group.terms
			}
		}
	}
	return query
}
