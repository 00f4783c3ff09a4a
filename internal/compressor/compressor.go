// Package compressor shrinks ranked chunks to a per-chunk token cap by
// extractive sentence selection.
package compressor

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/answerforge/answerd/internal/reranker"
)

// charsPerToken is the rough character-to-token ratio used for caps.
const charsPerToken = 4

// minSentenceLength filters fragments produced by abbreviation dots.
const minSentenceLength = 10

// Chunk is a compressed piece of evidence ready for prompt assembly.
type Chunk struct {
	OriginalChunkID string
	Content         string
	TokenEstimate   int
	Filename        string
}

// Compressor performs extractive compression.
type Compressor struct{}

// New creates a Compressor.
func New() *Compressor {
	return &Compressor{}
}

// Compress reduces each chunk to the highest-scoring sentences under the
// token cap, preserving both the chunks' relative order and the original
// sentence order inside each chunk. Aggressive mode halves the cap and
// requires sentences to share vocabulary with the query. Output is never
// empty for a non-empty input chunk: when no sentence qualifies the
// original text is truncated to the cap instead.
func (c *Compressor) Compress(query string, ranked []reranker.Ranked, tokenCap int, aggressive bool) []Chunk {
	if tokenCap <= 0 {
		tokenCap = 400
	}
	charCap := tokenCap * charsPerToken
	scoreFloor := 0.0
	if aggressive {
		charCap /= 2
		scoreFloor = 0.1
	}

	queryTokens := lexicalTokens(query)

	chunks := make([]Chunk, 0, len(ranked))
	for _, r := range ranked {
		content := compressContent(r.Content, queryTokens, charCap, scoreFloor)
		if content == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			OriginalChunkID: r.ChunkID,
			Content:         content,
			TokenEstimate:   len(content) / charsPerToken,
			Filename:        r.Filename,
		})
	}
	return chunks
}

func compressContent(content string, queryTokens []string, charCap int, scoreFloor float64) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	if len(content) <= charCap {
		return content
	}

	sentences := splitSentences(content)
	selected := selectSentences(sentences, queryTokens, charCap, scoreFloor)
	if len(selected) == 0 {
		return truncate(content, charCap)
	}
	return strings.Join(selected, " ")
}

// selectSentences greedily keeps the best-scoring sentences under the
// cap, then restores their original order so the output reads as prose
// rather than a relevance-sorted scramble.
func selectSentences(sentences []string, queryTokens []string, charCap int, scoreFloor float64) []string {
	type scored struct {
		index int
		score float64
	}
	candidates := make([]scored, len(sentences))
	for i, sentence := range sentences {
		candidates[i] = scored{index: i, score: sentenceScore(queryTokens, sentence)}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].index < candidates[j].index
	})

	var picked []int
	total := 0
	for _, candidate := range candidates {
		if candidate.score < scoreFloor {
			break
		}
		length := len(sentences[candidate.index]) + 1
		if total+length > charCap {
			continue
		}
		total += length
		picked = append(picked, candidate.index)
	}
	if len(picked) == 0 {
		return nil
	}

	sort.Ints(picked)
	out := make([]string, len(picked))
	for i, index := range picked {
		out[i] = sentences[index]
	}
	return out
}

// splitSentences breaks text on sentence-final punctuation, dropping
// fragments shorter than minSentenceLength.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			sentence := strings.TrimSpace(current.String())
			if len(sentence) >= minSentenceLength {
				sentences = append(sentences, sentence)
				current.Reset()
			}
		}
	}
	if tail := strings.TrimSpace(current.String()); len(tail) >= minSentenceLength {
		sentences = append(sentences, tail)
	}
	return sentences
}

// sentenceScore is the fraction of query tokens present in the sentence.
func sentenceScore(queryTokens []string, sentence string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	set := make(map[string]bool)
	for _, token := range lexicalTokens(sentence) {
		set[token] = true
	}
	matches := 0
	for _, token := range queryTokens {
		if set[token] {
			matches++
		}
	}
	return float64(matches) / float64(len(queryTokens))
}

func lexicalTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	tokens := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, field := range fields {
		if len(field) > 2 && !seen[field] {
			seen[field] = true
			tokens = append(tokens, field)
		}
	}
	return tokens
}

// truncate cuts text at the cap, backing up first to a rune boundary so
// multi-byte text is never sliced mid-rune, then to the last word boundary.
func truncate(text string, charCap int) string {
	if len(text) <= charCap {
		return text
	}
	end := charCap
	for end > 0 && !utf8.RuneStart(text[end]) {
		end--
	}
	cut := text[:end]
	if i := strings.LastIndexByte(cut, ' '); i > charCap/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
