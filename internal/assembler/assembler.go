// Package assembler composes the grounded answer from compressed
// evidence and extracts the citations it carries.
package assembler

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/answerforge/answerd/internal/compressor"
	"github.com/answerforge/answerd/internal/llm"
	"github.com/answerforge/answerd/internal/logging"
)

// Output styles.
const (
	StyleMarkdown = "markdown"
	StyleTable    = "table"
	StyleText     = "text"
)

// ContextAnalysis flags answers that admit insufficient evidence. It is
// the routing signal for the documentation-gap queue.
type ContextAnalysis struct {
	IsContextMissing bool     `json:"isContextMissing"`
	SuggestedTopics  []string `json:"suggestedTopics,omitempty"`
	Category         string   `json:"category,omitempty"`
	Priority         string   `json:"priority,omitempty"`
}

// Assembled is the generated answer with its citation set.
type Assembled struct {
	Response        string
	UsedChunkIDs    []string
	ContextAnalysis ContextAnalysis
}

// Assembler generates answers grounded in supplied context.
type Assembler struct {
	llm    llm.Client
	parser CitationParser
	logger *logging.Logger
}

// New creates an Assembler. A nil parser defaults to MarkerParser.
func New(client llm.Client, parser CitationParser, logger *logging.Logger) *Assembler {
	if parser == nil {
		parser = MarkerParser{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Assembler{llm: client, parser: parser, logger: logger}
}

// Assemble generates the answer from the compressed chunks. Generation
// errors propagate; fabricating an answer is worse than failing loudly.
func (a *Assembler) Assemble(ctx context.Context, query string, chunks []compressor.Chunk, style string) (Assembled, error) {
	raw, err := a.llm.Complete(ctx, llm.Request{
		System:      systemPrompt(style),
		Prompt:      contextPrompt(query, chunks),
		Temperature: 0.3,
		MaxTokens:   1024,
	})
	if err != nil {
		return Assembled{}, fmt.Errorf("generating answer: %w", err)
	}

	// Sources are the intersection of cited ids and supplied ids; a
	// hallucinated citation never reaches the caller.
	supplied := make(map[string]bool, len(chunks))
	for _, chunk := range chunks {
		supplied[chunk.OriginalChunkID] = true
	}
	var used []string
	for _, id := range a.parser.Extract(raw) {
		if supplied[id] {
			used = append(used, id)
		}
	}

	response := a.parser.Strip(raw)
	return Assembled{
		Response:        response,
		UsedChunkIDs:    used,
		ContextAnalysis: analyzeContext(response, query, len(used)),
	}, nil
}

func systemPrompt(style string) string {
	var b strings.Builder
	b.WriteString("You answer customer questions using ONLY the numbered context chunks provided. ")
	b.WriteString("Prefer the context over general knowledge. ")
	b.WriteString("After every statement drawn from a chunk, cite it inline as [USED_CHUNK: id]. ")
	b.WriteString("If the context does not contain the answer, say you don't have enough information in the uploaded documents. ")
	switch style {
	case StyleTable:
		b.WriteString("Format the answer as a markdown table.")
	case StyleText:
		b.WriteString("Answer in plain text without markup.")
	default:
		b.WriteString("Format the answer as markdown.")
	}
	return b.String()
}

func contextPrompt(query string, chunks []compressor.Chunk) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for _, chunk := range chunks {
		fmt.Fprintf(&b, "[chunk %s, source %s]\n%s\n\n", chunk.OriginalChunkID, chunk.Filename, chunk.Content)
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}

// missingContextPatterns are matched against the generated answer, not
// the retrieved context: the model admitting it lacks evidence is the
// signal, regardless of how many chunks were supplied.
var missingContextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)don'?t have enough information`),
	regexp.MustCompile(`(?i)do not have enough information`),
	regexp.MustCompile(`(?i)not provided in (?:the|this|my)?\s*(?:uploaded\s+)?(?:context|documents?)`),
	regexp.MustCompile(`(?i)no (?:relevant )?information (?:is )?available`),
	regexp.MustCompile(`(?i)couldn'?t find (?:any )?(?:relevant )?information`),
	regexp.MustCompile(`(?i)context does(?:n'?t| not) (?:contain|include|mention)`),
	regexp.MustCompile(`(?i)unable to answer (?:this|your|the) question`),
}

func analyzeContext(response, query string, citedCount int) ContextAnalysis {
	missing := false
	for _, pattern := range missingContextPatterns {
		if pattern.MatchString(response) {
			missing = true
			break
		}
	}
	if !missing {
		return ContextAnalysis{}
	}

	priority := "medium"
	if citedCount == 0 {
		priority = "high"
	}
	return ContextAnalysis{
		IsContextMissing: missing,
		SuggestedTopics:  suggestTopics(query),
		Category:         "documentation_gap",
		Priority:         priority,
	}
}

// suggestTopics pulls the query's content words as candidate topics for
// the gap queue.
func suggestTopics(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	var topics []string
	seen := make(map[string]bool)
	for _, field := range fields {
		if len(field) > 3 && !seen[field] {
			seen[field] = true
			topics = append(topics, field)
		}
	}
	if len(topics) > 5 {
		topics = topics[:5]
	}
	return topics
}
