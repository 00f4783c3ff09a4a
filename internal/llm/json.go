package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CompleteJSON runs a deterministic completion and unmarshals the response
// into out. The request temperature is forced to 0.
//
// Models frequently wrap JSON in markdown fences or add prose around it;
// the response is trimmed to the outermost JSON value before unmarshalling.
func CompleteJSON(ctx context.Context, client Client, req Request, out any) error {
	req.Temperature = 0

	raw, err := client.Complete(ctx, req)
	if err != nil {
		return err
	}

	cleaned := extractJSON(raw)
	if cleaned == "" {
		return fmt.Errorf("no JSON found in completion response")
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("parsing completion JSON: %w", err)
	}
	return nil
}

// extractJSON strips markdown fences and surrounding prose, returning the
// outermost JSON object or array in s, or "" if none is found.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}

	var end int
	if s[start] == '{' {
		end = strings.LastIndex(s, "}")
	} else {
		end = strings.LastIndex(s, "]")
	}
	if end <= start {
		return ""
	}

	return s[start : end+1]
}
