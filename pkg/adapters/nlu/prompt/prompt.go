// Package prompt holds the extraction prompt and response parsing shared
// by the model-backed language adapters.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extraction instructs the model to return the raw result shape the core
// normaliser understands.
const Extraction = `You are a natural language understanding service. Analyse the user message and respond with ONLY a JSON object, no prose and no code fences, shaped like:
{
  "intents": [{"id": "<snake_case_intent>", "score": <0..1>}],
  "entities": [{"id": "<entity_type>", "value": "<extracted value>", "score": <0..1>}],
  "sentiment": [{"id": "sentiment", "value": "positive|neutral|negative", "score": <0..1>}],
  "language": [{"id": "<iso 639-1 code>", "score": <0..1>}]
}
Omit any section you cannot determine. Scores reflect confidence.`

// Parse decodes a model response into the raw per-provider map. Code
// fences are tolerated even though the prompt forbids them.
func Parse(raw string) (map[string]interface{}, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if i := strings.LastIndex(cleaned, "```"); i >= 0 {
			cleaned = cleaned[:i]
		}
		cleaned = strings.TrimSpace(cleaned)
	}
	result := make(map[string]interface{})
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("parse nlu response: %w", err)
	}
	return result, nil
}
