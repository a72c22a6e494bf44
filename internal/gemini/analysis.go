package gemini

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Analysis is the structured form of one message: an "items" array, a
// "summary" object and a "metadata" object, plus any other keys the model
// chose to add. Numbers are kept as json.Number.
type Analysis struct {
	Data map[string]any
	Raw  []byte
}

// Items returns the entries of the "items" array, or nil when absent or not an array.
func (a *Analysis) Items() []any {
	if a == nil {
		return nil
	}
	items, _ := a.Data["items"].([]any)
	return items
}

// Summary returns the "summary" object, or nil.
func (a *Analysis) Summary() map[string]any {
	if a == nil {
		return nil
	}
	s, _ := a.Data["summary"].(map[string]any)
	return s
}

// ItemsJSON re-encodes each item for verbatim storage.
func (a *Analysis) ItemsJSON() ([][]byte, error) {
	items := a.Items()
	out := make([][]byte, 0, len(items))
	for i, it := range items {
		b, err := json.Marshal(it)
		if err != nil {
			return nil, fmt.Errorf("failed to encode item %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

var codeFence = regexp.MustCompile("(?is)^```(?:json)?\\s*(.*?)\\s*```$")

// StripCodeFences removes a surrounding markdown code block, if any.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimPrefix(strings.TrimPrefix(text, "json"), "JSON")
	}
	return strings.TrimSpace(text)
}

// ParseAnalysis decodes a model response into an Analysis. The document must
// be a single JSON object.
func ParseAnalysis(text string) (*Analysis, error) {
	cleaned := StripCodeFences(text)
	if cleaned == "" {
		return nil, errors.New("empty analysis payload")
	}

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("invalid analysis JSON: %w", err)
	}
	if data == nil {
		return nil, errors.New("analysis payload is not a JSON object")
	}
	if dec.More() {
		return nil, errors.New("unexpected trailing data after analysis JSON")
	}

	var raw bytes.Buffer
	if err := json.Compact(&raw, []byte(cleaned)); err != nil {
		return nil, fmt.Errorf("invalid analysis JSON: %w", err)
	}

	return &Analysis{Data: data, Raw: raw.Bytes()}, nil
}
