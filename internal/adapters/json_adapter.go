package adapters

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dspygo/simba/internal/clients"
	"github.com/dspygo/simba/internal/primitives"
	"github.com/dspygo/simba/internal/signatures"
	"github.com/dspygo/simba/internal/simbaerr"
)

// JSONAdapter formats requests for JSON-mode output, a second concrete
// Adapter alongside ChatAdapter's header convention, with fallbacks
// for extracting JSON an LM wrapped in markdown fences.
type JSONAdapter struct{}

// NewJSONAdapter returns a JSONAdapter.
func NewJSONAdapter() *JSONAdapter {
	return &JSONAdapter{}
}

// Name implements Adapter.
func (a *JSONAdapter) Name() string { return "json" }

func (a *JSONAdapter) buildSystemMessage(sig *signatures.Signature) string {
	var b strings.Builder
	if sig.Instructions != "" {
		b.WriteString(sig.Instructions)
		b.WriteString("\n\n")
	}
	b.WriteString("Respond with a single JSON object containing exactly these fields:\n")
	for _, f := range sig.OutputFields {
		fmt.Fprintf(&b, "- %q", f.Name)
		if f.Description != "" {
			fmt.Fprintf(&b, ": %s", f.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func subsetJSON(names []string, values map[string]interface{}) string {
	subset := make(map[string]interface{}, len(names))
	for _, name := range names {
		if v, ok := values[name]; ok {
			subset[name] = v
		}
	}
	raw, err := json.MarshalIndent(subset, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", subset)
	}
	return string(raw)
}

// Format implements Adapter.
func (a *JSONAdapter) Format(sig *signatures.Signature, demos []*primitives.Demo, inputs map[string]interface{}) ([]clients.Message, error) {
	messages := []clients.Message{{Role: "system", Content: a.buildSystemMessage(sig)}}

	for _, demo := range demos {
		messages = append(messages,
			clients.Message{Role: "user", Content: subsetJSON(sig.InputFieldNames(), demo.Values)},
			clients.Message{Role: "assistant", Content: subsetJSON(sig.OutputFieldNames(), demo.Values)},
		)
	}

	messages = append(messages, clients.Message{Role: "user", Content: subsetJSON(sig.InputFieldNames(), inputs)})
	return messages, nil
}

// Parse implements Adapter.
func (a *JSONAdapter) Parse(sig *signatures.Signature, completion string) (map[string]interface{}, error) {
	result, err := decodeJSONObject(completion)
	if err != nil {
		return nil, simbaerr.Wrap(simbaerr.KindMalformedResponse, "could not parse JSON completion", err)
	}

	outputs := make(map[string]interface{})
	for _, field := range sig.OutputFields {
		if v, ok := result[field.Name]; ok {
			outputs[field.Name] = v
			continue
		}
		for k, v := range result {
			if strings.EqualFold(k, field.Name) {
				outputs[field.Name] = v
				break
			}
		}
	}

	if len(outputs) == 0 {
		return result, nil
	}
	return outputs, nil
}

func decodeJSONObject(content string) (map[string]interface{}, error) {
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return result, nil
	}

	extracted, err := extractJSONObject(content)
	if err != nil {
		repaired, repairErr := repairJSONObject(content)
		if repairErr != nil {
			return nil, fmt.Errorf("extract: %w; repair: %v", err, repairErr)
		}
		extracted = repaired
	}

	if err := json.Unmarshal([]byte(extracted), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func extractJSONObject(text string) (string, error) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found")
	}

	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unmatched braces in JSON")
}

func repairJSONObject(text string) (string, error) {
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	return extractJSONObject(text)
}
