package adapters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dspygo/simba/internal/clients"
	"github.com/dspygo/simba/internal/primitives"
	"github.com/dspygo/simba/internal/signatures"
	"github.com/dspygo/simba/internal/simbaerr"
)

const fieldHeaderFormat = "[[ ## %s ## ]]"

func fieldHeader(name string) string {
	return fmt.Sprintf(fieldHeaderFormat, name)
}

// ChatAdapter formats instructions in a system message, demos as
// user/assistant pairs, and inputs in a final user message, all
// serialized with `[[ ## field ## ]]` headers, a deterministic,
// round-trippable convention in place of prefix-based heuristic
// formatting/parsing.
type ChatAdapter struct{}

// NewChatAdapter returns a ChatAdapter.
func NewChatAdapter() *ChatAdapter {
	return &ChatAdapter{}
}

// Name implements Adapter.
func (a *ChatAdapter) Name() string { return "chat" }

func systemMessage(sig *signatures.Signature) clients.Message {
	var b strings.Builder
	if sig.Instructions != "" {
		b.WriteString(sig.Instructions)
		b.WriteString("\n\n")
	}
	b.WriteString("Input fields: ")
	b.WriteString(strings.Join(sig.InputFieldNames(), ", "))
	b.WriteString("\nOutput fields: ")
	b.WriteString(strings.Join(sig.OutputFieldNames(), ", "))
	return clients.Message{Role: "system", Content: b.String()}
}

func renderFields(names []string, values map[string]interface{}) string {
	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fieldHeader(name))
		b.WriteString("\n")
		if v, ok := values[name]; ok {
			fmt.Fprintf(&b, "%v", v)
		}
	}
	return b.String()
}

// Format implements Adapter.
func (a *ChatAdapter) Format(sig *signatures.Signature, demos []*primitives.Demo, inputs map[string]interface{}) ([]clients.Message, error) {
	messages := []clients.Message{systemMessage(sig)}

	for _, demo := range demos {
		messages = append(messages,
			clients.Message{Role: "user", Content: renderFields(sig.InputFieldNames(), demo.Values)},
			clients.Message{Role: "assistant", Content: renderFields(sig.OutputFieldNames(), demo.Values)},
		)
	}

	messages = append(messages, clients.Message{Role: "user", Content: renderFields(sig.InputFieldNames(), inputs)})
	return messages, nil
}

// Parse implements Adapter. It scans the completion for declared
// output-field headers and assigns the text up to the next header (or
// end-of-text) as that field's value.
func (a *ChatAdapter) Parse(sig *signatures.Signature, completion string) (map[string]interface{}, error) {
	outputFields := sig.OutputFieldNames()

	type span struct {
		name  string
		start int
		end   int
	}
	var spans []span
	for _, name := range outputFields {
		idx := strings.Index(completion, fieldHeader(name))
		if idx < 0 {
			continue
		}
		spans = append(spans, span{name: name, start: idx})
	}

	if len(spans) == 0 {
		if len(outputFields) == 1 {
			return map[string]interface{}{outputFields[0]: strings.TrimSpace(completion)}, nil
		}
		return nil, simbaerr.New(simbaerr.KindMalformedResponse, fmt.Sprintf("no output-field headers found for fields %v", outputFields))
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := range spans {
		valueStart := spans[i].start + len(fieldHeader(spans[i].name))
		if i+1 < len(spans) {
			spans[i].end = spans[i+1].start
		} else {
			spans[i].end = len(completion)
		}
		spans[i].start = valueStart
	}

	outputs := make(map[string]interface{}, len(spans))
	for _, s := range spans {
		outputs[s.name] = strings.TrimSpace(completion[s.start:s.end])
	}
	return outputs, nil
}
