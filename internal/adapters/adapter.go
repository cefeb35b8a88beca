// Package adapters formats a Signature plus demos and inputs into LM
// messages, and parses an LM completion back into a structured output
// map, against a plain message-slice Client shape.
package adapters

import (
	"github.com/dspygo/simba/internal/clients"
	"github.com/dspygo/simba/internal/primitives"
	"github.com/dspygo/simba/internal/signatures"
)

// Adapter is the format(sig, demos, inputs) / parse(sig, completion)
// capability a Program uses to talk to an LM.
type Adapter interface {
	// Format builds the chat messages an LM call should send.
	Format(sig *signatures.Signature, demos []*primitives.Demo, inputs map[string]interface{}) ([]clients.Message, error)

	// Parse extracts a structured output map from a completion.
	Parse(sig *signatures.Signature, completion string) (map[string]interface{}, error)

	// Name identifies the adapter, e.g. for telemetry.
	Name() string
}
