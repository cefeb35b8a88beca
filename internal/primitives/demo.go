package primitives

// DefaultDemoMaxFieldBytes is the default truncation length applied to
// every string field when a Demo is constructed.
const DefaultDemoMaxFieldBytes = 100_000

// Demo is structurally identical to an Example; semantically it is a
// few-shot exemplar attached to a program's prompt, plus strategy
// metadata describing its provenance.
type Demo struct {
	*Example
	Metadata map[string]interface{}
}

// NewDemo builds a Demo from a value map and input keys, truncating
// every string field to maxFieldBytes (DefaultDemoMaxFieldBytes if <= 0).
func NewDemo(values map[string]interface{}, inputKeys []string, maxFieldBytes int) *Demo {
	if maxFieldBytes <= 0 {
		maxFieldBytes = DefaultDemoMaxFieldBytes
	}

	truncated := make(map[string]interface{}, len(values))
	for k, v := range values {
		truncated[k] = truncateField(v, maxFieldBytes)
	}

	return &Demo{
		Example:  NewExample(truncated, inputKeys...),
		Metadata: make(map[string]interface{}),
	}
}

func truncateField(v interface{}, maxBytes int) interface{} {
	s, ok := v.(string)
	if !ok || len(s) <= maxBytes {
		return v
	}
	return s[:maxBytes]
}

// WithMetadata returns a copy of the Demo with the given metadata keys
// merged in.
func (d *Demo) WithMetadata(fields map[string]interface{}) *Demo {
	merged := make(map[string]interface{}, len(d.Metadata)+len(fields))
	for k, v := range d.Metadata {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Demo{Example: d.Example, Metadata: merged}
}
