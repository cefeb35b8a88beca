package primitives

// Prediction is the output of a Program.Forward call: the predicted
// field values plus free-form metadata (trace info, reasoning, etc.).
type Prediction struct {
	fields   map[string]interface{}
	metadata map[string]interface{}
}

// NewPrediction wraps an output map as a Prediction.
func NewPrediction(fields map[string]interface{}) *Prediction {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	return &Prediction{fields: fields, metadata: make(map[string]interface{})}
}

// Get returns the value for the given output field.
func (p *Prediction) Get(field string) (interface{}, bool) {
	v, ok := p.fields[field]
	return v, ok
}

// Fields returns all predicted fields.
func (p *Prediction) Fields() map[string]interface{} {
	return p.fields
}

// SetMetadata attaches a metadata value (e.g. latency, raw completion).
func (p *Prediction) SetMetadata(key string, value interface{}) {
	p.metadata[key] = value
}

// Metadata returns the prediction's metadata.
func (p *Prediction) Metadata() map[string]interface{} {
	return p.metadata
}
