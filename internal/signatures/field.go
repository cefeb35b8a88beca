package signatures

// Field describes a single named slot in a Signature, on either the
// input or the output side.
type Field struct {
	// Name is the field identifier used in prompts and example maps.
	Name string

	// Description is optional free-form guidance surfaced to the LM.
	Description string
}

// NewField creates a Field with no description.
func NewField(name string) Field {
	return Field{Name: name}
}

// WithDescription returns a copy of the field carrying the given description.
func (f Field) WithDescription(desc string) Field {
	f.Description = desc
	return f
}
