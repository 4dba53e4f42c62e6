package schema

import (
	"fmt"
	"sort"
)

// Field describes how one named field behaves during indexing and search.
type Field struct {
	// Indexed fields are analyzed and added to the inverted index.
	Indexed bool

	// Stored fields keep their raw value for retrieval at search time.
	Stored bool

	// Scored fields contribute length norms and participate in relevance
	// scoring. Ignored unless Indexed is also set.
	Scored bool

	// Required fields must be present in every document.
	Required bool

	// Boost is the per-field score multiplier used by the scorer.
	// Zero means the default of 1.0.
	Boost float64
}

// EffectiveBoost returns the boost with the zero value normalized to 1.0.
func (f Field) EffectiveBoost() float64 {
	if f.Boost == 0 {
		return 1.0
	}
	return f.Boost
}

// Schema is an immutable mapping of field name to field behavior.
// It is fixed once an index is opened.
type Schema struct {
	fields map[string]Field
	names  []string
}

// New builds a Schema from a field map. The map is copied; later mutation
// of the argument does not affect the schema.
func New(fields map[string]Field) *Schema {
	cp := make(map[string]Field, len(fields))
	names := make([]string, 0, len(fields))
	for name, f := range fields {
		cp[name] = f
		names = append(names, name)
	}
	sort.Strings(names)
	return &Schema{fields: cp, names: names}
}

// Field returns the behavior flags for name.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Names returns all field names in lexicographic order.
func (s *Schema) Names() []string {
	return s.names
}

// IndexedNames returns the names of all indexed fields in lexicographic order.
func (s *Schema) IndexedNames() []string {
	var out []string
	for _, name := range s.names {
		if s.fields[name].Indexed {
			out = append(out, name)
		}
	}
	return out
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// MismatchError indicates a document that violates the schema.
// Only the offending document is rejected, never the whole batch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type MismatchError struct {
	Field  string
	Reason string
	cause  error
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("schema mismatch on field %q: %s", e.Field, e.Reason)
}

func (e *MismatchError) Unwrap() error { return e.cause }

// NewMismatchError constructs a MismatchError for field with reason.
func NewMismatchError(field, reason string) *MismatchError {
	return &MismatchError{Field: field, Reason: reason}
}

// Validate checks a document's field set against the schema: every present
// field must be declared, and every required field must be present.
func (s *Schema) Validate(present map[string]bool) error {
	for name := range present {
		if _, ok := s.fields[name]; !ok {
			return NewMismatchError(name, "field not declared in schema")
		}
	}
	for _, name := range s.names {
		if s.fields[name].Required && !present[name] {
			return NewMismatchError(name, "required field missing")
		}
	}
	return nil
}
