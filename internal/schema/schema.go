// Package schema holds the declarative description of every editable
// field on a population-register card: type, constraints and priority
// classification. It is static data consulted by the validator; nothing
// here touches storage or UI.
package schema

import (
	"fmt"
	"regexp"
)

// FieldType enumerates the primitive types a field schema can declare.
type FieldType string

const (
	// TypeString validates pattern and length constraints.
	TypeString FieldType = "string"
	// TypeInt validates whole numbers (a trailing ".0" is tolerated).
	TypeInt FieldType = "int"
	// TypeFloat validates decimal numbers.
	TypeFloat FieldType = "float"
	// TypeEnum validates membership of a fixed option set.
	TypeEnum FieldType = "enum"
)

// FieldSchema describes the constraints on one (section, field) pair.
// Zero-valued optional members mean "no constraint"; numeric bounds use
// pointers so that a configured zero bound stays distinguishable.
type FieldSchema struct {
	Type        FieldType
	Description string
	// Pattern must match the entire value (the value is NFC-normalized
	// before matching). Compiled once when the schema is registered.
	Pattern      string
	Placeholder  string
	Autocomplete []string
	MinLength    *int
	MaxLength    *int
	Min          *float64
	Max          *float64
	Options      []string
	Required     bool

	re *regexp.Regexp
}

// MatchesPattern reports whether the value satisfies the compiled
// pattern; true when no pattern is configured.
func (s *FieldSchema) MatchesPattern(value string) bool {
	if s.re == nil {
		return true
	}
	return s.re.MatchString(value)
}

func (s *FieldSchema) compile() error {
	if s.Pattern == "" {
		return nil
	}
	re, err := regexp.Compile(`\A(?:` + s.Pattern + `)\z`)
	if err != nil {
		return err
	}
	s.re = re
	return nil
}

// Registry resolves field schemas and priority classifications per
// section. Scalar-shaped sections (a single value instead of a field
// mapping) register under the section name alone.
type Registry struct {
	fields   map[string]map[string]*FieldSchema
	scalars  map[string]*FieldSchema
	priority map[string]map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		fields:   make(map[string]map[string]*FieldSchema),
		scalars:  make(map[string]*FieldSchema),
		priority: make(map[string]map[string]struct{}),
	}
}

// AddField registers the schema for a field within a section,
// compiling its pattern.
func (r *Registry) AddField(section, name string, s FieldSchema) error {
	if err := s.compile(); err != nil {
		return fmt.Errorf("schema %s.%s: %w", section, name, err)
	}
	if r.fields[section] == nil {
		r.fields[section] = make(map[string]*FieldSchema)
	}
	r.fields[section][name] = &s
	return nil
}

// AddScalar registers the schema for a scalar-shaped section.
func (r *Registry) AddScalar(section string, s FieldSchema) error {
	if err := s.compile(); err != nil {
		return fmt.Errorf("schema %s: %w", section, err)
	}
	r.scalars[section] = &s
	return nil
}

// SetPriority declares the priority field list of a section. Fields not
// on the list fail validation non-blockingly when priority-restricted
// validation is enabled.
func (r *Registry) SetPriority(section string, fields ...string) {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	r.priority[section] = set
}

// Field returns the schema for a field within a section.
func (r *Registry) Field(section, name string) (*FieldSchema, bool) {
	m, ok := r.fields[section]
	if !ok {
		return nil, false
	}
	s, ok := m[name]
	return s, ok
}

// Scalar returns the schema of a scalar-shaped section.
func (r *Registry) Scalar(section string) (*FieldSchema, bool) {
	s, ok := r.scalars[section]
	return s, ok
}

// IsPriority reports whether the field is on the section's priority
// list. Sections without a configured list have no priority fields.
func (r *Registry) IsPriority(section, field string) bool {
	set, ok := r.priority[section]
	if !ok {
		return false
	}
	_, ok = set[field]
	return ok
}

func (r *Registry) mustAddField(section, name string, s FieldSchema) {
	if err := r.AddField(section, name, s); err != nil {
		panic(err)
	}
}

func intPtr(v int) *int { return &v }
