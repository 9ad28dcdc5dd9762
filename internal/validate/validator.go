// Package validate decides whether operator-supplied field values are
// acceptable. Every check is a pure function of the value and its
// schema; nothing here touches storage, locks or UI state.
package validate

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/melvinwevers/card-annotation/internal/schema"
	"github.com/melvinwevers/card-annotation/pkg/register"
)

// Verdict is the outcome of validating one field or one cross-field
// rule. Blocking marks failures that count toward the save gate;
// non-priority fields fail visibly but never block.
type Verdict struct {
	OK       bool
	Reason   string
	Blocking bool
}

func accept() Verdict { return Verdict{OK: true} }

// Option configures a Validator.
type Option func(*Validator)

// WithPriorityOnly restricts blocking validation to each section's
// priority field list. Disabled, every failure blocks.
func WithPriorityOnly(enabled bool) Option {
	return func(v *Validator) { v.priorityOnly = enabled }
}

// Validator evaluates field values against the schema registry.
type Validator struct {
	reg          *schema.Registry
	priorityOnly bool
}

// New constructs a validator over the given registry. Priority-restricted
// validation defaults to on, matching production deployments.
func New(reg *schema.Registry, opts ...Option) *Validator {
	v := &Validator{reg: reg, priorityOnly: true}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Field validates a single field's current text against its schema.
// Fields without a schema always pass. The verdict's Blocking flag
// already accounts for the priority policy; the needs-review override
// is applied by the caller, which owns that state.
func (v *Validator) Field(section, name, value string) Verdict {
	s, ok := v.reg.Field(section, name)
	if !ok {
		return accept()
	}
	return v.check(s, section, name, value)
}

// Scalar validates a scalar-shaped section's value.
func (v *Validator) Scalar(section, value string) Verdict {
	s, ok := v.reg.Scalar(section)
	if !ok {
		return accept()
	}
	return v.check(s, section, "", value)
}

func (v *Validator) check(s *schema.FieldSchema, section, name, value string) Verdict {
	verdict := evaluate(s, name, value)
	if !verdict.OK {
		verdict.Blocking = !v.priorityOnly || v.reg.IsPriority(section, name)
	}
	return verdict
}

// evaluate runs the schema checks on a trimmed value and reports the
// first failure. The reported verdict carries no priority policy.
func evaluate(s *schema.FieldSchema, name, value string) Verdict {
	value = strings.TrimSpace(value)
	desc := s.Description
	if desc == "" {
		if name != "" {
			desc = name
		} else {
			desc = "Field"
		}
	}

	if value == "" {
		if s.Required {
			return Verdict{Reason: fmt.Sprintf("%s is required", desc)}
		}
		return accept()
	}

	switch s.Type {
	case schema.TypeString:
		if s.Pattern != "" {
			normalized := norm.NFC.String(value)
			if !s.MatchesPattern(normalized) {
				example := s.Placeholder
				if example == "" {
					example = "see format guidelines"
				}
				return Verdict{Reason: fmt.Sprintf("%s: Invalid format. Example: %s", desc, example)}
			}
		}
		if s.MinLength != nil && len([]rune(value)) < *s.MinLength {
			return Verdict{Reason: fmt.Sprintf("%s: Minimum %d characters required", desc, *s.MinLength)}
		}
		if s.MaxLength != nil && len([]rune(value)) > *s.MaxLength {
			return Verdict{Reason: fmt.Sprintf("%s: Maximum %d characters allowed", desc, *s.MaxLength)}
		}
	case schema.TypeFloat:
		num, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Verdict{Reason: fmt.Sprintf("%s: Must be a valid decimal number", desc)}
		}
		if s.Min != nil && num < *s.Min {
			return Verdict{Reason: fmt.Sprintf("%s: Minimum value is %v", desc, *s.Min)}
		}
		if s.Max != nil && num > *s.Max {
			return Verdict{Reason: fmt.Sprintf("%s: Maximum value is %v", desc, *s.Max)}
		}
	case schema.TypeInt:
		// Accept a whole number written with a fractional suffix ("5.0").
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Verdict{Reason: fmt.Sprintf("%s: Must be a valid whole number", desc)}
		}
		num := int64(f)
		if s.Min != nil && float64(num) < *s.Min {
			return Verdict{Reason: fmt.Sprintf("%s: Minimum value is %v", desc, *s.Min)}
		}
		if s.Max != nil && float64(num) > *s.Max {
			return Verdict{Reason: fmt.Sprintf("%s: Maximum value is %v", desc, *s.Max)}
		}
	case schema.TypeEnum:
		for _, opt := range s.Options {
			if value == opt {
				return accept()
			}
		}
		shown := s.Options
		if len(shown) > 3 {
			shown = shown[:3]
		}
		return Verdict{Reason: fmt.Sprintf("%s: Must be one of: %s...", desc, strings.Join(shown, ", "))}
	}
	return accept()
}

// FieldValue validates the display form of an already-typed value.
func (v *Validator) FieldValue(section, name string, value register.Value) Verdict {
	return v.Field(section, name, value.Display())
}
