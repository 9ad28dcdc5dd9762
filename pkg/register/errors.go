package register

import (
	"fmt"
	"sort"
)

// FieldKey fully qualifies one field of one record. Entry is -1 for
// fields outside a list-shaped section.
type FieldKey struct {
	RecordID string
	Section  string
	Entry    int
	Field    string
}

// String renders the key the way the edit form labels inputs,
// e.g. "card_0031.json#main_entries[2].datum_vertrek".
func (k FieldKey) String() string {
	if k.Entry >= 0 {
		return fmt.Sprintf("%s#%s[%d].%s", k.RecordID, k.Section, k.Entry, k.Field)
	}
	if k.Field == "" {
		return fmt.Sprintf("%s#%s", k.RecordID, k.Section)
	}
	return fmt.Sprintf("%s#%s.%s", k.RecordID, k.Section, k.Field)
}

// FieldError is one rejection recorded against a field.
type FieldError struct {
	Key    FieldKey
	Reason string
	// Blocking marks failures that gate saving. A needs-review override
	// clears Blocking while the error stays visible.
	Blocking bool
}

// ErrorSet aggregates the live validation state of one edit session.
// It is rebuilt field by field as the operator types; entries vanish
// when a field becomes valid.
type ErrorSet map[FieldKey]FieldError

// NewErrorSet returns an empty set.
func NewErrorSet() ErrorSet { return make(ErrorSet) }

// Put records or replaces the error for a key.
func (s ErrorSet) Put(e FieldError) { s[e.Key] = e }

// Clear removes any error recorded for the key.
func (s ErrorSet) Clear(k FieldKey) { delete(s, k) }

// BlockingCount returns the number of errors that gate saving.
func (s ErrorSet) BlockingCount() int {
	n := 0
	for _, e := range s {
		if e.Blocking {
			n++
		}
	}
	return n
}

// All returns every recorded error in deterministic key order.
func (s ErrorSet) All() []FieldError {
	out := make([]FieldError, 0, len(s))
	for _, e := range s {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// Blocking returns the subset that gates saving, in deterministic order.
func (s ErrorSet) Blocking() []FieldError {
	out := make([]FieldError, 0, len(s))
	for _, e := range s {
		if e.Blocking {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}
