package register

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FlagSuffix marks the companion key storing a field's needs-review flag
// inside a saved payload ("street" pairs with "street_needs review").
// The space is a legacy artifact of the original card files and is kept
// for compatibility with payloads already corrected.
const FlagSuffix = "_needs review"

// IsFlagKey reports whether a payload key is a needs-review companion
// rather than an editable field.
func IsFlagKey(name string) bool { return strings.HasSuffix(name, FlagSuffix) }

// FlagKey returns the companion key carrying a field's needs-review flag.
func FlagKey(name string) string { return name + FlagSuffix }

// Fields is one flat mapping of field name to scalar value: a dict-shaped
// section, or a single entry (person row) of a list-shaped section.
type Fields map[string]Value

// Clone returns an independent copy.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// NeedsReview reports whether the named field carries a truthy
// needs-review flag.
func (f Fields) NeedsReview(name string) bool {
	v, ok := f[FlagKey(name)]
	return ok && v.Kind() == KindBool && v.BoolVal()
}

// SetNeedsReview stores the needs-review flag next to the named field.
func (f Fields) SetNeedsReview(name string, flag bool) {
	f[FlagKey(name)] = Bool(flag)
}

// Section is one top-level unit of the editable payload. Exactly one of
// the three shapes is populated: a flat field mapping, an ordered list
// of entries, or a single scalar.
type Section struct {
	Fields  Fields
	Entries []Fields
	Scalar  *Value
}

// IsList reports whether the section holds an ordered entry sequence.
func (s *Section) IsList() bool { return s.Entries != nil }

// IsScalar reports whether the section holds a single scalar value.
func (s *Section) IsScalar() bool { return s.Scalar != nil }

// Clone returns an independent deep copy.
func (s *Section) Clone() *Section {
	if s == nil {
		return nil
	}
	out := &Section{Fields: s.Fields.Clone()}
	if s.Entries != nil {
		out.Entries = make([]Fields, len(s.Entries))
		for i, e := range s.Entries {
			out.Entries[i] = e.Clone()
		}
	}
	if s.Scalar != nil {
		v := *s.Scalar
		out.Scalar = &v
	}
	return out
}

// Payload is the editable section group of one record. Section order is
// meaningful (it mirrors the physical card layout) and survives decode
// and encode.
type Payload struct {
	order    []string
	sections map[string]*Section
}

// NewPayload returns an empty payload.
func NewPayload() *Payload {
	return &Payload{sections: make(map[string]*Section)}
}

// Len returns the number of sections.
func (p *Payload) Len() int { return len(p.order) }

// SectionNames returns the section names in payload order.
func (p *Payload) SectionNames() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Section returns the named section.
func (p *Payload) Section(name string) (*Section, bool) {
	s, ok := p.sections[name]
	return s, ok
}

// SetSection stores a section, appending it to the order when new.
func (p *Payload) SetSection(name string, s *Section) {
	if p.sections == nil {
		p.sections = make(map[string]*Section)
	}
	if _, ok := p.sections[name]; !ok {
		p.order = append(p.order, name)
	}
	p.sections[name] = s
}

// DeleteEntry removes the entry at index from a list-shaped section,
// preserving the order of the remaining entries.
func (p *Payload) DeleteEntry(section string, index int) error {
	s, ok := p.sections[section]
	if !ok || !s.IsList() {
		return fmt.Errorf("register: section %s is not an entry list", section)
	}
	if index < 0 || index >= len(s.Entries) {
		return fmt.Errorf("register: entry index %d out of range in %s", index, section)
	}
	s.Entries = append(s.Entries[:index], s.Entries[index+1:]...)
	return nil
}

// Clone returns an independent deep copy.
func (p *Payload) Clone() *Payload {
	out := NewPayload()
	for _, name := range p.order {
		out.SetSection(name, p.sections[name].Clone())
	}
	return out
}

// UnmarshalJSON decodes the payload keeping the section order found in
// the document.
func (p *Payload) UnmarshalJSON(data []byte) error {
	p.order = nil
	p.sections = make(map[string]*Section)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("register: payload must be a JSON object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("register: section %s: %w", name, err)
		}
		section, err := decodeSection(raw)
		if err != nil {
			return fmt.Errorf("register: section %s: %w", name, err)
		}
		p.SetSection(name, section)
	}
	// consume closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

func decodeSection(raw json.RawMessage) (*Section, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return &Section{Scalar: ptrValue(Null())}, nil
	}
	switch trimmed[0] {
	case '{':
		var fields Fields
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, err
		}
		return &Section{Fields: fields}, nil
	case '[':
		var entries []Fields
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []Fields{}
		}
		return &Section{Entries: entries}, nil
	default:
		var v Value
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil, err
		}
		return &Section{Scalar: &v}, nil
	}
}

func ptrValue(v Value) *Value { return &v }

// MarshalJSON renders the payload with sections in order. Field keys
// within a section are sorted by encoding/json; entry order is preserved.
func (p *Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range p.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		s := p.sections[name]
		var body []byte
		switch {
		case s.IsScalar():
			body, err = json.Marshal(s.Scalar)
		case s.IsList():
			body, err = json.Marshal(s.Entries)
		default:
			body, err = json.Marshal(s.Fields)
		}
		if err != nil {
			return nil, fmt.Errorf("register: section %s: %w", name, err)
		}
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
