// Package record reads and writes the JSON documents produced by the
// extraction pipeline. A document is one top-level JSON object whose
// editable sections live under the "validated_json" key; everything
// else (pipeline provenance, confidence scores) passes through a
// correction round-trip byte for byte.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/melvinwevers/card-annotation/pkg/register"
)

const (
	// EditableKey holds the sections a corrector may edit.
	EditableKey = "validated_json"
	// LegacyEditableKey is the pre-rename key still present in older
	// pipeline output; it is read transparently and renamed on save.
	LegacyEditableKey = "extracted_json"
)

// The extraction pipeline emits two constructs that are not valid JSON:
// a bare dash for an unreadable cell and integers with leading zeros.
var (
	dashNull = regexp.MustCompile(`(:\s*)-(\s*[,\}])`)
	leadZero = regexp.MustCompile(`(:\s*)(0\d+)(\s*[,\}])`)
)

// CleanText repairs pipeline output so it parses as JSON: bare dash
// values become null and leading-zero numbers become strings.
func CleanText(raw []byte) []byte {
	cleaned := dashNull.ReplaceAll(raw, []byte(`${1}null${2}`))
	cleaned = leadZero.ReplaceAll(cleaned, []byte(`${1}"${2}"${3}`))
	return cleaned
}

// Document is one extraction output file: the editable payload plus the
// untouched remainder of the top-level object in original key order.
type Document struct {
	order       []string
	raw         map[string]json.RawMessage
	editableKey string
	payload     *register.Payload
}

// Decode parses a pipeline document, repairing known syntax defects
// first. A document without an editable section decodes fine; callers
// check HasEditable before opening an edit session.
func Decode(data []byte) (*Document, error) {
	cleaned := CleanText(data)
	dec := json.NewDecoder(bytes.NewReader(cleaned))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("decode document: top level is not an object")
	}
	doc := &Document{raw: make(map[string]json.RawMessage)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		key := keyTok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", key, err)
		}
		doc.order = append(doc.order, key)
		doc.raw[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	for _, key := range []string{EditableKey, LegacyEditableKey} {
		value, ok := doc.raw[key]
		if !ok || !isObject(value) {
			continue
		}
		var payload register.Payload
		if err := json.Unmarshal(value, &payload); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		doc.editableKey = key
		doc.payload = &payload
		break
	}
	return doc, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// HasEditable reports whether the document carries editable sections.
func (d *Document) HasEditable() bool { return d.payload != nil }

// Payload returns the editable sections, nil when absent.
func (d *Document) Payload() *register.Payload { return d.payload }

// SetPayload replaces the editable sections with the corrected ones.
func (d *Document) SetPayload(p *register.Payload) {
	d.payload = p
	if d.editableKey == "" {
		d.editableKey = EditableKey
		d.order = append(d.order, EditableKey)
		d.raw[EditableKey] = json.RawMessage("{}")
	}
}

// Keys returns the top-level keys in original document order.
func (d *Document) Keys() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Encode serializes the document with two-space indentation. The
// editable payload is written under the canonical key even when it was
// read from the legacy one; all other sections are emitted verbatim.
func (d *Document) Encode() ([]byte, error) {
	var compact bytes.Buffer
	compact.WriteByte('{')
	first := true
	for _, key := range d.order {
		value := d.raw[key]
		outKey := key
		if key == d.editableKey && d.payload != nil {
			outKey = EditableKey
			encoded, err := encodePayload(d.payload)
			if err != nil {
				return nil, err
			}
			value = encoded
		}
		if !first {
			compact.WriteByte(',')
		}
		first = false
		nameBytes, err := json.Marshal(outKey)
		if err != nil {
			return nil, err
		}
		compact.Write(nameBytes)
		compact.WriteByte(':')
		compact.Write(bytes.TrimSpace(value))
	}
	compact.WriteByte('}')
	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func encodePayload(p *register.Payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

// ImageBase derives the scan image stem from a record id, so
// "wk_1920_0042.json" looks up "images/wk_1920_0042.<ext>".
func ImageBase(recordID string) string {
	return strings.TrimSuffix(recordID, ".json")
}
