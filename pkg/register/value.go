package register

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the variants a field value can take in a record
// payload. Upstream extraction emits whatever JSON type the OCR pipeline
// guessed, so a field may arrive as a string, number, boolean or null.
type Kind int

const (
	// KindNull represents a JSON null.
	KindNull Kind = iota
	// KindString represents a JSON string.
	KindString
	// KindInt represents a JSON number without a fractional part.
	KindInt
	// KindFloat represents a JSON number with a fractional part.
	KindFloat
	// KindBool represents a JSON boolean.
	KindBool
)

// Value is a tagged variant holding one scalar field value.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	bit  bool
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, num: i} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, flt: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, bit: b} }

// Kind reports the variant held by the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload; empty unless Kind is KindString.
func (v Value) Str() string { return v.str }

// IntVal returns the integer payload; zero unless Kind is KindInt.
func (v Value) IntVal() int64 { return v.num }

// FloatVal returns the float payload; zero unless Kind is KindFloat.
func (v Value) FloatVal() float64 { return v.flt }

// BoolVal returns the boolean payload; false unless Kind is KindBool.
func (v Value) BoolVal() bool { return v.bit }

// Display renders the value the way an edit form prefills its input:
// null becomes the empty string, everything else its literal text.
func (v Value) Display() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.bit)
	}
	return ""
}

var nullAliases = map[string]struct{}{
	"": {}, "null": {}, "none": {}, "nil": {}, "undefined": {},
}

// Convert interprets operator input against the receiver, which carries
// the original value's type. The corrected payload keeps the shape the
// extraction produced: numeric fields stay numeric, booleans stay
// boolean, and unparseable numeric input falls back to the original
// value rather than corrupting the record.
func (v Value) Convert(input string) Value {
	trimmed := strings.TrimSpace(input)
	switch v.kind {
	case KindBool:
		switch strings.ToLower(trimmed) {
		case "true", "1", "yes", "on":
			return Bool(true)
		}
		return Bool(false)
	case KindInt:
		if trimmed == "" {
			if v.num == 0 {
				return Int(0)
			}
			return Null()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return v
		}
		return Int(int64(f))
	case KindFloat:
		if trimmed == "" {
			if v.flt == 0 {
				return Float(0)
			}
			return Null()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return v
		}
		return Float(f)
	case KindNull:
		if _, ok := nullAliases[strings.ToLower(trimmed)]; ok {
			return String("")
		}
		return String(trimmed)
	}
	return String(trimmed)
}

// MarshalJSON renders the variant as its native JSON type.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindInt:
		return []byte(strconv.FormatInt(v.num, 10)), nil
	case KindFloat:
		return []byte(strconv.FormatFloat(v.flt, 'g', -1, 64)), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.bit)), nil
	}
	return nil, fmt.Errorf("register: unknown value kind %d", v.kind)
}

// UnmarshalJSON decodes any JSON scalar into the matching variant.
// Numbers keep their integer identity when they carry no fractional or
// exponent notation.
func (v *Value) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	switch {
	case text == "null":
		*v = Null()
		return nil
	case text == "true":
		*v = Bool(true)
		return nil
	case text == "false":
		*v = Bool(false)
		return nil
	case len(text) > 0 && text[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	}
	if !strings.ContainsAny(text, ".eE") {
		i, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			*v = Int(i)
			return nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("register: cannot decode scalar %s: %w", text, err)
	}
	*v = Float(f)
	return nil
}
