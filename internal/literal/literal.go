// Package literal holds the typed constants attachable as pin defaults.
package literal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnsupportedValue = errors.New("literal: unsupported json value")

// Type tags the active member of a Literal.
type Type int

const (
	TypeNone Type = iota
	TypeFloat
	TypeBool
	TypeString
)

func (t Type) String() string {
	switch t {
	case TypeFloat:
		return "Float"
	case TypeBool:
		return "Bool"
	case TypeString:
		return "String"
	default:
		return "None"
	}
}

// Literal is a tagged union of float, bool and string. The zero value is TypeNone.
type Literal struct {
	typ Type
	f   float64
	b   bool
	s   string
}

func Float(v float64) Literal { return Literal{typ: TypeFloat, f: v} }
func Bool(v bool) Literal     { return Literal{typ: TypeBool, b: v} }
func String(v string) Literal { return Literal{typ: TypeString, s: v} }

func (l Literal) Type() Type   { return l.typ }
func (l Literal) IsZero() bool { return l.typ == TypeNone }

func (l Literal) AsFloat() (float64, bool) {
	return l.f, l.typ == TypeFloat
}

func (l Literal) AsBool() (bool, bool) {
	return l.b, l.typ == TypeBool
}

func (l Literal) AsString() (string, bool) {
	return l.s, l.typ == TypeString
}

// Value returns the active member as a plain Go value, or nil.
func (l Literal) Value() any {
	switch l.typ {
	case TypeFloat:
		return l.f
	case TypeBool:
		return l.b
	case TypeString:
		return l.s
	default:
		return nil
	}
}

func (l Literal) String() string {
	switch l.typ {
	case TypeFloat:
		return strconv.FormatFloat(l.f, 'g', -1, 64)
	case TypeBool:
		return strconv.FormatBool(l.b)
	case TypeString:
		return l.s
	default:
		return ""
	}
}

func (l Literal) Equal(other Literal) bool {
	return l == other
}

// ParseDefault interprets a textual default: numeric first, then
// "true"/"false" (any case), otherwise the raw string.
func ParseDefault(raw string) Literal {
	if IsNumeric(raw) {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return Float(f)
		}
	}
	switch strings.ToLower(raw) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	return String(raw)
}

// IsNumeric accepts an optional sign, digits and at most one decimal point.
func IsNumeric(raw string) bool {
	if raw == "" {
		return false
	}
	i := 0
	if raw[0] == '-' || raw[0] == '+' {
		i = 1
	}
	digits := 0
	dot := false
	for ; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits > 0
}

// FromJSON maps a JSON value by its dynamic type. Only numbers, booleans and
// strings are accepted.
func FromJSON(raw json.RawMessage) (Literal, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Literal{}, fmt.Errorf("%w: empty", ErrUnsupportedValue)
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Literal{}, err
		}
		return String(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return Literal{}, err
		}
		return Bool(b), nil
	case 'n':
		return Literal{}, fmt.Errorf("%w: null", ErrUnsupportedValue)
	case '[':
		return Literal{}, fmt.Errorf("%w: array", ErrUnsupportedValue)
	case '{':
		return Literal{}, fmt.Errorf("%w: object", ErrUnsupportedValue)
	default:
		var f float64
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return Literal{}, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return Float(f), nil
	}
}

func (l Literal) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Value())
}

func (l *Literal) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*l = Literal{}
		return nil
	}
	v, err := FromJSON(data)
	if err != nil {
		return err
	}
	*l = v
	return nil
}
