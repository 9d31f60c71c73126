// Package jsontok provides a pull-based JSON token cursor and a matching
// token sink. Decoders in this module consume one token at a time and never
// materialize the whole document.
package jsontok

import (
	"fmt"
	"strconv"
)

// Kind enumerates JSON token kinds.
type Kind uint8

const (
	Invalid Kind = iota
	BeginObject
	EndObject
	BeginArray
	EndArray
	Field
	String
	Number
	Bool
	Null
)

var kindNames = [...]string{
	Invalid:     "invalid",
	BeginObject: "begin-object",
	EndObject:   "end-object",
	BeginArray:  "begin-array",
	EndArray:    "end-array",
	Field:       "field",
	String:      "string",
	Number:      "number",
	Bool:        "bool",
	Null:        "null",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsScalar reports whether k is a string, number, bool or null value.
func (k Kind) IsScalar() bool {
	return k == String || k == Number || k == Bool || k == Null
}

// Token is one lexical JSON token. Text holds the field name for Field, the
// decoded string for String and the literal text for Number.
type Token struct {
	Kind Kind
	Text string
	Bool bool
}

// Float parses a Number token.
func (t Token) Float() (float64, error) {
	if t.Kind != Number {
		return 0, fmt.Errorf("expected number, got %s", t.Kind)
	}
	f, err := strconv.ParseFloat(t.Text, 64)
	if err != nil {
		return 0, fmt.Errorf("parse number %q: %w", t.Text, err)
	}
	return f, nil
}

// Int64 parses a Number token holding an integer; integral floats such as
// 1.7e12 are accepted.
func (t Token) Int64() (int64, error) {
	if t.Kind != Number {
		return 0, fmt.Errorf("expected number, got %s", t.Kind)
	}
	if n, err := strconv.ParseInt(t.Text, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(t.Text, 64)
	if err != nil {
		return 0, fmt.Errorf("parse integer %q: %w", t.Text, err)
	}
	return int64(f), nil
}

// ScalarText returns the textual form of a scalar token: the string itself,
// the number literal, "true"/"false", or "" for null.
func (t Token) ScalarText() string {
	switch t.Kind {
	case String, Number:
		return t.Text
	case Bool:
		return strconv.FormatBool(t.Bool)
	default:
		return ""
	}
}

// Cursor is a pull-based reader over a JSON token stream. Next advances to
// the following token and returns its kind; it returns io.EOF once the
// stream is exhausted. Current returns the token Next last moved onto.
type Cursor interface {
	Next() (Kind, error)
	Current() Token
}
