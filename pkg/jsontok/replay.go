package jsontok

import (
	"errors"
	"fmt"
	"io"
)

// Replay is a Cursor over a previously recorded token sequence.
type Replay struct {
	toks []Token
	pos  int
}

var _ Cursor = (*Replay)(nil)

func NewReplay(toks []Token) *Replay {
	return &Replay{toks: toks, pos: -1}
}

func (r *Replay) Next() (Kind, error) {
	if r.pos+1 >= len(r.toks) {
		r.pos = len(r.toks)
		return Invalid, io.EOF
	}
	r.pos++
	return r.toks[r.pos].Kind, nil
}

func (r *Replay) Current() Token {
	if r.pos < 0 || r.pos >= len(r.toks) {
		return Token{}
	}
	return r.toks[r.pos]
}

// Capture records the value whose first token is c's current token,
// consuming c through the value's closing token. A scalar yields a single
// token.
func Capture(c Cursor) ([]Token, error) {
	first := c.Current()
	out := []Token{first}
	switch first.Kind {
	case BeginObject, BeginArray:
	case Invalid, Field, EndObject, EndArray:
		return nil, fmt.Errorf("capture: cursor is at %s, not a value", first.Kind)
	default:
		return out, nil
	}

	depth := 1
	for depth > 0 {
		k, err := c.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("capture: %w", io.ErrUnexpectedEOF)
			}
			return nil, fmt.Errorf("capture: %w", err)
		}
		switch k {
		case BeginObject, BeginArray:
			depth++
		case EndObject, EndArray:
			depth--
		}
		out = append(out, c.Current())
	}
	return out, nil
}

// WriteTokens replays toks into s.
func WriteTokens(s Sink, toks []Token) {
	for _, t := range toks {
		switch t.Kind {
		case BeginObject:
			s.StartObject()
		case EndObject:
			s.EndObject()
		case BeginArray:
			s.StartArray()
		case EndArray:
			s.EndArray()
		case Field:
			s.Field(t.Text)
		case String:
			s.String(t.Text)
		case Number:
			s.RawNumber(t.Text)
		case Bool:
			s.Bool(t.Bool)
		case Null:
			s.Null()
		}
	}
}
