package jsontok

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

type containerKind uint8

const (
	inObject containerKind = iota
	inArray
)

type frame struct {
	kind         containerKind
	expectingKey bool
}

// Reader is a Cursor over a UTF-8 JSON document backed by encoding/json's
// streaming tokenizer, which rejects missing, doubled and trailing
// separators. Object keys are told apart from string values by tracking
// whether the enclosing object expects a key next.
type Reader struct {
	dec   *json.Decoder
	stack []frame
	cur   Token
}

var _ Cursor = (*Reader)(nil)

func NewReader(r io.Reader) *Reader {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &Reader{dec: dec}
}

func NewBytes(b []byte) *Reader { return NewReader(bytes.NewReader(b)) }

func (r *Reader) Current() Token { return r.cur }

func (r *Reader) Next() (Kind, error) {
	tok, err := r.dec.Token()
	if err != nil {
		r.cur = Token{}
		if errors.Is(err, io.EOF) {
			return Invalid, io.EOF
		}
		return Invalid, fmt.Errorf("read token: %w", err)
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			r.stack = append(r.stack, frame{kind: inObject, expectingKey: true})
			r.cur = Token{Kind: BeginObject}
		case '}':
			r.pop()
			r.cur = Token{Kind: EndObject}
		case '[':
			r.stack = append(r.stack, frame{kind: inArray})
			r.cur = Token{Kind: BeginArray}
		case ']':
			r.pop()
			r.cur = Token{Kind: EndArray}
		default:
			return Invalid, fmt.Errorf("read token: unexpected delimiter %q", rune(v))
		}
		return r.cur.Kind, nil
	case string:
		if top := r.top(); top != nil && top.kind == inObject && top.expectingKey {
			top.expectingKey = false
			r.cur = Token{Kind: Field, Text: v}
			return Field, nil
		}
		r.cur = Token{Kind: String, Text: v}
	case json.Number:
		r.cur = Token{Kind: Number, Text: string(v)}
	case float64:
		r.cur = Token{Kind: Number, Text: strconv.FormatFloat(v, 'g', -1, 64)}
	case bool:
		r.cur = Token{Kind: Bool, Bool: v}
	case nil:
		r.cur = Token{Kind: Null}
	default:
		return Invalid, fmt.Errorf("read token: unsupported token %T", tok)
	}
	r.valueDone()
	return r.cur.Kind, nil
}

func (r *Reader) top() *frame {
	if n := len(r.stack); n > 0 {
		return &r.stack[n-1]
	}
	return nil
}

func (r *Reader) pop() {
	if n := len(r.stack); n > 0 {
		r.stack = r.stack[:n-1]
	}
	r.valueDone()
}

// a complete value inside an object means the next string is a key again
func (r *Reader) valueDone() {
	if top := r.top(); top != nil && top.kind == inObject {
		top.expectingKey = true
	}
}
