package jsontok

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"

	j "github.com/goccy/go-json"
)

// Sink receives JSON tokens in document order.
type Sink interface {
	StartObject()
	EndObject()
	StartArray()
	EndArray()
	Field(name string)
	String(s string)
	Number(f float64)
	RawNumber(lit string)
	Bool(b bool)
	Null()
}

type writerFrame struct {
	kind  containerKind
	count int
}

// Writer is a Sink producing compact JSON text. Misuse such as a value
// without a field name inside an object is recorded and reported by Bytes.
type Writer struct {
	buf      bytes.Buffer
	stack    []writerFrame
	afterKey bool
	roots    int
	err      error
}

var _ Sink = (*Writer)(nil)

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) fail(format string, args ...any) {
	if w.err == nil {
		w.err = fmt.Errorf(format, args...)
	}
}

// beforeValue writes the separator a value needs in the current position.
func (w *Writer) beforeValue() {
	if w.afterKey {
		w.afterKey = false
		return
	}
	n := len(w.stack)
	if n == 0 {
		if w.roots > 0 {
			w.fail("jsontok: more than one top-level value")
		}
		w.roots++
		return
	}
	top := &w.stack[n-1]
	if top.kind == inObject {
		w.fail("jsontok: value without field name")
		return
	}
	if top.count > 0 {
		w.buf.WriteByte(',')
	}
	top.count++
}

func (w *Writer) StartObject() {
	w.beforeValue()
	w.buf.WriteByte('{')
	w.stack = append(w.stack, writerFrame{kind: inObject})
}

func (w *Writer) EndObject() { w.end(inObject, '}') }

func (w *Writer) StartArray() {
	w.beforeValue()
	w.buf.WriteByte('[')
	w.stack = append(w.stack, writerFrame{kind: inArray})
}

func (w *Writer) EndArray() { w.end(inArray, ']') }

func (w *Writer) end(kind containerKind, b byte) {
	n := len(w.stack)
	if n == 0 || w.stack[n-1].kind != kind || w.afterKey {
		w.fail("jsontok: unbalanced %q", b)
		return
	}
	w.stack = w.stack[:n-1]
	w.buf.WriteByte(b)
}

func (w *Writer) Field(name string) {
	n := len(w.stack)
	if n == 0 || w.stack[n-1].kind != inObject || w.afterKey {
		w.fail("jsontok: field %q outside object", name)
		return
	}
	top := &w.stack[n-1]
	if top.count > 0 {
		w.buf.WriteByte(',')
	}
	top.count++
	w.writeQuoted(name)
	w.buf.WriteByte(':')
	w.afterKey = true
}

func (w *Writer) String(s string) {
	w.beforeValue()
	w.writeQuoted(s)
}

func (w *Writer) Number(f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		w.fail("jsontok: unsupported number %v", f)
		return
	}
	w.beforeValue()
	w.buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
}

func (w *Writer) RawNumber(lit string) {
	w.beforeValue()
	w.buf.WriteString(lit)
}

func (w *Writer) Bool(b bool) {
	w.beforeValue()
	w.buf.WriteString(strconv.FormatBool(b))
}

func (w *Writer) Null() {
	w.beforeValue()
	w.buf.WriteString("null")
}

func (w *Writer) writeQuoted(s string) {
	q, err := j.Marshal(s)
	if err != nil {
		w.fail("jsontok: quote string: %w", err)
		return
	}
	w.buf.Write(q)
}

// Bytes returns the document written so far. It fails if a container is
// still open or the sink was misused.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	if len(w.stack) > 0 || w.afterKey {
		return nil, errors.New("jsontok: unterminated document")
	}
	return w.buf.Bytes(), nil
}
