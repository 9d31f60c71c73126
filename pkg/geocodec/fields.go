package geocodec

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/mohammed-shakir/geoclient/pkg/jsontok"
)

// Readers in this package share one convention: on entry the cursor sits on
// the first token of the value to read, on return it sits on the value's
// last token. Field handlers passed to eachField start on the field name.

// next advances c; running out of tokens mid-document is unexpected.
func next(c jsontok.Cursor) (jsontok.Kind, error) {
	k, err := c.Next()
	if errors.Is(err, io.EOF) {
		return k, io.ErrUnexpectedEOF
	}
	return k, err
}

// eachField calls fn with every member name of the object c is on. fn must
// consume the member's value.
func eachField(c jsontok.Cursor, fn func(name string) error) error {
	if k := c.Current().Kind; k != jsontok.BeginObject {
		return fmt.Errorf("expected object, got %s", k)
	}
	for {
		k, err := next(c)
		if err != nil {
			return err
		}
		switch k {
		case jsontok.EndObject:
			return nil
		case jsontok.Field:
			name := c.Current().Text
			if err := fn(name); err != nil {
				return err
			}
		default:
			return fmt.Errorf("expected member name, got %s", k)
		}
	}
}

// eachElement calls fn once per element of the array c is on, with the
// cursor on the element's first token.
func eachElement(c jsontok.Cursor, fn func() error) error {
	if k := c.Current().Kind; k != jsontok.BeginArray {
		return fmt.Errorf("expected array, got %s", k)
	}
	for {
		k, err := next(c)
		if err != nil {
			return err
		}
		if k == jsontok.EndArray {
			return nil
		}
		if err := fn(); err != nil {
			return err
		}
	}
}

func readString(c jsontok.Cursor) (string, error) {
	k, err := next(c)
	if err != nil {
		return "", err
	}
	if !k.IsScalar() {
		return "", fmt.Errorf("expected string, got %s", k)
	}
	return c.Current().ScalarText(), nil
}

func readFloat(c jsontok.Cursor) (float64, error) {
	k, err := next(c)
	if err != nil {
		return 0, err
	}
	tok := c.Current()
	switch k {
	case jsontok.Number:
		return tok.Float()
	case jsontok.Null:
		return 0, nil
	case jsontok.String:
		f, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return 0, fmt.Errorf("parse number %q: %w", tok.Text, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %s", k)
	}
}

func readInt64(c jsontok.Cursor) (int64, error) {
	k, err := next(c)
	if err != nil {
		return 0, err
	}
	tok := c.Current()
	switch k {
	case jsontok.Number:
		return tok.Int64()
	case jsontok.Null:
		return 0, nil
	case jsontok.String:
		return jsontok.Token{Kind: jsontok.Number, Text: tok.Text}.Int64()
	default:
		return 0, fmt.Errorf("expected integer, got %s", k)
	}
}

func readBool(c jsontok.Cursor) (bool, error) {
	k, err := next(c)
	if err != nil {
		return false, err
	}
	tok := c.Current()
	switch k {
	case jsontok.Bool:
		return tok.Bool, nil
	case jsontok.Null:
		return false, nil
	case jsontok.String:
		b, err := strconv.ParseBool(tok.Text)
		if err != nil {
			return false, fmt.Errorf("parse bool %q: %w", tok.Text, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("expected bool, got %s", k)
	}
}

func readFloatList(c jsontok.Cursor) ([]float64, error) {
	k, err := next(c)
	if err != nil {
		return nil, err
	}
	if k == jsontok.Null {
		return nil, nil
	}
	out := []float64{}
	err = eachElement(c, func() error {
		f, err := c.Current().Float()
		if err != nil {
			return err
		}
		out = append(out, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
