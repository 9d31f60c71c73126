package geocodec

import (
	"fmt"
	"strings"

	"github.com/mohammed-shakir/geoclient/pkg/geo"
	"github.com/mohammed-shakir/geoclient/pkg/jsontok"
)

// readRecord dispatches on the record's type member. The object is
// recorded first because type may follow the members it governs. Only
// Feature records are supported; anything else is an error, never nil.
func readRecord(c jsontok.Cursor) (geo.Record, error) {
	if k := c.Current().Kind; k != jsontok.BeginObject {
		return nil, fmt.Errorf("record: expected object, got %s", k)
	}
	toks, err := jsontok.Capture(c)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	typ, ok := recordType(toks)
	if !ok {
		return nil, ErrMissingRecordType
	}
	if !strings.EqualFold(typ, geo.RecordTypeFeature) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedRecord, typ)
	}

	rp := jsontok.NewReplay(toks)
	if _, err := rp.Next(); err != nil {
		return nil, err
	}
	f, err := readFeature(rp)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// recordType finds the top-level type member in a recorded object.
func recordType(toks []jsontok.Token) (string, bool) {
	depth := 0
	for i, t := range toks {
		switch t.Kind {
		case jsontok.BeginObject, jsontok.BeginArray:
			depth++
		case jsontok.EndObject, jsontok.EndArray:
			depth--
		case jsontok.Field:
			if depth != 1 || t.Text != "type" || i+1 >= len(toks) {
				continue
			}
			v := toks[i+1]
			if v.Kind == jsontok.Null || !v.Kind.IsScalar() {
				return "", false
			}
			return v.ScalarText(), true
		}
	}
	return "", false
}
