package geocodec

import (
	"errors"
	"fmt"
	"io"

	"github.com/mohammed-shakir/geoclient/pkg/geo"
	"github.com/mohammed-shakir/geoclient/pkg/jsontok"
)

// DecodeFeature reads a single Feature, e.g. GET /1.0/features/{handle}.json.
func DecodeFeature(r io.Reader) (*geo.Feature, error) {
	return decode(r, "feature", func(c jsontok.Cursor) (*geo.Feature, error) {
		f, err := readFeature(c)
		if err == nil && f == nil {
			err = errors.New("null feature")
		}
		return f, err
	})
}

// DecodeContext reads a context lookup response.
func DecodeContext(r io.Reader) (*geo.Context, error) {
	return decode(r, "context", readContext)
}

// DecodeFeatures reads a list of features as returned by places and nearby
// lookups.
func DecodeFeatures(r io.Reader) ([]*geo.Feature, error) {
	return decode(r, "features", readFeatureList)
}

// DecodeLayers reads one page of layers.
func DecodeLayers(r io.Reader) (*geo.LayersResult, error) {
	return decode(r, "layers", readLayersResult)
}

func DecodeLayer(r io.Reader) (geo.Layer, error) {
	return decode(r, "layer", readLayer)
}

// DecodeRecord reads a record stored in a layer. Only Feature records are
// supported; see ErrUnsupportedRecord and ErrMissingRecordType.
func DecodeRecord(r io.Reader) (geo.Record, error) {
	return decode(r, "record", readRecord)
}

func decode[T any](r io.Reader, what string, read func(jsontok.Cursor) (T, error)) (T, error) {
	var zero T
	c := jsontok.NewReader(r)
	if _, err := c.Next(); err != nil {
		if errors.Is(err, io.EOF) {
			return zero, fmt.Errorf("decode %s: empty document: %w", what, io.ErrUnexpectedEOF)
		}
		return zero, fmt.Errorf("decode %s: %w", what, err)
	}
	v, err := read(c)
	if err != nil {
		return zero, fmt.Errorf("decode %s: %w", what, err)
	}
	if k, err := c.Next(); !errors.Is(err, io.EOF) {
		if err != nil {
			return zero, fmt.Errorf("decode %s: after document: %w", what, err)
		}
		return zero, fmt.Errorf("decode %s: unexpected %s after document", what, k)
	}
	return v, nil
}
