package geocodec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mohammed-shakir/geoclient/pkg/geo"
	"github.com/mohammed-shakir/geoclient/pkg/jsontok"
)

// readFeature reads a Feature object; null yields nil. A missing type is
// taken as "Feature", any other type is rejected.
func readFeature(c jsontok.Cursor) (*geo.Feature, error) {
	if c.Current().Kind == jsontok.Null {
		return nil, nil
	}
	f := &geo.Feature{}
	err := eachField(c, func(name string) error {
		var err error
		switch name {
		case "geometry":
			if _, err = next(c); err == nil {
				f.Geometry, err = readGeometry(c)
			}
		case "type":
			f.Type, err = readString(c)
		case "id":
			f.ID, err = readString(c)
		case "properties":
			if _, err = next(c); err == nil {
				f.Properties, err = readProperties(c)
			}
		default:
			err = skipValue(c)
		}
		if err != nil {
			return fmt.Errorf("feature %q: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case f.Type == "":
		f.Type = geo.RecordTypeFeature
	case strings.EqualFold(f.Type, geo.RecordTypeFeature):
		f.Type = geo.RecordTypeFeature
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedRecord, f.Type)
	}
	return f, nil
}

// readFeatureList accepts a bare array of features or a FeatureCollection
// object carrying them under "features". Null elements are dropped.
func readFeatureList(c jsontok.Cursor) ([]*geo.Feature, error) {
	switch c.Current().Kind {
	case jsontok.Null:
		return []*geo.Feature{}, nil
	case jsontok.BeginObject:
		var (
			out   []*geo.Feature
			found bool
		)
		err := eachField(c, func(name string) error {
			if name != "features" {
				return skipValue(c)
			}
			if _, err := next(c); err != nil {
				return err
			}
			fs, err := readFeatureList(c)
			if err != nil {
				return err
			}
			out, found = fs, true
			return nil
		})
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errors.New(`feature collection has no "features" member`)
		}
		return out, nil
	}

	out := []*geo.Feature{}
	i := 0
	err := eachElement(c, func() error {
		defer func() { i++ }()
		f, err := readFeature(c)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		if f != nil {
			out = append(out, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
