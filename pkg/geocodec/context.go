package geocodec

import (
	"fmt"

	"github.com/mohammed-shakir/geoclient/pkg/geo"
	"github.com/mohammed-shakir/geoclient/pkg/jsontok"
)

// readContext reads a context response. Members this model does not carry
// (weather, intersections, ...) are skipped.
func readContext(c jsontok.Cursor) (*geo.Context, error) {
	ctx := &geo.Context{}
	err := eachField(c, func(name string) error {
		var err error
		switch name {
		case "query":
			if _, err = next(c); err == nil {
				ctx.Query, err = readQuery(c)
			}
		case "timestamp":
			ctx.Timestamp, err = readFloat(c)
		case "features":
			if _, err = next(c); err == nil {
				ctx.Features, err = readFeatureRefs(c)
			}
		case "demographics":
			if _, err = next(c); err == nil {
				ctx.Demographics, err = readDemographics(c)
			}
		case "address":
			if _, err = next(c); err == nil {
				ctx.Address, err = readFeature(c)
			}
		default:
			err = skipValue(c)
		}
		if err != nil {
			return fmt.Errorf("context %q: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ctx, nil
}

func readQuery(c jsontok.Cursor) (geo.Query, error) {
	var q geo.Query
	if c.Current().Kind == jsontok.Null {
		return q, nil
	}
	err := eachField(c, func(name string) error {
		var err error
		switch name {
		case "latitude":
			q.Latitude, err = readFloat(c)
		case "longitude":
			q.Longitude, err = readFloat(c)
		case "ip":
			q.IP, err = readString(c)
		default:
			err = skipValue(c)
		}
		return err
	})
	return q, err
}

func readDemographics(c jsontok.Cursor) (*geo.Demographics, error) {
	if c.Current().Kind == jsontok.Null {
		return nil, nil
	}
	d := &geo.Demographics{}
	err := eachField(c, func(name string) error {
		if name != "metro_score" {
			return skipValue(c)
		}
		n, err := readInt64(c)
		if err != nil {
			return err
		}
		d.MetroScore = int(n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func readFeatureRefs(c jsontok.Cursor) ([]geo.FeatureRef, error) {
	if c.Current().Kind == jsontok.Null {
		return nil, nil
	}
	out := []geo.FeatureRef{}
	err := eachElement(c, func() error {
		ref, err := readFeatureRef(c)
		if err != nil {
			return err
		}
		out = append(out, ref)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func readFeatureRef(c jsontok.Cursor) (geo.FeatureRef, error) {
	var ref geo.FeatureRef
	err := eachField(c, func(name string) error {
		var err error
		switch name {
		case "handle":
			ref.Handle, err = readString(c)
		case "name":
			ref.Name, err = readString(c)
		case "license":
			ref.License, err = readString(c)
		case "bounds":
			ref.Bounds, err = readFloatList(c)
		case "abbr":
			ref.Abbr, err = readString(c)
		case "classifiers":
			if _, err = next(c); err == nil {
				ref.Classifiers, err = readClassifiers(c)
			}
		default:
			err = skipValue(c)
		}
		if err != nil {
			return fmt.Errorf("feature ref %q: %w", name, err)
		}
		return nil
	})
	return ref, err
}
