package geocodec

import (
	"fmt"
	"strings"

	"github.com/mohammed-shakir/geoclient/pkg/geo"
	"github.com/mohammed-shakir/geoclient/pkg/jsontok"
)

// readGeometry reads a geometry object; null yields a nil Geometry.
func readGeometry(c jsontok.Cursor) (geo.Geometry, error) {
	if c.Current().Kind == jsontok.Null {
		return nil, nil
	}
	var (
		typ    string
		coords *coordNode
	)
	err := eachField(c, func(name string) error {
		switch name {
		case "type":
			s, err := readString(c)
			if err != nil {
				return fmt.Errorf("geometry type: %w", err)
			}
			typ = s
		case "coordinates":
			k, err := next(c)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrMalformedGeometry, err)
			}
			if k == jsontok.Null {
				return nil
			}
			tree, err := readCoordTree(c)
			if err != nil {
				return err
			}
			coords = &tree
		default:
			return skipValue(c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buildGeometry(typ, coords)
}

// buildGeometry interprets captured coordinates once the type is known.
func buildGeometry(typ string, coords *coordNode) (geo.Geometry, error) {
	switch {
	case strings.EqualFold(typ, geo.TypePoint):
		if coords == nil {
			return nil, fmt.Errorf("%w: point without coordinates", ErrMalformedGeometry)
		}
		p, err := toPosition(*coords)
		if err != nil {
			return nil, err
		}
		return geo.Point{Coordinates: p}, nil
	case strings.EqualFold(typ, geo.TypePolygon):
		if coords == nil {
			return nil, fmt.Errorf("%w: polygon without coordinates", ErrMalformedGeometry)
		}
		rings, err := toPolygon(*coords)
		if err != nil {
			return nil, err
		}
		return geo.Polygon{Coordinates: rings}, nil
	case typ == "":
		return nil, fmt.Errorf("%w: missing type", ErrUnsupportedGeometry)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGeometry, typ)
	}
}
