package geocodec

import (
	"fmt"
	"strings"

	"github.com/mohammed-shakir/geoclient/pkg/geo"
	"github.com/mohammed-shakir/geoclient/pkg/jsontok"
)

// EncodeGeometry writes g as {"type":...,"coordinates":...}. A Point is
// [x, y]; each Polygon ring is flattened to [x0, y0, x1, y1, ...], which is
// the form the service accepts on write. Nothing is written for an
// unsupported geometry, a nil pointer included.
func EncodeGeometry(s jsontok.Sink, g geo.Geometry) error {
	switch t := g.(type) {
	case geo.Point:
		writePoint(s, t)
	case *geo.Point:
		if t == nil {
			return fmt.Errorf("%w: nil *geo.Point", ErrUnsupportedGeometry)
		}
		writePoint(s, *t)
	case geo.Polygon:
		writePolygon(s, t)
	case *geo.Polygon:
		if t == nil {
			return fmt.Errorf("%w: nil *geo.Polygon", ErrUnsupportedGeometry)
		}
		writePolygon(s, *t)
	case nil:
		return fmt.Errorf("%w: nil geometry", ErrUnsupportedGeometry)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedGeometry, g.GeometryType())
	}
	return nil
}

func writePoint(s jsontok.Sink, p geo.Point) {
	s.StartObject()
	s.Field("type")
	s.String(geo.TypePoint)
	s.Field("coordinates")
	s.StartArray()
	s.Number(p.Coordinates.X)
	s.Number(p.Coordinates.Y)
	s.EndArray()
	s.EndObject()
}

func writePolygon(s jsontok.Sink, p geo.Polygon) {
	s.StartObject()
	s.Field("type")
	s.String(geo.TypePolygon)
	s.Field("coordinates")
	s.StartArray()
	for _, ring := range p.Coordinates {
		s.StartArray()
		for _, pos := range ring {
			s.Number(pos.X)
			s.Number(pos.Y)
		}
		s.EndArray()
	}
	s.EndArray()
	s.EndObject()
}

// EncodeProperties writes every property as a string, lists included:
// tags ["a","b"] are written as "[ab]", not re-expanded into an array.
func EncodeProperties(s jsontok.Sink, p *geo.Properties) {
	s.StartObject()
	p.Range(func(k string, v geo.PropertyValue) bool {
		s.Field(k)
		s.String(v.String())
		return true
	})
	s.EndObject()
}

// EncodeFeature writes f as the body of a record write. A nil geometry is
// written as null. Only "Feature" records are written; the type is
// matched case-insensitively and always written as "Feature".
func EncodeFeature(s jsontok.Sink, f *geo.Feature) error {
	if f == nil {
		return fmt.Errorf("%w: nil feature", ErrUnsupportedRecord)
	}
	if typ := f.RecordType(); !strings.EqualFold(typ, geo.RecordTypeFeature) {
		return fmt.Errorf("%w: %q", ErrUnsupportedRecord, typ)
	}
	s.StartObject()
	s.Field("type")
	s.String(geo.RecordTypeFeature)
	if f.ID != "" {
		s.Field("id")
		s.String(f.ID)
	}
	s.Field("geometry")
	if f.Geometry == nil {
		s.Null()
	} else if err := EncodeGeometry(s, f.Geometry); err != nil {
		return err
	}
	s.Field("properties")
	EncodeProperties(s, f.Properties)
	s.EndObject()
	return nil
}

// EncodeLayer writes l; created and updated are omitted while zero, as in
// a layer write.
func EncodeLayer(s jsontok.Sink, l geo.Layer) {
	s.StartObject()
	s.Field("name")
	s.String(l.Name)
	s.Field("title")
	s.String(l.Title)
	s.Field("description")
	s.String(l.Description)
	s.Field("public")
	s.Bool(l.Public)
	if l.Created != 0 {
		s.Field("created")
		s.RawNumber(fmt.Sprint(l.Created))
	}
	if l.Updated != 0 {
		s.Field("updated")
		s.RawNumber(fmt.Sprint(l.Updated))
	}
	s.EndObject()
}

// MarshalFeature returns the JSON body for a record write.
func MarshalFeature(f *geo.Feature) ([]byte, error) {
	w := jsontok.NewWriter()
	if err := EncodeFeature(w, f); err != nil {
		return nil, err
	}
	return w.Bytes()
}

// MarshalLayer returns the JSON body for a layer write.
func MarshalLayer(l geo.Layer) ([]byte, error) {
	w := jsontok.NewWriter()
	EncodeLayer(w, l)
	return w.Bytes()
}
