package geocodec

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/mohammed-shakir/geoclient/pkg/geo"
	"github.com/mohammed-shakir/geoclient/pkg/jsontok"
)

// cursorAt returns a cursor positioned on the first token of doc.
func cursorAt(t *testing.T, doc string) jsontok.Cursor {
	t.Helper()
	c := jsontok.NewReader(strings.NewReader(doc))
	if _, err := c.Next(); err != nil {
		t.Fatalf("first token: %v", err)
	}
	return c
}

func decodeGeometry(t *testing.T, doc string) (geo.Geometry, error) {
	t.Helper()
	return readGeometry(cursorAt(t, doc))
}

func TestCoordTree_Depths(t *testing.T) {
	tests := []struct {
		doc   string
		depth int
	}{
		{`[1,2]`, 1},
		{`[[1,2],[3,4]]`, 2},
		{`[[[0,0],[1,0],[1,1]]]`, 3},
		{`[]`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.doc, func(t *testing.T) {
			c := cursorAt(t, tt.doc)
			n, err := readCoordTree(c)
			if err != nil {
				t.Fatalf("readCoordTree: %v", err)
			}
			if n.depth() != tt.depth {
				t.Fatalf("depth=%d want %d", n.depth(), tt.depth)
			}
			if k, err := c.Next(); !errors.Is(err, io.EOF) {
				t.Fatalf("tree left tokens behind: %v %v", k, err)
			}
		})
	}
}

func TestCoordTree_Malformed(t *testing.T) {
	t.Run("unexpected-token", func(t *testing.T) {
		_, err := readCoordTree(cursorAt(t, `[1,"two"]`))
		if !errors.Is(err, ErrMalformedGeometry) {
			t.Fatalf("err=%v want ErrMalformedGeometry", err)
		}
	})
	t.Run("object-inside", func(t *testing.T) {
		_, err := readCoordTree(cursorAt(t, `[[1,2],{"x":1}]`))
		if !errors.Is(err, ErrMalformedGeometry) {
			t.Fatalf("err=%v want ErrMalformedGeometry", err)
		}
	})
	t.Run("unterminated", func(t *testing.T) {
		rp := jsontok.NewReplay([]jsontok.Token{
			{Kind: jsontok.BeginArray},
			{Kind: jsontok.BeginArray},
			{Kind: jsontok.Number, Text: "1"},
			{Kind: jsontok.EndArray},
		})
		_, _ = rp.Next()
		_, err := readCoordTree(rp)
		if !errors.Is(err, ErrMalformedGeometry) {
			t.Fatalf("err=%v want ErrMalformedGeometry", err)
		}
	})
}

func TestGeometry_PointIsOrderIndependent(t *testing.T) {
	a, err := decodeGeometry(t, `{"type":"Point","coordinates":[1,2]}`)
	if err != nil {
		t.Fatalf("type-first: %v", err)
	}
	b, err := decodeGeometry(t, `{"coordinates":[1,2],"type":"Point"}`)
	if err != nil {
		t.Fatalf("coordinates-first: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("decoded differently: %#v vs %#v", a, b)
	}
	want := geo.Point{Coordinates: geo.Position{X: 1, Y: 2}}
	if !reflect.DeepEqual(a, want) {
		t.Fatalf("got %#v want %#v", a, want)
	}
}

func TestGeometry_CaseInsensitiveTypeAndZ(t *testing.T) {
	g, err := decodeGeometry(t, `{"type":"point","crs":{"type":"name","properties":{"name":"EPSG:4326"}},"coordinates":[1,2,3]}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	p, ok := g.(geo.Point)
	if !ok {
		t.Fatalf("got %T want geo.Point", g)
	}
	if !p.Coordinates.HasZ || p.Coordinates.Z != 3 {
		t.Fatalf("z lost: %+v", p.Coordinates)
	}
}

func TestGeometry_PolygonTwoRings(t *testing.T) {
	g, err := decodeGeometry(t, `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1]],[[2,2],[3,2],[3,3]]]}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	poly, ok := g.(geo.Polygon)
	if !ok {
		t.Fatalf("got %T want geo.Polygon", g)
	}
	if len(poly.Coordinates) != 2 {
		t.Fatalf("rings=%d want 2", len(poly.Coordinates))
	}
	for i, ring := range poly.Coordinates {
		if len(ring) != 3 {
			t.Fatalf("ring %d has %d positions want 3", i, len(ring))
		}
	}
	if got := poly.Coordinates[1][1]; got.X != 3 || got.Y != 2 {
		t.Fatalf("ring 1 pos 1 = %+v want (3,2)", got)
	}

	b, err := marshalGeometry(poly)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"type":"Polygon","coordinates":[[0,0,1,0,1,1],[2,2,3,2,3,3]]}`
	if string(b) != want {
		t.Fatalf("encoded %s\nwant    %s", b, want)
	}
}

func TestGeometry_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"missing-type", `{"coordinates":[1,2]}`, ErrUnsupportedGeometry},
		{"unknown-type", `{"type":"Circle","coordinates":[1,2]}`, ErrUnsupportedGeometry},
		{"linestring", `{"type":"LineString","coordinates":[[1,2],[3,4]]}`, ErrUnsupportedGeometry},
		{"point-too-long", `{"type":"Point","coordinates":[1,2,3,4]}`, ErrMalformedGeometry},
		{"point-nested", `{"type":"Point","coordinates":[[1,2]]}`, ErrMalformedGeometry},
		{"point-no-coords", `{"type":"Point"}`, ErrMalformedGeometry},
		{"polygon-flat", `{"type":"Polygon","coordinates":[0,0,1,1]}`, ErrMalformedGeometry},
		{"polygon-odd-ring", `{"type":"Polygon","coordinates":[[0,0,1]]}`, ErrMalformedGeometry},
		{"polygon-depth-two", `{"type":"Polygon","coordinates":[[1,2],[3,4]]}`, ErrMalformedGeometry},
		{"polygon-short-flat-ring", `{"type":"Polygon","coordinates":[[0,0,1,1],[5,6]]}`, ErrMalformedGeometry},
		{"polygon-mixed-rings", `{"type":"Polygon","coordinates":[[[0,0],[1,1]],[0,0,1,1]]}`, ErrMalformedGeometry},
		{"polygon-depth-four", `{"type":"Polygon","coordinates":[[[[0,0]]]]}`, ErrMalformedGeometry},
		{"bad-token", `{"type":"Point","coordinates":[1,true]}`, ErrMalformedGeometry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeGeometry(t, tt.doc)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err=%v want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeFeature_RejectsBadSeparators(t *testing.T) {
	docs := map[string]string{
		"missing-comma":  `{"type":"Feature" "id":"x"}`,
		"double-comma":   `{"type":"Feature",,"id":"x"}`,
		"trailing-comma": `{"type":"Feature","id":"x",}`,
		"missing-colon":  `{"type" "Feature","id":"x"}`,
		"array-commas":   `{"type":"Feature","geometry":{"type":"Point","coordinates":[1 2]}}`,
		"trailing-value": `{"type":"Feature","id":"x"} {"type":"Feature"}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			f, err := DecodeFeature(strings.NewReader(doc))
			if err == nil {
				t.Fatalf("decoded %+v from %s, want error", f, doc)
			}
		})
	}

	f, err := DecodeFeature(strings.NewReader(" {\"type\":\"Feature\",\"id\":\"x\"}\n"))
	if err != nil || f.ID != "x" {
		t.Fatalf("well-formed doc: %+v, %v", f, err)
	}
}

func TestGeometry_NullIsNil(t *testing.T) {
	g, err := decodeGeometry(t, `null`)
	if err != nil || g != nil {
		t.Fatalf("got %v, %v want nil, nil", g, err)
	}
}

func TestSkipValue_LeavesCursorAfterValue(t *testing.T) {
	c := cursorAt(t, `{"unknown":{"a":{"b":{"c":[1,{"d":2}]}}},"after":"yes"}`)
	if k, _ := c.Next(); k != jsontok.Field {
		t.Fatalf("want field, got %v", k)
	}
	if err := skipValue(c); err != nil {
		t.Fatalf("skipValue: %v", err)
	}
	if k, _ := c.Next(); k != jsontok.Field || c.Current().Text != "after" {
		t.Fatalf("after skip got %v %q want field \"after\"", k, c.Current().Text)
	}

	c = cursorAt(t, `{"n":42,"s":"x"}`)
	_, _ = c.Next()
	if err := skipValue(c); err != nil {
		t.Fatalf("skip scalar: %v", err)
	}
	if k, _ := c.Next(); k != jsontok.Field || c.Current().Text != "s" {
		t.Fatalf("after scalar skip got %v %q", k, c.Current().Text)
	}
}

func TestSkipValue_Truncated(t *testing.T) {
	rp := jsontok.NewReplay([]jsontok.Token{
		{Kind: jsontok.Field, Text: "x"},
		{Kind: jsontok.BeginArray},
		{Kind: jsontok.BeginObject},
	})
	_, _ = rp.Next()
	if err := skipValue(rp); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err=%v want ErrUnexpectedEOF", err)
	}
}

func TestDecodeFeature_TagsAndProperties(t *testing.T) {
	doc := `{
		"properties": {
			"name": "Cafe",
			"tags": ["a", "b"],
			"classifiers": [{"category":"Restaurant","type":"Food","subcategory":"Cafe","extra":{"x":1}}],
			"rating": 4.5,
			"open": true,
			"phone": null,
			"hours": {"mon": [9, 17]}
		},
		"id": "SG_1",
		"geometry": {"coordinates": [-122.4, 37.7], "type": "Point"},
		"created": 1269832000,
		"type": "Feature"
	}`
	f, err := DecodeFeature(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("DecodeFeature: %v", err)
	}
	if f.ID != "SG_1" || f.Type != geo.RecordTypeFeature {
		t.Fatalf("id/type = %q/%q", f.ID, f.Type)
	}
	tags, ok := f.Properties.Get("tags")
	if !ok || !tags.IsList() || tags.String() != "[ab]" {
		t.Fatalf("tags=%+v str=%q", tags, tags.String())
	}
	cls, _ := f.Properties.Get("classifiers")
	want := []geo.Classifier{{Category: "Restaurant", Type: "Food", Subcategory: "Cafe"}}
	if !reflect.DeepEqual(cls.Classifiers(), want) {
		t.Fatalf("classifiers=%+v want %+v", cls.Classifiers(), want)
	}

	scalars := map[string]string{
		"name":   "Cafe",
		"rating": "4.5",
		"open":   "true",
		"phone":  "",
		"hours":  `{"mon":[9,17]}`,
	}
	for k, wantV := range scalars {
		v, ok := f.Properties.Get(k)
		if !ok || v.IsList() || v.String() != wantV {
			t.Errorf("property %s = %q (list=%v ok=%v) want %q", k, v.String(), v.IsList(), ok, wantV)
		}
	}
	if keys := f.Properties.Keys(); keys[0] != "name" || keys[len(keys)-1] != "hours" {
		t.Fatalf("insertion order lost: %v", keys)
	}

	b, err := MarshalFeature(&geo.Feature{
		Type:       f.Type,
		ID:         f.ID,
		Geometry:   f.Geometry,
		Properties: onlyKeys(f.Properties, "name", "tags"),
	})
	if err != nil {
		t.Fatalf("MarshalFeature: %v", err)
	}
	wantJSON := `{"type":"Feature","id":"SG_1","geometry":{"type":"Point","coordinates":[-122.4,37.7]},"properties":{"name":"Cafe","tags":"[ab]"}}`
	if string(b) != wantJSON {
		t.Fatalf("encoded %s\nwant    %s", b, wantJSON)
	}
}

func onlyKeys(p *geo.Properties, keys ...string) *geo.Properties {
	out := geo.NewProperties()
	for _, k := range keys {
		if v, ok := p.Get(k); ok {
			out.Set(k, v)
		}
	}
	return out
}

func TestDecodeFeature_RejectsOtherTypes(t *testing.T) {
	_, err := DecodeFeature(strings.NewReader(`{"type":"route","geometry":null}`))
	if !errors.Is(err, ErrUnsupportedRecord) {
		t.Fatalf("err=%v want ErrUnsupportedRecord", err)
	}
	_, err = DecodeFeature(strings.NewReader(`null`))
	if err == nil {
		t.Fatalf("expected error for null feature")
	}
	_, err = DecodeFeature(strings.NewReader(``))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("empty body err=%v", err)
	}
}

func TestDecodeRecord_Dispatch(t *testing.T) {
	t.Run("feature-type-last", func(t *testing.T) {
		rec, err := DecodeRecord(strings.NewReader(`{"id":"r1","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"type":"nested-not-record"},"type":"FEATURE"}`))
		if err != nil {
			t.Fatalf("DecodeRecord: %v", err)
		}
		f, ok := rec.(*geo.Feature)
		if !ok {
			t.Fatalf("got %T want *geo.Feature", rec)
		}
		if f.ID != "r1" || f.Geometry == nil || rec.RecordType() != geo.RecordTypeFeature {
			t.Fatalf("feature=%+v", f)
		}
		if v, _ := f.Properties.Get("type"); v.String() != "nested-not-record" {
			t.Fatalf("property type=%q", v.String())
		}
	})
	t.Run("unsupported", func(t *testing.T) {
		rec, err := DecodeRecord(strings.NewReader(`{"type":"route"}`))
		if !errors.Is(err, ErrUnsupportedRecord) {
			t.Fatalf("err=%v want ErrUnsupportedRecord", err)
		}
		if rec != nil {
			t.Fatalf("record=%v want nil", rec)
		}
	})
	t.Run("missing-type", func(t *testing.T) {
		_, err := DecodeRecord(strings.NewReader(`{"id":"x","properties":{"type":"Feature"}}`))
		if !errors.Is(err, ErrMissingRecordType) {
			t.Fatalf("err=%v want ErrMissingRecordType", err)
		}
	})
	t.Run("not-object", func(t *testing.T) {
		if _, err := DecodeRecord(strings.NewReader(`[]`)); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestDecodeContext_SkipsUnknownMembers(t *testing.T) {
	doc := `{
		"query": {"latitude": 37.77, "longitude": -122.41, "ip": "1.2.3.4", "address": null},
		"weather": {"temperature": "65F", "forecast": {"today": {"conditions": ["sunny", {"wind": [1, 2]}]}}},
		"timestamp": 1269832000.5,
		"intersections": [[{"names": ["A St", "B St"]}]],
		"features": [
			{"handle": "SG_a", "name": "San Francisco", "license": "CC", "bounds": [-123, 37, -122, 38],
			 "abbr": null, "classifiers": [{"category": "Municipal", "type": "Region", "subcategory": "City"}],
			 "href": {"x": [1]}}
		],
		"demographics": {"metro_score": 9, "extra": [1, 2]},
		"address": {"type": "Feature", "geometry": {"type": "Point", "coordinates": [-122.41, 37.77]},
		            "properties": {"address": "1 Main St"}}
	}`
	ctx, err := DecodeContext(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("DecodeContext: %v", err)
	}
	if ctx.Query.Latitude != 37.77 || ctx.Query.Longitude != -122.41 || ctx.Query.IP != "1.2.3.4" {
		t.Fatalf("query=%+v", ctx.Query)
	}
	if ctx.Timestamp != 1269832000.5 {
		t.Fatalf("timestamp=%v", ctx.Timestamp)
	}
	if len(ctx.Features) != 1 {
		t.Fatalf("features=%d want 1", len(ctx.Features))
	}
	ref := ctx.Features[0]
	if ref.Handle != "SG_a" || ref.Abbr != "" || len(ref.Bounds) != 4 || ref.Bounds[2] != -122 {
		t.Fatalf("ref=%+v", ref)
	}
	if len(ref.Classifiers) != 1 || ref.Classifiers[0].Subcategory != "City" {
		t.Fatalf("classifiers=%+v", ref.Classifiers)
	}
	if ctx.Demographics == nil || ctx.Demographics.MetroScore != 9 {
		t.Fatalf("demographics=%+v", ctx.Demographics)
	}
	if ctx.Address == nil {
		t.Fatalf("address missing")
	}
	if v, _ := ctx.Address.Properties.Get("address"); v.String() != "1 Main St" {
		t.Fatalf("address property=%q", v.String())
	}
}

func TestDecodeContext_OnlyUnknownMembers(t *testing.T) {
	ctx, err := DecodeContext(strings.NewReader(`{"weather":{"a":{"b":{"c":1}}}}`))
	if err != nil {
		t.Fatalf("DecodeContext: %v", err)
	}
	if ctx.Demographics != nil || ctx.Address != nil || len(ctx.Features) != 0 {
		t.Fatalf("expected empty context, got %+v", ctx)
	}
}

func TestDecodeContext_TruncatedFails(t *testing.T) {
	_, err := DecodeContext(strings.NewReader(`{"weather":{"a":[1,2`))
	if err == nil {
		t.Fatalf("expected error for truncated document")
	}
}

func TestDecodeLayers(t *testing.T) {
	doc := `{"layers":[
		{"name":"com.example.cafes","title":"Cafes","description":"All cafes","public":true,
		 "created":1262304000000,"updated":1262304001000,"callback_urls":["http://x"]},
		{"name":"com.example.bars","public":false}
	],"next_cursor":"abc","total":2}`
	res, err := DecodeLayers(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("DecodeLayers: %v", err)
	}
	if len(res.Layers) != 2 || res.NextCursor != "abc" {
		t.Fatalf("res=%+v", res)
	}
	l := res.Layers[0]
	if l.Name != "com.example.cafes" || l.Title != "Cafes" || !l.Public || l.Created != 1262304000000 || l.Updated != 1262304001000 {
		t.Fatalf("layer=%+v", l)
	}

	last, err := DecodeLayers(strings.NewReader(`{"layers":[],"next_cursor":null}`))
	if err != nil || last.NextCursor != "" || len(last.Layers) != 0 {
		t.Fatalf("last page=%+v err=%v", last, err)
	}
}

func TestDecodeFeatures_ArrayAndCollection(t *testing.T) {
	arr := `[{"type":"Feature","id":"a","geometry":{"type":"Point","coordinates":[1,2]}},null,{"id":"b","geometry":null}]`
	fs, err := DecodeFeatures(strings.NewReader(arr))
	if err != nil {
		t.Fatalf("array: %v", err)
	}
	if len(fs) != 2 || fs[0].ID != "a" || fs[1].ID != "b" || fs[1].Geometry != nil {
		t.Fatalf("features=%+v", fs)
	}

	fc := `{"total":1,"type":"FeatureCollection","features":[{"type":"Feature","id":"c"}]}`
	fs, err = DecodeFeatures(strings.NewReader(fc))
	if err != nil {
		t.Fatalf("collection: %v", err)
	}
	if len(fs) != 1 || fs[0].ID != "c" {
		t.Fatalf("features=%+v", fs)
	}

	if _, err := DecodeFeatures(strings.NewReader(`{"type":"FeatureCollection"}`)); err == nil {
		t.Fatalf("expected error without features member")
	}
	_, err = DecodeFeatures(strings.NewReader(`[{"type":"Feature","geometry":{"type":"Spiral"}}]`))
	if !errors.Is(err, ErrUnsupportedGeometry) {
		t.Fatalf("err=%v want ErrUnsupportedGeometry", err)
	}
}
