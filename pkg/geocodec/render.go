package geocodec

import (
	"github.com/mohammed-shakir/geoclient/pkg/geo"
	"github.com/mohammed-shakir/geoclient/pkg/jsontok"
)

// The encoders below render read results in the same member names the
// decoders accept, so rendered output decodes back into the same model.

func EncodeFeatures(s jsontok.Sink, fs []*geo.Feature) error {
	s.StartArray()
	for _, f := range fs {
		if err := EncodeFeature(s, f); err != nil {
			return err
		}
	}
	s.EndArray()
	return nil
}

func EncodeClassifier(s jsontok.Sink, c geo.Classifier) {
	s.StartObject()
	s.Field("category")
	s.String(c.Category)
	s.Field("type")
	s.String(c.Type)
	s.Field("subcategory")
	s.String(c.Subcategory)
	s.EndObject()
}

func EncodeContext(s jsontok.Sink, ctx *geo.Context) error {
	s.StartObject()

	s.Field("query")
	s.StartObject()
	s.Field("latitude")
	s.Number(ctx.Query.Latitude)
	s.Field("longitude")
	s.Number(ctx.Query.Longitude)
	if ctx.Query.IP != "" {
		s.Field("ip")
		s.String(ctx.Query.IP)
	}
	s.EndObject()

	s.Field("timestamp")
	s.Number(ctx.Timestamp)

	s.Field("features")
	s.StartArray()
	for _, ref := range ctx.Features {
		encodeFeatureRef(s, ref)
	}
	s.EndArray()

	if ctx.Demographics != nil {
		s.Field("demographics")
		s.StartObject()
		s.Field("metro_score")
		s.Number(float64(ctx.Demographics.MetroScore))
		s.EndObject()
	}
	if ctx.Address != nil {
		s.Field("address")
		if err := EncodeFeature(s, ctx.Address); err != nil {
			return err
		}
	}
	s.EndObject()
	return nil
}

func encodeFeatureRef(s jsontok.Sink, ref geo.FeatureRef) {
	s.StartObject()
	s.Field("handle")
	s.String(ref.Handle)
	s.Field("name")
	s.String(ref.Name)
	s.Field("license")
	s.String(ref.License)
	s.Field("bounds")
	s.StartArray()
	for _, b := range ref.Bounds {
		s.Number(b)
	}
	s.EndArray()
	s.Field("abbr")
	s.String(ref.Abbr)
	s.Field("classifiers")
	s.StartArray()
	for _, c := range ref.Classifiers {
		EncodeClassifier(s, c)
	}
	s.EndArray()
	s.EndObject()
}

func EncodeLayers(s jsontok.Sink, res *geo.LayersResult) {
	s.StartObject()
	s.Field("layers")
	s.StartArray()
	for _, l := range res.Layers {
		EncodeLayer(s, l)
	}
	s.EndArray()
	if res.NextCursor != "" {
		s.Field("next_cursor")
		s.String(res.NextCursor)
	}
	s.EndObject()
}

func MarshalFeatures(fs []*geo.Feature) ([]byte, error) {
	w := jsontok.NewWriter()
	if err := EncodeFeatures(w, fs); err != nil {
		return nil, err
	}
	return w.Bytes()
}

func MarshalContext(ctx *geo.Context) ([]byte, error) {
	w := jsontok.NewWriter()
	if err := EncodeContext(w, ctx); err != nil {
		return nil, err
	}
	return w.Bytes()
}

func MarshalLayers(res *geo.LayersResult) ([]byte, error) {
	w := jsontok.NewWriter()
	EncodeLayers(w, res)
	return w.Bytes()
}
