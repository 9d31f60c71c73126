package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/geoclient/internal/cache/keys"
	"github.com/mohammed-shakir/geoclient/pkg/geo"
	"github.com/mohammed-shakir/geoclient/pkg/geocodec"
)

// Endpoint names label metrics, cache keys and TTL overrides.
const (
	EndpointFeature = "feature"
	EndpointContext = "context"
	EndpointPlaces  = "places"
	EndpointLayers  = "layers"
	EndpointLayer   = "layer"
	EndpointRecord  = "record"
	EndpointNearby  = "nearby"
)

const (
	OpPut    = "put"
	OpDelete = "delete"
)

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func latLon(lat, lon float64) string { return ftoa(lat) + "," + ftoa(lon) + ".json" }

// ErrInvalidSegment reports a caller value that cannot be used as one URL
// path segment.
var ErrInvalidSegment = errors.New("invalid path segment")

func requireNonEmpty(what, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s is required", what)
	}
	return nil
}

// segment checks a caller value and escapes it as a single path segment, so
// "/" stays inside it and "." or ".." cannot walk the path.
func segment(what, v string) (string, error) {
	if err := requireNonEmpty(what, v); err != nil {
		return "", err
	}
	if v == "." || v == ".." {
		return "", fmt.Errorf("%w: %s %q", ErrInvalidSegment, what, v)
	}
	return url.PathEscape(v), nil
}

// get builds a GET request and its request cache key.
func (c *Client) get(endpoint string, q url.Values, segments ...string) (request, string) {
	r := request{endpoint: endpoint, method: http.MethodGet, segments: segments, query: q}
	return r, keys.Request(endpoint, c.url(r).EscapedPath(), q)
}

// GetFeature fetches a single feature by its handle.
func (c *Client) GetFeature(ctx context.Context, handle string) (*geo.Feature, error) {
	h, err := segment("handle", handle)
	if err != nil {
		return nil, err
	}
	r, key := c.get(EndpointFeature, nil, "1.0", "features", h+".json")
	return fetch(ctx, c, r, key, geocodec.DecodeFeature)
}

// GetContext describes the area around a coordinate. With a context cell
// resolution configured, lookups that fall in the same H3 cell share one
// cached response; Query always echoes the requested coordinate.
func (c *Client) GetContext(ctx context.Context, lat, lon float64) (*geo.Context, error) {
	r, key := c.get(EndpointContext, nil, "1.0", "context", latLon(lat, lon))
	if c.cellRes < 0 || c.cache == nil {
		return fetch(ctx, c, r, key, geocodec.DecodeContext)
	}
	cell, err := c.mapper.CellFor(geo.NewPosition(lat, lon), c.cellRes)
	if err != nil {
		c.logger.WarnContext(ctx, "context cell lookup failed", "lat", lat, "lon", lon, "err", err)
		return fetch(ctx, c, r, key, geocodec.DecodeContext)
	}
	return fetch(ctx, c, r, keys.Context(c.cellRes, cell), func(rd io.Reader) (*geo.Context, error) {
		gc, err := geocodec.DecodeContext(rd)
		if err != nil {
			return nil, err
		}
		gc.Query.Latitude, gc.Query.Longitude = lat, lon
		return gc, nil
	})
}

func (c *Client) GetContextByAddress(ctx context.Context, address string) (*geo.Context, error) {
	if err := requireNonEmpty("address", address); err != nil {
		return nil, err
	}
	r, key := c.get(EndpointContext, url.Values{"address": {address}}, "1.0", "context", "address.json")
	return fetch(ctx, c, r, key, geocodec.DecodeContext)
}

func (c *Client) GetContextByIP(ctx context.Context, ip string) (*geo.Context, error) {
	seg, err := segment("ip", ip)
	if err != nil {
		return nil, err
	}
	r, key := c.get(EndpointContext, nil, "1.0", "context", seg+".json")
	return fetch(ctx, c, r, key, geocodec.DecodeContext)
}

// GetPlaces searches for places near a coordinate. args is passed through
// as the query string (q, category, radius, num, ...).
func (c *Client) GetPlaces(ctx context.Context, lat, lon float64, args url.Values) ([]*geo.Feature, error) {
	r, key := c.get(EndpointPlaces, args, "1.0", "places", latLon(lat, lon))
	return fetch(ctx, c, r, key, geocodec.DecodeFeatures)
}

func (c *Client) GetPlacesByAddress(ctx context.Context, address string, args url.Values) ([]*geo.Feature, error) {
	if err := requireNonEmpty("address", address); err != nil {
		return nil, err
	}
	q := cloneValues(args)
	q.Set("address", address)
	r, key := c.get(EndpointPlaces, q, "1.0", "places", "address.json")
	return fetch(ctx, c, r, key, geocodec.DecodeFeatures)
}

func (c *Client) GetPlacesByIP(ctx context.Context, ip string, args url.Values) ([]*geo.Feature, error) {
	seg, err := segment("ip", ip)
	if err != nil {
		return nil, err
	}
	r, key := c.get(EndpointPlaces, args, "1.0", "places", seg+".json")
	return fetch(ctx, c, r, key, geocodec.DecodeFeatures)
}

// GetLayers lists one page of layers. A zero limit and an empty cursor are
// left to the service defaults.
func (c *Client) GetLayers(ctx context.Context, limit int, cursor string) (*geo.LayersResult, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	r, key := c.get(EndpointLayers, q, "0.1", "layers.json")
	return fetch(ctx, c, r, key, geocodec.DecodeLayers)
}

func (c *Client) GetLayer(ctx context.Context, name string) (geo.Layer, error) {
	seg, err := segment("layer name", name)
	if err != nil {
		return geo.Layer{}, err
	}
	r, _ := c.get(EndpointLayer, nil, "0.1", "layers", seg+".json")
	return fetch(ctx, c, r, keys.Layer(name), geocodec.DecodeLayer)
}

// PutLayer creates or updates a layer.
func (c *Client) PutLayer(ctx context.Context, l geo.Layer) error {
	seg, err := segment("layer name", l.Name)
	if err != nil {
		return err
	}
	body, err := geocodec.MarshalLayer(l)
	if err != nil {
		return fmt.Errorf("encode layer: %w", err)
	}
	r := request{endpoint: EndpointLayer, method: http.MethodPut, segments: []string{"0.1", "layers", seg + ".json"}, body: body}
	if err := c.exec(ctx, r); err != nil {
		return err
	}
	c.cacheDel(ctx, keys.Layer(l.Name))
	return nil
}

func (c *Client) DeleteLayer(ctx context.Context, name string) error {
	seg, err := segment("layer name", name)
	if err != nil {
		return err
	}
	r := request{endpoint: EndpointLayer, method: http.MethodDelete, segments: []string{"0.1", "layers", seg + ".json"}}
	if err := c.exec(ctx, r); err != nil {
		return err
	}
	c.cacheDel(ctx, keys.Layer(name))
	return nil
}

// GetRecord fetches a record from a layer. The result is a *geo.Feature;
// other record types fail with geocodec.ErrUnsupportedRecord.
func (c *Client) GetRecord(ctx context.Context, layer, id string) (geo.Record, error) {
	ls, is, err := recordSegments(layer, id)
	if err != nil {
		return nil, err
	}
	r, _ := c.get(EndpointRecord, nil, "0.1", "records", ls, is+".json")
	return fetch(ctx, c, r, keys.Record(layer, id), geocodec.DecodeRecord)
}

// PutRecord writes f to layer under f.ID.
func (c *Client) PutRecord(ctx context.Context, layer string, f *geo.Feature) error {
	if f == nil {
		return errors.New("record is nil")
	}
	ls, is, err := recordSegments(layer, f.ID)
	if err != nil {
		return err
	}
	body, err := geocodec.MarshalFeature(f)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	r := request{endpoint: EndpointRecord, method: http.MethodPut, segments: []string{"0.1", "records", ls, is + ".json"}, body: body}
	if err := c.exec(ctx, r); err != nil {
		return err
	}
	c.recordWritten(ctx, OpPut, layer, f.ID, f)
	return nil
}

func (c *Client) DeleteRecord(ctx context.Context, layer, id string) error {
	ls, is, err := recordSegments(layer, id)
	if err != nil {
		return err
	}
	r := request{endpoint: EndpointRecord, method: http.MethodDelete, segments: []string{"0.1", "records", ls, is + ".json"}}
	if err := c.exec(ctx, r); err != nil {
		return err
	}
	c.recordWritten(ctx, OpDelete, layer, id, nil)
	return nil
}

// GetNearbyRecords lists records of layer near a coordinate. radius is in
// kilometres; zero leaves it to the service.
func (c *Client) GetNearbyRecords(ctx context.Context, layer string, lat, lon, radius float64) ([]*geo.Feature, error) {
	ls, err := segment("layer", layer)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if radius > 0 {
		q.Set("radius", ftoa(radius))
	}
	r, key := c.get(EndpointNearby, q, "0.1", "records", ls, "nearby", latLon(lat, lon))
	return fetch(ctx, c, r, key, geocodec.DecodeFeatures)
}

func recordSegments(layer, id string) (string, string, error) {
	ls, err := segment("layer", layer)
	if err != nil {
		return "", "", err
	}
	is, err := segment("record id", id)
	if err != nil {
		return "", "", err
	}
	return ls, is, nil
}

func (c *Client) recordWritten(ctx context.Context, op, layer, id string, f *geo.Feature) {
	c.cacheDel(ctx, keys.Record(layer, id))
	if c.onRecord != nil {
		c.onRecord(ctx, op, layer, id, f)
	}
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
