// Package router exposes the geo client operations over HTTP.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/mohammed-shakir/geoclient/internal/logger"
	"github.com/mohammed-shakir/geoclient/pkg/client"
	"github.com/mohammed-shakir/geoclient/pkg/geo"
	"github.com/mohammed-shakir/geoclient/pkg/geocodec"
)

// Geo is the set of geo service operations the proxy serves;
// *client.Client implements it.
type Geo interface {
	GetFeature(ctx context.Context, handle string) (*geo.Feature, error)
	GetContext(ctx context.Context, lat, lon float64) (*geo.Context, error)
	GetContextByAddress(ctx context.Context, address string) (*geo.Context, error)
	GetContextByIP(ctx context.Context, ip string) (*geo.Context, error)
	GetPlaces(ctx context.Context, lat, lon float64, args url.Values) ([]*geo.Feature, error)
	GetPlacesByAddress(ctx context.Context, address string, args url.Values) ([]*geo.Feature, error)
	GetPlacesByIP(ctx context.Context, ip string, args url.Values) ([]*geo.Feature, error)
	GetLayers(ctx context.Context, limit int, cursor string) (*geo.LayersResult, error)
	GetLayer(ctx context.Context, name string) (geo.Layer, error)
	PutLayer(ctx context.Context, l geo.Layer) error
	DeleteLayer(ctx context.Context, name string) error
	GetRecord(ctx context.Context, layer, id string) (geo.Record, error)
	PutRecord(ctx context.Context, layer string, f *geo.Feature) error
	DeleteRecord(ctx context.Context, layer, id string) error
	GetNearbyRecords(ctx context.Context, layer string, lat, lon, radius float64) ([]*geo.Feature, error)
}

var _ Geo = (*client.Client)(nil)

const maxBodyBytes = 1 << 20

type handlers struct {
	log *slog.Logger
	geo Geo
}

// Mount registers the proxy routes on r.
func Mount(r chi.Router, l *slog.Logger, g Geo) {
	h := &handlers{log: l, geo: g}

	r.Get("/features/{handle}", h.getFeature)
	r.Get("/context", h.getContext)
	r.Get("/places", h.getPlaces)

	r.Get("/layers", h.getLayers)
	r.Route("/layers/{name}", func(r chi.Router) {
		r.Get("/", h.getLayer)
		r.Put("/", h.putLayer)
		r.Delete("/", h.deleteLayer)
	})

	r.Route("/records/{layer}", func(r chi.Router) {
		r.Get("/nearby", h.getNearby)
		r.Get("/{id}", h.getRecord)
		r.Put("/{id}", h.putRecord)
		r.Delete("/{id}", h.deleteRecord)
	})
}

// badRequest marks errors caused by the caller's parameters.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

func badRequestf(format string, a ...any) error {
	return badRequest{fmt.Errorf(format, a...)}
}

// statusFor maps an operation error to the proxy's response status.
func statusFor(err error) int {
	var br badRequest
	if errors.As(err, &br) || errors.Is(err, client.ErrInvalidSegment) {
		return http.StatusBadRequest
	}
	var se *client.StatusError
	if errors.As(err, &se) {
		if se.Code >= 400 && se.Code < 500 {
			return se.Code
		}
		return http.StatusBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// param returns a path parameter unescaped. chi matches on the escaped path
// when the request has one, so its params are still escaped then.
func param(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v
	}
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	lvl := slog.LevelWarn
	if code >= 500 {
		lvl = slog.LevelError
	}
	h.log.Log(r.Context(), lvl, "request failed", "path", r.URL.Path, "status", code, "err", err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Error     string `json:"error"`
		RequestID string `json:"request_id,omitempty"`
	}{err.Error(), logger.RequestID(r.Context())})
}

func (h *handlers) write(w http.ResponseWriter, r *http.Request, body []byte, err error) {
	if err != nil {
		h.fail(w, r, fmt.Errorf("render response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *handlers) getFeature(w http.ResponseWriter, r *http.Request) {
	f, err := h.geo.GetFeature(r.Context(), param(r, "handle"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := geocodec.MarshalFeature(f)
	h.write(w, r, b, err)
}

// target is the subject of a context or places lookup: a coordinate, an
// address or an IP, exactly one of them.
type target struct {
	lat, lon float64
	address  string
	ip       string
	coord    bool
}

func parseTarget(q url.Values) (target, error) {
	var t target
	n := 0
	if q.Has("lat") || q.Has("lon") {
		lat, lon, err := parseLatLon(q)
		if err != nil {
			return t, err
		}
		t.lat, t.lon, t.coord = lat, lon, true
		n++
	}
	if a := strings.TrimSpace(q.Get("address")); a != "" {
		t.address = a
		n++
	}
	if ip := strings.TrimSpace(q.Get("ip")); ip != "" {
		t.ip = ip
		n++
	}
	switch n {
	case 0:
		return t, badRequestf("one of lat&lon, address or ip is required")
	case 1:
		return t, nil
	default:
		return t, badRequestf("lat&lon, address and ip are mutually exclusive")
	}
}

func (h *handlers) getContext(w http.ResponseWriter, r *http.Request) {
	t, err := parseTarget(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var gc *geo.Context
	switch {
	case t.coord:
		gc, err = h.geo.GetContext(r.Context(), t.lat, t.lon)
	case t.address != "":
		gc, err = h.geo.GetContextByAddress(r.Context(), t.address)
	default:
		gc, err = h.geo.GetContextByIP(r.Context(), t.ip)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := geocodec.MarshalContext(gc)
	h.write(w, r, b, err)
}

func (h *handlers) getPlaces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t, err := parseTarget(q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	args := url.Values{}
	for k, vs := range q {
		switch k {
		case "lat", "lon", "address", "ip":
			continue
		}
		args[k] = vs
	}

	var fs []*geo.Feature
	switch {
	case t.coord:
		fs, err = h.geo.GetPlaces(r.Context(), t.lat, t.lon, args)
	case t.address != "":
		fs, err = h.geo.GetPlacesByAddress(r.Context(), t.address, args)
	default:
		fs, err = h.geo.GetPlacesByIP(r.Context(), t.ip, args)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := geocodec.MarshalFeatures(fs)
	h.write(w, r, b, err)
}

func (h *handlers) getLayers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.fail(w, r, badRequestf("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	res, err := h.geo.GetLayers(r.Context(), limit, q.Get("cursor"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := geocodec.MarshalLayers(res)
	h.write(w, r, b, err)
}

func (h *handlers) getLayer(w http.ResponseWriter, r *http.Request) {
	l, err := h.geo.GetLayer(r.Context(), param(r, "name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := geocodec.MarshalLayer(l)
	h.write(w, r, b, err)
}

// putLayer takes the layer description as the body; the name comes from
// the path.
func (h *handlers) putLayer(w http.ResponseWriter, r *http.Request) {
	l, err := geocodec.DecodeLayer(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, badRequest{fmt.Errorf("layer body: %w", err)})
		return
	}
	l.Name = param(r, "name")
	if err := h.geo.PutLayer(r.Context(), l); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) deleteLayer(w http.ResponseWriter, r *http.Request) {
	if err := h.geo.DeleteLayer(r.Context(), param(r, "name")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getRecord(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithLayer(r.Context(), param(r, "layer"))
	rec, err := h.geo.GetRecord(ctx, param(r, "layer"), param(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f, ok := rec.(*geo.Feature)
	if !ok {
		h.fail(w, r, fmt.Errorf("%w: %q", geocodec.ErrUnsupportedRecord, rec.RecordType()))
		return
	}
	b, err := geocodec.MarshalFeature(f)
	h.write(w, r, b, err)
}

// putRecord takes a Feature body; the record id comes from the path.
func (h *handlers) putRecord(w http.ResponseWriter, r *http.Request) {
	layer := param(r, "layer")
	ctx := logger.WithLayer(r.Context(), layer)
	f, err := geocodec.DecodeFeature(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, badRequest{fmt.Errorf("record body: %w", err)})
		return
	}
	f.ID = param(r, "id")
	if err := h.geo.PutRecord(ctx, layer, f); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) deleteRecord(w http.ResponseWriter, r *http.Request) {
	layer := param(r, "layer")
	ctx := logger.WithLayer(r.Context(), layer)
	if err := h.geo.DeleteRecord(ctx, layer, param(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, lon, err := parseLatLon(q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	radius := 0.0
	if v := strings.TrimSpace(q.Get("radius")); v != "" {
		radius, err = parseFloat(v)
		if err != nil || radius < 0 {
			h.fail(w, r, badRequestf("radius must be a non-negative number"))
			return
		}
	}
	layer := param(r, "layer")
	fs, err := h.geo.GetNearbyRecords(logger.WithLayer(r.Context(), layer), layer, lat, lon, radius)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := geocodec.MarshalFeatures(fs)
	h.write(w, r, b, err)
}

func parseLatLon(q url.Values) (lat, lon float64, err error) {
	lat, err = parseFloat(q.Get("lat"))
	if err != nil {
		return 0, 0, badRequestf("lat: %w", err)
	}
	lon, err = parseFloat(q.Get("lon"))
	if err != nil {
		return 0, 0, badRequestf("lon: %w", err)
	}
	if lat < -90 || lat > 90 {
		return 0, 0, badRequestf("latitude must be in [-90,90]")
	}
	if lon < -180 || lon > 180 {
		return 0, 0, badRequestf("longitude must be in [-180,180]")
	}
	return lat, lon, nil
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	return f, nil
}
