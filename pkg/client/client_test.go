package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/geoclient/internal/cache/memstore"
	"github.com/mohammed-shakir/geoclient/pkg/client"
	"github.com/mohammed-shakir/geoclient/pkg/geo"
	"github.com/mohammed-shakir/geoclient/pkg/geocodec"
)

const featureBody = `{"type":"Feature","id":"SG_1","geometry":{"type":"Point","coordinates":[-122.4,37.7]},"properties":{"name":"Cafe"}}`

const contextBody = `{"query":{"latitude":1,"longitude":2},"timestamp":1291846478.5,` +
	`"features":[{"handle":"SG_x","name":"San Francisco","license":"CC","bounds":[-1,-2,3,4],"abbr":"SF",` +
	`"classifiers":[{"type":"Region","category":"City","subcategory":""}]}],` +
	`"weather":{"temperature":"61F"},"demographics":{"metro_score":9}}`

const placesBody = `{"type":"FeatureCollection","features":[` + featureBody + `]}`

const layersBody = `{"layers":[{"name":"com.example.cafes","title":"Cafes","description":"","public":true,"created":1,"updated":2}],"next_cursor":"abc"}`

const layerBody = `{"name":"com.example.cafes","title":"Cafes","description":"","public":true}`

type seen struct {
	Method  string
	Path    string
	RawPath string
	Query   url.Values
	Body   string
	Header http.Header
}

// upstream is a fake geo service.
type upstream struct {
	mu    sync.Mutex
	calls []seen
	hits  map[string]int

	srv *httptest.Server
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{hits: map[string]int{}}

	r := chi.NewRouter()
	r.Use(u.record)
	json := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, body)
		}
	}
	r.Get("/1.0/features/{handle}", func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "handle") {
		case "SG_1.json":
			json(featureBody)(w, r)
		case "SG_bad.json":
			json(`{"type":"Feature","geometry":{"type":"Point","coordinates":[1]}}`)(w, r)
		default:
			http.Error(w, `{"message":"no such feature"}`, http.StatusNotFound)
		}
	})
	r.Get("/1.0/context/{q}", json(contextBody))
	r.Get("/1.0/places/{q}", json(placesBody))
	r.Get("/0.1/layers.json", json(layersBody))
	r.Get("/0.1/layers/{name}", json(layerBody))
	r.Put("/0.1/layers/{name}", json(`{"status":"ok"}`))
	r.Delete("/0.1/layers/{name}", json(`{"status":"ok"}`))
	r.Get("/0.1/records/{layer}/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "route.json" {
			json(`{"type":"Route","id":"route"}`)(w, r)
			return
		}
		json(featureBody)(w, r)
	})
	r.Put("/0.1/records/{layer}/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Delete("/0.1/records/{layer}/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/0.1/records/{layer}/nearby/{q}", json(`[`+featureBody+`]`))

	u.srv = httptest.NewServer(r)
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.calls = append(u.calls, seen{Method: r.Method, Path: r.URL.Path, RawPath: r.URL.EscapedPath(), Query: r.URL.Query(), Body: string(b), Header: r.Header.Clone()})
		u.hits[r.Method+" "+r.URL.Path]++
		u.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (u *upstream) last(t *testing.T) seen {
	t.Helper()
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.calls) == 0 {
		t.Fatalf("no upstream calls")
	}
	return u.calls[len(u.calls)-1]
}

func (u *upstream) count(key string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[key]
}

func newClient(t *testing.T, u *upstream, opts ...client.Option) *client.Client {
	t.Helper()
	c, err := client.New(slog.New(slog.NewTextHandler(io.Discard, nil)), u.srv.Client(), u.srv.URL+"/", opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	for _, base := range []string{"", "api.example.com", "://x"} {
		if _, err := client.New(nil, nil, base); err == nil {
			t.Fatalf("base %q: expected error", base)
		}
	}
}

func TestGetFeature(t *testing.T) {
	u := newUpstream(t)
	c := newClient(t, u)

	f, err := c.GetFeature(context.Background(), "SG_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if f.ID != "SG_1" {
		t.Fatalf("id=%q want SG_1", f.ID)
	}
	pt, ok := f.Geometry.(geo.Point)
	if !ok {
		t.Fatalf("geometry=%T want geo.Point", f.Geometry)
	}
	if pt.Coordinates.Lat() != 37.7 || pt.Coordinates.Lon() != -122.4 {
		t.Fatalf("point=%+v", pt)
	}
	got := u.last(t)
	if got.Path != "/1.0/features/SG_1.json" {
		t.Fatalf("path=%q", got.Path)
	}
	if got.Header.Get("Accept") != "application/json" {
		t.Fatalf("accept=%q", got.Header.Get("Accept"))
	}
}

func TestGetFeature_NotFoundIsStatusError(t *testing.T) {
	u := newUpstream(t)
	c := newClient(t, u)

	_, err := c.GetFeature(context.Background(), "SG_missing")
	if !client.IsNotFound(err) {
		t.Fatalf("err=%v want not found", err)
	}
	var se *client.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err=%T want *StatusError", err)
	}
	if !strings.Contains(se.Body, "no such feature") {
		t.Fatalf("body=%q", se.Body)
	}
}

func TestGetFeature_DecodeErrorIsWrapped(t *testing.T) {
	u := newUpstream(t)
	c := newClient(t, u)

	_, err := c.GetFeature(context.Background(), "SG_bad")
	if !errors.Is(err, geocodec.ErrMalformedGeometry) {
		t.Fatalf("err=%v want ErrMalformedGeometry", err)
	}
}

func TestGetFeature_EmptyHandle(t *testing.T) {
	u := newUpstream(t)
	c := newClient(t, u)
	if _, err := c.GetFeature(context.Background(), " "); err == nil {
		t.Fatal("expected error")
	}
	if n := u.count("GET /1.0/features/.json"); n != 0 {
		t.Fatalf("upstream called %d times", n)
	}
}

func TestRecords_PathSegments(t *testing.T) {
	ctx := context.Background()
	f := geo.NewFeature("SG_1", geo.Point{Coordinates: geo.NewPosition(37.7, -122.4)}, nil)

	t.Run("dot segments rejected", func(t *testing.T) {
		u := newUpstream(t)
		c := newClient(t, u)
		calls := []struct {
			name string
			call func() error
		}{
			{"put layer ..", func() error { return c.PutRecord(ctx, "..", f) }},
			{"put layer .", func() error { return c.PutRecord(ctx, ".", f) }},
			{"delete id ..", func() error { return c.DeleteRecord(ctx, "com.example.cafes", "..") }},
			{"get layer ..", func() error { _, err := c.GetRecord(ctx, "..", "x"); return err }},
			{"nearby layer ..", func() error { _, err := c.GetNearbyRecords(ctx, "..", 1, 2, 0); return err }},
			{"layer name ..", func() error { return c.DeleteLayer(ctx, "..") }},
			{"handle .", func() error { _, err := c.GetFeature(ctx, "."); return err }},
		}
		for _, tc := range calls {
			if err := tc.call(); !errors.Is(err, client.ErrInvalidSegment) {
				t.Fatalf("%s: err=%v want ErrInvalidSegment", tc.name, err)
			}
		}
		u.mu.Lock()
		n := len(u.calls)
		u.mu.Unlock()
		if n != 0 {
			t.Fatalf("upstream called %d times", n)
		}
	})

	t.Run("slash stays in its segment", func(t *testing.T) {
		u := newUpstream(t)
		c := newClient(t, u)
		if err := c.DeleteRecord(ctx, "a/b", "c"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if p := u.last(t).RawPath; p != "/0.1/records/a%2Fb/c.json" {
			t.Fatalf("path=%q want /0.1/records/a%%2Fb/c.json", p)
		}
		if err := c.PutRecord(ctx, "com.example.cafes", geo.NewFeature("x?y", f.Geometry, nil)); err != nil {
			t.Fatalf("put: %v", err)
		}
		last := u.last(t)
		if last.RawPath != "/0.1/records/com.example.cafes/x%3Fy.json" || len(last.Query) != 0 {
			t.Fatalf("path=%q query=%v", last.RawPath, last.Query)
		}
	})
}

func TestGetContext_Variants(t *testing.T) {
	u := newUpstream(t)
	c := newClient(t, u)
	ctx := context.Background()

	gc, err := c.GetContext(ctx, 37.775, -122.418)
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if p := u.last(t).Path; p != "/1.0/context/37.775,-122.418.json" {
		t.Fatalf("path=%q", p)
	}
	if len(gc.Features) != 1 || gc.Features[0].Handle != "SG_x" {
		t.Fatalf("features=%+v", gc.Features)
	}
	if gc.Demographics == nil || gc.Demographics.MetroScore != 9 {
		t.Fatalf("demographics=%+v", gc.Demographics)
	}

	if _, err := c.GetContextByAddress(ctx, "41 Decatur St, San Francisco, CA"); err != nil {
		t.Fatalf("address: %v", err)
	}
	last := u.last(t)
	if last.Path != "/1.0/context/address.json" || last.Query.Get("address") != "41 Decatur St, San Francisco, CA" {
		t.Fatalf("address call=%+v", last)
	}

	if _, err := c.GetContextByIP(ctx, "173.164.219.53"); err != nil {
		t.Fatalf("ip: %v", err)
	}
	if p := u.last(t).Path; p != "/1.0/context/173.164.219.53.json" {
		t.Fatalf("path=%q", p)
	}
}

func TestGetPlaces_PassesArgs(t *testing.T) {
	u := newUpstream(t)
	c := newClient(t, u)
	ctx := context.Background()
	args := url.Values{"q": {"coffee"}, "radius": {"0.5"}}

	fs, err := c.GetPlaces(ctx, 37.7, -122.4, args)
	if err != nil {
		t.Fatalf("places: %v", err)
	}
	if len(fs) != 1 || fs[0].ID != "SG_1" {
		t.Fatalf("features=%v", fs)
	}
	last := u.last(t)
	if last.Path != "/1.0/places/37.7,-122.4.json" || last.Query.Get("q") != "coffee" || last.Query.Get("radius") != "0.5" {
		t.Fatalf("call=%+v", last)
	}

	if _, err := c.GetPlacesByAddress(ctx, "1 Main St", args); err != nil {
		t.Fatalf("by address: %v", err)
	}
	last = u.last(t)
	if last.Query.Get("address") != "1 Main St" || last.Query.Get("q") != "coffee" {
		t.Fatalf("query=%v", last.Query)
	}
	if args.Has("address") {
		t.Fatalf("caller args were modified: %v", args)
	}

	if _, err := c.GetPlacesByIP(ctx, "10.0.0.1", nil); err != nil {
		t.Fatalf("by ip: %v", err)
	}
	if p := u.last(t).Path; p != "/1.0/places/10.0.0.1.json" {
		t.Fatalf("path=%q", p)
	}
}

func TestLayers(t *testing.T) {
	u := newUpstream(t)
	c := newClient(t, u)
	ctx := context.Background()

	res, err := c.GetLayers(ctx, 10, "xyz")
	if err != nil {
		t.Fatalf("layers: %v", err)
	}
	if res.NextCursor != "abc" || len(res.Layers) != 1 || res.Layers[0].Name != "com.example.cafes" {
		t.Fatalf("res=%+v", res)
	}
	if q := u.last(t).Query; q.Get("limit") != "10" || q.Get("cursor") != "xyz" {
		t.Fatalf("query=%v", q)
	}

	if _, err := c.GetLayers(ctx, 0, ""); err != nil {
		t.Fatal(err)
	}
	if q := u.last(t).Query; len(q) != 0 {
		t.Fatalf("query=%v want empty", q)
	}

	l, err := c.GetLayer(ctx, "com.example.cafes")
	if err != nil || l.Title != "Cafes" || !l.Public {
		t.Fatalf("layer=%+v err=%v", l, err)
	}

	if err := c.PutLayer(ctx, geo.Layer{Name: "com.example.bars", Title: "Bars"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	last := u.last(t)
	if last.Method != http.MethodPut || last.Path != "/0.1/layers/com.example.bars.json" {
		t.Fatalf("call=%+v", last)
	}
	if want := `{"name":"com.example.bars","title":"Bars","description":"","public":false}`; last.Body != want {
		t.Fatalf("body=%s want %s", last.Body, want)
	}
	if ct := last.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}

	if err := c.DeleteLayer(ctx, "com.example.bars"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if last := u.last(t); last.Method != http.MethodDelete {
		t.Fatalf("method=%s", last.Method)
	}
}

type hookCall struct {
	op, layer, id string
	f             *geo.Feature
}

func TestRecords(t *testing.T) {
	u := newUpstream(t)
	var calls []hookCall
	c := newClient(t, u, client.WithRecordHook(func(_ context.Context, op, layer, id string, f *geo.Feature) {
		calls = append(calls, hookCall{op, layer, id, f})
	}))
	ctx := context.Background()

	rec, err := c.GetRecord(ctx, "com.example.cafes", "SG_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	f, ok := rec.(*geo.Feature)
	if !ok || f.ID != "SG_1" {
		t.Fatalf("record=%#v", rec)
	}
	if p := u.last(t).Path; p != "/0.1/records/com.example.cafes/SG_1.json" {
		t.Fatalf("path=%q", p)
	}

	if _, err := c.GetRecord(ctx, "com.example.cafes", "route"); !errors.Is(err, geocodec.ErrUnsupportedRecord) {
		t.Fatalf("err=%v want ErrUnsupportedRecord", err)
	}

	props := geo.NewProperties()
	props.Set("name", geo.StringValue("Cafe"))
	nf := geo.NewFeature("SG_2", geo.Point{Coordinates: geo.NewPosition(37.7, -122.4)}, props)
	if err := c.PutRecord(ctx, "com.example.cafes", nf); err != nil {
		t.Fatalf("put: %v", err)
	}
	last := u.last(t)
	if last.Path != "/0.1/records/com.example.cafes/SG_2.json" {
		t.Fatalf("path=%q", last.Path)
	}
	back, err := geocodec.DecodeFeature(strings.NewReader(last.Body))
	if err != nil || back.ID != "SG_2" {
		t.Fatalf("sent body %s: %v", last.Body, err)
	}

	if err := c.DeleteRecord(ctx, "com.example.cafes", "SG_2"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("hook calls=%d want 2", len(calls))
	}
	if calls[0].op != client.OpPut || calls[0].id != "SG_2" || calls[0].f != nf {
		t.Fatalf("put hook=%+v", calls[0])
	}
	if calls[1].op != client.OpDelete || calls[1].f != nil {
		t.Fatalf("delete hook=%+v", calls[1])
	}

	if err := c.PutRecord(ctx, "com.example.cafes", geo.NewFeature("", nil, nil)); err == nil {
		t.Fatal("expected error for record without id")
	}
}

func TestGetNearbyRecords(t *testing.T) {
	u := newUpstream(t)
	c := newClient(t, u)

	fs, err := c.GetNearbyRecords(context.Background(), "com.example.cafes", 37.7, -122.4, 1.5)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(fs) != 1 {
		t.Fatalf("len=%d want 1", len(fs))
	}
	last := u.last(t)
	if last.Path != "/0.1/records/com.example.cafes/nearby/37.7,-122.4.json" || last.Query.Get("radius") != "1.5" {
		t.Fatalf("call=%+v", last)
	}
}

func TestCache_ServesRepeatGets(t *testing.T) {
	u := newUpstream(t)
	c := newClient(t, u, client.WithCache(memstore.New(64, time.Minute), time.Minute))
	ctx := context.Background()

	for range 3 {
		if _, err := c.GetFeature(ctx, "SG_1"); err != nil {
			t.Fatal(err)
		}
	}
	if n := u.count("GET /1.0/features/SG_1.json"); n != 1 {
		t.Fatalf("upstream hits=%d want 1", n)
	}

	// bodies that fail to decode are never stored
	for range 2 {
		_, _ = c.GetFeature(ctx, "SG_bad")
	}
	if n := u.count("GET /1.0/features/SG_bad.json"); n != 2 {
		t.Fatalf("upstream hits=%d want 2", n)
	}
}

func TestCache_RecordWriteEvicts(t *testing.T) {
	u := newUpstream(t)
	c := newClient(t, u, client.WithCache(memstore.New(64, time.Minute), time.Minute))
	ctx := context.Background()
	path := "GET /0.1/records/l/SG_1.json"

	for range 2 {
		if _, err := c.GetRecord(ctx, "l", "SG_1"); err != nil {
			t.Fatal(err)
		}
	}
	if n := u.count(path); n != 1 {
		t.Fatalf("hits=%d want 1", n)
	}
	if err := c.DeleteRecord(ctx, "l", "SG_1"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetRecord(ctx, "l", "SG_1"); err != nil {
		t.Fatal(err)
	}
	if n := u.count(path); n != 2 {
		t.Fatalf("hits=%d want 2 after delete", n)
	}
}

func TestCache_ContextSharedPerCell(t *testing.T) {
	u := newUpstream(t)
	c := newClient(t, u,
		client.WithCache(memstore.New(64, time.Minute), time.Minute),
		client.WithContextCellRes(9))
	ctx := context.Background()

	a, err := c.GetContext(ctx, 37.775, -122.418)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.GetContext(ctx, 37.7750001, -122.4180001)
	if err != nil {
		t.Fatal(err)
	}
	u.mu.Lock()
	n := len(u.calls)
	u.mu.Unlock()
	if n != 1 {
		t.Fatalf("upstream calls=%d want 1", n)
	}
	if a.Query.Latitude != 37.775 || b.Query.Latitude != 37.7750001 || b.Query.Longitude != -122.4180001 {
		t.Fatalf("queries a=%+v b=%+v", a.Query, b.Query)
	}
}

type headerSigner struct{}

func (headerSigner) Sign(r *http.Request) error {
	r.Header.Set("Authorization", "test "+r.Method)
	return nil
}

type failSigner struct{}

func (failSigner) Sign(*http.Request) error { return errors.New("no credentials") }

func TestSigner(t *testing.T) {
	u := newUpstream(t)
	c := newClient(t, u, client.WithSigner(headerSigner{}))
	if _, err := c.GetLayers(context.Background(), 0, ""); err != nil {
		t.Fatal(err)
	}
	if h := u.last(t).Header.Get("Authorization"); h != "test GET" {
		t.Fatalf("authorization=%q", h)
	}

	c = newClient(t, u, client.WithSigner(failSigner{}))
	if _, err := c.GetLayers(context.Background(), 0, ""); err == nil || !strings.Contains(err.Error(), "no credentials") {
		t.Fatalf("err=%v", err)
	}
}
