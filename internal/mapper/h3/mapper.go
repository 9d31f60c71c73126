package h3mapper

import (
	"errors"
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/geoclient/pkg/geo"
)

type Mapper struct{}

func New() *Mapper { return &Mapper{} }

// CellFor returns the cell containing p.
func (m *Mapper) CellFor(p geo.Position, res int) (string, error) {
	if err := validateRes(res); err != nil {
		return "", err
	}
	c, err := h3.LatLngToCell(h3.LatLng{Lat: p.Lat(), Lng: p.Lon()}, res)
	if err != nil {
		return "", fmt.Errorf("h3 cell for %s: %w", p, err)
	}
	return c.String(), nil
}

// CellsForGeometry returns the sorted unique cells covering g. A polygon
// too small to contain a cell centre maps to the cell of its bound centre.
func (m *Mapper) CellsForGeometry(g geo.Geometry, res int) ([]string, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	switch t := g.(type) {
	case geo.Point:
		c, err := m.CellFor(t.Coordinates, res)
		if err != nil {
			return nil, err
		}
		return []string{c}, nil
	case *geo.Point:
		return m.CellsForGeometry(*t, res)
	case geo.Polygon:
		return m.cellsForPolygon(t, res)
	case *geo.Polygon:
		return m.cellsForPolygon(*t, res)
	case nil:
		return nil, errors.New("nil geometry")
	default:
		return nil, fmt.Errorf("no cell mapping for %s", g.GeometryType())
	}
}

func (m *Mapper) cellsForPolygon(p geo.Polygon, res int) ([]string, error) {
	if len(p.Coordinates) == 0 {
		return nil, errors.New("empty polygon")
	}
	outer := toLoop(p.Coordinates[0])
	if len(outer) < 3 {
		return nil, errors.New("outer ring has < 3 distinct vertices")
	}
	var holes []h3.GeoLoop
	for i := 1; i < len(p.Coordinates); i++ {
		h := toLoop(p.Coordinates[i])
		if len(h) < 3 {
			return nil, fmt.Errorf("hole %d has < 3 distinct vertices", i-1)
		}
		holes = append(holes, h)
	}
	cells, err := polyfillOne(outer, holes, res)
	if err != nil {
		return nil, err
	}
	if len(cells) > 0 {
		return cells, nil
	}
	b, ok := geo.Bound(p)
	if !ok {
		return nil, errors.New("empty polygon")
	}
	c := b.Center()
	cell, err := m.CellFor(geo.NewPosition(c.Lat(), c.Lon()), res)
	if err != nil {
		return nil, err
	}
	return []string{cell}, nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// toLoop converts a ring to an h3.GeoLoop in degrees, dropping the
// duplicated closing vertex if present.
func toLoop(ring []geo.Position) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(ring))
	for _, p := range ring {
		loop = append(loop, h3.LatLng{Lat: p.Lat(), Lng: p.Lon()})
	}
	if len(loop) >= 2 {
		last := loop[len(loop)-1]
		first := loop[0]
		if last.Lat == first.Lat && last.Lng == first.Lng {
			loop = loop[:len(loop)-1]
		}
	}
	return loop
}

// polyfillOne computes unique cells and returns them sorted for determinism.
func polyfillOne(outer h3.GeoLoop, holes []h3.GeoLoop, res int) ([]string, error) {
	poly := h3.GeoPolygon{
		GeoLoop: outer,
		Holes:   holes,
	}

	indexes, err := h3.PolygonToCells(poly, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}

	out := make([]string, 0, len(indexes))
	seen := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		s := idx.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
