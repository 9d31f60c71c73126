package geo

import "github.com/paulmach/orb"

// ToOrb converts g to the equivalent orb geometry; nil stays nil.
func ToOrb(g Geometry) orb.Geometry {
	switch t := g.(type) {
	case Point:
		return orbPoint(t.Coordinates)
	case *Point:
		return orbPoint(t.Coordinates)
	case LineString:
		return orbLine(t.Coordinates)
	case *LineString:
		return orbLine(t.Coordinates)
	case Polygon:
		return orbPolygon(t.Coordinates)
	case *Polygon:
		return orbPolygon(t.Coordinates)
	default:
		return nil
	}
}

// Bound returns the bounding box of g and false for a nil or empty geometry.
func Bound(g Geometry) (orb.Bound, bool) {
	og := ToOrb(g)
	if og == nil {
		return orb.Bound{}, false
	}
	if mp, ok := og.(orb.Polygon); ok && len(mp) == 0 {
		return orb.Bound{}, false
	}
	if ls, ok := og.(orb.LineString); ok && len(ls) == 0 {
		return orb.Bound{}, false
	}
	return og.Bound(), true
}

// Center returns the centre of the feature's bounding box.
func (f *Feature) Center() (Position, bool) {
	if f == nil {
		return Position{}, false
	}
	b, ok := Bound(f.Geometry)
	if !ok {
		return Position{}, false
	}
	c := b.Center()
	return NewPosition(c.Lat(), c.Lon()), true
}

func orbPoint(p Position) orb.Point { return orb.Point{p.X, p.Y} }

func orbLine(ps []Position) orb.LineString {
	ls := make(orb.LineString, len(ps))
	for i, p := range ps {
		ls[i] = orbPoint(p)
	}
	return ls
}

func orbPolygon(rings [][]Position) orb.Polygon {
	poly := make(orb.Polygon, len(rings))
	for i, r := range rings {
		poly[i] = orb.Ring(orbLine(r))
	}
	return poly
}
