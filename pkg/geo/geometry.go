// Package geo defines the typed geographic model returned by the decoders:
// positions, geometries, features and the richer context and layer shapes.
package geo

import "fmt"

// Position is a (longitude, latitude[, z]) tuple stored in wire order.
type Position struct {
	X    float64
	Y    float64
	Z    float64
	HasZ bool
}

// NewPosition takes latitude first, the way callers usually speak about a
// place; the value is stored as (lon, lat).
func NewPosition(lat, lon float64) Position {
	return Position{X: lon, Y: lat}
}

func NewPosition3(lat, lon, z float64) Position {
	return Position{X: lon, Y: lat, Z: z, HasZ: true}
}

func (p Position) Lat() float64 { return p.Y }
func (p Position) Lon() float64 { return p.X }

func (p Position) String() string {
	if p.HasZ {
		return fmt.Sprintf("(%g, %g, %g)", p.X, p.Y, p.Z)
	}
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// Geometry type tags as they appear on the wire.
const (
	TypePoint      = "Point"
	TypeLineString = "LineString"
	TypePolygon    = "Polygon"
)

// Geometry is one of Point, LineString or Polygon.
type Geometry interface {
	GeometryType() string
	isGeometry()
}

type Point struct {
	Coordinates Position
}

type LineString struct {
	Coordinates []Position
}

// Polygon holds rings; the first ring is the exterior.
type Polygon struct {
	Coordinates [][]Position
}

func (Point) GeometryType() string      { return TypePoint }
func (LineString) GeometryType() string { return TypeLineString }
func (Polygon) GeometryType() string    { return TypePolygon }

func (Point) isGeometry()      {}
func (LineString) isGeometry() {}
func (Polygon) isGeometry()    {}
