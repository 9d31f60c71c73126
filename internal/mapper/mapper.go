// Package mapper converts geometries to H3 cells.
package mapper

import (
	"github.com/mohammed-shakir/geoclient/pkg/geo"
)

type Interface interface {
	CellFor(p geo.Position, res int) (string, error)
	CellsForGeometry(g geo.Geometry, res int) ([]string, error)
}
