package geocodec

import (
	"errors"
	"fmt"
	"io"

	"github.com/mohammed-shakir/geoclient/pkg/geo"
	"github.com/mohammed-shakir/geoclient/pkg/jsontok"
)

// coordNode is a shape-agnostic capture of a nested numeric array. The
// geometry type may arrive after the coordinates, so they are captured
// first and interpreted once the type is known.
type coordNode struct {
	leaf     bool
	value    float64
	children []coordNode
}

// depth is 0 for a number and 1 + the deepest child for an array; an empty
// array has depth 1.
func (n coordNode) depth() int {
	if n.leaf {
		return 0
	}
	d := 0
	for _, ch := range n.children {
		d = max(d, ch.depth())
	}
	return d + 1
}

func (n coordNode) allLeaves() bool {
	for _, ch := range n.children {
		if !ch.leaf {
			return false
		}
	}
	return true
}

// readCoordTree captures the array c is on, through its matching close.
func readCoordTree(c jsontok.Cursor) (coordNode, error) {
	if k := c.Current().Kind; k != jsontok.BeginArray {
		return coordNode{}, fmt.Errorf("%w: coordinates must be an array, got %s", ErrMalformedGeometry, k)
	}
	node := coordNode{}
	for {
		k, err := c.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return coordNode{}, fmt.Errorf("%w: unterminated coordinate array", ErrMalformedGeometry)
			}
			return coordNode{}, fmt.Errorf("%w: %w", ErrMalformedGeometry, err)
		}
		switch k {
		case jsontok.EndArray:
			return node, nil
		case jsontok.BeginArray:
			child, err := readCoordTree(c)
			if err != nil {
				return coordNode{}, err
			}
			node.children = append(node.children, child)
		case jsontok.Number:
			f, err := c.Current().Float()
			if err != nil {
				return coordNode{}, fmt.Errorf("%w: %w", ErrMalformedGeometry, err)
			}
			node.children = append(node.children, coordNode{leaf: true, value: f})
		default:
			return coordNode{}, fmt.Errorf("%w: unexpected %s in coordinates", ErrMalformedGeometry, k)
		}
	}
}

// toPosition expects [x, y] or [x, y, z].
func toPosition(n coordNode) (geo.Position, error) {
	if n.leaf || !n.allLeaves() || len(n.children) < 2 || len(n.children) > 3 {
		return geo.Position{}, fmt.Errorf("%w: position needs 2 or 3 numbers", ErrMalformedGeometry)
	}
	p := geo.Position{X: n.children[0].value, Y: n.children[1].value}
	if len(n.children) == 3 {
		p.Z = n.children[2].value
		p.HasZ = true
	}
	return p, nil
}

// toRing reads a ring of nested positions [[x,y],...].
func toRing(n coordNode) ([]geo.Position, error) {
	if n.leaf {
		return nil, fmt.Errorf("%w: ring must be an array", ErrMalformedGeometry)
	}
	ring := make([]geo.Position, 0, len(n.children))
	for _, ch := range n.children {
		p, err := toPosition(ch)
		if err != nil {
			return nil, err
		}
		ring = append(ring, p)
	}
	return ring, nil
}

// toFlatRing reads the flattened pair form [x0,y0,x1,y1,...] written by the
// encoder. It needs at least two positions so that a list of single
// positions is never taken for a polygon.
func toFlatRing(n coordNode) ([]geo.Position, error) {
	if n.leaf || !n.allLeaves() {
		return nil, fmt.Errorf("%w: flattened ring must hold only numbers", ErrMalformedGeometry)
	}
	if len(n.children) < 4 || len(n.children)%2 != 0 {
		return nil, fmt.Errorf("%w: flattened ring needs an even count of at least 4 values, got %d", ErrMalformedGeometry, len(n.children))
	}
	ring := make([]geo.Position, 0, len(n.children)/2)
	for i := 0; i < len(n.children); i += 2 {
		ring = append(ring, geo.Position{X: n.children[i].value, Y: n.children[i+1].value})
	}
	return ring, nil
}

// toPolygon expects depth-3 coordinates (rings of positions). Depth 2 is
// accepted only as rings in the flattened pair form.
func toPolygon(n coordNode) ([][]geo.Position, error) {
	if n.leaf {
		return nil, fmt.Errorf("%w: polygon coordinates must be an array", ErrMalformedGeometry)
	}
	var ringOf func(coordNode) ([]geo.Position, error)
	switch d := n.depth(); {
	case d == 3:
		ringOf = toRing
	case d == 2:
		ringOf = toFlatRing
	case d == 1 && len(n.children) == 0:
		return [][]geo.Position{}, nil
	default:
		return nil, fmt.Errorf("%w: polygon needs rings of positions, got depth %d", ErrMalformedGeometry, d)
	}
	rings := make([][]geo.Position, 0, len(n.children))
	for _, ch := range n.children {
		r, err := ringOf(ch)
		if err != nil {
			return nil, err
		}
		rings = append(rings, r)
	}
	return rings, nil
}
