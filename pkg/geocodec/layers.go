package geocodec

import (
	"fmt"

	"github.com/mohammed-shakir/geoclient/pkg/geo"
	"github.com/mohammed-shakir/geoclient/pkg/jsontok"
)

func readLayer(c jsontok.Cursor) (geo.Layer, error) {
	var l geo.Layer
	err := eachField(c, func(name string) error {
		var err error
		switch name {
		case "name":
			l.Name, err = readString(c)
		case "title":
			l.Title, err = readString(c)
		case "description":
			l.Description, err = readString(c)
		case "public":
			l.Public, err = readBool(c)
		case "created":
			l.Created, err = readInt64(c)
		case "updated":
			l.Updated, err = readInt64(c)
		default:
			err = skipValue(c)
		}
		if err != nil {
			return fmt.Errorf("layer %q: %w", name, err)
		}
		return nil
	})
	return l, err
}

func readLayersResult(c jsontok.Cursor) (*geo.LayersResult, error) {
	res := &geo.LayersResult{Layers: []geo.Layer{}}
	err := eachField(c, func(name string) error {
		switch name {
		case "layers":
			k, err := next(c)
			if err != nil {
				return err
			}
			if k == jsontok.Null {
				return nil
			}
			return eachElement(c, func() error {
				l, err := readLayer(c)
				if err != nil {
					return err
				}
				res.Layers = append(res.Layers, l)
				return nil
			})
		case "next_cursor":
			s, err := readString(c)
			if err != nil {
				return fmt.Errorf("next_cursor: %w", err)
			}
			res.NextCursor = s
			return nil
		default:
			return skipValue(c)
		}
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
