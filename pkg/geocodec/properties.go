package geocodec

import (
	"fmt"

	"github.com/mohammed-shakir/geoclient/pkg/geo"
	"github.com/mohammed-shakir/geoclient/pkg/jsontok"
)

// readProperties reads a feature's property bag. "classifiers" and "tags"
// arrays decode as lists; every other member, and a scalar under either of
// those keys, is kept as a string, so unknown keys are never dropped.
func readProperties(c jsontok.Cursor) (*geo.Properties, error) {
	if c.Current().Kind == jsontok.Null {
		return nil, nil
	}
	props := geo.NewProperties()
	err := eachField(c, func(name string) error {
		if _, err := next(c); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
		isArray := c.Current().Kind == jsontok.BeginArray
		switch {
		case name == "classifiers" && isArray:
			cs, err := readClassifiers(c)
			if err != nil {
				return fmt.Errorf("property %q: %w", name, err)
			}
			props.Set(name, geo.ClassifierValue(cs...))
		case name == "tags" && isArray:
			tags, err := readScalarList(c)
			if err != nil {
				return fmt.Errorf("property %q: %w", name, err)
			}
			props.Set(name, geo.ListValue(tags...))
		default:
			s, err := scalarOrJSON(c)
			if err != nil {
				return fmt.Errorf("property %q: %w", name, err)
			}
			props.Set(name, geo.StringValue(s))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return props, nil
}

// scalarOrJSON returns the text of a scalar, or the compact JSON of a
// container value.
func scalarOrJSON(c jsontok.Cursor) (string, error) {
	if c.Current().Kind.IsScalar() {
		return c.Current().ScalarText(), nil
	}
	toks, err := jsontok.Capture(c)
	if err != nil {
		return "", err
	}
	w := jsontok.NewWriter()
	jsontok.WriteTokens(w, toks)
	b, err := w.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readScalarList reads an array of scalars; nested containers are kept as
// JSON text.
func readScalarList(c jsontok.Cursor) ([]string, error) {
	out := []string{}
	err := eachElement(c, func() error {
		s, err := scalarOrJSON(c)
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func readClassifiers(c jsontok.Cursor) ([]geo.Classifier, error) {
	if c.Current().Kind == jsontok.Null {
		return nil, nil
	}
	out := []geo.Classifier{}
	err := eachElement(c, func() error {
		if c.Current().Kind == jsontok.Null {
			return nil
		}
		cl, err := readClassifier(c)
		if err != nil {
			return err
		}
		out = append(out, cl)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func readClassifier(c jsontok.Cursor) (geo.Classifier, error) {
	var cl geo.Classifier
	err := eachField(c, func(name string) error {
		var err error
		switch name {
		case "category":
			cl.Category, err = readString(c)
		case "type":
			cl.Type, err = readString(c)
		case "subcategory":
			cl.Subcategory, err = readString(c)
		default:
			err = skipValue(c)
		}
		if err != nil {
			return fmt.Errorf("classifier %q: %w", name, err)
		}
		return nil
	})
	return cl, err
}
