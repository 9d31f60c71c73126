package geo

import "strings"

// Classifier places a feature in the category hierarchy.
type Classifier struct {
	Category    string
	Type        string
	Subcategory string
}

// String joins the non-empty levels as Type/Category/Subcategory.
func (c Classifier) String() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{c.Type, c.Category, c.Subcategory} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// PropertyValue is either a single string or a list. Lists come from the
// "tags" (strings) and "classifiers" (Classifier records) properties.
type PropertyValue struct {
	str         string
	items       []string
	classifiers []Classifier
	list        bool
}

func StringValue(s string) PropertyValue {
	return PropertyValue{str: s}
}

func ListValue(items ...string) PropertyValue {
	return PropertyValue{items: items, list: true}
}

func ClassifierValue(cs ...Classifier) PropertyValue {
	items := make([]string, len(cs))
	for i, c := range cs {
		items[i] = c.String()
	}
	return PropertyValue{items: items, classifiers: cs, list: true}
}

func (v PropertyValue) IsList() bool { return v.list }

// List returns the string form of each list item, or nil for a scalar.
func (v PropertyValue) List() []string { return v.items }

// Classifiers returns the typed items of a classifier list.
func (v PropertyValue) Classifiers() []Classifier { return v.classifiers }

// String returns the scalar, or the list items concatenated inside
// brackets without separators: ["a","b"] becomes "[ab]".
func (v PropertyValue) String() string {
	if !v.list {
		return v.str
	}
	var b strings.Builder
	b.WriteByte('[')
	for _, it := range v.items {
		b.WriteString(it)
	}
	b.WriteByte(']')
	return b.String()
}

// Properties is a string-keyed property bag that remembers insertion order.
type Properties struct {
	keys []string
	vals map[string]PropertyValue
}

func NewProperties() *Properties {
	return &Properties{vals: map[string]PropertyValue{}}
}

// Set adds or replaces k. Replacing keeps the original position.
func (p *Properties) Set(k string, v PropertyValue) {
	if p.vals == nil {
		p.vals = map[string]PropertyValue{}
	}
	if _, ok := p.vals[k]; !ok {
		p.keys = append(p.keys, k)
	}
	p.vals[k] = v
}

func (p *Properties) Get(k string) (PropertyValue, bool) {
	if p == nil {
		return PropertyValue{}, false
	}
	v, ok := p.vals[k]
	return v, ok
}

// Keys returns keys in insertion order.
func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Range calls fn for each entry in insertion order until fn returns false.
func (p *Properties) Range(fn func(k string, v PropertyValue) bool) {
	if p == nil {
		return
	}
	for _, k := range p.keys {
		if !fn(k, p.vals[k]) {
			return
		}
	}
}
