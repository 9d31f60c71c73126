package geo

import "time"

// RecordTypeFeature is the only record type the service stores today.
const RecordTypeFeature = "Feature"

// Record is an entity stored in a layer.
type Record interface {
	RecordType() string
	RecordID() string
}

type Feature struct {
	Type       string
	ID         string
	Geometry   Geometry
	Properties *Properties
}

var _ Record = (*Feature)(nil)

// NewFeature builds a Feature ready to be written to a layer.
func NewFeature(id string, g Geometry, props *Properties) *Feature {
	return &Feature{Type: RecordTypeFeature, ID: id, Geometry: g, Properties: props}
}

func (f *Feature) RecordType() string {
	if f.Type == "" {
		return RecordTypeFeature
	}
	return f.Type
}

func (f *Feature) RecordID() string { return f.ID }

// FeatureRef is the lightweight feature summary listed in a Context.
type FeatureRef struct {
	Handle      string
	Name        string
	License     string
	Bounds      []float64
	Abbr        string
	Classifiers []Classifier
}

// Query echoes the request parameters of a context lookup.
type Query struct {
	Latitude  float64
	Longitude float64
	IP        string
}

type Demographics struct {
	MetroScore int
}

type Context struct {
	Query        Query
	Timestamp    float64
	Features     []FeatureRef
	Demographics *Demographics
	Address      *Feature
}

type Layer struct {
	Name        string
	Title       string
	Description string
	Public      bool
	Created     int64 // epoch millis
	Updated     int64 // epoch millis
}

func (l Layer) CreatedAt() time.Time { return time.UnixMilli(l.Created).UTC() }
func (l Layer) UpdatedAt() time.Time { return time.UnixMilli(l.Updated).UTC() }

// LayersResult is one page of layers; NextCursor is empty on the last page.
type LayersResult struct {
	Layers     []Layer
	NextCursor string
}
