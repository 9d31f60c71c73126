// Package recordevents publishes record change events to Kafka.
package recordevents

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammed-shakir/geoclient/internal/mapper"
	"github.com/mohammed-shakir/geoclient/pkg/geo"
)

type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// Event announces that a record in a layer was written or deleted. Cell is
// the H3 cell of the record geometry's bound centre at resolution Res; it is
// empty for deletes and for records without geometry.
type Event struct {
	Layer string    `json:"layer"`
	ID    string    `json:"id"`
	Op    Op        `json:"op"`
	Cell  string    `json:"cell,omitempty"`
	Res   int       `json:"res,omitempty"`
	TS    time.Time `json:"ts"`
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.Layer) == "" {
		return errors.New("layer is required")
	}
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("id is required")
	}
	switch e.Op {
	case OpPut, OpDelete:
	default:
		return fmt.Errorf("unknown op %q", e.Op)
	}
	return nil
}

// Version orders events for the same record.
func (e Event) Version() uint64 {
	if e.TS.IsZero() {
		return 0
	}
	return uint64(e.TS.UnixNano())
}

// Builder turns record writes into events.
type Builder struct {
	Mapper mapper.Interface
	Res    int
	Now    func() time.Time
}

func (b Builder) Build(op Op, layer, id string, f *geo.Feature) Event {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	ev := Event{Layer: layer, ID: id, Op: op, TS: now().UTC()}
	if op != OpPut || b.Mapper == nil {
		return ev
	}
	if c, ok := f.Center(); ok {
		if cell, err := b.Mapper.CellFor(c, b.Res); err == nil {
			ev.Cell, ev.Res = cell, b.Res
		}
	}
	return ev
}
