// Package datalayer holds the destinations emitted records are appended to.
package datalayer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vincentbai/formtrack/internal/models"
)

// Queue is an ordered, append-only destination for records.
type Queue interface {
	Push(record models.Record) error
}

// DataLayer is an in-memory page-global event list.
type DataLayer struct {
	mu     sync.Mutex
	events []models.Record
}

func New() *DataLayer {
	return &DataLayer{}
}

func (d *DataLayer) Push(record models.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, record)
	return nil
}

// Events returns a snapshot of everything pushed so far, oldest first.
func (d *DataLayer) Events() []models.Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.Record, len(d.events))
	copy(out, d.events)
	return out
}

func (d *DataLayer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

// Writer encodes each record as one JSON line.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewWriter(w io.Writer, pretty bool) *Writer {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &Writer{enc: enc}
}

func (w *Writer) Push(record models.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(record); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return nil
}

// Multi fans a record out to every wrapped queue. A failing queue does not
// stop delivery to the rest.
type Multi struct {
	queues []Queue
}

func NewMulti(queues ...Queue) *Multi {
	return &Multi{queues: queues}
}

func (m *Multi) Push(record models.Record) error {
	var errs []error
	for _, q := range m.queues {
		if err := q.Push(record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func adapts a plain function to Queue.
type Func func(record models.Record) error

func (f Func) Push(record models.Record) error {
	return f(record)
}
