package emitter

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/vincentbai/formtrack/internal/datalayer"
	"github.com/vincentbai/formtrack/internal/dom"
	"github.com/vincentbai/formtrack/internal/models"
	"github.com/vincentbai/formtrack/internal/pagepath"
)

// TimestampLayout matches the millisecond ISO-8601 form browsers produce.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

type Option func(*Emitter)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) { e.now = now }
}

// Emitter appends path- and time-tagged records to a data layer.
type Emitter struct {
	queue  datalayer.Queue
	loc    dom.Location
	now    func() time.Time
	logger *slog.Logger
}

// New creates an Emitter. A nil queue is treated as a data layer that never
// loaded: every Send logs a warning and drops the record.
func New(queue datalayer.Queue, loc dom.Location, logger *slog.Logger, opts ...Option) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Emitter{
		queue:  queue,
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Send builds the record and appends it. Keys in payload override the
// computed path and timestamp. Send never fails; problems are logged.
func (e *Emitter) Send(payload models.Record) {
	record := models.Record{
		"path":      pagepath.Current(e.loc),
		"timestamp": e.now().UTC().Format(TimestampLayout),
	}
	for k, v := range payload {
		record[k] = v
	}

	if e.queue == nil {
		e.logger.Warn("data layer is not loaded", "event", record.Name())
		return
	}
	if err := e.push(record); err != nil {
		e.logger.Warn("data layer rejected event", "event", record.Name(), "error", err)
		return
	}
	e.logger.Info("event sent to data layer", "event", record.Name(), "path", record.Path())
}

func (e *Emitter) push(record models.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("data layer panicked: %v", r)
		}
	}()
	return e.queue.Push(record)
}
