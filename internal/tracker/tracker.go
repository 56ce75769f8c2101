// Package tracker observes forms in a dom.Document and reports start, field
// interaction and submit events through an emitter.
//
// All handlers take a single tracker-wide lock for their whole run, so a form
// emits at most one form_start and one form_submit, and per-field counts stay
// gap free, even when events are dispatched from several goroutines.
package tracker

import (
	"log/slog"
	"sync"

	"github.com/vincentbai/formtrack/internal/dom"
	"github.com/vincentbai/formtrack/internal/models"
	"github.com/vincentbai/formtrack/internal/pagepath"
)

// ListenerKey namespaces the listeners the tracker installs, so re-tracking
// replaces them instead of stacking duplicates.
const ListenerKey = "formtrack"

// FieldTags are the element types whose values are tracked.
var FieldTags = []string{"input", "textarea", "select"}

// Sender receives payloads to tag and append to the data layer.
type Sender interface {
	Send(payload models.Record)
}

type Tracker struct {
	mu     sync.Mutex
	store  *Store
	sender Sender
	loc    dom.Location
	logger *slog.Logger
}

func New(loc dom.Location, sender Sender, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:  NewStore(),
		sender: sender,
		loc:    loc,
		logger: logger,
	}
}

// Identity returns the store key for form. A nil form resolves like a form
// without an id.
func (t *Tracker) Identity(form *dom.Element) string {
	var id string
	if form != nil {
		id, _ = form.Attr("id")
	}
	return pagepath.FormIdentity(t.loc, id)
}

// State returns a copy of the tracking state for identity.
func (t *Tracker) State(identity string) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.store.Get(identity)
	if !ok {
		return State{}, false
	}
	return state.clone(), true
}

// HandleInteraction records one change of fieldName. It does nothing for
// untracked or already submitted forms.
func (t *Tracker) HandleInteraction(form *dom.Element, fieldName, value string) {
	identity := t.Identity(form)

	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.store.Get(identity)
	if !ok || state.Submitted {
		return
	}

	if !state.Started {
		t.sender.Send(models.Record{"event": models.EventFormStart})
		state.Started = true
	}

	state.FieldInteractionCounts[fieldName]++
	t.sender.Send(models.Record{
		"event": models.EventFieldInteraction,
		"field": fieldName,
		"value": value,
		"count": state.FieldInteractionCounts[fieldName],
	})
}

// TrackField installs the change listener for field. Fields without a name
// are ignored.
func (t *Tracker) TrackField(form, field *dom.Element) {
	name, _ := field.Attr("name")
	if name == "" {
		return
	}
	field.On("change", ListenerKey, func(dom.Event) {
		t.HandleInteraction(form, name, FieldValue(field))
	})
}

// TrackForm starts tracking form unless its identity is already known.
func (t *Tracker) TrackForm(form *dom.Element) {
	identity := t.Identity(form)

	t.mu.Lock()
	_, created := t.store.Ensure(identity)
	t.mu.Unlock()
	if !created {
		return
	}

	form.On("submit", ListenerKey, func(dom.Event) {
		t.handleSubmit(form, identity)
	})
	for _, field := range form.Find(FieldTags...) {
		t.TrackField(form, field)
	}
	t.logger.Debug("tracking form", "identity", identity)
}

func (t *Tracker) handleSubmit(form *dom.Element, identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.store.Get(identity)
	if !ok || state.Submitted {
		return
	}
	state.Submitted = true

	t.sender.Send(models.Record{
		"event": models.EventFormSubmit,
		"data":  CollectValues(form),
	})
}

// Attach tracks every form already in doc and watches its body for inserted
// forms and fields. Stop the returned watcher to end observation.
func (t *Tracker) Attach(doc *dom.Document) *Watcher {
	for _, form := range doc.Forms() {
		t.TrackForm(form)
	}
	w := NewWatcher(t, doc, WatchConfig{})
	w.Start()
	return w
}

// FieldValue reads a field the way it is reported: "on"/"off" for checkboxes,
// the literal value otherwise.
func FieldValue(field *dom.Element) string {
	if typ, _ := field.Attr("type"); typ == "checkbox" {
		if field.Checked() {
			return "on"
		}
		return "off"
	}
	return field.Value()
}

// CollectValues maps every named field under form to its current value.
func CollectValues(form *dom.Element) map[string]string {
	data := make(map[string]string)
	for _, field := range form.Find(FieldTags...) {
		name, _ := field.Attr("name")
		if name == "" {
			continue
		}
		data[name] = FieldValue(field)
	}
	return data
}
