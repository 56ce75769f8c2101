package tracker

import (
	"sync"

	"github.com/vincentbai/formtrack/internal/dom"
)

// WatchConfig selects what a Watcher observes. Zero values fall back to the
// document body, "form" and FieldTags.
type WatchConfig struct {
	Roots     []*dom.Element
	FormTag   string
	FieldTags []string
}

// Watcher applies form and field tracking to elements inserted under its roots.
type Watcher struct {
	tracker *Tracker
	doc     *dom.Document
	cfg     WatchConfig

	mu   sync.Mutex
	subs []*dom.Subscription
}

func NewWatcher(t *Tracker, doc *dom.Document, cfg WatchConfig) *Watcher {
	if len(cfg.Roots) == 0 {
		cfg.Roots = []*dom.Element{doc.Body()}
	}
	if cfg.FormTag == "" {
		cfg.FormTag = "form"
	}
	if len(cfg.FieldTags) == 0 {
		cfg.FieldTags = FieldTags
	}
	return &Watcher{tracker: t, doc: doc, cfg: cfg}
}

// Start subscribes to every root. Calling Start on a running watcher is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.subs != nil {
		return
	}
	for _, root := range w.cfg.Roots {
		if root == nil {
			continue
		}
		w.subs = append(w.subs, w.doc.Observe(root, w.handleAdded))
	}
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, sub := range w.subs {
		sub.Disconnect()
	}
	w.subs = nil
}

// handleAdded tracks an inserted form directly. For any other node it tracks
// the forms inside it and then, separately, every field inside it against the
// field's enclosing form; the second pass picks up fields added to a form that
// was tracked before the insertion.
func (w *Watcher) handleAdded(nodes []*dom.Element) {
	for _, node := range nodes {
		if node.Is(w.cfg.FormTag) {
			w.tracker.TrackForm(node)
			continue
		}
		for _, form := range node.Find(w.cfg.FormTag) {
			w.tracker.TrackForm(form)
		}
		for _, field := range node.Find(w.cfg.FieldTags...) {
			w.tracker.TrackField(field.Closest(w.cfg.FormTag), field)
		}
	}
}
