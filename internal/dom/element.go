package dom

import (
	"errors"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var (
	ErrForeignElement = errors.New("element belongs to another document")
	ErrHierarchy      = errors.New("element cannot be inserted into its own subtree")
)

// Event is delivered to listeners by Dispatch. Events do not bubble.
type Event struct {
	Type   string
	Target *Element
}

type Listener func(Event)

type listenerEntry struct {
	eventType string
	key       string
	fn        Listener
}

// Element wraps one element node. Elements are obtained from a Document and
// are stable: the same node always yields the same *Element.
type Element struct {
	doc       *Document
	node      *html.Node
	listeners []listenerEntry
}

func (e *Element) TagName() string {
	return e.node.Data
}

func (e *Element) Is(tag string) bool {
	return e != nil && e.node.Data == tag
}

func (e *Element) Attr(name string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return attr(e.node, name)
}

func (e *Element) SetAttr(name, value string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	setAttr(e.node, name, value)
}

func (e *Element) RemoveAttr(name string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	removeAttr(e.node, name)
}

// Value reports the current form value: the value attribute for inputs, the
// text content for textareas and the selected (or first) option for selects.
func (e *Element) Value() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	switch e.node.Data {
	case "textarea":
		return htmlquery.InnerText(e.node)
	case "select":
		options := htmlquery.Find(e.node, ".//option")
		if len(options) == 0 {
			return ""
		}
		chosen := options[0]
		for _, option := range options {
			if _, ok := attr(option, "selected"); ok {
				chosen = option
				break
			}
		}
		return optionValue(chosen)
	default:
		v, _ := attr(e.node, "value")
		return v
	}
}

// SetValue changes the form value without dispatching change. For selects, a
// value matching no option leaves the selection untouched.
func (e *Element) SetValue(value string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	switch e.node.Data {
	case "textarea":
		for c := e.node.FirstChild; c != nil; c = e.node.FirstChild {
			e.node.RemoveChild(c)
		}
		e.node.AppendChild(&html.Node{Type: html.TextNode, Data: value})
	case "select":
		options := htmlquery.Find(e.node, ".//option")
		var match *html.Node
		for _, option := range options {
			if optionValue(option) == value {
				match = option
				break
			}
		}
		if match == nil {
			return
		}
		for _, option := range options {
			removeAttr(option, "selected")
		}
		setAttr(match, "selected", "")
	default:
		setAttr(e.node, "value", value)
	}
}

func (e *Element) Checked() bool {
	_, ok := e.Attr("checked")
	return ok
}

func (e *Element) SetChecked(checked bool) {
	if checked {
		e.SetAttr("checked", "")
		return
	}
	e.RemoveAttr("checked")
}

// Find returns descendants (not e itself) whose tag is one of tags, in
// document order.
func (e *Element) Find(tags ...string) []*Element {
	var preds []string
	for _, tag := range tags {
		if validTag(tag) {
			preds = append(preds, "local-name()='"+tag+"'")
		}
	}
	if len(preds) == 0 {
		return nil
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.doc.query(e.node, ".//*["+strings.Join(preds, " or ")+"]")
}

// Closest returns e or its nearest ancestor with the given tag, or nil.
func (e *Element) Closest(tag string) *Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	for n := e.node; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && n.Data == tag {
			return e.doc.wrap(n)
		}
	}
	return nil
}

// Contains reports whether other is e or one of its descendants.
func (e *Element) Contains(other *Element) bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return contains(e.node, other.node)
}

// AppendChild moves child under e and then notifies every subscription whose
// root contains e.
func (e *Element) AppendChild(child *Element) error {
	if child.doc != e.doc {
		return ErrForeignElement
	}
	e.doc.mu.Lock()
	if contains(child.node, e.node) {
		e.doc.mu.Unlock()
		return ErrHierarchy
	}
	if child.node.Parent != nil {
		child.node.Parent.RemoveChild(child.node)
	}
	e.node.AppendChild(child.node)
	var targets []*Subscription
	for _, sub := range e.doc.subs {
		if contains(sub.root.node, e.node) {
			targets = append(targets, sub)
		}
	}
	e.doc.mu.Unlock()

	for _, sub := range targets {
		sub.fn([]*Element{child})
	}
	return nil
}

// On installs fn for eventType under key, replacing any listener previously
// installed under the same key.
func (e *Element) On(eventType, key string, fn Listener) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for i, entry := range e.listeners {
		if entry.eventType == eventType && entry.key == key {
			e.listeners[i].fn = fn
			return
		}
	}
	e.listeners = append(e.listeners, listenerEntry{eventType: eventType, key: key, fn: fn})
}

func (e *Element) Off(eventType, key string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	kept := e.listeners[:0]
	for _, entry := range e.listeners {
		if entry.eventType != eventType || entry.key != key {
			kept = append(kept, entry)
		}
	}
	e.listeners = kept
}

func (e *Element) ListenerCount(eventType string) int {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	n := 0
	for _, entry := range e.listeners {
		if entry.eventType == eventType {
			n++
		}
	}
	return n
}

// Dispatch runs the listeners for eventType in installation order. The tree
// lock is released first so listeners may read and mutate the document.
func (e *Element) Dispatch(eventType string) {
	e.doc.mu.RLock()
	var fns []Listener
	for _, entry := range e.listeners {
		if entry.eventType == eventType {
			fns = append(fns, entry.fn)
		}
	}
	e.doc.mu.RUnlock()

	event := Event{Type: eventType, Target: e}
	for _, fn := range fns {
		fn(event)
	}
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace != "" || a.Key != name {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

func optionValue(option *html.Node) string {
	if v, ok := attr(option, "value"); ok {
		return v
	}
	return strings.Join(strings.Fields(htmlquery.InnerText(option)), " ")
}

func contains(ancestor, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == ancestor {
			return true
		}
	}
	return false
}

func validTag(tag string) bool {
	if tag == "" {
		return false
	}
	for _, r := range tag {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
