package dom

// Subscription delivers element insertions under one root.
type Subscription struct {
	doc  *Document
	root *Element
	fn   func(added []*Element)
}

// Observe calls fn synchronously after each AppendChild whose parent lies in
// root's subtree (root included). Only element insertions are reported.
func (d *Document) Observe(root *Element, fn func(added []*Element)) *Subscription {
	sub := &Subscription{doc: d, root: root, fn: fn}
	d.mu.Lock()
	d.subs = append(d.subs, sub)
	d.mu.Unlock()
	return sub
}

// Disconnect stops delivery. It is safe to call more than once.
func (s *Subscription) Disconnect() {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	kept := s.doc.subs[:0]
	for _, sub := range s.doc.subs {
		if sub != s {
			kept = append(kept, sub)
		}
	}
	s.doc.subs = kept
}
