// Package dom is a small in-process document model over golang.org/x/net/html.
// It carries just enough browser behaviour to drive form tracking without a
// browser: attribute and value access, keyed event listeners, and insertion
// notifications for observed subtrees.
package dom

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Location is the read-only browser location a document was loaded from.
type Location struct {
	Pathname string
}

// NewLocation extracts the pathname from a full or path-only URL.
func NewLocation(rawURL string) (Location, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Location{}, fmt.Errorf("failed to parse location: %w", err)
	}
	pathname := parsed.EscapedPath()
	if pathname == "" && parsed.Host != "" {
		pathname = "/"
	}
	return Location{Pathname: pathname}, nil
}

type Document struct {
	mu   sync.RWMutex
	root *html.Node
	loc  Location
	subs []*Subscription

	wrapMu   sync.Mutex
	elements map[*html.Node]*Element
}

// Parse builds a document from HTML. The parser always synthesises html, head
// and body elements, so Body never returns nil for a parsed document.
func Parse(r io.Reader, loc Location) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{
		root:     root,
		loc:      loc,
		elements: make(map[*html.Node]*Element),
	}, nil
}

func ParseString(src string, loc Location) (*Document, error) {
	return Parse(strings.NewReader(src), loc)
}

func (d *Document) Location() Location {
	return d.loc
}

func (d *Document) Body() *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.wrap(htmlquery.FindOne(d.root, "//body"))
}

// Forms returns every form in the document in document order.
func (d *Document) Forms() []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.query(d.root, "//form")
}

// ElementByID returns the first element with the given id attribute, or nil.
func (d *Document) ElementByID(id string) *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	node, err := htmlquery.Query(d.root, "//*[@id="+xpathLiteral(id)+"]")
	if err != nil {
		return nil
	}
	return d.wrap(node)
}

// ParseFragment parses src in a body context and returns its top-level
// elements, detached and ready for AppendChild.
func (d *Document) ParseFragment(src string) ([]*Element, error) {
	bodyContext := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), bodyContext)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	var elements []*Element
	for _, node := range nodes {
		if node.Type == html.ElementNode {
			elements = append(elements, d.wrap(node))
		}
	}
	return elements, nil
}

// wrap returns the stable Element for node so listeners survive repeated lookups.
func (d *Document) wrap(node *html.Node) *Element {
	if node == nil || node.Type != html.ElementNode {
		return nil
	}
	d.wrapMu.Lock()
	defer d.wrapMu.Unlock()
	if element, ok := d.elements[node]; ok {
		return element
	}
	element := &Element{doc: d, node: node}
	d.elements[node] = element
	return element
}

// query runs an XPath expression relative to top. Callers hold d.mu.
func (d *Document) query(top *html.Node, expr string) []*Element {
	nodes, err := htmlquery.QueryAll(top, expr)
	if err != nil {
		return nil
	}
	elements := make([]*Element, 0, len(nodes))
	for _, node := range nodes {
		if element := d.wrap(node); element != nil {
			elements = append(elements, element)
		}
	}
	return elements
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, "', \"'\", '") + "')"
}
