package dom

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// Event is one dispatched event recorded by a Snapshot.
type Event struct {
	Name  string
	Tag   string
	Value string
}

// Snapshot is an in-memory document parsed from saved HTML. It keeps form
// values, click handlers and dispatched events so table operations can run
// against it exactly as against a live page.
type Snapshot struct {
	mu       sync.Mutex
	doc      *goquery.Document
	values   map[*html.Node]string
	handlers map[*html.Node][]func(*Snapshot)
	events   []Event
	focused  *html.Node
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &Snapshot{
		doc:      doc,
		values:   make(map[*html.Node]string),
		handlers: make(map[*html.Node][]func(*Snapshot)),
	}, nil
}

// ParseString is Parse for an in-memory string.
func ParseString(s string) (*Snapshot, error) {
	return Parse(strings.NewReader(s))
}

// SnapshotPolicy keeps the structure the table operations look at and drops
// scripts, styles and event handler attributes from saved pages.
func SnapshotPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"html", "head", "body", "main", "section", "header", "footer", "nav",
		"div", "span", "p", "ul", "ol", "li", "br", "strong", "em", "i", "b", "label",
		"table", "thead", "tbody", "tfoot", "tr", "th", "td", "colgroup", "col",
		"textarea", "input", "button", "a",
	)
	p.AllowAttrs("class", "role", "contenteditable", "placeholder", "value", "type",
		"title", "colspan", "rowspan", "aria-label").Globally()
	p.AllowDataAttributes()
	return p
}

// LoadFile parses a saved page from disk, sanitizing it first when asked.
func LoadFile(path string, sanitize bool) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	if !sanitize {
		return Parse(f)
	}
	return Parse(SnapshotPolicy().SanitizeReader(f))
}

// QueryAll implements Document.
func (s *Snapshot) QueryAll(_ context.Context, selector string) ([]Element, error) {
	return s.find(s.doc.Selection, selector)
}

func (s *Snapshot) find(from *goquery.Selection, selector string) ([]Element, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", selector, err)
	}
	s.mu.Lock()
	nodes := from.FindMatcher(m).Nodes
	s.mu.Unlock()

	els := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &snapshotElement{s: s, node: n})
	}
	return els, nil
}

// OnClick registers fn to run when a node matching selector, or one of its
// descendants, is clicked. Handlers run without the snapshot lock held so
// they may mutate the document.
func (s *Snapshot) OnClick(selector string, fn func(*Snapshot)) error {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return fmt.Errorf("selector %q: %w", selector, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes := s.doc.Selection.FindMatcher(m).Nodes
	if len(nodes) == 0 {
		return fmt.Errorf("selector %q matched nothing", selector)
	}
	for _, n := range nodes {
		s.handlers[n] = append(s.handlers[n], fn)
	}
	return nil
}

// Append parses fragment and appends it to every node matching selector.
func (s *Snapshot) Append(selector, fragment string) error {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return fmt.Errorf("selector %q: %w", selector, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Selection.FindMatcher(m).AppendHtml(fragment)
	return nil
}

// Events returns the events dispatched so far.
func (s *Snapshot) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// HTML renders the document with current form values written back as
// default content, so a filled snapshot can be saved and reloaded.
func (s *Snapshot) HTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n, v := range s.values {
		switch n.Data {
		case "textarea":
			for c := n.FirstChild; c != nil; {
				next := c.NextSibling
				n.RemoveChild(c)
				c = next
			}
			n.AppendChild(&html.Node{Type: html.TextNode, Data: v})
		case "input":
			setAttr(n, "value", v)
		}
	}
	return s.doc.Html()
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isControl(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.Data == "textarea" || n.Data == "input")
}

// textContent concatenates text under n. Form controls below n contribute
// nothing, as in rendered innerText.
func textContent(n *html.Node, top bool) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	if !top && isControl(n) {
		return ""
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c, false))
	}
	return b.String()
}

type snapshotElement struct {
	s    *Snapshot
	node *html.Node
}

func (e *snapshotElement) QueryAll(_ context.Context, selector string) ([]Element, error) {
	return e.s.find(e.s.doc.FindNodes(e.node), selector)
}

func (e *snapshotElement) Text(context.Context) (string, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return textContent(e.node, true), nil
}

func (e *snapshotElement) Value(context.Context) (string, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.valueLocked(), nil
}

func (e *snapshotElement) valueLocked() string {
	if !isControl(e.node) {
		return ""
	}
	if v, ok := e.s.values[e.node]; ok {
		return v
	}
	if e.node.Data == "input" {
		return attr(e.node, "value")
	}
	return textContent(e.node, true)
}

func (e *snapshotElement) Click(context.Context) error {
	e.s.mu.Lock()
	var fns []func(*Snapshot)
	for n := e.node; n != nil; n = n.Parent {
		fns = append(fns, e.s.handlers[n]...)
	}
	e.s.events = append(e.s.events, Event{Name: "click", Tag: e.node.Data})
	e.s.mu.Unlock()

	for _, fn := range fns {
		fn(e.s)
	}
	return nil
}

func (e *snapshotElement) Focus(context.Context) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	e.s.focused = e.node
	return nil
}

func (e *snapshotElement) Blur(context.Context) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if e.s.focused == e.node {
		e.s.focused = nil
	}
	return nil
}

func (e *snapshotElement) SetValue(_ context.Context, value string) error {
	if !isControl(e.node) {
		return fmt.Errorf("%s: %w", e.node.Data, ErrNotEditable)
	}
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	e.s.values[e.node] = value
	return nil
}

func (e *snapshotElement) Dispatch(_ context.Context, event string) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	e.s.events = append(e.s.events, Event{Name: event, Tag: e.node.Data, Value: e.valueLocked()})
	return nil
}
