// Package dom wraps parsed book markup with the element queries the
// annotation pipeline needs: attribute and text access, sibling and parent
// navigation, class-filtered descendant search, and cached (tag, id) lookup.
//
// Kobo kepub documents are lenient XHTML, so parsing goes through
// golang.org/x/net/html rather than an XML parser. Every node is assigned a
// document-order index at parse time; the index is the stable identity key
// used for equality, map keys, and reading-order comparisons.
package dom

import (
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Document owns one parsed markup tree and its per-document caches.
type Document struct {
	root    *html.Node
	order   map[*html.Node]int
	idCache map[idKey][]*Element
}

type idKey struct {
	root int // document-order index of the search root
	tag  string
	id   string
}

// Element is a handle to a single element node within a Document.
// Two Elements are the same element iff they wrap the same node; compare
// with Same or via Index.
type Element struct {
	node *html.Node
	doc  *Document
}

// Parse parses markup and returns the document root element.
func Parse(data []byte) (*Element, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &StructuralError{Op: "parse", Detail: err.Error()}
	}

	doc := &Document{
		root:    root,
		order:   make(map[*html.Node]int),
		idCache: make(map[idKey][]*Element),
	}

	i := 0
	var number func(n *html.Node)
	number = func(n *html.Node) {
		doc.order[n] = i
		i++
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			number(c)
		}
	}
	number(root)

	return &Element{node: root, doc: doc}, nil
}

// Tag returns the element's tag name. The document root reports "".
func (e *Element) Tag() string {
	if e.node.Type != html.ElementNode {
		return ""
	}
	return e.node.Data
}

// Index returns the element's document-order index. Indices are assigned
// depth-first at parse time and never change, so they define a total order
// over the document and a stable identity key.
func (e *Element) Index() int {
	return e.doc.order[e.node]
}

// Same reports whether both handles wrap the same underlying node.
func (e *Element) Same(other *Element) bool {
	return other != nil && e.node == other.node
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// MustAttr returns the value of the named attribute, failing with a
// StructuralError when the attribute is absent.
func (e *Element) MustAttr(name string) (string, error) {
	v, ok := e.Attr(name)
	if !ok {
		return "", &StructuralError{Op: "attr", Detail: "<" + e.Tag() + "> has no " + name + " attribute"}
	}
	return v, nil
}

// Classes returns the element's class list.
func (e *Element) Classes() []string {
	v, ok := e.Attr("class")
	if !ok {
		return nil
	}
	return strings.Fields(v)
}

// HasClasses reports whether the element's class set is a superset of the
// given classes. Exact class names, not substrings.
func (e *Element) HasClasses(classes ...string) bool {
	have := make(map[string]bool)
	for _, c := range e.Classes() {
		have[c] = true
	}
	for _, c := range classes {
		if !have[c] {
			return false
		}
	}
	return true
}

// Text returns the concatenated text content of the element and its
// descendants, with surrounding whitespace trimmed.
func (e *Element) Text() string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return strings.TrimSpace(b.String())
}

// Parent returns the parent element, or nil at the document root.
func (e *Element) Parent() *Element {
	p := e.node.Parent
	if p == nil {
		return nil
	}
	return &Element{node: p, doc: e.doc}
}

// Children returns the child element nodes in document order. Text and
// comment nodes are skipped.
func (e *Element) Children() []*Element {
	var children []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			children = append(children, &Element{node: c, doc: e.doc})
		}
	}
	return children
}

// RawChildren returns all child nodes, including text nodes, as Elements.
// Callers that need to distinguish text from elements use IsText.
func (e *Element) RawChildren() []*Element {
	var children []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode || c.Type == html.TextNode {
			children = append(children, &Element{node: c, doc: e.doc})
		}
	}
	return children
}

// IsText reports whether the handle wraps a text node.
func (e *Element) IsText() bool {
	return e.node.Type == html.TextNode
}

// RawText returns a text node's data without trimming. For element nodes it
// returns the empty string.
func (e *Element) RawText() string {
	if e.node.Type != html.TextNode {
		return ""
	}
	return e.node.Data
}

// PrevSiblings returns the preceding sibling elements, nearest first.
func (e *Element) PrevSiblings() []*Element {
	var siblings []*Element
	for s := e.node.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			siblings = append(siblings, &Element{node: s, doc: e.doc})
		}
	}
	return siblings
}

// NextSiblings returns the following sibling elements, nearest first.
func (e *Element) NextSiblings() []*Element {
	var siblings []*Element
	for s := e.node.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			siblings = append(siblings, &Element{node: s, doc: e.doc})
		}
	}
	return siblings
}

// FindAll returns all descendant elements with the given tag whose class set
// contains every one of the given classes, in document order.
func (e *Element) FindAll(tag string, classes ...string) []*Element {
	var found []*Element
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == tag {
				el := &Element{node: c, doc: e.doc}
				if len(classes) == 0 || el.HasClasses(classes...) {
					found = append(found, el)
				}
			}
			walk(c)
		}
	}
	walk(e.node)
	return found
}

// Find returns the single descendant element matching FindAll's criteria.
// Zero or multiple matches fail with a StructuralError.
func (e *Element) Find(tag string, classes ...string) (*Element, error) {
	found := e.FindAll(tag, classes...)
	if len(found) != 1 {
		return nil, &StructuralError{
			Op:     "find",
			Detail: "expected exactly one <" + tag + ">, got " + strconv.Itoa(len(found)),
		}
	}
	return found[0], nil
}

// FindAllByID returns all descendant elements with the given tag and exact
// id attribute, in document order. Results are cached per (root, tag, id)
// on the owning document; the same lookup recurs across many annotations.
func (e *Element) FindAllByID(tag, id string) []*Element {
	key := idKey{root: e.Index(), tag: tag, id: id}
	if cached, ok := e.doc.idCache[key]; ok {
		return cached
	}

	var found []*Element
	for _, el := range e.FindAll(tag) {
		if v, ok := el.Attr("id"); ok && v == id {
			found = append(found, el)
		}
	}
	e.doc.idCache[key] = found
	return found
}

// FindByID returns the single descendant element with the given tag and id.
func (e *Element) FindByID(tag, id string) (*Element, error) {
	found := e.FindAllByID(tag, id)
	if len(found) != 1 {
		return nil, &StructuralError{
			Op:     "find",
			Detail: "expected exactly one <" + tag + " id=" + strconv.Quote(id) + ">, got " + strconv.Itoa(len(found)),
		}
	}
	return found[0], nil
}
