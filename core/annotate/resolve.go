// Package annotate resolves annotation rows against their book markup and
// arranges the results into reading order.
//
// Resolution turns one bookmark row into a Context: the exact start/end
// anchor elements with character offsets, the minimal slice of top-level
// container elements that must be quoted to show the annotation, and the
// nearest preceding heading per level. Sorting and merging then turn all of
// a book's (bookmark, context) pairs into renderable groups.
package annotate

import (
	"github.com/Jormii/IKobo/core/bookmark"
	"github.com/Jormii/IKobo/core/dom"
	"github.com/Jormii/IKobo/core/kepub"
	"github.com/Jormii/IKobo/core/ref"
)

// bodyRootID marks the element wrapping a chapter's readable body in
// Kobo-processed markup.
const bodyRootID = "book-inner"

// HeadingLevel ranks headings h1 (1) through h6 (6). NoHeading is the
// sentinel level used when no heading precedes the annotation; its mapped
// element is the document's first non-empty top-level element instead.
type HeadingLevel int

// NoHeading is the sentinel level for annotations before any heading.
const NoHeading HeadingLevel = 0

// Context is the resolved structural context of one annotation.
type Context struct {
	Member string // archive member path the annotation lives in

	Start       *dom.Element // inline element where the marked range opens
	StartOffset int          // character offset into Start's rendered text
	End         *dom.Element
	EndOffset   int

	// Containers is the contiguous slice of the body root's direct children
	// spanning the annotation, in document order.
	Containers []*dom.Element

	// Headings maps each heading level to the nearest heading at or before
	// the annotation. Never empty.
	Headings map[HeadingLevel]*dom.Element
}

// Resolve reconstructs the structural context of one bookmark against its
// opened book. The bookmark must belong to the book; a mismatch is a caller
// error and fails immediately.
func Resolve(bm *bookmark.Bookmark, book *kepub.Book, deviceRoot string) (*Context, error) {
	content, err := ref.ParseContentID(bm.ContentID, deviceRoot)
	if err != nil {
		return nil, err
	}
	if bm.VolumeID != book.VolumeID || content.File != book.File {
		return nil, dom.Structuralf("resolve",
			"bookmark %q resolved against wrong book %q", bm.ContentID, book.File)
	}

	tree, err := book.Tree(content.Member)
	if err != nil {
		return nil, err
	}
	body, err := tree.FindByID("div", bodyRootID)
	if err != nil {
		return nil, err
	}

	// Duplicate ids occur when a highlight borders an image that shares its
	// id: the start takes the first match in document order, the end the
	// last.
	start, startTop, err := resolveAnchor(bm.StartContainerPath, body, true)
	if err != nil {
		return nil, err
	}
	end, endTop, err := resolveAnchor(bm.EndContainerPath, body, false)
	if err != nil {
		return nil, err
	}

	containers, err := containerRange(body, startTop, endTop)
	if err != nil {
		return nil, err
	}

	headings, err := resolveHeadings(body, containers[0])
	if err != nil {
		return nil, err
	}

	// Provisional: Kobo wraps every annotation boundary in a span.
	for _, anchor := range []*dom.Element{start, end} {
		if anchor.Tag() != "span" {
			return nil, dom.Structuralf("resolve",
				"anchor is <%s>, expected <span>", anchor.Tag())
		}
	}

	return &Context{
		Member:      content.Member,
		Start:       start,
		StartOffset: bm.StartOffset,
		End:         end,
		EndOffset:   bm.EndOffset,
		Containers:  containers,
		Headings:    headings,
	}, nil
}

// resolveAnchor finds one endpoint element under the body root and the
// top-level container (direct child of the body root) holding it.
func resolveAnchor(containerPath string, body *dom.Element, first bool) (anchor, top *dom.Element, err error) {
	cp, err := ref.ParseContainerPath(containerPath)
	if err != nil {
		return nil, nil, err
	}

	matches := body.FindAllByID(cp.Tag, cp.ID)
	if len(matches) == 0 {
		return nil, nil, dom.Structuralf("resolve",
			"no <%s id=%q> under body root", cp.Tag, cp.ID)
	}
	if first {
		anchor = matches[0]
	} else {
		anchor = matches[len(matches)-1]
	}

	top = anchor
	for {
		parent := top.Parent()
		if parent == nil {
			return nil, nil, dom.Structuralf("resolve",
				"anchor <%s id=%q> is not inside the body root", cp.Tag, cp.ID)
		}
		if parent.Same(body) {
			return anchor, top, nil
		}
		top = parent
	}
}

// containerRange slices the body root's direct children from the start
// anchor's container through the end anchor's container, inclusive.
func containerRange(body, startTop, endTop *dom.Element) ([]*dom.Element, error) {
	children := body.Children()

	from, to := -1, -1
	for i, child := range children {
		if child.Same(startTop) {
			from = i
		}
		if child.Same(endTop) {
			to = i
		}
	}
	if from == -1 || to == -1 || to < from {
		return nil, dom.Structuralf("resolve",
			"container range [%d, %d] is not a slice of the body root", from, to)
	}
	return children[from : to+1], nil
}

// resolveHeadings walks backward from the first container (inclusive)
// through its preceding siblings, recording the nearest heading per level.
// When the walk reaches the document start without any heading, the first
// non-empty top-level element stands in under the NoHeading sentinel.
func resolveHeadings(body, first *dom.Element) (map[HeadingLevel]*dom.Element, error) {
	headings := make(map[HeadingLevel]*dom.Element)

	walk := append([]*dom.Element{first}, first.PrevSiblings()...)
	for _, sibling := range walk {
		level, ok := headingLevel(sibling.Tag())
		if !ok {
			continue
		}
		if _, seen := headings[level]; !seen {
			headings[level] = sibling
		}
	}
	if len(headings) > 0 {
		return headings, nil
	}

	for _, child := range body.Children() {
		if child.Text() != "" {
			headings[NoHeading] = child
			return headings, nil
		}
	}
	return nil, dom.Structuralf("resolve",
		"no heading and no non-empty element precedes the annotation")
}

func headingLevel(tag string) (HeadingLevel, bool) {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return HeadingLevel(tag[1] - '0'), true
	}
	return 0, false
}
