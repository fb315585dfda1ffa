package markdown

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Jormii/IKobo/core/annotate"
	"github.com/Jormii/IKobo/core/dom"
)

// Markers spliced around each annotated range in the rendered text.
const (
	openMarker  = "<u><b>"
	closeMarker = "</b></u>"
)

// Inline tags passed through literally, wrapped in matching open/close tags.
var passthroughTags = map[string]bool{
	"b": true, "u": true, "s": true, "strong": true,
	"sub": true, "sup": true, "small": true, "big": true,
}

// groupState is the per-group render bookkeeping: which pairs' start/end
// boundary markers have not been emitted yet. Each boundary is consumed
// exactly once while walking the group's containers; a non-empty leftover
// set means the container range missed an anchor, which is fatal.
type groupState struct {
	r     *Renderer
	group *annotate.Group

	startPending map[int]bool // pair index -> start marker not yet emitted
	endPending   map[int]bool
}

func newGroupState(r *Renderer, g *annotate.Group) *groupState {
	s := &groupState{
		r:            r,
		group:        g,
		startPending: make(map[int]bool),
		endPending:   make(map[int]bool),
	}
	for i := range g.Pairs {
		s.startPending[i] = true
		s.endPending[i] = true
	}
	return s
}

func (s *groupState) checkConsumed() error {
	if len(s.startPending) != 0 || len(s.endPending) != 0 {
		return dom.Structuralf("render",
			"%d boundary markers left unemitted after rendering group",
			len(s.startPending)+len(s.endPending))
	}
	return nil
}

// renderBlock renders one top-level container as blockquoted Markdown, one
// "> " marker per non-empty line. Tables produce one quoted line per row.
func (s *groupState) renderBlock(container *dom.Element) (string, error) {
	text, err := s.renderElement(container)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString("> ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// renderElement dispatches on the element's tag. The dispatch set is
// closed: a tag outside it is a fatal unhandled case, never silently
// passed through.
func (s *groupState) renderElement(el *dom.Element) (string, error) {
	tag := el.Tag()

	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		children, err := s.renderChildren(el)
		if err != nil {
			return "", err
		}
		return strings.Repeat("#", int(tag[1]-'0')) + " " + strings.TrimSpace(children), nil

	case "i", "em":
		children, err := s.renderChildren(el)
		if err != nil {
			return "", err
		}
		return "*" + children + "*", nil

	case "a":
		href, ok := el.Attr("href")
		if !ok {
			// Anchors without a target render as nothing at all.
			return "", nil
		}
		children, err := s.renderChildren(el)
		if err != nil {
			return "", err
		}
		return "[" + children + "](" + href + ")", nil

	case "p", "div", "span":
		return s.renderChildren(el)

	case "table":
		return s.renderTable(el)

	case "img":
		return s.renderImage(el)
	}

	if passthroughTags[tag] {
		children, err := s.renderChildren(el)
		if err != nil {
			return "", err
		}
		return "<" + tag + ">" + children + "</" + tag + ">", nil
	}

	return "", dom.Structuralf("render", "unhandled tag <%s>", tag)
}

// renderChildren concatenates the rendered children of an element, then
// splices any pending boundary markers anchored at this exact element into
// the result.
func (s *groupState) renderChildren(el *dom.Element) (string, error) {
	var b strings.Builder
	for _, child := range el.RawChildren() {
		if child.IsText() {
			b.WriteString(child.RawText())
			continue
		}
		text, err := s.renderElement(child)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}
	return s.splice(el, b.String()), nil
}

type insertion struct {
	offset int
	marker string
}

// splice inserts the boundary markers of every pending pair anchored at el
// into the element's rendered child text. Offsets are rune offsets into
// that text. Close markers are collected in ascending pair order and open
// markers in descending pair order, then all insertions are applied from
// the highest offset down; insertions at equal offsets land before earlier
// ones, so ranges sharing offsets nest instead of crossing.
func (s *groupState) splice(el *dom.Element, text string) string {
	var ins []insertion

	for i := 0; i < len(s.group.Pairs); i++ {
		p := s.group.Pairs[i]
		if s.endPending[i] && p.Context.End.Same(el) {
			ins = append(ins, insertion{offset: p.Context.EndOffset, marker: closeMarker})
			delete(s.endPending, i)
		}
	}
	for i := len(s.group.Pairs) - 1; i >= 0; i-- {
		p := s.group.Pairs[i]
		if s.startPending[i] && p.Context.Start.Same(el) {
			ins = append(ins, insertion{offset: p.Context.StartOffset, marker: openMarker})
			delete(s.startPending, i)
		}
	}
	if len(ins) == 0 {
		return text
	}

	sort.SliceStable(ins, func(i, j int) bool { return ins[i].offset > ins[j].offset })

	runes := []rune(text)
	for _, in := range ins {
		offset := in.offset
		if offset < 0 {
			offset = 0
		}
		if offset > len(runes) {
			offset = len(runes)
		}
		spliced := make([]rune, 0, len(runes)+len(in.marker))
		spliced = append(spliced, runes[:offset]...)
		spliced = append(spliced, []rune(in.marker)...)
		spliced = append(spliced, runes[offset:]...)
		runes = spliced
	}
	return string(runes)
}

// renderTable renders a table as pipe-delimited rows: header cells from the
// th elements, a separator row, body rows from the tbody's tr children.
// Whitespace-only text between rows is ignored; anything else inside the
// tbody is a fatal unhandled case.
func (s *groupState) renderTable(el *dom.Element) (string, error) {
	var header []string
	for _, th := range el.FindAll("th") {
		cell, err := s.renderChildren(th)
		if err != nil {
			return "", err
		}
		header = append(header, strings.TrimSpace(cell))
	}

	tbody, err := el.Find("tbody")
	if err != nil {
		return "", err
	}

	var rows [][]string
	for _, child := range tbody.RawChildren() {
		if child.IsText() {
			if strings.TrimSpace(child.RawText()) != "" {
				return "", dom.Structuralf("render",
					"unexpected text %q between table rows", strings.TrimSpace(child.RawText()))
			}
			continue
		}
		if child.Tag() != "tr" {
			return "", dom.Structuralf("render", "unhandled tag <%s> in table body", child.Tag())
		}

		var row []string
		for _, td := range child.Children() {
			cell, err := s.renderChildren(td)
			if err != nil {
				return "", err
			}
			row = append(row, strings.TrimSpace(cell))
		}
		rows = append(rows, row)
	}

	// Column widths are normalized across header and body so the pipes line
	// up in the rendered text.
	widths := make([]int, len(header))
	measure := func(row []string) {
		for i, cell := range row {
			if i < len(widths) && len([]rune(cell)) > widths[i] {
				widths[i] = len([]rune(cell))
			}
		}
	}
	measure(header)
	for _, row := range rows {
		measure(row)
	}

	var b strings.Builder
	writeRow := func(row []string) {
		b.WriteString("|")
		for i, cell := range row {
			width := len([]rune(cell))
			if i < len(widths) {
				width = widths[i]
			}
			pad := width - len([]rune(cell))
			if pad < 0 {
				pad = 0
			}
			b.WriteString(" ")
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", pad))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(header)
	separator := make([]string, len(header))
	for i, w := range widths {
		dashes := 3
		if w > dashes {
			dashes = w
		}
		separator[i] = strings.Repeat("-", dashes)
	}
	writeRow(separator)
	for _, row := range rows {
		writeRow(row)
	}
	return b.String(), nil
}

// renderImage extracts the referenced image from the archive into the
// document's .imgs sibling directory, original file name preserved, and
// emits a Markdown image link with a percent-encoded relative path.
func (s *groupState) renderImage(el *dom.Element) (string, error) {
	src, err := el.MustAttr("src")
	if err != nil {
		return "", err
	}

	// Image members are referenced relative to the enclosing document.
	member := path.Join(path.Dir(s.group.Member()), src)
	data, err := s.r.book.Read(member)
	if err != nil {
		return "", err
	}

	name := path.Base(member)
	dir := filepath.Join(s.r.outDir, s.r.ImagesDirName())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", err
	}

	link := (&url.URL{Path: s.r.ImagesDirName() + "/" + name}).EscapedPath()
	alt, ok := el.Attr("alt")
	if !ok || alt == "" {
		alt = name
	}
	return "![" + alt + "](" + link + ")", nil
}
