// Package markdown renders resolved annotation groups as Markdown
// documents: per-book preamble, chapter-break headers, blockquoted context
// with inline <u><b>...</b></u> markers spliced at the annotated offsets,
// per-annotation metadata footnotes, and images extracted to a sibling
// directory.
package markdown

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Jormii/IKobo/core/annotate"
	"github.com/Jormii/IKobo/core/kepub"
)

// Renderer renders one book's annotation groups. It owns the output naming
// and the image side-files; the Markdown text itself is returned to the
// caller for writing.
type Renderer struct {
	book   *kepub.Book
	meta   *kepub.Metadata
	outDir string
	name   string // output base name, without extension
}

// New creates a renderer for one opened book. outDir must exist.
func New(book *kepub.Book, meta *kepub.Metadata, outDir string) *Renderer {
	return &Renderer{
		book:   book,
		meta:   meta,
		outDir: outDir,
		name:   baseName(book, meta),
	}
}

// FileName returns the output document name:
// "<author>. <title>. <publisher>. <year>.md", omitting absent components.
func (r *Renderer) FileName() string {
	return r.name + ".md"
}

// ImagesDirName returns the sibling directory images are extracted to.
func (r *Renderer) ImagesDirName() string {
	return r.name + ".imgs"
}

// Render renders all groups, in order, into one Markdown document.
// Referenced images are written under ImagesDirName as a side effect.
func (r *Renderer) Render(groups []*annotate.Group) (string, error) {
	var b strings.Builder
	r.writePreamble(&b)

	var last *annotate.Group
	for _, g := range groups {
		if last == nil || !annotate.EqualHeadings(last.Headings(), g.Headings()) {
			b.WriteString("\n## ")
			b.WriteString(chapterTitle(g))
			b.WriteString("\n")
		}
		b.WriteString("\n")

		body, err := r.renderGroup(g)
		if err != nil {
			return "", err
		}
		b.WriteString(body)
		last = g
	}

	return b.String(), nil
}

func (r *Renderer) writePreamble(b *strings.Builder) {
	title := r.meta.Title
	if title == "" {
		title = r.name
	}
	b.WriteString("# ")
	b.WriteString(title)
	b.WriteString("\n")

	if line := joinPresent(r.meta.Author, r.meta.Publisher, r.meta.Year()); line != "" {
		b.WriteString("\n")
		b.WriteString(line)
		b.WriteString(".\n")
	}
}

// renderGroup renders one group: its containers blockquoted, separated by
// quote-continuation lines, terminated by the quoted metadata block. The
// pending-boundary invariant is checked after the walk.
func (r *Renderer) renderGroup(g *annotate.Group) (string, error) {
	s := newGroupState(r, g)

	var b strings.Builder
	for i, container := range g.Containers {
		block, err := s.renderBlock(container)
		if err != nil {
			return "", err
		}
		b.WriteString(block)
		if i < len(g.Containers)-1 {
			b.WriteString(">\n")
		}
	}

	if err := s.checkConsumed(); err != nil {
		return "", err
	}

	b.WriteString(">\n")
	for i, pair := range g.Pairs {
		b.WriteString(metadataLine(i+1, pair))
	}
	return b.String(), nil
}

// chapterTitle formats a group's heading hierarchy as a breadcrumb,
// shallowest level first. The sentinel no-heading entry stands alone.
func chapterTitle(g *annotate.Group) string {
	headings := g.Headings()

	levels := make([]annotate.HeadingLevel, 0, len(headings))
	for level := range headings {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	parts := make([]string, 0, len(levels))
	for _, level := range levels {
		parts = append(parts, headings[level].Text())
	}
	return strings.Join(parts, " / ")
}

// metadataLine formats one pair's footnote: ordinal, kind, both timestamps,
// and the note text when present.
func metadataLine(n int, pair *annotate.Pair) string {
	bm := pair.Bookmark
	const layout = "2006-01-02 15:04:05"

	line := fmt.Sprintf("> [%d] %s. Created %s. Modified %s.",
		n, bm.Kind, bm.DateCreated.Format(layout), bm.DateModified.Format(layout))
	if bm.Annotation != "" {
		line += " Note: " + strings.Join(strings.Fields(bm.Annotation), " ") + "."
	}
	return line + "\n"
}

func baseName(book *kepub.Book, meta *kepub.Metadata) string {
	if name := joinPresent(meta.Author, meta.Title, meta.Publisher, meta.Year()); name != "" {
		return name
	}
	// No metadata at all: fall back to the container's file name.
	base := book.File
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, ".kepub.epub")
}

func joinPresent(parts ...string) string {
	present := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			present = append(present, p)
		}
	}
	return strings.Join(present, ". ")
}
