package markdown

import (
	"errors"
	"strings"
	"testing"

	"github.com/Jormii/IKobo/core/annotate"
	"github.com/Jormii/IKobo/core/bookmark"
	"github.com/Jormii/IKobo/core/dom"
)

func parseBody(t *testing.T, body string) *dom.Element {
	t.Helper()
	root, err := dom.Parse([]byte("<html><body>" + body + "</body></html>"))
	if err != nil {
		t.Fatal(err)
	}
	return root
}

// rangeGroup builds a one-container group with one marked range per
// (start, end) offset pair, all anchored on the single span inside.
func rangeGroup(t *testing.T, root *dom.Element, offsets ...[2]int) *annotate.Group {
	t.Helper()

	container, err := root.FindByID("p", "c")
	if err != nil {
		t.Fatal(err)
	}
	anchor, err := container.Find("span")
	if err != nil {
		t.Fatal(err)
	}

	g := &annotate.Group{Containers: []*dom.Element{container}}
	for _, o := range offsets {
		g.Pairs = append(g.Pairs, &annotate.Pair{
			Bookmark: &bookmark.Bookmark{Kind: bookmark.KindHighlight},
			Context: &annotate.Context{
				Start:       anchor,
				StartOffset: o[0],
				End:         anchor,
				EndOffset:   o[1],
			},
		})
	}
	return g
}

func renderTestGroup(t *testing.T, g *annotate.Group) string {
	t.Helper()
	out, err := (&Renderer{}).renderGroup(g)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestSpliceSingleRange(t *testing.T) {
	root := parseBody(t, `<p id="c"><span id="s">hello world</span></p>`)
	g := rangeGroup(t, root, [2]int{0, 5})

	out := renderTestGroup(t, g)
	if !strings.Contains(out, "> <u><b>hello</b></u> world\n") {
		t.Errorf("markers misplaced:\n%s", out)
	}
}

// Two ranges with identical offsets must nest, never cross.
func TestSpliceSharedOffsetsNest(t *testing.T) {
	root := parseBody(t, `<p id="c"><span id="s">hello world</span></p>`)
	g := rangeGroup(t, root, [2]int{0, 5}, [2]int{0, 5})

	out := renderTestGroup(t, g)
	if !strings.Contains(out, "<u><b><u><b>hello</b></u></b></u> world") {
		t.Errorf("shared offsets should nest:\n%s", out)
	}
}

func TestSpliceNestedRanges(t *testing.T) {
	root := parseBody(t, `<p id="c"><span id="s">hello world</span></p>`)
	g := rangeGroup(t, root, [2]int{0, 11}, [2]int{6, 11})

	out := renderTestGroup(t, g)
	if !strings.Contains(out, "<u><b>hello <u><b>world</b></u></b></u>") {
		t.Errorf("inner range should nest inside outer:\n%s", out)
	}
}

func TestSpliceOffsetsAreRunes(t *testing.T) {
	// Offsets count runes, not bytes: "añejo" marks as a 5-rune word.
	root := parseBody(t, `<p id="c"><span id="s">añejo vino</span></p>`)
	g := rangeGroup(t, root, [2]int{0, 5})

	out := renderTestGroup(t, g)
	if !strings.Contains(out, "<u><b>añejo</b></u> vino") {
		t.Errorf("rune offsets mishandled:\n%s", out)
	}
}

// A note and a highlight on the same line render as one group with both
// ranges marked and one footnote each.
func TestRenderGroupMetadataLines(t *testing.T) {
	root := parseBody(t, `<p id="c"><span id="s">hello world</span></p>`)
	g := rangeGroup(t, root, [2]int{0, 5}, [2]int{6, 11})
	g.Pairs[0].Bookmark.Kind = bookmark.KindNote
	g.Pairs[0].Bookmark.Annotation = "two\n  lines"

	out := renderTestGroup(t, g)
	if !strings.Contains(out, "<u><b>hello</b></u> <u><b>world</b></u>") {
		t.Errorf("both ranges should be marked:\n%s", out)
	}
	if !strings.Contains(out, "> [1] note.") {
		t.Errorf("first footnote missing:\n%s", out)
	}
	if !strings.Contains(out, "> [2] highlight.") {
		t.Errorf("second footnote missing:\n%s", out)
	}
	// Note text is collapsed onto one line.
	if !strings.Contains(out, "Note: two lines.") {
		t.Errorf("note not collapsed:\n%s", out)
	}
}

// An anchor outside the rendered containers leaves its boundary pending,
// which the post-render check turns into a failure.
func TestRenderGroupUnconsumedBoundary(t *testing.T) {
	root := parseBody(t, `<p id="c"><span id="s">text</span></p><p id="other"><span id="s2">more</span></p>`)
	g := rangeGroup(t, root, [2]int{0, 4})

	stray, err := root.FindByID("span", "s2")
	if err != nil {
		t.Fatal(err)
	}
	g.Pairs[0].Context.End = stray

	if _, err := (&Renderer{}).renderGroup(g); !errors.Is(err, dom.ErrStructure) {
		t.Errorf("got %v, want ErrStructure", err)
	}
}

func TestRenderElementClosedDispatch(t *testing.T) {
	root := parseBody(t, `<p id="c"><span id="s"><video>clip</video></span></p>`)
	g := rangeGroup(t, root, [2]int{0, 0})

	if _, err := (&Renderer{}).renderGroup(g); !errors.Is(err, dom.ErrStructure) {
		t.Errorf("unhandled tag must fail: got %v", err)
	}
}

func TestRenderInlineTags(t *testing.T) {
	root := parseBody(t,
		`<p id="c"><span id="s">see <i>cursive</i> and <b>bold</b> and <a href="http://x/y">link</a> and <a name="x">void</a></span></p>`)
	g := rangeGroup(t, root, [2]int{0, 0})

	out := renderTestGroup(t, g)
	for _, want := range []string{"*cursive*", "<b>bold</b>", "[link](http://x/y)"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "void") {
		t.Errorf("anchor without href should render as nothing:\n%s", out)
	}
}

func TestRenderHeadings(t *testing.T) {
	root := parseBody(t, `<h3 id="c"><span id="s">Section</span></h3>`)

	container, err := root.FindByID("h3", "c")
	if err != nil {
		t.Fatal(err)
	}
	anchor, err := container.Find("span")
	if err != nil {
		t.Fatal(err)
	}
	g := &annotate.Group{
		Containers: []*dom.Element{container},
		Pairs: []*annotate.Pair{{
			Bookmark: &bookmark.Bookmark{Kind: bookmark.KindHighlight},
			Context:  &annotate.Context{Start: anchor, End: anchor},
		}},
	}

	out := renderTestGroup(t, g)
	if !strings.Contains(out, "> ### ") {
		t.Errorf("h3 should render as ###:\n%s", out)
	}
}

func TestRenderTable(t *testing.T) {
	root := parseBody(t, `<p id="c"><span id="s">x</span></p>
<table id="t"><thead><tr><th>A</th></tr></thead><tbody><tr><td>B</td></tr></tbody></table>`)

	g := rangeGroup(t, root, [2]int{0, 1})
	table, err := root.FindByID("table", "t")
	if err != nil {
		t.Fatal(err)
	}
	g.Containers = append(g.Containers, table)

	out := renderTestGroup(t, g)
	for _, want := range []string{"> | A |\n", "> | --- |\n", "> | B |\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing row %q in:\n%s", want, out)
		}
	}
}

func TestRenderTableForeignContent(t *testing.T) {
	// A script element is one of the few things the parser leaves inside a
	// table body verbatim.
	root := parseBody(t, `<p id="c"><span id="s">x</span></p>
<table id="t"><tbody><script>x</script><tr><td>B</td></tr></tbody></table>`)

	g := rangeGroup(t, root, [2]int{0, 1})
	table, err := root.FindByID("table", "t")
	if err != nil {
		t.Fatal(err)
	}
	g.Containers = append(g.Containers, table)

	if _, err := (&Renderer{}).renderGroup(g); err == nil {
		t.Fatal("non-row content in table body must fail")
	}
}
