package annotate_test

import (
	"testing"

	"github.com/Jormii/IKobo/core/annotate"
	"github.com/Jormii/IKobo/core/bookmark"
	"github.com/Jormii/IKobo/core/dom"
	"github.com/Jormii/IKobo/core/kepub"
)

const groupChapter = `<html><body><div id="book-inner">
<h2 id="h2a">First</h2>
<p id="p1"><span id="s1">a</span></p>
<p id="p2"><span id="s2">b</span></p>
<p id="p3"><span id="s3">c</span></p>
<h2 id="h2b">Second</h2>
<p id="p4"><span id="s4">d</span></p>
</div></body></html>`

// fixture indexes the chapter's elements by id for direct context assembly.
type fixture struct {
	t    *testing.T
	root *dom.Element
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root, err := dom.Parse([]byte(groupChapter))
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{t: t, root: root}
}

func (f *fixture) el(tag, id string) *dom.Element {
	f.t.Helper()
	el, err := f.root.FindByID(tag, id)
	if err != nil {
		f.t.Fatal(err)
	}
	return el
}

func (f *fixture) pair(member string, startOffset int, heading string, containerIDs ...string) *annotate.Pair {
	f.t.Helper()

	containers := make([]*dom.Element, len(containerIDs))
	for i, id := range containerIDs {
		containers[i] = f.el("p", id)
	}
	anchor, err := containers[0].Find("span")
	if err != nil {
		f.t.Fatal(err)
	}

	return &annotate.Pair{
		Bookmark: &bookmark.Bookmark{Kind: bookmark.KindHighlight},
		Context: &annotate.Context{
			Member:      member,
			Start:       anchor,
			StartOffset: startOffset,
			End:         anchor,
			EndOffset:   startOffset,
			Containers:  containers,
			Headings:    map[annotate.HeadingLevel]*dom.Element{2: f.el("h2", heading)},
		},
	}
}

func TestSort(t *testing.T) {
	f := newFixture(t)
	meta := &kepub.Metadata{TOC: []string{"a.html", "b.html"}}

	later := f.pair("b.html", 0, "h2a", "p1")
	second := f.pair("a.html", 0, "h2a", "p2")
	first := f.pair("a.html", 0, "h2a", "p1")
	sameAnchor := f.pair("a.html", 5, "h2a", "p1")

	pairs := []*annotate.Pair{later, sameAnchor, second, first}
	annotate.Sort(pairs, meta)

	want := []*annotate.Pair{first, sameAnchor, second, later}
	for i := range want {
		if pairs[i] != want[i] {
			t.Fatalf("pairs[%d] out of order: spine first, then anchor index, then offset", i)
		}
	}
}

func TestMergeOverlapping(t *testing.T) {
	f := newFixture(t)

	// Ranges [p1, p2] and [p2, p3] touch; [p4] lies past them and carries a
	// different heading.
	a := f.pair("a.html", 0, "h2a", "p1", "p2")
	b := f.pair("a.html", 1, "h2a", "p2", "p3")
	c := f.pair("a.html", 2, "h2b", "p4")

	groups := annotate.Merge([]*annotate.Pair{a, b, c})
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}

	if len(groups[0].Pairs) != 2 {
		t.Errorf("first group holds %d pairs, want 2", len(groups[0].Pairs))
	}
	// Container union is de-duplicated: p2 appears once.
	if len(groups[0].Containers) != 3 {
		t.Fatalf("first group union has %d containers, want 3", len(groups[0].Containers))
	}
	for i, id := range []string{"p1", "p2", "p3"} {
		if got, _ := groups[0].Containers[i].Attr("id"); got != id {
			t.Errorf("Containers[%d] = %q, want %q", i, got, id)
		}
	}

	if len(groups[1].Pairs) != 1 || len(groups[1].Containers) != 1 {
		t.Errorf("second group = %d pairs, %d containers", len(groups[1].Pairs), len(groups[1].Containers))
	}
}

func TestMergeSplitsOnGap(t *testing.T) {
	f := newFixture(t)

	a := f.pair("a.html", 0, "h2a", "p1")
	b := f.pair("a.html", 1, "h2a", "p3")

	groups := annotate.Merge([]*annotate.Pair{a, b})
	if len(groups) != 2 {
		t.Fatalf("disjoint ranges under one heading still split: got %d groups", len(groups))
	}
}

func TestMergeSplitsOnMember(t *testing.T) {
	f := newFixture(t)

	a := f.pair("a.html", 0, "h2a", "p1")
	b := f.pair("b.html", 0, "h2a", "p1")

	if groups := annotate.Merge([]*annotate.Pair{a, b}); len(groups) != 2 {
		t.Fatalf("member change must split: got %d groups", len(groups))
	}
}

func TestMergeEveryPairLandsOnce(t *testing.T) {
	f := newFixture(t)

	pairs := []*annotate.Pair{
		f.pair("a.html", 0, "h2a", "p1"),
		f.pair("a.html", 1, "h2a", "p1", "p2"),
		f.pair("a.html", 2, "h2b", "p4"),
	}
	groups := annotate.Merge(pairs)

	total := 0
	for _, g := range groups {
		total += len(g.Pairs)
	}
	if total != len(pairs) {
		t.Errorf("%d pairs distributed, want %d", total, len(pairs))
	}
}

// Sorting a sorted sequence and re-merging it reproduces the same
// partition.
func TestMergeIdempotent(t *testing.T) {
	f := newFixture(t)
	meta := &kepub.Metadata{TOC: []string{"a.html"}}

	pairs := []*annotate.Pair{
		f.pair("a.html", 0, "h2a", "p1", "p2"),
		f.pair("a.html", 1, "h2a", "p2"),
		f.pair("a.html", 2, "h2b", "p4"),
	}
	annotate.Sort(pairs, meta)
	first := annotate.Merge(pairs)

	annotate.Sort(pairs, meta)
	second := annotate.Merge(pairs)

	if len(first) != len(second) {
		t.Fatalf("group count changed: %d then %d", len(first), len(second))
	}
	for i := range first {
		if len(first[i].Pairs) != len(second[i].Pairs) ||
			len(first[i].Containers) != len(second[i].Containers) {
			t.Errorf("group %d changed shape across re-runs", i)
		}
		for j := range first[i].Containers {
			if !first[i].Containers[j].Same(second[i].Containers[j]) {
				t.Errorf("group %d container %d differs", i, j)
			}
		}
	}
}

func TestEqualHeadings(t *testing.T) {
	f := newFixture(t)
	h2a, h2b := f.el("h2", "h2a"), f.el("h2", "h2b")

	same := map[annotate.HeadingLevel]*dom.Element{2: h2a}
	if !annotate.EqualHeadings(same, map[annotate.HeadingLevel]*dom.Element{2: h2a}) {
		t.Error("identical hierarchies compare unequal")
	}
	if annotate.EqualHeadings(same, map[annotate.HeadingLevel]*dom.Element{2: h2b}) {
		t.Error("different elements at one level compare equal")
	}
	if annotate.EqualHeadings(same, map[annotate.HeadingLevel]*dom.Element{2: h2a, 3: h2b}) {
		t.Error("different level sets compare equal")
	}
}
