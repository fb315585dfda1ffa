package annotate

import (
	"sort"

	"github.com/Jormii/IKobo/core/bookmark"
	"github.com/Jormii/IKobo/core/dom"
	"github.com/Jormii/IKobo/core/kepub"
)

// Pair binds an annotation row to its resolved context. The context is
// owned exclusively by its pair and never mutated after resolution.
type Pair struct {
	Bookmark *bookmark.Bookmark
	Context  *Context
}

// Group is a maximal run of pairs whose container ranges touch or overlap,
// rendered as one quoted block. Containers is the de-duplicated union of the
// members' container ranges, in document order.
type Group struct {
	Pairs      []*Pair
	Containers []*dom.Element
}

// Member returns the archive member the group's annotations live in.
func (g *Group) Member() string {
	return g.Pairs[0].Context.Member
}

// Headings returns the group's heading hierarchy. Pairs only share a group
// when their hierarchies are identical, so the first pair's stands for all.
func (g *Group) Headings() map[HeadingLevel]*dom.Element {
	return g.Pairs[0].Context.Headings
}

// Sort orders pairs into document reading order: by the member's position in
// the spine, then by the start anchor's document-order index, then by the
// start offset. The composite key is total, so annotations on the same
// anchor stay in a deterministic order.
func Sort(pairs []*Pair, meta *kepub.Metadata) {
	sort.SliceStable(pairs, func(i, j int) bool {
		a, b := pairs[i].Context, pairs[j].Context
		if ta, tb := meta.TOCIndex(a.Member), meta.TOCIndex(b.Member); ta != tb {
			return ta < tb
		}
		if a.Start.Index() != b.Start.Index() {
			return a.Start.Index() < b.Start.Index()
		}
		return a.StartOffset < b.StartOffset
	})
}

// Merge scans sorted pairs left to right and merges runs whose container
// ranges touch or overlap into groups. A new group opens when the member or
// the heading hierarchy changes, or when a pair's first container lies
// strictly after the current group's bottommost container. Every input pair
// lands in exactly one group; groups come out in input order.
func Merge(pairs []*Pair) []*Group {
	var groups []*Group
	var current *Group

	for _, pair := range pairs {
		if current == nil || splits(current, pair) {
			current = &Group{}
			groups = append(groups, current)
		}
		current.Pairs = append(current.Pairs, pair)

		// Union of container ranges: advance only past the bottommost
		// container already accumulated so overlaps are never re-added.
		bottom := -1
		if len(current.Containers) > 0 {
			bottom = current.Containers[len(current.Containers)-1].Index()
		}
		for _, c := range pair.Context.Containers {
			if c.Index() > bottom {
				current.Containers = append(current.Containers, c)
				bottom = c.Index()
			}
		}
	}
	return groups
}

func splits(g *Group, p *Pair) bool {
	if g.Member() != p.Context.Member {
		return true
	}
	if !EqualHeadings(g.Headings(), p.Context.Headings) {
		return true
	}
	bottom := g.Containers[len(g.Containers)-1]
	return p.Context.Containers[0].Index() > bottom.Index()
}

// EqualHeadings reports whether two heading hierarchies name the same
// elements at the same levels.
func EqualHeadings(a, b map[HeadingLevel]*dom.Element) bool {
	if len(a) != len(b) {
		return false
	}
	for level, el := range a {
		if other, ok := b[level]; !ok || !el.Same(other) {
			return false
		}
	}
	return true
}
