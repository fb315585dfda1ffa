package kepub

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// opfMember is the container-description member every kepub carries.
const opfMember = "content.opf"

// The OPF is namespaced XML: the Dublin Core fields carry a dc: prefix and
// must be queried with it, while manifest/spine live in the default
// namespace and are matched unprefixed.
var (
	titleQuery     = xpath.MustCompile("//metadata/dc:title")
	creatorQuery   = xpath.MustCompile("//metadata/dc:creator")
	publisherQuery = xpath.MustCompile("//metadata/dc:publisher")
	dateQuery      = xpath.MustCompile("//metadata/dc:date")
	itemQuery      = xpath.MustCompile("//manifest/item")
	itemrefQuery   = xpath.MustCompile("//spine/itemref")
)

var yearRe = regexp.MustCompile(`\d{4}`)

// Metadata describes one book: the optional publication fields from its OPF
// and the spine-ordered table of contents used to rank annotations from
// different internal documents.
type Metadata struct {
	Title     string // "" when absent
	Author    string
	Publisher string
	Date      string

	// TOC lists member paths in spine order.
	TOC []string
}

// TOCIndex returns the member's position in reading order, or -1 when the
// member is not part of the spine.
func (m *Metadata) TOCIndex(member string) int {
	for i, path := range m.TOC {
		if path == member {
			return i
		}
	}
	return -1
}

// Year extracts the publication year from the OPF date field, or "".
func (m *Metadata) Year() string {
	return yearRe.FindString(m.Date)
}

func readMetadata(b *Book) (*Metadata, error) {
	text, err := b.ReadString(opfMember)
	if err != nil {
		return nil, err
	}

	doc, err := xmlquery.Parse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", opfMember, err)
	}

	meta := &Metadata{
		Title:     queryText(doc, titleQuery),
		Author:    queryText(doc, creatorQuery),
		Publisher: queryText(doc, publisherQuery),
		Date:      queryText(doc, dateQuery),
	}

	// The TOC is manifest x spine: hrefs of manifest items whose ids appear
	// in the spine, in spine order.
	hrefs := make(map[string]string)
	for _, item := range xmlquery.QuerySelectorAll(doc, itemQuery) {
		id := item.SelectAttr("id")
		href := item.SelectAttr("href")
		if id != "" && href != "" {
			hrefs[id] = href
		}
	}
	for _, itemref := range xmlquery.QuerySelectorAll(doc, itemrefQuery) {
		if href, ok := hrefs[itemref.SelectAttr("idref")]; ok {
			meta.TOC = append(meta.TOC, href)
		}
	}

	return meta, nil
}

func queryText(doc *xmlquery.Node, query *xpath.Expr) string {
	node := xmlquery.QuerySelector(doc, query)
	if node == nil {
		return ""
	}
	return strings.TrimSpace(node.InnerText())
}
