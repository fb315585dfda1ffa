package dict

import (
	"fmt"
	"strings"

	"github.com/Jormii/IKobo/core/dom"
)

// Result is one word's dictionary page: the page URL plus every article on
// it (homonyms get separate articles).
type Result struct {
	URL      string
	Articles []*Article
}

// Article is one dictionary article: the headword, optional supplementary
// information (etymology and the like), and the numbered entries.
type Article struct {
	Headword          string
	SupplementaryInfo string
	Entries           []*Entry
}

// Entry is one numbered sense of an article.
type Entry struct {
	Definition string
	Synonyms   []string
	Antonyms   []string
}

// parseArticle walks one article element. Paragraphs are dispatched on the
// first letter of their class: n* is supplementary info, j* an entry; the
// complex-form classes (k, m, l) are not handled yet.
func parseArticle(el *dom.Element) (*Article, error) {
	header, err := el.Find("header")
	if err != nil {
		return nil, err
	}

	article := &Article{Headword: header.Text()}
	for _, p := range el.FindAll("p") {
		classes := p.Classes()
		if len(classes) == 0 {
			// The site intersperses empty spacer paragraphs.
			if p.Text() != "" {
				return nil, dom.Structuralf("dict", "unclassed paragraph with text %q", p.Text())
			}
			continue
		}

		switch classes[0][0] {
		case 'n':
			article.SupplementaryInfo = p.Text()
		case 'j':
			entry, err := parseEntry(p)
			if err != nil {
				return nil, err
			}
			article.Entries = append(article.Entries, entry)
		default:
			return nil, dom.Structuralf("dict", "unhandled paragraph class %q", classes[0])
		}
	}
	return article, nil
}

// parseEntry reads one sense paragraph: the leading span.n_acep entry
// number, the definition text, and the synonym/antonym table in the
// following div sibling when present.
func parseEntry(p *dom.Element) (*Entry, error) {
	children := p.Children()
	if len(children) == 0 {
		return nil, dom.Structuralf("dict", "entry paragraph has no children")
	}

	number := children[0]
	if number.Tag() != "span" || !number.HasClasses("n_acep") {
		return nil, dom.Structuralf("dict", "entry paragraph does not start with span.n_acep")
	}

	var parts []string
	for _, child := range children[1:] {
		parts = append(parts, child.Text())
	}
	entry := &Entry{Definition: strings.Join(parts, " ")}

	siblings := p.NextSiblings()
	if len(siblings) == 0 || siblings[0].Tag() != "div" {
		return entry, nil
	}

	tds := siblings[0].FindAll("td")
	if len(tds) == 0 || len(tds)%2 != 0 {
		return nil, dom.Structuralf("dict", "synonym table has %d cells", len(tds))
	}
	for i := 0; i < len(tds); i += 2 {
		var dst *[]string
		switch label := tds[i].Text(); label {
		case "Sin.:":
			dst = &entry.Synonyms
		case "Ant.:":
			dst = &entry.Antonyms
		default:
			return nil, dom.Structuralf("dict", "unhandled relation label %q", label)
		}

		for _, span := range tds[i+1].FindAll("span", "sin") {
			*dst = append(*dst, span.Text())
		}
		if len(*dst) == 0 {
			return nil, dom.Structuralf("dict", "empty relation list under %q", tds[i].Text())
		}
	}
	return entry, nil
}

// Fields shapes the result into the RAE note model's flashcard fields.
func (r *Result) Fields() map[string]string {
	main := r.Articles[0]

	var articles []string
	for _, a := range r.Articles {
		articles = append(articles, "<div>"+a.formatEntries()+"</div>")
	}

	return map[string]string{
		"lema":                       fmt.Sprintf(`<a href=%q>%s</a>`, r.URL, main.Headword),
		"informacion_complementaria": main.SupplementaryInfo,
		"acepciones_simples":         strings.Join(articles, "<br>"),
	}
}

func (a *Article) formatEntries() string {
	var b strings.Builder
	b.WriteString("<ol>")
	for _, e := range a.Entries {
		b.WriteString("<li>")
		b.WriteString(e.Definition)

		if len(e.Synonyms) != 0 || len(e.Antonyms) != 0 {
			b.WriteString("<ul>")
			if len(e.Synonyms) != 0 {
				b.WriteString("<li>Sin.: " + strings.Join(e.Synonyms, ", ") + "</li>")
			}
			if len(e.Antonyms) != 0 {
				b.WriteString("<li>Ant.: " + strings.Join(e.Antonyms, ", ") + "</li>")
			}
			b.WriteString("</ul>")
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ol>")
	return b.String()
}
