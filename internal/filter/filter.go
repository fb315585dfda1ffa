// Package filter compiles the small boolean expression language used to
// select bookmarks on export, e.g.
//
//	kind == highlight and volume =~ "quijote"
//
// Fields: kind, volume, text, note. Operators: == != (exact match) and
// =~ (substring). Terms combine with and/or and parentheses; and binds
// tighter than or. An empty expression matches everything.
package filter

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/Jormii/IKobo/core/bookmark"
)

var filterLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(\\"|[^"])*"`},
	{Name: "Op", Pattern: `==|!=|=~`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Paren", Pattern: `[()]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var parser = participle.MustBuild[expression](
	participle.Lexer(filterLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
)

type expression struct {
	Any []*conjunction `parser:"@@ ( 'or' @@ )*"`
}

type conjunction struct {
	All []*term `parser:"@@ ( 'and' @@ )*"`
}

type term struct {
	Paren *expression `parser:"'(' @@ ')'"`
	Cmp   *comparison `parser:"| @@"`
}

type comparison struct {
	Field string `parser:"@Ident"`
	Op    string `parser:"@Op"`
	Value value  `parser:"@@"`
}

type value struct {
	Str   *string `parser:"@String"`
	Ident *string `parser:"| @Ident"`
}

// Filter is a compiled bookmark predicate.
type Filter struct {
	expr *expression
}

// Compile parses and validates a filter expression. An empty source
// compiles to a filter matching every bookmark.
func Compile(src string) (*Filter, error) {
	if strings.TrimSpace(src) == "" {
		return &Filter{}, nil
	}

	expr, err := parser.ParseString("", src)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	if err := expr.validate(); err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return &Filter{expr: expr}, nil
}

// Match reports whether the bookmark satisfies the filter.
func (f *Filter) Match(bm *bookmark.Bookmark) bool {
	if f.expr == nil {
		return true
	}
	return f.expr.match(bm)
}

func (e *expression) match(bm *bookmark.Bookmark) bool {
	for _, c := range e.Any {
		if c.match(bm) {
			return true
		}
	}
	return false
}

func (c *conjunction) match(bm *bookmark.Bookmark) bool {
	for _, t := range c.All {
		if !t.match(bm) {
			return false
		}
	}
	return true
}

func (t *term) match(bm *bookmark.Bookmark) bool {
	if t.Paren != nil {
		return t.Paren.match(bm)
	}
	return t.Cmp.match(bm)
}

func (c *comparison) match(bm *bookmark.Bookmark) bool {
	var field string
	switch c.Field {
	case "kind":
		field = bm.Kind.String()
	case "volume":
		field = bm.VolumeID
	case "text":
		field = bm.Text
	case "note":
		field = bm.Annotation
	}

	want := c.Value.text()
	switch c.Op {
	case "==":
		return field == want
	case "!=":
		return field != want
	case "=~":
		return strings.Contains(field, want)
	}
	return false
}

func (v value) text() string {
	if v.Str != nil {
		return *v.Str
	}
	return *v.Ident
}

func (e *expression) validate() error {
	for _, c := range e.Any {
		for _, t := range c.All {
			if t.Paren != nil {
				if err := t.Paren.validate(); err != nil {
					return err
				}
				continue
			}
			switch t.Cmp.Field {
			case "kind", "volume", "text", "note":
			default:
				return fmt.Errorf("unknown field %q", t.Cmp.Field)
			}
		}
	}
	return nil
}
