package extract

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped subtrees never contribute text
var skipped = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Object:   true,
}

// paragraphs are separated by a blank line
var paragraphs = map[atom.Atom]bool{
	atom.P: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Blockquote: true, atom.Pre: true,
	atom.Ul: true, atom.Ol: true, atom.Table: true, atom.Figure: true,
	atom.Section: true, atom.Article: true,
}

// blocks start on a new line
var blocks = map[atom.Atom]bool{
	atom.Div: true, atom.Li: true, atom.Tr: true, atom.Dt: true, atom.Dd: true,
	atom.Header: true, atom.Footer: true, atom.Nav: true, atom.Main: true,
	atom.Aside: true, atom.Form: true, atom.Figcaption: true, atom.Hr: true,
	atom.Address: true, atom.Details: true, atom.Summary: true, atom.Caption: true,
}

// Text returns the visible text under n with whitespace collapsed and block
// elements on their own lines.
func Text(n *html.Node) string {
	var b textBuilder
	b.walk(n)
	return strings.TrimSpace(b.sb.String())
}

type textBuilder struct {
	sb       strings.Builder
	space    bool
	newlines int
	pre      int
}

func (b *textBuilder) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.text(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if skipped[n.DataAtom] {
			return
		}
	}

	if n.Type != html.ElementNode {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c)
		}
		return
	}

	switch {
	case n.DataAtom == atom.Br:
		b.newline(1)
		return
	case paragraphs[n.DataAtom]:
		b.newline(2)
	case blocks[n.DataAtom]:
		b.newline(1)
	case n.DataAtom == atom.Td || n.DataAtom == atom.Th:
		b.separate()
	}

	if n.DataAtom == atom.Li {
		b.word("-")
		b.separate()
	}
	if n.DataAtom == atom.Pre {
		b.pre++
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.walk(c)
	}

	if n.DataAtom == atom.Pre {
		b.pre--
	}

	switch {
	case paragraphs[n.DataAtom]:
		b.newline(2)
	case blocks[n.DataAtom]:
		b.newline(1)
	}
}

func (b *textBuilder) text(s string) {
	if s == "" {
		return
	}
	if b.pre > 0 {
		b.raw(s)
		return
	}

	if unicode.IsSpace(rune(s[0])) {
		b.separate()
	}
	fields := strings.Fields(s)
	for i, f := range fields {
		if i > 0 {
			b.separate()
		}
		b.word(f)
	}
	if len(fields) > 0 && unicode.IsSpace(rune(s[len(s)-1])) {
		b.separate()
	}
}

// raw writes preformatted text as is.
func (b *textBuilder) raw(s string) {
	if b.space {
		b.sb.WriteByte(' ')
		b.space = false
	}
	b.sb.WriteString(s)
	if strings.HasSuffix(s, "\n") {
		b.newlines = 1
	} else {
		b.newlines = 0
	}
}

func (b *textBuilder) word(w string) {
	if b.space {
		b.sb.WriteByte(' ')
	}
	b.space = false
	b.newlines = 0
	b.sb.WriteString(w)
}

// separate requests a space before the next word.
func (b *textBuilder) separate() {
	if b.sb.Len() > 0 && b.newlines == 0 {
		b.space = true
	}
}

// newline ends the current line, leaving at most n consecutive line breaks.
func (b *textBuilder) newline(n int) {
	if b.sb.Len() == 0 {
		return
	}
	b.space = false
	for b.newlines < n {
		b.sb.WriteByte('\n')
		b.newlines++
	}
}
