// Package text turns rendered markup into line-oriented visible text and
// finds the text around labels.
package text

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "label": true, "li": true, "main": true, "nav": true, "ol": true,
	"p": true, "section": true, "table": true, "tbody": true, "thead": true,
	"tr": true, "ul": true,
}

var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "head": true,
}

var spaces = regexp.MustCompile(`[ \t\f\v\r\x{00a0}]+`)

// Visible returns the human-visible text under sel. Block elements start a
// new line, cells are separated by a space and runs of blanks collapse.
func Visible(sel *goquery.Selection) string {
	if sel == nil {
		return ""
	}
	var b strings.Builder
	for _, n := range sel.Nodes {
		walk(&b, n)
	}
	return Collapse(b.String())
}

// Document is Visible for a whole page
func Document(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	return Visible(doc.Find("body"))
}

func walk(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if skipElements[n.Data] {
			return
		}
	}
	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(b, c)
	}
	if block {
		b.WriteByte('\n')
	} else if n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th" || n.Data == "span") {
		b.WriteByte(' ')
	}
}

// Collapse squeezes horizontal whitespace and drops blank lines
func Collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaces.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Context is the text surrounding one label occurrence
type Context struct {
	Parent      string
	Sibling     string
	Grandparent string
}

// Labels finds text nodes matching label and returns the text of the
// enclosing element, of the element that follows it and of its parent.
// Contexts are returned in document order.
func Labels(doc *goquery.Document, label *regexp.Regexp) []Context {
	if doc == nil {
		return nil
	}
	var out []Context
	for _, root := range doc.Nodes {
		collectLabels(root, label, &out)
	}
	return out
}

func collectLabels(n *html.Node, label *regexp.Regexp, out *[]Context) {
	if n.Type == html.ElementNode && skipElements[n.Data] {
		return
	}
	if n.Type == html.TextNode && n.Parent != nil && label.MatchString(n.Data) {
		parent := goquery.NewDocumentFromNode(n.Parent).Selection
		ctx := Context{Parent: Visible(parent)}
		if next := parent.Next(); next.Length() > 0 {
			ctx.Sibling = Visible(next)
		}
		if n.Parent.Parent != nil {
			ctx.Grandparent = Visible(parent.Parent())
		}
		*out = append(*out, ctx)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectLabels(c, label, out)
	}
}
