package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/IshaanNene/Holocron/internal/types"
)

// htmlNoise is removed before conversion.
const htmlNoise = "script, style, noscript, .mw-editsection, .toc, #toc, sup.reference, .mw-references-wrap, .navbox"

// PageText returns a page's content as wiki markup, converting rendered
// HTML when needed.
func PageText(page *types.SourcePage) (string, error) {
	if page.IsEmpty() {
		return "", types.ErrEmptyContent
	}
	if page.Format == types.FormatHTML {
		return ToMarkup(page.Content)
	}
	return page.Content, nil
}

// ToMarkup converts a rendered MediaWiki HTML fragment into the same
// line-oriented markup that wikitext pages use: headings become "== X ==",
// bold becomes ''', list items become "* " lines and infobox header cells
// become bold labels. The first embedded file is emitted as a
// [[File:...]] line so image extraction works on both formats.
func ToMarkup(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	root := doc.Find(".mw-parser-output").First()
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		return "", types.ErrEmptyContent
	}
	root.Find(htmlNoise).Remove()

	w := &markupWriter{}
	if file := firstFileLink(root.Nodes[0]); file != "" {
		w.WriteString("[[File:" + file + "]]")
		w.newline()
	}
	for c := root.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		w.node(c)
	}
	return w.String(), nil
}

// firstFileLink finds the first link into the File: namespace.
func firstFileLink(root *html.Node) string {
	links, err := htmlquery.QueryAll(root, `//a[contains(@href, 'File:')]`)
	if err != nil {
		return ""
	}
	for _, a := range links {
		href := htmlquery.SelectAttr(a, "href")
		idx := strings.Index(href, "File:")
		if idx < 0 {
			continue
		}
		name := href[idx+len("File:"):]
		if amp := strings.IndexAny(name, "&#"); amp >= 0 {
			name = name[:amp]
		}
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
		name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
		if name != "" {
			return name
		}
	}
	return ""
}

var textSpacer = strings.NewReplacer("\n", " ", "\u00a0", " ")

// markupWriter accumulates converted markup and tracks line starts.
type markupWriter struct {
	strings.Builder
}

func (w *markupWriter) newline() {
	s := w.Builder.String()
	if len(s) == 0 || strings.HasSuffix(s, "\n") {
		return
	}
	w.WriteByte('\n')
}

func (w *markupWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c)
	}
}

func (w *markupWriter) node(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.WriteString(textSpacer.Replace(n.Data))
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		marks := strings.Repeat("=", level)
		w.newline()
		w.WriteString(marks + " " + strings.TrimSpace(htmlquery.InnerText(n)) + " " + marks)
		w.newline()
	case atom.B, atom.Strong:
		w.WriteString("'''")
		w.children(n)
		w.WriteString("'''")
	case atom.I, atom.Em:
		w.WriteString("''")
		w.children(n)
		w.WriteString("''")
	case atom.Br:
		w.newline()
	case atom.Li:
		w.newline()
		w.WriteString("* ")
		w.children(n)
		w.newline()
	case atom.Th, atom.Dt:
		label := strings.TrimSpace(htmlquery.InnerText(n))
		if label == "" {
			return
		}
		if !strings.HasSuffix(label, ":") {
			label += ":"
		}
		w.newline()
		w.WriteString("'''" + label + "''' ")
	case atom.Td, atom.Dd:
		w.children(n)
		w.WriteString(" ")
	case atom.Img, atom.Figure:
		return
	case atom.P, atom.Div, atom.Table, atom.Tr, atom.Ul, atom.Ol, atom.Dl, atom.Blockquote, atom.Center:
		w.newline()
		w.children(n)
		w.newline()
	default:
		w.children(n)
	}
}

// String returns the converted markup with trailing spaces trimmed and
// blank lines collapsed.
func (w *markupWriter) String() string {
	var out []string
	blank := false
	for _, line := range strings.Split(w.Builder.String(), "\n") {
		line = strings.TrimSpace(whitespacePattern.ReplaceAllString(line, " "))
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
