package markdown

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// converter renders article bodies. Fingerprints are computed over its
// output, so changing any option here changes every document's content hash.
var converter = md.NewConverter("", true, &md.Options{
	HeadingStyle:     "atx",
	HorizontalRule:   "---",
	BulletListMarker: "-",
	CodeBlockStyle:   "fenced",
	EmDelimiter:      "*",
	StrongDelimiter:  "**",
}).Remove("noscript", "iframe").Use(plugin.Table(), plugin.Strikethrough("~~"))

// ToMarkdown converts an HTML fragment to markdown. Scripts, styles and
// comments are dropped. Output is deterministic for a given input.
func ToMarkdown(htmlBody string) (string, error) {
	if strings.TrimSpace(htmlBody) == "" {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	body := doc.Find("body").First()
	stripComments(body)
	return converter.Convert(body), nil
}

func stripComments(s *goquery.Selection) {
	s.Contents().Each(func(_ int, n *goquery.Selection) {
		node := n.Get(0)
		switch node.Type {
		case html.CommentNode:
			n.Remove()
		case html.ElementNode:
			stripComments(n)
		}
	})
}
