package scraper

import (
	"strings"

	"golang.org/x/net/html"
)

// HTMLToMarkdown converts rendered HTML into markdown-ish text: headings
// become #/##/... lines, anchors keep their destinations as [text](href),
// images are dropped, script/style/nav chrome is ignored. Lines are not
// wrapped.
func HTMLToMarkdown(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var b strings.Builder
	renderNode(&b, doc)

	return collapseBlankLines(b.String())
}

var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"head":     true,
	"svg":      true,
	"img":      true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"header": true, "footer": true, "main": true, "aside": true,
	"ul": true, "ol": true, "table": true, "tr": true,
	"blockquote": true, "pre": true, "br": true, "hr": true,
	"nav": true, "form": true,
}

var headingLevels = map[string]int{
	"h1": 1, "h2": 2, "h3": 3, "h4": 4, "h5": 5, "h6": 6,
}

func renderNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			b.WriteString(text)
			b.WriteByte(' ')
		}
		return
	case html.ElementNode:
		if skippedElements[n.Data] {
			return
		}
		if level, ok := headingLevels[n.Data]; ok {
			b.WriteString("\n\n")
			b.WriteString(strings.Repeat("#", level))
			b.WriteByte(' ')
			b.WriteString(nodeText(n))
			b.WriteString("\n\n")
			return
		}
		switch n.Data {
		case "a":
			text := nodeText(n)
			href := attrVal(n, "href")
			if text == "" {
				return
			}
			if href != "" && !strings.HasPrefix(href, "javascript:") {
				b.WriteString("[" + text + "](" + href + ") ")
			} else {
				b.WriteString(text + " ")
			}
			return
		case "li":
			b.WriteString("\n* ")
		}
		if blockElements[n.Data] {
			b.WriteByte('\n')
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c)
	}

	if n.Type == html.ElementNode && blockElements[n.Data] {
		b.WriteByte('\n')
	}
}

// nodeText is the concatenated, whitespace-normalized text of a subtree.
func nodeText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// collapseBlankLines trims trailing space and squeezes runs of blank lines
// down to one.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
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
