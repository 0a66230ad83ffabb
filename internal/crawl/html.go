package crawl

import (
	"bytes"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// strippedTags are removed before text extraction: boilerplate and
// non-content markup.
var strippedTags = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {}, "template": {},
	"nav": {}, "footer": {}, "form": {}, "aside": {}, "iframe": {},
}

var headingTags = map[string]struct{}{
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
}

type document struct {
	root *html.Node
}

func parseHTML(body []byte) (*document, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return &document{root: root}, nil
}

func (d *document) Title() string {
	node := findFirst(d.root, "title")
	if node == nil {
		return ""
	}
	return collapseSpace(textOf(node))
}

// Text extracts headings and paragraphs from the article/main element (or
// the whole body when neither exists), joined by blank lines.
func (d *document) Text() string {
	content := findFirst(d.root, "article")
	if content == nil {
		content = findFirst(d.root, "main")
	}
	if content == nil {
		content = findFirst(d.root, "body")
	}
	if content == nil {
		content = d.root
	}

	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, strip := strippedTags[n.Data]; strip {
				return
			}
			_, isHeading := headingTags[n.Data]
			if isHeading || n.Data == "p" {
				if line := collapseSpace(textOf(n)); line != "" {
					lines = append(lines, line)
				}
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(content)
	return strings.TrimSpace(strings.Join(lines, "\n\n"))
}

// SameOriginLinks resolves every anchor against the page URL and keeps the
// normalized ones sharing the page's scheme and host, sorted for stable
// queueing.
func (d *document) SameOriginLinks(page *url.URL) []string {
	seen := make(map[string]struct{})

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if href == "" {
					break
				}
				resolved, err := page.Parse(href)
				if err != nil {
					break
				}
				if resolved.Scheme != page.Scheme || resolved.Host != page.Host {
					break
				}
				seen[normalizeURL(resolved)] = struct{}{}
				break
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(d.root)

	links := make([]string, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}
	sort.Strings(links)
	return links
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findFirst(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode {
			if _, strip := strippedTags[n.Data]; strip {
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
