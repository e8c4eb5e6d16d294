// ABOUTME: HTML content extraction for the web crawler service
// ABOUTME: Strips non-content elements and pulls text, metadata, links, and images

package webcrawler

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// strippedTags are removed before any content extraction. They hold code,
// chrome, or embedded documents rather than page content.
var strippedTags = map[string]bool{
	"script": true, "style": true, "nav": true, "header": true,
	"footer": true, "aside": true, "iframe": true, "noscript": true,
}

var mainContentPattern = regexp.MustCompile(`(?i)content|main|article`)

func parseHTML(content string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// stripNonContent removes stripped tags and comments from the tree in place.
func stripNonContent(doc *html.Node) {
	var doomed []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.CommentNode || (n.Type == html.ElementNode && strippedTags[n.Data]) {
			doomed = append(doomed, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

// extractText returns the page's visible text with collapsed whitespace.
// The tree must already be stripped of non-content tags.
func extractText(doc *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(sb.String()), " ")
}

// extractMetadata collects the title, meta tags, common metadata fields, the
// document language, and the canonical URL.
func extractMetadata(doc *html.Node) map[string]any {
	metadata := make(map[string]any)
	metaTags := make(map[string]string)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if _, ok := metadata["title"]; !ok {
					metadata["title"] = strings.TrimSpace(extractText(n))
				}
			case "meta":
				name := attrVal(n, "name")
				if name == "" {
					name = attrVal(n, "property")
				}
				if name == "" {
					name = attrVal(n, "http-equiv")
				}
				if content := attrVal(n, "content"); name != "" && content != "" {
					metaTags[name] = content
				}
			case "html":
				metadata["language"] = attrVal(n, "lang")
			case "link":
				if attrVal(n, "rel") == "canonical" {
					metadata["canonical"] = attrVal(n, "href")
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	metadata["meta_tags"] = metaTags
	metadata["description"] = metaTags["description"]
	metadata["keywords"] = metaTags["keywords"]
	metadata["author"] = metaTags["author"]
	metadata["og_title"] = metaTags["og:title"]
	metadata["og_description"] = metaTags["og:description"]
	metadata["og_image"] = metaTags["og:image"]

	return metadata
}

// findMainContent picks the most content-like subtree: main, article, a div
// whose class or id suggests content, then body, then the whole document.
func findMainContent(doc *html.Node) *html.Node {
	var main, article, namedDiv, body *html.Node

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "main":
				if main == nil {
					main = n
				}
			case "article":
				if article == nil {
					article = n
				}
			case "div":
				if namedDiv == nil &&
					(mainContentPattern.MatchString(attrVal(n, "class")) ||
						mainContentPattern.MatchString(attrVal(n, "id"))) {
					namedDiv = n
				}
			case "body":
				if body == nil {
					body = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, candidate := range []*html.Node{main, article, namedDiv, body} {
		if candidate != nil {
			return candidate
		}
	}
	return doc
}

func containsImage(n *html.Node) bool {
	if n.Type == html.ElementNode && n.Data == "img" {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if containsImage(c) {
			return true
		}
	}
	return false
}

// extractCleanHTML renders the main content subtree with empty elements
// pruned. The tree must already be stripped of non-content tags.
func extractCleanHTML(doc *html.Node) (string, error) {
	root := findMainContent(doc)

	var doomed []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n != root {
			if strings.TrimSpace(extractText(n)) == "" && !containsImage(n) {
				doomed = append(doomed, n)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("rendering HTML: %w", err)
	}
	return buf.String(), nil
}

// extractLinks collects anchors with their text, resolving relative URLs
// against base. Fragment-only links are skipped.
func extractLinks(doc *html.Node, base *url.URL) []map[string]string {
	links := []map[string]string{}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" && hasAttr(n, "href") {
			href := strings.TrimSpace(attrVal(n, "href"))
			if href != "" && !strings.HasPrefix(href, "#") {
				links = append(links, map[string]string{
					"url":   resolveURL(base, href),
					"text":  strings.TrimSpace(extractText(n)),
					"title": strings.TrimSpace(attrVal(n, "title")),
				})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links
}

// extractImages collects images with alt text, resolving relative URLs
// against base.
func extractImages(doc *html.Node, base *url.URL) []map[string]string {
	images := []map[string]string{}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" && hasAttr(n, "src") {
			src := strings.TrimSpace(attrVal(n, "src"))
			if src != "" {
				images = append(images, map[string]string{
					"url":   resolveURL(base, src),
					"alt":   strings.TrimSpace(attrVal(n, "alt")),
					"title": strings.TrimSpace(attrVal(n, "title")),
				})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return images
}

func resolveURL(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}
