package crawler

import (
	"strings"

	"golang.org/x/net/html"
)

// parseHTML parses markup leniently; x/net/html never fails on real-world
// pages, so a nil node only happens on reader errors.
func parseHTML(markup string) *html.Node {
	node, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	return node
}

// findAll returns every element under root with the given tag carrying class
// among its class names. Empty class matches any element of that tag.
func findAll(root *html.Node, tag string, class string) []*html.Node {
	var matches []*html.Node
	walk(root, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag && (class == "" || hasClass(n, class)) {
			matches = append(matches, n)
		}
	})
	return matches
}

// findFirst returns the first element matching tag and class, or nil.
func findFirst(root *html.Node, tag string, class string) *html.Node {
	all := findAll(root, tag, class)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// findByID returns the element with the given id attribute, or nil.
func findByID(root *html.Node, id string) *html.Node {
	var match *html.Node
	walk(root, func(n *html.Node) {
		if match == nil && n.Type == html.ElementNode && attr(n, "id") == id {
			match = n
		}
	})
	return match
}

func walk(n *html.Node, visit func(*html.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// innerText concatenates all text under n, whitespace-collapsed.
func innerText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	walk(n, func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteByte(' ')
		}
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}
