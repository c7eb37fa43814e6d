// Package htmlq provides small node matchers over golang.org/x/net/html for
// scraping catalog pages.
package htmlq

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Matcher selects nodes.
type Matcher func(*html.Node) bool

// Parse parses an HTML document.
func Parse(body []byte) (*html.Node, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return doc, nil
}

// Tag matches element nodes named tag.
func Tag(tag string) Matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

// Class matches elements carrying every class.
func Class(classes ...string) Matcher {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, c := range classes {
			if !HasClass(n, c) {
				return false
			}
		}
		return true
	}
}

// ID matches the element with id.
func ID(id string) Matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && Attr(n, "id") == id
	}
}

// AttrEquals matches elements whose attribute key equals val.
func AttrEquals(key, val string) Matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && Attr(n, key) == val
	}
}

// AttrContains matches elements whose attribute key contains sub.
func AttrContains(key, sub string) Matcher {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		v, ok := lookup(n, key)
		return ok && strings.Contains(v, sub)
	}
}

// HasAttr matches elements carrying key.
func HasAttr(key string) Matcher {
	return func(n *html.Node) bool {
		_, ok := lookup(n, key)
		return n.Type == html.ElementNode && ok
	}
}

// All combines matchers with AND.
func All(ms ...Matcher) Matcher {
	return func(n *html.Node) bool {
		for _, m := range ms {
			if !m(n) {
				return false
			}
		}
		return true
	}
}

// HasClass reports whether n carries class.
func HasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// Attr returns the value of attribute key, or "".
func Attr(n *html.Node, key string) string {
	v, _ := lookup(n, key)
	return v
}

func lookup(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// FindAll returns every descendant of n (n excluded) matching m, in document order.
func FindAll(n *html.Node, m Matcher) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if m(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// First returns the first descendant of n matching m, or nil.
func First(n *html.Node, m Matcher) *html.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m(c) {
			return c
		}
		if found := First(c, m); found != nil {
			return found
		}
	}
	return nil
}

// Children returns the direct element children of n matching m.
func Children(n *html.Node, m Matcher) []*html.Node {
	if n == nil {
		return nil
	}
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m(c) {
			out = append(out, c)
		}
	}
	return out
}

// Ancestor returns the closest ancestor of n matching m, or nil.
func Ancestor(n *html.Node, m Matcher) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if m(p) {
			return p
		}
	}
	return nil
}

// Text returns the whitespace-collapsed text content of n.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(node *html.Node) {
		if node.Type == html.TextNode {
			buf.WriteString(node.Data)
			buf.WriteByte(' ')
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

// FirstText returns the text of the first descendant matching m.
func FirstText(n *html.Node, m Matcher) string {
	return Text(First(n, m))
}

// FirstAttr returns attribute key of the first descendant matching m.
func FirstAttr(n *html.Node, m Matcher, key string) string {
	return Attr(First(n, m), key)
}

// Render returns the inner HTML of n.
func Render(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return ""
		}
	}
	return buf.String()
}
