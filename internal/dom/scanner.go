// Package dom provides read-only scanning primitives over golang.org/x/net/html
// trees: text-pattern and image-attribute searches, bounded ancestor lookup and
// sibling text/element walks. It has no game knowledge.
package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultMaxDepth bounds FindAncestor.
const DefaultMaxDepth = 8

// Matcher is satisfied by *regexp.Regexp and *re2.Regexp.
type Matcher interface {
	MatchString(s string) bool
}

// FindElementsByText returns, in document order, every element under root
// (root included) whose trimmed text content matches pattern.
func FindElementsByText(pattern Matcher, root *html.Node) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) {
		if n.Type == html.ElementNode && !skipText(n) && pattern.MatchString(OwnText(n)) {
			out = append(out, n)
		}
	})
	return out
}

// FindImagesByAttribute returns every <img> under root whose alt OR src
// matches pattern.
func FindImagesByAttribute(pattern Matcher, root *html.Node) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) {
		if !isImage(n) {
			return
		}
		if pattern.MatchString(Attr(n, "alt")) || pattern.MatchString(Attr(n, "src")) {
			out = append(out, n)
		}
	})
	return out
}

// FindAncestor tests up to maxDepth ancestors of el and returns the first one
// satisfying pred. maxDepth <= 0 means DefaultMaxDepth.
func FindAncestor(el *html.Node, pred func(*html.Node) bool, maxDepth int) *html.Node {
	if el == nil {
		return nil
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	cur := el.Parent
	for depth := 0; cur != nil && depth < maxDepth; depth++ {
		if cur.Type == html.ElementNode && pred(cur) {
			return cur
		}
		cur = cur.Parent
	}
	return nil
}

// FindNextTextContent returns the first non-empty trimmed text found among
// node's following siblings, then among its parent's following siblings.
func FindNextTextContent(node *html.Node) string {
	if node == nil {
		return ""
	}
	if text := nextText(node.NextSibling); text != "" {
		return text
	}
	if node.Parent != nil {
		return nextText(node.Parent.NextSibling)
	}
	return ""
}

func nextText(sib *html.Node) string {
	for ; sib != nil; sib = sib.NextSibling {
		switch sib.Type {
		case html.TextNode:
			if text := collapse(sib.Data); text != "" {
				return text
			}
		case html.ElementNode:
			if skipText(sib) {
				continue
			}
			if text := OwnText(sib); text != "" {
				return text
			}
		}
	}
	return ""
}

// FindPreviousElementByTag returns the nearest preceding sibling of node with
// the given tag. When there is none it searches the parent's preceding
// siblings, matching either the sibling itself or its last descendant with
// that tag.
func FindPreviousElementByTag(node *html.Node, tag string) *html.Node {
	if node == nil {
		return nil
	}
	for sib := node.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if hasTag(sib, tag) {
			return sib
		}
	}
	if node.Parent == nil {
		return nil
	}
	for sib := node.Parent.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type != html.ElementNode {
			continue
		}
		if hasTag(sib, tag) {
			return sib
		}
		if found := lastDescendantByTag(sib, tag); found != nil {
			return found
		}
	}
	return nil
}

func lastDescendantByTag(n *html.Node, tag string) *html.Node {
	for c := n.LastChild; c != nil; c = c.PrevSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if found := lastDescendantByTag(c, tag); found != nil {
			return found
		}
		if hasTag(c, tag) {
			return c
		}
	}
	return nil
}

func hasTag(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && strings.EqualFold(n.Data, tag)
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n == nil {
		return
	}
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func isImage(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.DataAtom == atom.Img || n.Data == "img")
}

// skipText excludes elements whose text never reaches the rendered page.
func skipText(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template:
		return true
	}
	return false
}
