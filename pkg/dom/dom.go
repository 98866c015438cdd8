// Package dom wraps golang.org/x/net/html node trees with the small set of
// operations the grid needs: fragment parsing, child and image discovery,
// in-place attribute and inline-style editing, serialization, and a box
// model that turns nodes into measured rectangles.
//
// Attribute edits keep attribute order, so restoring a snapshot followed by
// [OuterHTML] reproduces the original markup byte for byte.
package dom

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/matzehuels/gridflow/pkg/errors"
)

// ParseContainer parses an HTML fragment. A fragment holding exactly one
// element (ignoring whitespace and comments) yields that element; anything
// else is wrapped in a new <div>.
func ParseContainer(markup string) (*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse markup")
	}

	var (
		elems    []*html.Node
		looseTxt bool
	)
	for _, n := range nodes {
		switch {
		case n.Type == html.ElementNode:
			elems = append(elems, n)
		case n.Type == html.TextNode && strings.TrimSpace(n.Data) != "":
			looseTxt = true
		}
	}
	if len(elems) == 1 && !looseTxt {
		return elems[0], nil
	}

	wrap := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		wrap.AppendChild(n)
	}
	return wrap, nil
}

// NewElement returns a detached element node.
func NewElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

// Children returns the direct element children of n in document order.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Images returns n itself when it is an <img>, followed by every <img>
// descendant in document order.
func Images(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		if x.Type == html.ElementNode && x.DataAtom == atom.Img {
			out = append(out, x)
		}
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// Contains reports whether n is root or one of its descendants.
func Contains(root, n *html.Node) bool {
	for x := n; x != nil; x = x.Parent {
		if x == root {
			return true
		}
	}
	return false
}

// HasText reports whether n has a non-whitespace text node as a direct child.
func HasText(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return true
		}
	}
	return false
}

// Attr returns the value of attribute key.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets key to val, updating an existing attribute in place or
// appending a new one.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes key, keeping the order of the remaining attributes.
func RemoveAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// OuterHTML serializes n including its own tag.
func OuterHTML(n *html.Node) string {
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	return buf.String()
}

// InnerHTML serializes the children of n.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}
