package diff

import (
	"bytes"
	"sort"

	"golang.org/x/net/html"
)

// Render serializes the children of a document node, or the node itself for
// anything else. Attributes are written in sorted order so output is stable.
func Render(node *Node) string {
	if node == nil {
		return ""
	}

	var buf bytes.Buffer
	if node.Type == html.DocumentNode {
		for _, c := range node.Children {
			// Render only fails on writer errors; bytes.Buffer has none.
			_ = html.Render(&buf, ToHTML(c))
		}
		return buf.String()
	}
	_ = html.Render(&buf, ToHTML(node))
	return buf.String()
}

// ToHTML converts node and its subtree into a detached html.Node tree.
func ToHTML(node *Node) *html.Node {
	out := &html.Node{Type: node.Type, Data: node.Data}

	keys := make([]string, 0, len(node.Attributes))
	for k := range node.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out.Attr = append(out.Attr, html.Attribute{Key: k, Val: node.Attributes[k]})
	}

	for _, c := range node.Children {
		out.AppendChild(ToHTML(c))
	}
	return out
}
