package diff

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// fragmentContext is the element sanitized markup is parsed inside of, so
// html.ParseFragment does not wrap it in html/head/body.
var fragmentContext = &html.Node{
	Type:     html.ElementNode,
	Data:     "div",
	DataAtom: atom.Div,
}

// Parse converts a sanitized markup fragment into a document-rooted tree.
// Empty markup yields an empty document.
func Parse(markup string) (*Node, error) {
	root := NewDocument()
	if strings.TrimSpace(markup) == "" {
		return root, nil
	}

	nodes, err := html.ParseFragment(strings.NewReader(markup), fragmentContext)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML fragment: %w", err)
	}

	for _, n := range nodes {
		if child := convertNode(n); child != nil {
			root.AppendChild(child)
		}
	}
	return root, nil
}

// FromHTML converts an html.Node and its subtree. Comments and doctypes are
// dropped.
func FromHTML(n *html.Node) *Node {
	return convertNode(n)
}

func convertNode(n *html.Node) *Node {
	switch n.Type {
	case html.CommentNode, html.DoctypeNode, html.ErrorNode:
		return nil
	}

	node := &Node{
		Type:       n.Type,
		Data:       n.Data,
		Attributes: make(map[string]string, len(n.Attr)),
		Children:   make([]*Node, 0),
	}
	for _, attr := range n.Attr {
		if _, dup := node.Attributes[attr.Key]; !dup {
			node.Attributes[attr.Key] = attr.Val
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if c := convertNode(child); c != nil {
			c.Parent = node
			node.Children = append(node.Children, c)
		}
	}
	return node
}
