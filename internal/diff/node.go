// Package diff holds the live document tree, the parser that builds
// candidate trees from sanitized markup, the stream classifier and the keyed
// reconciler that merges candidates into the live tree.
package diff

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Node is a mutable document node.
type Node struct {
	Type       html.NodeType
	Data       string
	Attributes map[string]string
	Children   []*Node
	Parent     *Node
}

// NewDocument returns an empty root node.
func NewDocument() *Node {
	return &Node{Type: html.DocumentNode, Attributes: map[string]string{}}
}

// NewElement returns a detached element node.
func NewElement(tag string, attrs map[string]string) *Node {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &Node{Type: html.ElementNode, Data: tag, Attributes: attrs}
}

// NewText returns a detached text node.
func NewText(text string) *Node {
	return &Node{Type: html.TextNode, Data: text, Attributes: map[string]string{}}
}

// GetPath returns a path string for the node (for debugging and identification)
func (node *Node) GetPath() string {
	if node.Parent == nil {
		if node.Type == html.DocumentNode {
			return ""
		}
		return node.Data
	}

	parentPath := node.Parent.GetPath()
	if node.Type == html.TextNode {
		return fmt.Sprintf("%s/text()", parentPath)
	}

	// Find position among siblings of same type
	position := 0
	for _, sibling := range node.Parent.Children {
		if sibling == node {
			break
		}
		if sibling.Type == node.Type && sibling.Data == node.Data {
			position++
		}
	}

	if position > 0 {
		return fmt.Sprintf("%s/%s[%d]", parentPath, node.Data, position+1)
	}
	return fmt.Sprintf("%s/%s", parentPath, node.Data)
}

// IsElementNode returns true if this is an element node
func (node *Node) IsElementNode() bool {
	return node.Type == html.ElementNode
}

// IsTextNode returns true if this is a text node
func (node *Node) IsTextNode() bool {
	return node.Type == html.TextNode
}

// Is reports whether node is an element with the given tag.
func (node *Node) Is(tag string) bool {
	return node.Type == html.ElementNode && node.Data == tag
}

// GetAttribute returns the value of an attribute
func (node *Node) GetAttribute(key string) string {
	return node.Attributes[key]
}

// GetTextContent returns the concatenated text content of the node and its children
func (node *Node) GetTextContent() string {
	if node.IsTextNode() {
		return node.Data
	}

	var text strings.Builder
	for _, child := range node.Children {
		text.WriteString(child.GetTextContent())
	}
	return text.String()
}

// SetTextContent replaces all children with a single text node.
func (node *Node) SetTextContent(text string) {
	node.SetChildren([]*Node{NewText(text)})
}

// Clone deep-copies node. The copy is detached.
func (node *Node) Clone() *Node {
	c := &Node{
		Type:       node.Type,
		Data:       node.Data,
		Attributes: make(map[string]string, len(node.Attributes)),
		Children:   make([]*Node, 0, len(node.Children)),
	}
	for k, v := range node.Attributes {
		c.Attributes[k] = v
	}
	for _, child := range node.Children {
		cc := child.Clone()
		cc.Parent = c
		c.Children = append(c.Children, cc)
	}
	return c
}

// AppendChild attaches child as the last child of node, detaching it from
// any previous parent.
func (node *Node) AppendChild(child *Node) {
	child.Detach()
	child.Parent = node
	node.Children = append(node.Children, child)
}

// InsertAt attaches child at index i (clamped to the child count).
func (node *Node) InsertAt(i int, child *Node) {
	child.Detach()
	if i < 0 {
		i = 0
	}
	if i > len(node.Children) {
		i = len(node.Children)
	}
	child.Parent = node
	node.Children = append(node.Children, nil)
	copy(node.Children[i+1:], node.Children[i:])
	node.Children[i] = child
}

// SetChildren replaces the child list. Previous children that are not in
// the new list are detached.
func (node *Node) SetChildren(children []*Node) {
	keep := make(map[*Node]bool, len(children))
	for _, c := range children {
		keep[c] = true
	}
	for _, old := range node.Children {
		if !keep[old] && old.Parent == node {
			old.Parent = nil
		}
	}
	for _, c := range children {
		if c.Parent != nil && c.Parent != node {
			c.Detach()
		}
		c.Parent = node
	}
	node.Children = children
}

// Detach removes node from its parent.
func (node *Node) Detach() {
	parent := node.Parent
	if parent == nil {
		return
	}
	for i, c := range parent.Children {
		if c == node {
			parent.Children = append(parent.Children[:i:i], parent.Children[i+1:]...)
			break
		}
	}
	node.Parent = nil
}

// ReplaceWith puts replacement where node was. node ends up detached.
func (node *Node) ReplaceWith(replacement *Node) {
	parent := node.Parent
	if parent == nil {
		return
	}
	replacement.Detach()
	for i, c := range parent.Children {
		if c == node {
			parent.Children[i] = replacement
			replacement.Parent = parent
			node.Parent = nil
			return
		}
	}
}

// IndexInParent returns node's position among its siblings, or -1.
func (node *Node) IndexInParent() int {
	if node.Parent == nil {
		return -1
	}
	for i, c := range node.Parent.Children {
		if c == node {
			return i
		}
	}
	return -1
}

// Root returns the topmost ancestor of node.
func (node *Node) Root() *Node {
	n := node
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// Walk visits node and its descendants depth-first. Returning false from fn
// skips the node's children.
func (node *Node) Walk(fn func(n *Node) bool) {
	if !fn(node) {
		return
	}
	// Copy so fn may restructure the children it visits.
	children := append([]*Node(nil), node.Children...)
	for _, c := range children {
		c.Walk(fn)
	}
}

// Find collects descendants (and node itself) matching pred, without
// descending into nodes for which stop returns true.
func (node *Node) Find(pred func(n *Node) bool, stop func(n *Node) bool) []*Node {
	var out []*Node
	node.Walk(func(n *Node) bool {
		if pred(n) {
			out = append(out, n)
		}
		return stop == nil || !stop(n)
	})
	return out
}
