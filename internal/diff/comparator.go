package diff

import (
	"fmt"
	"sort"
	"strings"
)

// ChangeType represents the type of change detected
type ChangeType string

const (
	ChangeNone      ChangeType = "none"
	ChangeTextOnly  ChangeType = "text-only"
	ChangeAttribute ChangeType = "attribute"
	ChangeStructure ChangeType = "structure"
	ChangeComplex   ChangeType = "complex"
)

// Change represents a difference between two trees
type Change struct {
	Type        ChangeType
	Path        string
	OldValue    string
	NewValue    string
	Description string
}

// Equal reports whether two subtrees are structurally identical.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type != b.Type || a.Data != b.Data {
		return false
	}
	if !attributesEqual(a.Attributes, b.Attributes) {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

func attributesEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// Compare lists the positional differences between two trees. It is used for
// reporting; the reconciler does its own keyed matching.
func Compare(oldNode, newNode *Node) []Change {
	var changes []Change
	compareNodes(oldNode, newNode, &changes)
	return changes
}

// compareNodes recursively compares two nodes
func compareNodes(oldNode, newNode *Node, changes *[]Change) {
	if oldNode == nil && newNode == nil {
		return
	}

	if oldNode == nil {
		*changes = append(*changes, Change{
			Type:        ChangeStructure,
			Path:        newNode.GetPath(),
			NewValue:    nodeToString(newNode),
			Description: "Node added",
		})
		return
	}

	if newNode == nil {
		*changes = append(*changes, Change{
			Type:        ChangeStructure,
			Path:        oldNode.GetPath(),
			OldValue:    nodeToString(oldNode),
			Description: "Node removed",
		})
		return
	}

	if oldNode.Type != newNode.Type || (oldNode.IsElementNode() && oldNode.Data != newNode.Data) {
		*changes = append(*changes, Change{
			Type:        ChangeStructure,
			Path:        oldNode.GetPath(),
			OldValue:    nodeToString(oldNode),
			NewValue:    nodeToString(newNode),
			Description: "Node replaced",
		})
		return
	}

	if oldNode.IsTextNode() {
		if oldNode.Data != newNode.Data {
			*changes = append(*changes, Change{
				Type:        ChangeTextOnly,
				Path:        oldNode.GetPath(),
				OldValue:    oldNode.Data,
				NewValue:    newNode.Data,
				Description: "Text content changed",
			})
		}
		return
	}

	compareAttributes(oldNode, newNode, changes)

	maxLen := len(oldNode.Children)
	if len(newNode.Children) > maxLen {
		maxLen = len(newNode.Children)
	}
	for i := 0; i < maxLen; i++ {
		var oldChild, newChild *Node
		if i < len(oldNode.Children) {
			oldChild = oldNode.Children[i]
		}
		if i < len(newNode.Children) {
			newChild = newNode.Children[i]
		}
		compareNodes(oldChild, newChild, changes)
	}
}

// compareAttributes compares the attributes of two nodes in key order
func compareAttributes(oldNode, newNode *Node, changes *[]Change) {
	keys := make(map[string]struct{}, len(oldNode.Attributes)+len(newNode.Attributes))
	for k := range oldNode.Attributes {
		keys[k] = struct{}{}
	}
	for k := range newNode.Attributes {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, key := range sorted {
		oldValue, inOld := oldNode.Attributes[key]
		newValue, inNew := newNode.Attributes[key]
		var desc string
		switch {
		case inOld && inNew && oldValue != newValue:
			desc = "Attribute value changed"
		case !inOld:
			desc = "Attribute added"
		case !inNew:
			desc = "Attribute removed"
		default:
			continue
		}
		*changes = append(*changes, Change{
			Type:        ChangeAttribute,
			Path:        oldNode.GetPath() + "/@" + key,
			OldValue:    oldValue,
			NewValue:    newValue,
			Description: desc,
		})
	}
}

// nodeToString converts a node to a readable string representation
func nodeToString(node *Node) string {
	if node.IsTextNode() {
		return node.Data
	}

	keys := make([]string, 0, len(node.Attributes))
	for k := range node.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("<" + node.Data)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%q", k, node.Attributes[k])
	}
	b.WriteString(">")
	return b.String()
}

// ClassifyChanges analyzes a set of changes and classifies the overall change pattern
func ClassifyChanges(changes []Change) ChangeType {
	if len(changes) == 0 {
		return ChangeNone
	}

	hasTextOnly := false
	hasAttribute := false
	hasStructure := false

	for _, change := range changes {
		switch change.Type {
		case ChangeTextOnly:
			hasTextOnly = true
		case ChangeAttribute:
			hasAttribute = true
		case ChangeStructure:
			hasStructure = true
		}
	}

	if hasStructure {
		if hasTextOnly || hasAttribute {
			return ChangeComplex
		}
		return ChangeStructure
	}

	if hasAttribute && hasTextOnly {
		return ChangeComplex
	}

	if hasAttribute {
		return ChangeAttribute
	}

	return ChangeTextOnly
}
