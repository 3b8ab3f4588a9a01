package diff

import "strings"

// Classification describes how a new markup payload relates to the one
// before it.
type Classification string

const (
	// Empty clears the live tree and every widget instance.
	Empty Classification = "empty"
	// Continuation extends the previous payload; widget instances survive.
	Continuation Classification = "continuation"
	// Replacement is unrelated to the previous payload; a new epoch starts.
	Replacement Classification = "replacement"
)

// Classify returns Continuation iff prev is non-empty and next strictly
// extends it, Empty iff next is empty, and Replacement otherwise.
func Classify(prev, next string) Classification {
	if next == "" {
		return Empty
	}
	if prev != "" && len(next) > len(prev) && strings.HasPrefix(next, prev) {
		return Continuation
	}
	return Replacement
}

// PreservesInstances reports whether widget instances outlive an update of
// this classification.
func (c Classification) PreservesInstances() bool {
	return c == Continuation
}
