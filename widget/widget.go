// Package widget defines the contract between the hydration engine and the
// widgets it mounts: the canonical input handed to an adapter, the view an
// adapter returns, and the registry mapping widget type names to adapters.
package widget

import (
	"golang.org/x/net/html"
)

// Interaction kinds emitted by the built-in adapters.
const (
	InteractionClick  = "click"
	InteractionSelect = "select"
)

// Interaction is the outward message a mounted widget produces when the user
// acts on it. It is a point-in-time value and is never stored.
type Interaction struct {
	WidgetType  string `json:"componentType"`
	Mode        string `json:"interaction,omitempty"`
	SlotID      string `json:"slotId"`
	ClickedData any    `json:"clickedData,omitempty"`
}

// Input is the canonical input handed to an adapter.
type Input struct {
	Type   string
	SlotID string
	Data   Data
	Config Config

	// Mode is the declared interaction mode of the slot ("" when none).
	Mode string

	// OnInteraction is nil when the slot declares no interaction mode.
	OnInteraction func(kind string, clicked any)
}

// Emit forwards an interaction if the slot accepts them. It reports whether
// the interaction was forwarded.
func (in Input) Emit(kind string, clicked any) bool {
	if in.OnInteraction == nil {
		return false
	}
	in.OnInteraction(kind, clicked)
	return true
}

// Gesture is a low-level UI event addressed to a mounted widget.
type Gesture struct {
	Kind  string `json:"kind"`
	Index int    `json:"index"`
}

// WholeWidget is the gesture index addressing the widget itself rather than
// one of its items.
const WholeWidget = -1

// View is a live widget instance.
type View interface {
	// Render produces the presentational subtree placed inside the mount point.
	Render() []*html.Node
	// Handle translates a gesture into an interaction. It reports whether an
	// interaction was emitted.
	Handle(g Gesture) bool
}

// Closer is implemented by views holding resources that must be released on
// teardown.
type Closer interface {
	Close() error
}

// Adapter builds a view from the canonical input. Adapters must tolerate
// missing fields and rendering absent values as empty.
type Adapter func(in Input) (View, error)
