package builtin

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/livefir/livehydrate/widget"
)

type gridView struct {
	in      widget.Input
	items   widget.Records
	columns int
}

// Grid renders records as image tiles in a fixed number of columns.
func Grid(in widget.Input) (widget.View, error) {
	columns := in.Config.Int("columns", 3)
	if columns < 1 {
		columns = 3
	}
	return &gridView{in: in, items: widget.AsRecords(in.Data), columns: columns}, nil
}

func (v *gridView) Render() []*html.Node {
	grid := widget.El("div", widget.Attrs(
		"class", "widget-grid",
		"style", fmt.Sprintf("grid-template-columns: repeat(%d, 1fr)", v.columns),
	))
	for i, item := range v.items {
		tile := widget.El("div", widget.Attrs("class", "widget-card card-image", "data-index", itoa(i)))
		title := widget.Stringify(field(item, "title"))
		if src := safeURL(field(item, "image")); src != "" {
			tile.AppendChild(widget.El("img", widget.Attrs("src", src, "alt", title)))
		}
		if title != "" {
			tile.AppendChild(widget.El("h3", nil, widget.Text(title)))
		}
		grid.AppendChild(tile)
	}
	return []*html.Node{grid}
}

func (v *gridView) Handle(g widget.Gesture) bool {
	if !inRange(g.Index, len(v.items)) {
		return false
	}
	return v.in.Emit(widget.InteractionSelect, map[string]any{
		"item":  v.items[g.Index],
		"index": g.Index,
	})
}
