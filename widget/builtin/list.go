package builtin

import (
	"golang.org/x/net/html"

	"github.com/livefir/livehydrate/widget"
)

type listView struct {
	in        widget.Input
	items     widget.Records
	primary   string
	secondary string
	meta      string
	ranked    bool
	size      string
}

// List renders a list of records, or a list of plain values.
func List(in widget.Input) (widget.View, error) {
	v := &listView{
		in:        in,
		items:     widget.AsRecords(in.Data),
		primary:   in.Config.Field("primary", "title"),
		secondary: in.Config.Field("secondary", "subtitle"),
		meta:      in.Config.Field("meta", ""),
		ranked:    in.Config.Layout() == "ranked",
		size:      in.Config.String("size"),
	}
	if _, ok := in.Data.(widget.Values); ok {
		v.primary = "value"
	}
	switch v.size {
	case "sm", "md", "lg":
	default:
		v.size = "md"
	}
	return v, nil
}

func (v *listView) Render() []*html.Node {
	class := "widget-list size-" + v.size
	if v.ranked {
		class += " ranked"
	}
	list := widget.El("ul", widget.Attrs("class", class))
	for i, item := range v.items {
		li := widget.El("li", widget.Attrs("data-index", itoa(i)))
		if v.ranked {
			li.AppendChild(widget.El("span", widget.Attrs("class", "rank"), widget.Text(itoa(i+1))))
		}
		li.AppendChild(widget.El("span", widget.Attrs("class", "primary"),
			widget.Text(widget.Stringify(field(item, v.primary)))))
		if s := widget.Stringify(field(item, v.secondary)); s != "" {
			li.AppendChild(widget.El("span", widget.Attrs("class", "secondary"), widget.Text(s)))
		}
		if s := widget.Stringify(field(item, v.meta)); s != "" {
			li.AppendChild(widget.El("span", widget.Attrs("class", "meta"), widget.Text(s)))
		}
		list.AppendChild(li)
	}
	return []*html.Node{list}
}

func (v *listView) Handle(g widget.Gesture) bool {
	if !inRange(g.Index, len(v.items)) {
		return false
	}
	return v.in.Emit(widget.InteractionClick, v.items[g.Index])
}
