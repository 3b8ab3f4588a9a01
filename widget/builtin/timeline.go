package builtin

import (
	"golang.org/x/net/html"

	"github.com/livefir/livehydrate/widget"
)

type timelineView struct {
	in     widget.Input
	events widget.Events
}

// Timeline renders records with title, description and timestamp fields.
func Timeline(in widget.Input) (widget.View, error) {
	var events widget.Events
	switch d := in.Data.(type) {
	case widget.Events:
		events = d
	default:
		for _, item := range widget.AsRecords(in.Data) {
			events = append(events, widget.Event{
				Title:       widget.Stringify(field(item, in.Config.Field("primary", "title"))),
				Description: widget.Stringify(field(item, in.Config.Field("secondary", "description"))),
				Timestamp:   widget.Stringify(field(item, in.Config.Field("timestamp", "timestamp"))),
				Source:      item,
			})
		}
	}
	return &timelineView{in: in, events: events}, nil
}

func (v *timelineView) Render() []*html.Node {
	list := widget.El("ol", widget.Attrs("class", "widget-timeline"))
	for i, ev := range v.events {
		li := widget.El("li", widget.Attrs("data-index", itoa(i)))
		if ev.Timestamp != "" {
			li.AppendChild(widget.El("time", nil, widget.Text(ev.Timestamp)))
		}
		li.AppendChild(widget.El("h4", nil, widget.Text(ev.Title)))
		if ev.Description != "" {
			li.AppendChild(widget.El("p", nil, widget.Text(ev.Description)))
		}
		list.AppendChild(li)
	}
	return []*html.Node{list}
}

func (v *timelineView) Handle(g widget.Gesture) bool {
	if !inRange(g.Index, len(v.events)) {
		return false
	}
	ev := v.events[g.Index]
	var clicked any = ev.Source
	if ev.Source == nil {
		clicked = widget.Record{"title": ev.Title, "description": ev.Description, "timestamp": ev.Timestamp}
	}
	return v.in.Emit(widget.InteractionSelect, map[string]any{
		"event": clicked,
		"index": g.Index,
	})
}
