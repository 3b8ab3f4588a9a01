package builtin

import (
	"sort"

	"golang.org/x/net/html"

	"github.com/livefir/livehydrate/widget"
)

type vinylView struct {
	in     widget.Input
	record widget.Record
	title  string
	artist string
	image  string
	label  string
}

// Vinyl renders a single record as an album sleeve.
func Vinyl(in widget.Input) (widget.View, error) {
	record := widget.AsRecord(in.Data)
	tmpl := in.Config.Template()

	var title any
	if key, ok := tmpl["primary"]; ok {
		title = field(record, key)
	} else {
		title = firstOf(record, "title", "name", "album")
		if title == nil {
			title = firstValue(record)
		}
	}
	var artist any
	if key, ok := tmpl["secondary"]; ok {
		artist = field(record, key)
	} else {
		artist = firstOf(record, "artist", "genre", "year", "creator")
	}

	v := &vinylView{
		in:     in,
		record: record,
		title:  widget.Stringify(title),
		artist: widget.Stringify(artist),
		image:  safeURL(field(record, "image")),
		label:  in.Config.Layout(),
	}
	if v.title == "" {
		v.title = "Unknown"
	}
	if v.label == "" {
		v.label = "Most Played"
	}
	return v, nil
}

// firstValue returns the value of the alphabetically first key.
func firstValue(r widget.Record) any {
	if len(r) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return r[keys[0]]
}

func (v *vinylView) Render() []*html.Node {
	sleeve := widget.El("div", widget.Attrs("class", "widget-vinyl"),
		widget.El("span", widget.Attrs("class", "label"), widget.Text(v.label)))
	if v.image != "" {
		sleeve.AppendChild(widget.El("img", widget.Attrs("src", v.image, "alt", v.title)))
	}
	sleeve.AppendChild(widget.El("h3", nil, widget.Text(v.title)))
	if v.artist != "" {
		sleeve.AppendChild(widget.El("p", nil, widget.Text(v.artist)))
	}
	return []*html.Node{sleeve}
}

func (v *vinylView) Handle(g widget.Gesture) bool {
	if g.Index != widget.WholeWidget && g.Index != 0 {
		return false
	}
	return v.in.Emit(widget.InteractionClick, v.record)
}
