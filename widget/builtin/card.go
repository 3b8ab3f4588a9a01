package builtin

import (
	"golang.org/x/net/html"

	"github.com/livefir/livehydrate/widget"
)

type cardView struct {
	in       widget.Input
	record   widget.Record
	title    string
	subtitle string
	image    string
	variant  string
}

// Card renders a single record as a card. The "metric" and "stat" layouts
// select compact variants; records with an image get the image variant.
func Card(in widget.Input) (widget.View, error) {
	record := widget.AsRecord(in.Data)
	tmpl := in.Config.Template()

	title := field(record, "title")
	if key, ok := tmpl["primary"]; ok {
		title = field(record, key)
	}
	subtitle := field(record, "description")
	if key, ok := tmpl["secondary"]; ok {
		subtitle = field(record, key)
	}

	v := &cardView{
		in:       in,
		record:   record,
		title:    widget.Stringify(title),
		subtitle: widget.Stringify(subtitle),
		image:    safeURL(field(record, "image")),
	}
	switch layout := in.Config.Layout(); {
	case layout == "metric" || layout == "stat":
		v.variant = layout
	case v.image != "":
		v.variant = "image"
	default:
		v.variant = "default"
	}
	return v, nil
}

func (v *cardView) Render() []*html.Node {
	card := widget.El("div", widget.Attrs("class", "widget-card card-"+v.variant))
	if v.image != "" {
		card.AppendChild(widget.El("img", widget.Attrs("src", v.image, "alt", v.title)))
	}
	if v.title != "" {
		card.AppendChild(widget.El("h3", nil, widget.Text(v.title)))
	}
	if v.subtitle != "" {
		card.AppendChild(widget.El("p", nil, widget.Text(v.subtitle)))
	}
	return []*html.Node{card}
}

func (v *cardView) Handle(g widget.Gesture) bool {
	if g.Index != widget.WholeWidget && g.Index != 0 {
		return false
	}
	return v.in.Emit(widget.InteractionClick, v.record)
}
