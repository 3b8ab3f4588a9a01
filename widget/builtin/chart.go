package builtin

import (
	"strconv"

	"golang.org/x/net/html"

	"github.com/livefir/livehydrate/widget"
)

type chartView struct {
	in     widget.Input
	points widget.Points
	kind   string
	label  string
}

// Chart renders a series of labelled values. The x/label and y/value
// template entries pick the fields; layout "bar" selects a bar chart.
func Chart(in widget.Input) (widget.View, error) {
	tmpl := in.Config.Template()
	xField := firstKey(tmpl, "x", "label")
	if xField == "" {
		xField = "label"
	}
	yField := firstKey(tmpl, "y", "value")
	if yField == "" {
		yField = "value"
	}

	var points widget.Points
	switch d := in.Data.(type) {
	case widget.Points:
		points = d
	default:
		for _, item := range widget.AsRecords(in.Data) {
			points = append(points, widget.Point{
				Label:  widget.Stringify(field(item, xField)),
				Value:  number(field(item, yField)),
				Source: item,
			})
		}
	}

	kind := "line"
	if in.Config.Layout() == "bar" {
		kind = "bar"
	}
	return &chartView{in: in, points: points, kind: kind, label: tmpl["primary"]}, nil
}

func (v *chartView) Render() []*html.Node {
	fig := widget.El("figure", widget.Attrs("class", "widget-chart chart-"+v.kind))
	if v.label != "" {
		fig.AppendChild(widget.El("figcaption", nil, widget.Text(v.label)))
	}
	series := widget.El("ol", widget.Attrs("class", "series"))
	for i, p := range v.points {
		series.AppendChild(widget.El("li", widget.Attrs("data-point-index", itoa(i)),
			widget.El("span", widget.Attrs("class", "label"), widget.Text(p.Label)),
			widget.El("span", widget.Attrs("class", "value"), widget.Text(strconv.FormatFloat(p.Value, 'f', -1, 64))),
		))
	}
	fig.AppendChild(series)
	return []*html.Node{fig}
}

func (v *chartView) Handle(g widget.Gesture) bool {
	if !inRange(g.Index, len(v.points)) {
		return false
	}
	p := v.points[g.Index]
	if p.Source != nil {
		return v.in.Emit(widget.InteractionClick, p.Source)
	}
	return v.in.Emit(widget.InteractionClick, widget.Record{"label": p.Label, "value": p.Value})
}

func firstKey(tmpl map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := tmpl[k]; ok {
			return v
		}
	}
	return ""
}

// number coerces a data value to float64; anything unparseable is 0.
func number(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	}
	return 0
}
