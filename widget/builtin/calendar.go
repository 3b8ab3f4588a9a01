package builtin

import (
	"golang.org/x/net/html"

	"github.com/livefir/livehydrate/widget"
)

type calendarDate struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

type calendarView struct {
	in    widget.Input
	dates []calendarDate
}

// Calendar renders dated entries. Template keys "date" and "description"
// remap the fields.
func Calendar(in widget.Input) (widget.View, error) {
	dateField := in.Config.Field("date", "date")
	descField := in.Config.Field("description", "description")

	var dates []calendarDate
	for _, item := range widget.AsRecords(in.Data) {
		date := field(item, dateField)
		if date == nil {
			date = field(item, "date")
		}
		desc := field(item, descField)
		if desc == nil {
			desc = field(item, "description")
		}
		dates = append(dates, calendarDate{
			Date:        widget.Stringify(date),
			Description: widget.Stringify(desc),
		})
	}
	return &calendarView{in: in, dates: dates}, nil
}

func (v *calendarView) Render() []*html.Node {
	list := widget.El("dl", widget.Attrs("class", "widget-calendar"))
	for i, d := range v.dates {
		list.AppendChild(widget.El("dt", widget.Attrs("data-index", itoa(i)), widget.Text(d.Date)))
		list.AppendChild(widget.El("dd", nil, widget.Text(d.Description)))
	}
	return []*html.Node{list}
}

func (v *calendarView) Handle(g widget.Gesture) bool {
	if !inRange(g.Index, len(v.dates)) {
		return false
	}
	return v.in.Emit(widget.InteractionClick, v.dates[g.Index])
}
