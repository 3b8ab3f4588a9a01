package builtin

import (
	"sort"

	"golang.org/x/net/html"

	"github.com/livefir/livehydrate/widget"
)

type tableColumn struct {
	key   string
	label string
}

type tableView struct {
	in      widget.Input
	rows    widget.Records
	columns []tableColumn
}

// Table renders records as rows. Columns come from config "columns"
// ([{key, label}] or ["key", ...]); without them the first row's keys are
// used in sorted order.
func Table(in widget.Input) (widget.View, error) {
	rows := widget.AsRecords(in.Data)
	columns := parseColumns(in.Config["columns"])
	if len(columns) == 0 && len(rows) > 0 {
		keys := make([]string, 0, len(rows[0]))
		for k := range rows[0] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			columns = append(columns, tableColumn{key: k, label: k})
		}
	}
	return &tableView{in: in, rows: rows, columns: columns}, nil
}

func parseColumns(raw any) []tableColumn {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []tableColumn
	for _, entry := range list {
		switch c := entry.(type) {
		case string:
			out = append(out, tableColumn{key: c, label: c})
		case map[string]any:
			key, _ := c["key"].(string)
			if key == "" {
				continue
			}
			label, _ := c["label"].(string)
			if label == "" {
				label = key
			}
			out = append(out, tableColumn{key: key, label: label})
		}
	}
	return out
}

func (v *tableView) Render() []*html.Node {
	head := widget.El("tr", nil)
	for _, c := range v.columns {
		head.AppendChild(widget.El("th", widget.Attrs("data-key", c.key), widget.Text(c.label)))
	}
	body := widget.El("tbody", nil)
	for i, row := range v.rows {
		tr := widget.El("tr", widget.Attrs("data-index", itoa(i)))
		for _, c := range v.columns {
			tr.AppendChild(widget.El("td", nil, widget.Text(widget.Stringify(field(row, c.key)))))
		}
		body.AppendChild(tr)
	}
	return []*html.Node{widget.El("table", widget.Attrs("class", "widget-table"),
		widget.El("thead", nil, head), body)}
}

func (v *tableView) Handle(g widget.Gesture) bool {
	if !inRange(g.Index, len(v.rows)) {
		return false
	}
	return v.in.Emit(widget.InteractionClick, v.rows[g.Index])
}
