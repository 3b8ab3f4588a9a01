package widget

import (
	"reflect"
)

// Kind tags the shape of widget input data.
type Kind int

const (
	KindNone Kind = iota
	KindRecords
	KindRecord
	KindValues
	KindPoints
	KindEvents
)

func (k Kind) String() string {
	switch k {
	case KindRecords:
		return "records"
	case KindRecord:
		return "record"
	case KindValues:
		return "values"
	case KindPoints:
		return "points"
	case KindEvents:
		return "events"
	}
	return "none"
}

// Data is a closed set of input shapes. Adapters switch on the concrete type.
type Data interface {
	Kind() Kind
}

// Record is a single keyed object.
type Record map[string]any

// Records is a list of keyed objects.
type Records []Record

// Values is a list of scalars, e.g. a list of strings.
type Values []any

// Point is one labelled numeric sample.
type Point struct {
	Label  string
	Value  float64
	Source Record
}

// Points is a chart series.
type Points []Point

// Event is one timeline entry.
type Event struct {
	Title       string
	Description string
	Timestamp   string
	Source      Record
}

// Events is a timeline.
type Events []Event

func (Record) Kind() Kind  { return KindRecord }
func (Records) Kind() Kind { return KindRecords }
func (Values) Kind() Kind  { return KindValues }
func (Points) Kind() Kind  { return KindPoints }
func (Events) Kind() Kind  { return KindEvents }

// Normalize turns a value produced by structured resolution into a tagged
// Data variant. Lists whose first element is a record become Records (non
// record entries are dropped); other lists become Values. Anything else is
// nil.
func Normalize(v any) Data {
	switch t := v.(type) {
	case nil:
		return nil
	case Data:
		return t
	case map[string]any:
		return Record(t)
	case []map[string]any:
		out := make(Records, 0, len(t))
		for _, r := range t {
			out = append(out, Record(r))
		}
		return out
	case []any:
		return normalizeList(t)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		return toRecord(rv)
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return normalizeList(items)
	}
	return nil
}

func normalizeList(items []any) Data {
	if len(items) == 0 {
		return Records{}
	}
	if _, ok := asRecord(items[0]); !ok {
		return Values(items)
	}
	out := make(Records, 0, len(items))
	for _, item := range items {
		if r, ok := asRecord(item); ok {
			out = append(out, r)
		}
	}
	return out
}

func asRecord(v any) (Record, bool) {
	switch t := v.(type) {
	case map[string]any:
		return Record(t), true
	case Record:
		return t, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		return toRecord(rv), true
	}
	return nil, false
}

func toRecord(rv reflect.Value) Record {
	out := make(Record, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out
}

// AsRecords returns list data as records. Values become {"id": i, "value": v};
// a single record is not a list and yields nil.
func AsRecords(d Data) Records {
	switch t := d.(type) {
	case Records:
		return t
	case Values:
		out := make(Records, len(t))
		for i, v := range t {
			out[i] = Record{"id": i, "value": v}
		}
		return out
	}
	return nil
}

// AsRecord returns record data, or an empty record.
func AsRecord(d Data) Record {
	if r, ok := d.(Record); ok && r != nil {
		return r
	}
	return Record{}
}
