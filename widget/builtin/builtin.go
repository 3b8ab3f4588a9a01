// Package builtin provides the standard widget adapters: List, Card, Chart,
// Grid, Timeline, Table, Vinyl and Calendar.
package builtin

import (
	"net/url"
	"sort"
	"strconv"

	"github.com/livefir/livehydrate/widget"
)

// Adapters returns the standard adapter set keyed by widget type name.
func Adapters() map[string]widget.Adapter {
	return map[string]widget.Adapter{
		"List":     List,
		"Card":     Card,
		"Chart":    Chart,
		"Grid":     Grid,
		"Timeline": Timeline,
		"Table":    Table,
		"Vinyl":    Vinyl,
		"Calendar": Calendar,
	}
}

// Register adds the standard adapters to r.
func Register(r *widget.Registry) error {
	names := make([]string, 0, 8)
	adapters := Adapters()
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.Register(name, adapters[name]); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a fresh registry holding the standard adapters.
func NewRegistry() *widget.Registry {
	r := widget.NewRegistry()
	if err := Register(r); err != nil {
		// Only possible on duplicate names, which Adapters cannot produce.
		panic(err)
	}
	return r
}

// field reads key from r, returning nil when the record or key is absent.
func field(r widget.Record, key string) any {
	if r == nil || key == "" {
		return nil
	}
	return r[key]
}

// firstOf returns the first present, non-empty value among keys.
func firstOf(r widget.Record, keys ...string) any {
	for _, k := range keys {
		if v := field(r, k); v != nil && widget.Stringify(v) != "" {
			return v
		}
	}
	return nil
}

func inRange(i, n int) bool {
	return i >= 0 && i < n
}

// safeURL keeps http(s) and relative URLs and drops everything else.
func safeURL(v any) string {
	s := widget.Stringify(v)
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "", "http", "https":
		return s
	}
	return ""
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
