// Package datapath resolves "namespace::path" references against a data
// context.
package datapath

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// Separator splits the namespace from the path in a reference.
const Separator = "::"

// Context maps namespace -> key -> value. Values are scalars, records
// (map[string]any) or lists ([]any), usually straight out of encoding/json.
type Context map[string]map[string]any

// Resolve walks ref against ctx and returns the raw value it points at.
// The second result is false when the reference is malformed or any step of
// the walk fails.
func Resolve(ctx Context, ref string) (any, bool) {
	parts := strings.Split(ref, Separator)
	if len(parts) != 2 {
		return nil, false
	}
	namespace, path := parts[0], parts[1]
	if path == "" {
		return nil, false
	}

	values, ok := ctx[namespace]
	if !ok || values == nil {
		return nil, false
	}

	// Bare keys (including keys that happen to contain dots) hit the map directly.
	if v, ok := values[path]; ok {
		return v, true
	}

	steps, ok := parsePath(path)
	if !ok || len(steps) == 0 || steps[0].index {
		return nil, false
	}

	current, ok := values[steps[0].key]
	if !ok {
		return nil, false
	}
	for _, s := range steps[1:] {
		current, ok = step(current, s)
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Structured resolves ref for widget data: only non-nil records and lists
// are returned.
func Structured(ctx Context, ref string) (any, bool) {
	v, ok := Resolve(ctx, ref)
	if !ok || v == nil {
		return nil, false
	}
	switch kindOf(v) {
	case reflect.Map, reflect.Slice, reflect.Array:
		if isNilValue(v) {
			return nil, false
		}
		return v, true
	}
	return nil, false
}

// Scalar resolves ref for text substitution. Lists resolve to their length;
// records resolve to nothing.
func Scalar(ctx Context, ref string) (any, bool) {
	v, ok := Resolve(ctx, ref)
	if !ok || v == nil {
		return nil, false
	}
	switch kindOf(v) {
	case reflect.Slice, reflect.Array:
		if isNilValue(v) {
			return nil, false
		}
		return reflect.ValueOf(v).Len(), true
	case reflect.Map, reflect.Struct, reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return nil, false
	}
	return v, true
}

// Format renders a scalar the way it is substituted into text.
func Format(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	}
	return ""
}

type pathStep struct {
	key   string
	idx   int
	index bool
}

// parsePath splits "items[0].name" into [items, 0, name].
func parsePath(path string) ([]pathStep, bool) {
	var steps []pathStep
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return nil, false
		}
		name := segment
		rest := ""
		if i := strings.IndexByte(segment, '['); i >= 0 {
			name, rest = segment[:i], segment[i:]
		}
		if name != "" {
			steps = append(steps, pathStep{key: name})
		}
		for rest != "" {
			if rest[0] != '[' {
				return nil, false
			}
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, false
			}
			n, err := strconv.Atoi(rest[1:end])
			if err != nil || n < 0 {
				return nil, false
			}
			steps = append(steps, pathStep{idx: n, index: true})
			rest = rest[end+1:]
		}
	}
	return steps, true
}

func step(current any, s pathStep) (any, bool) {
	if current == nil {
		return nil, false
	}
	if s.index {
		switch list := current.(type) {
		case []any:
			if s.idx >= len(list) {
				return nil, false
			}
			return list[s.idx], true
		case []map[string]any:
			if s.idx >= len(list) {
				return nil, false
			}
			return list[s.idx], true
		}
		rv := reflect.ValueOf(current)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, false
		}
		if s.idx >= rv.Len() {
			return nil, false
		}
		return rv.Index(s.idx).Interface(), true
	}

	if record, ok := current.(map[string]any); ok {
		v, ok := record[s.key]
		return v, ok
	}
	rv := reflect.ValueOf(current)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	v := rv.MapIndex(reflect.ValueOf(s.key).Convert(rv.Type().Key()))
	if !v.IsValid() {
		return nil, false
	}
	return v.Interface(), true
}

func kindOf(v any) reflect.Kind {
	return reflect.ValueOf(v).Kind()
}

func isNilValue(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
