package widget

import (
	"encoding/json"
	"math"
	"strconv"
)

// Config is the parsed configuration blob attached to a slot. It keeps the
// decoded JSON structure as-is; the accessors below read the keys the
// built-in adapters understand.
type Config map[string]any

// Template returns the logical-field -> data-key mapping under "template".
// Non-string entries are ignored.
func (c Config) Template() map[string]string {
	raw, ok := c["template"].(map[string]any)
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out[k] = s
		}
	}
	return out
}

// Field returns the data key mapped to a logical field, or fallback.
func (c Config) Field(logical, fallback string) string {
	if key, ok := c.Template()[logical]; ok {
		return key
	}
	return fallback
}

// String returns a string value or "".
func (c Config) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Layout is shorthand for String("layout").
func (c Config) Layout() string {
	return c.String("layout")
}

// Int returns an integer value, accepting JSON numbers and numeric strings.
func (c Config) Int(key string, fallback int) int {
	switch v := c[key].(type) {
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
