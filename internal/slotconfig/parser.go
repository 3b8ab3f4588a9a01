// Package slotconfig parses the JSON configuration blob attached to a slot
// declaration. Parsing never fails: anything that is not a JSON object
// yields an empty config.
package slotconfig

import (
	"encoding/json"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/livefir/livehydrate/widget"
)

// DefaultCacheSize is the number of distinct config strings kept parsed.
const DefaultCacheSize = 256

// Parser parses slot configs, memoizing results by their source string.
// Streaming re-reconciles the same declarations on every tick, so the same
// blobs are parsed over and over.
type Parser struct {
	cache *lru.Cache[string, widget.Config]
}

// NewParser creates a parser with an LRU cache of the given size. A size of
// zero disables caching.
func NewParser(size int) *Parser {
	p := &Parser{}
	if size > 0 {
		cache, err := lru.New[string, widget.Config](size)
		if err == nil {
			p.cache = cache
		}
	}
	return p
}

// Parse returns the config encoded in raw. The result is owned by the caller.
func (p *Parser) Parse(raw string) widget.Config {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return widget.Config{}
	}
	if p.cache != nil {
		if cfg, ok := p.cache.Get(raw); ok {
			return clone(cfg)
		}
	}
	cfg := Parse(raw)
	if p.cache != nil {
		p.cache.Add(raw, cfg)
	}
	return clone(cfg)
}

// Len reports the number of cached entries.
func (p *Parser) Len() int {
	if p.cache == nil {
		return 0
	}
	return p.cache.Len()
}

// Parse decodes raw without caching.
func Parse(raw string) widget.Config {
	if strings.TrimSpace(raw) == "" {
		return widget.Config{}
	}
	var cfg map[string]any
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil || cfg == nil {
		return widget.Config{}
	}
	return widget.Config(cfg)
}

func clone(cfg widget.Config) widget.Config {
	out := make(widget.Config, len(cfg))
	for k, v := range cfg {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = cloneValue(inner)
		}
		return s
	}
	return v
}
