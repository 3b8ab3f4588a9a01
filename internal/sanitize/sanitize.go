// Package sanitize strips generated markup down to an allow-list of tags and
// attributes. Disallowed elements are removed together with their content.
package sanitize

import (
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/livefir/livehydrate/internal/slot"
)

// Default tag names of the markup micro-protocol.
const (
	DefaultSlotTag    = "component-slot"
	DefaultBindingTag = "data-value"
)

// presentationalTags are the ordinary tags generated layouts may use.
var presentationalTags = []string{
	"div", "span", "p", "br", "hr",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"section", "article", "header", "footer", "main", "aside",
	"ul", "ol", "li", "dl", "dt", "dd",
	"strong", "em", "b", "i", "u", "s", "small", "mark", "sub", "sup",
	"code", "pre", "blockquote", "time",
	"table", "caption", "thead", "tbody", "tfoot", "tr", "th", "td",
	"figure", "figcaption",
}

// protocolAttrs are the slot and binding attributes, plus class for styling.
var protocolAttrs = []string{
	slot.AttrType,
	slot.AttrDataSource,
	slot.AttrConfig,
	slot.AttrInteraction,
	slot.AttrClickPrompt,
	slot.AttrSlotID,
	"class",
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Policy is an immutable allow-list.
type Policy struct {
	tags  map[string]bool
	attrs map[string]bool
}

// NewPolicy builds a policy allowing the protocol tags, the presentational
// tags and the protocol attributes plus any extras. The mount point marker
// attribute is never allowed, so generated markup cannot forge mount points.
func NewPolicy(slotTag, bindingTag string, extraTags, extraAttrs []string) *Policy {
	p := &Policy{
		tags:  make(map[string]bool),
		attrs: make(map[string]bool),
	}
	for _, t := range presentationalTags {
		p.tags[t] = true
	}
	for _, t := range append([]string{slotTag, bindingTag}, extraTags...) {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			p.tags[t] = true
		}
	}
	for _, a := range append(protocolAttrs, extraAttrs...) {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			p.attrs[a] = true
		}
	}
	delete(p.attrs, slot.AttrMountID)
	for _, dangerous := range []string{"script", "style", "iframe", "object", "embed"} {
		delete(p.tags, dangerous)
	}
	return p
}

// DefaultPolicy uses the default protocol tag names and no extras.
func DefaultPolicy() *Policy {
	return NewPolicy(DefaultSlotTag, DefaultBindingTag, nil, nil)
}

// AllowsTag reports whether tag survives sanitization.
func (p *Policy) AllowsTag(tag string) bool {
	return p.tags[strings.ToLower(tag)]
}

// AllowsAttr reports whether attr survives sanitization.
func (p *Policy) AllowsAttr(attr string) bool {
	return p.attrs[strings.ToLower(attr)]
}

// Tags returns the allowed tag names, sorted.
func (p *Policy) Tags() []string {
	out := make([]string, 0, len(p.tags))
	for t := range p.tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Sanitize returns the allowed subset of raw. Malformed or truncated markup
// yields a best-effort result; it never fails.
func (p *Policy) Sanitize(raw string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(raw))

	// Name and nesting depth of the disallowed element being skipped.
	skipTag := ""
	skipDepth := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF, or a truncated tag at the end of a streamed chunk.
			return b.String()
		}
		tok := z.Token()

		switch tt {
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			b.WriteString(html.EscapeString(norm.NFC.String(tok.Data)))

		case html.StartTagToken, html.SelfClosingTagToken:
			name := tok.Data
			if skipDepth > 0 {
				if tt == html.StartTagToken && name == skipTag && !voidElements[name] {
					skipDepth++
				}
				continue
			}
			if !p.tags[name] {
				if tt == html.StartTagToken && !voidElements[name] {
					skipTag, skipDepth = name, 1
				}
				continue
			}
			p.writeStartTag(&b, tok)
			// Custom elements cannot self-close in HTML; spell the end tag out
			// so following siblings are not swallowed as children.
			if tt == html.SelfClosingTagToken && !voidElements[name] {
				b.WriteString("</" + name + ">")
			}

		case html.EndTagToken:
			name := tok.Data
			if skipDepth > 0 {
				if name == skipTag {
					skipDepth--
				}
				continue
			}
			if !p.tags[name] || voidElements[name] {
				continue
			}
			b.WriteString("</" + name + ">")

		case html.CommentToken, html.DoctypeToken:
			// dropped
		}
	}
}

func (p *Policy) writeStartTag(b *strings.Builder, tok html.Token) {
	b.WriteByte('<')
	b.WriteString(tok.Data)
	seen := make(map[string]bool, len(tok.Attr))
	for _, a := range tok.Attr {
		key := strings.ToLower(a.Key)
		if a.Namespace != "" || !p.attrs[key] || seen[key] {
			continue
		}
		seen[key] = true
		b.WriteByte(' ')
		b.WriteString(key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Val))
		b.WriteByte('"')
	}
	b.WriteByte('>')
}
