package livehydrate

import (
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

var (
	minifier *minify.M
	once     sync.Once
)

// getMinifier returns a configured HTML minifier (singleton)
func getMinifier() *minify.M {
	once.Do(func() {
		minifier = minify.New()
		// End tags and quotes stay so the output parses back into the same
		// tree, custom elements included.
		minifier.Add("text/html", &html.Minifier{
			KeepEndTags:         true,
			KeepQuotes:          true,
			KeepDefaultAttrVals: true,
		})
	})
	return minifier
}

// minifyHTML removes unnecessary whitespace from HTML while preserving content
func minifyHTML(htmlContent string) string {
	if !strings.Contains(htmlContent, "<") {
		return normalizeWhitespace(htmlContent)
	}

	minified, err := getMinifier().String("text/html", htmlContent)
	if err != nil {
		// If minification fails, fall back to original content
		return htmlContent
	}
	return minified
}

// normalizeWhitespace removes leading/trailing whitespace and normalizes internal whitespace
func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
