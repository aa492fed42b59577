package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// ExtractText converts an HTML fragment to plain text. Script and style
// content is dropped, all other markup is stripped, whitespace collapsed.
// Returns an error when the fragment cannot be parsed at all.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Find("script, style, head").Remove()
	return CollapseWhitespace(doc.Text()), nil
}

// CollapseWhitespace squeezes runs of whitespace into single spaces and trims
// the ends.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
