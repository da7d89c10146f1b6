package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips markup from free-text input and returns plain, trimmed text.
// Entities escaped by the policy are decoded again, since the result is
// printed on certificates and in plain-text email rather than rendered as
// HTML.
func Text(input string) string {
	if input == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(StrictPolicy.Sanitize(input)))
}
