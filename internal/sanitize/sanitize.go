// Package sanitize strips markup from user supplied text.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// Text removes every HTML tag from s and trims it. Entities the policy
// escapes are turned back into plain characters, so "Tom & Jerry" survives.
func Text(s string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(s)))
}

// Value sanitizes every string inside a decoded JSON value, in place for
// maps and slices.
func Value(v any) any {
	switch t := v.(type) {
	case string:
		return Text(t)
	case map[string]any:
		for k, val := range t {
			t[k] = Value(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = Value(val)
		}
		return t
	}
	return v
}
