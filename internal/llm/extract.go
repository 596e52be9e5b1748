package llm

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSONObject is returned when a reply holds no {...} span.
var ErrNoJSONObject = errors.New("response is not a valid JSON object")

var fenced = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// StripFences returns the body of the first markdown code fence in s, or s
// trimmed when there is none.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenced.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// ExtractObject cuts the span from the first '{' to the last '}' out of a
// model reply, after removing code fences. Models often wrap JSON in prose.
func ExtractObject(s string) (string, error) {
	s = StripFences(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", ErrNoJSONObject
	}
	return s[start : end+1], nil
}
