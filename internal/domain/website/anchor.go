package website

import (
	"regexp"
	"strings"
)

var whitespace = regexp.MustCompile(`\s+`)

// Anchor builds the in-page scroll target for a section name.
// Example: "About Us" -> "#about-us"
func Anchor(name string) string {
	return "#" + whitespace.ReplaceAllString(strings.ToLower(name), "-")
}

// NavigationFor derives one scroll entry per section.
func NavigationFor(sections []Section) []NavigationItem {
	nav := make([]NavigationItem, 0, len(sections))
	for _, s := range sections {
		nav = append(nav, NavigationItem{
			Label:  s.Name,
			Target: Anchor(s.Name),
			Type:   NavScroll,
		})
	}
	return nav
}
