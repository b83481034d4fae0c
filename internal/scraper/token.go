package scraper

import (
	"fmt"
	"regexp"
)

// DefaultTokenPattern matches the Drupal view DOM id in listing markup
var DefaultTokenPattern = regexp.MustCompile(`js-view-dom-id-([a-f0-9]+)`)

// CompileTokenPattern compiles a token pattern that must capture exactly one group
func CompileTokenPattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling token pattern: %w", err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("token pattern %q must have exactly one capture group", pattern)
	}
	return re, nil
}

// DiscoverToken returns the first pagination token found in markup
func DiscoverToken(re *regexp.Regexp, markup string) (string, bool) {
	if re == nil {
		re = DefaultTokenPattern
	}
	m := re.FindStringSubmatch(markup)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}
