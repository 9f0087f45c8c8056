package discovery

import (
	"regexp"

	"k8s.io/klog/v2"
)

// Classifier tags frontend candidates by matching configured patterns against
// service and port names. Patterns are case-insensitive substring searches;
// any single match tags the name, so pattern order never affects the result.
type Classifier struct {
	patterns []*regexp.Regexp
}

// NewClassifier compiles the configured patterns. Invalid patterns are logged
// and dropped rather than failing construction.
func NewClassifier(patterns []string) *Classifier {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			klog.Errorf("Ignoring invalid frontend pattern %q: %v", p, err)
			continue
		}
		compiled = append(compiled, re)
	}
	return &Classifier{patterns: compiled}
}

// Match reports whether any pattern matches the given name. An empty pattern
// set never matches.
func (c *Classifier) Match(name string) bool {
	if name == "" {
		return false
	}
	for _, re := range c.patterns {
		if re.MatchString(name) {
			klog.V(4).Infof("Name %q matches frontend pattern %q", name, re.String())
			return true
		}
	}
	return false
}
