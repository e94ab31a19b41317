package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

// IsPathWithin reports whether path resolves to a location under any of the
// given roots. Symlinks are resolved on both sides before comparison.
func IsPathWithin(path string, roots []string) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}
	absPath, err := filepath.Abs(resolved)
	if err != nil {
		return false
	}
	for _, root := range roots {
		resolvedRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			resolvedRoot = root
		}
		absRoot, err := filepath.Abs(resolvedRoot)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absRoot, absPath)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// ExcludeMatcher filters paths against a set of exclusion patterns. Each
// pattern is tried both as a shell glob against the base name and as a
// regular expression against the whole path; patterns that fail to compile
// as regexes are used as globs only.
type ExcludeMatcher struct {
	globs   []string
	regexes []*regexp.Regexp
}

func NewExcludeMatcher(patterns []string) *ExcludeMatcher {
	m := &ExcludeMatcher{}
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		m.globs = append(m.globs, pattern)
		if re, err := regexp.Compile(pattern); err == nil {
			m.regexes = append(m.regexes, re)
		}
	}
	return m
}

// Excluded reports whether path matches any exclusion pattern.
func (m *ExcludeMatcher) Excluded(path string) bool {
	if m == nil {
		return false
	}
	for _, pattern := range m.globs {
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}
	for _, re := range m.regexes {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
