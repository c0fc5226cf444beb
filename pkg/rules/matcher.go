package rules

import (
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/chuang453/batch-process/pkg/errors"
)

// Matcher decides whether a node's relative path matches a rule's pattern.
// Patterns use glob syntax with '/' as the separator, so `*` never crosses
// a path segment while `**` spans any number of intermediate segments.
// Compiled globs are cached per pattern.
type Matcher struct {
	mu    sync.Mutex
	cache map[string]glob.Glob
}

// NewMatcher creates a matcher with an empty pattern cache
func NewMatcher() *Matcher {
	return &Matcher{cache: make(map[string]glob.Glob)}
}

// Matches reports whether relPath (slash-separated, "." for the root)
// matches pattern. A pattern ending in '/' matches directories only; the
// literal "." matches the root node itself; all other patterns match files
// and directories alike. An unparseable pattern yields a PATTERN_INVALID
// error.
func (m *Matcher) Matches(relPath, pattern string, isDir bool) (bool, error) {
	if pattern == "" {
		return false, errors.New(errors.ErrPatternInvalid, "pattern cannot be empty")
	}

	if pattern == "." {
		return relPath == ".", nil
	}

	dirOnly := strings.HasSuffix(pattern, "/")
	if dirOnly {
		if !isDir {
			return false, nil
		}
		pattern = strings.TrimSuffix(pattern, "/")
	}

	g, err := m.compile(pattern)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrPatternInvalid,
			"cannot compile pattern %q", pattern)
	}
	return g.Match(relPath), nil
}

func (m *Matcher) compile(pattern string) (glob.Glob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.cache[pattern]; ok {
		return g, nil
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, err
	}
	m.cache[pattern] = g
	return g, nil
}
