package store

import (
	"github.com/chuang453/batch-process/pkg/errors"
)

// Nested-key access over plain map[string]interface{} trees. A path is an
// ordered list of keys describing a walk through nested maps; a one-element
// path behaves like plain map access.

// Set writes value at path, creating intermediate maps as needed.
// It fails if an intermediate segment is already bound to a non-map value.
func Set(m map[string]interface{}, path []string, value interface{}) error {
	if len(path) == 0 {
		return errors.New(errors.ErrInvalidInput, "path cannot be empty")
	}

	current := m
	for _, key := range path[:len(path)-1] {
		next, exists := current[key]
		if !exists {
			child := make(map[string]interface{})
			current[key] = child
			current = child
			continue
		}
		child, ok := next.(map[string]interface{})
		if !ok {
			return errors.Newf(errors.ErrKeyConflict,
				"cannot descend into key %q: bound to a non-map value", key)
		}
		current = child
	}

	current[path[len(path)-1]] = value
	return nil
}

// Get returns the value at path, or def when any segment is missing or a
// segment's current value is not a map partway through the walk. It never
// fails.
func Get(m map[string]interface{}, path []string, def interface{}) interface{} {
	if len(path) == 0 {
		return def
	}

	var current interface{} = m
	for _, key := range path {
		node, ok := current.(map[string]interface{})
		if !ok {
			return def
		}
		next, exists := node[key]
		if !exists {
			return def
		}
		current = next
	}
	return current
}

// SetDefault returns the value at path if present; otherwise it persists def
// at the path (creating intermediates) and returns def.
func SetDefault(m map[string]interface{}, path []string, def interface{}) (interface{}, error) {
	if len(path) == 0 {
		return def, errors.New(errors.ErrInvalidInput, "path cannot be empty")
	}

	current := m
	for _, key := range path[:len(path)-1] {
		next, exists := current[key]
		if !exists {
			child := make(map[string]interface{})
			current[key] = child
			current = child
			continue
		}
		child, ok := next.(map[string]interface{})
		if !ok {
			return nil, errors.Newf(errors.ErrKeyConflict,
				"cannot descend into key %q: bound to a non-map value", key)
		}
		current = child
	}

	leaf := path[len(path)-1]
	if existing, exists := current[leaf]; exists {
		return existing, nil
	}
	current[leaf] = def
	return def, nil
}

// Delete removes the leaf at path if present, then prunes any intermediate
// map left empty by the removal. It reports whether anything was removed.
func Delete(m map[string]interface{}, path []string) bool {
	if len(path) == 0 {
		return false
	}

	// Collect the parent chain so emptied intermediates can be pruned
	// from the leaf back toward the root.
	parents := make([]map[string]interface{}, 0, len(path))
	current := m
	for _, key := range path[:len(path)-1] {
		parents = append(parents, current)
		next, exists := current[key]
		if !exists {
			return false
		}
		child, ok := next.(map[string]interface{})
		if !ok {
			return false
		}
		current = child
	}

	leaf := path[len(path)-1]
	if _, exists := current[leaf]; !exists {
		return false
	}
	delete(current, leaf)

	for i := len(parents) - 1; i >= 0; i-- {
		if len(current) > 0 {
			break
		}
		delete(parents[i], path[i])
		current = parents[i]
	}
	return true
}

// ListPaths enumerates all leaf paths under prefix as flat key lists.
// An empty prefix walks the whole map.
func ListPaths(m map[string]interface{}, prefix []string) [][]string {
	start := Get(m, prefix, nil)
	if len(prefix) == 0 {
		start = m
	}

	var paths [][]string
	var walk func(node interface{}, base []string)
	walk = func(node interface{}, base []string) {
		child, ok := node.(map[string]interface{})
		if !ok {
			paths = append(paths, base)
			return
		}
		for k, v := range child {
			next := make([]string, len(base), len(base)+1)
			copy(next, base)
			walk(v, append(next, k))
		}
	}
	if start != nil {
		walk(start, append([]string(nil), prefix...))
	}
	return paths
}
