package store

import "strings"

// Node is a file or directory encountered during traversal
type Node struct {
	// Path is the absolute path of the node.
	Path string
	// RelPath is the slash-separated path relative to the run root,
	// "." for the root itself.
	RelPath string
	// Name is the base name of the node.
	Name string
	// IsDir reports whether the node is a directory.
	IsDir bool
}

// Kind returns "dir" or "file"
func (n Node) Kind() string {
	if n.IsDir {
		return KindDir
	}
	return KindFile
}

// MetadataKey returns the node's key path into the metadata store:
// its relative path segments, intermediate (directory) segments carrying a
// trailing slash, and ["."] for the root node.
func (n Node) MetadataKey() []string {
	if n.RelPath == "." || n.RelPath == "" {
		return []string{"."}
	}
	parts := strings.Split(n.RelPath, "/")
	key := make([]string, len(parts))
	for i, p := range parts[:len(parts)-1] {
		key[i] = p + "/"
	}
	key[len(parts)-1] = parts[len(parts)-1]
	return key
}
