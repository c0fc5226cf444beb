package engine

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/chuang453/batch-process/pkg/store"
)

// visitor receives each node twice: enter fires before any descendant,
// exit fires after all of them. Files get both calls back to back.
type visitor struct {
	enter func(store.Node) error
	exit  func(store.Node) error
}

// walk runs a depth-first traversal rooted at root. Within a directory,
// subdirectories come before files, each group in lexical order.
// Directories that cannot be read are skipped without error.
func (e *Engine) walk(root string, v visitor) error {
	node := store.Node{
		Path:    root,
		RelPath: ".",
		Name:    filepath.Base(root),
		IsDir:   true,
	}
	return e.walkNode(root, node, v)
}

func (e *Engine) walkNode(root string, node store.Node, v visitor) error {
	if err := v.enter(node); err != nil {
		return err
	}

	if node.IsDir {
		dirs, files := e.children(node.Path)
		for _, name := range dirs {
			child, err := e.childNode(root, node.Path, name, true)
			if err != nil {
				continue
			}
			if err := e.walkNode(root, child, v); err != nil {
				return err
			}
		}
		for _, name := range files {
			child, err := e.childNode(root, node.Path, name, false)
			if err != nil {
				continue
			}
			if err := e.walkNode(root, child, v); err != nil {
				return err
			}
		}
	}

	return v.exit(node)
}

// children partitions a directory's entries into directory and file
// names, each sorted. Read failures yield empty slices.
func (e *Engine) children(dir string) (dirs, files []string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		e.logger.Debug().Err(err).Str("dir", dir).Msg("skipping unreadable directory")
		return nil, nil
	}
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		} else {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)
	return dirs, files
}

func (e *Engine) childNode(root, parent, name string, isDir bool) (store.Node, error) {
	path := filepath.Join(parent, name)
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return store.Node{}, err
	}
	return store.Node{
		Path:    path,
		RelPath: filepath.ToSlash(rel),
		Name:    name,
		IsDir:   isDir,
	}, nil
}
