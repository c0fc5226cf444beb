// Package fileops provides the stock file manipulation processors:
// backing files up into a parallel tree, renaming with a prefix, and
// deleting. Each one notes what it did under data["file_ops"] so later
// processors and the caller can see the run's effects in one place.
package fileops

import (
	"io"
	"os"
	"path/filepath"

	"github.com/chuang453/batch-process/pkg/errors"
	"github.com/chuang453/batch-process/pkg/registry"
	"github.com/chuang453/batch-process/pkg/store"
)

// Register installs the stock file processors into procs
func Register(procs registry.Processors) {
	procs.Register("backup_file", registry.Entry{
		Fn:       BackupFile,
		Kind:     registry.KindInline,
		Priority: 60,
		Source:   "fileops",
		Meta:     map[string]interface{}{"description": "copy the file into a backup tree mirroring its relative path"},
	})
	procs.Register("rename_file", registry.Entry{
		Fn:       RenameFile,
		Kind:     registry.KindInline,
		Priority: 60,
		Source:   "fileops",
		Meta:     map[string]interface{}{"description": "rename the file with a configurable prefix"},
	})
	procs.Register("delete_file", registry.Entry{
		Fn:       DeleteFile,
		Kind:     registry.KindInline,
		Priority: 60,
		Source:   "fileops",
		Meta:     map[string]interface{}{"description": "delete the file and note it in the data store"},
	})
}

// BackupFile copies the node into the directory named by the
// "backup_dir" config key (default "./backup"), preserving the node's
// path relative to the run root. Directories are skipped.
func BackupFile(node store.Node, ctx *store.Context, config map[string]interface{}) (interface{}, error) {
	if node.IsDir {
		return map[string]interface{}{"status": "skipped", "reason": "not a file"}, nil
	}

	backupDir := "./backup"
	if v, ok := config["backup_dir"].(string); ok && v != "" {
		backupDir = v
	}

	dest := filepath.Join(backupDir, filepath.FromSlash(node.RelPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot create backup dir for %s", node.RelPath)
	}
	if err := copyFile(node.Path, dest); err != nil {
		return nil, err
	}

	appendOp(ctx, "backed_up", map[string]interface{}{
		"from": node.Path,
		"to":   dest,
	})
	return map[string]interface{}{
		"action": "backup",
		"from":   node.Path,
		"to":     dest,
	}, nil
}

// RenameFile renames the node within its directory, prepending the
// "prefix" config key (default "processed_"). Directories are skipped.
func RenameFile(node store.Node, ctx *store.Context, config map[string]interface{}) (interface{}, error) {
	if node.IsDir {
		return map[string]interface{}{"status": "skipped", "reason": "not a file"}, nil
	}

	prefix := "processed_"
	if v, ok := config["prefix"].(string); ok && v != "" {
		prefix = v
	}

	dest := filepath.Join(filepath.Dir(node.Path), prefix+node.Name)
	if err := os.Rename(node.Path, dest); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot rename %s", node.RelPath)
	}

	appendOp(ctx, "renamed", map[string]interface{}{
		"from": node.Path,
		"to":   dest,
	})
	return map[string]interface{}{
		"action": "rename",
		"from":   node.Path,
		"to":     dest,
	}, nil
}

// DeleteFile removes the node. Directories are skipped; they usually
// still have children when their inline bucket runs.
func DeleteFile(node store.Node, ctx *store.Context, config map[string]interface{}) (interface{}, error) {
	if node.IsDir {
		return map[string]interface{}{"status": "skipped", "reason": "not a file"}, nil
	}

	if err := os.Remove(node.Path); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot delete %s", node.RelPath)
	}

	appendOp(ctx, "deleted", node.Path)
	return map[string]interface{}{
		"action": "delete",
		"file":   node.Path,
	}, nil
}

// appendOp appends an entry to the list at data["file_ops"][kind]
func appendOp(ctx *store.Context, kind string, entry interface{}) {
	key := []string{"file_ops", kind}
	existing, err := ctx.SetDefaultData(key, []interface{}{})
	if err != nil {
		return
	}
	if list, ok := existing.([]interface{}); ok {
		_ = ctx.SetData(key, append(list, entry))
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot open %s", src)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot stat %s", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot create %s", dst)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot copy %s", src)
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot write %s", dst)
	}
	return nil
}
