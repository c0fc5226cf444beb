// Package recorders provides the builtin bookkeeping processors the
// engine injects when enable_builtin_recorders is set. They are ordinary
// processors; registering them under different names or replacing them
// with custom implementations works the same as for any other processor.
package recorders

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/chuang453/batch-process/pkg/errors"
	"github.com/chuang453/batch-process/pkg/logging"
	"github.com/chuang453/batch-process/pkg/registry"
	"github.com/chuang453/batch-process/pkg/rules"
	"github.com/chuang453/batch-process/pkg/store"
)

// Register installs the builtin recorders into procs under their
// default names.
func Register(procs registry.Processors) {
	procs.Register(rules.DefaultInlineRecorder, registry.Entry{
		Fn:     RecordToShared,
		Kind:   registry.KindInline,
		Source: "builtin",
		Meta:   map[string]interface{}{"description": "append a timestamped visit entry to the shared store"},
	})
	procs.Register(rules.DefaultPostRecorder, registry.Entry{
		Fn:     PersistHistoryJSONL,
		Kind:   registry.KindPost,
		Source: "builtin",
		Meta:   map[string]interface{}{"description": "append the node's latest result to a JSONL history file"},
	})
}

// RecordToShared appends a timestamped entry for the node under
// shared["executed"] plus the node's metadata key. Each visit appends,
// so repeated runs over the same context accumulate.
func RecordToShared(node store.Node, ctx *store.Context, config map[string]interface{}) (interface{}, error) {
	key := append([]string{"executed"}, node.MetadataKey()...)

	existing, err := ctx.SetDefaultShared(key, []interface{}{})
	if err != nil {
		return nil, err
	}
	entries, ok := existing.([]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrKeyConflict,
			"shared key %v holds %T, expected a list", key, existing)
	}

	entries = append(entries, map[string]interface{}{
		"path": node.RelPath,
		"kind": node.Kind(),
		"time": time.Now().Format(time.RFC3339),
	})
	if err := ctx.SetShared(key, entries); err != nil {
		return nil, err
	}
	return len(entries), nil
}

// historyLine is the JSONL schema written by PersistHistoryJSONL.
type historyLine struct {
	Time      string      `json:"time"`
	Path      string      `json:"path"`
	Kind      string      `json:"kind"`
	Phase     string      `json:"phase,omitempty"`
	Processor string      `json:"processor,omitempty"`
	Outcome   string      `json:"outcome"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// PersistHistoryJSONL appends the node's most recent result entry to a
// history file in JSON Lines form. The directory comes from the
// "log_dir" config key, defaulting to the user state directory.
func PersistHistoryJSONL(node store.Node, ctx *store.Context, config map[string]interface{}) (interface{}, error) {
	logger := logging.GetLogger("recorders")

	dir := HistoryDir()
	if v, ok := config["log_dir"].(string); ok && v != "" {
		dir = v
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot create history dir %s", dir)
	}
	path := filepath.Join(dir, "history.jsonl")

	line := historyLine{
		Time:    time.Now().Format(time.RFC3339),
		Path:    node.RelPath,
		Kind:    node.Kind(),
		Outcome: store.OutcomeSucceed,
	}
	if last := latestResult(ctx, node); last != nil {
		line.Phase = last.Phase
		line.Processor = last.Processor
		line.Result = fmt.Sprintf("%v", last.Result)
		line.Error = last.Error
		if last.Error != "" {
			line.Outcome = store.OutcomeFailed
		}
	}

	data, err := json.Marshal(line)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "cannot encode history entry")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot open history file %s", path)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot write history file %s", path)
	}

	logger.Debug().Str("path", path).Str("node", node.RelPath).Msg("history entry appended")
	return path, nil
}

// DefaultDir, when set, overrides the user state directory as the
// fallback location for the history file. The per-invocation "log_dir"
// config key still wins.
var DefaultDir string

// HistoryDir returns the fallback directory for the JSONL history file
func HistoryDir() string {
	if DefaultDir != "" {
		return DefaultDir
	}
	return filepath.Join(xdg.StateHome, "batchproc")
}

// latestResult returns the last result recorded for node before the
// recorder itself ran, or nil when the node produced none.
func latestResult(ctx *store.Context, node store.Node) *store.ResultEntry {
	for i := len(ctx.Results) - 1; i >= 0; i-- {
		if ctx.Results[i].Path == node.RelPath {
			return &ctx.Results[i]
		}
	}
	return nil
}
