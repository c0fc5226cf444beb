package registry

import (
	"github.com/chuang453/batch-process/pkg/store"
)

// Kind says when a processor runs relative to a node's descendants
type Kind string

const (
	KindPre    Kind = "pre"
	KindInline Kind = "inline"
	KindPost   Kind = "post"
)

// Func is the processor callable. It receives the node being visited, the
// run context and the matching rule's config, and returns an arbitrary
// result or an error. Processors configured as global hooks receive the
// root node.
type Func func(node store.Node, ctx *store.Context, config map[string]interface{}) (interface{}, error)

// Entry is one registered processor with its metadata. The engine only
// reads entries; registration is performed by the host before a run.
type Entry struct {
	Fn          Func
	Kind        Kind
	Priority    int
	MustExecute bool
	Source      string
	TypeHint    string
	Meta        map[string]interface{}
}

// Processors is the name→processor lookup consumed by the engine
type Processors = Registry[Entry]

// NewProcessors returns an empty processor registry
func NewProcessors() Processors {
	return New[Entry]()
}
