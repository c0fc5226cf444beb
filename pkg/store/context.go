package store

// Outcome values recorded per processor invocation
const (
	OutcomeSucceed = "succeed"
	OutcomeFailed  = "failed"
)

// Node kinds recorded in results and progress output
const (
	KindFile = "file"
	KindDir  = "dir"
)

// ExecutionRecord is the per-node audit entry stored in the metadata store.
// The Processors, Configs and Outcomes lists are parallel and append-only
// while the node is being processed.
type ExecutionRecord struct {
	Processors []string
	Configs    []map[string]interface{}
	Outcomes   []string
	Sequence   int
	Warnings   []string
	Errors     []string
}

// ResultEntry is one element of the flat results sequence. Exactly one of
// Result or Error is meaningful: Error is empty on success.
type ResultEntry struct {
	Phase     string                 `yaml:"phase" json:"phase"`
	Path      string                 `yaml:"path" json:"path"`
	Kind      string                 `yaml:"kind" json:"kind"`
	Processor string                 `yaml:"processor" json:"processor"`
	Config    map[string]interface{} `yaml:"config,omitempty" json:"config,omitempty"`
	Result    interface{}            `yaml:"result,omitempty" json:"result,omitempty"`
	Error     string                 `yaml:"error,omitempty" json:"error,omitempty"`
}

// Context is the data store threaded through a whole run. The four stores
// share the nested-key addressing algorithm but are independent namespaces;
// Results is a flat append sequence rather than key-addressed.
//
// A Context is created once per run (or supplied by the caller for
// cumulative runs) and mutated in place. It carries no locking: a run is
// single-threaded end to end.
type Context struct {
	// RootPath is the absolute root of the tree being processed.
	RootPath string

	// Data holds ephemeral working state written and read by processors.
	Data map[string]interface{}

	// Shared holds longer-lived cross-node state, e.g. a handle to an
	// externally opened resource.
	Shared map[string]interface{}

	// Metadata holds one *ExecutionRecord per visited node that matched
	// at least one rule, keyed by the node's path segments.
	Metadata map[string]interface{}

	// Results collects execution records in invocation order.
	Results []ResultEntry
}

// NewContext returns an empty context ready for a run
func NewContext() *Context {
	return &Context{
		Data:     make(map[string]interface{}),
		Shared:   make(map[string]interface{}),
		Metadata: make(map[string]interface{}),
	}
}

// Clear empties all four stores in place
func (c *Context) Clear() {
	c.Data = make(map[string]interface{})
	c.Shared = make(map[string]interface{})
	c.Metadata = make(map[string]interface{})
	c.Results = nil
}

// AddResult appends an entry to the flat results sequence
func (c *Context) AddResult(entry ResultEntry) {
	c.Results = append(c.Results, entry)
}

// SetData writes value at path in the data store
func (c *Context) SetData(path []string, value interface{}) error {
	return Set(c.Data, path, value)
}

// GetData reads path from the data store, falling back to def
func (c *Context) GetData(path []string, def interface{}) interface{} {
	return Get(c.Data, path, def)
}

// SetDefaultData returns the data value at path, persisting def if absent
func (c *Context) SetDefaultData(path []string, def interface{}) (interface{}, error) {
	return SetDefault(c.Data, path, def)
}

// DeleteData removes path from the data store, pruning emptied intermediates
func (c *Context) DeleteData(path []string) bool {
	return Delete(c.Data, path)
}

// SetShared writes value at path in the shared store
func (c *Context) SetShared(path []string, value interface{}) error {
	return Set(c.Shared, path, value)
}

// GetShared reads path from the shared store, falling back to def
func (c *Context) GetShared(path []string, def interface{}) interface{} {
	return Get(c.Shared, path, def)
}

// SetDefaultShared returns the shared value at path, persisting def if absent
func (c *Context) SetDefaultShared(path []string, def interface{}) (interface{}, error) {
	return SetDefault(c.Shared, path, def)
}

// DeleteShared removes path from the shared store, pruning emptied intermediates
func (c *Context) DeleteShared(path []string) bool {
	return Delete(c.Shared, path)
}

// ListShared enumerates all leaf paths in the shared store under prefix
func (c *Context) ListShared(prefix []string) [][]string {
	return ListPaths(c.Shared, prefix)
}

// SetMetadata writes value at path in the metadata store
func (c *Context) SetMetadata(path []string, value interface{}) error {
	return Set(c.Metadata, path, value)
}

// GetMetadata reads path from the metadata store, falling back to def
func (c *Context) GetMetadata(path []string, def interface{}) interface{} {
	return Get(c.Metadata, path, def)
}

// Record returns the execution record stored at path, or nil
func (c *Context) Record(path []string) *ExecutionRecord {
	rec, _ := Get(c.Metadata, path, nil).(*ExecutionRecord)
	return rec
}
