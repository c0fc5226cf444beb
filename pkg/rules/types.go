package rules

// Reserved top-level configuration keys. Pattern keys never collide with
// these.
const (
	KeyGlobalPreHook    = "global_pre_hook"
	KeyGlobalPostHook   = "global_post_hook"
	KeyGlobalPreConfig  = "global_pre_config"
	KeyGlobalPostConfig = "global_post_config"
	KeyEnableRecorders  = "enable_builtin_recorders"
	KeyRecorderNames    = "builtin_recorder_names"
)

// Default builtin recorder processor names
const (
	DefaultInlineRecorder = "record_to_shared"
	DefaultPostRecorder   = "persist_history_jsonl"
)

// IsReservedKey reports whether k is a reserved configuration key rather
// than a rule pattern
func IsReservedKey(k string) bool {
	switch k {
	case KeyGlobalPreHook, KeyGlobalPostHook, KeyGlobalPreConfig,
		KeyGlobalPostConfig, KeyEnableRecorders, KeyRecorderNames:
		return true
	}
	return false
}

// Phase is when a matched processor runs relative to a node's descendants
type Phase string

const (
	PhasePre    Phase = "pre"
	PhaseInline Phase = "inline"
	PhasePost   Phase = "post"
)

// Rule is the body of one pattern entry in the configuration
type Rule struct {
	// Priority orders this rule's contributions within each bucket,
	// higher first. Defaults to 0.
	Priority int `yaml:"priority,omitempty" koanf:"priority"`

	// Config is passed verbatim to every processor this rule names.
	Config map[string]interface{} `yaml:"config,omitempty" koanf:"config"`

	// Processors run at node entry, after PreProcessors.
	Processors []string `yaml:"processors,omitempty" koanf:"processors"`

	// PreProcessors run first at node entry.
	PreProcessors []string `yaml:"pre_processors,omitempty" koanf:"pre_processors"`

	// PostProcessors run at node exit, after all descendants.
	PostProcessors []string `yaml:"post_processors,omitempty" koanf:"post_processors"`

	// MustExecute, when set, overrides each named processor's registry
	// default. Only the top-tier policy consults it.
	MustExecute *bool `yaml:"must_execute,omitempty" koanf:"must_execute"`
}

// PatternRule is a rule together with its pattern key, in configuration
// declaration order
type PatternRule struct {
	Pattern string `yaml:"pattern" koanf:"pattern"`
	Rule    `yaml:",inline" koanf:",squash"`

	// Err marks a rule whose body could not be decoded (e.g. a
	// non-mapping value). The rule is kept so the malformation can be
	// reported for exactly the nodes its pattern matches.
	Err error `yaml:"-" koanf:"-"`
}

// RecorderNames configures which registered processors serve as the builtin
// recorders
type RecorderNames struct {
	Inline string `yaml:"inline" koanf:"inline"`
	Post   string `yaml:"post" koanf:"post"`
}

// InlineName returns the configured inline recorder name or the default
func (r RecorderNames) InlineName() string {
	if r.Inline != "" {
		return r.Inline
	}
	return DefaultInlineRecorder
}

// PostName returns the configured post recorder name or the default
func (r RecorderNames) PostName() string {
	if r.Post != "" {
		return r.Post
	}
	return DefaultPostRecorder
}

// Config is a full dispatch configuration: the ordered rule list plus the
// reserved-key settings
type Config struct {
	Rules []PatternRule

	GlobalPreHook    string
	GlobalPreConfig  map[string]interface{}
	GlobalPostHook   string
	GlobalPostConfig map[string]interface{}

	EnableRecorders bool
	RecorderNames   RecorderNames
}

// Entry is one resolved (processor, config) pair within a bucket
type Entry struct {
	Processor   string
	Config      map[string]interface{}
	Priority    int
	MustExecute bool
}

// Fault records a rule that could not be applied to a node, e.g. an
// unparseable pattern. Faults are non-fatal and scoped to the node being
// resolved.
type Fault struct {
	Pattern string
	Err     error
}

// Buckets holds the resolved, priority-ordered entries for one node
type Buckets struct {
	Pre    []Entry
	Inline []Entry
	Post   []Entry
	Faults []Fault
}

// ForPhase returns the bucket for phase p
func (b *Buckets) ForPhase(p Phase) []Entry {
	switch p {
	case PhasePre:
		return b.Pre
	case PhaseInline:
		return b.Inline
	case PhasePost:
		return b.Post
	}
	return nil
}

// Total is the number of entries across all three buckets
func (b *Buckets) Total() int {
	return len(b.Pre) + len(b.Inline) + len(b.Post)
}

// Empty reports whether no rule contributed any entry
func (b *Buckets) Empty() bool {
	return b.Total() == 0
}
