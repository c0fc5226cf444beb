package rules

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/chuang453/batch-process/pkg/logging"
	"github.com/chuang453/batch-process/pkg/registry"
	"github.com/chuang453/batch-process/pkg/store"
)

// Policy selects how contributions from multiple matching rules combine
type Policy string

const (
	// PolicyKeepAll keeps every matching rule's contributions, sorted by
	// priority with no deduplication. This is the default.
	PolicyKeepAll Policy = "keep-all"

	// PolicyTopTier keeps only the highest-priority non-mandatory tier
	// plus every must-execute entry, per bucket.
	PolicyTopTier Policy = "top-tier"
)

// Resolver produces the three phase buckets for a node from the configured
// rules
type Resolver struct {
	cfg     *Config
	procs   registry.Processors
	policy  Policy
	matcher *Matcher
	logger  zerolog.Logger
}

// NewResolver creates a resolver over cfg consulting procs for processor
// metadata. An empty policy means PolicyKeepAll.
func NewResolver(cfg *Config, procs registry.Processors, policy Policy) *Resolver {
	if policy == "" {
		policy = PolicyKeepAll
	}
	return &Resolver{
		cfg:     cfg,
		procs:   procs,
		policy:  policy,
		matcher: NewMatcher(),
		logger:  logging.GetLogger("rules.resolver"),
	}
}

// Resolve returns the priority-ordered phase buckets for node. Rules whose
// pattern cannot be applied are reported as Faults on the returned buckets;
// they never abort resolution of the remaining rules.
func (r *Resolver) Resolve(node store.Node) Buckets {
	var b Buckets

	for _, pr := range r.cfg.Rules {
		matched, err := r.matcher.Matches(node.RelPath, pr.Pattern, node.IsDir)
		if err != nil {
			r.logger.Warn().
				Err(err).
				Str("pattern", pr.Pattern).
				Str("path", node.RelPath).
				Msg("Skipping unusable rule")
			b.Faults = append(b.Faults, Fault{Pattern: pr.Pattern, Err: err})
			continue
		}
		if !matched {
			continue
		}

		if pr.Err != nil {
			r.logger.Warn().
				Err(pr.Err).
				Str("pattern", pr.Pattern).
				Str("path", node.RelPath).
				Msg("Matched rule has a malformed body")
			b.Faults = append(b.Faults, Fault{Pattern: pr.Pattern, Err: pr.Err})
			continue
		}

		r.logger.Debug().
			Str("path", node.RelPath).
			Str("pattern", pr.Pattern).
			Int("priority", pr.Priority).
			Msg("Rule matched")

		b.Pre = append(b.Pre, r.entries(pr, pr.PreProcessors)...)
		b.Inline = append(b.Inline, r.entries(pr, pr.Processors)...)
		b.Post = append(b.Post, r.entries(pr, pr.PostProcessors)...)
	}

	sortBucket(b.Pre)
	sortBucket(b.Inline)
	sortBucket(b.Post)

	if r.policy == PolicyTopTier {
		b.Pre = topTier(b.Pre)
		b.Inline = topTier(b.Inline)
		b.Post = topTier(b.Post)
	}

	if r.cfg.EnableRecorders && !b.Empty() {
		b.Inline = r.injectRecorder(b.Inline, r.cfg.RecorderNames.InlineName())
		b.Post = r.injectRecorder(b.Post, r.cfg.RecorderNames.PostName())
	}

	return b
}

// entries expands one rule's processor-name list into bucket entries
func (r *Resolver) entries(pr PatternRule, names []string) []Entry {
	if len(names) == 0 {
		return nil
	}
	out := make([]Entry, 0, len(names))
	for _, name := range names {
		out = append(out, Entry{
			Processor:   name,
			Config:      pr.Config,
			Priority:    pr.Priority,
			MustExecute: r.mustExecute(pr, name),
		})
	}
	return out
}

// mustExecute resolves the rule-level override against the registry default
func (r *Resolver) mustExecute(pr PatternRule, name string) bool {
	if pr.MustExecute != nil {
		return *pr.MustExecute
	}
	entry, err := r.procs.Get(name)
	if err != nil {
		return false
	}
	return entry.MustExecute
}

// injectRecorder appends the named recorder once, if it is registered and
// not already present in the bucket
func (r *Resolver) injectRecorder(bucket []Entry, name string) []Entry {
	if name == "" || !r.procs.Has(name) {
		return bucket
	}
	for _, e := range bucket {
		if e.Processor == name {
			return bucket
		}
	}
	entry, _ := r.procs.Get(name)
	return append(bucket, Entry{
		Processor:   name,
		Config:      map[string]interface{}{},
		Priority:    entry.Priority,
		MustExecute: entry.MustExecute,
	})
}

// sortBucket orders entries by descending priority, stable so that equal
// priorities preserve rule declaration order
func sortBucket(bucket []Entry) {
	sort.SliceStable(bucket, func(i, j int) bool {
		return bucket[i].Priority > bucket[j].Priority
	})
}

// topTier keeps the highest-priority non-mandatory entries plus every
// must-execute entry. bucket must already be sorted.
func topTier(bucket []Entry) []Entry {
	if len(bucket) == 0 {
		return bucket
	}

	highest := 0
	found := false
	for _, e := range bucket {
		if !e.MustExecute {
			highest = e.Priority
			found = true
			break
		}
	}

	var kept []Entry
	for _, e := range bucket {
		if e.MustExecute || (found && e.Priority == highest) {
			kept = append(kept, e)
		}
	}
	return kept
}
