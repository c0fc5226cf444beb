package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chuang453/batch-process/pkg/errors"
	"github.com/chuang453/batch-process/pkg/registry"
	"github.com/chuang453/batch-process/pkg/rules"
	"github.com/chuang453/batch-process/pkg/store"
)

// buildTree materializes a test tree; entries ending in "/" are
// directories.
func buildTree(t *testing.T, entries ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, entry := range entries {
		path := filepath.Join(root, filepath.FromSlash(entry))
		if entry[len(entry)-1] == '/' {
			require.NoError(t, os.MkdirAll(path, 0755))
		} else {
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
			require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
		}
	}
	return root
}

// tracer registers a processor that appends "<name>:<relpath>" to trace
// on every invocation.
type tracer struct {
	trace []string
}

func (tr *tracer) register(procs registry.Processors, name string, kind registry.Kind) {
	procs.Register(name, registry.Entry{
		Kind: kind,
		Fn: func(node store.Node, ctx *store.Context, config map[string]interface{}) (interface{}, error) {
			tr.trace = append(tr.trace, name+":"+node.RelPath)
			return len(tr.trace), nil
		},
	})
}

func ruleFor(pattern string, body rules.Rule) rules.PatternRule {
	return rules.PatternRule{Pattern: pattern, Rule: body}
}

func TestRun_ConcreteScenario(t *testing.T) {
	// One directory holding a.txt and b.log; a txt rule and a log rule.
	root := buildTree(t, "docs/", "docs/a.txt", "docs/b.log")

	procs := registry.NewProcessors()
	tr := &tracer{}
	tr.register(procs, "count", registry.KindInline)
	tr.register(procs, "scan", registry.KindInline)
	tr.register(procs, "close_dir", registry.KindPost)

	cfg := &rules.Config{Rules: []rules.PatternRule{
		ruleFor("**/*.txt", rules.Rule{Processors: []string{"count"}}),
		ruleFor("**/*.log", rules.Rule{Processors: []string{"scan"}}),
		ruleFor("docs/", rules.Rule{PostProcessors: []string{"close_dir"}}),
	}}

	ctx, err := New(cfg, procs, Options{}).Run(root)
	require.NoError(t, err)

	// files processed inline before the directory's post bucket
	assert.Equal(t, []string{
		"count:docs/a.txt",
		"scan:docs/b.log",
		"close_dir:docs",
	}, tr.trace)

	require.Len(t, ctx.Results, 3)
	assert.Equal(t, "inline", ctx.Results[0].Phase)
	assert.Equal(t, "post", ctx.Results[2].Phase)
	assert.Equal(t, store.KindDir, ctx.Results[2].Kind)

	// sequence counts matched nodes in visit order
	assert.Equal(t, 1, ctx.Record([]string{"docs"}).Sequence)
	assert.Equal(t, 2, ctx.Record([]string{"docs/", "a.txt"}).Sequence)
	assert.Equal(t, 3, ctx.Record([]string{"docs/", "b.log"}).Sequence)
}

func TestRun_TwoFilesTwoRules(t *testing.T) {
	root := buildTree(t, "a.txt", "b.log")

	procs := registry.NewProcessors()
	tr := &tracer{}
	tr.register(procs, "p1", registry.KindInline)
	tr.register(procs, "p2", registry.KindInline)

	cfg := &rules.Config{Rules: []rules.PatternRule{
		ruleFor("*.txt", rules.Rule{Priority: 5, Processors: []string{"p1"}}),
		ruleFor("*.log", rules.Rule{Priority: 1, Processors: []string{"p2"}}),
	}}

	var events []ProgressEvent
	ctx, err := New(cfg, procs, Options{Progress: func(ev ProgressEvent) {
		events = append(events, ev)
	}}).Run(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"p1:a.txt", "p2:b.log"}, tr.trace)

	require.Len(t, ctx.Results, 2)
	assert.Equal(t, "p1", ctx.Results[0].Processor)
	assert.Equal(t, "p2", ctx.Results[1].Processor)

	require.Len(t, events, 2)
	assert.Equal(t, 2, events[0].TotalSteps)
	assert.Contains(t, events[0].Status, "p1")
	assert.Contains(t, events[1].Status, "p2")
}

func TestRun_SiblingOrder(t *testing.T) {
	// dirs before files, each group lexical
	root := buildTree(t, "b.txt", "a.txt", "zdir/", "zdir/c.txt", "adir/", "adir/d.txt")

	procs := registry.NewProcessors()
	tr := &tracer{}
	tr.register(procs, "touch", registry.KindInline)

	cfg := &rules.Config{Rules: []rules.PatternRule{
		ruleFor("**/*.txt", rules.Rule{Processors: []string{"touch"}}),
		ruleFor("*.txt", rules.Rule{Processors: []string{"touch"}}),
	}}

	_, err := New(cfg, procs, Options{}).Run(root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"touch:adir/d.txt",
		"touch:zdir/c.txt",
		"touch:a.txt",
		"touch:b.txt",
	}, tr.trace)
}

func TestRun_PriorityAndStability(t *testing.T) {
	root := buildTree(t, "a.txt")

	procs := registry.NewProcessors()
	tr := &tracer{}
	for _, name := range []string{"low", "high", "mid1", "mid2"} {
		tr.register(procs, name, registry.KindInline)
	}

	// mid1/mid2 share a priority: declaration order must hold between
	// them, and duplicates are kept
	cfg := &rules.Config{Rules: []rules.PatternRule{
		ruleFor("*.txt", rules.Rule{Priority: 1, Processors: []string{"low"}}),
		ruleFor("a.*", rules.Rule{Priority: 9, Processors: []string{"high"}}),
		ruleFor("a.txt", rules.Rule{Priority: 5, Processors: []string{"mid1", "mid1"}}),
		ruleFor("*.txt", rules.Rule{Priority: 5, Processors: []string{"mid2"}}),
	}}

	_, err := New(cfg, procs, Options{}).Run(root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"high:a.txt",
		"mid1:a.txt",
		"mid1:a.txt",
		"mid2:a.txt",
		"low:a.txt",
	}, tr.trace)
}

func TestRun_ProgressAccounting(t *testing.T) {
	root := buildTree(t, "a.txt", "b.txt", "sub/", "sub/c.txt")

	procs := registry.NewProcessors()
	tr := &tracer{}
	tr.register(procs, "touch", registry.KindInline)
	tr.register(procs, "announce", registry.KindPre)

	cfg := &rules.Config{
		Rules: []rules.PatternRule{
			ruleFor("**/*.txt", rules.Rule{Processors: []string{"touch"}}),
			ruleFor("*.txt", rules.Rule{Processors: []string{"touch"}}),
		},
		GlobalPreHook:  "announce",
		GlobalPostHook: "announce",
	}

	var events []ProgressEvent
	eng := New(cfg, procs, Options{Progress: func(ev ProgressEvent) {
		events = append(events, ev)
	}})

	ctx, err := eng.Run(root)
	require.NoError(t, err)

	// 3 files + 2 hooks
	require.Len(t, events, 5)
	for i, ev := range events {
		assert.Equal(t, i+1, ev.CurrentStep)
		assert.Equal(t, 5, ev.TotalSteps)
	}
	assert.Equal(t, events[len(events)-1].CurrentStep, events[0].TotalSteps)
	assert.Contains(t, events[0].Status, "(global_pre)")
	assert.Contains(t, events[1].Status, "→ touch (inline)")
	assert.Contains(t, events[4].Status, "(global_post)")

	// hooks bracket the node results
	assert.Equal(t, "global_pre", ctx.Results[0].Phase)
	assert.Equal(t, "global_post", ctx.Results[len(ctx.Results)-1].Phase)

	// a dry plan predicts the same total
	plan, err := eng.Plan(root)
	require.NoError(t, err)
	assert.Equal(t, 5, plan.TotalSteps)
}

func TestRun_ProgressSinkPanicIsContained(t *testing.T) {
	root := buildTree(t, "a.txt", "b.txt")

	procs := registry.NewProcessors()
	tr := &tracer{}
	tr.register(procs, "touch", registry.KindInline)

	cfg := &rules.Config{Rules: []rules.PatternRule{
		ruleFor("*.txt", rules.Rule{Processors: []string{"touch"}}),
	}}

	calls := 0
	_, err := New(cfg, procs, Options{Progress: func(ProgressEvent) {
		calls++
		panic("bad sink")
	}}).Run(root)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "sink disabled after first panic")
	assert.Len(t, tr.trace, 2, "all processors still ran")
}

func TestRun_Cancellation(t *testing.T) {
	root := buildTree(t, "a.txt", "b.txt", "c.txt")

	procs := registry.NewProcessors()
	tr := &tracer{}
	tr.register(procs, "touch", registry.KindInline)
	tr.register(procs, "wrapup", registry.KindPre)

	cfg := &rules.Config{
		Rules: []rules.PatternRule{
			ruleFor("*.txt", rules.Rule{Processors: []string{"touch"}}),
		},
		GlobalPostHook: "wrapup",
	}

	t.Run("predicate stops after current invocation", func(t *testing.T) {
		tr.trace = nil
		stop := false
		procs.Register("touch", registry.Entry{
			Kind: registry.KindInline,
			Fn: func(node store.Node, ctx *store.Context, config map[string]interface{}) (interface{}, error) {
				tr.trace = append(tr.trace, "touch:"+node.RelPath)
				stop = len(tr.trace) >= 2
				return nil, nil
			},
		})

		ctx, err := New(cfg, procs, Options{Cancel: func() bool { return stop }}).Run(root)
		require.NoError(t, err)

		assert.Equal(t, []string{"touch:a.txt", "touch:b.txt"}, tr.trace)
		// post hook skipped on cancellation
		for _, r := range ctx.Results {
			assert.NotEqual(t, "global_post", r.Phase)
		}
	})

	t.Run("context adapter", func(t *testing.T) {
		tr.trace = nil
		tr.register(procs, "touch", registry.KindInline)

		cctx, cancel := context.WithCancel(context.Background())
		cancel()

		ctx, err := New(cfg, procs, Options{Cancel: FromContext(cctx)}).Run(root)
		require.NoError(t, err)
		assert.Empty(t, tr.trace)
		assert.Empty(t, ctx.Results)
	})
}

func TestRun_FaultIsolation(t *testing.T) {
	root := buildTree(t, "a.txt")

	procs := registry.NewProcessors()
	tr := &tracer{}
	tr.register(procs, "after", registry.KindInline)
	procs.Register("boom", registry.Entry{
		Kind: registry.KindInline,
		Fn: func(store.Node, *store.Context, map[string]interface{}) (interface{}, error) {
			return nil, errors.New(errors.ErrProcessorExecute, "boom")
		},
	})
	procs.Register("panics", registry.Entry{
		Kind: registry.KindInline,
		Fn: func(store.Node, *store.Context, map[string]interface{}) (interface{}, error) {
			panic("kaboom")
		},
	})

	cfg := &rules.Config{Rules: []rules.PatternRule{
		ruleFor("a.txt", rules.Rule{Processors: []string{"boom", "panics", "missing", "after"}}),
	}}

	ctx, err := New(cfg, procs, Options{}).Run(root)
	require.NoError(t, err, "processor faults never abort the run")

	assert.Equal(t, []string{"after:a.txt"}, tr.trace)

	require.Len(t, ctx.Results, 4)
	assert.Contains(t, ctx.Results[0].Error, "boom")
	assert.Contains(t, ctx.Results[1].Error, "panicked")
	assert.Contains(t, ctx.Results[2].Error, "not registered")
	assert.Empty(t, ctx.Results[3].Error)

	rec := ctx.Record([]string{"a.txt"})
	require.NotNil(t, rec)
	assert.Equal(t, []string{"boom", "panics", "missing", "after"}, rec.Processors)
	assert.Equal(t, []string{
		store.OutcomeFailed, store.OutcomeFailed, store.OutcomeFailed, store.OutcomeSucceed,
	}, rec.Outcomes)
	assert.Len(t, rec.Errors, 3)
}

func TestRun_RuleFaultsAreNodeScoped(t *testing.T) {
	root := buildTree(t, "a.txt")

	procs := registry.NewProcessors()
	tr := &tracer{}
	tr.register(procs, "touch", registry.KindInline)

	cfg := &rules.Config{Rules: []rules.PatternRule{
		{Pattern: "[invalid", Rule: rules.Rule{Processors: []string{"touch"}}},
		ruleFor("a.txt", rules.Rule{Processors: []string{"touch"}}),
	}}

	ctx, err := New(cfg, procs, Options{}).Run(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"touch:a.txt"}, tr.trace)

	rec := ctx.Record([]string{"a.txt"})
	require.NotNil(t, rec)
	require.Len(t, rec.Errors, 1)
	assert.Contains(t, rec.Errors[0], "[invalid")
}

func TestRun_ReRegistrationNextRun(t *testing.T) {
	root := buildTree(t, "a.txt")

	procs := registry.NewProcessors()
	cfg := &rules.Config{Rules: []rules.PatternRule{
		ruleFor("a.txt", rules.Rule{Processors: []string{"late"}}),
	}}
	eng := New(cfg, procs, Options{})

	ctx, err := eng.Run(root)
	require.NoError(t, err)
	assert.Contains(t, ctx.Results[0].Error, "not registered")

	tr := &tracer{}
	tr.register(procs, "late", registry.KindInline)

	ctx, err = eng.Run(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"late:a.txt"}, tr.trace)
	assert.Empty(t, ctx.Results[0].Error)
}

func TestRun_CumulativeContext(t *testing.T) {
	root := buildTree(t, "a.txt")

	procs := registry.NewProcessors()
	tr := &tracer{}
	tr.register(procs, "touch", registry.KindInline)

	cfg := &rules.Config{Rules: []rules.PatternRule{
		ruleFor("a.txt", rules.Rule{Processors: []string{"touch"}}),
	}}

	shared := store.NewContext()
	eng := New(cfg, procs, Options{Context: shared})

	ctx1, err := eng.Run(root)
	require.NoError(t, err)
	assert.Same(t, shared, ctx1)

	ctx2, err := eng.Run(root)
	require.NoError(t, err)
	assert.Same(t, shared, ctx2)
	assert.Len(t, shared.Results, 2, "results accumulate across runs")
}

func TestRun_GlobalHookFaultIsNonFatal(t *testing.T) {
	root := buildTree(t, "a.txt")

	procs := registry.NewProcessors()
	tr := &tracer{}
	tr.register(procs, "touch", registry.KindInline)

	cfg := &rules.Config{
		Rules: []rules.PatternRule{
			ruleFor("a.txt", rules.Rule{Processors: []string{"touch"}}),
		},
		GlobalPreHook: "missing_hook",
	}

	ctx, err := New(cfg, procs, Options{}).Run(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"touch:a.txt"}, tr.trace)
	assert.Equal(t, "global_pre", ctx.Results[0].Phase)
	assert.Contains(t, ctx.Results[0].Error, "not registered")
}

func TestRun_RootErrors(t *testing.T) {
	procs := registry.NewProcessors()
	eng := New(&rules.Config{}, procs, Options{})

	t.Run("missing root", func(t *testing.T) {
		_, err := eng.Run(filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrRootNotFound))
	})

	t.Run("root is a file", func(t *testing.T) {
		root := buildTree(t, "file.txt")
		_, err := eng.Run(filepath.Join(root, "file.txt"))
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrRootNotFound))
	})
}

func TestRun_RecorderInjection(t *testing.T) {
	root := buildTree(t, "a.txt", "ignored.dat")

	procs := registry.NewProcessors()
	tr := &tracer{}
	tr.register(procs, "touch", registry.KindInline)
	tr.register(procs, "record_visit", registry.KindInline)

	cfg := &rules.Config{
		Rules: []rules.PatternRule{
			ruleFor("*.txt", rules.Rule{Processors: []string{"touch"}}),
		},
		EnableRecorders: true,
		RecorderNames:   rules.RecorderNames{Inline: "record_visit"},
	}

	_, err := New(cfg, procs, Options{}).Run(root)
	require.NoError(t, err)

	// the recorder runs only for nodes that matched a rule
	assert.Equal(t, []string{"touch:a.txt", "record_visit:a.txt"}, tr.trace)
}

func TestPlan(t *testing.T) {
	root := buildTree(t, "a.txt", "sub/", "sub/b.txt")

	procs := registry.NewProcessors()
	tr := &tracer{}
	tr.register(procs, "touch", registry.KindInline)
	tr.register(procs, "sweep", registry.KindPost)
	tr.register(procs, "announce", registry.KindPre)

	cfg := &rules.Config{
		Rules: []rules.PatternRule{
			ruleFor("**/*.txt", rules.Rule{Processors: []string{"touch"}}),
			ruleFor("*.txt", rules.Rule{Processors: []string{"touch"}}),
			ruleFor(".", rules.Rule{PostProcessors: []string{"sweep"}}),
			{Pattern: "[bad", Rule: rules.Rule{Processors: []string{"touch"}}},
		},
		GlobalPreHook: "announce",
	}

	plan, err := New(cfg, procs, Options{}).Plan(root)
	require.NoError(t, err)

	var got []string
	for _, step := range plan.Steps {
		got = append(got, step.Phase+":"+step.Path+":"+step.Processor)
	}
	assert.Equal(t, []string{
		"global_pre:.:announce",
		"inline:sub/b.txt:touch",
		"inline:a.txt:touch",
		"post:.:sweep",
	}, got)
	assert.Equal(t, 4, plan.TotalSteps)

	require.NotEmpty(t, plan.Faults)
	assert.Equal(t, "[bad", plan.Faults[0].Pattern)

	assert.Empty(t, tr.trace, "a plan invokes nothing")
}

func TestWalk_UnreadableDirSkipped(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	root := buildTree(t, "ok/", "ok/a.txt", "locked/", "locked/b.txt")
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { _ = os.Chmod(locked, 0755) })

	procs := registry.NewProcessors()
	tr := &tracer{}
	tr.register(procs, "touch", registry.KindInline)

	cfg := &rules.Config{Rules: []rules.PatternRule{
		ruleFor("**/*.txt", rules.Rule{Processors: []string{"touch"}}),
	}}

	_, err := New(cfg, procs, Options{}).Run(root)
	require.NoError(t, err)

	sort.Strings(tr.trace)
	assert.Equal(t, []string{"touch:ok/a.txt"}, tr.trace)
}
