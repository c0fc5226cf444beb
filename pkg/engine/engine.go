// Package engine drives a processing run: it walks the tree rooted at a
// given directory, resolves each node's phase buckets against the
// configured rules, and executes the matched processors with fault
// isolation, progress reporting and cooperative cancellation.
//
// Phase ordering follows the enter/exit discipline: a node's pre and
// inline buckets run when the node is entered, its post bucket runs only
// after every descendant has been fully processed.
package engine

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/chuang453/batch-process/pkg/errors"
	"github.com/chuang453/batch-process/pkg/logging"
	"github.com/chuang453/batch-process/pkg/registry"
	"github.com/chuang453/batch-process/pkg/rules"
	"github.com/chuang453/batch-process/pkg/store"
)

// errCancelled propagates a cancellation request out of the traversal.
// It never escapes Run.
var errCancelled = errors.New(errors.ErrInternal, "run cancelled")

// Options tunes a single Engine. The zero value runs with the keep-all
// policy, no progress sink and no cancellation.
type Options struct {
	// Policy selects how overlapping rules combine, rules.PolicyKeepAll
	// when empty.
	Policy rules.Policy

	// Progress, when set, receives one event per processor invocation.
	Progress ProgressFunc

	// Cancel is polled before each node resolution and before each
	// invocation. Use FromContext to derive one from a context.Context.
	Cancel CancelFunc

	// Context, when set, is reused so state accumulates across runs.
	// Otherwise every Run starts from an empty one.
	Context *store.Context
}

// Engine executes processing runs over a rule configuration and a
// processor registry. Processor lookups happen at invocation time, so
// registrations made between runs are picked up by the next Run.
type Engine struct {
	cfg      *rules.Config
	procs    registry.Processors
	resolver *rules.Resolver
	opts     Options
	logger   zerolog.Logger

	// per-run state
	ctx      *store.Context
	progress *reporter
	seq      int
	pending  map[string]rules.Buckets
}

// New creates an engine for cfg dispatching into procs
func New(cfg *rules.Config, procs registry.Processors, opts Options) *Engine {
	return &Engine{
		cfg:      cfg,
		procs:    procs,
		resolver: rules.NewResolver(cfg, procs, opts.Policy),
		opts:     opts,
		logger:   logging.GetLogger("engine"),
	}
}

// Run processes the tree rooted at root and returns the context holding
// everything the run produced. The only fatal errors are an unusable
// root; processor failures, rule faults and hook failures are recorded
// in the context and never abort the run. A cancelled run returns the
// context as of the last completed invocation.
func (e *Engine) Run(root string) (*store.Context, error) {
	rootNode, err := e.begin(root)
	if err != nil {
		return nil, err
	}

	total, err := e.countSteps(rootNode.Path)
	if err != nil {
		return nil, err
	}
	e.progress = newReporter(e.opts.Progress, total)
	e.seq = 0
	e.pending = make(map[string]rules.Buckets)

	e.logger.Info().
		Str("root", rootNode.Path).
		Int("total_steps", total).
		Msg("run starting")

	if e.cancelled() {
		return e.ctx, nil
	}
	e.runGlobalHook(e.cfg.GlobalPreHook, "global_pre", e.cfg.GlobalPreConfig, rootNode)

	err = e.walk(rootNode.Path, visitor{
		enter: func(node store.Node) error {
			if e.cancelled() {
				return errCancelled
			}
			b := e.resolver.Resolve(node)
			e.pending[node.RelPath] = b
			e.recordFaults(node, b.Faults)
			if !b.Empty() {
				e.ensureRecord(node)
			}
			if err := e.runPhase(node, rules.PhasePre, b.Pre); err != nil {
				return err
			}
			return e.runPhase(node, rules.PhaseInline, b.Inline)
		},
		exit: func(node store.Node) error {
			b := e.pending[node.RelPath]
			delete(e.pending, node.RelPath)
			return e.runPhase(node, rules.PhasePost, b.Post)
		},
	})
	if err == errCancelled {
		e.logger.Info().Str("root", rootNode.Path).Msg("run cancelled")
		return e.ctx, nil
	}

	e.runGlobalHook(e.cfg.GlobalPostHook, "global_post", e.cfg.GlobalPostConfig, rootNode)

	e.logger.Info().
		Str("root", rootNode.Path).
		Int("results", len(e.ctx.Results)).
		Msg("run finished")
	return e.ctx, nil
}

// begin validates root and prepares the run context
func (e *Engine) begin(root string) (store.Node, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return store.Node{}, errors.Wrapf(err, errors.ErrRootNotFound, "cannot resolve root %s", root)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return store.Node{}, errors.Wrapf(err, errors.ErrRootNotFound, "root %s is not accessible", root)
	}
	if !info.IsDir() {
		return store.Node{}, errors.Newf(errors.ErrRootNotFound, "root %s is not a directory", root)
	}

	e.ctx = e.opts.Context
	if e.ctx == nil {
		e.ctx = store.NewContext()
	}
	e.ctx.RootPath = abs

	return store.Node{
		Path:    abs,
		RelPath: ".",
		Name:    filepath.Base(abs),
		IsDir:   true,
	}, nil
}

// countSteps computes the fixed step total with a dry traversal: every
// bucket entry is one step, plus one per configured global hook
func (e *Engine) countSteps(root string) (int, error) {
	total := hookSteps(e.cfg)
	err := e.walk(root, visitor{
		enter: func(node store.Node) error {
			b := e.resolver.Resolve(node)
			total += b.Total()
			return nil
		},
		exit: func(store.Node) error { return nil },
	})
	return total, err
}

func (e *Engine) cancelled() bool {
	return e.opts.Cancel != nil && e.opts.Cancel()
}
