package engine

import (
	"fmt"

	"github.com/chuang453/batch-process/pkg/errors"
	"github.com/chuang453/batch-process/pkg/rules"
	"github.com/chuang453/batch-process/pkg/store"
)

// runPhase executes one bucket against node, in the order the resolver
// left it. Each invocation is fault isolated: a failing or missing
// processor is recorded and the next one still runs. The only non-nil
// return is errCancelled.
func (e *Engine) runPhase(node store.Node, phase rules.Phase, bucket []rules.Entry) error {
	for _, entry := range bucket {
		if e.cancelled() {
			return errCancelled
		}

		e.progress.emit(node.RelPath, fmt.Sprintf("%s %s → %s (%s)",
			node.Kind(), node.Name, entry.Processor, phase))

		result, err := e.invoke(entry.Processor, node, entry.Config)
		e.record(node, string(phase), entry.Processor, entry.Config, result, err)
	}
	return nil
}

// invoke looks up and calls one processor, converting panics into errors
// at the boundary.
func (e *Engine) invoke(name string, node store.Node, config map[string]interface{}) (result interface{}, err error) {
	proc, getErr := e.procs.Get(name)
	if getErr != nil {
		return nil, errors.Wrapf(getErr, errors.ErrProcessorNotFound,
			"processor %q is not registered", name)
	}
	if proc.Fn == nil {
		return nil, errors.Newf(errors.ErrProcessorNotFound,
			"processor %q has no implementation", name)
	}

	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error().
				Interface("panic", rec).
				Str("processor", name).
				Str("node", node.RelPath).
				Msg("processor panicked")
			err = errors.Newf(errors.ErrProcessorExecute,
				"processor %q panicked: %v", name, rec)
			result = nil
		}
	}()

	return proc.Fn(node, e.ctx, config)
}

// record appends the invocation outcome to both the flat results
// sequence and the node's execution record.
func (e *Engine) record(node store.Node, phase, processor string, config map[string]interface{}, result interface{}, err error) {
	entry := store.ResultEntry{
		Phase:     phase,
		Path:      node.RelPath,
		Kind:      node.Kind(),
		Processor: processor,
		Config:    config,
		Result:    result,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	e.ctx.AddResult(entry)

	rec := e.ensureRecord(node)
	rec.Processors = append(rec.Processors, processor)
	rec.Configs = append(rec.Configs, config)
	if err != nil {
		rec.Outcomes = append(rec.Outcomes, store.OutcomeFailed)
		rec.Errors = append(rec.Errors, err.Error())
	} else {
		rec.Outcomes = append(rec.Outcomes, store.OutcomeSucceed)
	}
}

// recordFaults notes unapplicable rules on the node's execution record
func (e *Engine) recordFaults(node store.Node, faults []rules.Fault) {
	if len(faults) == 0 {
		return
	}
	rec := e.ensureRecord(node)
	for _, f := range faults {
		e.logger.Warn().
			Str("pattern", f.Pattern).
			Str("node", node.RelPath).
			Err(f.Err).
			Msg("rule not applicable to node")
		rec.Errors = append(rec.Errors, fmt.Sprintf("rule %q: %v", f.Pattern, f.Err))
	}
}

// ensureRecord returns the node's execution record, creating it with the
// next sequence number on first touch. Sequence numbers count matched
// nodes in visit order, starting at 1.
func (e *Engine) ensureRecord(node store.Node) *store.ExecutionRecord {
	key := node.MetadataKey()
	if rec := e.ctx.Record(key); rec != nil {
		return rec
	}
	e.seq++
	rec := &store.ExecutionRecord{Sequence: e.seq}
	if err := e.ctx.SetMetadata(key, rec); err != nil {
		// A conflicting metadata entry means a processor wrote over the
		// engine's namespace; keep the record usable without persisting.
		e.logger.Warn().Err(err).Str("node", node.RelPath).Msg("cannot store execution record")
	}
	return rec
}

// runGlobalHook executes a configured global hook against the root node.
// Hook faults are recorded and never abort the run.
func (e *Engine) runGlobalHook(name, phase string, config map[string]interface{}, root store.Node) {
	if name == "" {
		return
	}

	e.progress.emit(root.RelPath, fmt.Sprintf("%s %s → %s (%s)",
		root.Kind(), root.Name, name, phase))

	result, err := e.invoke(name, root, config)
	entry := store.ResultEntry{
		Phase:     phase,
		Path:      root.RelPath,
		Kind:      root.Kind(),
		Processor: name,
		Config:    config,
		Result:    result,
	}
	if err != nil {
		entry.Error = err.Error()
		e.logger.Warn().Err(err).Str("hook", name).Str("phase", phase).Msg("global hook failed")
	}
	e.ctx.AddResult(entry)
}

// hookSteps counts the progress steps the configured global hooks take
func hookSteps(cfg *rules.Config) int {
	n := 0
	if cfg.GlobalPreHook != "" {
		n++
	}
	if cfg.GlobalPostHook != "" {
		n++
	}
	return n
}
