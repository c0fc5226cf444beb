package engine

import (
	"github.com/chuang453/batch-process/pkg/rules"
	"github.com/chuang453/batch-process/pkg/store"
)

// PlanStep is one invocation the engine would perform, in execution
// order.
type PlanStep struct {
	Path      string                 `yaml:"path" json:"path"`
	Kind      string                 `yaml:"kind" json:"kind"`
	Phase     string                 `yaml:"phase" json:"phase"`
	Processor string                 `yaml:"processor" json:"processor"`
	Priority  int                    `yaml:"priority,omitempty" json:"priority,omitempty"`
	Config    map[string]interface{} `yaml:"config,omitempty" json:"config,omitempty"`
}

// PlanFault is a rule that could not be applied to a node the plan
// visited.
type PlanFault struct {
	Path    string `yaml:"path" json:"path"`
	Pattern string `yaml:"pattern" json:"pattern"`
	Error   string `yaml:"error" json:"error"`
}

// Plan is the full dry-run result: what a Run over the same tree and
// configuration would execute, without executing anything.
type Plan struct {
	Root       string      `yaml:"root" json:"root"`
	TotalSteps int         `yaml:"total_steps" json:"total_steps"`
	Steps      []PlanStep  `yaml:"steps" json:"steps"`
	Faults     []PlanFault `yaml:"faults,omitempty" json:"faults,omitempty"`
}

// Plan resolves the whole tree without invoking any processor. Global
// hooks appear as steps against the root node, in their run positions.
func (e *Engine) Plan(root string) (*Plan, error) {
	rootNode, err := e.begin(root)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Root: rootNode.Path}

	if e.cfg.GlobalPreHook != "" {
		plan.Steps = append(plan.Steps, PlanStep{
			Path:      rootNode.RelPath,
			Kind:      rootNode.Kind(),
			Phase:     "global_pre",
			Processor: e.cfg.GlobalPreHook,
			Config:    e.cfg.GlobalPreConfig,
		})
	}

	pending := make(map[string]rules.Buckets)
	err = e.walk(rootNode.Path, visitor{
		enter: func(node store.Node) error {
			b := e.resolver.Resolve(node)
			pending[node.RelPath] = b
			for _, f := range b.Faults {
				plan.Faults = append(plan.Faults, PlanFault{
					Path:    node.RelPath,
					Pattern: f.Pattern,
					Error:   f.Err.Error(),
				})
			}
			plan.appendSteps(node, rules.PhasePre, b.Pre)
			plan.appendSteps(node, rules.PhaseInline, b.Inline)
			return nil
		},
		exit: func(node store.Node) error {
			b := pending[node.RelPath]
			delete(pending, node.RelPath)
			plan.appendSteps(node, rules.PhasePost, b.Post)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	if e.cfg.GlobalPostHook != "" {
		plan.Steps = append(plan.Steps, PlanStep{
			Path:      rootNode.RelPath,
			Kind:      rootNode.Kind(),
			Phase:     "global_post",
			Processor: e.cfg.GlobalPostHook,
			Config:    e.cfg.GlobalPostConfig,
		})
	}

	plan.TotalSteps = len(plan.Steps)
	return plan, nil
}

func (p *Plan) appendSteps(node store.Node, phase rules.Phase, bucket []rules.Entry) {
	for _, entry := range bucket {
		p.Steps = append(p.Steps, PlanStep{
			Path:      node.RelPath,
			Kind:      node.Kind(),
			Phase:     string(phase),
			Processor: entry.Processor,
			Priority:  entry.Priority,
			Config:    entry.Config,
		})
	}
}
