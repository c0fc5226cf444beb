package config

import (
	"os"
	"path/filepath"
	"strings"

	gotoml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/chuang453/batch-process/pkg/errors"
	"github.com/chuang453/batch-process/pkg/rules"
)

const yamlTemplate = `# batchproc configuration template.
# Pattern keys map glob patterns to rules; reserved keys configure the run.

global_pre_hook: open_report
global_pre_config:
  title: Batch run

"*.txt":
  priority: 5
  processors:
    - backup
  config:
    backup_dir: ./backup

"**/*.log":
  processors:
    - analyze_log

"data/":
  pre_processors:
    - open_section
  post_processors:
    - summarize_section

global_post_hook: close_report
enable_builtin_recorders: true
`

const jsonTemplate = `{
  "global_pre_hook": "open_report",
  "global_pre_config": {"title": "Batch run"},
  "*.txt": {
    "priority": 5,
    "processors": ["backup"],
    "config": {"backup_dir": "./backup"}
  },
  "**/*.log": {"processors": ["analyze_log"]},
  "data/": {
    "pre_processors": ["open_section"],
    "post_processors": ["summarize_section"]
  },
  "global_post_hook": "close_report",
  "enable_builtin_recorders": true
}
`

const tomlTemplate = `# batchproc configuration template (list form).

global_pre_hook = "open_report"
global_post_hook = "close_report"
enable_builtin_recorders = true

[global_pre_config]
title = "Batch run"

[[rules]]
pattern = "*.txt"
priority = 5
processors = ["backup"]

[rules.config]
backup_dir = "./backup"

[[rules]]
pattern = "**/*.log"
processors = ["analyze_log"]

[[rules]]
pattern = "data/"
pre_processors = ["open_section"]
post_processors = ["summarize_section"]
`

// WriteTemplate writes a starter configuration to path, choosing the format
// from the extension
func WriteTemplate(path string) error {
	var content string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		content = yamlTemplate
	case ".json":
		content = jsonTemplate
	case ".toml":
		content = tomlTemplate
	default:
		return errors.Newf(errors.ErrConfigLoad,
			"unsupported template format %q (use .yaml, .yml, .json or .toml)", filepath.Ext(path))
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.Wrapf(err, errors.ErrConfigLoad, "cannot write template %s", path)
	}
	return nil
}

// Save writes cfg to path in the mapping form (YAML) or list form (TOML)
func Save(cfg *rules.Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		node, err := mappingNode(cfg)
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(node)
		if err != nil {
			return errors.Wrap(err, errors.ErrInternal, "cannot marshal config")
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return errors.Wrapf(err, errors.ErrConfigLoad, "cannot write config %s", path)
		}
		return nil

	case ".toml":
		data, err := gotoml.Marshal(tomlConfig(cfg))
		if err != nil {
			return errors.Wrap(err, errors.ErrInternal, "cannot marshal config")
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return errors.Wrapf(err, errors.ErrConfigLoad, "cannot write config %s", path)
		}
		return nil

	default:
		return errors.Newf(errors.ErrConfigLoad,
			"unsupported save format %q (use .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

// mappingNode builds the ordered pattern-keyed mapping for cfg
func mappingNode(cfg *rules.Config) (*yaml.Node, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	appendKV := func(key string, value interface{}) error {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
		valNode := &yaml.Node{}
		if err := valNode.Encode(value); err != nil {
			return errors.Wrapf(err, errors.ErrInternal, "cannot encode %q", key)
		}
		root.Content = append(root.Content, keyNode, valNode)
		return nil
	}

	if cfg.GlobalPreHook != "" {
		if err := appendKV(rules.KeyGlobalPreHook, cfg.GlobalPreHook); err != nil {
			return nil, err
		}
	}
	if len(cfg.GlobalPreConfig) > 0 {
		if err := appendKV(rules.KeyGlobalPreConfig, cfg.GlobalPreConfig); err != nil {
			return nil, err
		}
	}
	for _, pr := range cfg.Rules {
		if err := appendKV(pr.Pattern, pr.Rule); err != nil {
			return nil, err
		}
	}
	if cfg.GlobalPostHook != "" {
		if err := appendKV(rules.KeyGlobalPostHook, cfg.GlobalPostHook); err != nil {
			return nil, err
		}
	}
	if len(cfg.GlobalPostConfig) > 0 {
		if err := appendKV(rules.KeyGlobalPostConfig, cfg.GlobalPostConfig); err != nil {
			return nil, err
		}
	}
	if cfg.EnableRecorders {
		if err := appendKV(rules.KeyEnableRecorders, cfg.EnableRecorders); err != nil {
			return nil, err
		}
	}
	if cfg.RecorderNames != (rules.RecorderNames{}) {
		if err := appendKV(rules.KeyRecorderNames, cfg.RecorderNames); err != nil {
			return nil, err
		}
	}
	return root, nil
}

type tomlRule struct {
	Pattern        string                 `toml:"pattern"`
	Priority       int                    `toml:"priority,omitempty"`
	Config         map[string]interface{} `toml:"config,omitempty"`
	Processors     []string               `toml:"processors,omitempty"`
	PreProcessors  []string               `toml:"pre_processors,omitempty"`
	PostProcessors []string               `toml:"post_processors,omitempty"`
	MustExecute    *bool                  `toml:"must_execute,omitempty"`
}

type tomlFile struct {
	GlobalPreHook    string                 `toml:"global_pre_hook,omitempty"`
	GlobalPostHook   string                 `toml:"global_post_hook,omitempty"`
	EnableRecorders  bool                   `toml:"enable_builtin_recorders,omitempty"`
	GlobalPreConfig  map[string]interface{} `toml:"global_pre_config,omitempty"`
	GlobalPostConfig map[string]interface{} `toml:"global_post_config,omitempty"`
	Rules            []tomlRule             `toml:"rules,omitempty"`
}

func tomlConfig(cfg *rules.Config) tomlFile {
	out := tomlFile{
		GlobalPreHook:    cfg.GlobalPreHook,
		GlobalPostHook:   cfg.GlobalPostHook,
		EnableRecorders:  cfg.EnableRecorders,
		GlobalPreConfig:  cfg.GlobalPreConfig,
		GlobalPostConfig: cfg.GlobalPostConfig,
	}
	for _, pr := range cfg.Rules {
		out.Rules = append(out.Rules, tomlRule{
			Pattern:        pr.Pattern,
			Priority:       pr.Priority,
			Config:         pr.Config,
			Processors:     pr.Processors,
			PreProcessors:  pr.PreProcessors,
			PostProcessors: pr.PostProcessors,
			MustExecute:    pr.MustExecute,
		})
	}
	return out
}
