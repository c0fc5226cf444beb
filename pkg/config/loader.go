package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/chuang453/batch-process/pkg/errors"
	"github.com/chuang453/batch-process/pkg/logging"
	"github.com/chuang453/batch-process/pkg/rules"
)

// Load reads a dispatch configuration file. YAML and JSON files use the
// mapping form (pattern string → rule body plus reserved keys); TOML files
// use the [[rules]] list form. Rule declaration order is preserved in all
// formats, since it defines execution order between equal-priority rules.
func Load(path string) (*rules.Config, error) {
	logger := logging.GetLogger("config.loader")

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigLoad, "cannot read config %s", path)
		}
		cfg, err := parseMapping(data)
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("path", path).Int("rules", len(cfg.Rules)).Msg("Loaded config")
		return cfg, nil

	case ".toml":
		cfg, err := parseTOML(path)
		if err != nil {
			return nil, err
		}
		logger.Debug().Str("path", path).Int("rules", len(cfg.Rules)).Msg("Loaded config")
		return cfg, nil

	default:
		return nil, errors.Newf(errors.ErrConfigLoad,
			"unsupported config format %q (use .yaml, .yml, .json or .toml)", filepath.Ext(path))
	}
}

// parseMapping decodes the pattern-keyed mapping form. JSON parses here
// too: every JSON document is valid YAML, and the node walk keeps key
// order either way.
func parseMapping(data []byte) (*rules.Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "cannot parse config")
	}

	cfg := &rules.Config{}
	if len(doc.Content) == 0 {
		return cfg, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New(errors.ErrConfigInvalid, "top-level config must be a mapping")
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		val := root.Content[i+1]

		if rules.IsReservedKey(key) {
			if err := decodeReserved(cfg, key, val); err != nil {
				return nil, err
			}
			continue
		}

		var rule rules.Rule
		if err := val.Decode(&rule); err != nil {
			// Kept with the decode error so the malformation is
			// reported for exactly the nodes this pattern matches.
			cfg.Rules = append(cfg.Rules, rules.PatternRule{
				Pattern: key,
				Err: errors.Wrapf(err, errors.ErrRuleInvalid,
					"rule %q has a malformed body", key),
			})
			continue
		}
		cfg.Rules = append(cfg.Rules, rules.PatternRule{Pattern: key, Rule: rule})
	}

	return cfg, nil
}

func decodeReserved(cfg *rules.Config, key string, val *yaml.Node) error {
	var err error
	switch key {
	case rules.KeyGlobalPreHook:
		err = val.Decode(&cfg.GlobalPreHook)
	case rules.KeyGlobalPostHook:
		err = val.Decode(&cfg.GlobalPostHook)
	case rules.KeyGlobalPreConfig:
		err = val.Decode(&cfg.GlobalPreConfig)
	case rules.KeyGlobalPostConfig:
		err = val.Decode(&cfg.GlobalPostConfig)
	case rules.KeyEnableRecorders:
		err = val.Decode(&cfg.EnableRecorders)
	case rules.KeyRecorderNames:
		err = val.Decode(&cfg.RecorderNames)
	}
	if err != nil {
		return errors.Wrapf(err, errors.ErrConfigInvalid, "invalid value for %q", key)
	}
	return nil
}

// parseTOML decodes the [[rules]] list form through koanf, the same layered
// loader the settings use
func parseTOML(path string) (*rules.Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "cannot parse config %s", path)
	}

	cfg := &rules.Config{
		GlobalPreHook:   k.String(rules.KeyGlobalPreHook),
		GlobalPostHook:  k.String(rules.KeyGlobalPostHook),
		EnableRecorders: k.Bool(rules.KeyEnableRecorders),
	}

	if m, ok := k.Get(rules.KeyGlobalPreConfig).(map[string]interface{}); ok {
		cfg.GlobalPreConfig = m
	}
	if m, ok := k.Get(rules.KeyGlobalPostConfig).(map[string]interface{}); ok {
		cfg.GlobalPostConfig = m
	}
	if err := k.Unmarshal(rules.KeyRecorderNames, &cfg.RecorderNames); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigInvalid, "invalid builtin_recorder_names")
	}

	var prs []rules.PatternRule
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &prs,
			WeaklyTypedInput: true,
		},
	}
	if err := k.UnmarshalWithConf("rules", nil, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigInvalid, "invalid rules list")
	}
	for i, pr := range prs {
		if pr.Pattern == "" {
			return nil, errors.Newf(errors.ErrConfigInvalid, "rule %d has no pattern", i)
		}
	}
	cfg.Rules = prs

	return cfg, nil
}
