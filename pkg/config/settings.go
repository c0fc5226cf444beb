package config

import (
	_ "embed"
	"errors"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	procerrors "github.com/chuang453/batch-process/pkg/errors"
)

//go:embed embedded/defaults.toml
var defaultSettings []byte

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// Settings are host-level defaults, distinct from the per-run dispatch
// configuration file
type Settings struct {
	// Policy is the default resolution policy name.
	Policy string `koanf:"policy"`

	// HistoryDir is where the JSONL history recorder writes. Empty
	// selects the XDG state directory.
	HistoryDir string `koanf:"history_dir"`
}

// LoadSettings layers the embedded defaults under BATCHPROC_* environment
// overrides
func LoadSettings() (*Settings, error) {
	k := koanf.New(".")

	// 1. Hard fallbacks, in case the embedded file ever loses a key
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"policy": "keep-all",
	}, "."), nil); err != nil {
		return nil, procerrors.Wrap(err, procerrors.ErrConfigLoad, "failed to load base settings")
	}

	// 2. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultSettings}, toml.Parser()); err != nil {
		return nil, procerrors.Wrap(err, procerrors.ErrConfigLoad, "failed to load embedded defaults")
	}

	// 3. Environment overrides: BATCHPROC_HISTORY_DIR → history_dir
	if err := k.Load(env.Provider("BATCHPROC_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "BATCHPROC_"))
	}), nil); err != nil {
		return nil, procerrors.Wrap(err, procerrors.ErrConfigLoad, "failed to load environment settings")
	}

	var s Settings
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &s,
			WeaklyTypedInput: true,
		},
	}
	if err := k.UnmarshalWithConf("", nil, unmarshalConf); err != nil {
		return nil, procerrors.Wrap(err, procerrors.ErrConfigParse, "failed to decode settings")
	}
	return &s, nil
}
