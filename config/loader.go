package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mensylisir/xmupgrade/common"
	"github.com/mensylisir/xmupgrade/file"
)

// Loader reads a config file. YAML and TOML are chosen by extension.
type Loader struct {
	filePath string
}

// NewLoader creates a loader for filePath. An empty path loads defaults.
func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

// Load reads, decodes, defaults and validates the config. Any error is fatal
// for the run.
func (l *Loader) Load() (*Config, error) {
	if l.filePath == "" {
		return Default(), nil
	}
	content, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file '%s'", l.filePath)
	}

	cfg, err := Parse(content, formatOf(l.filePath))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load config file '%s'", l.filePath)
	}
	cfg.Path = l.filePath
	return cfg, nil
}

// Format is a config file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func formatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes content, then applies defaults and validation.
func Parse(content []byte, format Format) (*Config, error) {
	cfg := &Config{}
	if len(bytes.TrimSpace(content)) > 0 {
		var err error
		switch format {
		case FormatTOML:
			err = decodeTOML(content, cfg)
		default:
			err = decodeYAML(content, cfg)
		}
		if err != nil {
			return nil, err
		}
	}
	SetDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(content []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrap(err, "failed to unmarshal config YAML")
	}
	return nil
}

type tomlCommandTables struct {
	PreCommands  map[string]string `toml:"pre_commands"`
	Commands     map[string]string `toml:"commands"`
	PostCommands map[string]string `toml:"post_commands"`
}

func decodeTOML(content []byte, cfg *Config) error {
	if err := toml.Unmarshal(content, cfg); err != nil {
		return errors.Wrap(err, "failed to unmarshal config TOML")
	}
	var tables tomlCommandTables
	if err := toml.Unmarshal(content, &tables); err != nil {
		return errors.Wrap(err, "failed to unmarshal command tables")
	}
	order, err := tomlKeyOrder(content, "pre_commands", "commands", "post_commands")
	if err != nil {
		return err
	}
	if cfg.PreCommands, err = orderedCommands("pre_commands", tables.PreCommands, order["pre_commands"]); err != nil {
		return err
	}
	if cfg.Commands, err = orderedCommands("commands", tables.Commands, order["commands"]); err != nil {
		return err
	}
	cfg.PostCommands, err = orderedCommands("post_commands", tables.PostCommands, order["post_commands"])
	return err
}

// Discover finds the config file to use. An explicit path must exist. The
// XMUPGRADE_CONFIG variable comes next, then the user config directories.
// An empty result means no file was found and defaults apply.
func Discover(explicit string) (string, error) {
	if explicit != "" {
		if ok, err := file.PathExists(explicit); err != nil || !ok {
			return "", errors.Errorf("config file '%s' does not exist", explicit)
		}
		return explicit, nil
	}
	if env := os.Getenv(common.ConfigEnv); env != "" {
		if ok, _ := file.PathExists(env); !ok {
			return "", errors.Errorf("config file '%s' from %s does not exist", env, common.ConfigEnv)
		}
		return env, nil
	}
	return file.FirstExisting(candidatePaths()...), nil
}

func candidatePaths() []string {
	var dirs []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, xdg)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, dir)
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config"))
	}

	var paths []string
	seen := map[string]bool{}
	for _, dir := range dirs {
		if seen[dir] {
			continue
		}
		seen[dir] = true
		for _, name := range []string{"config.yaml", "config.yml", "config.toml"} {
			paths = append(paths, filepath.Join(dir, common.AppName, name))
		}
	}
	return paths
}
