package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file searched for by Resolve.
const FileName = "bernard.yaml"

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads a YAML configuration file, expands environment variables,
// and decodes it over Default(). Relative memory paths are resolved.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: expanding variables in %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.finalize()
	return cfg, nil
}

// LoadOrDefault loads path, or the first file found by Resolve when path is
// empty. With no file anywhere it returns Default() and an empty path.
func LoadOrDefault(path string) (*Config, string, error) {
	if path == "" {
		resolved, err := Resolve()
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			cfg.finalize()
			return cfg, "", nil
		}
		if err != nil {
			return nil, "", err
		}
		path = resolved
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// Resolve searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/bernard/bernard.yaml (or
// ~/.config/bernard/bernard.yaml) then ./bernard.yaml. It returns an error
// wrapping fs.ErrNotExist when none exists.
func Resolve() (string, error) {
	candidates := searchPaths()
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("config: no configuration file found (searched: %v): %w", candidates, fs.ErrNotExist)
}

func searchPaths() []string {
	var candidates []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "bernard", FileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "bernard", FileName))
	}
	return append(candidates, FileName)
}

func defaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "bernard")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bernard"
	}
	return filepath.Join(home, ".bernard")
}

// DefaultModelDir is the directory under data_dir holding the default
// sentence-embedding model (model.onnx and vocab.txt).
const DefaultModelDir = "models/all-MiniLM-L6-v2"

// finalize derives dependent paths.
func (c *Config) finalize() {
	if c.Memory.Dir == "" && c.DataDir != "" {
		c.Memory.Dir = filepath.Join(c.DataDir, "memory")
	}
	if c.Embedding.Backend == EmbeddingONNX && c.DataDir != "" {
		models := filepath.Join(c.DataDir, filepath.FromSlash(DefaultModelDir))
		if c.Embedding.ModelPath == "" {
			c.Embedding.ModelPath = filepath.Join(models, "model.onnx")
		}
		if c.Embedding.TokenizerPath == "" {
			c.Embedding.TokenizerPath = filepath.Join(models, "vocab.txt")
		}
	}
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in raw YAML bytes.
// Returns an error listing all unresolved variables (no default, no env value).
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])
		hasDefault := len(subs) > 2 && subs[2] != nil

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if hasDefault {
			return subs[2]
		}

		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return result, errors.Join(errs...)
}
