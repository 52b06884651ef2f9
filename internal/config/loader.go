package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads an rc document from the provided path. A missing file is not
// an error; defaults are returned instead.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve rc path: %w", err)
	}

	if _, err := os.Stat(absPath); errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}

	doc, _, err := resolveIncludes(absPath)
	if err != nil {
		return nil, err
	}
	if err := validateAgainstSchema(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}

	raw, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: re-encode merged document: %w", absPath, err)
	}
	cfg, err := decodeStrict(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}

	cfg.Session.HistoryFile = ExpandHome(cfg.Session.HistoryFile)
	if cfg.Logging != nil {
		cfg.Logging.File = ExpandHome(cfg.Logging.File)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return cfg, nil
}

// Parse reads an rc document from a reader. Includes are not resolved;
// they require a file path.
func Parse(r io.Reader) (*Config, error) {
	cfg, err := decodeStrict(r)
	if err != nil {
		return nil, err
	}
	if len(cfg.Includes) > 0 {
		return nil, fmt.Errorf("includes require loading from a file path")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeStrict(r io.Reader) (*Config, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var cfg Config
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &cfg, nil
}

// ExpandHome resolves a leading ~ against the user's home directory. Paths
// that do not start with ~, and lookups that fail, pass through unchanged.
func ExpandHome(path string) string {
	if path == "~" || len(path) > 1 && path[0] == '~' && path[1] == os.PathSeparator {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
