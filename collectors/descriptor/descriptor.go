// Package descriptor loads plugin declarations from files so sites can add
// collectors without rebuilding. YAML and TOML are accepted; a descriptor
// without a name takes its file name.
package descriptor

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"diag-bundle/collectors"
	"diag-bundle/logging"
)

var log = logging.L("descriptor")

// ErrUnsupportedFormat is returned for files that are neither YAML nor TOML.
var ErrUnsupportedFormat = errors.New("unsupported descriptor format")

// Supported reports whether path has a descriptor extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".toml":
		return true
	}
	return false
}

// Parse decodes a descriptor. format is the file extension without the dot.
func Parse(data []byte, format string) (collectors.PluginConfig, error) {
	var cfg collectors.PluginConfig
	switch strings.ToLower(format) {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode yaml: %w", err)
		}
	case "toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return cfg, fmt.Errorf("decode toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("decode toml: unknown keys %v", undecoded)
		}
	default:
		return cfg, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return cfg, nil
}

// LoadFile reads and validates a single descriptor.
func LoadFile(path string) (*collectors.Plugin, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	ext := filepath.Ext(path)
	cfg, err := Parse(data, strings.TrimPrefix(ext, "."))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(path), ext)
	}

	p, err := collectors.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// LoadDir loads every descriptor in dir, in file name order. A bad file does
// not stop the others; all problems come back joined in the error.
func LoadDir(dir string) ([]*collectors.Plugin, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read descriptor dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var plugins []*collectors.Plugin
	var errs []error
	for _, n := range names {
		p, err := LoadFile(filepath.Join(dir, n))
		if err != nil {
			log.Warn("skipping plugin descriptor", "file", n, logging.KeyError, err)
			errs = append(errs, err)
			continue
		}
		plugins = append(plugins, p)
	}
	return plugins, errors.Join(errs...)
}
