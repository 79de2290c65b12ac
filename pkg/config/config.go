// Package config loads Zeal project configuration from zeal.yaml files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/thomasrohde/zeal/pkg/builtins"
	"github.com/thomasrohde/zeal/pkg/diagnostics"
	"github.com/thomasrohde/zeal/pkg/evaluator"
)

// LanguageVersion is the Zeal language version implemented by this module.
// A config file's `requires` field is checked against it.
const LanguageVersion = "v0.3.0"

// FileName is the project config file looked up in the working directory.
const FileName = "zeal.yaml"

// Config holds resolved interpreter settings.
type Config struct {
	// Source is the file the settings came from, or "" for defaults.
	Source        string
	Overflow      evaluator.OverflowMode
	MaxCallDepth  int
	MaxIterations int64
	PrintStyle    builtins.Style
	Parallelism   int
}

// File represents the YAML structure of a config file.
type File struct {
	Requires      string `yaml:"requires,omitempty"`
	Overflow      string `yaml:"overflow,omitempty"`
	MaxCallDepth  int    `yaml:"max_call_depth,omitempty"`
	MaxIterations int64  `yaml:"max_iterations,omitempty"`
	PrintStyle    string `yaml:"print_style,omitempty"`
	Parallelism   int    `yaml:"parallelism,omitempty"`
}

// Error reports an unreadable or invalid config file.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "config: " + e.Err.Error()
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Diagnostic converts the error to an E_CONFIG diagnostic.
func (e *Error) Diagnostic() diagnostics.Diagnostic {
	return diagnostics.MakeDiag(diagnostics.EConfig, e.Error(), nil, "see zeal.yaml fields: requires, overflow, max_call_depth, max_iterations, print_style, parallelism")
}

// Default returns the settings used when no config file is found.
func Default() *Config {
	return &Config{
		Overflow:     evaluator.OverflowFail,
		MaxCallDepth: evaluator.DefaultMaxCallDepth,
		PrintStyle:   builtins.StylePlain,
		Parallelism:  goruntime.GOMAXPROCS(0),
	}
}

// Load resolves configuration.
// Precedence: explicit path → project (<projectDir>/zeal.yaml) → user
// (~/.zeal/config.yaml) → defaults. An explicit path must exist; the project
// and user files are skipped when absent.
func Load(explicit, projectDir string) (*Config, error) {
	if explicit != "" {
		return LoadFile(explicit)
	}

	candidates := []string{filepath.Join(projectDir, FileName)}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".zeal", "config.yaml"))
	}

	for _, path := range candidates {
		cfg, err := LoadFile(path)
		if err == nil {
			return cfg, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return nil, err
	}
	return Default(), nil
}

// LoadFile reads and validates a single config file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return Parse(data, path)
}

// Parse decodes config YAML. Unknown fields are rejected. An empty document
// yields the defaults.
func Parse(data []byte, source string) (*Config, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var f File
	if err := decoder.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, &Error{Path: source, Err: err}
	}

	cfg, err := f.resolve()
	if err != nil {
		return nil, &Error{Path: source, Err: err}
	}
	cfg.Source = source
	return cfg, nil
}

func (f *File) resolve() (*Config, error) {
	cfg := Default()

	if f.Requires != "" {
		if err := CheckRequires(f.Requires); err != nil {
			return nil, err
		}
	}

	mode, err := evaluator.ParseOverflowMode(f.Overflow)
	if err != nil {
		return nil, err
	}
	cfg.Overflow = mode

	style, err := builtins.ParseStyle(f.PrintStyle)
	if err != nil {
		return nil, err
	}
	cfg.PrintStyle = style

	switch {
	case f.MaxCallDepth < 0:
		return nil, fmt.Errorf("max_call_depth must not be negative, got %d", f.MaxCallDepth)
	case f.MaxCallDepth > 0:
		cfg.MaxCallDepth = f.MaxCallDepth
	}

	if f.MaxIterations < 0 {
		return nil, fmt.Errorf("max_iterations must not be negative, got %d", f.MaxIterations)
	}
	cfg.MaxIterations = f.MaxIterations

	switch {
	case f.Parallelism < 0:
		return nil, fmt.Errorf("parallelism must not be negative, got %d", f.Parallelism)
	case f.Parallelism > 0:
		cfg.Parallelism = f.Parallelism
	}
	return cfg, nil
}

// CheckRequires reports an error when the version constraint is not a valid
// semantic version or is newer than LanguageVersion. The leading "v" is
// optional.
func CheckRequires(requires string) error {
	v := strings.TrimSpace(requires)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("requires: %q is not a semantic version", requires)
	}
	if semver.Compare(v, LanguageVersion) > 0 {
		return fmt.Errorf("requires zeal %s, but this interpreter implements %s", v, LanguageVersion)
	}
	return nil
}
