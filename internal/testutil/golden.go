// Package testutil provides shared test helpers for Zeal Go tests.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ScenariosDir is the relative path from the module root to the conformance
// scenarios.
const ScenariosDir = "testdata/scenarios"

// Scenario is one conformance case loaded from a YAML file. Files are written
// to a fresh directory and Args are passed to the command line there.
type Scenario struct {
	Name        string            `yaml:"-"`
	Description string            `yaml:"description,omitempty"`
	Args        []string          `yaml:"args"`
	Stdin       string            `yaml:"stdin,omitempty"`
	Files       map[string]string `yaml:"files,omitempty"`
	Expect      ExpectedResult    `yaml:"expect"`
}

// ExpectedResult describes the expected outcome of running a scenario.
// Unset fields are not checked.
type ExpectedResult struct {
	ExitCode       int      `yaml:"exitCode"`
	Stdout         *string  `yaml:"stdout,omitempty"`
	StdoutContains []string `yaml:"stdoutContains,omitempty"`
	StderrContains []string `yaml:"stderrContains,omitempty"`
	// Values is matched against the JSON value list `run --json` prints as
	// its last stdout line.
	Values any `yaml:"values,omitempty"`
	// Diagnostics lists field subsets that must each match one diagnostic
	// reported on stderr in JSON form.
	Diagnostics []map[string]any `yaml:"diagnostics,omitempty"`
	// Files maps file names to their expected content after the run.
	Files map[string]string `yaml:"files,omitempty"`
}

// LoadScenario loads a scenario file. Unknown fields are an error.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var s Scenario
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(s.Args) == 0 {
		return nil, fmt.Errorf("%s: args must not be empty", path)
	}
	s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &s, nil
}

// ListScenarios returns all scenario files under the given root in name
// order.
func ListScenarios(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".yaml" {
			files = append(files, filepath.Join(root, e.Name()))
		}
	}
	return files, nil
}

// WriteFiles writes the scenario's files into dir.
func WriteFiles(dir string, files map[string]string) error {
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}
