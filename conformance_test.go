package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/thomasrohde/zeal/internal/cli"
	"github.com/thomasrohde/zeal/internal/testutil"
)

func TestConformance(t *testing.T) {
	paths, err := testutil.ListScenarios(testutil.ScenariosDir)
	if err != nil {
		t.Fatalf("listing scenarios: %v", err)
	}
	if len(paths) == 0 {
		t.Fatal("no scenarios found")
	}

	// Keep a user config file out of the runs.
	t.Setenv("HOME", t.TempDir())

	for _, path := range paths {
		scenario, err := testutil.LoadScenario(path)
		if err != nil {
			t.Fatalf("failed to load scenario: %v", err)
		}
		t.Run(scenario.Name, func(t *testing.T) {
			runScenario(t, scenario)
		})
	}
}

func runScenario(t *testing.T, scenario *testutil.Scenario) {
	t.Helper()

	dir := t.TempDir()
	if err := testutil.WriteFiles(dir, scenario.Files); err != nil {
		t.Fatalf("writing scenario files: %v", err)
	}

	var stdout, stderr bytes.Buffer
	app := &cli.App{
		Stdin:  strings.NewReader(scenario.Stdin),
		Stdout: &stdout,
		Stderr: &stderr,
		Dir:    dir,
	}
	exit := app.Run(context.Background(), scenario.Args)

	expect := scenario.Expect
	if exit != expect.ExitCode {
		t.Errorf("exit code: got %d, want %d\nstderr: %s", exit, expect.ExitCode, stderr.String())
	}

	if expect.Stdout != nil {
		if diff := cmp.Diff(*expect.Stdout, stdout.String()); diff != "" {
			t.Errorf("stdout mismatch (-want +got):\n%s", diff)
		}
	}
	for _, want := range expect.StdoutContains {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("stdout should contain %q, got: %s", want, stdout.String())
		}
	}
	for _, want := range expect.StderrContains {
		if !strings.Contains(stderr.String(), want) {
			t.Errorf("stderr should contain %q, got: %s", want, stderr.String())
		}
	}

	if expect.Values != nil {
		checkValues(t, stdout.String(), expect.Values)
	}
	if len(expect.Diagnostics) > 0 {
		checkDiagnostics(t, stderr.String(), expect.Diagnostics)
	}

	for name, want := range expect.Files {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("reading %s: %v", name, err)
			continue
		}
		if diff := cmp.Diff(want, string(got)); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", name, diff)
		}
	}
}

// checkValues compares the JSON value list on the last stdout line.
func checkValues(t *testing.T, stdout string, expected any) {
	t.Helper()

	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	last := lines[len(lines)-1]

	var actual any
	if err := json.Unmarshal([]byte(last), &actual); err != nil {
		t.Fatalf("last stdout line is not JSON: %q", last)
	}
	if diff := cmp.Diff(normalizeJSON(t, expected), actual); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

// checkDiagnostics requires every expected subset to match a diagnostic from
// one of the JSON arrays written to stderr.
func checkDiagnostics(t *testing.T, stderr string, expected []map[string]any) {
	t.Helper()

	var actual []any
	for _, line := range strings.Split(stderr, "\n") {
		var diags []any
		if err := json.Unmarshal([]byte(line), &diags); err == nil {
			actual = append(actual, diags...)
		}
	}

	for _, want := range expected {
		subset := normalizeJSON(t, want)
		found := false
		for _, d := range actual {
			if isSubset(subset, d) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("diagnostic subset not found: %v\nstderr: %s", want, stderr)
		}
	}
}

// normalizeJSON round-trips a YAML-decoded value through JSON so numbers
// and maps have the types encoding/json produces.
func normalizeJSON(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal expected value: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("failed to parse JSON: %v (raw: %s)", err, string(b))
	}
	return out
}

// isSubset checks if expected is a subset of actual (for JSON comparison).
func isSubset(expected, actual any) bool {
	switch e := expected.(type) {
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, ev := range e {
			av, exists := a[k]
			if !exists {
				return false
			}
			if !isSubset(ev, av) {
				return false
			}
		}
		return true

	case []any:
		a, ok := actual.([]any)
		if !ok {
			return false
		}
		if len(e) > len(a) {
			return false
		}
		for i, ev := range e {
			if !isSubset(ev, a[i]) {
				return false
			}
		}
		return true

	case float64:
		if af, ok := actual.(float64); ok {
			return e == af
		}
		return false

	case string:
		if as, ok := actual.(string); ok {
			return e == as
		}
		return false

	case bool:
		if ab, ok := actual.(bool); ok {
			return e == ab
		}
		return false

	case nil:
		return actual == nil

	default:
		return fmt.Sprintf("%v", expected) == fmt.Sprintf("%v", actual)
	}
}

func TestScenariosExist(t *testing.T) {
	info, err := os.Stat(testutil.ScenariosDir)
	if err != nil {
		t.Fatalf("scenarios directory not found: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("scenarios path is not a directory: %s", testutil.ScenariosDir)
	}
}
