// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/chviewgraph/internal/cli/output"
)

// SampleViews maps file paths, relative to a files-source directory, to the
// view definitions of the pets, cars and humans sample schema.
var SampleViews = map[string]string{
	"test/v_pet_ownership.sql": `CREATE VIEW test.v_pet_ownership AS
SELECT p.name AS pet_name, p.owner_id FROM test.pet AS p
`,
	"test/v_car_inventory.sql": `CREATE VIEW test.v_car_inventory AS
SELECT c.make, c.model, h.address, hu.name AS owner
FROM test.car AS c
INNER JOIN test.household AS h ON c.household_id = h.id
LEFT JOIN human AS hu ON hu.household_id = h.id
`,
	"test/v_human_profile.sql": `CREATE VIEW test.v_human_profile AS
WITH cars AS (SELECT owner, count() AS car_count FROM v_car_inventory GROUP BY owner)
SELECT h.name, coalesce(cars.car_count, 0) AS cars
FROM test.human AS h
LEFT JOIN cars ON cars.owner = h.name
`,
	"tables.yaml": `tables:
  - test.car
  - test.household
  - test.human
  - test.pet
`,
}

// WriteFiles writes files (relative path to content) under dir.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

// SetupTestProject creates a temporary project using the files source with
// the sample views under views/ and a chviewgraph.yaml pointing at them.
// It returns the project directory.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	WriteFiles(t, filepath.Join(tmpDir, "views"), SampleViews)
	WriteFiles(t, tmpDir, map[string]string{
		"chviewgraph.yaml": "source: files\nsql_dir: views\n",
	})
	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererText creates a new test renderer in text mode (simulated TTY).
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererMarkdown creates a new test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// Output returns the combined stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}

// AssertNotContains checks that the string does not contain the substring.
func AssertNotContains(t *testing.T, s, unexpected string) {
	t.Helper()
	if strings.Contains(s, unexpected) {
		t.Errorf("string %q unexpectedly contains %q", s, unexpected)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and basic structure.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	// Check for balanced code fences
	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	// Check that headers have content
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}

// AssertOutputMode checks that the renderer output matches expected mode characteristics.
func AssertOutputMode(t *testing.T, tr *TestRenderer, expectedMode output.Mode) {
	t.Helper()

	combinedOutput := tr.Output() + tr.ErrorOutput()

	// Text mode may carry ANSI codes on a TTY; every other mode must not.
	switch expectedMode {
	case output.ModeMarkdown, output.ModeJSON, output.ModeYAML:
		AssertNoANSI(t, combinedOutput)
	}
	if expectedMode == output.ModeMarkdown {
		AssertValidMarkdown(t, tr.Output())
	}
}
