// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/pushset/internal/cli/output"
	"github.com/leapstack-labs/pushset/pkg/pushschema"
)

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
		Renderer: output.NewRendererWithTTY(out, errOut, mode, isTTY),
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

// NewTestRendererJSON creates a new test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
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

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}

// SkippedLines returns the indented lines that list objects left out of a
// published schema, with ANSI codes and surrounding space removed.
func SkippedLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(ansiPattern.ReplaceAllString(out, ""), "\n") {
		if !strings.HasPrefix(line, "  ") {
			continue
		}
		trimmed := strings.TrimSpace(line)
		for _, kind := range []string{"table ", "measure ", "relationship "} {
			if strings.HasPrefix(trimmed, kind) {
				lines = append(lines, trimmed)
				break
			}
		}
	}
	return lines
}

// AssertSkippedTable checks that out lists table as skipped for reason.
func AssertSkippedTable(t *testing.T, out, table string, reason pushschema.Reason) {
	t.Helper()
	assertSkipped(t, out, fmt.Sprintf("table %s: %s", table, reason))
}

// AssertSkippedMeasure checks that out lists the measure of table as skipped for reason.
func AssertSkippedMeasure(t *testing.T, out, table, measure string, reason pushschema.Reason) {
	t.Helper()
	assertSkipped(t, out, fmt.Sprintf("measure '%s'[%s]: %s", table, measure, reason))
}

// AssertSkippedCount checks how many objects out lists as skipped.
func AssertSkippedCount(t *testing.T, out string, want int) {
	t.Helper()
	if got := SkippedLines(out); len(got) != want {
		t.Errorf("expected %d skipped objects, got %d: %q", want, len(got), got)
	}
}

func assertSkipped(t *testing.T, out, want string) {
	t.Helper()
	lines := SkippedLines(out)
	for _, line := range lines {
		if line == want {
			return
		}
	}
	t.Errorf("skipped object %q not listed, got %q", want, lines)
}
