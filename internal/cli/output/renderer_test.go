package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"text", ModeText, false},
		{"markdown", ModeMarkdown, false},
		{"json", ModeJSON, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		isTTY bool
		want  Mode
	}{
		{"auto on terminal", ModeAuto, true, ModeText},
		{"auto piped", ModeAuto, false, ModeMarkdown},
		{"empty piped", "", false, ModeMarkdown},
		{"explicit json", ModeJSON, true, ModeJSON},
		{"explicit text piped", ModeText, false, ModeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, tt.mode, tt.isTTY)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_NonTerminalDetection(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
}

func TestRenderer_MarkdownOutput(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &bytes.Buffer{}, ModeMarkdown, false)

	r.Header(1, "Check")
	r.StatusLine("sales.bim", "success", "compatible")
	r.Table([]string{"Name", "Reason"}, [][]string{{"Date", "reserved table name"}})

	got := out.String()
	assert.Contains(t, got, "# Check\n")
	assert.Contains(t, got, "- sales.bim: Success (compatible)")
	assert.Contains(t, got, "| Name | Reason |")
	assert.Contains(t, got, "| Date | reserved table name |")
}

func TestRenderer_TextOutputHasNoEscapesWhenPiped(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &bytes.Buffer{}, ModeText, false)

	r.StatusLine("Sales", "failed", "")
	r.Success("done")

	assert.NotContains(t, out.String(), "\x1b[")
	assert.Contains(t, out.String(), "Failed")
	assert.Contains(t, out.String(), "✓ done")
}

func TestRenderer_ErrorGoesToErrWriter(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, ModeText, false)

	r.Error("model not found")

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "model not found")
}

func TestRenderer_JSON(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &bytes.Buffer{}, ModeJSON, false)

	require.NoError(t, r.JSON(CheckOutput{Compatible: true}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, true, decoded["compatible"])
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "## Summary", FormatHeader(2, "Summary"))
	assert.Equal(t, "# X", FormatHeader(0, "X"))
	assert.Equal(t, "- **Tables**: 3", FormatKeyValue("Tables", "3"))
	assert.Equal(t, "```json\n{}\n```", FormatCodeBlock("json", "{}\n"))
}
