// Package output renders command results for terminals, pipes and scripts.
//
// A Renderer picks one of three concrete formats: styled text for a TTY,
// Markdown when output is piped (agent and CI friendly), or JSON on request.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Mode selects the output format.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// ParseMode validates a mode name. The empty string means auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeText, ModeMarkdown, ModeJSON:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected auto, text, markdown or json)", s)
	}
}

// Renderer writes command output in the effective mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles *Styles
	title  cases.Caser
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(out, errOut, mode, isTerminal(out))
}

// NewRendererWithTTY creates a renderer with an explicit TTY setting. Used by tests.
func NewRendererWithTTY(out, errOut io.Writer, mode Mode, isTTY bool) *Renderer {
	lr := lipgloss.NewRenderer(out)
	if !isTTY {
		lr.SetColorProfile(termenv.Ascii)
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		styles: newStyles(lr),
		title:  cases.Title(language.English),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}

// EffectiveMode resolves auto to text on a terminal and markdown otherwise.
func (r *Renderer) EffectiveMode() Mode {
	switch r.mode {
	case ModeText, ModeMarkdown, ModeJSON:
		return r.mode
	default:
		if r.isTTY {
			return ModeText
		}
		return ModeMarkdown
	}
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Writer returns the standard output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the error output writer.
func (r *Renderer) ErrWriter() io.Writer { return r.errOut }

// Styles returns the lipgloss styles bound to the output.
func (r *Renderer) Styles() *Styles { return r.styles }

// Println writes a line.
func (r *Renderer) Println(s string) {
	_, _ = fmt.Fprintln(r.out, s)
}

// Printf writes formatted text.
func (r *Renderer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// Header writes a level 1 or 2 heading.
func (r *Renderer) Header(level int, heading string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(level, heading))
		r.Println("")
		return
	}
	style := r.styles.Header2
	if level <= 1 {
		style = r.styles.Header1
	}
	r.Println(style.Render(heading))
}

// Success writes a success message.
func (r *Renderer) Success(msg string) {
	r.Println(r.styles.Success.Render("✓ " + msg))
}

// Warning writes a warning message.
func (r *Renderer) Warning(msg string) {
	r.Println(r.styles.Warning.Render("! " + msg))
}

// Error writes an error message to the error stream.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render("✗ "+msg))
}

// Muted writes de-emphasized text.
func (r *Renderer) Muted(msg string) {
	r.Println(r.styles.Muted.Render(msg))
}

// StatusLine writes "name  Status  detail" with the status colored by outcome.
// Recognized statuses are success, skipped, warning and failed.
func (r *Renderer) StatusLine(name, status, detail string) {
	label := r.title.String(status)
	var styled string
	switch status {
	case "success":
		styled = r.styles.StatusSuccess.Render(label)
	case "failed", "error":
		styled = r.styles.StatusFailed.Render(label)
	case "warning", "skipped":
		styled = r.styles.Warning.Render(label)
	default:
		styled = r.styles.Muted.Render(label)
	}

	if r.EffectiveMode() == ModeMarkdown {
		line := fmt.Sprintf("- %s: %s", name, label)
		if detail != "" {
			line += " (" + detail + ")"
		}
		r.Println(line)
		return
	}

	line := fmt.Sprintf("  %-30s %s", name, styled)
	if detail != "" {
		line += "  " + r.styles.Muted.Render(detail)
	}
	r.Println(line)
}

// Table writes rows under a header: a light box table for text and a pipe
// table for markdown.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	t.SetStyle(style)

	h := make(table.Row, len(header))
	for i, col := range header {
		h[i] = col
	}
	t.AppendHeader(h)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}

	if r.EffectiveMode() == ModeMarkdown {
		t.RenderMarkdown()
		return
	}
	t.Render()
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
