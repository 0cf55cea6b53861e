package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by commands.
type Styles struct {
	Header1       lipgloss.Style
	Header2       lipgloss.Style
	Bold          lipgloss.Style
	Muted         lipgloss.Style
	Success       lipgloss.Style
	Warning       lipgloss.Style
	Error         lipgloss.Style
	Info          lipgloss.Style
	Path          lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).MarginBottom(1),
		Header2:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Bold:          r.NewStyle().Bold(true),
		Muted:         r.NewStyle().Foreground(lipgloss.Color("8")),
		Success:       r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:       r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:         r.NewStyle().Foreground(lipgloss.Color("9")),
		Info:          r.NewStyle().Foreground(lipgloss.Color("12")),
		Path:          r.NewStyle().Foreground(lipgloss.Color("13")),
		StatusSuccess: r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		StatusFailed:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}
