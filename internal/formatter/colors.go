package formatter

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/playsync/internal/migrate"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FFA500", "#FF0000", "#626262")

// Palette styles terminal output; each field is a [lipgloss.Style] for one kind of fact.
type Palette struct {
	title   lipgloss.Style
	applied lipgloss.Style
	pending lipgloss.Style
	drift   lipgloss.Style
	muted   lipgloss.Style
}

// NewPalette builds a palette from title, applied, pending, drift and muted foreground colors.
func NewPalette(title, applied, pending, drift, muted string) *Palette {
	return &Palette{
		title:   NewBold(title),
		applied: NewBold(applied),
		pending: NewStyle(pending),
		drift:   NewBold(drift),
		muted:   NewEm(muted),
	}
}

// State colors a migration state label.
func (p *Palette) State(s migrate.State) string {
	if s == migrate.Applied {
		return p.applied.Render(s.String())
	}
	return p.pending.Render(s.String())
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
