package output

import (
	"github.com/charmbracelet/lipgloss"

	"loginsight/internal/model"
	"loginsight/internal/profile"
)

type Styles struct {
	Level  map[model.Level]lipgloss.Style
	Band   map[profile.Band]lipgloss.Style
	ID     lipgloss.Style
	Time   lipgloss.Style
	Thread lipgloss.Style
	Source lipgloss.Style
	Dim    lipgloss.Style
	Title  lipgloss.Style
	Label  lipgloss.Style
	Box    lipgloss.Style

	JSONKey    lipgloss.Style
	JSONString lipgloss.Style
	JSONNumber lipgloss.Style
	JSONBool   lipgloss.Style
	JSONNull   lipgloss.Style
	JSONPunct  lipgloss.Style
}

// NewStyles returns the palette. Without color every style renders text as is.
func NewStyles(color bool) Styles {
	plain := lipgloss.NewStyle()
	if !color {
		return Styles{
			Level: map[model.Level]lipgloss.Style{}, Band: map[profile.Band]lipgloss.Style{},
			ID: plain, Time: plain, Thread: plain, Source: plain, Dim: plain, Title: plain, Label: plain,
			Box:     plain,
			JSONKey: plain, JSONString: plain, JSONNumber: plain, JSONBool: plain, JSONNull: plain, JSONPunct: plain,
		}
	}
	return Styles{
		Level: map[model.Level]lipgloss.Style{
			model.LevelUnknown: lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
			model.LevelDebug:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
			model.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
			model.LevelWarn:    lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
			model.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		},
		Band: map[profile.Band]lipgloss.Style{
			profile.BandWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
			profile.BandSevere:  lipgloss.NewStyle().Foreground(lipgloss.Color("201")).Bold(true),
		},
		ID:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Time:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		Thread: lipgloss.NewStyle().Foreground(lipgloss.Color("81")),
		Source: lipgloss.NewStyle().Foreground(lipgloss.Color("60")),
		Dim:    lipgloss.NewStyle().Faint(true),
		Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
		Label:  lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		Box:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(0, 1),

		JSONKey:    lipgloss.NewStyle().Foreground(lipgloss.Color("81")),
		JSONString: lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		JSONNumber: lipgloss.NewStyle().Foreground(lipgloss.Color("215")),
		JSONBool:   lipgloss.NewStyle().Foreground(lipgloss.Color("177")),
		JSONNull:   lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		JSONPunct:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

func (s Styles) level(l model.Level) lipgloss.Style {
	if st, ok := s.Level[l]; ok {
		return st
	}
	return lipgloss.NewStyle()
}

func (s Styles) band(b profile.Band) lipgloss.Style {
	if st, ok := s.Band[b]; ok {
		return st
	}
	return lipgloss.NewStyle()
}
