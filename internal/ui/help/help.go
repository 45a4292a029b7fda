// Package help contains the help overlay component. The keybinding
// reference is written as markdown and rendered through glamour.
package help

import (
	"strings"

	"imeidesk/internal/keys"
	"imeidesk/internal/ui/markdown"
	"imeidesk/internal/ui/overlay"
	"imeidesk/internal/ui/styles"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

const boxWidth = 46

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.OverlayTitleColor).
			PaddingLeft(2)

	dividerStyle = lipgloss.NewStyle().
			Foreground(styles.OverlayBorderColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(styles.OverlayBorderColor)

	contentStyle = lipgloss.NewStyle().
			Padding(0, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(styles.TextMutedColor).
			MarginTop(1)
)

// Model holds the help view state.
type Model struct {
	keys   keys.KeyMap
	style  string
	width  int
	height int
}

// New creates a new help view. style selects the markdown color theme
// ("dark", "light", or empty for auto-detection).
func New(style ...string) Model {
	m := Model{keys: keys.DefaultKeyMap()}
	if len(style) > 0 {
		m.style = style[0]
	}
	return m
}

// SetSize updates dimensions.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	return m
}

// View renders the help overlay (standalone, no background).
func (m Model) View() string {
	return m.Overlay("")
}

// Overlay renders the help box on top of a background view.
func (m Model) Overlay(background string) string {
	helpBox := m.renderContent()

	if background == "" {
		return lipgloss.Place(
			m.width, m.height,
			lipgloss.Center, lipgloss.Center,
			helpBox,
		)
	}

	return overlay.Place(overlay.Config{
		Width:    m.width,
		Height:   m.height,
		Position: overlay.Center,
	}, helpBox, background)
}

// reference builds the keybinding reference as a markdown document.
func (m Model) reference() string {
	var b strings.Builder

	b.WriteString("## Capture\n\n")
	writeBinding(&b, m.keys.Enter)
	writeBinding(&b, m.keys.ToggleScan)
	writeBinding(&b, m.keys.SwapCamera)
	writeBinding(&b, m.keys.Register)
	writeBinding(&b, m.keys.Clear)

	b.WriteString("\n## Registration\n\n")
	writeKeyDesc(&b, "↑/↓", "select person")
	writeBinding(&b, m.keys.Tab)
	writeBinding(&b, m.keys.ShiftTab)
	writeBinding(&b, m.keys.NewOwner)

	b.WriteString("\n## General\n\n")
	writeBinding(&b, m.keys.Help)
	writeBinding(&b, m.keys.Escape)
	writeBinding(&b, m.keys.Quit)

	return b.String()
}

// renderContent builds the help box: a title bar over the glamour-rendered
// reference, with a close hint footer.
func (m Model) renderContent() string {
	body := m.renderReference()
	body = contentStyle.Render(body + "\n" + footerStyle.Render("Press ? or Esc to close"))

	divider := dividerStyle.Render(strings.Repeat("─", boxWidth))

	var content strings.Builder
	content.WriteString(titleStyle.Render("Keybindings"))
	content.WriteString("\n")
	content.WriteString(divider)
	content.WriteString("\n")
	content.WriteString(body)

	return boxStyle.Width(boxWidth).Render(content.String())
}

func (m Model) renderReference() string {
	doc := m.reference()

	r, err := markdown.New(boxWidth-4, m.style)
	if err != nil {
		return doc
	}
	rendered, err := r.Render(doc)
	if err != nil {
		return doc
	}
	return strings.TrimRight(rendered, "\n")
}

func writeBinding(b *strings.Builder, binding key.Binding) {
	help := binding.Help()
	writeKeyDesc(b, help.Key, help.Desc)
}

func writeKeyDesc(b *strings.Builder, key, desc string) {
	b.WriteString("- **" + key + "**: " + desc + "\n")
}
