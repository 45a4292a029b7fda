// Package personform contains the modal form for creating a device owner.
package personform

import (
	"fmt"
	"strings"

	zone "github.com/lrstanley/bubblezone"

	"imeidesk/internal/ui/overlay"
	"imeidesk/internal/ui/styles"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SubmitMsg is sent when the form is submitted with valid values.
type SubmitMsg struct {
	Name           string
	Identification string
	Phone          string
}

// CancelMsg is sent when the form is cancelled (via Esc key or Cancel button).
type CancelMsg struct{}

// Field indexes into the inputs slice.
const (
	fieldName = iota
	fieldIdentification
	fieldPhone
	fieldCount
)

// Zone IDs for mouse click handling.
const (
	zoneSubmitButton = "personform-submit"
	zoneCancelButton = "personform-cancel"
)

func fieldZoneID(i int) string {
	return fmt.Sprintf("personform-field-%d", i)
}

var fieldLabels = [fieldCount]string{"Name", "Identification", "Phone (optional)"}

// Model is the person creation form state.
//
// Model is immutable - all methods return a new Model rather than
// modifying the receiver.
type Model struct {
	companyName   string
	inputs        []textinput.Model
	focusedIndex  int // Index into inputs (-1 = on buttons)
	focusedButton int // 0 = submit, 1 = cancel (when focusedIndex == -1)

	width, height int

	validationError string

	// loadingText, if non-empty, shows a loading indicator instead of buttons.
	loadingText string
}

// New creates a person form scoped to the given company.
// The company is display-only; ownership of the new person is fixed.
func New(companyName string) Model {
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 120
		ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(styles.TextPlaceholderColor)
		inputs[i] = ti
	}
	inputs[fieldName].Placeholder = "Full name"
	inputs[fieldIdentification].Placeholder = "National ID or passport"
	inputs[fieldPhone].Placeholder = "+233 ..."
	inputs[fieldName].Focus()

	return Model{
		companyName:  companyName,
		inputs:       inputs,
		focusedIndex: fieldName,
	}
}

// Init returns the cursor blink command for the focused input.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// SetSize sets the viewport dimensions for overlay rendering.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	return m
}

// SetLoading sets the loading state of the form.
// When text is non-empty, the form displays a loading indicator instead
// of buttons and ignores keyboard input. Pass empty string to clear.
func (m Model) SetLoading(text string) Model {
	m.loadingText = text
	return m
}

// IsLoading returns true if the form is in loading state.
func (m Model) IsLoading() bool {
	return m.loadingText != ""
}

// SetError sets the validation error message.
// Pass empty string to clear the error.
func (m Model) SetError(text string) Model {
	m.validationError = text
	return m
}

// Values returns the current trimmed field values.
func (m Model) Values() (name, identification, phone string) {
	return strings.TrimSpace(m.inputs[fieldName].Value()),
		strings.TrimSpace(m.inputs[fieldIdentification].Value()),
		strings.TrimSpace(m.inputs[fieldPhone].Value())
}

// Update handles messages for the form.
//
// Returns SubmitMsg when the form is submitted with valid values,
// CancelMsg when cancelled.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	// Ignore keyboard input while a request is in flight
	if m.loadingText != "" {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, nil
		}
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		if msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionRelease {
			if cmd := m.handleButtonClick(msg); cmd != nil {
				return m, cmd
			}
			if m.handleFieldClick(msg) {
				return m, textinput.Blink
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}

	return m.forwardToFocused(msg)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, func() tea.Msg { return CancelMsg{} }

	case "tab", "down":
		return m.nextField(), textinput.Blink

	case "shift+tab", "up":
		return m.prevField(), textinput.Blink

	case "left":
		if m.focusedIndex == -1 && m.focusedButton == 1 {
			m.focusedButton = 0
			return m, nil
		}

	case "right":
		if m.focusedIndex == -1 && m.focusedButton == 0 {
			m.focusedButton = 1
			return m, nil
		}

	case "enter":
		if m.focusedIndex == -1 {
			if m.focusedButton == 1 {
				return m, func() tea.Msg { return CancelMsg{} }
			}
			return m.submit()
		}
		// Enter on the last field submits, otherwise advances
		if m.focusedIndex == fieldPhone {
			return m.submit()
		}
		return m.nextField(), textinput.Blink
	}

	return m.forwardToFocused(msg)
}

func (m Model) forwardToFocused(msg tea.Msg) (Model, tea.Cmd) {
	if m.focusedIndex < 0 || m.focusedIndex >= len(m.inputs) {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focusedIndex], cmd = m.inputs[m.focusedIndex].Update(msg)
	// Typing clears a stale validation error
	if _, ok := msg.(tea.KeyMsg); ok {
		m.validationError = ""
	}
	return m, cmd
}

// nextField moves focus forward: fields, submit, cancel, then wraps.
func (m Model) nextField() Model {
	m = m.blurFocused()
	switch {
	case m.focusedIndex == -1 && m.focusedButton == 0:
		m.focusedButton = 1
	case m.focusedIndex == -1:
		m.focusedIndex = fieldName
		m.focusedButton = 0
	case m.focusedIndex == fieldCount-1:
		m.focusedIndex = -1
		m.focusedButton = 0
	default:
		m.focusedIndex++
	}
	return m.focusField()
}

// prevField moves focus backward, wrapping from the first field to cancel.
func (m Model) prevField() Model {
	m = m.blurFocused()
	switch {
	case m.focusedIndex == -1 && m.focusedButton == 1:
		m.focusedButton = 0
	case m.focusedIndex == -1:
		m.focusedIndex = fieldCount - 1
	case m.focusedIndex == 0:
		m.focusedIndex = -1
		m.focusedButton = 1
	default:
		m.focusedIndex--
	}
	return m.focusField()
}

func (m Model) blurFocused() Model {
	if m.focusedIndex >= 0 && m.focusedIndex < len(m.inputs) {
		m.inputs[m.focusedIndex].Blur()
	}
	return m
}

func (m Model) focusField() Model {
	if m.focusedIndex >= 0 && m.focusedIndex < len(m.inputs) {
		m.inputs[m.focusedIndex].Focus()
	}
	return m
}

// submit validates and submits the form.
func (m Model) submit() (Model, tea.Cmd) {
	name, identification, phone := m.Values()

	if name == "" {
		m.validationError = "Name is required"
		return m, nil
	}
	if identification == "" {
		m.validationError = "Identification is required"
		return m, nil
	}

	m.validationError = ""
	return m, func() tea.Msg {
		return SubmitMsg{Name: name, Identification: identification, Phone: phone}
	}
}

// handleButtonClick checks if a button zone was clicked.
// Returns a tea.Cmd if a button was clicked, nil otherwise.
func (m *Model) handleButtonClick(msg tea.MouseMsg) tea.Cmd {
	if z := zone.Get(zoneSubmitButton); z != nil && z.InBounds(msg) {
		*m = m.blurFocused()
		m.focusedIndex = -1
		m.focusedButton = 0
		newM, cmd := m.submit()
		*m = newM
		return cmd
	}

	if z := zone.Get(zoneCancelButton); z != nil && z.InBounds(msg) {
		*m = m.blurFocused()
		m.focusedIndex = -1
		m.focusedButton = 1
		return func() tea.Msg { return CancelMsg{} }
	}

	return nil
}

// handleFieldClick focuses the clicked field. Returns true if one was hit.
func (m *Model) handleFieldClick(msg tea.MouseMsg) bool {
	for i := range m.inputs {
		if z := zone.Get(fieldZoneID(i)); z != nil && z.InBounds(msg) {
			*m = m.blurFocused()
			m.focusedIndex = i
			*m = m.focusField()
			return true
		}
	}
	return false
}

// View renders the form box (without overlay).
func (m Model) View() string {
	const width = 48
	contentWidth := width - 4

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(styles.OverlayTitleColor)
	borderStyle := lipgloss.NewStyle().Foreground(styles.BorderDefaultColor)
	companyStyle := lipgloss.NewStyle().Foreground(styles.TextMutedColor)
	contentPadding := lipgloss.NewStyle().PaddingLeft(1)

	var content strings.Builder
	content.WriteString(contentPadding.Render(titleStyle.Render("New Owner")))
	content.WriteString("\n")
	content.WriteString(borderStyle.Render(strings.Repeat("─", width)))
	content.WriteString("\n")
	content.WriteString(contentPadding.Render(companyStyle.Render("Company: " + m.companyName)))
	content.WriteString("\n\n")

	for i := range m.inputs {
		content.WriteString(contentPadding.Render(m.renderField(i, contentWidth)))
		content.WriteString("\n\n")
	}

	if m.validationError != "" {
		errorStyle := lipgloss.NewStyle().Foreground(styles.StatusErrorColor)
		content.WriteString(contentPadding.Render(" " + errorStyle.Render(m.validationError)))
		content.WriteString("\n\n")
	}

	if m.loadingText != "" {
		loadingStyle := lipgloss.NewStyle().Foreground(styles.TextMutedColor)
		content.WriteString(contentPadding.Render(" " + loadingStyle.Render(m.loadingText)))
	} else {
		content.WriteString(contentPadding.Render(" " + m.renderButtons()))
	}
	content.WriteString("\n")

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.OverlayBorderColor).
		Width(width)

	return boxStyle.Render(content.String())
}

func (m Model) renderField(index, width int) string {
	focused := m.focusedIndex == index

	labelStyle := styles.FormLabelStyle
	borderColor := styles.BorderDefaultColor
	if focused {
		labelStyle = styles.FormLabelFocusedStyle
		borderColor = styles.BorderFocusColor
	}

	inputBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(width).
		Render(m.inputs[index].View())

	return zone.Mark(fieldZoneID(index),
		labelStyle.Render(fieldLabels[index])+"\n"+inputBox)
}

// renderButtons renders the submit and cancel buttons.
func (m Model) renderButtons() string {
	onButtons := m.focusedIndex == -1

	submitStyle := styles.PrimaryButtonStyle
	if onButtons && m.focusedButton == 0 {
		submitStyle = styles.PrimaryButtonFocusedStyle
	}
	submitBtn := zone.Mark(zoneSubmitButton, submitStyle.Render("Create"))

	cancelStyle := styles.SecondaryButtonStyle
	if onButtons && m.focusedButton == 1 {
		cancelStyle = styles.SecondaryButtonFocusedStyle
	}
	cancelBtn := zone.Mark(zoneCancelButton, cancelStyle.Render("Cancel"))

	return submitBtn + "  " + cancelBtn
}

// Overlay renders the form on top of a background view.
func (m Model) Overlay(bg string) string {
	fg := m.View()

	if bg == "" {
		return lipgloss.Place(
			m.width, m.height,
			lipgloss.Center, lipgloss.Center,
			fg,
		)
	}

	return overlay.Place(overlay.Config{
		Width:    m.width,
		Height:   m.height,
		Position: overlay.Center,
	}, fg, bg)
}
