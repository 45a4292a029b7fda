package personform

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain initializes the global zone manager for all tests in this package.
func TestMain(m *testing.M) {
	zone.NewGlobal()
	m.Run()
}

func typeString(m Model, s string) Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestNew(t *testing.T) {
	m := New("Acme Telecom")

	require.Equal(t, 0, m.focusedIndex, "expected focus on the name field")
	assert.Contains(t, m.View(), "Acme Telecom")
	assert.Contains(t, m.View(), "New Owner")
}

func TestFocusCycling_Forward(t *testing.T) {
	m := New("Acme")

	require.Equal(t, 0, m.focusedIndex)

	// Tab through the three fields
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, 1, m.focusedIndex)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, 2, m.focusedIndex)

	// Tab to submit button
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, -1, m.focusedIndex, "expected buttons focus")
	require.Equal(t, 0, m.focusedButton, "expected submit button")

	// Tab to cancel button
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, 1, m.focusedButton, "expected cancel button")

	// Tab wraps to first field
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, 0, m.focusedIndex, "expected wrapped to first field")
}

func TestFocusCycling_Reverse(t *testing.T) {
	m := New("Acme")

	// Shift+Tab wraps to cancel button
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	require.Equal(t, -1, m.focusedIndex, "expected buttons focus")
	require.Equal(t, 1, m.focusedButton, "expected cancel button")

	// Shift+Tab to submit button
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	require.Equal(t, 0, m.focusedButton, "expected submit button")

	// Shift+Tab to phone field
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	require.Equal(t, 2, m.focusedIndex)
}

func TestButtonNavigation_LeftRight(t *testing.T) {
	m := New("Acme")

	// Move to buttons
	for range 3 {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	}
	require.Equal(t, -1, m.focusedIndex)
	require.Equal(t, 0, m.focusedButton)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	require.Equal(t, 1, m.focusedButton, "expected cancel after right")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	require.Equal(t, 0, m.focusedButton, "expected submit after left")
}

func TestTyping(t *testing.T) {
	m := New("Acme")

	m = typeString(m, "Ada Mensah")

	name, _, _ := m.Values()
	assert.Equal(t, "Ada Mensah", name)
}

func TestSubmit_Valid(t *testing.T) {
	m := New("Acme")

	m = typeString(m, "Ada Mensah")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = typeString(m, "GHA-123456")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = typeString(m, "+233201234567")

	// Enter on the phone field submits
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd, "expected a submit command")

	msg := cmd()
	submit, ok := msg.(SubmitMsg)
	require.True(t, ok, "expected SubmitMsg, got %T", msg)
	assert.Equal(t, "Ada Mensah", submit.Name)
	assert.Equal(t, "GHA-123456", submit.Identification)
	assert.Equal(t, "+233201234567", submit.Phone)
	assert.Empty(t, m.validationError)
}

func TestSubmit_PhoneOptional(t *testing.T) {
	m := New("Acme")

	m = typeString(m, "Ada Mensah")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = typeString(m, "GHA-123456")

	// Tab past phone to submit button, then Enter
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, -1, m.focusedIndex)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	submit, ok := cmd().(SubmitMsg)
	require.True(t, ok)
	assert.Empty(t, submit.Phone)
}

func TestSubmit_NameRequired(t *testing.T) {
	m := New("Acme")

	// Straight to the buttons without typing anything
	for range 3 {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	}
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.Nil(t, cmd, "expected no submit command")
	require.Equal(t, "Name is required", m.validationError)
	assert.Contains(t, m.View(), "Name is required")
}

func TestSubmit_IdentificationRequired(t *testing.T) {
	m := New("Acme")

	m = typeString(m, "Ada Mensah")
	for range 3 {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	}
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.Nil(t, cmd)
	require.Equal(t, "Identification is required", m.validationError)
}

func TestValidationError_ClearedOnTyping(t *testing.T) {
	m := New("Acme")

	for range 3 {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotEmpty(t, m.validationError)

	// Back to the name field and type
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, 0, m.focusedIndex)
	m = typeString(m, "A")

	assert.Empty(t, m.validationError, "expected error cleared after typing")
}

func TestEscape_Cancels(t *testing.T) {
	m := New("Acme")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)

	_, ok := cmd().(CancelMsg)
	assert.True(t, ok, "expected CancelMsg")
}

func TestEnter_AdvancesFromNonFinalField(t *testing.T) {
	m := New("Acme")

	m = typeString(m, "Ada")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.Equal(t, 1, m.focusedIndex, "expected focus advanced to identification")
	if cmd != nil {
		_, isSubmit := cmd().(SubmitMsg)
		assert.False(t, isSubmit, "enter on a middle field must not submit")
	}
}

func TestEnterOnCancelButton_Cancels(t *testing.T) {
	m := New("Acme")

	for range 4 {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	}
	require.Equal(t, 1, m.focusedButton)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	_, ok := cmd().(CancelMsg)
	assert.True(t, ok, "expected CancelMsg")
}

func TestSetLoading_IgnoresKeyboard(t *testing.T) {
	m := New("Acme").SetLoading("Creating owner...")

	require.True(t, m.IsLoading())
	assert.Contains(t, m.View(), "Creating owner...")

	m2, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.Nil(t, cmd, "expected esc ignored while loading")
	assert.Equal(t, m.focusedIndex, m2.focusedIndex)

	// Clearing loading restores input handling
	m = m.SetLoading("")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
}

func TestSetError(t *testing.T) {
	m := New("Acme").SetError("owner already exists")

	assert.Contains(t, m.View(), "owner already exists")

	m = m.SetError("")
	assert.NotContains(t, m.View(), "owner already exists")
}

func TestView_ContainsFieldLabels(t *testing.T) {
	view := New("Acme").View()

	assert.Contains(t, view, "Name")
	assert.Contains(t, view, "Identification")
	assert.Contains(t, view, "Phone (optional)")
	assert.Contains(t, view, "Create")
	assert.Contains(t, view, "Cancel")
}
