// Package register implements the registration flow: company scope,
// owner search and selection, inline owner creation, and submission.
package register

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"imeidesk/internal/capability"
	"imeidesk/internal/keys"
	"imeidesk/internal/log"
	"imeidesk/internal/mode"
	"imeidesk/internal/registry"
	"imeidesk/internal/ui/personform"
	"imeidesk/internal/ui/picker"
	"imeidesk/internal/ui/styles"
	"imeidesk/internal/ui/toaster"
)

// RegisteredMsg reports a completed registration. Bubbles up to the app,
// which returns to capture and re-verifies the identifier.
type RegisteredMsg struct {
	IMEI   string
	Device registry.Device
}

// CloseMsg reports that the operator abandoned the flow. All flow state
// is discarded with the model.
type CloseMsg struct{}

// step is the current stage of the flow.
type step int

const (
	stepScope step = iota
	stepSearch
)

type companiesLoadedMsg struct {
	companies []registry.Company
	err       error
}

type personsLoadedMsg struct {
	companyID string
	persons   []registry.Person
	err       error
}

// debounceFilterMsg fires after the typing debounce; stale versions are
// dropped in Update.
type debounceFilterMsg struct {
	version int
}

type personCreatedMsg struct {
	person registry.Person
	err    error
}

type registerResultMsg struct {
	imei   string
	device registry.Device
	err    error
}

// Model holds the registration flow state. Discarded wholesale when the
// flow closes, so nothing here survives a cancel.
type Model struct {
	services mode.Services
	keys     keys.KeyMap

	imei string
	step step

	companies     []registry.Company
	companyPicker picker.Model
	company       registry.Company

	search         textinput.Model
	searchVersion  int
	persons        []registry.Person
	filtered       []registry.Person
	cursor         int
	loadingPersons bool

	form     personform.Model
	showForm bool
	creating bool

	submitting bool

	width  int
	height int
}

// New creates the registration flow for an unknown identifier.
func New(services mode.Services, imei string) Model {
	search := textinput.New()
	search.Placeholder = "search owners by name or ID"
	search.Prompt = "/ "
	search.PlaceholderStyle = lipgloss.NewStyle().Foreground(styles.TextPlaceholderColor)
	search.Focus()

	return Model{
		services: services,
		keys:     keys.DefaultKeyMap(),
		imei:     imei,
		step:     stepScope,
		search:   search,
	}
}

// Init fetches the company list. Admins pick from it; everyone else is
// resolved against their configured home company and skips the picker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadCompaniesCmd())
}

// SetSize handles terminal resize events.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	m.search.Width = max(min(width-8, 40), 10)
	m.companyPicker = m.companyPicker.SetSize(width, height)
	m.form = m.form.SetSize(width, height)
	return m
}

// Submitting reports whether a registration request is in flight.
func (m Model) Submitting() bool {
	return m.submitting
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case companiesLoadedMsg:
		return m.handleCompaniesLoaded(msg)

	case personsLoadedMsg:
		return m.handlePersonsLoaded(msg)

	case debounceFilterMsg:
		// A newer keystroke supersedes this tick
		if msg.version == m.searchVersion {
			m = m.applyFilter()
		}
		return m, nil

	case personform.SubmitMsg:
		return m.handleFormSubmit(msg)

	case personform.CancelMsg:
		// Back to the search with the typed query intact
		m.showForm = false
		return m, nil

	case personCreatedMsg:
		return m.handlePersonCreated(msg)

	case registerResultMsg:
		return m.handleRegisterResult(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.showForm {
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.showForm {
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		return m, cmd
	}

	if m.step == stepScope {
		return m.handleScopeKey(msg)
	}
	return m.handleSearchKey(msg)
}

func (m Model) handleScopeKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		return m, closeCmd

	case key.Matches(msg, m.keys.Enter):
		if len(m.companies) == 0 {
			return m, nil
		}
		selected := m.companyPicker.Selected()
		for _, c := range m.companies {
			if c.ID == selected.Value {
				return m.selectCompany(c)
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.companyPicker, cmd = m.companyPicker.Update(msg)
	return m, cmd
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		return m, closeCmd

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.NewOwner):
		m.form = personform.New(m.company.Name).SetSize(m.width, m.height)
		m.showForm = true
		return m, m.form.Init()

	case key.Matches(msg, m.keys.Enter):
		return m.submit()
	}

	// Everything else edits the search query
	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)

	if m.search.Value() != before {
		m.searchVersion++
		version := m.searchVersion
		debounce := m.services.Config.Debounce()
		return m, tea.Batch(cmd, tea.Tick(debounce, func(time.Time) tea.Msg {
			return debounceFilterMsg{version: version}
		}))
	}
	return m, cmd
}

// submit registers {imei, personID}. Disabled while a request is in
// flight or the create form is open.
func (m Model) submit() (Model, tea.Cmd) {
	if m.submitting || m.showForm {
		return m, nil
	}
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return m, nil
	}

	person := m.filtered[m.cursor]
	m.submitting = true
	return m, m.registerCmd(person.ID)
}

func (m Model) registerCmd(personID string) tea.Cmd {
	client := m.services.Registry
	id := m.imei
	return func() tea.Msg {
		device, err := client.Register(context.Background(), id, personID)
		return registerResultMsg{imei: id, device: device, err: err}
	}
}

func (m Model) handleRegisterResult(msg registerResultMsg) (Model, tea.Cmd) {
	m.submitting = false

	if msg.err != nil {
		rerr := registry.AsError(msg.err)
		log.ErrorErr(log.CatRegistry, "register failed", msg.err, "kind", rerr.Kind.String())
		// Selection state stays; the operator retries or picks again
		message := rerr.Message
		if message == "" {
			message = "Registration failed. Check the registry and try again."
		}
		return m, toastCmd(message, toaster.StyleError)
	}

	device := msg.device
	return m, func() tea.Msg {
		return RegisteredMsg{IMEI: msg.imei, Device: device}
	}
}

func (m Model) loadCompaniesCmd() tea.Cmd {
	client := m.services.Registry
	return func() tea.Msg {
		companies, err := client.Companies(context.Background())
		return companiesLoadedMsg{companies: companies, err: err}
	}
}

func (m Model) handleCompaniesLoaded(msg companiesLoadedMsg) (Model, tea.Cmd) {
	if msg.err != nil {
		rerr := registry.AsError(msg.err)
		log.ErrorErr(log.CatRegistry, "load companies failed", msg.err, "kind", rerr.Kind.String())
		return m, tea.Batch(
			toastCmd("Could not load companies: "+rerr.Kind.String(), toaster.StyleError),
			closeCmd,
		)
	}

	m.companies = msg.companies

	if !m.services.Caps.Has(capability.CapAnyCompany) {
		// Pre-scoped to the operator's home company; picker never shows
		home := m.services.Config.Operator.Company
		for _, c := range m.companies {
			if c.ID == home {
				return m.selectCompany(c)
			}
		}
		return m.selectCompany(registry.Company{ID: home, Name: home})
	}

	options := make([]picker.Option, len(m.companies))
	for i, c := range m.companies {
		options[i] = picker.Option{Label: c.Name, Value: c.ID}
	}
	m.companyPicker = picker.New("Select Company", options).
		SetBoxWidth(32).
		SetSize(m.width, m.height)
	return m, nil
}

// selectCompany fixes the registration scope and fetches its owners.
func (m Model) selectCompany(c registry.Company) (Model, tea.Cmd) {
	m.company = c
	m.step = stepSearch
	m.loadingPersons = true
	m.persons = nil
	m.filtered = nil
	m.cursor = 0

	client := m.services.Registry
	return m, func() tea.Msg {
		persons, err := client.PersonsByCompany(context.Background(), c.ID)
		return personsLoadedMsg{companyID: c.ID, persons: persons, err: err}
	}
}

func (m Model) handlePersonsLoaded(msg personsLoadedMsg) (Model, tea.Cmd) {
	// A scope change since the fetch makes this answer stale
	if msg.companyID != m.company.ID {
		return m, nil
	}
	m.loadingPersons = false

	if msg.err != nil {
		rerr := registry.AsError(msg.err)
		log.ErrorErr(log.CatRegistry, "load persons failed", msg.err, "kind", rerr.Kind.String())
		return m, toastCmd("Could not load owners: "+rerr.Kind.String(), toaster.StyleError)
	}

	m.persons = msg.persons
	return m.applyFilter(), nil
}

// applyFilter recomputes the visible list from the current query:
// case-insensitive substring over name or identification.
func (m Model) applyFilter() Model {
	query := strings.ToLower(strings.TrimSpace(m.search.Value()))
	if query == "" {
		m.filtered = m.persons
	} else {
		filtered := make([]registry.Person, 0, len(m.persons))
		for _, p := range m.persons {
			if strings.Contains(strings.ToLower(p.Name), query) ||
				strings.Contains(strings.ToLower(p.Identification), query) {
				filtered = append(filtered, p)
			}
		}
		m.filtered = filtered
	}

	if m.cursor >= len(m.filtered) {
		m.cursor = max(len(m.filtered)-1, 0)
	}
	return m
}

func (m Model) handleFormSubmit(msg personform.SubmitMsg) (Model, tea.Cmd) {
	if m.creating {
		return m, nil
	}
	m.creating = true
	m.form = m.form.SetLoading("Creating owner...")

	client := m.services.Registry
	person := registry.NewPerson{
		CompanyID:      m.company.ID,
		Name:           msg.Name,
		Identification: msg.Identification,
		Phone:          msg.Phone,
	}
	return m, func() tea.Msg {
		created, err := client.CreatePerson(context.Background(), person)
		return personCreatedMsg{person: created, err: err}
	}
}

// handlePersonCreated folds the server-returned person into the session
// cache and selects it. The registry assigns identity; a failed create
// leaves the form open for correction.
func (m Model) handlePersonCreated(msg personCreatedMsg) (Model, tea.Cmd) {
	m.creating = false
	m.form = m.form.SetLoading("")

	if msg.err != nil {
		rerr := registry.AsError(msg.err)
		log.ErrorErr(log.CatRegistry, "create person failed", msg.err, "kind", rerr.Kind.String())
		message := rerr.Message
		if message == "" {
			message = "Could not create the owner. Try again."
		}
		m.form = m.form.SetError(message)
		return m, nil
	}

	m.showForm = false
	m.persons = append(m.persons, msg.person)
	m = m.applyFilter()
	for i, p := range m.filtered {
		if p.ID == msg.person.ID {
			m.cursor = i
			break
		}
	}
	return m, toastCmd("Owner created: "+msg.person.Name, toaster.StyleSuccess)
}

func closeCmd() tea.Msg {
	return CloseMsg{}
}

func toastCmd(message string, style toaster.Style) tea.Cmd {
	return func() tea.Msg {
		return mode.ShowToastMsg{Message: message, Style: style}
	}
}

// View renders the registration screen.
func (m Model) View() string {
	base := m.renderBase()

	if m.step == stepScope {
		if len(m.companies) == 0 {
			return base
		}
		return m.companyPicker.Overlay(base)
	}
	if m.showForm {
		return m.form.Overlay(base)
	}
	return base
}

func (m Model) renderBase() string {
	var b strings.Builder

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(styles.OverlayTitleColor).
		Render("Register Device")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(styles.TextMutedColor).Render("IMEI: " + m.imei))
	b.WriteString("\n\n")

	if m.step == stepScope {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.TextMutedColor).Render("Loading companies..."))
		return b.String()
	}

	b.WriteString(lipgloss.NewStyle().Foreground(styles.TextSecondaryColor).Render("Company: " + m.company.Name))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.BorderFocusColor).
		Padding(0, 1).
		Render(m.search.View()))
	b.WriteString("\n\n")

	b.WriteString(m.renderList())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	return b.String()
}

func (m Model) renderList() string {
	if m.loadingPersons {
		return lipgloss.NewStyle().Foreground(styles.TextMutedColor).Render(" Loading owners...")
	}
	if len(m.filtered) == 0 {
		return lipgloss.NewStyle().Foreground(styles.TextMutedColor).
			Render(" No owners match. Press ctrl+o to create one.")
	}

	idStyle := lipgloss.NewStyle().Foreground(styles.TextMutedColor)
	var b strings.Builder
	for i, p := range m.filtered {
		line := p.Name + "  " + idStyle.Render(p.Identification)
		if i == m.cursor {
			b.WriteString(styles.SelectionIndicatorStyle.Render(">"))
			b.WriteString(lipgloss.NewStyle().Bold(true).Render(p.Name))
			b.WriteString("  " + idStyle.Render(p.Identification))
		} else {
			b.WriteString(" " + line)
		}
		if i < len(m.filtered)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderStatusBar() string {
	parts := []string{"↑/↓ select", "enter register", "ctrl+o new owner", "esc cancel"}
	if m.submitting {
		parts = append([]string{"registering..."}, parts...)
	}
	return styles.StatusBarStyle.Render(strings.Join(parts, "  ·  "))
}
