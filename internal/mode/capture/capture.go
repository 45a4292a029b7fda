// Package capture implements the capture mode controller: manual entry,
// optical scanning, and verification of device identifiers.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"imeidesk/internal/capability"
	"imeidesk/internal/config"
	"imeidesk/internal/imei"
	"imeidesk/internal/keys"
	"imeidesk/internal/log"
	"imeidesk/internal/mode"
	"imeidesk/internal/pubsub"
	"imeidesk/internal/registry"
	"imeidesk/internal/scanner"
	"imeidesk/internal/ui/styles"
	"imeidesk/internal/ui/toaster"
)

// EnterRegistrationMsg requests switching to the registration flow for
// an identifier the registry does not know. Bubbles up to the app.
type EnterRegistrationMsg struct {
	IMEI string
}

// verifyResultMsg carries the registry's answer for one identifier.
type verifyResultMsg struct {
	imei   string
	result registry.VerificationResult
	err    error
}

// scanStartedMsg reports the outcome of an async Start.
type scanStartedMsg struct {
	err error
}

// scanStoppedMsg reports that Stop completed and the device is released.
type scanStoppedMsg struct{}

// Model holds the capture mode state.
type Model struct {
	services mode.Services
	keys     keys.KeyMap

	input     textinput.Model
	inlineErr string

	verifying bool
	result    *registry.VerificationResult

	scanning bool
	facing   string

	decodeListener *pubsub.ContinuousListener[scanner.DecodeEvent]
	fatalListener  *pubsub.ContinuousListener[scanner.FatalEvent]

	width  int
	height int
}

// New creates the capture mode controller. ctx bounds the broker
// subscriptions; cancel it on teardown.
func New(ctx context.Context, services mode.Services) Model {
	ti := textinput.New()
	ti.Placeholder = "enter or scan an IMEI"
	ti.Prompt = "> "
	ti.CharLimit = imei.MaxDigits
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(styles.TextPlaceholderColor)
	ti.Focus()

	m := Model{
		services: services,
		keys:     keys.DefaultKeyMap(),
		input:    ti,
		facing:   services.Config.Scan.Facing,
	}
	if m.facing == "" {
		m.facing = "rear"
	}
	if services.Scanner != nil {
		m.decodeListener = pubsub.NewContinuousListener(ctx, services.Scanner.Decodes())
		m.fatalListener = pubsub.NewContinuousListener(ctx, services.Scanner.Fatals())
	}
	return m
}

// Init returns initial commands for the mode.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.decodeListener != nil {
		cmds = append(cmds, m.decodeListener.Listen(), m.fatalListener.Listen())
	}
	return tea.Batch(cmds...)
}

// SetSize handles terminal resize events.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	m.input.Width = max(min(width-8, 40), 10)
	return m
}

// Value returns the current normalized input value.
func (m Model) Value() string {
	return m.input.Value()
}

// Scanning reports whether the scan view is open.
func (m Model) Scanning() bool {
	return m.scanning
}

// StartVerify submits an identifier programmatically, e.g. after a
// completed registration, so the panel reflects the registry's answer.
func (m Model) StartVerify(id string) (Model, tea.Cmd) {
	m.input.SetValue(imei.Normalize(id))
	m.input.CursorEnd()
	m.result = nil
	m.inlineErr = ""
	m.verifying = true
	return m, m.verifyCmd(m.input.Value())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case verifyResultMsg:
		return m.handleVerifyResult(msg)

	case scanStartedMsg:
		if msg.err != nil {
			m.scanning = false
			return m, toastCmd(scanErrorMessage(msg.err), toaster.StyleError)
		}
		m.scanning = true
		return m, nil

	case scanStoppedMsg:
		m.scanning = false
		return m, nil

	case pubsub.Event[scanner.DecodeEvent]:
		return m.handleDecode(msg.Payload)

	case pubsub.Event[scanner.FatalEvent]:
		return m.handleFatal(msg.Payload)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Enter):
		return m.submit()

	case key.Matches(msg, m.keys.ToggleScan):
		return m.toggleScan()

	case key.Matches(msg, m.keys.SwapCamera):
		return m.swapCamera()

	case key.Matches(msg, m.keys.Clear):
		m.input.SetValue("")
		m.inlineErr = ""
		m.result = nil
		return m, nil

	case key.Matches(msg, m.keys.Register):
		if m.canRegister() {
			id := m.result.IMEI
			return m, func() tea.Msg { return EnterRegistrationMsg{IMEI: id} }
		}
		return m, nil
	}

	// Everything else edits the input
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	// Normalization runs on every edit, never at submit time
	if v := imei.Normalize(m.input.Value()); v != m.input.Value() {
		m.input.SetValue(v)
		m.input.CursorEnd()
	}

	if m.input.Value() != before {
		m.inlineErr = ""
		m.result = nil
	}
	return m, cmd
}

// submit validates the input and issues a verify command. A verify
// already in flight makes Enter a no-op.
func (m Model) submit() (Model, tea.Cmd) {
	if m.verifying {
		return m, nil
	}

	value := m.input.Value()
	if err := imei.Validate(value); err != nil {
		m.inlineErr = err.Error()
		return m, nil
	}

	m.inlineErr = ""
	m.verifying = true
	return m, m.verifyCmd(value)
}

func (m Model) verifyCmd(id string) tea.Cmd {
	client := m.services.Registry
	return func() tea.Msg {
		result, err := client.Verify(context.Background(), id)
		return verifyResultMsg{imei: id, result: result, err: err}
	}
}

func (m Model) handleVerifyResult(msg verifyResultMsg) (Model, tea.Cmd) {
	m.verifying = false

	// The answer is 1:1 with the identifier that produced it; an edit
	// since submission makes it stale.
	if msg.imei != m.input.Value() {
		return m, nil
	}

	if msg.err != nil {
		rerr := registry.AsError(msg.err)
		log.ErrorErr(log.CatRegistry, "verify failed", msg.err, "kind", rerr.Kind.String())
		message := rerr.Message
		if message == "" {
			message = rerr.Kind.UserMessage()
		}
		return m, toastCmd("Verification failed: "+message, toaster.StyleError)
	}

	result := msg.result
	m.result = &result
	return m, nil
}

// toggleScan opens or closes the scan view.
func (m Model) toggleScan() (Model, tea.Cmd) {
	if m.services.Scanner == nil {
		return m, nil
	}
	if m.scanning {
		return m, m.stopScanCmd()
	}
	return m, m.startScanCmd(m.facing)
}

func (m Model) startScanCmd(facing string) tea.Cmd {
	s := m.services.Scanner
	return func() tea.Msg {
		return scanStartedMsg{err: s.Start(context.Background(), facing)}
	}
}

// CloseScan force-closes an open scan session. The app calls this on
// every path that hides the capture screen; the returned command blocks
// until the device is released.
func (m Model) CloseScan() (Model, tea.Cmd) {
	if !m.scanning {
		return m, nil
	}
	m.scanning = false
	return m, m.stopScanCmd()
}

// stopScanCmd stops the session off the update loop; Stop blocks until
// the device is released.
func (m Model) stopScanCmd() tea.Cmd {
	s := m.services.Scanner
	return func() tea.Msg {
		s.Stop()
		return scanStoppedMsg{}
	}
}

// swapCamera flips the facing preference, persists it, and restarts the
// session when one is open.
func (m Model) swapCamera() (Model, tea.Cmd) {
	if m.facing == "front" {
		m.facing = "rear"
	} else {
		m.facing = "front"
	}

	if m.services.ConfigPath != "" {
		if err := config.SaveScanFacing(m.services.ConfigPath, m.facing); err != nil {
			log.ErrorErr(log.CatConfig, "persist facing failed", err)
		}
	}

	cmds := []tea.Cmd{toastCmd("Camera: "+m.facing, toaster.StyleInfo)}
	if m.scanning {
		// Start releases the old session before opening the new device
		cmds = append(cmds, m.startScanCmd(m.facing))
	}
	return m, tea.Batch(cmds...)
}

// handleDecode routes one decoded payload through the extractor.
func (m Model) handleDecode(ev scanner.DecodeEvent) (Model, tea.Cmd) {
	listen := m.decodeListener.Listen()

	// A decode racing a just-closed session is dropped; only re-arm.
	if !m.scanning {
		return m, listen
	}

	candidate := imei.Extract(ev.Payload)
	switch candidate.Kind {
	case imei.MatchExact:
		m.input.SetValue(candidate.Digits)
		m.input.CursorEnd()
		m.inlineErr = ""
		m.result = nil
		m.scanning = false
		m.verifying = true
		log.Info(log.CatScan, "exact match", "digits", len(candidate.Digits))
		return m, tea.Batch(listen, m.stopThenVerifyCmd(candidate.Digits))

	case imei.MatchFallback:
		m.input.SetValue(candidate.Digits)
		m.input.CursorEnd()
		m.inlineErr = ""
		m.result = nil
		// Session stays open; the operator reviews before submitting
		return m, tea.Batch(listen,
			toastCmd("Low confidence - review before submitting", toaster.StyleWarn))

	default:
		return m, listen
	}
}

// stopThenVerifyCmd awaits device release, then verifies. Exact scan
// matches close the scan view before the verify fires.
func (m Model) stopThenVerifyCmd(id string) tea.Cmd {
	s := m.services.Scanner
	client := m.services.Registry
	return func() tea.Msg {
		s.Stop()
		result, err := client.Verify(context.Background(), id)
		return verifyResultMsg{imei: id, result: result, err: err}
	}
}

// handleFatal surfaces a device failure and returns to manual entry.
func (m Model) handleFatal(ev scanner.FatalEvent) (Model, tea.Cmd) {
	m.scanning = false
	m.input.Focus()
	return m, tea.Batch(
		m.fatalListener.Listen(),
		toastCmd(scanErrorMessage(ev.Err), toaster.StyleError),
	)
}

func (m Model) canRegister() bool {
	return m.result != nil && !m.result.Exists &&
		m.services.Caps.Has(capability.CapRegister)
}

func toastCmd(message string, style toaster.Style) tea.Cmd {
	return func() tea.Msg {
		return mode.ShowToastMsg{Message: message, Style: style}
	}
}

// scanErrorMessage picks the user-facing message for a scanner error.
func scanErrorMessage(err error) string {
	var serr *scanner.Error
	if errors.As(err, &serr) {
		return serr.Kind.UserMessage()
	}
	return "Camera error: " + err.Error()
}

// View renders the capture screen.
func (m Model) View() string {
	var b strings.Builder

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(styles.OverlayTitleColor).
		Render("IMEI Verification")
	b.WriteString(title)
	b.WriteString("\n\n")

	b.WriteString(m.renderInput())
	b.WriteString("\n")

	if m.inlineErr != "" {
		b.WriteString(styles.FormErrorStyle.Render(" " + m.inlineErr))
		b.WriteString("\n")
	}

	if m.scanning {
		b.WriteString("\n")
		b.WriteString(m.renderScanBox())
		b.WriteString("\n")
	}

	if m.verifying {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(styles.TextMutedColor).Render(" Verifying..."))
		b.WriteString("\n")
	} else if m.result != nil {
		b.WriteString("\n")
		b.WriteString(m.renderResult())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	return b.String()
}

func (m Model) renderInput() string {
	borderColor := styles.BorderFocusColor
	if m.scanning {
		borderColor = styles.BorderDefaultColor
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Render(m.input.View())
}

func (m Model) renderScanBox() string {
	width := min(max(m.width-4, 24), 60)
	label := fmt.Sprintf("📷 Scanning (%s camera)", m.facing)
	hint := "point at the IMEI barcode, ctrl+s stops"
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.BorderFocusColor).
		Width(width).
		Padding(0, 1).
		Render(label + "\n" + lipgloss.NewStyle().Foreground(styles.TextMutedColor).Render(hint))
}

func (m Model) renderResult() string {
	r := m.result

	if r.Exists && r.Device != nil {
		d := r.Device
		lines := []string{
			lipgloss.NewStyle().Bold(true).Foreground(styles.StatusSuccessColor).Render("✅ Authorized device"),
			"IMEI:       " + d.IMEI,
			"Owner:      " + d.Owner.Name,
			"Company:    " + d.Company.Name,
			"Registered: " + d.RegisteredAt.Format("2006-01-02"),
		}
		return styles.PanelAuthorizedStyle.Render(strings.Join(lines, "\n"))
	}

	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(styles.StatusWarningColor).Render("⚠️ Unknown device"),
		"IMEI: " + r.IMEI,
		"This identifier is not in the registry.",
	}
	if m.services.Caps.Has(capability.CapRegister) {
		lines = append(lines,
			lipgloss.NewStyle().Foreground(styles.TextMutedColor).Render("Press ctrl+r to register it."))
	}
	return styles.PanelUnknownStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatusBar() string {
	parts := []string{"enter verify", "ctrl+s scan", "ctrl+u clear", "? help"}
	if m.canRegister() {
		parts = append([]string{"ctrl+r register"}, parts...)
	}
	return styles.StatusBarStyle.Render(strings.Join(parts, "  ·  "))
}
