// Package app contains the root application model.
package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"imeidesk/internal/cachemanager"
	"imeidesk/internal/capability"
	"imeidesk/internal/config"
	"imeidesk/internal/keys"
	"imeidesk/internal/log"
	"imeidesk/internal/mode"
	"imeidesk/internal/mode/capture"
	"imeidesk/internal/mode/register"
	"imeidesk/internal/pubsub"
	"imeidesk/internal/registry"
	"imeidesk/internal/scanner"
	"imeidesk/internal/ui/help"
	"imeidesk/internal/ui/toaster"
	"imeidesk/internal/watcher"
)

// dbChangedMsg reports that the local registry database changed on disk.
type dbChangedMsg struct{}

// Options carries the dependencies the root model is built from.
type Options struct {
	Client     registry.Client
	Scanner    *scanner.Scanner
	Config     config.Config
	ConfigPath string

	// PersonsCache is flushed when the watcher reports a database
	// change, so stale owner lists never survive an external edit.
	PersonsCache cachemanager.CacheManager[string, []registry.Person]

	// DBPath is the local registry file to watch. Empty disables
	// auto-refresh, as does Config.AutoRefresh=false.
	DBPath string
}

// Model is the root application state.
type Model struct {
	currentMode mode.AppMode
	capture     capture.Model
	register    register.Model

	services mode.Services
	keys     keys.KeyMap

	width  int
	height int

	// Centralized toaster - owned by app, not individual modes
	toaster toaster.Model

	helpVisible bool
	help        help.Model

	personsCache cachemanager.CacheManager[string, []registry.Person]

	watcherHandle *watcher.Watcher
	watcherCh     <-chan struct{}

	// modeCtx bounds every broker subscription the modes create.
	modeCtx    context.Context
	modeCancel context.CancelFunc
}

// New creates the root application model. The capability set is computed
// here, once, from the operator role; render sites never look at role
// strings again.
func New(opts Options) Model {
	services := mode.Services{
		Registry:   opts.Client,
		Scanner:    opts.Scanner,
		Config:     &opts.Config,
		ConfigPath: opts.ConfigPath,
		Caps:       capability.FromRole(opts.Config.Operator.Role),
	}

	var (
		watcherHandle *watcher.Watcher
		watcherCh     <-chan struct{}
	)
	if opts.Config.AutoRefresh && opts.DBPath != "" {
		w, err := watcher.New(watcher.DefaultConfig(opts.DBPath))
		if err == nil {
			if ch, err := w.Start(); err == nil {
				watcherHandle = w
				watcherCh = ch
			} else {
				_ = w.Stop()
			}
		}
		// Watcher init errors are not fatal; the app works without
		// auto-refresh.
	}

	modeCtx, modeCancel := context.WithCancel(context.Background())

	return Model{
		currentMode:   mode.ModeCapture,
		capture:       capture.New(modeCtx, services),
		services:      services,
		keys:          keys.DefaultKeyMap(),
		help:          help.New(opts.Config.UI.MarkdownStyle),
		personsCache:  opts.PersonsCache,
		watcherHandle: watcherHandle,
		watcherCh:     watcherCh,
		modeCtx:       modeCtx,
		modeCancel:    modeCancel,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.capture.Init()}
	if m.watcherCh != nil {
		cmds = append(cmds, m.listenWatcher())
	}
	return tea.Batch(cmds...)
}

// listenWatcher bridges the watcher channel into the update loop.
func (m Model) listenWatcher() tea.Cmd {
	ch := m.watcherCh
	ctx := m.modeCtx
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			return dbChangedMsg{}
		}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		m.capture = m.capture.SetSize(msg.Width, msg.Height)
		m.register = m.register.SetSize(msg.Width, msg.Height)
		m.toaster = m.toaster.SetSize(msg.Width, msg.Height)
		m.help = m.help.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}

		if m.helpVisible {
			if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Escape) {
				m.helpVisible = false
			}
			// The overlay swallows everything else
			return m, nil
		}

		// Help opens from capture only; in the registration flow "?"
		// belongs to the search query.
		if m.currentMode == mode.ModeCapture && key.Matches(msg, m.keys.Help) {
			m.helpVisible = true
			return m, nil
		}

	case capture.EnterRegistrationMsg:
		log.Info(log.CatMode, "entering registration", "digits", len(msg.IMEI))

		// Hiding the capture screen closes any open scan session; the
		// stop command blocks until the device is released.
		var stopCmd tea.Cmd
		m.capture, stopCmd = m.capture.CloseScan()

		m.currentMode = mode.ModeRegister
		m.register = register.New(m.services, msg.IMEI).SetSize(m.width, m.height)
		return m, tea.Batch(stopCmd, m.register.Init())

	case register.RegisteredMsg:
		log.Info(log.CatMode, "registration complete", "owner", msg.Device.Owner.ID)
		m.currentMode = mode.ModeCapture
		m.register = register.Model{}

		// Re-verify so the panel reflects the registry's answer, not
		// local assumptions.
		var verifyCmd tea.Cmd
		m.capture, verifyCmd = m.capture.StartVerify(msg.IMEI)
		m.toaster = m.toaster.Show("Registered to "+msg.Device.Owner.Name, toaster.StyleSuccess)
		return m, tea.Batch(verifyCmd, toaster.ScheduleDismiss(m.toastTimeout()))

	case register.CloseMsg:
		log.Info(log.CatMode, "registration abandoned")
		m.currentMode = mode.ModeCapture
		m.register = register.Model{}
		return m, nil

	case mode.ShowToastMsg:
		m.toaster = m.toaster.Show(msg.Message, msg.Style)
		return m, toaster.ScheduleDismiss(m.toastTimeout())

	case toaster.DismissMsg:
		m.toaster = m.toaster.Hide()
		return m, nil

	case pubsub.Event[scanner.DecodeEvent], pubsub.Event[scanner.FatalEvent]:
		// Scan events always route to capture, whatever mode is
		// showing, so the listener chain stays armed across switches.
		var cmd tea.Cmd
		m.capture, cmd = m.capture.Update(msg)
		return m, cmd

	case dbChangedMsg:
		if m.personsCache != nil {
			if err := m.personsCache.Flush(context.Background()); err != nil {
				log.Warn(log.CatCache, "flush persons cache failed", "error", err)
			}
		}
		log.Debug(log.CatWatcher, "registry database changed, cache flushed")
		return m, m.listenWatcher()
	}

	// Delegate everything else to the active mode
	switch m.currentMode {
	case mode.ModeRegister:
		var cmd tea.Cmd
		m.register, cmd = m.register.Update(msg)
		return m, cmd

	default:
		var cmd tea.Cmd
		m.capture, cmd = m.capture.Update(msg)
		return m, cmd
	}
}

func (m Model) toastTimeout() time.Duration {
	if t := m.services.Config.UI.ToastTimeout; t > 0 {
		return time.Duration(t) * time.Second
	}
	return 4 * time.Second
}

// View implements tea.Model.
func (m Model) View() string {
	var view string
	switch m.currentMode {
	case mode.ModeRegister:
		view = m.register.View()
	default:
		view = m.capture.View()
	}

	if m.toaster.Visible() {
		view = m.toaster.Overlay(view, m.width, m.height)
	}

	if m.helpVisible {
		view = m.help.Overlay(view)
	}

	return view
}

// Close releases resources held by the application. The scanner is
// stopped before return, so no decoder process outlives the program.
func (m *Model) Close() error {
	m.modeCancel()

	if m.services.Scanner != nil {
		m.services.Scanner.Close()
	}

	if m.watcherHandle != nil {
		if err := m.watcherHandle.Stop(); err != nil {
			return err
		}
	}
	return nil
}
