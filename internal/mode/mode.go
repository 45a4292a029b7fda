// Package mode defines the application modes and the shared services
// injected into them.
package mode

import (
	"imeidesk/internal/capability"
	"imeidesk/internal/config"
	"imeidesk/internal/registry"
	"imeidesk/internal/scanner"
	"imeidesk/internal/ui/toaster"
)

// AppMode identifies the current application mode.
type AppMode int

const (
	ModeCapture AppMode = iota
	ModeRegister
)

// Services contains shared dependencies injected into mode models.
type Services struct {
	Registry   registry.Client
	Scanner    *scanner.Scanner
	Config     *config.Config
	ConfigPath string
	Caps       capability.Set
}

// ShowToastMsg requests a toast notification at the app level.
type ShowToastMsg struct {
	Message string
	Style   toaster.Style
}
