package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"imeidesk/internal/app"
	"imeidesk/internal/cachemanager"
	"imeidesk/internal/config"
	"imeidesk/internal/log"
	"imeidesk/internal/registry"
	"imeidesk/internal/scanner"
	"imeidesk/internal/tracing"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop and appearing as
	// garbage text in input fields.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var (
	version   = "dev"
	cfgFile   string
	debugMode bool
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:     "imeidesk",
	Short:   "A terminal ui for IMEI capture and registration",
	Long:    `A terminal user interface for a device intake desk: capture an IMEI by manual entry or camera scan, verify it against the device registry, and register unknown devices to an owner.`,
	Version: version,
	RunE:    runApp,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/imeidesk/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"write debug logs to ~/.config/imeidesk/debug.log")
	rootCmd.Flags().Bool("no-auto-refresh", false,
		"disable person list refresh when the local registry changes")
	rootCmd.Flags().String("registry", "",
		"registry mode override: \"local\" or \"http\"")

	_ = viper.BindPFlag("registry.mode", rootCmd.Flags().Lookup("registry"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("auto_refresh", defaults.AutoRefresh)
	viper.SetDefault("debounce_ms", defaults.DebounceMs)
	viper.SetDefault("ui.show_status_bar", defaults.UI.ShowStatusBar)
	viper.SetDefault("ui.markdown_style", defaults.UI.MarkdownStyle)
	viper.SetDefault("ui.toast_timeout", defaults.UI.ToastTimeout)
	viper.SetDefault("operator.role", defaults.Operator.Role)
	viper.SetDefault("registry.mode", defaults.Registry.Mode)
	viper.SetDefault("registry.endpoint", defaults.Registry.Endpoint)
	viper.SetDefault("registry.timeout_ms", defaults.Registry.TimeoutMs)
	viper.SetDefault("registry.cache_ttl_ms", defaults.Registry.CacheTTLMs)
	viper.SetDefault("scan.binary", defaults.Scan.Binary)
	viper.SetDefault("scan.facing", defaults.Scan.Facing)
	viper.SetDefault("scan.min_decode_interval_ms", defaults.Scan.MinDecodeIntervalMs)
	viper.SetDefault("scan.settle_ms", defaults.Scan.SettleMs)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .imeidesk/config.yaml (current directory)
		// 2. ~/.config/imeidesk/config.yaml (user config)
		if _, err := os.Stat(".imeidesk/config.yaml"); err == nil {
			viper.SetConfigFile(".imeidesk/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "imeidesk"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create a default one
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			home, homeErr := os.UserHomeDir()
			if homeErr == nil {
				defaultPath := filepath.Join(home, ".config", "imeidesk", "config.yaml")
				if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
					viper.SetConfigFile(defaultPath)
					_ = viper.ReadInConfig()
				}
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)

	if debugMode || os.Getenv("IMEIDESK_DEBUG") != "" {
		if home, err := os.UserHomeDir(); err == nil {
			if _, initErr := log.Init(filepath.Join(home, ".config", "imeidesk", "debug.log")); initErr == nil {
				log.SetEnabled(true)
			}
		}
	}
}

// clientStack is the fully decorated registry client plus the resources
// behind it that need explicit teardown.
type clientStack struct {
	client  registry.Client
	local   *registry.LocalRegistry // nil for the http backend
	persons cachemanager.CacheManager[string, []registry.Person]
	dbPath  string
	close   func()
}

// newClientStack builds the registry client the same way for the TUI and
// the one-shot commands: backend, then cache, then tracing.
func newClientStack(cfg config.Config) (*clientStack, error) {
	stack := &clientStack{close: func() {}}

	switch cfg.Registry.Mode {
	case "http":
		stack.client = registry.NewHTTPClient(cfg.Registry.Endpoint, cfg.Registry.Timeout())

	default: // local
		path := cfg.Registry.LocalPath
		if path == "" {
			path = config.DefaultLocalRegistryPath()
		}
		local, err := registry.NewLocalRegistry(path)
		if err != nil {
			return nil, fmt.Errorf("opening local registry: %w", err)
		}
		stack.client = local
		stack.local = local
		stack.dbPath = local.Path()
	}

	ttl := cfg.Registry.CacheTTL()
	stack.persons = cachemanager.NewInMemoryCacheManager[string, []registry.Person]("persons", ttl, ttl)
	stack.client = registry.NewCachedClient(stack.client, stack.persons, ttl)

	closers := []func(){}
	if stack.local != nil {
		local := stack.local
		closers = append(closers, func() { _ = local.Close() })
	}

	if cfg.Tracing.Enabled {
		tracingCfg := cfg.Tracing
		if tracingCfg.Exporter == "file" && tracingCfg.FilePath == "" {
			tracingCfg.FilePath = config.DefaultTracesFilePath()
		}
		provider, err := tracing.NewProvider(tracingCfg)
		if err != nil {
			log.ErrorErr(log.CatConfig, "tracing init failed", err)
		} else {
			stack.client = registry.NewTracedClient(stack.client, provider.Tracer())
			closers = append(closers, func() {
				_ = provider.Shutdown(context.Background())
			})
		}
	}

	stack.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return stack, nil
}

func runApp(cmd *cobra.Command, args []string) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if noAutoRefresh, _ := cmd.Flags().GetBool("no-auto-refresh"); noAutoRefresh {
		cfg.AutoRefresh = false
	}

	stack, err := newClientStack(cfg)
	if err != nil {
		return err
	}
	defer stack.close()

	sc := scanner.New(scanner.NewZbarDevice(cfg.Scan.Binary), cfg.Scan)

	configFilePath := viper.ConfigFileUsed()

	zone.NewGlobal()
	model := app.New(app.Options{
		Client:       stack.client,
		Scanner:      sc,
		Config:       cfg,
		ConfigPath:   configFilePath,
		PersonsCache: stack.persons,
		DBPath:       stack.dbPath,
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err = p.Run()

	if closeErr := model.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
