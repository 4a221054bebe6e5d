package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/halcyonsec/triage-console/internal/api"
	"github.com/halcyonsec/triage-console/internal/bus"
	"github.com/halcyonsec/triage-console/internal/store"
	"github.com/halcyonsec/triage-console/internal/ui"
)

var (
	browseTheme string
	forceTUI    bool
)

// browseCmd launches the interactive console.
var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse alerts and cases in the terminal UI",
	Long: `Browse opens the interactive console with an alerts tab and a cases tab.

When --api-url and --workspace are set, pages are fetched from the remote
triage API. Otherwise the console runs offline against the local SQLite
database (see the seed and import commands to populate it).

Examples:
  # Offline mode against the local database
  triage-console browse

  # Against a remote workspace
  triage-console browse --api-url https://triage.example.com --api-token $TOKEN --workspace ws_123

  # Light theme
  triage-console browse --theme light`,
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)

	browseCmd.Flags().StringVar(&browseTheme, "theme", "dark", "Color theme (dark, light)")
	browseCmd.Flags().BoolVar(&forceTUI, "force-tui", false, "Skip the terminal capability check")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()

	logger := log.New(os.Stderr, "[browse] ", log.LstdFlags)

	if !forceTUI && !canInitializeTUI() {
		return fmt.Errorf("terminal does not support the TUI (try --force-tui, or use 'triage-console list')")
	}
	if cols, _ := getTerminalSize(); cols > 0 && cols < 80 {
		logger.Printf("Terminal is %d columns wide; the console is designed for 80 or more", cols)
	}

	// Route all logging to a file while the TUI owns the terminal.
	uiLogger, closeLog := setupUILogger(logger)
	defer closeLog()

	var (
		source   ui.Source
		identity string
		title    string
	)
	if config.API.URL != "" {
		client, err := api.NewClient(api.Config{
			BaseURL:   config.API.URL,
			Token:     config.API.Token,
			Workspace: config.API.Workspace,
			Timeout:   config.API.Timeout,
		}, uiLogger)
		if err != nil {
			return fmt.Errorf("failed to initialize API client: %w", err)
		}
		if err := client.HealthCheck(ctx); err != nil {
			logger.Printf("API health check failed: %v (continuing, pages will retry)", err)
		}
		source = client
		identity = client.Workspace()
		title = fmt.Sprintf("%s @ %s", client.Workspace(), config.API.URL)
	} else {
		st, err := store.NewStore(config.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		defer st.Close()
		source = ui.StoreSource{Store: st}
		identity = "local"
		title = filepath.Base(config.Database.Path)
	}

	eventBus := bus.NewBus(config.Redis.URL, uiLogger)
	defer eventBus.Close()

	console, err := ui.NewConsole(ctx, source, eventBus, ui.Options{
		PageSize: config.Page.Size,
		Identity: identity,
		Title:    title,
		Theme:    browseTheme,
		Logger:   uiLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize console: %w", err)
	}

	if err := console.Run(); err != nil {
		return fmt.Errorf("console error: %w", err)
	}
	return nil
}

// canInitializeTUI tests whether tcell can take over the terminal.
func canInitializeTUI() bool {
	screen, err := tcell.NewScreen()
	if err != nil {
		return false
	}
	if err := screen.Init(); err != nil {
		return false
	}
	screen.Fini()
	return true
}

// setupUILogger returns a file-backed logger for use while the TUI is active,
// falling back to a silent logger when the log file cannot be created.
func setupUILogger(logger *log.Logger) (*log.Logger, func()) {
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		logger.Printf("Warning: could not create logs directory: %v", err)
		return log.New(io.Discard, "", 0), func() {}
	}
	logPath := filepath.Join(logDir, "triage-console-ui.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.Printf("Warning: could not create UI log file at %s: %v", logPath, err)
		return log.New(io.Discard, "", 0), func() {}
	}
	uiLogger := log.New(logFile, "[UI] ", log.LstdFlags)
	uiLogger.Printf("UI logger initialized (path=%s)", logPath)
	return uiLogger, func() { logFile.Close() }
}
