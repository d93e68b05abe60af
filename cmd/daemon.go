package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jfmyers9/playkeeper/internal/browser"
	"github.com/jfmyers9/playkeeper/internal/config"
	"github.com/jfmyers9/playkeeper/internal/daemon"
	"github.com/jfmyers9/playkeeper/internal/keeper"
	"github.com/jfmyers9/playkeeper/internal/tui"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	daemonLogFile  string
	daemonLogLevel string
	daemonDataDir  string
	daemonTUI      bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:     "run",
	Aliases: []string{"daemon"},
	Short:   "Run the playback keeper daemon",
	Long: `Run the daemon that attaches to the browser and keeps the player tab playing.

The daemon will:
- Attach to a running browser over the DevTools protocol (or launch one)
- Find the player tab, or open player.page_url when none matches
- Start a fresh keeper on every page load
- Resume unrequested pauses, auto-advance near the end of a track and
  apply the stored playback rate
- Retry when the browser goes away
- Handle graceful shutdown on SIGINT/SIGTERM

The daemon runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file (useful for launchd and systemd).
Use --tui for a terminal view of the keeper.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Command-line flags
	runCmd.Flags().StringVar(&daemonLogFile, "log-file", "", "Log file path (default: stderr)")
	runCmd.Flags().StringVar(&daemonLogLevel, "log-level", "", "Log level (debug, info, warn, error) (default: config log_level)")
	runCmd.Flags().StringVar(&daemonDataDir, "data-dir", "", "Data directory for preferences and the lock file (default: ~/.local/share/playkeeper)")
	runCmd.Flags().BoolVar(&daemonTUI, "tui", false, "Show the terminal UI while the daemon runs")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if daemonDataDir != "" {
		cfg.DataDir = daemonDataDir
	}
	level := daemonLogLevel
	if level == "" {
		level = cfg.LogLevel
	}

	// The TUI owns the terminal, so logs go to the file or nowhere
	logFile := daemonLogFile
	var logger zerolog.Logger
	if daemonTUI && logFile == "" {
		logger = zerolog.New(io.Discard)
	} else {
		logger = setupLogger(logFile, level)
	}

	logger.Info().
		Str("version", version).
		Str("data_dir", cfg.DataDir).
		Msg("Starting playkeeper daemon")

	d, err := daemon.New(daemonConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if daemonTUI {
		err = runWithTUI(d)
	} else {
		err = d.Run()
	}

	// Graceful shutdown
	if shutdownErr := d.Shutdown(); shutdownErr != nil {
		logger.Error().Err(shutdownErr).Msg("Error during shutdown")
		if err == nil {
			err = shutdownErr
		}
	}
	if err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}

	logger.Info().Msg("Daemon stopped")
	return nil
}

// runWithTUI serves page loads in the background until the TUI quits
func runWithTUI(d *daemon.Daemon) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- d.RunContext(ctx) }()

	uiErr := tui.New(d).Run(ctx)
	cancel()

	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return uiErr
}

// daemonConfig maps the loaded configuration onto the daemon, keeper and
// browser settings
func daemonConfig(cfg *config.Config) daemon.Config {
	return daemon.Config{
		DataDir:      cfg.DataDir,
		StartupDelay: cfg.Keeper.StartupDelay,
		Keeper:       keeperConfig(cfg),
		Browser:      browserOptions(cfg),
	}
}

func keeperConfig(cfg *config.Config) keeper.Config {
	return keeper.Config{
		PlayPauseSelector:   cfg.Player.PlayPauseSelector,
		ForwardSelector:     cfg.Player.ForwardSelector,
		DefaultRate:         cfg.Keeper.DefaultRate,
		RateStep:            cfg.Keeper.RateStep,
		MinRate:             cfg.Keeper.MinRate,
		AdvanceThreshold:    cfg.Keeper.AdvanceThreshold,
		AdvanceDelay:        cfg.Keeper.AdvanceDelay,
		GuardInterval:       cfg.Keeper.GuardInterval,
		AdvanceInterval:     cfg.Keeper.AdvanceInterval,
		PauseDebounce:       cfg.Keeper.PauseDebounce,
		BannerDuration:      cfg.Keeper.BannerDuration,
		MaxUnfocusedRetries: cfg.Keeper.MaxUnfocusedRetries,
	}
}

func browserOptions(cfg *config.Config) browser.Options {
	return browser.Options{
		ControlURL:   cfg.Browser.ControlURL,
		Launch:       cfg.Browser.Launch,
		Headless:     cfg.Browser.Headless,
		Bin:          cfg.Browser.Bin,
		UserDataDir:  cfg.Browser.UserDataDir,
		PageMatch:    cfg.Player.PageMatch,
		PageURL:      cfg.Player.PageURL,
		PumpInterval: cfg.Browser.PumpInterval,
	}
}

// parseLevel maps a level name to a zerolog level, defaulting to info
func parseLevel(logLevel string) zerolog.Level {
	switch logLevel {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	// Set up output
	var output *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	return newLogger(output, parseLevel(logLevel), isatty.IsTerminal(output.Fd()))
}

// newLogger writes JSON, or pretty console output when w is a terminal
func newLogger(w io.Writer, level zerolog.Level, terminal bool) zerolog.Logger {
	if terminal {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}
