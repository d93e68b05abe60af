package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/jfmyers9/playkeeper/internal/browser"
	"github.com/jfmyers9/playkeeper/internal/dom"
	"github.com/jfmyers9/playkeeper/internal/keeper"
	"github.com/jfmyers9/playkeeper/internal/prefs"
	"github.com/rs/zerolog"
)

// ErrAlreadyRunning is returned by New when another daemon holds the lock
// for the data directory
var ErrAlreadyRunning = errors.New("another playkeeper daemon is running")

// LockFile is the lock file name inside the data directory
const LockFile = "playkeeper.lock"

// Config holds daemon configuration
type Config struct {
	DataDir      string        // Preference database and lock file
	StartupDelay time.Duration // Wait after a page load before keeper setup
	RetryDelay   time.Duration // Wait before re-attaching after a failure
	Keeper       keeper.Config
	Browser      browser.Options
}

// Target is a page a keeper can run against, plus the event pump that feeds
// it
type Target interface {
	dom.Page
	Pump(ctx context.Context) error
}

// PageSource opens the player page, once per page load
type PageSource interface {
	OpenPage(ctx context.Context) (Target, error)
}

// Snapshot describes the daemon for the TUI
type Snapshot struct {
	RunID     string        // Id of the current page load, "" between loads
	PageLoads int           // Keepers started since the daemon started
	Active    bool          // A keeper is running
	Keeper    keeper.Status // Latest status of the current keeper
}

// Daemon keeps one keeper running per page load of the player tab
type Daemon struct {
	config Config
	prefs  *prefs.Store
	lock   *flock.Flock
	logger zerolog.Logger

	mu        sync.RWMutex
	current   *keeper.Keeper
	runID     string
	pageLoads int
}

// New takes the data directory lock and opens the preference store
func New(cfg Config, logger zerolog.Logger) (*Daemon, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.DataDir, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}

	store, err := prefs.Open(filepath.Join(cfg.DataDir, prefs.FileName))
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to open preferences: %w", err)
	}

	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}

	return &Daemon{
		config: cfg,
		prefs:  store,
		lock:   lock,
		logger: logger.With().Str("component", "daemon").Logger(),
	}, nil
}

// Run starts the daemon and blocks until shutdown signal received
func (d *Daemon) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		<-sigChan
		d.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Second signal forces exit
		<-sigChan
		d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	if err := d.RunContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// RunContext attaches to the browser and serves page loads until ctx is
// cancelled. Attach failures are retried.
func (d *Daemon) RunContext(ctx context.Context) error {
	d.logger.Info().Msg("Starting daemon")

	for {
		session, err := browser.Attach(ctx, d.config.Browser, d.logger)
		if err == nil {
			err = d.serve(ctx, sessionSource{session})
			if closeErr := session.Close(); closeErr != nil {
				d.logger.Warn().Err(closeErr).Msg("Failed to close browser session")
			}
		}
		if ctx.Err() != nil {
			d.logger.Info().Msg("Daemon stopped")
			return ctx.Err()
		}

		d.logger.Warn().
			Err(err).
			Dur("retry_in", d.config.RetryDelay).
			Msg("Browser unavailable")
		if !d.sleep(ctx, d.config.RetryDelay) {
			d.logger.Info().Msg("Daemon stopped")
			return ctx.Err()
		}
	}
}

// serve runs a fresh keeper for every page load. It returns on cancellation
// and on any error other than a reload, including ErrPageGone.
func (d *Daemon) serve(ctx context.Context, src PageSource) error {
	for {
		err := d.servePage(ctx, src)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, browser.ErrPageReloaded) {
			d.logger.Info().Msg("Page reloaded, restarting keeper")
			continue
		}
		return err
	}
}

// servePage runs one keeper against one page load
func (d *Daemon) servePage(ctx context.Context, src PageSource) error {
	page, err := src.OpenPage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open player page: %w", err)
	}

	runID := uuid.NewString()
	logger := d.logger.With().Str("run_id", runID).Logger()

	// The player builds its DOM after load
	if !d.sleep(ctx, d.config.StartupDelay) {
		return ctx.Err()
	}

	k := keeper.New(d.config.Keeper, page, d.prefs, logger)
	d.setCurrent(k, runID)
	defer d.setCurrent(nil, "")

	logger.Info().Msg("Page load attached")

	pageCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := k.Run(pageCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Keeper error")
		}
	}()

	err = page.Pump(pageCtx)
	cancel()
	wg.Wait()

	return err
}

func (d *Daemon) sleep(ctx context.Context, dur time.Duration) bool {
	if dur <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (d *Daemon) setCurrent(k *keeper.Keeper, runID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = k
	d.runID = runID
	if k != nil {
		d.pageLoads++
	}
}

// Snapshot returns the current state. Safe for concurrent use.
func (d *Daemon) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Snapshot{
		RunID:     d.runID,
		PageLoads: d.pageLoads,
		Active:    d.current != nil,
	}
	if d.current != nil {
		s.Keeper = d.current.Status()
	}
	return s
}

// PressKey forwards a hotkey to the current keeper. It reports false when no
// keeper is running.
func (d *Daemon) PressKey(key string) bool {
	d.mu.RLock()
	k := d.current
	d.mu.RUnlock()

	if k == nil {
		return false
	}
	k.PressKey(key)
	return true
}

// Shutdown closes the preference store and releases the lock
func (d *Daemon) Shutdown() error {
	d.logger.Info().Msg("Shutting down daemon")

	var errs []error
	if err := d.prefs.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close preferences: %w", err))
	}
	if err := d.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("failed to release lock: %w", err))
	}

	return errors.Join(errs...)
}

// sessionSource adapts a browser session to PageSource
type sessionSource struct {
	session *browser.Session
}

func (s sessionSource) OpenPage(ctx context.Context) (Target, error) {
	page, err := s.session.OpenPage(ctx)
	if err != nil {
		return nil, err
	}
	return page, nil
}
