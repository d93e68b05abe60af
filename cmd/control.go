package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jfmyers9/playkeeper/internal/browser"
	"github.com/jfmyers9/playkeeper/internal/config"
	"github.com/jfmyers9/playkeeper/internal/keeper"
	"github.com/jfmyers9/playkeeper/internal/prefs"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// controlTimeout bounds one-shot commands, including the browser attach
const controlTimeout = 10 * time.Second

var errNoControl = errors.New("control not found on the player page")

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Toggle play/pause in the player tab",
	Long: `Click the player's play/pause control once.

The browser must be reachable at browser.control_url (or launched when
browser.launch is set).`,
	RunE: runPlay,
}

// nextCmd represents the next command
var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Skip to the next track in the player tab",
	Long:  `Click the player's forward control once.`,
	RunE:  runNext,
}

// rateCmd represents the rate command
var rateCmd = &cobra.Command{
	Use:   "rate [delta|=value | --reset]",
	Short: "Show or change the stored playback rate",
	Long: `Show or change the stored playback rate.

Without arguments, prints the stored rate.
With a signed delta (+0.1, -0.05), adjusts the stored rate.
With =value (=1.75), sets it.
With --reset, forgets the stored rate so keeper.default_rate applies again.
Negative deltas go after --, as in: playkeeper rate -- -0.05

The rate is rounded to two decimals and never goes below keeper.min_rate.
When the browser is reachable the new rate is also applied to every audio
and video element in the player tab. A running daemon picks the stored
rate up on the next page load.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRate,
}

func init() {
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(rateCmd)

	rateCmd.Flags().Bool("reset", false, "Forget the stored rate and use keeper.default_rate")
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := clickControl(cfg, cfg.Player.PlayPauseSelector); err != nil {
		return fmt.Errorf("failed to toggle playback: %w", err)
	}
	return nil
}

func runNext(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := clickControl(cfg, cfg.Player.ForwardSelector); err != nil {
		return fmt.Errorf("failed to skip to next track: %w", err)
	}
	return nil
}

func clickControl(cfg *config.Config, selector string) error {
	return withPlayerPage(cfg, func(page *browser.Page) error {
		btn, err := keeper.LocateControl(page, selector)
		if err != nil {
			return err
		}
		if btn == nil {
			return fmt.Errorf("%w: %s", errNoControl, selector)
		}
		return btn.Click()
	})
}

func runRate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := prefs.Open(filepath.Join(cfg.DataDir, prefs.FileName))
	if err != nil {
		return fmt.Errorf("failed to open preferences: %w", err)
	}
	defer store.Close()

	reset, _ := cmd.Flags().GetBool("reset")
	rate, changed, err := updateRate(ctx, store, args, reset, cfg.Keeper.DefaultRate, cfg.Keeper.MinRate)
	if err != nil {
		return err
	}
	fmt.Println(strconv.FormatFloat(rate, 'f', 2, 64))
	if !changed {
		return nil
	}

	// Applying is best effort; the stored value is what counts
	err = withPlayerPage(cfg, func(page *browser.Page) error {
		if n := keeper.ApplyRate(page, rate); n == 0 {
			return errors.New("no media elements on the page")
		}
		return nil
	})
	if err != nil {
		fmt.Printf("Stored, not applied: %v\n", err)
	}
	return nil
}

// updateRate applies a rate argument or a reset to the stored rate and
// returns the effective rate. changed is false when the rate was only read.
func updateRate(ctx context.Context, store *prefs.Store, args []string, reset bool, defaultRate, minRate float64) (rate float64, changed bool, err error) {
	if reset {
		if len(args) > 0 {
			return 0, false, errors.New("--reset takes no rate argument")
		}
		if err := store.Delete(ctx, keeper.RateKey); err != nil {
			return 0, false, fmt.Errorf("failed to reset rate: %w", err)
		}
		return defaultRate, true, nil
	}

	current, err := store.Float(ctx, keeper.RateKey, defaultRate)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read stored rate: %w", err)
	}
	if len(args) == 0 {
		return current, false, nil
	}

	rate, err = parseRateArg(args[0], current, minRate)
	if err != nil {
		return 0, false, err
	}
	if err := store.SetFloat(ctx, keeper.RateKey, rate); err != nil {
		return 0, false, fmt.Errorf("failed to store rate: %w", err)
	}
	return rate, true, nil
}

// parseRateArg resolves "+d", "-d" or "=v" against the current rate
func parseRateArg(arg string, current, minRate float64) (float64, error) {
	if rest, ok := strings.CutPrefix(arg, "="); ok {
		v, err := strconv.ParseFloat(rest, 64)
		if err != nil || v <= 0 {
			return 0, fmt.Errorf("invalid rate: %s (must be a positive number)", rest)
		}
		return keeper.NextRate(v, 0, minRate), nil
	}

	if !strings.HasPrefix(arg, "+") && !strings.HasPrefix(arg, "-") {
		return 0, fmt.Errorf("invalid rate argument: %s (use +delta, -delta or =value)", arg)
	}
	delta, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate delta: %s", arg)
	}
	return keeper.NextRate(current, delta, minRate), nil
}

// withPlayerPage attaches to the browser, opens the player tab and calls fn
func withPlayerPage(cfg *config.Config, fn func(page *browser.Page) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()

	session, err := browser.Attach(ctx, browserOptions(cfg), zerolog.Nop())
	if err != nil {
		return fmt.Errorf("failed to reach browser: %w", err)
	}
	defer session.Close()

	page, err := session.OpenPage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open player page: %w", err)
	}
	return fn(page)
}
