/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "playkeeper",
	Short: "Keeps a browser audio player playing",
	Long: `playkeeper keeps a web audio player going in a Chromium browser.

It attaches to the browser over the DevTools protocol and, for the player tab:
  - resumes playback when the player pauses without being asked to
  - clicks "next" just before a track ends
  - applies a persisted playback rate to every audio and video element

Hotkeys in the player tab: ] and [ change the rate, u toggles auto-unpause.

It also provides one-shot commands (play, next, rate, now) for scripts
and status bars.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
