package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/jfmyers9/playkeeper/internal/config"
	"github.com/jfmyers9/playkeeper/internal/prefs"
	"github.com/spf13/cobra"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show every configuration setting after defaults, the config file
(~/.config/playkeeper/config.yaml) and PLAYKEEPER_* environment variables
have been applied.`,
	RunE: runConfigShow,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the current settings",
	Long: `Write ~/.config/playkeeper/config.yaml with the current player, browser
and output settings. Use --force to overwrite an existing file.`,
	RunE: runConfigInit,
}

// configPrefsCmd represents the config prefs command
var configPrefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show stored preferences",
	Long:  `Show the preferences stored in the data directory, such as the playback rate.`,
	RunE:  runConfigPrefs,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPrefsCmd)

	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	settings, err := config.Settings()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	source := config.ConfigFileUsed()
	if source == "" {
		source = "(none, defaults and environment only)"
	}
	fmt.Printf("Config file: %s\n", source)
	fmt.Println(renderSettings(settings))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	path := filepath.Join(config.GetConfigDir(), "config.yaml")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("✓ Wrote %s\n", path)
	return nil
}

func runConfigPrefs(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
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

	entries, err := store.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to read preferences: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No stored preferences")
		return nil
	}
	fmt.Println(renderPrefs(entries))
	return nil
}

// renderSettings renders settings as a two column table
func renderSettings(settings []config.Setting) string {
	rows := make([][]string, 0, len(settings))
	for _, s := range settings {
		rows = append(rows, []string{s.Key, s.Value})
	}
	return renderTable([]string{"Key", "Value"}, rows, nil)
}

// renderPrefs renders stored preferences in key order
func renderPrefs(entries []prefs.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Key, e.Value, e.UpdatedAt.Local().Format(time.DateTime)})
	}
	return renderTable([]string{"Key", "Value", "Updated"}, rows, []text.Align{text.AlignLeft, text.AlignRight})
}

// renderTable draws rows under headers. aligns sets per-column alignment;
// missing entries default to left.
func renderTable(headers []string, rows [][]string, aligns []text.Align) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) {
			align = aligns[i]
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
