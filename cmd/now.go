/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/jfmyers9/playkeeper/internal/browser"
	"github.com/jfmyers9/playkeeper/internal/config"
	"github.com/jfmyers9/playkeeper/internal/dom"
	"github.com/jfmyers9/playkeeper/internal/keeper"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

// nowCmd represents the now command
var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Display the audio playing in the player tab",
	Long: `Read the tracked audio element in the player tab and display its position.

The output format can be customized in ~/.config/playkeeper/config.yaml
using a Go template. Available fields: .State, .Position, .Duration, .Rate,
.Remaining, .PositionSeconds, .DurationSeconds

Exit codes:
  0 - Audio is currently playing
  1 - No audio, paused, or browser not reachable`,
	RunE: runNow,
}

// NowPlaying is the template data for the now command
type NowPlaying struct {
	State           string  // playing, paused or stopped
	Position        string  // mm:ss or h:mm:ss
	Duration        string  // --:-- while unknown
	Remaining       string  // --:-- while unknown
	Rate            string  // Two decimals
	PositionSeconds float64 // Raw currentTime
	DurationSeconds float64 // Raw duration, NaN while unknown
}

func init() {
	rootCmd.AddCommand(nowCmd)

	// Add format flag to override config
	nowCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	// Add width flag to set fixed output width
	nowCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled, overrides config)")
	// Add marquee flag to enable scrolling
	nowCmd.Flags().Bool("marquee", false, "Enable marquee scrolling for long text (overrides config)")
}

func runNow(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Check for format flag override
	formatFlag, _ := cmd.Flags().GetString("format")
	if formatFlag != "" {
		cfg.OutputFormat = formatFlag
	}

	var reading dom.Reading
	found := false
	err = withPlayerPage(cfg, func(page *browser.Page) error {
		audio, _ := keeper.LocateAudio(page)
		if audio == nil {
			return nil
		}
		r, err := audio.Reading()
		if err != nil {
			return err
		}
		reading, found = r, true
		return nil
	})
	if err != nil {
		// If the browser or tab is unavailable, exit with code 1
		return fmt.Errorf("failed to read audio: %w", err)
	}

	// If not playing, exit with code 1
	if !found || reading.State() != dom.StatePlaying {
		os.Exit(1)
		return nil
	}

	// Format and print output
	output, err := formatNow(newNowPlaying(reading), cfg.OutputFormat)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	// Apply width padding/marquee if requested
	width, _ := cmd.Flags().GetInt("width")
	if width == 0 {
		width = cfg.OutputWidth
	}

	marquee, _ := cmd.Flags().GetBool("marquee")
	if !marquee && !cmd.Flags().Changed("marquee") {
		// Flag not set, use config default
		marquee = cfg.MarqueeEnabled
	}

	if width > 0 {
		if marquee {
			output = marqueeText(output, width, cfg.MarqueeSpeed, cfg.MarqueeSeparator)
		} else {
			output = padToWidth(output, width)
		}
	}

	fmt.Println(output)
	return nil
}

// newNowPlaying converts a reading into template data
func newNowPlaying(r dom.Reading) NowPlaying {
	remaining := "--:--"
	if left, ok := r.Remaining(); ok {
		remaining = formatClock(left)
	}
	return NowPlaying{
		State:           r.State().String(),
		Position:        formatClock(r.CurrentTime),
		Duration:        formatClock(r.Duration),
		Remaining:       remaining,
		Rate:            strconv.FormatFloat(r.PlaybackRate, 'f', 2, 64),
		PositionSeconds: r.CurrentTime,
		DurationSeconds: r.Duration,
	}
}

// formatClock renders seconds as mm:ss, or h:mm:ss past an hour
func formatClock(sec float64) string {
	if math.IsNaN(sec) || math.IsInf(sec, 0) {
		return "--:--"
	}
	d := time.Duration(math.Max(0, sec)) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// formatNow applies the template to the playback data
func formatNow(now NowPlaying, templateStr string) (string, error) {
	tmpl, err := template.New("output").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, now); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}

// padToWidth pads or truncates text to width display columns, ending a
// truncated text with "...". A width <= 0 leaves text unchanged.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	currentWidth := runewidth.StringWidth(text)

	if currentWidth > width {
		ellipsis := "..."
		ellipsisWidth := runewidth.StringWidth(ellipsis)

		if width <= ellipsisWidth {
			return runewidth.Truncate(ellipsis, width, "")
		}

		truncated := runewidth.Truncate(text, width-ellipsisWidth, "")
		result := truncated + ellipsis

		// A wide rune at the cut can leave the result a column short
		resultWidth := runewidth.StringWidth(result)
		if resultWidth < width {
			return result + strings.Repeat(" ", width-resultWidth)
		} else if resultWidth > width {
			return runewidth.Truncate(result, width, "")
		}
		return result
	} else if currentWidth < width {
		return text + strings.Repeat(" ", width-currentWidth)
	}

	return text
}

// extractWindow returns width display columns of text starting at column
// startPos, padded with spaces. A wide rune straddling startPos is dropped.
func extractWindow(text string, startPos int, width int) string {
	if width <= 0 {
		return ""
	}

	var result []rune
	pos := 0
	resultWidth := 0

	for _, r := range text {
		rw := runewidth.RuneWidth(r)
		if pos < startPos {
			pos += rw
			continue
		}
		if resultWidth+rw > width {
			break
		}
		result = append(result, r)
		resultWidth += rw
	}

	if resultWidth < width {
		return string(result) + strings.Repeat(" ", width-resultWidth)
	}
	return string(result)
}

// marqueeText scrolls text that is wider than width by speed columns per
// second, looping through separator. Text that fits is padded instead.
func marqueeText(text string, width int, speed int, separator string) string {
	return marqueeFrame(text, width, speed, separator, time.Now().Unix())
}

// marqueeFrame is the marquee window at unix time now. Each status bar
// refresh renders one frame, so scrolling advances in steps.
func marqueeFrame(text string, width int, speed int, separator string, now int64) string {
	if width <= 0 {
		return text
	}
	if runewidth.StringWidth(text) <= width {
		return padToWidth(text, width)
	}

	period := runewidth.StringWidth(text + separator)
	position := int(now * int64(speed) % int64(period))
	if position < 0 {
		position += period
	}

	// The second copy covers any window that starts within one period
	return extractWindow(text+separator+text, position, width)
}
