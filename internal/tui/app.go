package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jfmyers9/playkeeper/internal/daemon"
	"github.com/jfmyers9/playkeeper/internal/keeper"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"
)

const maxRecentEvents = 6

// Config holds TUI configuration options
type Config struct {
	RefreshRate time.Duration // How often to refresh the display
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{
		RefreshRate: 250 * time.Millisecond,
	}
}

// Source is what the TUI displays and controls
type Source interface {
	Snapshot() daemon.Snapshot
	PressKey(key string) bool
}

// RecentEvent is a notable keeper change shown in the activity panel
type RecentEvent struct {
	Text string
	At   time.Time
}

// App is the TUI application mirroring the keeper
type App struct {
	app        *tview.Application
	nowPlaying *tview.TextView
	progress   *tview.TextView
	banner     *tview.TextView
	keeperView *tview.TextView
	recent     *tview.TextView
	status     *tview.TextView

	config Config
	source Source

	// Guards the fields below, shared by the ticker goroutine and draws
	mu sync.Mutex

	current daemon.Snapshot
	prev    *daemon.Snapshot

	// Ring buffer for recent events
	recentBuf   [maxRecentEvents]RecentEvent
	recentCount int

	// Last-rendered content for change detection
	lastNowPlaying string
	lastProgress   string
	lastBanner     string
	lastKeeper     string
	lastRecent     string

	// Cached widths to stabilize change detection
	lastBarWidth    int
	lastBannerWidth int

	cancelFunc context.CancelFunc
}

// New creates a new TUI application with default config
func New(source Source) *App {
	return NewWithConfig(source, DefaultConfig())
}

// NewWithConfig creates a new TUI application with the given config
func NewWithConfig(source Source, cfg Config) *App {
	a := &App{
		app:    tview.NewApplication(),
		config: cfg,
		source: source,
	}
	a.setupUI()
	return a
}

// setupUI creates the UI layout
func (a *App) setupUI() {
	a.nowPlaying = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.nowPlaying.SetBorder(true).
		SetTitle(" Audio ").
		SetTitleAlign(tview.AlignLeft)

	a.progress = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.progress.SetBorder(true)

	a.banner = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)

	a.keeperView = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.keeperView.SetBorder(true).
		SetTitle(" Keeper ").
		SetTitleAlign(tview.AlignLeft)

	a.recent = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.recent.SetBorder(true).
		SetTitle(" Activity ").
		SetTitleAlign(tview.AlignLeft)

	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]q:quit  ]:faster  [:slower  u:auto-unpause[-]")

	// Top: audio state, progress, banner mirror
	// Middle: keeper flags | recent activity
	// Footer: key help
	bottomRow := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.keeperView, 0, 1, false).
		AddItem(a.recent, 0, 1, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.nowPlaying, 0, 2, false).
		AddItem(a.progress, 3, 1, false).
		AddItem(a.banner, 1, 1, false).
		AddItem(bottomRow, 10, 1, false).
		AddItem(a.status, 1, 1, false)

	a.app.SetInputCapture(a.handleKeyEvent)
	a.app.SetRoot(flex, true)
}

// handleKeyEvent forwards the keeper hotkeys; everything else is left to
// tview
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	switch event.Rune() {
	case 'q', 'Q':
		a.app.Stop()
		return nil
	case ']':
		a.source.PressKey(keeper.KeyRateUp)
		return nil
	case '[':
		a.source.PressKey(keeper.KeyRateDown)
		return nil
	case 'u', 'U':
		a.source.PressKey(keeper.KeyToggleGuard)
		return nil
	}
	return event
}

// Run starts the TUI and blocks until the user quits or ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	ctx, a.cancelFunc = context.WithCancel(ctx)
	defer a.cancelFunc()

	go a.handleUpdates(ctx)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// handleUpdates polls the source on a single ticker, which is the only
// source of redraws
func (a *App) handleUpdates(ctx context.Context) {
	refreshRate := a.config.RefreshRate
	if refreshRate <= 0 {
		refreshRate = 250 * time.Millisecond
	}
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-ticker.C:
			a.observe(a.source.Snapshot(), time.Now())
			a.refresh()
		}
	}
}

// observe records a snapshot and turns differences into activity entries
func (a *App) observe(s daemon.Snapshot, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.prev != nil {
		for _, text := range describeChanges(*a.prev, s) {
			a.addRecentEvent(RecentEvent{Text: text, At: now})
		}
	}
	a.current = s
	a.prev = &s
}

// addRecentEvent writes into the ring buffer. Must be called with a.mu held.
func (a *App) addRecentEvent(e RecentEvent) {
	a.recentBuf[a.recentCount%maxRecentEvents] = e
	a.recentCount++
}

// getRecentEvents returns events most-recent-first. Must be called with
// a.mu held.
func (a *App) getRecentEvents() []RecentEvent {
	n := a.recentCount
	if n > maxRecentEvents {
		n = maxRecentEvents
	}
	result := make([]RecentEvent, n)
	for i := 0; i < n; i++ {
		idx := (a.recentCount - 1 - i) % maxRecentEvents
		result[i] = a.recentBuf[idx]
	}
	return result
}

// refresh updates all UI components
func (a *App) refresh() {
	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		a.updateNowPlaying()
		a.updateProgress()
		a.updateBanner()
		a.updateKeeper()
		a.updateRecent()
	})
}

func (a *App) updateNowPlaying() {
	text := renderNowPlaying(a.current)
	if text != a.lastNowPlaying {
		a.lastNowPlaying = text
		a.nowPlaying.SetText(text)
	}
}

func (a *App) updateProgress() {
	st := a.current.Keeper
	var text string

	if a.current.Active && st.HasReading {
		_, _, width, _ := a.progress.GetInnerRect()
		barWidth := width - 14 // Account for time display
		if barWidth > 0 {
			a.lastBarWidth = barWidth
		}
		if a.lastBarWidth < 10 {
			a.lastBarWidth = 10
		}

		bar := buildProgressBar(st.Audio.CurrentTime, st.Audio.Duration, a.lastBarWidth)
		text = fmt.Sprintf("%s %s %s", formatSeconds(st.Audio.CurrentTime), bar, formatSeconds(st.Audio.Duration))
	}

	if text != a.lastProgress {
		a.lastProgress = text
		a.progress.SetText(text)
	}
}

func (a *App) updateBanner() {
	_, _, width, _ := a.banner.GetInnerRect()
	if width > 0 {
		a.lastBannerWidth = width
	}

	var text string
	if a.current.Keeper.BannerVisible {
		text = "[black:white] " + tview.Escape(centerText(a.current.Keeper.Banner, a.lastBannerWidth-2)) + " [-:-]"
	}

	if text != a.lastBanner {
		a.lastBanner = text
		a.banner.SetText(text)
	}
}

func (a *App) updateKeeper() {
	text := renderKeeper(a.current)
	if text != a.lastKeeper {
		a.lastKeeper = text
		a.keeperView.SetText(text)
	}
}

func (a *App) updateRecent() {
	var sb strings.Builder

	events := a.getRecentEvents()
	if len(events) == 0 {
		sb.WriteString("[gray]Nothing yet[-]")
	}
	for i, e := range events {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("[gray]%s[-] %s", e.At.Format("15:04:05"), tview.Escape(e.Text)))
	}

	text := sb.String()
	if text != a.lastRecent {
		a.lastRecent = text
		a.recent.SetText(text)
	}
}

// Stop stops the TUI application
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

func renderNowPlaying(s daemon.Snapshot) string {
	switch {
	case !s.Active:
		return "\n\n[gray]Waiting for the player page[-]"
	case !s.Keeper.AudioTracked:
		return "\n\n[gray]No audio on the page[-]"
	case !s.Keeper.HasReading:
		return "\n\n[gray]Reading audio...[-]"
	}

	r := s.Keeper.Audio
	icon := "[green]▶ Playing[-]"
	switch {
	case r.Ended:
		icon = "[gray]■ Ended[-]"
	case r.Paused:
		icon = "[yellow]⏸ Paused[-]"
	}
	return fmt.Sprintf("\n%s\n\n[white::b]%.2f×[-:-:-]", icon, r.PlaybackRate)
}

func renderKeeper(s daemon.Snapshot) string {
	if !s.Active {
		return fmt.Sprintf("[gray]Idle[-]\nPage loads: %d", s.PageLoads)
	}
	st := s.Keeper

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Rate:          %.2f×\n", st.PlaybackRate))
	sb.WriteString(fmt.Sprintf("Auto-unpause:  %s\n", onOff(st.AutoUnpause)))
	sb.WriteString(fmt.Sprintf("Tab focused:   %s\n", yesNo(st.TabFocused)))
	sb.WriteString(fmt.Sprintf("User paused:   %s\n", yesNo(st.UserClickedPause)))
	sb.WriteString(fmt.Sprintf("Retries:       %d\n", st.RetryCount))
	sb.WriteString(fmt.Sprintf("Advancing:     %s\n", yesNo(st.AdvancePending)))
	sb.WriteString(fmt.Sprintf("Play button:   %s\n", yesNo(st.PlayButtonFound)))
	sb.WriteString(fmt.Sprintf("Page loads:    %d", s.PageLoads))
	return sb.String()
}

// describeChanges lists the user-visible differences between two snapshots
func describeChanges(prev, cur daemon.Snapshot) []string {
	var out []string

	if cur.PageLoads > prev.PageLoads && cur.PageLoads > 1 {
		out = append(out, "Page reloaded")
	}
	if !cur.Active || !prev.Active || cur.RunID != prev.RunID {
		return out
	}

	p, c := prev.Keeper, cur.Keeper
	if c.PlaybackRate != p.PlaybackRate {
		out = append(out, keeper.FormatRate(c.PlaybackRate))
	}
	if c.AutoUnpause != p.AutoUnpause {
		out = append(out, "Auto-unpause "+onOff(c.AutoUnpause))
	}
	if c.TabFocused != p.TabFocused {
		if c.TabFocused {
			out = append(out, "Tab focused")
		} else {
			out = append(out, "Tab unfocused")
		}
	}
	if c.RetryCount > p.RetryCount {
		out = append(out, fmt.Sprintf("Resumed playback (retry %d)", c.RetryCount))
	}
	if c.UserClickedPause && !p.UserClickedPause {
		out = append(out, "Manual pause")
	}
	if c.AdvancePending && !p.AdvancePending {
		out = append(out, "Advancing to next track")
	}
	if c.HasReading && p.HasReading && c.Audio.State() != p.Audio.State() {
		out = append(out, "Audio "+strings.ToLower(c.Audio.State().String()))
	}
	return out
}

// buildProgressBar creates a text-based progress bar
func buildProgressBar(position, duration float64, width int) string {
	if width <= 0 {
		return ""
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return strings.Repeat("-", width)
	}

	progress := position / duration
	if progress > 1 {
		progress = 1
	}
	if progress < 0 || math.IsNaN(progress) {
		progress = 0
	}

	filled := int(progress * float64(width))
	empty := width - filled

	return "[green]" + strings.Repeat("█", filled) + "[-]" +
		"[gray]" + strings.Repeat("░", empty) + "[-]"
}

// formatSeconds formats media time as MM:SS or H:MM:SS; unknown is --:--
func formatSeconds(sec float64) string {
	if math.IsNaN(sec) || math.IsInf(sec, 0) {
		return "--:--"
	}
	d := time.Duration(sec * float64(time.Second))
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// centerText pads text to width display columns, centered. Longer text is
// truncated.
func centerText(text string, width int) string {
	if width <= 0 {
		return text
	}
	w := runewidth.StringWidth(text)
	if w >= width {
		return runewidth.Truncate(text, width, "")
	}
	left := (width - w) / 2
	return strings.Repeat(" ", left) + text + strings.Repeat(" ", width-w-left)
}

func onOff(b bool) string {
	if b {
		return "ENABLED"
	}
	return "DISABLED"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
