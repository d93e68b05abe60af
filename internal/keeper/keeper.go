// Package keeper keeps a web audio player going: it resumes playback after
// pauses the user did not ask for, clicks "next" just before a track ends,
// and applies a persisted playback rate to every media element on the page.
//
// All state is owned by a single loop goroutine (Run). DOM events, timers
// and external requests are posted to that loop as closures, so no handler
// ever observes a half-applied change.
package keeper

import (
	"context"
	"time"

	"github.com/jfmyers9/playkeeper/internal/dom"
	"github.com/rs/zerolog"
)

// RateKey is the preference key for the playback rate
const RateKey = "mediaRate"

// Prefs is the host key/value store for persisted preferences
type Prefs interface {
	Float(ctx context.Context, key string, def float64) (float64, error)
	SetFloat(ctx context.Context, key string, value float64) error
}

// Keeper coordinates the locator, playback guard, auto-advance trigger,
// rate control and banner for one page load.
type Keeper struct {
	cfg    Config
	page   dom.Page
	prefs  Prefs
	sched  Scheduler
	logger zerolog.Logger
	ctx    context.Context

	state       State
	ready       bool
	audio       dom.Media
	playButton  dom.Element
	bound       map[string]struct{} // element ID + event group already bound
	lastReading *dom.Reading

	bannerText    string
	bannerVisible bool
	bannerGen     int
	bannerTimer   Timer
	advanceTimer  Timer

	tasks  chan func()
	done   chan struct{}
	status statusStore
}

// New creates a keeper for page. Nothing happens until Run is called.
func New(cfg Config, page dom.Page, prefs Prefs, logger zerolog.Logger) *Keeper {
	return newKeeper(cfg, page, prefs, timeScheduler{}, logger)
}

func newKeeper(cfg Config, page dom.Page, prefs Prefs, sched Scheduler, logger zerolog.Logger) *Keeper {
	return &Keeper{
		cfg:    cfg.withDefaults(),
		page:   page,
		prefs:  prefs,
		sched:  sched,
		logger: logger.With().Str("component", "keeper").Logger(),
		ctx:    context.Background(),
		state:  initialState(),
		bound:  make(map[string]struct{}),
		tasks:  make(chan func(), 256),
		done:   make(chan struct{}),
	}
}

// Run sets up listeners and observers, then serves events and timers until
// ctx is cancelled. It returns ctx.Err().
func (k *Keeper) Run(ctx context.Context) error {
	defer close(k.done)
	k.ctx = ctx

	k.safely("setup", k.setup)
	k.publish()

	guard := time.NewTicker(k.cfg.GuardInterval)
	defer guard.Stop()
	advance := time.NewTicker(k.cfg.AdvanceInterval)
	defer advance.Stop()
	defer k.stopTimers()

	for {
		select {
		case <-ctx.Done():
			k.logger.Info().Msg("Keeper stopped")
			return ctx.Err()
		case <-guard.C:
			k.safely("guard", k.guardCheck)
		case <-advance.C:
			k.safely("advance", k.pollAdvance)
		case fn := <-k.tasks:
			k.safely("task", fn)
		}
		k.publish()
	}
}

// Status returns the latest published snapshot. Safe for any goroutine.
func (k *Keeper) Status() Status {
	return k.status.get()
}

// PressKey feeds a hotkey to the keeper as if it was pressed on the page
func (k *Keeper) PressKey(key string) {
	k.post(func() { k.handleKey(key) })
}

// post queues fn for the keeper loop. Once Run has returned, fn is dropped.
func (k *Keeper) post(fn func()) {
	select {
	case k.tasks <- fn:
	case <-k.done:
	}
}

// safely runs fn, turning a panic into a logged no-op so a misbehaving page
// cannot take the keeper down
func (k *Keeper) safely(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			k.logger.Error().
				Str("task", name).
				Interface("panic", r).
				Msg("Recovered from keeper task failure")
		}
	}()
	fn()
}

// setup mirrors the page-load wiring: rate, locator, input, observation
func (k *Keeper) setup() {
	k.loadRate()
	k.applyRate()
	k.refresh()

	if err := k.page.OnKey(func(key string) {
		k.post(func() { k.handleKey(key) })
	}); err != nil {
		k.logger.Warn().Err(err).Msg("Failed to listen for keys")
	}

	if err := k.page.OnFocusChange(func(focused bool) {
		k.post(func() { k.handleFocus(focused) })
	}); err != nil {
		k.logger.Warn().Err(err).Msg("Failed to listen for focus changes")
	}

	k.observe()
	k.ready = true

	k.logger.Info().
		Float64("rate", k.state.PlaybackRate).
		Bool("audio", k.audio != nil).
		Bool("play_button", k.playButton != nil).
		Msg("Keeper ready")
}

// observe subscribes to structural changes in every frame reachable now.
// Frames added later are not observed.
func (k *Keeper) observe() {
	observed := 0
	for depth, doc := range dom.Documents(k.page) {
		if err := doc.Observe(func() { k.post(k.refresh) }); err != nil {
			k.logger.Debug().Err(err).Int("frame_depth", depth).Msg("Could not observe frame")
			continue
		}
		observed++
	}
	k.logger.Debug().Int("documents", observed).Msg("Observing structural changes")
}

func (k *Keeper) stopTimers() {
	if k.bannerTimer != nil {
		k.bannerTimer.Stop()
		k.bannerTimer = nil
	}
	if k.advanceTimer != nil {
		k.advanceTimer.Stop()
		k.advanceTimer = nil
	}
}
