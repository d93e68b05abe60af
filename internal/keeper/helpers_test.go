package keeper

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jfmyers9/playkeeper/internal/dom/memdom"
	"github.com/rs/zerolog"
)

// fakeScheduler is a manual clock. Timers fire in deadline order when the
// test advances time.
type fakeScheduler struct {
	now    time.Duration
	timers []*fakeTimer
	onFire func()
}

type fakeTimer struct {
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	t := &fakeTimer{at: s.now + d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) advance(d time.Duration) {
	target := s.now + d
	for {
		var next *fakeTimer
		for _, t := range s.timers {
			if t.fired || t.stopped || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			break
		}
		s.now = next.at
		next.fired = true
		next.fn()
		if s.onFire != nil {
			s.onFire()
		}
	}
	s.now = target
}

// memPrefs is a map-backed Prefs
type memPrefs struct {
	values map[string]float64
	setErr error
	writes int
}

func newMemPrefs() *memPrefs {
	return &memPrefs{values: make(map[string]float64)}
}

func (p *memPrefs) Float(_ context.Context, key string, def float64) (float64, error) {
	if v, ok := p.values[key]; ok {
		return v, nil
	}
	return def, nil
}

func (p *memPrefs) SetFloat(_ context.Context, key string, value float64) error {
	p.writes++
	if p.setErr != nil {
		return p.setErr
	}
	p.values[key] = value
	return nil
}

var errPrefsDown = errors.New("prefs unavailable")

// harness wires a keeper to an in-memory page: a top document with the
// player controls and a nested frame holding the audio element
type harness struct {
	t       *testing.T
	k       *Keeper
	sched   *fakeScheduler
	prefs   *memPrefs
	page    *memdom.Window
	frame   *memdom.Window
	audio   *memdom.Element
	play    *memdom.Element
	forward *memdom.Element
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, newMemPrefs())
}

func newHarnessWith(t *testing.T, prefs *memPrefs) *harness {
	t.Helper()

	page := memdom.NewWindow()
	play := page.Doc().Add("button", "mediaPlayer__playPause")
	forward := page.Doc().Add("button", "mediaPlayer__button--forward")
	frame := page.AddFrame()
	audio := frame.Doc().AddMedia("audio", 300)
	audio.Paused = false
	audio.CurrentTime = 10

	sched := &fakeScheduler{}
	h := &harness{
		t:       t,
		sched:   sched,
		prefs:   prefs,
		page:    page,
		frame:   frame,
		audio:   audio,
		play:    play,
		forward: forward,
	}
	sched.onFire = h.drain

	h.k = newKeeper(DefaultConfig(), page, prefs, sched, zerolog.Nop())
	h.k.setup()
	h.drain()
	return h
}

// drain runs every queued loop task, including ones queued while draining
func (h *harness) drain() {
	for {
		select {
		case fn := <-h.k.tasks:
			fn()
		default:
			return
		}
	}
}

func (h *harness) advance(d time.Duration) {
	h.sched.advance(d)
	h.drain()
}

func (h *harness) unfocus() {
	h.page.SetFocus(false)
	h.drain()
}

func (h *harness) sweep(n int) {
	for i := 0; i < n; i++ {
		h.k.guardCheck()
	}
}

func nan() float64 {
	return math.NaN()
}
