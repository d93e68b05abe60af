package keeper

import (
	"testing"
	"time"
)

func TestAdvance_ClicksForwardOnceAfterDelay(t *testing.T) {
	h := newHarness(t)
	h.audio.CurrentTime = 298.5

	h.k.pollAdvance()
	if !h.k.state.AdvancePending {
		t.Fatal("AdvancePending should be set inside the advance window")
	}
	if h.forward.Clicks != 0 {
		t.Fatal("forward clicked before the delay")
	}

	// A second crossing while pending schedules nothing new
	h.advance(time.Second)
	h.audio.CurrentTime = 299.5
	h.k.pollAdvance()

	h.advance(time.Second)
	if h.forward.Clicks != 1 {
		t.Errorf("forward clicks = %d, want 1", h.forward.Clicks)
	}
	if h.k.state.AdvancePending {
		t.Error("AdvancePending should be cleared after the click")
	}

	h.advance(5 * time.Second)
	if h.forward.Clicks != 1 {
		t.Errorf("forward clicks = %d after waiting, want still 1", h.forward.Clicks)
	}
}

func TestAdvance_NotNearEnd(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		current  float64
		ended    bool
	}{
		{"plenty left", 300, 100, false},
		{"exactly at threshold", 300, 298, false},
		{"unknown duration", nan(), 5, false},
		{"position past end", 300, 301, false},
		{"already ended", 300, 299.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.audio.Duration = tt.duration
			h.audio.CurrentTime = tt.current
			h.audio.Ended = tt.ended

			h.k.pollAdvance()
			h.advance(3 * time.Second)
			if h.k.state.AdvancePending {
				t.Error("AdvancePending set, want false")
			}
			if h.forward.Clicks != 0 {
				t.Errorf("forward clicks = %d, want 0", h.forward.Clicks)
			}
		})
	}
}

func TestAdvance_NoAudio(t *testing.T) {
	h := newHarness(t)
	h.frame.Doc().Remove(h.audio)
	h.drain()

	h.k.pollAdvance()
	if h.k.state.AdvancePending {
		t.Error("AdvancePending set without tracked audio")
	}
}

func TestAdvance_MissingForwardClearsPending(t *testing.T) {
	h := newHarness(t)
	h.page.Doc().Remove(h.forward)
	h.drain()
	h.audio.CurrentTime = 299

	h.k.pollAdvance()
	h.advance(2 * time.Second)
	if h.k.state.AdvancePending {
		t.Error("AdvancePending should clear even when the forward control is missing")
	}
}

func TestAdvance_GuardYieldsWhilePending(t *testing.T) {
	h := newHarness(t)
	h.unfocus()
	h.audio.CurrentTime = 299

	h.k.pollAdvance()
	// Player paused itself at the very end; the guard must not undo the advance
	h.audio.Pause()
	h.drain()
	h.advance(500 * time.Millisecond)
	h.sweep(3)
	if h.play.Clicks != 0 {
		t.Errorf("play clicks = %d during pending advance, want 0", h.play.Clicks)
	}

	h.advance(2 * time.Second)
	if h.forward.Clicks != 1 {
		t.Errorf("forward clicks = %d, want 1", h.forward.Clicks)
	}
}
