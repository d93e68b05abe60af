package keeper

import (
	"testing"
	"time"
)

func TestObserve_ReplacementAudioBoundOnce(t *testing.T) {
	h := newHarness(t)
	doc := h.frame.Doc()

	doc.Remove(h.audio)
	h.drain()
	if h.k.audio != nil {
		t.Fatal("removed audio still tracked")
	}

	next := doc.AddMedia("audio", 120)
	h.drain()
	if h.k.audio == nil || h.k.audio.ID() != next.ID() {
		t.Fatal("replacement audio not tracked")
	}
	if next.Rate != 1.5 {
		t.Errorf("replacement rate = %v, want 1.5", next.Rate)
	}

	// Unrelated mutations re-run the locator without re-binding
	h.page.Doc().Add("div", "toast")
	doc.Add("span")
	h.drain()
	if n := next.ListenerCount("pause"); n != 1 {
		t.Errorf("pause listeners = %d, want 1", n)
	}
	if n := next.ListenerCount("play"); n != 1 {
		t.Errorf("play listeners = %d, want 1", n)
	}
}

func TestObserve_OldAudioEventsIgnored(t *testing.T) {
	h := newHarness(t)
	h.unfocus()
	old := h.audio
	doc := h.frame.Doc()

	doc.Remove(old)
	next := doc.AddMedia("audio", 120)
	next.Paused = false
	h.drain()

	old.Pause()
	h.drain()
	h.advance(time.Second)
	if h.play.Clicks != 0 {
		t.Errorf("clicks = %d after a pause on untracked audio, want 0", h.play.Clicks)
	}

	h.k.state.UserClickedPause = true
	old.Play()
	h.drain()
	if !h.k.state.UserClickedPause {
		t.Error("play on untracked audio cleared UserClickedPause")
	}
}

func TestObserve_FramesAddedLaterNotObserved(t *testing.T) {
	h := newHarness(t)
	if n := h.page.Doc().ObserverCount(); n != 1 {
		t.Errorf("top observers = %d, want 1", n)
	}
	if n := h.frame.Doc().ObserverCount(); n != 1 {
		t.Errorf("frame observers = %d, want 1", n)
	}

	late := h.page.AddFrame()
	late.Doc().AddMedia("audio", 60)
	h.drain()
	if n := late.Doc().ObserverCount(); n != 0 {
		t.Errorf("late frame observers = %d, want 0", n)
	}
}

func TestObserve_InaccessibleFrameSkipped(t *testing.T) {
	h := newHarness(t)
	blocked := h.frame.AddFrame()
	blocked.Doc().AddMedia("audio", 60)
	blocked.Inaccessible = true

	// Forces a locator pass over the grown tree
	h.page.Doc().Add("div")
	h.drain()
	if h.k.audio == nil || h.k.audio.ID() != h.audio.ID() {
		t.Error("tracked audio changed after adding an inaccessible frame")
	}
}

func TestLocateAudio_TopDocumentWins(t *testing.T) {
	h := newHarness(t)
	top := h.page.Doc().AddMedia("audio", 90)

	got, depth := LocateAudio(h.page)
	if got == nil || got.ID() != top.ID() {
		t.Fatal("expected the top document audio")
	}
	if depth != 0 {
		t.Errorf("depth = %d, want 0", depth)
	}
}
