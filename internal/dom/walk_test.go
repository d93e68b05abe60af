package dom_test

import (
	"errors"
	"math"
	"testing"

	"github.com/jfmyers9/playkeeper/internal/dom"
	"github.com/jfmyers9/playkeeper/internal/dom/memdom"
)

func TestFirstMedia_SkipsInaccessibleFrame(t *testing.T) {
	top := memdom.NewWindow()
	blocked := top.AddFrame()
	blocked.Inaccessible = true
	// Audio inside the blocked frame must never be reached
	blocked.Doc().AddMedia("audio", 10)

	player := top.AddFrame()
	want := player.Doc().AddMedia("audio", 120)

	got, depth := dom.FirstMedia(top, "audio")
	if got == nil {
		t.Fatal("FirstMedia returned nil, want audio from accessible frame")
	}
	if got.ID() != want.ID() {
		t.Errorf("FirstMedia returned %s, want %s", got.ID(), want.ID())
	}
	if depth != 1 {
		t.Errorf("depth = %d, want 1", depth)
	}
}

func TestFirstMedia_DocumentOrder(t *testing.T) {
	top := memdom.NewWindow()
	outer := top.AddFrame()
	inner := outer.AddFrame()
	deep := inner.Doc().AddMedia("audio", 30)
	sibling := top.AddFrame()
	sibling.Doc().AddMedia("audio", 30)

	got, depth := dom.FirstMedia(top, "audio")
	if got == nil || got.ID() != deep.ID() {
		t.Fatalf("FirstMedia should prefer the depth-first match")
	}
	if depth != 2 {
		t.Errorf("depth = %d, want 2", depth)
	}
}

func TestFirstMedia_TopDocumentWins(t *testing.T) {
	top := memdom.NewWindow()
	child := top.AddFrame()
	child.Doc().AddMedia("audio", 30)
	own := top.Doc().AddMedia("audio", 30)

	got, depth := dom.FirstMedia(top, "audio")
	if got == nil || got.ID() != own.ID() || depth != 0 {
		t.Errorf("FirstMedia = (%v, %d), want top document audio at depth 0", got, depth)
	}
}

func TestFirstMedia_None(t *testing.T) {
	top := memdom.NewWindow()
	top.AddFrame().Doc().Add("div")

	got, depth := dom.FirstMedia(top, "audio")
	if got != nil || depth != -1 {
		t.Errorf("FirstMedia = (%v, %d), want (nil, -1)", got, depth)
	}
}

func TestDocuments_StopsEarlyAndRestarts(t *testing.T) {
	top := memdom.NewWindow()
	top.AddFrame()
	top.AddFrame()

	count := func(limit int) int {
		n := 0
		for range dom.Documents(top) {
			n++
			if n == limit {
				break
			}
		}
		return n
	}

	if got := count(1); got != 1 {
		t.Errorf("early break visited %d documents, want 1", got)
	}
	// The sequence is restartable
	if got := count(100); got != 3 {
		t.Errorf("full walk visited %d documents, want 3", got)
	}
}

func TestDocuments_NilRoot(t *testing.T) {
	for range dom.Documents(nil) {
		t.Fatal("nil root should yield nothing")
	}
}

func TestAllMedia_AudioAndVideo(t *testing.T) {
	top := memdom.NewWindow()
	top.Doc().AddMedia("video", 10)
	frame := top.AddFrame()
	frame.Doc().AddMedia("audio", 10)
	frame.Doc().Add("div")
	blocked := top.AddFrame()
	blocked.Inaccessible = true

	if got := len(dom.AllMedia(top, "audio, video")); got != 2 {
		t.Errorf("AllMedia found %d elements, want 2", got)
	}
}

func TestInaccessibleError(t *testing.T) {
	w := memdom.NewWindow()
	w.Inaccessible = true
	_, err := w.Document()
	if !errors.Is(err, dom.ErrInaccessible) {
		t.Errorf("Document() error = %v, want ErrInaccessible", err)
	}
}

func TestReading_NearEnd(t *testing.T) {
	tests := []struct {
		name     string
		reading  dom.Reading
		want     bool
		wantOK   bool
		wantLeft float64
	}{
		{"well before end", dom.Reading{Duration: 100, CurrentTime: 10}, false, true, 90},
		{"inside window", dom.Reading{Duration: 100, CurrentTime: 98.5}, true, true, 1.5},
		{"exactly at threshold", dom.Reading{Duration: 100, CurrentTime: 98}, false, true, 2},
		{"unknown duration", dom.Reading{Duration: math.NaN(), CurrentTime: 5}, false, false, 0},
		{"infinite stream", dom.Reading{Duration: math.Inf(1), CurrentTime: 5}, false, false, 0},
		{"past the end", dom.Reading{Duration: 100, CurrentTime: 101}, false, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.reading.NearEnd(2.0); got != tt.want {
				t.Errorf("NearEnd() = %v, want %v", got, tt.want)
			}
			left, ok := tt.reading.Remaining()
			if ok != tt.wantOK {
				t.Errorf("Remaining() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && math.Abs(left-tt.wantLeft) > 1e-9 {
				t.Errorf("Remaining() = %v, want %v", left, tt.wantLeft)
			}
		})
	}
}

func TestReading_InEndWindow(t *testing.T) {
	tests := []struct {
		name    string
		reading dom.Reading
		want    bool
	}{
		{"well before end", dom.Reading{Duration: 100, CurrentTime: 10}, false},
		{"inside window", dom.Reading{Duration: 100, CurrentTime: 98.5}, true},
		{"exactly at threshold", dom.Reading{Duration: 100, CurrentTime: 98}, false},
		{"past the end", dom.Reading{Duration: 100, CurrentTime: 101}, true},
		{"unknown duration", dom.Reading{Duration: math.NaN(), CurrentTime: 5}, false},
		{"infinite stream", dom.Reading{Duration: math.Inf(1), CurrentTime: 5}, false},
		{"unknown position", dom.Reading{Duration: 100, CurrentTime: math.NaN()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.reading.InEndWindow(2.0); got != tt.want {
				t.Errorf("InEndWindow() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlayState_String(t *testing.T) {
	tests := []struct {
		state dom.PlayState
		want  string
	}{
		{dom.StateStopped, "stopped"},
		{dom.StatePlaying, "playing"},
		{dom.StatePaused, "paused"},
		{dom.PlayState(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("PlayState.String() = %q, want %q", got, tt.want)
			}
		})
	}
}
