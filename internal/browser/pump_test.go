package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/rs/zerolog"
)

// drainFunc adapts a function to the drainer interface
type drainFunc func() (string, error)

func (f drainFunc) drain(context.Context) (string, error) { return f() }

// queue returns a drainer that replays results in order, repeating the last
func queue(results ...drainResult) (drainer, *int) {
	calls := 0
	return drainFunc(func() (string, error) {
		r := results[len(results)-1]
		if calls < len(results) {
			r = results[calls]
		}
		calls++
		return r.raw, r.err
	}), &calls
}

type drainResult struct {
	raw string
	err error
}

func TestDecodeEvents(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      []probeEvent
		wantAlive bool
		wantErr   bool
	}{
		{
			name:      "probe gone",
			raw:       "",
			wantAlive: false,
		},
		{
			name:      "empty queue",
			raw:       "[]",
			want:      []probeEvent{},
			wantAlive: true,
		},
		{
			name: "mixed events",
			raw: `[{"kind":"key","key":"]"},{"kind":"focus","focused":false},` +
				`{"kind":"event","type":"pause","id":"a1"},{"kind":"mutation"}]`,
			want: []probeEvent{
				{Kind: "key", Key: "]"},
				{Kind: "focus", Focused: false},
				{Kind: "event", Type: "pause", ID: "a1"},
				{Kind: "mutation"},
			},
			wantAlive: true,
		},
		{
			name:      "space key",
			raw:       `[{"kind":"key","key":" "}]`,
			want:      []probeEvent{{Kind: "key", Key: " "}},
			wantAlive: true,
		},
		{
			name:      "garbage",
			raw:       `{not json`,
			wantAlive: true,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, alive, err := decodeEvents(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeEvents() error = %v, wantErr %v", err, tt.wantErr)
			}
			if alive != tt.wantAlive {
				t.Errorf("alive = %v, want %v", alive, tt.wantAlive)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("decodeEvents() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPumpDispatch(t *testing.T) {
	p := NewPump(0, zerolog.Nop())

	var keys []string
	var focus []bool
	pauses := 0
	plays := 0
	mutations := 0
	otherFrame := 0

	p.onKey(func(k string) { keys = append(keys, k) })
	p.onFocus(func(f bool) { focus = append(focus, f) })
	p.onElement("audio-1", "pause", func() { pauses++ })
	p.onElement("audio-1", "play", func() { plays++ })
	p.onMutation("probe-top", func() { mutations++ })
	p.onMutation("probe-frame", func() { otherFrame++ })

	p.dispatch("probe-top", []probeEvent{
		{Kind: eventKey, Key: "u"},
		{Kind: eventFocus, Focused: false},
		{Kind: eventElement, Type: "pause", ID: "audio-1"},
		{Kind: eventElement, Type: "pause", ID: "audio-2"},
		{Kind: eventElement, Type: "ended", ID: "audio-1"},
		{Kind: eventMutation},
		{Kind: "unknown"},
		{Kind: eventFocus, Focused: true},
	})

	if !reflect.DeepEqual(keys, []string{"u"}) {
		t.Errorf("keys = %v", keys)
	}
	if !reflect.DeepEqual(focus, []bool{false, true}) {
		t.Errorf("focus = %v, want [false true]", focus)
	}
	if pauses != 1 {
		t.Errorf("pauses = %d, want 1 (other elements ignored)", pauses)
	}
	if plays != 0 {
		t.Errorf("plays = %d, want 0", plays)
	}
	if mutations != 1 {
		t.Errorf("mutations = %d, want 1", mutations)
	}
	if otherFrame != 0 {
		t.Errorf("mutation from one document reached another's observer")
	}
}

func TestPumpDispatch_HandlerMayRegister(t *testing.T) {
	p := NewPump(0, zerolog.Nop())
	calls := 0

	// Registering from inside a handler must not deadlock
	p.onMutation("probe", func() {
		calls++
		p.onElement("late", "play", func() {})
	})
	p.dispatch("probe", []probeEvent{{Kind: eventMutation}, {Kind: eventMutation}})

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if n := len(p.handlers["late"]["play"]); n != 2 {
		t.Errorf("late handlers = %d, want 2", n)
	}
}

func TestPumpProbes(t *testing.T) {
	p := NewPump(0, zerolog.Nop())
	if p.interval != DefaultPumpInterval {
		t.Errorf("interval = %v, want %v", p.interval, DefaultPumpInterval)
	}

	p.addProbe("top", nil, true)
	p.addProbe("frame", nil, false)
	p.addProbe("frame", nil, false)
	if n := p.probeCount(); n != 2 {
		t.Fatalf("probeCount = %d, want 2", n)
	}

	called := false
	p.onMutation("frame", func() { called = true })
	p.removeProbe("frame")
	if n := p.probeCount(); n != 1 {
		t.Errorf("probeCount = %d after removal, want 1", n)
	}

	p.dispatch("frame", []probeEvent{{Kind: eventMutation}})
	if called {
		t.Error("observer of a removed document still called")
	}
}

func TestDrainAll_TopReloaded(t *testing.T) {
	p := NewPump(0, zerolog.Nop())
	top, _ := queue(drainResult{raw: "[]"}, drainResult{raw: ""})
	p.addProbe("top", top, true)

	if err := p.drainAll(context.Background()); err != nil {
		t.Fatalf("first drain: %v", err)
	}
	if err := p.drainAll(context.Background()); !errors.Is(err, ErrPageReloaded) {
		t.Fatalf("drainAll() = %v, want ErrPageReloaded", err)
	}
}

func TestDrainAll_DispatchesEvents(t *testing.T) {
	p := NewPump(0, zerolog.Nop())
	top, _ := queue(drainResult{raw: `[{"kind":"key","key":"]"}]`}, drainResult{raw: "[]"})
	p.addProbe("top", top, true)

	var keys []string
	p.onKey(func(k string) { keys = append(keys, k) })

	for i := 0; i < 2; i++ {
		if err := p.drainAll(context.Background()); err != nil {
			t.Fatalf("drain %d: %v", i, err)
		}
	}
	if !reflect.DeepEqual(keys, []string{"]"}) {
		t.Errorf("keys = %v, want []]", keys)
	}
}

func TestDrainAll_FrameErrorRemovesDocument(t *testing.T) {
	p := NewPump(0, zerolog.Nop())
	top, _ := queue(drainResult{raw: "[]"})
	frame, calls := queue(drainResult{err: errors.New("Cannot find context with specified id")})
	gone, _ := queue(drainResult{raw: ""})
	p.addProbe("top", top, true)
	p.addProbe("frame", frame, false)
	p.addProbe("navigated", gone, false)

	if err := p.drainAll(context.Background()); err != nil {
		t.Fatalf("drainAll() = %v, want nil", err)
	}
	if n := p.probeCount(); n != 1 {
		t.Errorf("probeCount = %d, want 1", n)
	}
	if err := p.drainAll(context.Background()); err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if *calls != 1 {
		t.Errorf("removed frame drained %d times, want 1", *calls)
	}
}

func TestDrainAll_TopUnreachable(t *testing.T) {
	p := NewPump(0, zerolog.Nop())
	top, calls := queue(drainResult{err: context.DeadlineExceeded})
	p.addProbe("top", top, true)

	for i := 1; i < maxTopFailures; i++ {
		if err := p.drainAll(context.Background()); err != nil {
			t.Fatalf("failure %d surfaced early: %v", i, err)
		}
	}
	err := p.drainAll(context.Background())
	if !errors.Is(err, ErrPageGone) {
		t.Fatalf("drainAll() = %v, want ErrPageGone", err)
	}
	if *calls != maxTopFailures {
		t.Errorf("calls = %d, want %d", *calls, maxTopFailures)
	}
}

func TestDrainAll_TopRecoveryResetsFailures(t *testing.T) {
	p := NewPump(0, zerolog.Nop())
	timeout := drainResult{err: context.DeadlineExceeded}
	results := make([]drainResult, 0, 2*maxTopFailures)
	for i := 1; i < maxTopFailures; i++ {
		results = append(results, timeout)
	}
	results = append(results, drainResult{raw: "[]"})
	for i := 1; i < maxTopFailures; i++ {
		results = append(results, timeout)
	}
	results = append(results, drainResult{raw: "[]"})
	top, _ := queue(results...)
	p.addProbe("top", top, true)

	for i := range results {
		if err := p.drainAll(context.Background()); err != nil {
			t.Fatalf("drain %d: %v", i, err)
		}
	}
}

func TestDrainAll_ConnectionLost(t *testing.T) {
	p := NewPump(0, zerolog.Nop())
	top, calls := queue(drainResult{err: fmt.Errorf("write: %w", net.ErrClosed)})
	p.addProbe("top", top, true)

	if err := p.drainAll(context.Background()); !errors.Is(err, ErrPageGone) {
		t.Fatalf("drainAll() = %v, want ErrPageGone", err)
	}
	if *calls != 1 {
		t.Errorf("calls = %d, want 1", *calls)
	}
}

func TestDrainAll_Cancelled(t *testing.T) {
	p := NewPump(0, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	top, _ := queue(drainResult{err: context.Canceled})
	p.addProbe("top", top, true)

	if err := p.drainAll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("drainAll() = %v, want context.Canceled", err)
	}
	if p.topFailures != 0 {
		t.Errorf("topFailures = %d, want 0", p.topFailures)
	}
}

func TestConnectionLost(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"closed", fmt.Errorf("send: %w", net.ErrClosed), true},
		{"eof", io.EOF, true},
		{"session", &cdp.Error{Code: -32001, Message: "Session with given id not found."}, true},
		{"timeout", context.DeadlineExceeded, false},
		{"eval", errors.New("eval js error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := connectionLost(tt.err); got != tt.want {
				t.Errorf("connectionLost(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWithTimeout(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	defer cancelParent()
	page := (&rod.Page{}).Context(parent)

	bounded, cancel := withTimeout(page)
	deadline, ok := bounded.GetContext().Deadline()
	if !ok {
		t.Fatal("bounded page has no deadline")
	}
	if d := time.Until(deadline); d > evalTimeout {
		t.Errorf("deadline in %v, want at most %v", d, evalTimeout)
	}
	if _, ok := page.GetContext().Deadline(); ok {
		t.Error("parent page picked up the deadline")
	}

	cancel()
	if bounded.GetContext().Err() == nil {
		t.Error("bounded context still live after cancel")
	}
	if page.GetContext().Err() != nil {
		t.Error("cancel ended the parent page context")
	}
}
