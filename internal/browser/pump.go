package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/rs/zerolog"
)

// ErrPageReloaded is returned by Pump.Run when the top document's probe has
// disappeared, meaning the page navigated or reloaded
var ErrPageReloaded = errors.New("page reloaded")

// ErrPageGone is returned by Pump.Run when the top document can no longer be
// reached: the tab was closed or the DevTools connection dropped
var ErrPageGone = errors.New("page is gone")

// DefaultPumpInterval is how often probed documents are drained
const DefaultPumpInterval = 100 * time.Millisecond

const evalTimeout = 2 * time.Second

// maxTopFailures is how many drains of the top document in a row may fail
// before the page counts as gone. Evals fail briefly during navigation.
const maxTopFailures = 3

// Event kinds pushed by the page-side probe
const (
	eventKey      = "key"
	eventFocus    = "focus"
	eventElement  = "event"
	eventMutation = "mutation"
)

// probeEvent is one entry of a probe's queue
type probeEvent struct {
	Kind    string `json:"kind"`
	Key     string `json:"key,omitempty"`
	Focused bool   `json:"focused,omitempty"`
	Type    string `json:"type,omitempty"`
	ID      string `json:"id,omitempty"`
}

// decodeEvents parses a drained queue. An empty payload means the probe is
// gone.
func decodeEvents(raw string) ([]probeEvent, bool, error) {
	if raw == "" {
		return nil, false, nil
	}
	var events []probeEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil, true, fmt.Errorf("failed to decode probe events: %w", err)
	}
	return events, true, nil
}

// drainer empties one document's event queue. It returns "" when the probe
// is missing from the document.
type drainer interface {
	drain(ctx context.Context) (string, error)
}

type pageDrainer struct {
	page *rod.Page
}

func (d pageDrainer) drain(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()
	res, err := d.page.Context(ctx).Eval(drainScript)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

type probe struct {
	src drainer
	top bool
}

// connectionLost reports errors after which no retry can succeed
func connectionLost(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, cdp.ErrSessionNotFound)
}

// Pump drains the event queues of every probed document at a fixed interval
// and dispatches the events to registered Go handlers. Handlers run on the
// pump goroutine and must not block.
type Pump struct {
	interval time.Duration
	logger   zerolog.Logger

	topFailures int // Consecutive failed top drains, Run goroutine only

	mu        sync.Mutex
	probes    map[string]probe
	keyFns    []func(string)
	focusFns  []func(bool)
	handlers  map[string]map[string][]func() // element id -> event type
	observers map[string][]func()            // probe id
}

// NewPump creates a pump. Documents register themselves as they are probed.
func NewPump(interval time.Duration, logger zerolog.Logger) *Pump {
	if interval <= 0 {
		interval = DefaultPumpInterval
	}
	return &Pump{
		interval:  interval,
		logger:    logger.With().Str("component", "pump").Logger(),
		probes:    make(map[string]probe),
		handlers:  make(map[string]map[string][]func()),
		observers: make(map[string][]func()),
	}
}

// Run drains probes until ctx is cancelled, the top document is replaced
// (ErrPageReloaded) or the top document cannot be reached (ErrPageGone)
func (p *Pump) Run(ctx context.Context) error {
	p.logger.Info().
		Dur("interval", p.interval).
		Msg("Starting event pump")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Event pump stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.drainAll(ctx); err != nil {
				return err
			}
		}
	}
}

// drainAll pulls every probe's queue once
func (p *Pump) drainAll(ctx context.Context) error {
	p.mu.Lock()
	snapshot := make(map[string]probe, len(p.probes))
	for id, pr := range p.probes {
		snapshot[id] = pr
	}
	p.mu.Unlock()

	for id, pr := range snapshot {
		raw, err := pr.src.drain(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if pr.top {
				p.topFailures++
				if connectionLost(err) || p.topFailures >= maxTopFailures {
					p.logger.Warn().
						Err(err).
						Int("failures", p.topFailures).
						Msg("Top document unreachable")
					return fmt.Errorf("%w: %v", ErrPageGone, err)
				}
				// Mid-navigation evals fail transiently; the empty probe check
				// below is what decides a reload
				p.logger.Debug().Err(err).Msg("Error draining top document")
				continue
			}
			p.logger.Debug().Err(err).Str("probe", id).Msg("Dropping unreachable frame")
			p.removeProbe(id)
			continue
		}
		if pr.top {
			p.topFailures = 0
		}

		events, alive, err := decodeEvents(raw)
		if err != nil {
			p.logger.Debug().Err(err).Str("probe", id).Msg("Discarding probe events")
			continue
		}
		if !alive {
			if pr.top {
				p.logger.Info().Msg("Top document replaced")
				return ErrPageReloaded
			}
			p.removeProbe(id)
			continue
		}

		p.dispatch(id, events)
	}
	return nil
}

// dispatch calls the handlers for events from probe id. Handler lists are
// copied under the lock and called outside it.
func (p *Pump) dispatch(id string, events []probeEvent) {
	for _, e := range events {
		switch e.Kind {
		case eventKey:
			p.mu.Lock()
			fns := append([]func(string){}, p.keyFns...)
			p.mu.Unlock()
			for _, fn := range fns {
				fn(e.Key)
			}
		case eventFocus:
			p.mu.Lock()
			fns := append([]func(bool){}, p.focusFns...)
			p.mu.Unlock()
			for _, fn := range fns {
				fn(e.Focused)
			}
		case eventElement:
			p.mu.Lock()
			fns := append([]func(){}, p.handlers[e.ID][e.Type]...)
			p.mu.Unlock()
			for _, fn := range fns {
				fn()
			}
		case eventMutation:
			p.mu.Lock()
			fns := append([]func(){}, p.observers[id]...)
			p.mu.Unlock()
			for _, fn := range fns {
				fn()
			}
		default:
			p.logger.Debug().Str("kind", e.Kind).Msg("Unknown probe event")
		}
	}
}

func (p *Pump) addProbe(id string, src drainer, top bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.probes[id]; ok {
		return
	}
	p.probes[id] = probe{src: src, top: top}
	p.logger.Debug().Str("probe", id).Bool("top", top).Msg("Document probed")
}

func (p *Pump) removeProbe(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.probes, id)
	delete(p.observers, id)
}

func (p *Pump) onKey(fn func(string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keyFns = append(p.keyFns, fn)
}

func (p *Pump) onFocus(fn func(bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.focusFns = append(p.focusFns, fn)
}

func (p *Pump) onElement(id, event string, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	byEvent, ok := p.handlers[id]
	if !ok {
		byEvent = make(map[string][]func())
		p.handlers[id] = byEvent
	}
	byEvent[event] = append(byEvent[event], fn)
}

func (p *Pump) onMutation(probeID string, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers[probeID] = append(p.observers[probeID], fn)
}

// probeCount reports how many documents are being drained
func (p *Pump) probeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.probes)
}
