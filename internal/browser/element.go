package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"github.com/jfmyers9/playkeeper/internal/dom"
)

// element wraps a remote element. The same DOM node always reports the same
// ID, because the first ID assigned is stored on the node itself.
type element struct {
	el   *rod.Element
	pump *Pump
	id   string
}

var _ dom.Media = (*element)(nil)

func newElement(el *rod.Element, pump *Pump) (*element, error) {
	res, err := evalElement(el, elementIDScript, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to tag element: %w", err)
	}
	return &element{el: el, pump: pump, id: res.Value.Str()}, nil
}

func (e *element) ID() string {
	return e.id
}

// Connected reports false when the node is detached or cannot be reached
func (e *element) Connected() bool {
	res, err := evalElement(e.el, connectedScript)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

func (e *element) Click() error {
	if _, err := evalElement(e.el, clickScript); err != nil {
		return fmt.Errorf("failed to click element: %w", err)
	}
	return nil
}

func (e *element) On(event string, fn func()) error {
	if _, err := evalElement(e.el, listenScript, event); err != nil {
		return fmt.Errorf("failed to listen for %s: %w", event, err)
	}
	e.pump.onElement(e.id, event, fn)
	return nil
}

func (e *element) Reading() (dom.Reading, error) {
	res, err := evalElement(e.el, readingScript)
	if err != nil {
		return dom.Reading{}, fmt.Errorf("failed to read media: %w", err)
	}
	return decodeReading(res.Value.Str())
}

func (e *element) SetPlaybackRate(rate float64) error {
	if _, err := evalElement(e.el, setRateScript, rate); err != nil {
		return fmt.Errorf("failed to set playback rate: %w", err)
	}
	return nil
}

// mediaJSON mirrors readingScript's output. Non-finite numbers arrive as
// null.
type mediaJSON struct {
	Paused       bool     `json:"paused"`
	Ended        bool     `json:"ended"`
	Duration     *float64 `json:"duration"`
	CurrentTime  *float64 `json:"currentTime"`
	PlaybackRate *float64 `json:"playbackRate"`
}

func decodeReading(raw string) (dom.Reading, error) {
	var m mediaJSON
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return dom.Reading{}, fmt.Errorf("failed to decode media state: %w", err)
	}
	return dom.Reading{
		Paused:       m.Paused,
		Ended:        m.Ended,
		Duration:     orNaN(m.Duration),
		CurrentTime:  orNaN(m.CurrentTime),
		PlaybackRate: orNaN(m.PlaybackRate),
	}, nil
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// evalElement runs js with this bound to el, giving up after evalTimeout
func evalElement(el *rod.Element, js string, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	ctx, cancel := context.WithTimeout(el.GetContext(), evalTimeout)
	defer cancel()
	return el.Context(ctx).Eval(js, args...)
}
