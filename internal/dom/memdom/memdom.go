// Package memdom is an in-memory implementation of the dom interfaces.
// Events are dispatched synchronously on the caller's goroutine; the types
// are not safe for concurrent use.
package memdom

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/jfmyers9/playkeeper/internal/dom"
)

var nextID atomic.Int64

// Window is a frame. The root window also acts as the dom.Page.
type Window struct {
	doc          *Document
	frames       []*Window
	Inaccessible bool

	keyFns   []func(string)
	focusFns []func(bool)

	BannerText    string
	BannerVisible bool
	BannerShows   int
}

var _ dom.Page = (*Window)(nil)

// NewWindow returns a window with an empty document
func NewWindow() *Window {
	w := &Window{}
	w.doc = &Document{}
	return w
}

// Doc returns the concrete document for test setup
func (w *Window) Doc() *Document {
	return w.doc
}

// AddFrame appends a nested frame and returns it
func (w *Window) AddFrame() *Window {
	child := NewWindow()
	w.frames = append(w.frames, child)
	return child
}

// Document implements dom.Frame
func (w *Window) Document() (dom.Document, error) {
	if w.Inaccessible {
		return nil, fmt.Errorf("%w: cross-origin", dom.ErrInaccessible)
	}
	return w.doc, nil
}

// Frames implements dom.Frame
func (w *Window) Frames() ([]dom.Frame, error) {
	if w.Inaccessible {
		return nil, dom.ErrInaccessible
	}
	out := make([]dom.Frame, len(w.frames))
	for i, f := range w.frames {
		out[i] = f
	}
	return out, nil
}

func (w *Window) OnKey(fn func(key string)) error {
	w.keyFns = append(w.keyFns, fn)
	return nil
}

func (w *Window) OnFocusChange(fn func(focused bool)) error {
	w.focusFns = append(w.focusFns, fn)
	return nil
}

func (w *Window) ShowBanner(text string) error {
	w.BannerText = text
	w.BannerVisible = true
	w.BannerShows++
	return nil
}

func (w *Window) HideBanner() error {
	w.BannerVisible = false
	return nil
}

// PressKey dispatches a keydown to every registered key handler
func (w *Window) PressKey(key string) {
	for _, fn := range w.keyFns {
		fn(key)
	}
}

// SetFocus dispatches a focus change
func (w *Window) SetFocus(focused bool) {
	for _, fn := range w.focusFns {
		fn(focused)
	}
}

// Document holds a flat list of elements in insertion order.
type Document struct {
	elements  []*Element
	observers []func()
}

// Add appends an element and notifies structural observers
func (d *Document) Add(tag string, classes ...string) *Element {
	el := &Element{
		id:        fmt.Sprintf("el-%d", nextID.Add(1)),
		Tag:       tag,
		Classes:   classes,
		connected: true,
		listeners: make(map[string][]func()),
		Duration:  math.NaN(),
		Rate:      1,
	}
	d.elements = append(d.elements, el)
	d.notify()
	return el
}

// AddMedia appends an audio or video element with a known duration
func (d *Document) AddMedia(tag string, duration float64) *Element {
	el := d.Add(tag)
	el.Duration = duration
	el.Paused = true
	return el
}

// Remove detaches el and notifies structural observers
func (d *Document) Remove(el *Element) {
	for i, e := range d.elements {
		if e == el {
			d.elements = append(d.elements[:i], d.elements[i+1:]...)
			el.connected = false
			d.notify()
			return
		}
	}
}

// ObserverCount returns the number of registered structural observers
func (d *Document) ObserverCount() int {
	return len(d.observers)
}

func (d *Document) notify() {
	for _, fn := range d.observers {
		fn()
	}
}

func (d *Document) Query(selector string) (dom.Element, error) {
	for _, el := range d.elements {
		if el.matches(selector) {
			return el, nil
		}
	}
	return nil, nil
}

func (d *Document) QueryMedia(selector string) ([]dom.Media, error) {
	var out []dom.Media
	for _, el := range d.elements {
		if el.isMedia() && el.matches(selector) {
			out = append(out, el)
		}
	}
	return out, nil
}

func (d *Document) Observe(fn func()) error {
	d.observers = append(d.observers, fn)
	return nil
}

// Element is a generic element; audio and video elements also carry
// playback properties.
type Element struct {
	id        string
	Tag       string
	Classes   []string
	connected bool
	listeners map[string][]func()

	Clicks  int
	OnClick func()

	Paused      bool
	Ended       bool
	Duration    float64
	CurrentTime float64
	Rate        float64
	ReadErr     error
}

var _ dom.Media = (*Element)(nil)

func (e *Element) ID() string      { return e.id }
func (e *Element) Connected() bool { return e.connected }

func (e *Element) Click() error {
	e.Clicks++
	if e.OnClick != nil {
		e.OnClick()
	}
	return nil
}

func (e *Element) On(event string, fn func()) error {
	e.listeners[event] = append(e.listeners[event], fn)
	return nil
}

// Dispatch fires every listener registered for event
func (e *Element) Dispatch(event string) {
	for _, fn := range e.listeners[event] {
		fn()
	}
}

// ListenerCount returns how many listeners are registered for event
func (e *Element) ListenerCount(event string) int {
	return len(e.listeners[event])
}

func (e *Element) Reading() (dom.Reading, error) {
	if e.ReadErr != nil {
		return dom.Reading{}, e.ReadErr
	}
	return dom.Reading{
		Paused:       e.Paused,
		Ended:        e.Ended,
		Duration:     e.Duration,
		CurrentTime:  e.CurrentTime,
		PlaybackRate: e.Rate,
	}, nil
}

func (e *Element) SetPlaybackRate(rate float64) error {
	e.Rate = rate
	return nil
}

// Pause sets the paused flag and fires the pause event
func (e *Element) Pause() {
	e.Paused = true
	e.Dispatch("pause")
}

// Play clears the paused flag and fires the play event
func (e *Element) Play() {
	e.Paused = false
	e.Dispatch("play")
}

func (e *Element) isMedia() bool {
	return e.Tag == "audio" || e.Tag == "video"
}

// matches supports comma-separated lists of "tag", ".class" and "tag.class"
func (e *Element) matches(selector string) bool {
	for _, part := range strings.Split(selector, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pieces := strings.Split(part, ".")
		if pieces[0] != "" && pieces[0] != e.Tag {
			continue
		}
		ok := true
		for _, class := range pieces[1:] {
			if !e.hasClass(class) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (e *Element) hasClass(class string) bool {
	for _, c := range e.Classes {
		if c == class {
			return true
		}
	}
	return false
}
