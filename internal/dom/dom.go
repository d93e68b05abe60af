// Package dom describes the slice of a browser page the keeper works with.
//
// The interfaces are deliberately small so the keeper can run against a live
// browser (internal/browser) or an in-memory tree (internal/dom/memdom).
package dom

import (
	"errors"
	"math"
)

// ErrInaccessible is returned by Frame.Document when a frame's document
// cannot be read, either because it is cross-origin or not loaded yet.
var ErrInaccessible = errors.New("frame document is not accessible")

// Frame is a browsing context: the top window or a nested iframe.
type Frame interface {
	// Document returns the frame's document, or an error wrapping
	// ErrInaccessible when it cannot be read.
	Document() (Document, error)

	// Frames returns the directly nested frames in document order
	Frames() ([]Frame, error)
}

// Page is the top-level frame together with the page-wide input and output
// surfaces the keeper needs.
type Page interface {
	Frame

	// OnKey registers fn for every keydown on the page
	OnKey(fn func(key string)) error

	// OnFocusChange registers fn for visibility, focus and blur changes
	OnFocusChange(fn func(focused bool)) error

	// ShowBanner displays text in the page overlay
	ShowBanner(text string) error

	// HideBanner fades the overlay out
	HideBanner() error
}

// Document is a single frame's document.
type Document interface {
	// Query returns the first element matching selector, or nil
	Query(selector string) (Element, error)

	// QueryMedia returns every media element matching selector
	QueryMedia(selector string) ([]Media, error)

	// Observe calls fn after structural changes anywhere under the body
	Observe(fn func()) error
}

// Element is a handle to a DOM element. Handles are soft references: the
// element may have been detached since it was looked up.
type Element interface {
	// ID returns a stable identity for the underlying node
	ID() string

	// Connected reports whether the element is still attached to a document
	Connected() bool

	// Click dispatches a synthetic activation
	Click() error

	// On registers fn for the named DOM event on this element
	On(event string, fn func()) error
}

// Media is an audio or video element.
type Media interface {
	Element

	// Reading returns the element's current playback properties
	Reading() (Reading, error)

	// SetPlaybackRate sets the element's playback speed multiplier
	SetPlaybackRate(rate float64) error
}

// PlayState represents the playback state of a media element
type PlayState int

const (
	StateStopped PlayState = iota // Ended, or nothing tracked
	StatePlaying                  // Media is playing
	StatePaused                   // Media is paused
)

// String returns a human-readable representation of the PlayState
func (s PlayState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Reading is a snapshot of a media element's playback properties.
// Duration is NaN while the browser does not know it yet.
type Reading struct {
	Paused       bool
	Ended        bool
	Duration     float64 // seconds
	CurrentTime  float64 // seconds
	PlaybackRate float64
}

// State collapses the paused/ended flags into a PlayState
func (r Reading) State() PlayState {
	switch {
	case r.Ended:
		return StateStopped
	case r.Paused:
		return StatePaused
	default:
		return StatePlaying
	}
}

// Remaining returns the seconds left until the end of the media. ok is false
// when either time is not a finite number or the position is past the end;
// such readings are treated as "not near the end".
func (r Reading) Remaining() (remaining float64, ok bool) {
	if !finite(r.Duration) || !finite(r.CurrentTime) {
		return 0, false
	}
	remaining = r.Duration - r.CurrentTime
	if remaining < 0 {
		return 0, false
	}
	return remaining, true
}

// NearEnd reports whether fewer than threshold seconds remain
func (r Reading) NearEnd(threshold float64) bool {
	remaining, ok := r.Remaining()
	return ok && remaining < threshold
}

// InEndWindow reports whether fewer than threshold seconds remain, counting
// a position past the end as inside the window. Non-finite times are not.
func (r Reading) InEndWindow(threshold float64) bool {
	if !finite(r.Duration) || !finite(r.CurrentTime) {
		return false
	}
	return r.Duration-r.CurrentTime < threshold
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
