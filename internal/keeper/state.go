package keeper

import (
	"sync"
	"time"

	"github.com/jfmyers9/playkeeper/internal/dom"
)

// State is the keeper's page-lifetime state. It is only touched from the
// keeper loop.
type State struct {
	PlaybackRate       float64 // Current speed multiplier (>= MinRate)
	UserClickedPause   bool    // User asked for a pause via button or space
	TabFocused         bool    // Page is focused and visible
	RetryCount         int     // Forced resumes issued while unfocused
	AutoUnpause        bool    // Master switch, toggled with u
	AdvancePending     bool    // A forward click is scheduled
	UnfocusedPauseSeen bool    // First paused-while-unfocused check handled
}

func initialState() State {
	return State{
		TabFocused:  true,
		AutoUnpause: true,
	}
}

// Status is a read-only snapshot of the keeper for other goroutines
type Status struct {
	State

	Ready           bool        // Setup has completed
	AudioTracked    bool        // An audio element is currently tracked
	HasReading      bool        // Audio holds a reading
	Audio           dom.Reading // Most recent reading of the tracked audio
	PlayButtonFound bool        // The play/pause control is cached
	Banner          string      // Last banner message
	BannerVisible   bool        // Banner is currently shown
	UpdatedAt       time.Time   // When the snapshot was taken
}

// statusStore hands snapshots across goroutines
type statusStore struct {
	mu      sync.RWMutex
	current Status
}

func (s *statusStore) set(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = st
}

// get returns a copy of the current snapshot
func (s *statusStore) get() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// publish copies loop-owned state into the shared snapshot.
// Must be called from the keeper loop.
func (k *Keeper) publish() {
	st := Status{
		State:           k.state,
		Ready:           k.ready,
		AudioTracked:    k.audio != nil,
		PlayButtonFound: k.playButton != nil,
		Banner:          k.bannerText,
		BannerVisible:   k.bannerVisible,
		UpdatedAt:       time.Now(),
	}
	if k.lastReading != nil && k.audio != nil {
		st.HasReading = true
		st.Audio = *k.lastReading
	}
	k.status.set(st)
}
