package keeper

// guardCheck resumes playback after a pause the user did not ask for.
//
// Forced resumes only self-trigger while the tab is unfocused: the first
// paused check issues one click, later checks add up to
// MaxUnfocusedRetries in total. The guard stands down in the last
// AdvanceThreshold of a track and past its end.
func (k *Keeper) guardCheck() {
	s := &k.state
	if !s.AutoUnpause || s.AdvancePending {
		return
	}
	if k.audio == nil || !k.audio.Connected() {
		return
	}

	r, ok := k.readAudio()
	if !ok {
		return
	}
	if r.InEndWindow(k.cfg.AdvanceThreshold.Seconds()) {
		return
	}

	if r.Paused && !s.UserClickedPause {
		if s.TabFocused {
			return
		}
		switch {
		case !s.UnfocusedPauseSeen:
			s.RetryCount = 1
			s.UnfocusedPauseSeen = true
			k.simulatePlayClick()
		case s.RetryCount < k.cfg.MaxUnfocusedRetries:
			s.RetryCount++
			k.simulatePlayClick()
		}
		return
	}

	// Playing, or paused on purpose
	k.resetRetries()
}

func (k *Keeper) resetRetries() {
	k.state.RetryCount = 0
	k.state.UnfocusedPauseSeen = false
}

// handlePause waits PauseDebounce before checking, so a pause that is
// immediately undone elsewhere does not trigger a click
func (k *Keeper) handlePause(id string) {
	if !k.isTracked(id) {
		return
	}
	k.after(k.cfg.PauseDebounce, func() {
		if !k.isTracked(id) {
			return
		}
		r, ok := k.readAudio()
		if !ok || !r.Paused {
			return
		}
		k.guardCheck()
	})
}

// handlePlay clears the deliberate pause: playback resumed, so whatever the
// user wanted before no longer applies
func (k *Keeper) handlePlay(id string) {
	if !k.isTracked(id) {
		return
	}
	k.state.UserClickedPause = false
	k.resetRetries()
}

// simulatePlayClick clicks the play/pause control, re-resolving it first if
// the cached one is gone. A missing control is logged and ignored.
func (k *Keeper) simulatePlayClick() {
	btn := k.locatePlayButton()
	if btn == nil {
		k.logger.Warn().
			Str("selector", k.cfg.PlayPauseSelector).
			Msg("Play button not found")
		return
	}
	if err := btn.Click(); err != nil {
		k.logger.Warn().Err(err).Msg("Failed to click play button")
		return
	}
	k.logger.Info().
		Int("retry", k.state.RetryCount).
		Msg("Simulated click on play button")
}
