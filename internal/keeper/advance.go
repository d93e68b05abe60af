package keeper

// pollAdvance schedules a forward click once the tracked audio enters the
// last AdvanceThreshold of its duration. While the click is pending the
// guard does not force a resume, so the two never fight over the same
// moment.
func (k *Keeper) pollAdvance() {
	if k.audio == nil || k.state.AdvancePending {
		return
	}

	r, ok := k.readAudio()
	if !ok || r.Ended {
		return
	}
	if !r.NearEnd(k.cfg.AdvanceThreshold.Seconds()) {
		return
	}

	remaining, _ := r.Remaining()
	k.state.AdvancePending = true
	k.logger.Info().
		Float64("remaining", remaining).
		Dur("delay", k.cfg.AdvanceDelay).
		Msg("Pre-end triggered, will advance")

	k.advanceTimer = k.after(k.cfg.AdvanceDelay, k.advance)
}

// advance clicks the forward control, if there is one, and clears the
// pending flag either way
func (k *Keeper) advance() {
	defer func() {
		k.state.AdvancePending = false
		k.advanceTimer = nil
	}()

	next, err := LocateControl(k.page, k.cfg.ForwardSelector)
	if err != nil {
		k.logger.Warn().Err(err).Msg("Failed to query forward button")
		return
	}
	if next == nil {
		k.logger.Warn().
			Str("selector", k.cfg.ForwardSelector).
			Msg("Forward button not found")
		return
	}
	if err := next.Click(); err != nil {
		k.logger.Warn().Err(err).Msg("Failed to click forward button")
		return
	}
	k.logger.Info().Msg("Advanced to next track")
}
