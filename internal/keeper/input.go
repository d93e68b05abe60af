package keeper

// Hotkeys, matched against KeyboardEvent.key
const (
	KeyRateUp      = "]"
	KeyRateDown    = "["
	KeyToggleGuard = "u"
	KeyPause       = " "
)

func (k *Keeper) handleKey(key string) {
	switch key {
	case KeyRateUp:
		k.adjustRate(k.cfg.RateStep)
	case KeyRateDown:
		k.adjustRate(-k.cfg.RateStep)
	case KeyToggleGuard:
		k.toggleAutoUnpause()
	case KeyPause:
		k.markUserPause("spacebar")
	}
}

func (k *Keeper) toggleAutoUnpause() {
	k.state.AutoUnpause = !k.state.AutoUnpause

	label := "DISABLED"
	if k.state.AutoUnpause {
		label = "ENABLED"
	}
	k.showBanner("Auto-Unpause: " + label)
	k.logger.Info().Bool("enabled", k.state.AutoUnpause).Msg("Auto-unpause toggled")
}

// markUserPause records a deliberate pause. Only the play/pause control and
// the space key count; other ways of pausing are indistinguishable from the
// player pausing on its own.
func (k *Keeper) markUserPause(source string) {
	k.state.UserClickedPause = true
	k.logger.Info().Str("source", source).Msg("Manual pause")
}

// handleFocus tracks focus; regaining focus restores the unfocused retry
// budget
func (k *Keeper) handleFocus(focused bool) {
	regained := focused && !k.state.TabFocused
	k.state.TabFocused = focused
	if regained {
		k.resetRetries()
	}
	k.logger.Debug().Bool("focused", focused).Msg("Focus changed")
}
