package keeper

import (
	"fmt"
	"math"

	"github.com/jfmyers9/playkeeper/internal/dom"
)

// NextRate returns current+delta rounded half-up to two decimals, floored
// at minRate
func NextRate(current, delta, minRate float64) float64 {
	return math.Max(minRate, math.Floor((current+delta)*100+0.5)/100)
}

// ApplyRate sets rate on every audio and video element in every accessible
// frame and returns how many elements accepted it
func ApplyRate(root dom.Frame, rate float64) int {
	applied := 0
	for _, m := range dom.AllMedia(root, mediaSelector) {
		if err := m.SetPlaybackRate(rate); err != nil {
			continue
		}
		applied++
	}
	return applied
}

// FormatRate renders a rate the way the banner shows it
func FormatRate(rate float64) string {
	return fmt.Sprintf("Playback: %.2f×", rate)
}

// loadRate reads the persisted rate, falling back to DefaultRate
func (k *Keeper) loadRate() {
	rate := k.cfg.DefaultRate
	if k.prefs != nil {
		stored, err := k.prefs.Float(k.ctx, RateKey, k.cfg.DefaultRate)
		if err != nil {
			k.logger.Warn().Err(err).Msg("Failed to read stored rate, using default")
		} else {
			rate = stored
		}
	}
	k.state.PlaybackRate = math.Max(k.cfg.MinRate, rate)
}

func (k *Keeper) applyRate() {
	n := ApplyRate(k.page, k.state.PlaybackRate)
	k.logger.Debug().
		Float64("rate", k.state.PlaybackRate).
		Int("elements", n).
		Msg("Applied playback rate")
}

// adjustRate changes the rate by delta, persists it, re-applies it to the
// whole page and shows the new value
func (k *Keeper) adjustRate(delta float64) {
	k.state.PlaybackRate = NextRate(k.state.PlaybackRate, delta, k.cfg.MinRate)

	if k.prefs != nil {
		if err := k.prefs.SetFloat(k.ctx, RateKey, k.state.PlaybackRate); err != nil {
			k.logger.Warn().Err(err).Msg("Failed to persist playback rate")
		}
	}

	k.applyRate()
	k.showBanner(FormatRate(k.state.PlaybackRate))
	k.logger.Info().Float64("rate", k.state.PlaybackRate).Msg("Playback rate changed")
}
