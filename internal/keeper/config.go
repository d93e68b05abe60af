package keeper

import "time"

// Config holds keeper tuning. Zero values are replaced by DefaultConfig's.
type Config struct {
	PlayPauseSelector string // Play/pause control, top document only
	ForwardSelector   string // Next-track control, top document only

	DefaultRate float64 // Rate used when no preference is stored
	RateStep    float64 // Change per ] or [ key press
	MinRate     float64 // Floor for the playback rate

	AdvanceThreshold    time.Duration // Remaining time that triggers auto-advance
	AdvanceDelay        time.Duration // Delay between trigger and forward click
	GuardInterval       time.Duration // Guard safety-net sweep
	AdvanceInterval     time.Duration // Auto-advance poll
	PauseDebounce       time.Duration // Delay between pause event and guard check
	BannerDuration      time.Duration // How long a banner message stays visible
	MaxUnfocusedRetries int           // Forced resumes allowed while unfocused
}

// DefaultConfig returns the settings for the contentconnections player
func DefaultConfig() Config {
	return Config{
		PlayPauseSelector:   ".mediaPlayer__playPause",
		ForwardSelector:     ".mediaPlayer__button--forward",
		DefaultRate:         1.5,
		RateStep:            0.05,
		MinRate:             0.25,
		AdvanceThreshold:    2 * time.Second,
		AdvanceDelay:        2 * time.Second,
		GuardInterval:       1 * time.Second,
		AdvanceInterval:     1 * time.Second,
		PauseDebounce:       50 * time.Millisecond,
		BannerDuration:      2 * time.Second,
		MaxUnfocusedRetries: 5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PlayPauseSelector == "" {
		c.PlayPauseSelector = d.PlayPauseSelector
	}
	if c.ForwardSelector == "" {
		c.ForwardSelector = d.ForwardSelector
	}
	if c.DefaultRate <= 0 {
		c.DefaultRate = d.DefaultRate
	}
	if c.RateStep <= 0 {
		c.RateStep = d.RateStep
	}
	if c.MinRate <= 0 {
		c.MinRate = d.MinRate
	}
	if c.AdvanceThreshold <= 0 {
		c.AdvanceThreshold = d.AdvanceThreshold
	}
	if c.AdvanceDelay <= 0 {
		c.AdvanceDelay = d.AdvanceDelay
	}
	if c.GuardInterval <= 0 {
		c.GuardInterval = d.GuardInterval
	}
	if c.AdvanceInterval <= 0 {
		c.AdvanceInterval = d.AdvanceInterval
	}
	if c.PauseDebounce <= 0 {
		c.PauseDebounce = d.PauseDebounce
	}
	if c.BannerDuration <= 0 {
		c.BannerDuration = d.BannerDuration
	}
	if c.MaxUnfocusedRetries <= 0 {
		c.MaxUnfocusedRetries = d.MaxUnfocusedRetries
	}
	return c
}
