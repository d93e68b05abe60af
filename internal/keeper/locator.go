package keeper

import (
	"github.com/jfmyers9/playkeeper/internal/dom"
)

const (
	audioSelector = "audio"
	mediaSelector = "audio, video"
)

// LocateAudio returns the first audio element in the frame tree and the
// depth of its frame, or nil and -1.
func LocateAudio(root dom.Frame) (dom.Media, int) {
	return dom.FirstMedia(root, audioSelector)
}

// LocateControl queries selector in the top document only
func LocateControl(page dom.Frame, selector string) (dom.Element, error) {
	doc, err := page.Document()
	if err != nil {
		return nil, err
	}
	return doc.Query(selector)
}

// refresh re-runs the locator and binds listeners to whatever is present
func (k *Keeper) refresh() {
	audio, depth := LocateAudio(k.page)
	switch {
	case audio == nil:
		if k.audio != nil {
			k.logger.Debug().Str("audio", k.audio.ID()).Msg("Tracked audio is gone")
		}
		k.audio = nil
		k.lastReading = nil
	case k.audio == nil || k.audio.ID() != audio.ID():
		k.logger.Info().
			Int("frame_depth", depth).
			Str("audio", audio.ID()).
			Msg("Found audio")
		k.audio = audio
		k.lastReading = nil
	default:
		k.audio = audio
	}

	if k.audio != nil {
		k.bindAudio(k.audio)
	}
	k.locatePlayButton()
}

// bindAudio attaches pause/play listeners once per element and applies the
// current rate, since the player resets it when it re-renders
func (k *Keeper) bindAudio(audio dom.Media) {
	key := audio.ID() + "#media"
	if _, ok := k.bound[key]; ok {
		return
	}

	id := audio.ID()
	if err := audio.On("pause", func() {
		k.post(func() { k.handlePause(id) })
	}); err != nil {
		k.logger.Debug().Err(err).Str("audio", id).Msg("Failed to listen for pause")
		return
	}
	if err := audio.On("play", func() {
		k.post(func() { k.handlePlay(id) })
	}); err != nil {
		k.logger.Debug().Err(err).Str("audio", id).Msg("Failed to listen for play")
		return
	}
	k.bound[key] = struct{}{}

	if err := audio.SetPlaybackRate(k.state.PlaybackRate); err != nil {
		k.logger.Debug().Err(err).Str("audio", id).Msg("Failed to apply rate to new audio")
	}
}

// locatePlayButton returns the cached play/pause control, re-querying the
// top document when the cache is empty or detached
func (k *Keeper) locatePlayButton() dom.Element {
	if k.playButton != nil && k.playButton.Connected() {
		return k.playButton
	}
	k.playButton = nil

	btn, err := LocateControl(k.page, k.cfg.PlayPauseSelector)
	if err != nil {
		k.logger.Debug().Err(err).Msg("Failed to query play button")
		return nil
	}
	if btn == nil {
		return nil
	}

	k.playButton = btn
	k.bindPlayButton(btn)
	return btn
}

func (k *Keeper) bindPlayButton(btn dom.Element) {
	key := btn.ID() + "#mousedown"
	if _, ok := k.bound[key]; ok {
		return
	}
	if err := btn.On("mousedown", func() {
		k.post(func() { k.markUserPause("button") })
	}); err != nil {
		k.logger.Debug().Err(err).Msg("Failed to listen for play button presses")
		return
	}
	k.bound[key] = struct{}{}
}

func (k *Keeper) isTracked(id string) bool {
	return k.audio != nil && k.audio.ID() == id
}

// readAudio reads the tracked audio and remembers the result for Status
func (k *Keeper) readAudio() (dom.Reading, bool) {
	if k.audio == nil {
		return dom.Reading{}, false
	}
	r, err := k.audio.Reading()
	if err != nil {
		k.logger.Debug().Err(err).Msg("Failed to read audio")
		return dom.Reading{}, false
	}
	k.lastReading = &r
	return r, true
}
