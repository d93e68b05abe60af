package keeper

// showBanner displays text and (re)starts the fade timer. A generation
// counter makes sure a superseded timer that already fired cannot hide a
// newer message.
func (k *Keeper) showBanner(text string) {
	k.bannerText = text
	k.bannerVisible = true
	k.bannerGen++
	gen := k.bannerGen

	if err := k.page.ShowBanner(text); err != nil {
		k.logger.Debug().Err(err).Msg("Failed to show banner")
	}

	if k.bannerTimer != nil {
		k.bannerTimer.Stop()
	}
	k.bannerTimer = k.after(k.cfg.BannerDuration, func() { k.hideBanner(gen) })
}

func (k *Keeper) hideBanner(gen int) {
	if gen != k.bannerGen {
		return
	}
	k.bannerVisible = false
	k.bannerTimer = nil
	if err := k.page.HideBanner(); err != nil {
		k.logger.Debug().Err(err).Msg("Failed to hide banner")
	}
}
