package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/jfmyers9/playkeeper/internal/dom"
	"github.com/rs/zerolog"
)

// Page is the top-level browsing context of the player tab
type Page struct {
	frame
}

var _ dom.Page = (*Page)(nil)

// NewPage wraps a rod page. Events are only delivered while Pump runs.
func NewPage(rp *rod.Page, interval time.Duration, logger zerolog.Logger) *Page {
	return &Page{
		frame: frame{page: rp, pump: NewPump(interval, logger), top: true},
	}
}

// Pump delivers page events to registered handlers until ctx is cancelled
// or the page reloads (ErrPageReloaded)
func (p *Page) Pump(ctx context.Context) error {
	return p.pump.Run(ctx)
}

// URL returns the tab's current location
func (p *Page) URL() (string, error) {
	info, err := p.page.Info()
	if err != nil {
		return "", fmt.Errorf("failed to get page info: %w", err)
	}
	return info.URL, nil
}

func (p *Page) OnKey(fn func(key string)) error {
	if _, err := p.Document(); err != nil {
		return err
	}
	p.pump.onKey(fn)
	return nil
}

func (p *Page) OnFocusChange(fn func(focused bool)) error {
	if _, err := p.Document(); err != nil {
		return err
	}
	p.pump.onFocus(fn)
	return nil
}

func (p *Page) ShowBanner(text string) error {
	if _, err := evalPage(p.page, showBannerScript, bannerID, bannerStyle, text); err != nil {
		return fmt.Errorf("failed to show banner: %w", err)
	}
	return nil
}

func (p *Page) HideBanner() error {
	if _, err := evalPage(p.page, hideBannerScript, bannerID); err != nil {
		return fmt.Errorf("failed to hide banner: %w", err)
	}
	return nil
}
