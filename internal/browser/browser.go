// Package browser drives the player tab over the Chrome DevTools protocol.
// It implements the dom interfaces on top of go-rod: documents are probed
// with a small script that queues page events, and a Pump drains those
// queues into Go callbacks.
package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// ErrNoPage is returned when no tab matches and no URL to open is configured
var ErrNoPage = errors.New("no player tab found")

// Options controls how the browser is reached and which tab is used
type Options struct {
	ControlURL   string        // DevTools URL or host:port of a running browser; empty means localhost:9222
	Launch       bool          // Start a new browser instead of attaching
	Headless     bool          // Only used with Launch
	Bin          string        // Browser binary for Launch; empty lets rod find or download one
	UserDataDir  string        // Profile directory for Launch
	PageMatch    string        // Regular expression (RE2) matched against tab URLs
	PageURL      string        // Opened when no tab matches
	PumpInterval time.Duration // Event drain interval
}

// Session is a connection to a browser
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     Options
	match    *regexp.Regexp // Compiled PageMatch, nil when empty
	logger   zerolog.Logger
}

// Attach connects to a running browser or launches one
func Attach(ctx context.Context, opts Options, logger zerolog.Logger) (*Session, error) {
	logger = logger.With().Str("component", "browser").Logger()

	match, err := compilePageMatch(opts.PageMatch)
	if err != nil {
		return nil, err
	}

	var l *launcher.Launcher
	var controlURL string

	if opts.Launch {
		l = launcher.New().Context(ctx).Headless(opts.Headless)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		if opts.UserDataDir != "" {
			l = l.UserDataDir(opts.UserDataDir)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
		logger.Info().Bool("headless", opts.Headless).Msg("Launched browser")
	} else {
		u, err := launcher.ResolveURL(opts.ControlURL)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DevTools URL %q: %w", opts.ControlURL, err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	logger.Info().Str("control_url", controlURL).Msg("Connected to browser")

	return &Session{
		browser:  b,
		launcher: l,
		opts:     opts,
		match:    match,
		logger:   logger,
	}, nil
}

// OpenPage finds the player tab, or opens PageURL when none matches. Every
// call returns a fresh Page with its own pump, so handlers from a previous
// page load never leak into the next one.
func (s *Session) OpenPage(ctx context.Context) (*Page, error) {
	rp, err := s.findTab()
	if err != nil {
		return nil, err
	}
	if rp == nil {
		if s.opts.PageURL == "" {
			return nil, ErrNoPage
		}
		rp, err = s.browser.Page(proto.TargetCreateTarget{URL: s.opts.PageURL})
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", s.opts.PageURL, err)
		}
		s.logger.Info().Str("url", s.opts.PageURL).Msg("Opened player tab")
	}

	rp = rp.Context(ctx)
	if err := rp.WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed to wait for page load: %w", err)
	}

	return NewPage(rp, s.opts.PumpInterval, s.logger), nil
}

// findTab returns the first tab matching PageMatch, or nil. Tabs whose
// target info cannot be read are skipped.
func (s *Session) findTab() (*rod.Page, error) {
	if s.match == nil {
		return nil, nil
	}
	pages, err := s.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("failed to list tabs: %w", err)
	}
	i := firstMatch(s.match, len(pages), func(i int) (string, error) {
		info, err := pages[i].Info()
		if err != nil {
			s.logger.Debug().Err(err).Msg("Skipping unreadable tab")
			return "", err
		}
		return info.URL, nil
	})
	if i < 0 {
		s.logger.Debug().Str("match", s.opts.PageMatch).Msg("No matching tab")
		return nil, nil
	}
	return pages[i], nil
}

// compilePageMatch compiles a tab URL pattern. An empty pattern disables
// tab matching.
func compilePageMatch(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid page match %q: %w", expr, err)
	}
	return re, nil
}

// firstMatch returns the index of the first of n tabs whose URL matches, or
// -1. Tabs for which urlOf fails are skipped.
func firstMatch(match *regexp.Regexp, n int, urlOf func(int) (string, error)) int {
	for i := 0; i < n; i++ {
		u, err := urlOf(i)
		if err != nil {
			continue
		}
		if match.MatchString(u) {
			return i
		}
	}
	return -1
}

// Close disconnects, and stops the browser if this session launched it
func (s *Session) Close() error {
	if s.launcher != nil {
		err := s.browser.Close()
		s.launcher.Kill()
		return err
	}
	// Leave a browser we attached to running
	return nil
}
