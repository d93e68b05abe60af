package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"github.com/jfmyers9/playkeeper/internal/dom"
)

const frameSelector = "iframe, frame"

var errNoRoot = errors.New("document has no root to observe")

// frame is a browsing context reached through an iframe element
type frame struct {
	page *rod.Page
	pump *Pump
	top  bool
}

var _ dom.Frame = (*frame)(nil)

// Document probes the frame's document, installing the event queue on first
// use. Any evaluation failure means the document cannot be scripted.
func (f *frame) Document() (dom.Document, error) {
	res, err := evalPage(f.page, probeScript, uuid.NewString(), f.top)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dom.ErrInaccessible, err)
	}
	id := res.Value.Str()
	if id == "" {
		return nil, fmt.Errorf("%w: probe did not report an id", dom.ErrInaccessible)
	}
	f.pump.addProbe(id, pageDrainer{page: f.page}, f.top)
	return &document{page: f.page, pump: f.pump, probeID: id}, nil
}

// Frames lists nested frames. A frame element whose content cannot be
// resolved is still returned, as a frame that reports itself inaccessible.
func (f *frame) Frames() ([]dom.Frame, error) {
	bounded, cancel := withTimeout(f.page)
	defer cancel()

	els, err := bounded.Elements(frameSelector)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dom.ErrInaccessible, err)
	}

	frames := make([]dom.Frame, 0, len(els))
	for _, el := range els {
		child, err := el.Frame()
		if err != nil {
			frames = append(frames, inaccessible{err: err})
			continue
		}
		// Results inherit the bounded context, which ends with this call
		frames = append(frames, &frame{page: child.Context(f.page.GetContext()), pump: f.pump})
	}
	return frames, nil
}

// inaccessible stands in for a cross-origin or unloaded frame
type inaccessible struct {
	err error
}

func (i inaccessible) Document() (dom.Document, error) {
	return nil, fmt.Errorf("%w: %v", dom.ErrInaccessible, i.err)
}

func (i inaccessible) Frames() ([]dom.Frame, error) {
	return nil, fmt.Errorf("%w: %v", dom.ErrInaccessible, i.err)
}

// document is a probed document
type document struct {
	page    *rod.Page
	pump    *Pump
	probeID string
}

var _ dom.Document = (*document)(nil)

func (d *document) Query(selector string) (dom.Element, error) {
	bounded, cancel := withTimeout(d.page)
	defer cancel()

	has, el, err := bounded.Has(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	if !has {
		return nil, nil
	}
	return newElement(el.Context(d.page.GetContext()), d.pump)
}

func (d *document) QueryMedia(selector string) ([]dom.Media, error) {
	bounded, cancel := withTimeout(d.page)
	defer cancel()

	els, err := bounded.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}

	media := make([]dom.Media, 0, len(els))
	for _, el := range els {
		e, err := newElement(el.Context(d.page.GetContext()), d.pump)
		if err != nil {
			continue
		}
		media = append(media, e)
	}
	return media, nil
}

// Observe starts the document's MutationObserver (once) and registers fn
// for its coalesced notifications
func (d *document) Observe(fn func()) error {
	res, err := evalPage(d.page, observeScript)
	if err != nil {
		return fmt.Errorf("failed to observe document: %w", err)
	}
	if !res.Value.Bool() {
		return errNoRoot
	}
	d.pump.onMutation(d.probeID, fn)
	return nil
}

// withTimeout returns a clone of p whose calls give up after evalTimeout, so
// a page stuck in a dialog or a hung frame reads as a failure
func withTimeout(p *rod.Page) (*rod.Page, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(p.GetContext(), evalTimeout)
	return p.Context(ctx), cancel
}

func evalPage(p *rod.Page, js string, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	bounded, cancel := withTimeout(p)
	defer cancel()
	return bounded.Eval(js, args...)
}
