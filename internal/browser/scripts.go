package browser

// Page-side snippets evaluated through the DevTools protocol. Functions are
// called with `this` bound to the window (page evals) or to the element
// (element evals).

// probeScript installs the per-document event queue once and returns its id.
// The top document also reports key presses and focus changes.
const probeScript = `(id, top) => {
  if (window.__playkeeper) return window.__playkeeper.id;
  const queue = [];
  const max = 512;
  const p = { id: id, top: top, observing: false, mutated: false };
  p.push = (e) => {
    if (queue.length >= max) queue.shift();
    queue.push(e);
  };
  p.drain = () => {
    p.mutated = false;
    return queue.splice(0, queue.length);
  };
  p.observe = () => {
    if (p.observing) return true;
    const target = document.body || document.documentElement;
    if (!target) return false;
    new MutationObserver(() => {
      if (p.mutated) return;
      p.mutated = true;
      p.push({ kind: 'mutation' });
    }).observe(target, { childList: true, subtree: true });
    p.observing = true;
    return true;
  };
  if (top) {
    window.addEventListener('keydown', (e) => p.push({ kind: 'key', key: e.key }), true);
    document.addEventListener('visibilitychange', () => p.push({ kind: 'focus', focused: !document.hidden }));
    window.addEventListener('focus', () => p.push({ kind: 'focus', focused: true }));
    window.addEventListener('blur', () => p.push({ kind: 'focus', focused: false }));
  }
  window.__playkeeper = p;
  return id;
}`

// drainScript returns the queued events as JSON, or an empty string when the
// probe is gone (the document was replaced)
const drainScript = `() => {
  const p = window.__playkeeper;
  if (!p) return '';
  return JSON.stringify(p.drain());
}`

const observeScript = `() => window.__playkeeper ? window.__playkeeper.observe() : false`

const elementIDScript = `(id) => this.__playkeeperId || (this.__playkeeperId = id)`

const connectedScript = `() => this.isConnected`

const clickScript = `() => this.click()`

// listenScript forwards one event type to the owning document's probe. The
// flag keeps repeated installs from stacking listeners.
const listenScript = `(type) => {
  const key = '__playkeeper_' + type;
  if (this[key]) return;
  this[key] = true;
  const el = this;
  el.addEventListener(type, () => {
    const view = el.ownerDocument && el.ownerDocument.defaultView;
    const p = view && view.__playkeeper;
    if (p) p.push({ kind: 'event', type: type, id: el.__playkeeperId });
  });
}`

// readingScript serialises the media state. Non-finite numbers become null.
const readingScript = `() => JSON.stringify({
  paused: this.paused,
  ended: this.ended,
  duration: this.duration,
  currentTime: this.currentTime,
  playbackRate: this.playbackRate
})`

const setRateScript = `(rate) => { this.playbackRate = rate; }`

const bannerID = "playkeeper-banner"

const bannerStyle = "position:fixed;top:10px;left:10px;padding:6px 12px;" +
	"background:rgba(0,0,0,0.7);color:#fff;font-size:16px;font-family:sans-serif;" +
	"border-radius:6px;z-index:9999;transition:opacity 0.5s ease;opacity:0;"

const showBannerScript = `(id, css, text) => {
  let el = document.getElementById(id);
  if (!el) {
    el = document.createElement('div');
    el.id = id;
    el.style.cssText = css;
    (document.body || document.documentElement).appendChild(el);
  }
  el.textContent = text;
  el.style.opacity = '1';
}`

const hideBannerScript = `(id) => {
  const el = document.getElementById(id);
  if (el) el.style.opacity = '0';
}`
