// Package browser drives a live Chrome tab through go-rod: it loads the
// group listing, scrolls it, snapshots the DOM and reports DOM mutations.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"groups-exporter/internal/observability"
)

// Options configure Open.
type Options struct {
	ChromePath  string
	Headless    bool
	Stealth     bool
	UserDataDir string
	// RemoteURL connects to a running Chrome instead of launching one.
	RemoteURL       string
	PageTimeout     time.Duration
	WaitLoadTimeout time.Duration
	// MutationPoll is how often the mutation counter is read.
	MutationPoll time.Duration
	Logger       *observability.Logger
}

func (o *Options) defaults() {
	if o.PageTimeout <= 0 {
		o.PageTimeout = time.Minute
	}
	if o.WaitLoadTimeout <= 0 {
		o.WaitLoadTimeout = 30 * time.Second
	}
	if o.MutationPoll <= 0 {
		o.MutationPoll = 500 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = observability.NewNop()
	}
}

// Page is one browser tab showing a group listing.
type Page struct {
	opts    Options
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page

	closeOnce sync.Once
}

const snapshotJS = `() => ({ html: document.documentElement.outerHTML, url: location.href })`

const scrollJS = `(px) => window.scrollBy({ top: px, behavior: 'smooth' })`

// observerJS installs a MutationObserver that bumps a counter; it is
// idempotent per document.
const observerJS = `() => {
	if (!window.__groupsMutationCount) {
		window.__groupsMutationCount = 0;
		new MutationObserver(() => { window.__groupsMutationCount++; })
			.observe(document.documentElement, { childList: true, subtree: true });
	}
	return window.__groupsMutationCount;
}`

const mutationCountJS = `() => window.__groupsMutationCount || 0`

// Open launches (or connects to) Chrome and navigates a new tab to pageURL.
func Open(ctx context.Context, pageURL string, opts Options) (*Page, error) {
	opts.defaults()
	log := opts.Logger

	p := &Page{opts: opts}

	wsURL := opts.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(opts.Headless)
		if opts.ChromePath != "" {
			l = l.Bin(opts.ChromePath)
		}
		if opts.UserDataDir != "" {
			l = l.UserDataDir(opts.UserDataDir)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		p.lnch = l
		log.Info("Launched local chrome", "url", wsURL, "headless", opts.Headless)
	} else {
		log.Info("Connecting to remote chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		p.cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	p.browser = b

	var (
		page *rod.Page
		err  error
	)
	if opts.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		p.cleanup()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	p.page = page

	navCtx, cancel := context.WithTimeout(ctx, opts.PageTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		p.cleanup()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}

	loadCtx, cancelLoad := context.WithTimeout(ctx, opts.WaitLoadTimeout)
	defer cancelLoad()
	if err := page.Context(loadCtx).WaitLoad(); err != nil {
		log.Warn("Wait load timeout", "url", pageURL, "error", err)
	}

	return p, nil
}

// Snapshot returns the serialized DOM and the page's current URL.
func (p *Page) Snapshot(ctx context.Context) (string, string, error) {
	res, err := p.page.Context(ctx).Eval(snapshotJS)
	if err != nil {
		return "", "", fmt.Errorf("browser: snapshot: %w", err)
	}
	return res.Value.Get("html").Str(), res.Value.Get("url").Str(), nil
}

// ScrollBy scrolls the window down by px pixels.
func (p *Page) ScrollBy(ctx context.Context, px int) error {
	if _, err := p.page.Context(ctx).Eval(scrollJS, px); err != nil {
		return fmt.Errorf("browser: scroll: %w", err)
	}
	return nil
}

// Mutations installs a DOM observer in the page and signals on the returned
// channel whenever the DOM changed since the last poll. Signals coalesce.
// The channel closes when ctx is done.
func (p *Page) Mutations(ctx context.Context) (<-chan struct{}, error) {
	res, err := p.page.Context(ctx).Eval(observerJS)
	if err != nil {
		return nil, fmt.Errorf("browser: install observer: %w", err)
	}
	last := res.Value.Int()

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(p.opts.MutationPoll)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			res, err := p.page.Context(ctx).Eval(mutationCountJS)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.opts.Logger.Debug("Mutation poll failed", "error", err)
				continue
			}
			n := res.Value.Int()
			if n == last {
				continue
			}
			last = n
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}()
	return ch, nil
}

// Close closes the tab and the browser it launched.
func (p *Page) Close() error {
	p.closeOnce.Do(p.cleanup)
	return nil
}

func (p *Page) cleanup() {
	if p.page != nil {
		if err := p.page.Close(); err != nil {
			p.opts.Logger.Debug("Failed to close tab", "error", err)
		}
		p.page = nil
	}
	if p.browser != nil {
		if err := p.browser.Close(); err != nil {
			p.opts.Logger.Debug("Failed to close browser", "error", err)
		}
		p.browser = nil
	}
	if p.lnch != nil {
		p.lnch.Cleanup()
		p.lnch = nil
	}
}
