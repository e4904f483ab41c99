// Package rodpage implements page.Page on a Chrome tab driven by go-rod.
package rodpage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/pevans/pagecat/page"
	"github.com/sirupsen/logrus"
)

// Options configures the browser.
type Options struct {
	// ControlURL connects to an already running browser instead of
	// launching one. Use it to reuse a logged-in profile.
	ControlURL string `yaml:"control_url"`

	BinPath     string `yaml:"bin_path"`
	Headless    bool   `yaml:"headless"`
	ProxyURL    string `yaml:"proxy_url"`
	UserDataDir string `yaml:"user_data_dir"`
	UserAgent   string `yaml:"user_agent"`

	NavigateTimeout time.Duration `yaml:"navigate_timeout"`
}

// DefaultNavigateTimeout bounds page loads when Options leaves it unset.
const DefaultNavigateTimeout = 60 * time.Second

// Browser owns one browser connection and opens stealth tabs on it.
type Browser struct {
	browser *rod.Browser
	opts    Options
	logger  *logrus.Logger
}

// Launch starts or connects to a browser.
func Launch(opts Options, logger *logrus.Logger) (*Browser, error) {
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = DefaultNavigateTimeout
	}

	controlURL := opts.ControlURL
	if controlURL == "" {
		bin := opts.BinPath
		if bin == "" {
			logger.Info("No browser binary specified, downloading default")
			path, err := launcher.NewBrowser().Get()
			if err != nil {
				return nil, fmt.Errorf("failed to download browser: %w", err)
			}
			bin = path
		}

		l := launcher.New().
			Headless(opts.Headless).
			Bin(bin).
			NoSandbox(true)
		if opts.ProxyURL != "" {
			l = l.Proxy(opts.ProxyURL)
		}
		if opts.UserDataDir != "" {
			l = l.UserDataDir(opts.UserDataDir)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect browser: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"control_url": controlURL,
		"headless":    opts.Headless,
	}).Info("Browser connected")

	return &Browser{browser: browser, opts: opts, logger: logger}, nil
}

// Open opens url in a new tab and waits for it to load.
func (b *Browser) Open(ctx context.Context, url string) (page.Page, error) {
	tab, err := stealth.Page(b.browser)
	if err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	if b.opts.UserAgent != "" {
		if err := tab.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.opts.UserAgent}); err != nil {
			_ = tab.Close()
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	p := newPage(tab, b.logger)

	navCtx, cancel := context.WithTimeout(ctx, b.opts.NavigateTimeout)
	defer cancel()
	nav := tab.Context(navCtx)
	if err := nav.Navigate(url); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}
	if err := nav.WaitLoad(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to load page: %w", err)
	}

	if info, err := tab.Info(); err == nil {
		b.logger.WithFields(logrus.Fields{
			"title": info.Title,
			"url":   info.URL,
		}).Info("Page loaded")
	}

	return p, nil
}

// Close closes the browser and every tab it opened.
func (b *Browser) Close() error {
	return b.browser.Close()
}

// Page is a live tab. It reports uncaught script errors and lost
// connectivity on Faults.
type Page struct {
	tab    *rod.Page
	logger *logrus.Logger

	faults    *faultQueue
	stopWatch context.CancelFunc
	closeOnce sync.Once
}

func newPage(tab *rod.Page, logger *logrus.Logger) *Page {
	watchCtx, cancel := context.WithCancel(context.Background())
	p := &Page{
		tab:       tab,
		logger:    logger,
		faults:    newFaultQueue(),
		stopWatch: cancel,
	}

	watcher := tab.Context(watchCtx)
	_ = proto.RuntimeEnable{}.Call(watcher)
	_ = proto.NetworkEnable{}.Call(watcher)

	wait := watcher.EachEvent(
		func(e *proto.RuntimeExceptionThrown) {
			p.report(fmt.Errorf("%w: %s", page.ErrPageScript, exceptionText(e)))
		},
		func(e *proto.NetworkLoadingFailed) {
			if strings.Contains(e.ErrorText, "ERR_INTERNET_DISCONNECTED") {
				p.report(page.ErrOffline)
			}
		},
	)
	go wait()

	return p
}

func (p *Page) report(err error) {
	if !p.faults.report(err) {
		p.logger.WithFields(logrus.Fields{
			"error": err,
		}).Debug("Page fault outside a scroll session")
		return
	}

	p.logger.WithFields(logrus.Fields{
		"error": err,
	}).Warn("Page fault")
}

// faultQueue holds at most one pending fault. Faults reported before arm
// is called, such as script errors thrown while the page loads, are dropped.
type faultQueue struct {
	mu    sync.Mutex
	armed bool
	ch    chan error
}

func newFaultQueue() *faultQueue {
	return &faultQueue{ch: make(chan error, 1)}
}

// report queues err and reports whether it was kept.
func (q *faultQueue) report(err error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.armed {
		return false
	}
	select {
	case q.ch <- err:
		return true
	default:
		return false
	}
}

// arm discards any fault left over from an earlier session and starts
// accepting new ones.
func (q *faultQueue) arm() <-chan error {
	q.mu.Lock()
	defer q.mu.Unlock()

	select {
	case <-q.ch:
	default:
	}
	q.armed = true
	return q.ch
}

func exceptionText(e *proto.RuntimeExceptionThrown) string {
	if e.ExceptionDetails == nil {
		return "unknown error"
	}
	if ex := e.ExceptionDetails.Exception; ex != nil && ex.Description != "" {
		return ex.Description
	}
	return e.ExceptionDetails.Text
}

// Faults implements page.FaultReporter. Only faults raised after the call
// are delivered.
func (p *Page) Faults() <-chan error {
	return p.faults.arm()
}

// snapshotJS clones the document and records the rendered box of every
// element matching the selectors on the clone. The live DOM is not touched.
const snapshotJS = `(selectors, widthAttr, heightAttr) => {
	const root = document.documentElement;
	const clone = root.cloneNode(true);
	const matched = new Set();
	for (const sel of selectors) {
		try {
			root.querySelectorAll(sel).forEach(el => matched.add(el));
		} catch (e) {}
	}
	if (matched.size > 0) {
		const live = root.querySelectorAll('*');
		const copies = clone.querySelectorAll('*');
		for (let i = 0; i < live.length && i < copies.length; i++) {
			if (!matched.has(live[i])) continue;
			const r = live[i].getBoundingClientRect();
			copies[i].setAttribute(widthAttr, String(r.width));
			copies[i].setAttribute(heightAttr, String(r.height));
		}
	}
	return {html: clone.outerHTML, url: location.href};
}`

// Snapshot implements page.Page.
func (p *Page) Snapshot(ctx context.Context, selectors []string) (*page.Snapshot, error) {
	res, err := p.tab.Context(ctx).Eval(snapshotJS, selectors, page.BoxWidthAttr, page.BoxHeightAttr)
	if err != nil {
		return nil, p.evalError("snapshot", err)
	}

	html := res.Value.Get("html").Str()
	url := res.Value.Get("url").Str()
	return page.NewSnapshot(strings.NewReader(html), url)
}

// ScrollHeight implements page.Page. A browser that reports itself offline
// fails the call with page.ErrOffline.
func (p *Page) ScrollHeight(ctx context.Context) (float64, error) {
	res, err := p.tab.Context(ctx).Eval(`() => ({
		height: document.documentElement.scrollHeight,
		online: navigator.onLine
	})`)
	if err != nil {
		return 0, p.evalError("scroll height", err)
	}

	if !res.Value.Get("online").Bool() {
		p.report(page.ErrOffline)
		return 0, page.ErrOffline
	}
	return res.Value.Get("height").Num(), nil
}

// ScrollTo implements page.Page.
func (p *Page) ScrollTo(ctx context.Context, top float64) error {
	_, err := p.tab.Context(ctx).Eval(`(top) => window.scrollTo({top: top, behavior: 'smooth'})`, top)
	if err != nil {
		return p.evalError("scroll", err)
	}
	return nil
}

func (p *Page) evalError(op string, err error) error {
	var evalErr *rod.EvalError
	if errors.As(err, &evalErr) {
		return fmt.Errorf("%w: %s: %v", page.ErrPageScript, op, err)
	}
	return fmt.Errorf("failed to evaluate %s: %w", op, err)
}

// Close stops fault watching and closes the tab.
func (p *Page) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.stopWatch()
		err = p.tab.Close()
	})
	return err
}
