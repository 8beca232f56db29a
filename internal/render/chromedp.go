// Package render implements the rendering-engine contract on headless Chrome
// via chromedp, giving the crawler JavaScript rendering for dynamic sites.
package render

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/sitewise-ai/sitewise/internal/core"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Settle delay after load before content extraction; lets late JS finish.
const settleDelay = 2 * time.Second

// readyTimeout bounds the best-effort wait for non-trivial body text.
const readyTimeout = 5 * time.Second

type ChromeEngine struct{}

func NewChromeEngine() *ChromeEngine {
	return &ChromeEngine{}
}

var _ core.RenderEngine = (*ChromeEngine)(nil)

// Launch starts one headless browser. The returned session owns the
// allocator and must be closed by the caller.
func (e *ChromeEngine) Launch(ctx context.Context) (core.BrowserSession, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(
		context.Background(),
		append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.IgnoreCertErrors,
			chromedp.UserAgent(userAgent),
			chromedp.WindowSize(1920, 1080),
		)...,
	)

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Run an empty task list to force the browser process up now, so launch
	// failures surface here and not on the first page.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, err
	}

	return &chromeSession{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

type chromeSession struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

var _ core.BrowserSession = (*chromeSession)(nil)

func (s *chromeSession) NewPage(ctx context.Context) (core.Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	return &chromePage{tabCtx: tabCtx, tabCancel: tabCancel}, nil
}

func (s *chromeSession) Close() error {
	s.browserCancel()
	s.allocCancel()
	return nil
}

type chromePage struct {
	tabCtx    context.Context
	tabCancel context.CancelFunc
}

var _ core.Page = (*chromePage)(nil)

// Navigate loads the URL and captures the main-document response status and
// content type from the network events.
func (p *chromePage) Navigate(ctx context.Context, url string, timeout time.Duration) (core.NavigateResult, error) {
	navCtx, cancel := context.WithTimeout(p.tabCtx, timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		status int
		ctype  string
	)
	chromedp.ListenTarget(navCtx, func(ev any) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if status != 0 {
			return
		}
		status = int(resp.Response.Status)
		if v, ok := resp.Response.Headers["Content-Type"]; ok {
			if s, ok := v.(string); ok {
				ctype = strings.ToLower(s)
			}
		}
	})

	err := chromedp.Run(navCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return core.NavigateResult{}, err
	}

	mu.Lock()
	defer mu.Unlock()
	if status == 0 {
		// No document response event (e.g. served from cache); treat as OK.
		status = 200
		ctype = "text/html"
	}
	return core.NavigateResult{Status: status, ContentType: ctype}, nil
}

// WaitReady sleeps for the settle delay, then waits (best effort) for the
// body to carry non-trivial text. Timeouts are fine; some pages never stop
// loading and some genuinely have little content.
func (p *chromePage) WaitReady(ctx context.Context) {
	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
		return
	}

	pollCtx, cancel := context.WithTimeout(p.tabCtx, readyTimeout)
	defer cancel()
	var ready bool
	_ = chromedp.Run(pollCtx,
		chromedp.Poll(`document.body && document.body.innerText.length > 100`, &ready),
	)
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	var html string
	err := chromedp.Run(p.tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) Title(ctx context.Context) (string, error) {
	var title string
	err := chromedp.Run(p.tabCtx, chromedp.Title(&title))
	return title, err
}

func (p *chromePage) Links(ctx context.Context) ([]string, error) {
	var links []string
	err := chromedp.Run(p.tabCtx, chromedp.Evaluate(
		`Array.from(document.querySelectorAll('a[href]')).map(a => a.href).filter(h => h.startsWith('http'))`,
		&links,
	))
	return links, err
}

func (p *chromePage) Close() error {
	p.tabCancel()
	return nil
}
