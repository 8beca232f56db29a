package core

import (
	"context"
	"time"
)

// NavigateResult is what a page navigation reports back: the HTTP status and
// the response content type, both used to reject non-HTML or failed loads.
type NavigateResult struct {
	Status      int
	ContentType string
}

// RenderEngine launches browser sessions. One session is owned exclusively
// by one crawl invocation for its lifetime.
type RenderEngine interface {
	Launch(ctx context.Context) (BrowserSession, error)
}

// BrowserSession is a running browser. Close must be safe to call on every
// exit path, including after a failed launch of individual pages.
type BrowserSession interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab. All operations honour the supplied context.
type Page interface {
	// Navigate loads the URL, waiting up to timeout for the load to settle.
	Navigate(ctx context.Context, url string, timeout time.Duration) (NavigateResult, error)
	// WaitReady waits (best effort, never an error on timeout) for
	// client-side rendering to populate non-trivial body text.
	WaitReady(ctx context.Context)
	Content(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// Links returns all anchor hrefs on the page, absolute-resolved.
	Links(ctx context.Context) ([]string, error)
	Close() error
}
