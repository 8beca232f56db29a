package scraper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitewise-ai/sitewise/internal/core"
)

type fakePageData struct {
	status      int
	contentType string
	html        string
	title       string
	links       []string
}

// fakeEngine serves canned pages and records every navigation.
type fakeEngine struct {
	mu         sync.Mutex
	pages      map[string]fakePageData
	navigated  map[string]int
	launches   int
	teardowns  int
}

func newFakeEngine(pages map[string]fakePageData) *fakeEngine {
	return &fakeEngine{pages: pages, navigated: make(map[string]int)}
}

func (e *fakeEngine) Launch(ctx context.Context) (core.BrowserSession, error) {
	e.mu.Lock()
	e.launches++
	e.mu.Unlock()
	return &fakeSession{engine: e}, nil
}

func (e *fakeEngine) navCount(url string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.navigated[url]
}

type fakeSession struct {
	engine *fakeEngine
}

func (s *fakeSession) NewPage(ctx context.Context) (core.Page, error) {
	return &fakePage{engine: s.engine}, nil
}

func (s *fakeSession) Close() error {
	s.engine.mu.Lock()
	s.engine.teardowns++
	s.engine.mu.Unlock()
	return nil
}

type fakePage struct {
	engine *fakeEngine
	data   fakePageData
}

func (p *fakePage) Navigate(ctx context.Context, url string, timeout time.Duration) (core.NavigateResult, error) {
	p.engine.mu.Lock()
	p.engine.navigated[url]++
	data, ok := p.engine.pages[url]
	p.engine.mu.Unlock()

	if !ok {
		data = fakePageData{status: 404, contentType: "text/html"}
	}
	p.data = data
	return core.NavigateResult{Status: data.status, ContentType: data.contentType}, nil
}

func (p *fakePage) WaitReady(ctx context.Context) {}

func (p *fakePage) Content(ctx context.Context) (string, error) { return p.data.html, nil }

func (p *fakePage) Title(ctx context.Context) (string, error) { return p.data.title, nil }

func (p *fakePage) Links(ctx context.Context) ([]string, error) { return p.data.links, nil }

func (p *fakePage) Close() error { return nil }

func htmlPage(title, body string, links []string) fakePageData {
	return fakePageData{
		status:      200,
		contentType: "text/html",
		html:        "<html><body><h1>" + title + "</h1><p>" + body + "</p></body></html>",
		title:       title,
		links:       links,
	}
}

func TestCrawlRecursiveFollowsSameHostLinks(t *testing.T) {
	engine := newFakeEngine(map[string]fakePageData{
		"https://example.test/": htmlPage("Home", "welcome", []string{
			"https://example.test/about",
			"https://example.test/pricing",
			"https://other.test/external",
		}),
		"https://example.test/about":   htmlPage("About", "who we are", nil),
		"https://example.test/pricing": htmlPage("Pricing", "plans", nil),
	})

	c := NewCrawler(engine, CrawlerConfig{MaxConcurrent: 2, MaxDepth: 3})
	results, err := c.CrawlRecursive(context.Background(), []string{"https://example.test/"})
	require.NoError(t, err)

	urls := make([]string, 0, len(results))
	for _, r := range results {
		urls = append(urls, r.URL)
	}
	assert.ElementsMatch(t, []string{
		"https://example.test/",
		"https://example.test/about",
		"https://example.test/pricing",
	}, urls)
	assert.Zero(t, engine.navCount("https://other.test/external"))
}

func TestCrawlRecursiveFetchesEachURLOnce(t *testing.T) {
	// Every page links back to every other page.
	all := []string{
		"https://example.test/",
		"https://example.test/a",
		"https://example.test/b",
	}
	pages := make(map[string]fakePageData)
	for _, u := range all {
		pages[u] = htmlPage("Page", "content", all)
	}
	engine := newFakeEngine(pages)

	c := NewCrawler(engine, CrawlerConfig{MaxConcurrent: 3, MaxDepth: 5})
	results, err := c.CrawlRecursive(context.Background(), []string{"https://example.test/"})
	require.NoError(t, err)
	assert.Len(t, results, 3)
	for _, u := range all {
		assert.Equal(t, 1, engine.navCount(u), u)
	}
}

func TestCrawlRecursiveRespectsDepthBound(t *testing.T) {
	engine := newFakeEngine(map[string]fakePageData{
		"https://example.test/":     htmlPage("Home", "root", []string{"https://example.test/deep"}),
		"https://example.test/deep": htmlPage("Deep", "too far", nil),
	})

	c := NewCrawler(engine, CrawlerConfig{MaxDepth: 1})
	results, err := c.CrawlRecursive(context.Background(), []string{"https://example.test/"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Zero(t, engine.navCount("https://example.test/deep"))
}

func TestCrawlRecursiveSkipsFailedPages(t *testing.T) {
	engine := newFakeEngine(map[string]fakePageData{
		"https://example.test/": {status: 500, contentType: "text/html"},
	})

	c := NewCrawler(engine, CrawlerConfig{})
	results, err := c.CrawlRecursive(context.Background(), []string{"https://example.test/"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCrawlRecursiveRejectsNonTextContent(t *testing.T) {
	engine := newFakeEngine(map[string]fakePageData{
		"https://example.test/feed": {status: 200, contentType: "application/octet-stream"},
	})

	c := NewCrawler(engine, CrawlerConfig{})
	results, err := c.CrawlRecursive(context.Background(), []string{"https://example.test/feed"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCrawlRecursiveTearsDownBrowser(t *testing.T) {
	engine := newFakeEngine(map[string]fakePageData{
		"https://example.test/": htmlPage("Home", "welcome", nil),
	})

	c := NewCrawler(engine, CrawlerConfig{})
	_, err := c.CrawlRecursive(context.Background(), []string{"https://example.test/"})
	require.NoError(t, err)
	assert.Equal(t, 1, engine.launches)
	assert.Equal(t, 1, engine.teardowns)
}

func TestCrawlBatchDoesNotFollowLinks(t *testing.T) {
	engine := newFakeEngine(map[string]fakePageData{
		"https://example.test/a": htmlPage("A", "alpha", []string{"https://example.test/c"}),
		"https://example.test/b": htmlPage("B", "bravo", []string{"https://example.test/c"}),
	})

	c := NewCrawler(engine, CrawlerConfig{MaxDepth: 1})
	results, err := c.CrawlBatch(context.Background(), []string{
		"https://example.test/a",
		"https://example.test/b",
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Zero(t, engine.navCount("https://example.test/c"))
}

func TestCrawlProgressReported(t *testing.T) {
	engine := newFakeEngine(map[string]fakePageData{
		"https://example.test/": htmlPage("Home", "welcome", nil),
	})

	var mu sync.Mutex
	var calls int
	c := NewCrawler(engine, CrawlerConfig{
		Progress: func(url string, visited, total int) {
			mu.Lock()
			calls++
			mu.Unlock()
			assert.LessOrEqual(t, visited, total)
		},
	})
	_, err := c.CrawlRecursive(context.Background(), []string{"https://example.test/"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCrawlProgressPanicDoesNotAbort(t *testing.T) {
	engine := newFakeEngine(map[string]fakePageData{
		"https://example.test/": htmlPage("Home", "welcome", nil),
	})

	c := NewCrawler(engine, CrawlerConfig{
		Progress: func(url string, visited, total int) { panic("callback bug") },
	})
	results, err := c.CrawlRecursive(context.Background(), []string{"https://example.test/"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestVisitedSetMarkIfNew(t *testing.T) {
	v := NewVisitedSet()
	assert.True(t, v.MarkIfNew("https://example.test/"))
	assert.False(t, v.MarkIfNew("https://example.test/"))
	assert.True(t, v.Contains("https://example.test/"))
	assert.Equal(t, 1, v.Len())
}

func TestShareVisitedDeduplicatesAcrossCrawlers(t *testing.T) {
	pages := map[string]fakePageData{
		"https://example.test/": htmlPage("Home", "welcome", nil),
	}
	engine := newFakeEngine(pages)
	shared := NewVisitedSet()

	c1 := NewCrawler(engine, CrawlerConfig{})
	c1.ShareVisited(shared)
	_, err := c1.CrawlRecursive(context.Background(), []string{"https://example.test/"})
	require.NoError(t, err)

	c2 := NewCrawler(engine, CrawlerConfig{})
	c2.ShareVisited(shared)
	results, err := c2.CrawlRecursive(context.Background(), []string{"https://example.test/"})
	require.NoError(t, err)

	assert.Empty(t, results)
	assert.Equal(t, 1, engine.navCount("https://example.test/"))
}
