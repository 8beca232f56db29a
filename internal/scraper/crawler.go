package scraper

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sitewise-ai/sitewise/internal/core"
)

// PageRecord is one successfully scraped page. Immutable after creation.
type PageRecord struct {
	URL      string
	Title    string
	Markdown string
}

// CrawlProgressFunc reports a fetched URL together with the visited count and
// the current best total estimate. Best effort only.
type CrawlProgressFunc func(url string, visited, total int)

// VisitedSet is the deduplication state shared by all fetch tasks of a crawl,
// and across crawlers within one scrape invocation. The membership check and
// the insertion happen in a single critical section, so a URL is claimed
// at most once even under concurrent workers.
type VisitedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

func NewVisitedSet() *VisitedSet {
	return &VisitedSet{urls: make(map[string]struct{})}
}

// MarkIfNew claims a URL. It returns false if the URL was already claimed.
func (s *VisitedSet) MarkIfNew(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.urls[url]; ok {
		return false
	}
	s.urls[url] = struct{}{}
	return true
}

// Contains is an advisory check used to pre-filter frontiers; MarkIfNew
// remains the only authority on claiming.
func (s *VisitedSet) Contains(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.urls[url]
	return ok
}

func (s *VisitedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}

// CrawlerConfig tunes one crawl session.
type CrawlerConfig struct {
	MaxConcurrent int           // simultaneous page fetches (default 5)
	MaxDepth      int           // BFS depth bound (default 3)
	PageTimeout   time.Duration // per-navigation timeout (default 30s)
	Progress      CrawlProgressFunc
}

// Crawler owns one browser session and performs breadth-first, depth-bounded,
// same-host crawling with deduplication and bounded parallelism. A Crawler is
// created fresh per scrape invocation and must not be reused after the
// session is torn down.
type Crawler struct {
	engine core.RenderEngine
	cfg    CrawlerConfig
	sem    *semaphore.Weighted

	visited *VisitedSet

	mu            sync.Mutex
	results       []PageRecord
	totalEstimate int

	session core.BrowserSession
}

func NewCrawler(engine core.RenderEngine, cfg CrawlerConfig) *Crawler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 3
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 30 * time.Second
	}
	return &Crawler{
		engine:  engine,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		visited: NewVisitedSet(),
	}
}

// ShareVisited makes the crawler deduplicate against a set owned by the
// caller, so URLs reachable from several seeds are fetched once.
func (c *Crawler) ShareVisited(v *VisitedSet) {
	if v != nil {
		c.visited = v
	}
}

// Results returns the pages scraped so far, in completion order. Completion
// order is not request order; concurrent fetches finish out of order.
func (c *Crawler) Results() []PageRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PageRecord, len(c.results))
	copy(out, c.results)
	return out
}

// CrawlRecursive crawls breadth-first from the seed URLs, following links on
// the host of the first seed up to the configured depth. The browser session
// is torn down on every exit path.
func (c *Crawler) CrawlRecursive(ctx context.Context, seeds []string) ([]PageRecord, error) {
	if len(seeds) == 0 {
		return nil, nil
	}

	baseHost := HostOf(seeds[0])
	c.setEstimate(len(seeds) * 10)

	if err := c.startBrowser(ctx); err != nil {
		return nil, err
	}
	defer c.stopBrowser()

	frontier := make([]string, 0, len(seeds))
	for _, u := range seeds {
		frontier = append(frontier, NormalizeURL(u))
	}

	for depth := 0; depth < c.cfg.MaxDepth; depth++ {
		if len(frontier) == 0 {
			break
		}

		toCrawl := frontier[:0]
		for _, u := range frontier {
			if !c.visited.Contains(u) && !ShouldSkipURL(u) {
				toCrawl = append(toCrawl, u)
			}
		}
		if len(toCrawl) == 0 {
			break
		}
		log.Printf("crawler: depth %d: %d URLs", depth, len(toCrawl))

		// Fan out the whole level, fan in before descending.
		var nextMu sync.Mutex
		next := make(map[string]struct{})
		g, gctx := errgroup.WithContext(ctx)
		for _, u := range toCrawl {
			url := u
			g.Go(func() error {
				links := c.crawlPage(gctx, url, depth, baseHost)
				nextMu.Lock()
				for _, l := range links {
					next[l] = struct{}{}
				}
				nextMu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return c.Results(), err
		}

		frontier = frontier[:0]
		for u := range next {
			frontier = append(frontier, u)
		}
		c.setEstimate(c.visited.Len() + len(frontier))
	}

	return c.Results(), nil
}

// CrawlBatch fetches a fixed URL list without following links; used for
// sitemap-derived URLs.
func (c *Crawler) CrawlBatch(ctx context.Context, urls []string) ([]PageRecord, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	c.setEstimate(len(urls))

	if err := c.startBrowser(ctx); err != nil {
		return nil, err
	}
	defer c.stopBrowser()

	g, gctx := errgroup.WithContext(ctx)
	for _, u := range urls {
		url := NormalizeURL(u)
		g.Go(func() error {
			// Depth forced to the bound and no base host, so no expansion.
			c.crawlPage(gctx, url, c.cfg.MaxDepth, "")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return c.Results(), err
	}
	return c.Results(), nil
}

// crawlPage fetches one page and returns discovered same-host links for the
// next BFS level. Fetch-level failures are logged and swallowed; the crawl
// continues.
func (c *Crawler) crawlPage(ctx context.Context, url string, depth int, baseHost string) []string {
	norm := NormalizeURL(url)

	if ShouldSkipURL(norm) {
		return nil
	}
	// Claim before any network activity: at-most-once fetch per URL.
	if !c.visited.MarkIfNew(norm) {
		return nil
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil
	}
	defer c.sem.Release(1)

	page, err := c.session.NewPage(ctx)
	if err != nil {
		log.Printf("crawler: open page for %s: %v", url, err)
		return nil
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Printf("crawler: close page %s: %v", url, err)
		}
	}()

	nav, err := page.Navigate(ctx, url, c.cfg.PageTimeout)
	if err != nil {
		log.Printf("crawler: error crawling %s: %v", url, err)
		return nil
	}

	// Give client-side rendered apps a chance to populate the body.
	page.WaitReady(ctx)

	if nav.Status >= 400 {
		log.Printf("crawler: failed to load %s: status %d", url, nav.Status)
		return nil
	}
	ct := strings.ToLower(nav.ContentType)
	if !strings.Contains(ct, "text/html") && !strings.Contains(ct, "text/plain") {
		return nil
	}

	c.reportProgress(norm)

	htmlContent, err := page.Content(ctx)
	if err != nil {
		log.Printf("crawler: read content %s: %v", url, err)
		return nil
	}

	title, err := page.Title(ctx)
	if err != nil || strings.TrimSpace(title) == "" {
		title = titleFromURL(norm)
	}

	markdown := HTMLToMarkdown(htmlContent)

	c.mu.Lock()
	c.results = append(c.results, PageRecord{URL: norm, Title: title, Markdown: markdown})
	c.mu.Unlock()
	log.Printf("crawler: scraped %s (depth=%d)", norm, depth)

	if depth >= c.cfg.MaxDepth-1 || baseHost == "" {
		return nil
	}

	links, err := page.Links(ctx)
	if err != nil {
		log.Printf("crawler: extract links %s: %v", url, err)
		return nil
	}
	return c.filterDiscovered(links, baseHost)
}

// filterDiscovered keeps links that are unvisited, fetchable and on the crawl
// host.
func (c *Crawler) filterDiscovered(links []string, baseHost string) []string {
	var out []string
	for _, link := range links {
		norm := NormalizeURL(link)
		if norm == "" || c.visited.Contains(norm) || ShouldSkipURL(norm) {
			continue
		}
		if !SameHost(norm, baseHost) {
			continue
		}
		out = append(out, norm)
	}
	return out
}

func (c *Crawler) startBrowser(ctx context.Context) error {
	if c.session != nil {
		return nil
	}
	session, err := c.engine.Launch(ctx)
	if err != nil {
		return err
	}
	c.session = session
	return nil
}

// stopBrowser tears the session down; teardown failures are logged but never
// mask the crawl's own result.
func (c *Crawler) stopBrowser() {
	if c.session == nil {
		return
	}
	if err := c.session.Close(); err != nil {
		log.Printf("crawler: browser teardown: %v", err)
	}
	c.session = nil
}

func (c *Crawler) setEstimate(n int) {
	c.mu.Lock()
	c.totalEstimate = n
	c.mu.Unlock()
}

func (c *Crawler) reportProgress(url string) {
	if c.cfg.Progress == nil {
		return
	}
	visited := c.visited.Len()
	c.mu.Lock()
	total := c.totalEstimate
	c.mu.Unlock()
	if visited > total {
		total = visited
	}
	defer func() {
		// A failing callback must not abort the crawl.
		_ = recover()
	}()
	c.cfg.Progress(url, visited, total)
}
