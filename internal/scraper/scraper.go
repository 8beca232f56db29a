package scraper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sitewise-ai/sitewise/internal/core"
)

// Cap on sitemap-derived URLs, to bound crawl cost.
const sitemapURLLimit = 50

// ChunkSet is chunked content ready for a vector-index upsert.
type ChunkSet struct {
	IDs       []string
	Documents []string
	Metadatas []map[string]any
}

// WebsiteScraper routes seed URLs to the right acquisition strategy (sitemap
// batch, text fetch, recursive crawl) and merges the results without
// duplication. Seeds are processed sequentially so only one browser session
// is live at a time; each seed's own crawl is parallel internally.
type WebsiteScraper struct {
	engine        core.RenderEngine
	chunkSize     int
	maxDepth      int
	maxConcurrent int
	pageTimeout   time.Duration
}

func NewWebsiteScraper(engine core.RenderEngine, chunkSize, maxDepth, maxConcurrent int, pageTimeout time.Duration) *WebsiteScraper {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	if pageTimeout <= 0 {
		pageTimeout = 30 * time.Second
	}
	return &WebsiteScraper{
		engine:        engine,
		chunkSize:     chunkSize,
		maxDepth:      maxDepth,
		maxConcurrent: maxConcurrent,
		pageTimeout:   pageTimeout,
	}
}

// ScrapeURLs scrapes all seed URLs, deduplicating across them: a URL
// reachable from two seeds is fetched once and attributed to whichever crawl
// claims it first. Per-seed failures are logged and skipped.
func (s *WebsiteScraper) ScrapeURLs(ctx context.Context, urls []string, progress CrawlProgressFunc) ([]PageRecord, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	log.Printf("scraper: starting scrape of %d URLs", len(urls))

	visited := NewVisitedSet()
	var all []PageRecord

	for i, rawURL := range urls {
		norm := NormalizeURL(rawURL)
		if visited.Contains(norm) {
			log.Printf("scraper: skipping already visited URL: %s", rawURL)
			continue
		}

		switch Classify(rawURL) {
		case SourceTextResource:
			log.Printf("scraper: detected text resource: %s", rawURL)
			if rec, ok := s.fetchTextResource(ctx, norm, visited, progress); ok {
				all = append(all, rec)
			}

		case SourceSitemap:
			log.Printf("scraper: detected sitemap: %s", rawURL)
			sitemapURLs := ParseSitemap(ctx, rawURL)
			if len(sitemapURLs) == 0 {
				continue
			}
			if len(sitemapURLs) > sitemapURLLimit {
				sitemapURLs = sitemapURLs[:sitemapURLLimit]
			}
			reportSeedProgress(progress, rawURL, i+1, len(urls))

			// Depth 1 disables link following for sitemap batches.
			crawler := NewCrawler(s.engine, CrawlerConfig{
				MaxConcurrent: s.maxConcurrent,
				MaxDepth:      1,
				PageTimeout:   s.pageTimeout,
				Progress:      progress,
			})
			crawler.ShareVisited(visited)
			results, err := crawler.CrawlBatch(ctx, sitemapURLs)
			if err != nil {
				log.Printf("scraper: error scraping %s: %v", rawURL, err)
				continue
			}
			all = append(all, results...)

		default:
			log.Printf("scraper: detected regular URL: %s", rawURL)
			reportSeedProgress(progress, rawURL, i+1, len(urls))

			crawler := NewCrawler(s.engine, CrawlerConfig{
				MaxConcurrent: s.maxConcurrent,
				MaxDepth:      s.maxDepth,
				PageTimeout:   s.pageTimeout,
				Progress:      progress,
			})
			crawler.ShareVisited(visited)
			results, err := crawler.CrawlRecursive(ctx, []string{rawURL})
			if err != nil {
				log.Printf("scraper: error scraping %s: %v", rawURL, err)
				continue
			}
			all = append(all, results...)
		}
	}

	log.Printf("scraper: scraping completed, found %d unique documents", len(all))
	return all, nil
}

// fetchTextResource handles .txt/.md seeds: a plain GET, no browser.
func (s *WebsiteScraper) fetchTextResource(ctx context.Context, norm string, visited *VisitedSet, progress CrawlProgressFunc) (PageRecord, bool) {
	reportSeedProgress(progress, norm, 1, 1)

	body, err := FetchTextResource(ctx, norm)
	if err != nil {
		log.Printf("scraper: failed to fetch %s: %v", norm, err)
		return PageRecord{}, false
	}
	if !visited.MarkIfNew(norm) {
		return PageRecord{}, false
	}
	return PageRecord{URL: norm, Title: titleFromURL(norm), Markdown: body}, true
}

// ProcessContent chunks scraped pages and assembles the id/document/metadata
// triples for the vector index. IDs are sequential per invocation.
func (s *WebsiteScraper) ProcessContent(pages []PageRecord) ChunkSet {
	var set ChunkSet
	chunkIdx := 0

	for _, page := range pages {
		chunks := SmartChunkMarkdown(page.Markdown, s.chunkSize)
		log.Printf("scraper: chunking %s: %d chars -> %d chunks", page.URL, len(page.Markdown), len(chunks))
		if len(chunks) == 0 && len(page.Markdown) > 0 {
			log.Printf("scraper: WARNING: page %s has content but produced 0 chunks", page.URL)
		}

		for _, chunk := range chunks {
			info := ExtractSectionInfo(chunk)
			set.IDs = append(set.IDs, chunkID("chunk", chunkIdx))
			set.Documents = append(set.Documents, chunk)
			set.Metadatas = append(set.Metadatas, map[string]any{
				"source":      page.URL,
				"title":       page.Title,
				"headers":     info.Headers,
				"char_count":  info.CharCount,
				"word_count":  info.WordCount,
				"chunk_index": chunkIdx,
			})
			chunkIdx++
		}
	}

	log.Printf("scraper: processed content into %d chunks", len(set.Documents))
	return set
}

func chunkID(prefix string, n int) string {
	return fmt.Sprintf("%s-%d", prefix, n)
}

func reportSeedProgress(progress CrawlProgressFunc, url string, index, total int) {
	if progress == nil {
		return
	}
	defer func() { _ = recover() }()
	progress(url, index, total)
}
