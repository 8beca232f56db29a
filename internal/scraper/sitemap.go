package scraper

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Browser UA; many sites 403 the default Go client string.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var fetchClient = &http.Client{Timeout: 30 * time.Second}

// ParseSitemap fetches a sitemap.xml and extracts its <loc> URLs, filtering
// out file URLs and mailto links. Errors are logged and yield an empty list;
// an unreachable sitemap is per-item noise, not a crawl failure.
func ParseSitemap(ctx context.Context, sitemapURL string) []string {
	body, err := fetchURL(ctx, sitemapURL)
	if err != nil {
		log.Printf("scraper: error parsing sitemap %s: %v", sitemapURL, err)
		return nil
	}

	urls := extractSitemapLocs(body)
	filtered := urls[:0]
	for _, u := range urls {
		if u != "" && !ShouldSkipURL(u) {
			filtered = append(filtered, u)
		}
	}
	log.Printf("scraper: parsed %d URLs from sitemap %s", len(filtered), sitemapURL)
	return filtered
}

// extractSitemapLocs scans for <loc> elements regardless of namespace, so
// both urlset and sitemapindex documents work.
func extractSitemapLocs(body []byte) []string {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var urls []string
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "loc" {
			var loc string
			if err := dec.DecodeElement(&loc, &se); err == nil && loc != "" {
				urls = append(urls, loc)
			}
		}
	}
	return urls
}

// FetchTextResource downloads a .txt/.md resource and returns its body.
func FetchTextResource(ctx context.Context, rawURL string) (string, error) {
	body, err := fetchURL(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func fetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := fetchClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
