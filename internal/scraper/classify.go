package scraper

import (
	"net/url"
	"strings"
)

// SourceKind is how a seed URL gets routed by the scraper.
type SourceKind int

const (
	SourceHTMLPage SourceKind = iota
	SourceSitemap
	SourceTextResource
)

// File extensions that never contain scrapeable text.
var skipExtensions = []string{
	".pdf", ".zip", ".rar", ".7z", ".tar", ".gz",
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".bmp", ".ico",
	".css", ".js", ".json", ".xml",
	".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".mp3", ".mp4", ".avi", ".mov", ".wmv", ".flv",
	".exe", ".dmg", ".deb", ".rpm", ".msi",
	".woff", ".woff2", ".ttf", ".eot",
}

// Classify routes a URL to sitemap, text resource or HTML page handling.
func Classify(rawURL string) SourceKind {
	switch {
	case IsSitemap(rawURL):
		return SourceSitemap
	case IsTextResource(rawURL):
		return SourceTextResource
	default:
		return SourceHTMLPage
	}
}

// IsSitemap reports whether the URL points at a sitemap.
func IsSitemap(rawURL string) bool {
	if strings.HasSuffix(rawURL, "sitemap.xml") {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.Contains(u.Path, "sitemap")
}

// IsTextResource reports whether the URL is a plain text or markdown file.
func IsTextResource(rawURL string) bool {
	return strings.HasSuffix(rawURL, ".txt") ||
		strings.HasSuffix(rawURL, ".md") ||
		strings.HasSuffix(rawURL, ".markdown")
}

// ShouldSkipURL reports whether a URL must never be fetched: mailto and
// file schemes, non-text file extensions, and forced-download query params.
// Pure function of the URL string.
func ShouldSkipURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)

	if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "file://") {
		return true
	}

	u, err := url.Parse(lower)
	if err != nil {
		return true
	}

	path := u.Path
	for _, ext := range skipExtensions {
		if strings.HasSuffix(path, ext) || strings.Contains(path, ext+".") {
			return true
		}
	}

	query := u.RawQuery
	if strings.Contains(query, "download") || strings.Contains(query, "attachment") {
		return true
	}
	return false
}

// NormalizeURL strips the fragment; the result is the deduplication key.
func NormalizeURL(rawURL string) string {
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// SameHost reports whether the URL's network location matches baseHost.
func SameHost(rawURL, baseHost string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Host == baseHost
}

// HostOf returns the network location of a URL, or "" if unparseable.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// titleFromURL derives a display title from the last non-empty path segment,
// falling back to the host.
func titleFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	path := strings.Trim(u.Path, "/")
	if path != "" {
		parts := strings.Split(path, "/")
		return parts[len(parts)-1]
	}
	if u.Host != "" {
		return u.Host
	}
	return rawURL
}
