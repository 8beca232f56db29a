package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sitemapXML = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/</loc></url>
  <url><loc>https://example.com/about</loc></url>
  <url><loc>https://example.com/brochure.pdf</loc></url>
  <url><loc>https://example.com/pricing</loc></url>
</urlset>`

func TestParseSitemap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(sitemapXML))
	}))
	defer srv.Close()

	urls := ParseSitemap(context.Background(), srv.URL+"/sitemap.xml")
	require.Len(t, urls, 3)
	assert.Contains(t, urls, "https://example.com/")
	assert.Contains(t, urls, "https://example.com/about")
	assert.Contains(t, urls, "https://example.com/pricing")
	assert.NotContains(t, urls, "https://example.com/brochure.pdf")
}

func TestParseSitemapUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	urls := ParseSitemap(context.Background(), srv.URL+"/sitemap.xml")
	assert.Empty(t, urls)
}

func TestExtractSitemapLocsSitemapIndex(t *testing.T) {
	index := `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/sitemap-1.xml</loc></sitemap>
  <sitemap><loc>https://example.com/sitemap-2.xml</loc></sitemap>
</sitemapindex>`
	urls := extractSitemapLocs([]byte(index))
	assert.Equal(t, []string{
		"https://example.com/sitemap-1.xml",
		"https://example.com/sitemap-2.xml",
	}, urls)
}

func TestFetchTextResource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte("# Readme\nplain text body"))
	}))
	defer srv.Close()

	body, err := FetchTextResource(context.Background(), srv.URL+"/readme.md")
	require.NoError(t, err)
	assert.Equal(t, "# Readme\nplain text body", body)
}

func TestFetchTextResourceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := FetchTextResource(context.Background(), srv.URL+"/readme.md")
	assert.Error(t, err)
}
