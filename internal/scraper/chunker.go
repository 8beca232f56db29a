package scraper

import (
	"regexp"
	"strings"
)

// Header patterns for the hierarchical split, in descending priority.
var (
	h1Pattern      = regexp.MustCompile(`(?m)^# .+$`)
	h2Pattern      = regexp.MustCompile(`(?m)^## .+$`)
	h3Pattern      = regexp.MustCompile(`(?m)^### .+$`)
	headerPattern  = regexp.MustCompile(`(?m)^(#+)\s+(.+)$`)
	defaultMaxLen  = 1000
)

// SectionInfo carries the per-chunk stats stored as vector metadata.
type SectionInfo struct {
	Headers   string
	CharCount int
	WordCount int
}

// SmartChunkMarkdown hierarchically splits markdown by #, ## and ### headers,
// then by fixed-width character windows. Every returned chunk is non-empty
// and at most maxLen characters, in source order.
//
// Content before the first header (or with no headers at all) is kept, never
// discarded.
func SmartChunkMarkdown(markdown string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	if strings.TrimSpace(markdown) == "" {
		return nil
	}

	var chunks []string
	for _, h1 := range splitByHeader(markdown, h1Pattern) {
		if len(h1) <= maxLen {
			chunks = append(chunks, h1)
			continue
		}
		for _, h2 := range splitByHeader(h1, h2Pattern) {
			if len(h2) <= maxLen {
				chunks = append(chunks, h2)
				continue
			}
			for _, h3 := range splitByHeader(h2, h3Pattern) {
				if len(h3) <= maxLen {
					chunks = append(chunks, h3)
					continue
				}
				// Last resort: character windows.
				chunks = append(chunks, sliceFixed(h3, maxLen)...)
			}
		}
	}

	// Final pass: re-verify every chunk against maxLen. Should be a no-op
	// after the window split above.
	final := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if len(c) > maxLen {
			final = append(final, sliceFixed(c, maxLen)...)
		} else if c != "" {
			final = append(final, c)
		}
	}
	return final
}

// splitByHeader splits md at each match of pattern, including any content
// before the first match. Sections that are empty after trimming are dropped.
// If no match exists the whole (trimmed) text is one section.
func splitByHeader(md string, pattern *regexp.Regexp) []string {
	locs := pattern.FindAllStringIndex(md, -1)
	if len(locs) == 0 {
		if s := strings.TrimSpace(md); s != "" {
			return []string{s}
		}
		return nil
	}

	indices := make([]int, 0, len(locs)+2)
	if locs[0][0] > 0 {
		indices = append(indices, 0)
	}
	for _, loc := range locs {
		indices = append(indices, loc[0])
	}
	indices = append(indices, len(md))

	sections := make([]string, 0, len(indices)-1)
	for i := 0; i < len(indices)-1; i++ {
		if s := strings.TrimSpace(md[indices[i]:indices[i+1]]); s != "" {
			sections = append(sections, s)
		}
	}
	return sections
}

// sliceFixed cuts text into windows of exactly maxLen characters (the last
// may be shorter), trimming each and dropping empty windows.
func sliceFixed(text string, maxLen int) []string {
	var out []string
	for i := 0; i < len(text); i += maxLen {
		end := i + maxLen
		if end > len(text) {
			end = len(text)
		}
		if s := strings.TrimSpace(text[i:end]); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ExtractSectionInfo pulls the header trail and size stats out of a chunk.
func ExtractSectionInfo(chunk string) SectionInfo {
	matches := headerPattern.FindAllStringSubmatch(chunk, -1)
	headers := make([]string, 0, len(matches))
	for _, m := range matches {
		headers = append(headers, m[1]+" "+m[2])
	}
	return SectionInfo{
		Headers:   strings.Join(headers, "; "),
		CharCount: len(chunk),
		WordCount: len(strings.Fields(chunk)),
	}
}
