package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmartChunkMarkdownEmptyInput(t *testing.T) {
	assert.Nil(t, SmartChunkMarkdown("", 1000))
	assert.Nil(t, SmartChunkMarkdown("   \n\t  ", 1000))
}

func TestSmartChunkMarkdownSmallDocIsOneChunk(t *testing.T) {
	md := "# Title\n\nSome short content."
	chunks := SmartChunkMarkdown(md, 1000)
	require.Len(t, chunks, 1)
	assert.Equal(t, md, chunks[0])
}

func TestSmartChunkMarkdownSplitsOnH1(t *testing.T) {
	md := "# First\n" + strings.Repeat("a", 600) + "\n# Second\n" + strings.Repeat("b", 600)
	chunks := SmartChunkMarkdown(md, 1000)
	require.Len(t, chunks, 2)
	assert.True(t, strings.HasPrefix(chunks[0], "# First"))
	assert.True(t, strings.HasPrefix(chunks[1], "# Second"))
}

func TestSmartChunkMarkdownFallsThroughToH2(t *testing.T) {
	section := func(h, body string) string { return h + "\n" + body + "\n" }
	md := section("# Big", "") +
		section("## A", strings.Repeat("a", 700)) +
		section("## B", strings.Repeat("b", 700))
	chunks := SmartChunkMarkdown(md, 1000)
	require.GreaterOrEqual(t, len(chunks), 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 1000)
	}
}

func TestSmartChunkMarkdownNoHeadersFixedWindows(t *testing.T) {
	md := strings.Repeat("x", 2500)
	chunks := SmartChunkMarkdown(md, 1000)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 500)
}

func TestSmartChunkMarkdownContentBeforeFirstHeaderKept(t *testing.T) {
	md := "intro paragraph before any header\n\n# Section\nbody"
	chunks := SmartChunkMarkdown(md, 1000)
	require.Len(t, chunks, 2)
	assert.Equal(t, "intro paragraph before any header", chunks[0])
	assert.True(t, strings.HasPrefix(chunks[1], "# Section"))
}

func TestSmartChunkMarkdownAllChunksBounded(t *testing.T) {
	var b strings.Builder
	b.WriteString("# Doc\n")
	for i := 0; i < 5; i++ {
		b.WriteString("## Part\n")
		b.WriteString(strings.Repeat("word ", 400))
		b.WriteString("\n")
	}
	chunks := SmartChunkMarkdown(b.String(), 800)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 800)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestSmartChunkMarkdownPreservesOrder(t *testing.T) {
	md := "# One\nalpha\n# Two\nbravo\n# Three\ncharlie"
	chunks := SmartChunkMarkdown(md, 1000)
	require.Len(t, chunks, 3)
	assert.Contains(t, chunks[0], "alpha")
	assert.Contains(t, chunks[1], "bravo")
	assert.Contains(t, chunks[2], "charlie")
}

func TestSmartChunkMarkdownZeroMaxLenUsesDefault(t *testing.T) {
	md := strings.Repeat("y", 1500)
	chunks := SmartChunkMarkdown(md, 0)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 1000)
}

func TestExtractSectionInfo(t *testing.T) {
	chunk := "# Top\nsome text here\n## Nested\nmore words"
	info := ExtractSectionInfo(chunk)
	assert.Equal(t, "# Top; ## Nested", info.Headers)
	assert.Equal(t, len(chunk), info.CharCount)
	assert.Equal(t, 9, info.WordCount)
}

func TestExtractSectionInfoNoHeaders(t *testing.T) {
	info := ExtractSectionInfo("plain text only")
	assert.Empty(t, info.Headers)
	assert.Equal(t, 3, info.WordCount)
}
