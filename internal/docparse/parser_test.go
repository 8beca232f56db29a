package docparse

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatPDF, DetectFormat("application/pdf", "x.bin"))
	assert.Equal(t, FormatPDF, DetectFormat("", "report.pdf"))
	assert.Equal(t, FormatWord, DetectFormat("application/msword", "x"))
	assert.Equal(t, FormatWord, DetectFormat("", "notes.docx"))
	assert.Equal(t, FormatText, DetectFormat("text/plain", "x"))
	assert.Equal(t, FormatText, DetectFormat("", "readme.md"))
	assert.Equal(t, FormatJSON, DetectFormat("application/json", "x"))
	assert.Equal(t, FormatCSV, DetectFormat("text/csv", "x"))
	assert.Equal(t, FormatUnknown, DetectFormat("image/png", "photo.png"))
}

func TestExtractText(t *testing.T) {
	path := writeFile(t, "notes.txt", "hello world\nsecond line")

	doc, err := Extract(context.Background(), path, "text/plain", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", doc.Filename)
	assert.Equal(t, "hello world\nsecond line", doc.Content)
	assert.Equal(t, "text/plain", doc.MimeType)
}

func TestExtractTextLatin1Fallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latin.txt")
	// 0xE9 is é in Latin-1 and invalid as a standalone UTF-8 byte.
	require.NoError(t, os.WriteFile(path, []byte{'c', 'a', 'f', 0xE9}, 0o644))

	doc, err := Extract(context.Background(), path, "text/plain", "latin.txt")
	require.NoError(t, err)
	assert.Equal(t, "café", doc.Content)
}

func TestExtractJSONObject(t *testing.T) {
	path := writeFile(t, "data.json", `{
		"name": "Acme",
		"address": {"city": "Lagos", "country": "NG"},
		"tags": ["retail", "b2b"],
		"staff": [{"role": "ceo"}]
	}`)

	doc, err := Extract(context.Background(), path, "application/json", "data.json")
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "name: Acme")
	assert.Contains(t, doc.Content, "address:")
	assert.Contains(t, doc.Content, "  city: Lagos")
	assert.Contains(t, doc.Content, "- retail")
	assert.Contains(t, doc.Content, "Item 1:")
	assert.Contains(t, doc.Content, "role: ceo")
}

func TestExtractJSONTopLevelArray(t *testing.T) {
	path := writeFile(t, "list.json", `[1, 2, 3]`)

	doc, err := Extract(context.Background(), path, "application/json", "list.json")
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "1")
	assert.Contains(t, doc.Content, "3")
}

func TestExtractJSONInvalid(t *testing.T) {
	path := writeFile(t, "bad.json", `{not json`)

	_, err := Extract(context.Background(), path, "application/json", "bad.json")
	assert.Error(t, err)
}

func TestExtractCSV(t *testing.T) {
	path := writeFile(t, "products.csv", "name,price\nwidget,10\ngadget,25\n")

	doc, err := Extract(context.Background(), path, "text/csv", "products.csv")
	require.NoError(t, err)
	lines := []string{"name | price", "widget | 10", "gadget | 25"}
	for _, l := range lines {
		assert.Contains(t, doc.Content, l)
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	path := writeFile(t, "photo.png", "not really an image")

	_, err := Extract(context.Background(), path, "image/png", "photo.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractAllPartialSuccess(t *testing.T) {
	good := writeFile(t, "a.txt", "alpha")
	bad := filepath.Join(t.TempDir(), "missing.txt")
	unsupported := writeFile(t, "c.png", "binary")

	docs, err := ExtractAll(context.Background(),
		[]string{good, bad, unsupported},
		[]string{"text/plain", "text/plain", "image/png"},
		[]string{"a.txt", "missing.txt", "c.png"},
		2)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a.txt", docs[0].Filename)
	assert.Equal(t, "alpha", docs[0].Content)
}

func TestExtractAllPreservesOrder(t *testing.T) {
	p1 := writeFile(t, "one.txt", "first")
	p2 := writeFile(t, "two.txt", "second")
	p3 := writeFile(t, "three.txt", "third")

	docs, err := ExtractAll(context.Background(),
		[]string{p1, p2, p3},
		[]string{"text/plain", "text/plain", "text/plain"},
		[]string{"one.txt", "two.txt", "three.txt"},
		3)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "first", docs[0].Content)
	assert.Equal(t, "second", docs[1].Content)
	assert.Equal(t, "third", docs[2].Content)
}

func TestExtractAllLengthMismatch(t *testing.T) {
	_, err := ExtractAll(context.Background(),
		[]string{"a"}, []string{"text/plain", "text/plain"}, []string{"a"}, 1)
	assert.Error(t, err)
}
