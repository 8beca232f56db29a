// Package docparse extracts text from uploaded knowledge-base files (PDF,
// Word, plain text, JSON, CSV) ahead of chunking and indexing.
package docparse

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/text/encoding/charmap"
)

// Format is the closed set of supported document formats.
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatWord
	FormatText
	FormatJSON
	FormatCSV
)

// ErrUnsupportedFormat marks files outside the supported set; callers can
// distinguish it from parse failures.
var ErrUnsupportedFormat = errors.New("docparse: unsupported file format")

// ParsedDocument is the extraction result for one file.
type ParsedDocument struct {
	Filename string
	Path     string
	Content  string
	MimeType string
}

// DetectFormat dispatches on MIME type with a filename-extension fallback.
func DetectFormat(mimeType, filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case mimeType == "application/pdf" || ext == ".pdf":
		return FormatPDF
	case mimeType == "application/msword" ||
		mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" ||
		ext == ".doc" || ext == ".docx":
		return FormatWord
	case mimeType == "text/plain" || ext == ".txt" || ext == ".md" || ext == ".markdown":
		return FormatText
	case mimeType == "application/json" || ext == ".json":
		return FormatJSON
	case mimeType == "text/csv" || ext == ".csv":
		return FormatCSV
	default:
		return FormatUnknown
	}
}

// Extract converts one file into a text blob.
func Extract(ctx context.Context, path, mimeType, filename string) (ParsedDocument, error) {
	var (
		content string
		err     error
	)
	switch DetectFormat(mimeType, filename) {
	case FormatPDF:
		content, err = parsePDF(path)
	case FormatWord:
		content, err = parseWord(path, mimeType)
	case FormatText:
		content, err = parseText(path)
	case FormatJSON:
		content, err = parseJSON(path)
	case FormatCSV:
		content, err = parseCSV(path)
	case FormatUnknown:
		return ParsedDocument{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, filename, mimeType)
	}
	if err != nil {
		return ParsedDocument{}, fmt.Errorf("parse %s: %w", filename, err)
	}
	return ParsedDocument{
		Filename: filename,
		Path:     path,
		Content:  content,
		MimeType: mimeType,
	}, nil
}

// ExtractAll extracts every file with bounded concurrency. A failure on one
// file is logged and that file is dropped; partial success is expected with
// arbitrary uploads. Output preserves input order.
func ExtractAll(ctx context.Context, paths, mimeTypes, filenames []string, maxConcurrent int) ([]ParsedDocument, error) {
	if len(paths) != len(mimeTypes) || len(paths) != len(filenames) {
		return nil, errors.New("docparse: paths, mimeTypes and filenames must have the same length")
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}

	log.Printf("docparse: parsing %d documents", len(paths))

	sem := semaphore.NewWeighted(int64(maxConcurrent))
	slots := make([]*ParsedDocument, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for i := range paths {
		i := i
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			doc, err := Extract(gctx, paths[i], mimeTypes[i], filenames[i])
			if err != nil {
				log.Printf("docparse: failed to parse %s: %v", filenames[i], err)
				return nil
			}
			slots[i] = &doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]ParsedDocument, 0, len(slots))
	for _, doc := range slots {
		if doc != nil {
			out = append(out, *doc)
		}
	}
	log.Printf("docparse: successfully parsed %d of %d documents", len(out), len(paths))
	return out, nil
}

// parsePDF prefers docconv's layout-aware conversion and falls back to the
// plain pdftotext path when that fails.
func parsePDF(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	res, err := docconv.Convert(bytes.NewReader(data), "application/pdf", false)
	if err == nil && res.Body != "" {
		return res.Body, nil
	}
	body, _, ferr := docconv.ConvertPDF(bytes.NewReader(data))
	if ferr != nil {
		if err != nil {
			return "", err
		}
		return "", ferr
	}
	return body, nil
}

func parseWord(path, mimeType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = docconv.MimeTypeByExtension(path)
	}
	res, err := docconv.Convert(f, mimeType, false)
	if err != nil {
		return "", err
	}
	return res.Body, nil
}

// parseText reads UTF-8 text, re-decoding once as Latin-1 when the bytes are
// not valid UTF-8.
func parseText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode latin-1: %w", err)
	}
	return string(decoded), nil
}

// parseJSON renders a JSON document as indented, human-readable key/value
// text, preserving nesting and list-item structure.
func parseJSON(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}

	obj, ok := value.(map[string]any)
	if !ok {
		pretty, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return "", err
		}
		return string(pretty), nil
	}

	parts := make([]string, 0, len(obj))
	for _, key := range sortedKeys(obj) {
		parts = append(parts, formatJSONValue(key, obj[key], 0))
	}
	return strings.Join(parts, "\n\n"), nil
}

func formatJSONValue(key string, value any, indent int) string {
	pad := strings.Repeat("  ", indent)
	switch v := value.(type) {
	case map[string]any:
		lines := []string{pad + key + ":"}
		for _, k := range sortedKeys(v) {
			lines = append(lines, formatJSONValue(k, v[k], indent+1))
		}
		return strings.Join(lines, "\n")
	case []any:
		lines := []string{pad + key + ":"}
		for i, item := range v {
			if obj, ok := item.(map[string]any); ok {
				lines = append(lines, fmt.Sprintf("%s  Item %d:", pad, i+1))
				for _, k := range sortedKeys(obj) {
					lines = append(lines, formatJSONValue(k, obj[k], indent+2))
				}
			} else {
				lines = append(lines, fmt.Sprintf("%s  - %v", pad, item))
			}
		}
		return strings.Join(lines, "\n")
	default:
		return fmt.Sprintf("%s%s: %v", pad, key, v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseCSV renders a CSV file as a pipe-delimited text table with a header
// separator row.
func parseCSV(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("invalid CSV: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}

	header := strings.Join(records[0], " | ")
	lines := []string{header, strings.Repeat("-", len(header))}
	for _, row := range records[1:] {
		lines = append(lines, strings.Join(row, " | "))
	}
	return strings.Join(lines, "\n"), nil
}
