package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sitewise-ai/sitewise/internal/core"
	"github.com/sitewise-ai/sitewise/internal/docparse"
	"github.com/sitewise-ai/sitewise/internal/scraper"
)

// Chunks per vector-index write.
const upsertBatchSize = 100

// ProgressFunc receives human-readable status updates during ingestion.
// Callbacks must never break ingestion; panics inside them are swallowed.
type ProgressFunc func(message string, details map[string]any)

// IngestionResult is the terminal outcome of one ingestion run. Status is
// "success", "warning" (ran to completion but stored nothing) or "error".
type IngestionResult struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	DocumentsAdded int    `json:"documents_added"`
	ItemsProcessed int    `json:"items_processed"`
	Collection     string `json:"collection"`
}

// SiteAcquirer is the website acquisition half of the pipeline. Satisfied by
// scraper.WebsiteScraper; tests inject a fake.
type SiteAcquirer interface {
	ScrapeURLs(ctx context.Context, urls []string, progress scraper.CrawlProgressFunc) ([]scraper.PageRecord, error)
	ProcessContent(pages []scraper.PageRecord) scraper.ChunkSet
}

// RAGService orchestrates ingestion into the vector index and retrieval-based
// answering on top of it.
type RAGService struct {
	index     core.VectorIndex
	acquirer  SiteAcquirer
	llm       core.LLMProvider
	chunkSize int
}

func NewRAGService(index core.VectorIndex, acquirer SiteAcquirer, llm core.LLMProvider, chunkSize int) *RAGService {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	return &RAGService{index: index, acquirer: acquirer, llm: llm, chunkSize: chunkSize}
}

// IngestWebsite scrapes the seed URLs, chunks the pages and replaces the
// named collection with the result. It never returns a Go error: every
// failure mode is folded into the result status so callers report a uniform
// shape.
func (s *RAGService) IngestWebsite(ctx context.Context, urls []string, collection string, progress ProgressFunc) (result IngestionResult) {
	result = IngestionResult{Status: "error", Collection: collection}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("rag: website ingestion panic: %v", r)
			result = IngestionResult{
				Status:     "error",
				Message:    fmt.Sprintf("ingestion failed: %v", r),
				Collection: collection,
			}
		}
	}()

	reportProgress(progress, "Starting website scraping", map[string]any{"urls": len(urls)})

	pages, err := s.acquirer.ScrapeURLs(ctx, urls, func(url string, visited, total int) {
		reportProgress(progress, "Scraping pages", map[string]any{
			"current_url": url,
			"visited":     visited,
			"total":       total,
		})
	})
	if err != nil {
		result.Message = fmt.Sprintf("scraping failed: %v", err)
		return result
	}
	if len(pages) == 0 {
		result.Status = "warning"
		result.Message = "No content could be scraped from the provided URLs"
		return result
	}

	reportProgress(progress, "Processing scraped content", map[string]any{"pages": len(pages)})
	set := s.acquirer.ProcessContent(pages)
	if len(set.Documents) == 0 {
		// Pages came back but chunking produced nothing. Log previews so the
		// failure is diagnosable.
		for i, p := range pages {
			if i >= 3 {
				break
			}
			log.Printf("rag: zero-chunk page %s: %q", p.URL, preview(p.Markdown, 200))
		}
		result.Status = "warning"
		result.Message = fmt.Sprintf("Scraped %d pages but produced no chunks", len(pages))
		result.ItemsProcessed = len(pages)
		return result
	}

	// A website build replaces the whole collection: stale chunks from a
	// previous crawl must not survive.
	if err := s.index.Delete(ctx, collection); err != nil {
		result.Message = fmt.Sprintf("resetting collection failed: %v", err)
		return result
	}
	coll, err := s.index.GetOrCreate(ctx, collection)
	if err != nil {
		result.Message = fmt.Sprintf("creating collection failed: %v", err)
		return result
	}

	reportProgress(progress, "Storing chunks", map[string]any{"chunks": len(set.Documents)})
	if err := s.upsertBatched(ctx, coll, set); err != nil {
		result.Message = fmt.Sprintf("storing chunks failed: %v", err)
		return result
	}

	log.Printf("rag: website ingestion stored %d chunks from %d pages into %s",
		len(set.Documents), len(pages), collection)
	return IngestionResult{
		Status:         "success",
		Message:        fmt.Sprintf("Ingested %d chunks from %d pages", len(set.Documents), len(pages)),
		DocumentsAdded: len(set.Documents),
		ItemsProcessed: len(pages),
		Collection:     collection,
	}
}

// IngestDocuments extracts the uploaded files, chunks their text and adds the
// chunks to the named collection without clearing existing content.
func (s *RAGService) IngestDocuments(ctx context.Context, paths, mimeTypes, filenames []string, collection string, progress ProgressFunc) (result IngestionResult) {
	result = IngestionResult{Status: "error", Collection: collection}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("rag: document ingestion panic: %v", r)
			result = IngestionResult{
				Status:     "error",
				Message:    fmt.Sprintf("ingestion failed: %v", r),
				Collection: collection,
			}
		}
	}()

	reportProgress(progress, "Extracting documents", map[string]any{"files": len(paths)})

	parsed, err := docparse.ExtractAll(ctx, paths, mimeTypes, filenames, 4)
	if err != nil {
		result.Message = fmt.Sprintf("extraction failed: %v", err)
		return result
	}
	if len(parsed) == 0 {
		result.Status = "warning"
		result.Message = "No text could be extracted from the uploaded files"
		return result
	}

	set := s.chunkDocuments(parsed)
	if len(set.Documents) == 0 {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Extracted %d files but produced no chunks", len(parsed))
		result.ItemsProcessed = len(parsed)
		return result
	}

	coll, err := s.index.GetOrCreate(ctx, collection)
	if err != nil {
		result.Message = fmt.Sprintf("creating collection failed: %v", err)
		return result
	}

	reportProgress(progress, "Storing chunks", map[string]any{"chunks": len(set.Documents)})
	if err := s.upsertBatched(ctx, coll, set); err != nil {
		result.Message = fmt.Sprintf("storing chunks failed: %v", err)
		return result
	}

	log.Printf("rag: document ingestion stored %d chunks from %d files into %s",
		len(set.Documents), len(parsed), collection)
	return IngestionResult{
		Status:         "success",
		Message:        fmt.Sprintf("Ingested %d chunks from %d files", len(set.Documents), len(parsed)),
		DocumentsAdded: len(set.Documents),
		ItemsProcessed: len(parsed),
		Collection:     collection,
	}
}

// chunkDocuments maps extracted files to id/document/metadata triples. File
// chunks carry their own id prefix so they never collide with website chunks
// in the same collection.
func (s *RAGService) chunkDocuments(parsed []docparse.ParsedDocument) scraper.ChunkSet {
	var set scraper.ChunkSet
	chunkIdx := 0

	for _, doc := range parsed {
		chunks := scraper.SmartChunkMarkdown(doc.Content, s.chunkSize)
		if len(chunks) == 0 && len(doc.Content) > 0 {
			log.Printf("rag: WARNING: file %s has content but produced 0 chunks", doc.Filename)
		}
		for _, chunk := range chunks {
			info := scraper.ExtractSectionInfo(chunk)
			set.IDs = append(set.IDs, fmt.Sprintf("file-chunk-%d", chunkIdx))
			set.Documents = append(set.Documents, chunk)
			set.Metadatas = append(set.Metadatas, map[string]any{
				"source":        doc.Filename,
				"filename":      doc.Filename,
				"file_type":     doc.MimeType,
				"document_type": "uploaded_file",
				"headers":       info.Headers,
				"char_count":    info.CharCount,
				"word_count":    info.WordCount,
				"chunk_index":   chunkIdx,
			})
			chunkIdx++
		}
	}
	return set
}

// upsertBatched writes the set in fixed-size batches, checking for
// cancellation between batches so a long ingest can be aborted.
func (s *RAGService) upsertBatched(ctx context.Context, coll core.Collection, set scraper.ChunkSet) error {
	for start := 0; start < len(set.Documents); start += upsertBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + upsertBatchSize
		if end > len(set.Documents) {
			end = len(set.Documents)
		}
		if err := coll.Upsert(ctx, set.IDs[start:end], set.Documents[start:end], set.Metadatas[start:end]); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// Answer retrieves the top-k chunks for the query and asks the LLM to answer
// from them alone.
func (s *RAGService) Answer(ctx context.Context, collection, query string, k int) (string, error) {
	exists, err := s.index.Exists(ctx, collection)
	if err != nil {
		return "", fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("collection %q does not exist", collection)
	}

	coll, err := s.index.GetOrCreate(ctx, collection)
	if err != nil {
		return "", fmt.Errorf("open collection: %w", err)
	}
	hits, err := coll.Query(ctx, query, k)
	if err != nil {
		return "", fmt.Errorf("query collection: %w", err)
	}
	if len(hits) == 0 {
		return "I don't have any information about that yet.", nil
	}

	var b strings.Builder
	for i, h := range hits {
		src := ""
		if v, ok := h.Metadata["source"].(string); ok {
			src = v
		}
		fmt.Fprintf(&b, "Source %d (%s):\n%s\n\n", i+1, src, h.Text)
	}

	system := "You are a helpful assistant answering questions about a company. " +
		"Answer only from the provided context. If the context does not contain " +
		"the answer, say you don't know. Be concise and friendly."
	prompt := fmt.Sprintf("Context:\n%s\nQuestion: %s", b.String(), query)

	answer, err := s.llm.Generate(ctx, system, prompt)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}

// GetCollectionInfo reports whether a collection exists and how many chunks
// it holds.
func (s *RAGService) GetCollectionInfo(ctx context.Context, collection string) (map[string]any, error) {
	exists, err := s.index.Exists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return map[string]any{"exists": false, "count": 0}, nil
	}
	coll, err := s.index.GetOrCreate(ctx, collection)
	if err != nil {
		return nil, err
	}
	n, err := coll.Count(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"exists": true, "count": n}, nil
}

func reportProgress(progress ProgressFunc, message string, details map[string]any) {
	if progress == nil {
		return
	}
	defer func() { _ = recover() }()
	progress(message, details)
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
