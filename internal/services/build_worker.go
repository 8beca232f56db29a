package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/sitewise-ai/sitewise/internal/core"
	"github.com/sitewise-ai/sitewise/internal/models"
)

// BuildJob asks the worker to rebuild one company's knowledge base from its
// website URLs.
type BuildJob struct {
	CompanyID string
	URLs      []string
}

// BuildWorker runs knowledge-base builds in the background. Jobs are an
// in-memory queue of build requests (easy to swap with a broker later);
// progress and outcome are persisted on the company row so status polling
// works across requests.
type BuildWorker struct {
	db   core.DbClient
	rag  *RAGService
	jobs chan BuildJob
}

// NewBuildWorker constructs the worker with a bounded job queue (64).
func NewBuildWorker(db core.DbClient, rag *RAGService) *BuildWorker {
	return &BuildWorker{
		db:   db,
		rag:  rag,
		jobs: make(chan BuildJob, 64),
	}
}

// Start runs worker goroutines reading from the jobs channel until the
// context is cancelled.
func (w *BuildWorker) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	for i := 0; i < numWorkers; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-w.jobs:
					w.processOne(ctx, job)
				}
			}
		}()
	}
}

// Enqueue schedules a build. If the queue is full, this call will block
// until space frees up.
func (w *BuildWorker) Enqueue(job BuildJob) {
	w.jobs <- job
}

// CollectionNameFor derives the per-company vector collection name.
func CollectionNameFor(companyID string) string {
	return "company_" + companyID
}

func (w *BuildWorker) processOne(ctx context.Context, job BuildJob) {
	log.Printf("build: starting knowledge base build for company %s", job.CompanyID)

	if err := w.db.UpdateCompanyBuildState(ctx, job.CompanyID, models.BuildStatusBuilding, progressJSON("Starting", nil), ""); err != nil {
		log.Printf("build: failed to mark company %s building: %v", job.CompanyID, err)
		return
	}

	collection := CollectionNameFor(job.CompanyID)
	result := w.rag.IngestWebsite(ctx, job.URLs, collection, func(message string, details map[string]any) {
		// Best-effort persistence; a missed progress update is harmless.
		_ = w.db.UpdateCompanyBuildState(ctx, job.CompanyID, models.BuildStatusBuilding, progressJSON(message, details), "")
	})

	switch result.Status {
	case "success", "warning":
		if err := w.db.SetCompanyCollection(ctx, job.CompanyID, collection); err != nil {
			log.Printf("build: failed to set collection for company %s: %v", job.CompanyID, err)
		}
		final := progressJSON(result.Message, map[string]any{
			"documents_added": result.DocumentsAdded,
			"items_processed": result.ItemsProcessed,
		})
		if err := w.db.UpdateCompanyBuildState(ctx, job.CompanyID, models.BuildStatusReady, final, ""); err != nil {
			log.Printf("build: failed to mark company %s ready: %v", job.CompanyID, err)
		}
		if err := w.db.TouchLastScraped(ctx, job.CompanyID, time.Now().UTC()); err != nil {
			log.Printf("build: failed to touch last_scraped_at for company %s: %v", job.CompanyID, err)
		}
		log.Printf("build: company %s build finished: %s (%d chunks)",
			job.CompanyID, result.Status, result.DocumentsAdded)

	default:
		if err := w.db.UpdateCompanyBuildState(ctx, job.CompanyID, models.BuildStatusFailed, "", result.Message); err != nil {
			log.Printf("build: failed to mark company %s failed: %v", job.CompanyID, err)
		}
		log.Printf("build: company %s build failed: %s", job.CompanyID, result.Message)
	}
}

func progressJSON(message string, details map[string]any) string {
	payload := map[string]any{"message": message}
	for k, v := range details {
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"message":%q}`, message)
	}
	return string(b)
}
