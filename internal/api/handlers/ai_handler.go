package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sitewise-ai/sitewise/internal/config"
	"github.com/sitewise-ai/sitewise/internal/core"
	"github.com/sitewise-ai/sitewise/internal/models"
	"github.com/sitewise-ai/sitewise/internal/services"
)

type AIHandler struct {
	dbclient     core.DbClient
	objectclient core.ObjectClient
	rag          *services.RAGService
	worker       *services.BuildWorker
	cfg          *config.Config
}

func NewAIHandler(dbclient core.DbClient, objectclient core.ObjectClient, rag *services.RAGService, worker *services.BuildWorker, cfg *config.Config) *AIHandler {
	return &AIHandler{dbclient: dbclient, objectclient: objectclient, rag: rag, worker: worker, cfg: cfg}
}

// loadOwnedCompany resolves {companyID} and enforces that the requester owns it.
func (h *AIHandler) loadOwnedCompany(w http.ResponseWriter, r *http.Request) *models.Company {
	userID, ok := r.Context().Value("user_id").(string)
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return nil
	}
	companyID := chi.URLParam(r, "companyID")

	company, err := h.dbclient.GetCompanyByID(r.Context(), companyID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil
	}
	if company == nil {
		http.Error(w, "company not found", http.StatusNotFound)
		return nil
	}
	if company.OwnerID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil
	}
	return company
}

// Build enqueues a background knowledge-base build from the company's
// website URLs and returns immediately.
func (h *AIHandler) Build(w http.ResponseWriter, r *http.Request) {
	company := h.loadOwnedCompany(w, r)
	if company == nil {
		return
	}
	if len(company.WebsiteURLs) == 0 {
		http.Error(w, "company has no website URLs", http.StatusBadRequest)
		return
	}
	if company.BuildStatus == models.BuildStatusBuilding {
		http.Error(w, "build already in progress", http.StatusConflict)
		return
	}

	h.worker.Enqueue(services.BuildJob{CompanyID: company.ID, URLs: company.WebsiteURLs})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  models.BuildStatusBuilding,
		"message": "knowledge base build started",
	})
}

type scrapeRequest struct {
	URLs []string `json:"urls"`
}

// Scrape ingests the given URLs synchronously and returns the full result.
// Useful for small sites and for testing a site before a full build.
func (h *AIHandler) Scrape(w http.ResponseWriter, r *http.Request) {
	company := h.loadOwnedCompany(w, r)
	if company == nil {
		return
	}

	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	urls := req.URLs
	if len(urls) == 0 {
		urls = company.WebsiteURLs
	}
	if len(urls) == 0 {
		http.Error(w, "no URLs to scrape", http.StatusBadRequest)
		return
	}

	collection := services.CollectionNameFor(company.ID)
	result := h.rag.IngestWebsite(r.Context(), urls, collection, nil)
	if result.Status == "success" || result.Status == "warning" {
		if err := h.dbclient.SetCompanyCollection(r.Context(), company.ID, collection); err != nil {
			log.Printf("ai: failed to set collection for company %s: %v", company.ID, err)
		}
		_ = h.dbclient.TouchLastScraped(r.Context(), company.ID, time.Now().UTC())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Status reports the build state plus live collection counts.
func (h *AIHandler) Status(w http.ResponseWriter, r *http.Request) {
	company := h.loadOwnedCompany(w, r)
	if company == nil {
		return
	}

	resp := map[string]any{
		"build_status":  company.BuildStatus,
		"error_message": company.ErrorMessage,
	}
	if company.BuildProgress != "" {
		var progress map[string]any
		if err := json.Unmarshal([]byte(company.BuildProgress), &progress); err == nil {
			resp["progress"] = progress
		}
	}
	if company.LastScrapedAt != nil {
		resp["last_scraped_at"] = company.LastScrapedAt
	}
	if company.CollectionName != "" {
		info, err := h.rag.GetCollectionInfo(r.Context(), company.CollectionName)
		if err == nil {
			resp["collection"] = info
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type chatRequest struct {
	Message string `json:"message"`
	TopK    int    `json:"top_k"`
}

// Chat answers a question against the owner's company knowledge base.
func (h *AIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	company := h.loadOwnedCompany(w, r)
	if company == nil {
		return
	}
	h.answerChat(w, r, company)
}

// WidgetChat answers widget traffic authenticated by X-Api-Key.
func (h *AIHandler) WidgetChat(w http.ResponseWriter, r *http.Request) {
	apiKey := r.Header.Get("X-Api-Key")
	if apiKey == "" {
		http.Error(w, "missing api key", http.StatusUnauthorized)
		return
	}
	widget, err := h.dbclient.GetWidgetByAPIKey(r.Context(), apiKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if widget == nil {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
		return
	}
	company, err := h.dbclient.GetCompanyByID(r.Context(), widget.CompanyID)
	if err != nil || company == nil {
		http.Error(w, "company not found", http.StatusNotFound)
		return
	}
	h.answerChat(w, r, company)
}

func (h *AIHandler) answerChat(w http.ResponseWriter, r *http.Request, company *models.Company) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		http.Error(w, "message required", http.StatusBadRequest)
		return
	}
	if company.CollectionName == "" {
		http.Error(w, "knowledge base not built yet", http.StatusConflict)
		return
	}
	k := req.TopK
	if k <= 0 {
		k = 5
	}

	answer, err := h.rag.Answer(r.Context(), company.CollectionName, req.Message, k)
	if err != nil {
		log.Printf("ai: chat failed for company %s: %v", company.ID, err)
		http.Error(w, "failed to generate answer", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"answer": answer})
}

// UploadDocument stores an uploaded file in S3, extracts its text and folds
// the chunks into the company knowledge base.
func (h *AIHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	company := h.loadOwnedCompany(w, r)
	if company == nil {
		return
	}

	r.ParseMultipartForm(32 << 20)

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "could not read file", http.StatusBadRequest)
		return
	}

	cleanFilename := filepath.Base(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	s3Key := fmt.Sprintf("%s/%s/%s", company.ID, uuid.NewString(), cleanFilename)
	uploadCtx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	url, err := h.objectclient.UploadFile(uploadCtx, h.cfg.BucketName, s3Key, data, contentType)
	if err != nil {
		http.Error(w, fmt.Sprintf("upload failed: %v", err), http.StatusInternalServerError)
		return
	}

	kf := &models.KnowledgeFile{
		ID:          uuid.NewString(),
		CompanyID:   company.ID,
		FileName:    cleanFilename,
		StorageURL:  url,
		ContentType: contentType,
		CreatedAt:   time.Now(),
	}
	if err := h.dbclient.CreateKnowledgeFile(uploadCtx, kf); err != nil {
		log.Printf("ai: DB insert failed for file %s: %v", kf.ID, err)
		http.Error(w, "failed to store file metadata", http.StatusInternalServerError)
		return
	}

	// Extraction works on a local path, so spill the upload to a temp file.
	tmp, err := os.CreateTemp("", "sitewise-upload-*"+filepath.Ext(cleanFilename))
	if err != nil {
		http.Error(w, "could not stage file", http.StatusInternalServerError)
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		http.Error(w, "could not stage file", http.StatusInternalServerError)
		return
	}
	tmp.Close()

	collection := company.CollectionName
	if collection == "" {
		collection = services.CollectionNameFor(company.ID)
		if err := h.dbclient.SetCompanyCollection(uploadCtx, company.ID, collection); err != nil {
			log.Printf("ai: failed to set collection for company %s: %v", company.ID, err)
		}
	}

	result := h.rag.IngestDocuments(uploadCtx,
		[]string{tmp.Name()}, []string{contentType}, []string{cleanFilename},
		collection, nil)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"file":   kf,
		"result": result,
	})
}

// ListDocuments returns the uploaded files feeding a company knowledge base.
func (h *AIHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	company := h.loadOwnedCompany(w, r)
	if company == nil {
		return
	}

	files, err := h.dbclient.ListKnowledgeFiles(r.Context(), company.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(files)
}
