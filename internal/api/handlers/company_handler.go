package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sitewise-ai/sitewise/internal/core"
	"github.com/sitewise-ai/sitewise/internal/models"
)

type CompanyHandler struct {
	dbclient core.DbClient
}

func NewCompanyHandler(dbclient core.DbClient) *CompanyHandler {
	return &CompanyHandler{dbclient: dbclient}
}

type createCompanyRequest struct {
	Name        string   `json:"name"`
	WebsiteURLs []string `json:"website_urls"`
}

// CreateCompany registers a tenant and mints its widget API key in one call.
func (h *CompanyHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(string)
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	var req createCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}

	company := &models.Company{
		ID:          uuid.NewString(),
		OwnerID:     userID,
		Name:        req.Name,
		WebsiteURLs: req.WebsiteURLs,
		BuildStatus: models.BuildStatusNone,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := h.dbclient.CreateCompany(r.Context(), company); err != nil {
		http.Error(w, "failed to create company", http.StatusInternalServerError)
		return
	}

	widget := &models.Widget{
		ID:        uuid.NewString(),
		CompanyID: company.ID,
		APIKey:    newAPIKey(),
		CreatedAt: time.Now(),
	}
	if err := h.dbclient.CreateWidget(r.Context(), widget); err != nil {
		http.Error(w, "failed to create widget", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"company": company,
		"widget":  widget,
	})
}

func (h *CompanyHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(string)
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	companies, err := h.dbclient.ListCompaniesByOwner(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(companies)
}

func newAPIKey() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return "sw_" + hex.EncodeToString(b)
}
