package models

import (
	"time"
)

// User represents an authenticated account owner.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AI build states for a company knowledge base.
const (
	BuildStatusNone     = "none"
	BuildStatusBuilding = "building"
	BuildStatusReady    = "ready"
	BuildStatusFailed   = "failed"
)

// Company is one tenant: a business with a website and a chat widget.
type Company struct {
	ID             string     `db:"id" json:"id"`
	OwnerID        string     `db:"owner_id" json:"owner_id"`
	Name           string     `db:"name" json:"name"`
	WebsiteURLs    []string   `db:"website_urls" json:"website_urls"`
	CollectionName string     `db:"collection_name" json:"collection_name"`
	BuildStatus    string     `db:"build_status" json:"build_status"`
	BuildProgress  string     `db:"build_progress" json:"build_progress,omitempty"` // JSON blob
	ErrorMessage   string     `db:"error_message" json:"error_message,omitempty"`
	LastScrapedAt  *time.Time `db:"last_scraped_at" json:"last_scraped_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Widget is the embeddable chat widget for a company; the API key
// authenticates widget traffic.
type Widget struct {
	ID        string    `db:"id" json:"id"`
	CompanyID string    `db:"company_id" json:"company_id"`
	APIKey    string    `db:"api_key" json:"api_key"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// KnowledgeFile is an uploaded document feeding a company knowledge base.
type KnowledgeFile struct {
	ID          string    `db:"id" json:"id"`
	CompanyID   string    `db:"company_id" json:"company_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	StorageURL  string    `db:"storage_url" json:"storage_url"`
	ContentType string    `db:"content_type" json:"content_type"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
