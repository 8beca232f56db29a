package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sitewise-ai/sitewise/internal/config"
	"github.com/sitewise-ai/sitewise/internal/core"
	"github.com/sitewise-ai/sitewise/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctxPing, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctxPing); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

var _ core.DbClient = (*DatabaseClient)(nil)

// DB exposes the underlying pool so the vector store can share it.
func (c *DatabaseClient) DB() *sql.DB {
	return c.db
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Implementing the db interface for user

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, COALESCE($4, now()), COALESCE($5, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.Email, user.PasswordHash, nilTime(user.CreatedAt), nilTime(user.UpdatedAt))
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Implementing the db interface for company

func (c *DatabaseClient) CreateCompany(ctx context.Context, company *models.Company) error {
	if company == nil {
		return errors.New("nil company")
	}
	urls, err := json.Marshal(company.WebsiteURLs)
	if err != nil {
		return fmt.Errorf("marshal website urls: %w", err)
	}
	const q = `
		INSERT INTO companies
			(id, owner_id, name, website_urls, collection_name, build_status, build_progress, error_message, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), COALESCE($10, now()))
	`
	_, err = c.db.ExecContext(ctx, q,
		company.ID, company.OwnerID, company.Name, urls, company.CollectionName,
		company.BuildStatus, company.BuildProgress, company.ErrorMessage,
		nilTime(company.CreatedAt), nilTime(company.UpdatedAt))
	return err
}

func (c *DatabaseClient) GetCompanyByID(ctx context.Context, id string) (*models.Company, error) {
	const q = `
		SELECT id, owner_id, name, website_urls, collection_name, build_status, build_progress, error_message, last_scraped_at, created_at, updated_at
		FROM companies
		WHERE id = $1
	`
	co, err := scanCompany(c.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return co, nil
}

func (c *DatabaseClient) ListCompaniesByOwner(ctx context.Context, ownerID string) ([]models.Company, error) {
	const q = `
		SELECT id, owner_id, name, website_urls, collection_name, build_status, build_progress, error_message, last_scraped_at, created_at, updated_at
		FROM companies
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Company
	for rows.Next() {
		co, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *co)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateCompanyBuildState(ctx context.Context, id, status, progress, errMsg string) error {
	const q = `
		UPDATE companies
		SET build_status = $2, build_progress = $3, error_message = $4, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status, progress, errMsg)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("company not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) SetCompanyCollection(ctx context.Context, id, collection string) error {
	const q = `
		UPDATE companies
		SET collection_name = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, collection)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("company not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) TouchLastScraped(ctx context.Context, id string, at time.Time) error {
	const q = `
		UPDATE companies
		SET last_scraped_at = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, at)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("company not found: %s", id)
	}
	return nil
}

// Implementing the db interface for widget

func (c *DatabaseClient) CreateWidget(ctx context.Context, widget *models.Widget) error {
	if widget == nil {
		return errors.New("nil widget")
	}
	const q = `
		INSERT INTO widgets (id, company_id, api_key, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		widget.ID, widget.CompanyID, widget.APIKey, nilTime(widget.CreatedAt))
	return err
}

func (c *DatabaseClient) GetWidgetByAPIKey(ctx context.Context, apiKey string) (*models.Widget, error) {
	const q = `
		SELECT id, company_id, api_key, created_at
		FROM widgets WHERE api_key = $1
	`
	var w models.Widget
	err := c.db.QueryRowContext(ctx, q, apiKey).Scan(
		&w.ID, &w.CompanyID, &w.APIKey, &w.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Implementing the db interface for knowledge files

func (c *DatabaseClient) CreateKnowledgeFile(ctx context.Context, file *models.KnowledgeFile) error {
	if file == nil {
		return errors.New("nil knowledge file")
	}
	const q = `
		INSERT INTO knowledge_files (id, company_id, file_name, storage_url, content_type, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		file.ID, file.CompanyID, file.FileName, file.StorageURL, file.ContentType, nilTime(file.CreatedAt))
	return err
}

func (c *DatabaseClient) ListKnowledgeFiles(ctx context.Context, companyID string) ([]models.KnowledgeFile, error) {
	const q = `
		SELECT id, company_id, file_name, storage_url, content_type, created_at
		FROM knowledge_files
		WHERE company_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.KnowledgeFile
	for rows.Next() {
		var f models.KnowledgeFile
		if err := rows.Scan(
			&f.ID, &f.CompanyID, &f.FileName, &f.StorageURL, &f.ContentType, &f.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (*models.Company, error) {
	var (
		co      models.Company
		urls    []byte
		scraped sql.NullTime
	)
	if err := row.Scan(
		&co.ID, &co.OwnerID, &co.Name, &urls, &co.CollectionName,
		&co.BuildStatus, &co.BuildProgress, &co.ErrorMessage,
		&scraped, &co.CreatedAt, &co.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(urls) > 0 {
		if err := json.Unmarshal(urls, &co.WebsiteURLs); err != nil {
			return nil, fmt.Errorf("unmarshal website urls: %w", err)
		}
	}
	if scraped.Valid {
		t := scraped.Time
		co.LastScrapedAt = &t
	}
	return &co, nil
}

func nilTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
