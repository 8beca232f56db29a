package core

import (
	"context"
	"time"

	"github.com/sitewise-ai/sitewise/internal/models"
)

// DbClient defines all relational persistence the services need. It abstracts
// Postgres so higher layers never depend on a specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateCompany(ctx context.Context, company *models.Company) error
	GetCompanyByID(ctx context.Context, id string) (*models.Company, error)
	ListCompaniesByOwner(ctx context.Context, ownerID string) ([]models.Company, error)
	UpdateCompanyBuildState(ctx context.Context, id, status, progress, errMsg string) error
	SetCompanyCollection(ctx context.Context, id, collection string) error
	TouchLastScraped(ctx context.Context, id string, at time.Time) error

	CreateWidget(ctx context.Context, widget *models.Widget) error
	GetWidgetByAPIKey(ctx context.Context, apiKey string) (*models.Widget, error)

	CreateKnowledgeFile(ctx context.Context, file *models.KnowledgeFile) error
	ListKnowledgeFiles(ctx context.Context, companyID string) ([]models.KnowledgeFile, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteFile(ctx context.Context, bucket, key string) error
}
