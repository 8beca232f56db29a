package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitewise-ai/sitewise/internal/models"
	"github.com/sitewise-ai/sitewise/internal/scraper"
)

type buildStateUpdate struct {
	status   string
	progress string
	errMsg   string
}

// fakeDB records the company-state writes the worker performs.
type fakeDB struct {
	mu          sync.Mutex
	updates     map[string][]buildStateUpdate
	collections map[string]string
	scrapedAt   map[string]time.Time
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		updates:     make(map[string][]buildStateUpdate),
		collections: make(map[string]string),
		scrapedAt:   make(map[string]time.Time),
	}
}

func (f *fakeDB) CreateUser(ctx context.Context, user *models.User) error { return nil }
func (f *fakeDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, nil
}
func (f *fakeDB) CreateCompany(ctx context.Context, company *models.Company) error { return nil }
func (f *fakeDB) GetCompanyByID(ctx context.Context, id string) (*models.Company, error) {
	return nil, nil
}
func (f *fakeDB) ListCompaniesByOwner(ctx context.Context, ownerID string) ([]models.Company, error) {
	return nil, nil
}

func (f *fakeDB) UpdateCompanyBuildState(ctx context.Context, id, status, progress, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[id] = append(f.updates[id], buildStateUpdate{status, progress, errMsg})
	return nil
}

func (f *fakeDB) SetCompanyCollection(ctx context.Context, id, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[id] = collection
	return nil
}

func (f *fakeDB) TouchLastScraped(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrapedAt[id] = at
	return nil
}

func (f *fakeDB) CreateWidget(ctx context.Context, widget *models.Widget) error { return nil }
func (f *fakeDB) GetWidgetByAPIKey(ctx context.Context, apiKey string) (*models.Widget, error) {
	return nil, nil
}
func (f *fakeDB) CreateKnowledgeFile(ctx context.Context, file *models.KnowledgeFile) error {
	return nil
}
func (f *fakeDB) ListKnowledgeFiles(ctx context.Context, companyID string) ([]models.KnowledgeFile, error) {
	return nil, nil
}
func (f *fakeDB) Close() error { return nil }

func (f *fakeDB) lastUpdate(id string) buildStateUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	ups := f.updates[id]
	return ups[len(ups)-1]
}

func TestBuildWorkerSuccessfulBuild(t *testing.T) {
	db := newFakeDB()
	index := newFakeIndex()
	acq := newFakeAcquirer([]scraper.PageRecord{
		{URL: "https://example.test/", Title: "Home", Markdown: "# Home\ncontent"},
	})
	rag := NewRAGService(index, acq, &fakeLLM{}, 1000)
	worker := NewBuildWorker(db, rag)

	worker.processOne(context.Background(), BuildJob{
		CompanyID: "co-1",
		URLs:      []string{"https://example.test/"},
	})

	last := db.lastUpdate("co-1")
	assert.Equal(t, models.BuildStatusReady, last.status)
	assert.Empty(t, last.errMsg)
	assert.Contains(t, last.progress, "documents_added")

	assert.Equal(t, CollectionNameFor("co-1"), db.collections["co-1"])
	assert.False(t, db.scrapedAt["co-1"].IsZero())

	first := db.updates["co-1"][0]
	assert.Equal(t, models.BuildStatusBuilding, first.status)
}

func TestBuildWorkerFailedBuild(t *testing.T) {
	db := newFakeDB()
	index := newFakeIndex()
	acq := newFakeAcquirer(nil)
	acq.err = errors.New("site unreachable")
	rag := NewRAGService(index, acq, &fakeLLM{}, 1000)
	worker := NewBuildWorker(db, rag)

	worker.processOne(context.Background(), BuildJob{
		CompanyID: "co-2",
		URLs:      []string{"https://down.test/"},
	})

	last := db.lastUpdate("co-2")
	assert.Equal(t, models.BuildStatusFailed, last.status)
	assert.Contains(t, last.errMsg, "site unreachable")
	assert.Empty(t, db.collections["co-2"])
	assert.True(t, db.scrapedAt["co-2"].IsZero())
}

func TestBuildWorkerWarningStillReady(t *testing.T) {
	db := newFakeDB()
	rag := NewRAGService(newFakeIndex(), newFakeAcquirer(nil), &fakeLLM{}, 1000)
	worker := NewBuildWorker(db, rag)

	worker.processOne(context.Background(), BuildJob{
		CompanyID: "co-3",
		URLs:      []string{"https://empty.test/"},
	})

	last := db.lastUpdate("co-3")
	assert.Equal(t, models.BuildStatusReady, last.status)
	assert.Equal(t, CollectionNameFor("co-3"), db.collections["co-3"])
}

func TestCollectionNameFor(t *testing.T) {
	require.Equal(t, "company_abc", CollectionNameFor("abc"))
}
