package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sitewise-ai/sitewise/internal/config"
	"github.com/sitewise-ai/sitewise/internal/core"
	"github.com/sitewise-ai/sitewise/internal/core/database"
	"github.com/sitewise-ai/sitewise/internal/core/llm"
	"github.com/sitewise-ai/sitewise/internal/core/objectstore"
	"github.com/sitewise-ai/sitewise/internal/core/vectorstore"
	"github.com/sitewise-ai/sitewise/internal/render"
	"github.com/sitewise-ai/sitewise/internal/scraper"
	"github.com/sitewise-ai/sitewise/internal/services"
)

type App struct {
	DBClient     core.DbClient
	ObjectClient core.ObjectClient
	RAG          *services.RAGService
	Worker       *services.BuildWorker
	Server       *Server

	embedder *llm.GeminiEmbedder
	llm      *llm.GeminiLLM
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := database.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	objClient, err := objectstore.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Object client initialized and ready.")

	geminiEmbedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}

	llmProvider, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the llm, %w", err)
	}

	// The vector store shares the relational pool; one Postgres holds both.
	index := vectorstore.NewPgVectorIndex(dbClient.DB(), geminiEmbedder)

	siteScraper := scraper.NewWebsiteScraper(
		render.NewChromeEngine(),
		cfg.ChunkSize,
		cfg.MaxDepth,
		cfg.MaxConcurrent,
		time.Duration(cfg.PageTimeoutMs)*time.Millisecond,
	)

	rag := services.NewRAGService(index, siteScraper, llmProvider, cfg.ChunkSize)
	worker := services.NewBuildWorker(dbClient, rag)
	worker.Start(ctx, 1)

	server := NewServer(cfg, dbClient, objClient, rag, worker)

	return &App{
		DBClient:     dbClient,
		ObjectClient: objClient,
		RAG:          rag,
		Worker:       worker,
		Server:       server,
		embedder:     geminiEmbedder,
		llm:          llmProvider,
	}, nil
}

func (a *App) Close() {
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.llm != nil {
		_ = a.llm.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
