package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sitewise-ai/sitewise/internal/api/handlers"
	appMiddleware "github.com/sitewise-ai/sitewise/internal/api/middlewares"
	"github.com/sitewise-ai/sitewise/internal/config"
	"github.com/sitewise-ai/sitewise/internal/core"
	"github.com/sitewise-ai/sitewise/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, db core.DbClient, obj core.ObjectClient, rag *services.RAGService, worker *services.BuildWorker) *Server {
	authHandler := handlers.NewAuthHandler(db)
	companyHandler := handlers.NewCompanyHandler(db)
	aiHandler := handlers.NewAIHandler(db, obj, rag, worker, cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Api-Key"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)
		api.Post("/widget/chat", aiHandler.WidgetChat)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware)
			protected.Post("/companies", companyHandler.CreateCompany)
			protected.Get("/companies", companyHandler.ListCompanies)

			protected.Post("/ai/build/{companyID}", aiHandler.Build)
			protected.Post("/ai/scrape/{companyID}", aiHandler.Scrape)
			protected.Get("/ai/status/{companyID}", aiHandler.Status)
			protected.Post("/ai/chat/{companyID}", aiHandler.Chat)

			protected.Post("/documents/upload/{companyID}", aiHandler.UploadDocument)
			protected.Get("/documents/{companyID}", aiHandler.ListDocuments)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
