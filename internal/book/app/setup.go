// Package app wires the bookstore: connector, store, service and the HTTP surface.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/abgdnv/bookstore/internal/book/handler"
	"github.com/abgdnv/bookstore/internal/book/service"
	"github.com/abgdnv/bookstore/internal/book/store"
	"github.com/abgdnv/bookstore/internal/config"
	"github.com/abgdnv/bookstore/internal/platform/mongodb"
	"github.com/abgdnv/bookstore/internal/platform/web"
	"github.com/go-chi/chi/v5"
)

type Dependencies struct {
	BookService service.BookService
	Logger      *slog.Logger
}

// SetupDependencies builds the service over a MongoDB store. Reports are written to out;
// the HTTP server passes io.Discard.
func SetupDependencies(cfg *config.Config, out io.Writer, logger *slog.Logger) *Dependencies {
	connector := mongodb.NewConnector(mongodb.Config{
		URI:                    cfg.MongoDB.URI,
		Database:               cfg.MongoDB.DB,
		ConnectTimeout:         cfg.MongoDB.ConnectTimeout,
		ServerSelectionTimeout: cfg.MongoDB.ServerSelectionTimeout,
	}, logger)

	return &Dependencies{
		BookService: service.NewService(store.NewMongoStore(connector), out, logger),
		Logger:      logger,
	}
}

// SetupHttpHandler builds the router with every book route and the shared middleware.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	bApi := handler.NewAPI(deps.BookService, deps.Logger)

	mux := chi.NewRouter()
	mux.Use(web.RequestIDInjector)
	mux.Use(web.StructuredLogger(deps.Logger))
	mux.Use(web.Recoverer(deps.Logger))

	mux.Route("/api/v1", func(r chi.Router) {
		r.Route("/books", func(r chi.Router) {
			r.Get("/", bApi.Paginate)
			r.Get("/genre/{genre}", bApi.FindByGenre)
			r.Get("/author/{author}", bApi.FindByAuthor)
			r.Get("/published-after/{year}", bApi.FindPublishedAfter)
			r.Get("/in-stock-recent", bApi.FindInStockAndRecent)
			r.Get("/sorted", bApi.SortByPrice)
			r.Post("/search", bApi.Search)
			r.Put("/{title}/price", bApi.UpdatePrice)
			r.Delete("/{title}", bApi.DeleteByTitle)
		})
		r.Route("/stats", func(r chi.Router) {
			r.Get("/genres", bApi.AveragePriceByGenre)
			r.Get("/top-author", bApi.MostPublishedAuthor)
			r.Get("/decades", bApi.BooksByDecade)
		})
		r.Route("/indexes", func(r chi.Router) {
			r.Post("/", bApi.CreateIndexes)
			r.Get("/explain", bApi.ExplainQueries)
			r.Delete("/", bApi.DropIndexes)
		})
	})

	mux.Get("/healthz", bApi.HealthCheck)

	return mux
}

// SetupHttpServer creates and configures the HTTP server.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPServer.Port),
		Handler:           SetupHttpHandler(deps),
		ReadTimeout:       cfg.HTTPServer.Timeout.Read,
		WriteTimeout:      cfg.HTTPServer.Timeout.Write,
		IdleTimeout:       cfg.HTTPServer.Timeout.Idle,
		ReadHeaderTimeout: cfg.HTTPServer.Timeout.ReadHeader,
		MaxHeaderBytes:    cfg.HTTPServer.MaxHeaderBytes,
	}
}
