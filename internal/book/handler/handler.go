// Package handler provides HTTP handlers for the book queries.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	bookerrors "github.com/abgdnv/bookstore/internal/book/errors"
	"github.com/abgdnv/bookstore/internal/book/service"
	"github.com/abgdnv/bookstore/internal/book/store"
	"github.com/abgdnv/bookstore/internal/platform/web"
	"github.com/go-playground/validator/v10"
)

const (
	defaultPage    = 1
	defaultPerPage = 5
)

// BookAPI defines HTTP handlers for the book endpoints.
type BookAPI interface {
	FindByGenre(w http.ResponseWriter, r *http.Request)
	FindByAuthor(w http.ResponseWriter, r *http.Request)
	FindPublishedAfter(w http.ResponseWriter, r *http.Request)
	FindInStockAndRecent(w http.ResponseWriter, r *http.Request)
	Search(w http.ResponseWriter, r *http.Request)
	SortByPrice(w http.ResponseWriter, r *http.Request)
	Paginate(w http.ResponseWriter, r *http.Request)
	UpdatePrice(w http.ResponseWriter, r *http.Request)
	DeleteByTitle(w http.ResponseWriter, r *http.Request)

	AveragePriceByGenre(w http.ResponseWriter, r *http.Request)
	MostPublishedAuthor(w http.ResponseWriter, r *http.Request)
	BooksByDecade(w http.ResponseWriter, r *http.Request)

	CreateIndexes(w http.ResponseWriter, r *http.Request)
	ExplainQueries(w http.ResponseWriter, r *http.Request)
	DropIndexes(w http.ResponseWriter, r *http.Request)

	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// PriceUpdateDto is the body of PUT /books/{title}/price.
type PriceUpdateDto struct {
	Price *float64 `json:"price" validate:"required,gte=0"`
}

type api struct {
	service  service.BookService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAPI creates a new instance of BookAPI with the provided service.
func NewAPI(service service.BookService, logger *slog.Logger) BookAPI {
	return &api{
		service:  service,
		validate: validator.New(),
		logger:   logger.With("component", "api"),
	}
}

// FindByGenre lists the books of the genre in the path.
func (a *api) FindByGenre(w http.ResponseWriter, r *http.Request) {
	genre := r.PathValue("genre")
	a.logger.DebugContext(r.Context(), "Received request to find books by genre", "genre", genre)
	books, err := a.service.FindByGenre(r.Context(), genre)
	if err != nil {
		a.fail(w, r, err, fmt.Sprintf("Failed to find books in genre %s", genre))
		return
	}
	web.RespondJSON(w, a.logger, http.StatusOK, books)
}

// FindByAuthor lists the books of the author in the path.
func (a *api) FindByAuthor(w http.ResponseWriter, r *http.Request) {
	author := r.PathValue("author")
	a.logger.DebugContext(r.Context(), "Received request to find books by author", "author", author)
	books, err := a.service.FindByAuthor(r.Context(), author)
	if err != nil {
		a.fail(w, r, err, fmt.Sprintf("Failed to find books by %s", author))
		return
	}
	web.RespondJSON(w, a.logger, http.StatusOK, books)
}

// FindPublishedAfter lists the books published after the year in the path.
// A year that is not a number matches nothing.
func (a *api) FindPublishedAfter(w http.ResponseWriter, r *http.Request) {
	year := r.PathValue("year")
	books, err := a.service.FindPublishedAfterRaw(r.Context(), year)
	if err != nil {
		a.fail(w, r, err, fmt.Sprintf("Failed to find books published after %s", year))
		return
	}
	web.RespondJSON(w, a.logger, http.StatusOK, books)
}

func (a *api) FindInStockAndRecent(w http.ResponseWriter, r *http.Request) {
	books, err := a.service.FindInStockAndRecent(r.Context())
	if err != nil {
		a.fail(w, r, err, "Failed to find recent books in stock")
		return
	}
	web.RespondJSON(w, a.logger, http.StatusOK, books)
}

// Search lists title, author and price of the books matching the filter in the body.
func (a *api) Search(w http.ResponseWriter, r *http.Request) {
	var filter store.Filter
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		a.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, a.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	summaries, err := a.service.FindWithProjection(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err, "Failed to search books")
		return
	}
	web.RespondJSON(w, a.logger, http.StatusOK, summaries)
}

// SortByPrice lists every book by price; ?order=desc sorts the most expensive first.
func (a *api) SortByPrice(w http.ResponseWriter, r *http.Request) {
	books, err := a.service.SortByPrice(r.Context(), r.URL.Query().Get("order"))
	if err != nil {
		a.fail(w, r, err, "Failed to sort books")
		return
	}
	web.RespondJSON(w, a.logger, http.StatusOK, books)
}

// Paginate returns one title-sorted page. Both query parameters are optional.
func (a *api) Paginate(w http.ResponseWriter, r *http.Request) {
	page, ok := parseQueryInt(w, r, a.logger, "page", defaultPage)
	if !ok {
		return
	}
	perPage, ok := parseQueryInt(w, r, a.logger, "perPage", defaultPerPage)
	if !ok {
		return
	}
	p, err := a.service.Paginate(r.Context(), page, perPage)
	if err != nil {
		a.fail(w, r, err, "Failed to paginate books")
		return
	}
	web.RespondJSON(w, a.logger, http.StatusOK, p)
}

// UpdatePrice sets the price of the book with the title in the path.
func (a *api) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	title := r.PathValue("title")
	var dto PriceUpdateDto
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		a.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, a.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := a.validate.Struct(dto); err != nil {
		web.RespondValidationError(w, a.logger, err)
		return
	}

	result, err := a.service.UpdatePriceByTitle(r.Context(), title, *dto.Price)
	if err != nil {
		a.fail(w, r, err, fmt.Sprintf("Failed to update price for %s", title))
		return
	}
	if result.MatchedCount == 0 {
		a.logger.WarnContext(r.Context(), "Book not found for price update", "title", title)
		web.RespondError(w, a.logger, http.StatusNotFound, fmt.Sprintf("No book found with title %s", title))
		return
	}
	a.logger.InfoContext(r.Context(), "Price updated", "title", title, "price", *dto.Price)
	web.RespondJSON(w, a.logger, http.StatusOK, result)
}

// DeleteByTitle removes the book with the title in the path.
func (a *api) DeleteByTitle(w http.ResponseWriter, r *http.Request) {
	title := r.PathValue("title")
	result, err := a.service.DeleteByTitle(r.Context(), title)
	if err != nil {
		a.fail(w, r, err, fmt.Sprintf("Failed to delete book %s", title))
		return
	}
	if result.DeletedCount == 0 {
		a.logger.WarnContext(r.Context(), "Book not found for deletion", "title", title)
		web.RespondError(w, a.logger, http.StatusNotFound, fmt.Sprintf("No book found with title %s", title))
		return
	}
	a.logger.InfoContext(r.Context(), "Book deleted", "title", title)
	web.RespondJSON(w, a.logger, http.StatusOK, result)
}

func (a *api) AveragePriceByGenre(w http.ResponseWriter, r *http.Request) {
	averages, err := a.service.AveragePriceByGenre(r.Context())
	if err != nil {
		a.fail(w, r, err, "Failed to aggregate prices by genre")
		return
	}
	web.RespondJSON(w, a.logger, http.StatusOK, averages)
}

// MostPublishedAuthor responds 204 when the collection is empty.
func (a *api) MostPublishedAuthor(w http.ResponseWriter, r *http.Request) {
	author, err := a.service.MostPublishedAuthor(r.Context())
	if err != nil {
		a.fail(w, r, err, "Failed to aggregate books by author")
		return
	}
	if author == nil {
		web.RespondJSON(w, a.logger, http.StatusNoContent, nil)
		return
	}
	web.RespondJSON(w, a.logger, http.StatusOK, author)
}

func (a *api) BooksByDecade(w http.ResponseWriter, r *http.Request) {
	groups, err := a.service.BooksByDecade(r.Context())
	if err != nil {
		a.fail(w, r, err, "Failed to group books by decade")
		return
	}
	web.RespondJSON(w, a.logger, http.StatusOK, groups)
}

func (a *api) CreateIndexes(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.CreateIndexes(r.Context())
	if err != nil {
		a.fail(w, r, err, "Failed to create indexes")
		return
	}
	a.logger.InfoContext(r.Context(), "Indexes created", "names", report.Created)
	web.RespondJSON(w, a.logger, http.StatusCreated, report)
}

func (a *api) ExplainQueries(w http.ResponseWriter, r *http.Request) {
	plans, err := a.service.DemonstrateIndexPerformance(r.Context())
	if err != nil {
		a.fail(w, r, err, "Failed to explain queries")
		return
	}
	web.RespondJSON(w, a.logger, http.StatusOK, plans)
}

func (a *api) DropIndexes(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DropIndexes(r.Context()); err != nil {
		a.fail(w, r, err, "Failed to drop indexes")
		return
	}
	a.logger.InfoContext(r.Context(), "Indexes dropped")
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck is a simple health check endpoint.
func (a *api) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// fail maps err to a response: invalid input is a 400 carrying the error text, anything else a 500 with message.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error, message string) {
	if errors.Is(err, bookerrors.ErrInvalidFilter) || errors.Is(err, bookerrors.ErrInvalidPageSize) {
		a.logger.WarnContext(r.Context(), "Invalid request", "error", err)
		web.RespondError(w, a.logger, http.StatusBadRequest, err.Error())
		return
	}
	a.logger.ErrorContext(r.Context(), message, "error", err)
	web.RespondError(w, a.logger, http.StatusInternalServerError, message)
}

// parseQueryInt reads an optional integer query parameter, falling back to def when it is absent.
func parseQueryInt(w http.ResponseWriter, r *http.Request, logger *slog.Logger, key string, def int) (int, bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return def, true
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		web.RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s number: %s", key, value))
		return 0, false
	}
	return parsed, true
}
