// Package store provides the MongoDB operations over the books collection.
package store

import (
	"context"
)

// BookStore is an interface for book storage operations.
// Every call runs against its own connection; no state is shared between calls.
type BookStore interface {
	// FindByGenre returns every book with exactly the given genre.
	FindByGenre(ctx context.Context, genre string) ([]Book, error)

	// FindPublishedAfter returns every book published strictly after year.
	FindPublishedAfter(ctx context.Context, year float64) ([]Book, error)

	// FindByAuthor returns every book with exactly the given author.
	FindByAuthor(ctx context.Context, author string) ([]Book, error)

	// UpdatePriceByTitle sets the price of at most one book with the given title.
	// A zero MatchedCount means no book has that title; it is not an error.
	UpdatePriceByTitle(ctx context.Context, title string, price float64) (*UpdateResult, error)

	// DeleteByTitle removes at most one book with the given title.
	DeleteByTitle(ctx context.Context, title string) (*DeleteResult, error)

	// FindInStockAndRecent returns books in stock and published after 2010.
	FindInStockAndRecent(ctx context.Context) ([]Book, error)

	// FindWithProjection returns title, author and price of the books matching filter.
	FindWithProjection(ctx context.Context, filter Filter) ([]BookSummary, error)

	// SortByPrice returns every book ordered by price.
	SortByPrice(ctx context.Context, order SortOrder) ([]Book, error)

	// Paginate returns a title-sorted window of the collection.
	// Returns ErrInvalidPageSize if perPage is less than 1.
	Paginate(ctx context.Context, page, perPage int) (*Page, error)

	// AveragePriceByGenre returns the mean price and count per genre, ordered by genre.
	AveragePriceByGenre(ctx context.Context) ([]GenreAverage, error)

	// MostPublishedAuthor returns the author with the most books, or nil for an empty collection.
	MostPublishedAuthor(ctx context.Context) (*AuthorCount, error)

	// BooksByDecade groups books by publication decade, ordered by decade label.
	BooksByDecade(ctx context.Context) ([]DecadeGroup, error)

	// CreateIndexes creates the title and author/year indexes and lists all indexes.
	CreateIndexes(ctx context.Context) (*IndexReport, error)

	// ExplainQueries returns execution statistics for the representative queries.
	ExplainQueries(ctx context.Context) ([]QueryPlan, error)

	// DropIndexes removes every index except the mandatory _id index.
	DropIndexes(ctx context.Context) error
}
