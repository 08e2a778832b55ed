// Package service provides the book query façade: it runs one store operation,
// prints a human-readable report and returns the structured result.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	bookerrors "github.com/abgdnv/bookstore/internal/book/errors"
	"github.com/abgdnv/bookstore/internal/book/store"
	"github.com/go-playground/validator/v10"
)

// BookService defines the book queries. Every method writes its report to the
// service's writer and returns the same data to the caller.
type BookService interface {
	// FindByGenre lists the books of a genre.
	FindByGenre(ctx context.Context, genre string) ([]store.Book, error)

	// FindPublishedAfter lists the books published after year.
	FindPublishedAfter(ctx context.Context, year float64) ([]store.Book, error)

	// FindPublishedAfterRaw coerces year to a number first. Non-numeric input matches nothing.
	FindPublishedAfterRaw(ctx context.Context, year string) ([]store.Book, error)

	// FindByAuthor lists the books of an author.
	FindByAuthor(ctx context.Context, author string) ([]store.Book, error)

	// UpdatePriceByTitle sets the price of one book. No match is reported, not returned as an error.
	UpdatePriceByTitle(ctx context.Context, title string, price float64) (*store.UpdateResult, error)

	// DeleteByTitle removes one book. No match is reported, not returned as an error.
	DeleteByTitle(ctx context.Context, title string) (*store.DeleteResult, error)

	// FindInStockAndRecent lists in-stock books published after 2010.
	FindInStockAndRecent(ctx context.Context) ([]store.Book, error)

	// FindWithProjection lists title, author and price of the books matching filter.
	// Returns ErrInvalidFilter if the filter does not validate.
	FindWithProjection(ctx context.Context, filter store.Filter) ([]store.BookSummary, error)

	// SortByPrice lists every book by price; order "desc" is descending, anything else ascending.
	SortByPrice(ctx context.Context, order string) ([]store.Book, error)

	// Paginate shows one title-sorted page.
	Paginate(ctx context.Context, page, perPage int) (*store.Page, error)

	AveragePriceByGenre(ctx context.Context) ([]store.GenreAverage, error)
	MostPublishedAuthor(ctx context.Context) (*store.AuthorCount, error)
	BooksByDecade(ctx context.Context) ([]store.DecadeGroup, error)

	CreateIndexes(ctx context.Context) (*store.IndexReport, error)
	DemonstrateIndexPerformance(ctx context.Context) ([]store.QueryPlan, error)
	DropIndexes(ctx context.Context) error
}

// service implements BookService on top of a BookStore.
type service struct {
	repository store.BookStore
	out        io.Writer
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewService creates a new instance of BookService that reports to out.
func NewService(repo store.BookStore, out io.Writer, logger *slog.Logger) BookService {
	return &service{
		repository: repo,
		out:        out,
		validate:   validator.New(),
		logger:     logger.With("component", "service"),
	}
}

func (s *service) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

func (s *service) println(args ...any) {
	_, _ = fmt.Fprintln(s.out, args...)
}

// formatPrice renders a price with the shortest exact representation: 15, 10.99.
func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}

// FindByGenre retrieves the books of a genre.
func (s *service) FindByGenre(ctx context.Context, genre string) ([]store.Book, error) {
	books, err := s.repository.FindByGenre(ctx, genre)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error finding books by genre", "genre", genre, "error", err)
		return nil, err
	}
	s.printf("Found %d book(s) in genre \"%s\":\n", len(books), genre)
	for i, b := range books {
		s.printf("%d. %s — %s (%d)\n", i+1, b.Title, b.Author, b.PublishedYear)
	}
	return books, nil
}

// FindPublishedAfter retrieves the books published after year.
func (s *service) FindPublishedAfter(ctx context.Context, year float64) ([]store.Book, error) {
	books, err := s.repository.FindPublishedAfter(ctx, year)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error finding books published after year", "year", year, "error", err)
		return nil, err
	}
	s.reportPublishedAfter(strconv.FormatFloat(year, 'f', -1, 64), books)
	return books, nil
}

// FindPublishedAfterRaw parses year and delegates to FindPublishedAfter.
func (s *service) FindPublishedAfterRaw(ctx context.Context, year string) ([]store.Book, error) {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(year), 64)
	if err != nil || math.IsNaN(parsed) {
		s.logger.DebugContext(ctx, "Year is not a number, nothing can match", "year", year)
		books := []store.Book{}
		s.reportPublishedAfter(year, books)
		return books, nil
	}
	return s.FindPublishedAfter(ctx, parsed)
}

func (s *service) reportPublishedAfter(year string, books []store.Book) {
	s.printf("Found %d book(s) published after %s:\n", len(books), year)
	for i, b := range books {
		s.printf("%d. %s — %s (%d)\n", i+1, b.Title, b.Author, b.PublishedYear)
	}
}

// FindByAuthor retrieves the books of an author.
func (s *service) FindByAuthor(ctx context.Context, author string) ([]store.Book, error) {
	books, err := s.repository.FindByAuthor(ctx, author)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error finding books by author", "author", author, "error", err)
		return nil, err
	}
	s.printf("Found %d book(s) by %s:\n", len(books), author)
	for i, b := range books {
		s.printf("%d. %s — %s (%d)\n", i+1, b.Title, b.Genre, b.PublishedYear)
	}
	return books, nil
}

// UpdatePriceByTitle updates the price of the book with the given title.
func (s *service) UpdatePriceByTitle(ctx context.Context, title string, price float64) (*store.UpdateResult, error) {
	result, err := s.repository.UpdatePriceByTitle(ctx, title, price)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating price", "title", title, "error", err)
		return nil, err
	}
	if result.MatchedCount == 0 {
		s.printf("No book found with title \"%s\"\n", title)
	} else {
		s.printf("Updated price for \"%s\". Modified count: %d\n", title, result.ModifiedCount)
	}
	return result, nil
}

// DeleteByTitle deletes the book with the given title.
func (s *service) DeleteByTitle(ctx context.Context, title string) (*store.DeleteResult, error) {
	result, err := s.repository.DeleteByTitle(ctx, title)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting book", "title", title, "error", err)
		return nil, err
	}
	if result.DeletedCount == 0 {
		s.printf("No book deleted. No matching title \"%s\"\n", title)
	} else {
		s.printf("Deleted book with title \"%s\"\n", title)
	}
	return result, nil
}

// FindInStockAndRecent retrieves in-stock books published after 2010.
func (s *service) FindInStockAndRecent(ctx context.Context) ([]store.Book, error) {
	books, err := s.repository.FindInStockAndRecent(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error finding recent in-stock books", "error", err)
		return nil, err
	}
	s.printf("Found %d books in stock and published after 2010:\n", len(books))
	for i, b := range books {
		s.printf("%d. %s by %s (%d) - $%s\n", i+1, b.Title, b.Author, b.PublishedYear, formatPrice(b.Price))
	}
	return books, nil
}

// FindWithProjection validates filter and retrieves the matching title/author/price triples.
func (s *service) FindWithProjection(ctx context.Context, filter store.Filter) ([]store.BookSummary, error) {
	if err := s.validateFilter(filter); err != nil {
		s.logger.WarnContext(ctx, "Rejected book filter", "error", err)
		return nil, err
	}
	summaries, err := s.repository.FindWithProjection(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error finding books with projection", "error", err)
		return nil, err
	}
	s.printf("Found %d books (showing title, author, and price only):\n", len(summaries))
	for i, b := range summaries {
		s.printf("%d. \"%s\" by %s - $%s\n", i+1, b.Title, b.Author, formatPrice(b.Price))
	}
	return summaries, nil
}

func (s *service) validateFilter(filter store.Filter) error {
	if err := s.validate.Struct(filter); err != nil {
		return fmt.Errorf("%w: %v", bookerrors.ErrInvalidFilter, err)
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return fmt.Errorf("%w: minPrice %s is greater than maxPrice %s",
			bookerrors.ErrInvalidFilter, formatPrice(*filter.MinPrice), formatPrice(*filter.MaxPrice))
	}
	if filter.PublishedAfter != nil && filter.PublishedBefore != nil && *filter.PublishedAfter >= *filter.PublishedBefore {
		return fmt.Errorf("%w: publishedAfter %d leaves no year before %d",
			bookerrors.ErrInvalidFilter, *filter.PublishedAfter, *filter.PublishedBefore)
	}
	return nil
}

// SortByPrice retrieves every book ordered by price.
func (s *service) SortByPrice(ctx context.Context, order string) ([]store.Book, error) {
	sortOrder := store.ParseSortOrder(order)
	books, err := s.repository.SortByPrice(ctx, sortOrder)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error sorting books by price", "order", sortOrder.String(), "error", err)
		return nil, err
	}
	direction := "lowest"
	if sortOrder == store.Descending {
		direction = "highest"
	}
	s.printf("Books sorted by price (%s first):\n", direction)
	for i, b := range books {
		s.printf("%d. \"%s\" by %s - $%s\n", i+1, b.Title, b.Author, formatPrice(b.Price))
	}
	return books, nil
}

// Paginate retrieves one page and hints at the next one.
func (s *service) Paginate(ctx context.Context, page, perPage int) (*store.Page, error) {
	p, err := s.repository.Paginate(ctx, page, perPage)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error paginating books", "page", page, "perPage", perPage, "error", err)
		return nil, err
	}
	s.printf("\nShowing page %d of %d (%d total books):\n", p.Page, p.TotalPages, p.Total)
	offset := (p.Page - 1) * p.PerPage
	for i, b := range p.Books {
		s.printf("%d. \"%s\" by %s - $%s\n", offset+i+1, b.Title, b.Author, formatPrice(b.Price))
	}
	if p.Page < p.TotalPages {
		s.printf("\nUse: bookstore paginate %d to see next page\n", p.Page+1)
	}
	return p, nil
}

// AveragePriceByGenre retrieves the mean price per genre.
func (s *service) AveragePriceByGenre(ctx context.Context) ([]store.GenreAverage, error) {
	averages, err := s.repository.AveragePriceByGenre(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error aggregating average price by genre", "error", err)
		return nil, err
	}
	s.println("\nAverage book prices by genre:")
	for _, g := range averages {
		s.printf("%s: $%.2f (%d books)\n", g.Genre, g.AveragePrice, g.Count)
	}
	return averages, nil
}

// MostPublishedAuthor retrieves the author with the most books.
func (s *service) MostPublishedAuthor(ctx context.Context) (*store.AuthorCount, error) {
	author, err := s.repository.MostPublishedAuthor(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error aggregating books per author", "error", err)
		return nil, err
	}
	if author != nil {
		s.printf("\nAuthor with most books: %s (%d books)\n", author.Author, author.BookCount)
		s.println("Titles:", strings.Join(author.Titles, ", "))
	}
	return author, nil
}

// BooksByDecade retrieves books grouped by publication decade.
func (s *service) BooksByDecade(ctx context.Context) ([]store.DecadeGroup, error) {
	groups, err := s.repository.BooksByDecade(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error aggregating books by decade", "error", err)
		return nil, err
	}
	s.println("\nBooks grouped by decade:")
	for _, g := range groups {
		s.printf("\n%s:\n", g.Decade)
		for _, b := range g.Books {
			s.printf("  %d: \"%s\" by %s\n", b.Year, b.Title, b.Author)
		}
	}
	return groups, nil
}

// CreateIndexes creates the title and author/year indexes and prints every index.
func (s *service) CreateIndexes(ctx context.Context) (*store.IndexReport, error) {
	s.println("Creating indexes...")
	report, err := s.repository.CreateIndexes(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating indexes", "error", err)
		return nil, err
	}
	for _, name := range report.Created {
		switch name {
		case store.TitleIndex:
			s.println("Created index on title field:", name)
		case store.AuthorYearIndex:
			s.println("Created compound index on author and published_year:", name)
		default:
			s.println("Created index:", name)
		}
	}
	s.println("\nCurrent indexes in collection:")
	for _, idx := range report.Indexes {
		s.println("- Index:", idx.Name, "Key:", idx.KeyJSON)
	}
	return report, nil
}

// DemonstrateIndexPerformance prints execution statistics of the index probe queries.
func (s *service) DemonstrateIndexPerformance(ctx context.Context) ([]store.QueryPlan, error) {
	plans, err := s.repository.ExplainQueries(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error explaining queries", "error", err)
		return nil, err
	}
	for i, p := range plans {
		s.printf("\n%d. %s:\n", i+1, p.Label)
		s.println("- Execution stats:")
		s.println("  Documents examined:", p.DocsExamined)
		s.println("  Using index:", indexUsage(p))
		s.println("  Execution time:", p.ExecutionTimeMillis, "ms")
	}
	return plans, nil
}

func indexUsage(p store.QueryPlan) string {
	switch {
	case p.IndexName != "":
		return p.IndexName
	case p.CollectionScan:
		return "No (collection scan)"
	default:
		return "Yes"
	}
}

// DropIndexes drops every index except _id_.
func (s *service) DropIndexes(ctx context.Context) error {
	if err := s.repository.DropIndexes(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Error dropping indexes", "error", err)
		return err
	}
	s.println("Dropped all indexes")
	return nil
}
