package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	bookerrors "github.com/abgdnv/bookstore/internal/book/errors"
	"github.com/abgdnv/bookstore/internal/platform/mongodb"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	collectionName = "books"

	// recentYear is the exclusive lower bound used by FindInStockAndRecent.
	recentYear = 2010

	TitleIndex      = "idx_title"
	AuthorYearIndex = "idx_author_year"
)

var (
	summaryProjection = bson.D{{"title", 1}, {"author", 1}, {"price", 1}}
	recentProjection  = bson.D{{"title", 1}, {"author", 1}, {"price", 1}, {"published_year", 1}}
	noIDProjection    = bson.D{{"title", 1}, {"author", 1}, {"price", 1}, {"_id", 0}}
)

// MongoStore implements BookStore on top of a MongoDB collection.
type MongoStore struct {
	scope mongodb.Scope
}

var _ BookStore = (*MongoStore)(nil)

// NewMongoStore creates a new instance of BookStore. Each operation acquires its own connection from scope.
func NewMongoStore(scope mongodb.Scope) *MongoStore {
	return &MongoStore{scope: scope}
}

func collection(db *mongo.Database) *mongo.Collection {
	return db.Collection(collectionName)
}

// find runs a find and decodes every match into a non-nil slice.
func find[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...options.Lister[options.FindOptions]) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	results := make([]T, 0)
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// aggregate runs a pipeline and decodes every output document into a non-nil slice.
func aggregate[T any](ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) ([]T, error) {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	results := make([]T, 0)
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *MongoStore) findBooks(ctx context.Context, filter bson.D, opts ...options.Lister[options.FindOptions]) ([]Book, error) {
	return mongodb.Run(ctx, s.scope, func(ctx context.Context, db *mongo.Database) ([]Book, error) {
		return find[Book](ctx, collection(db), filter, opts...)
	})
}

// FindByGenre retrieves all books of a genre.
func (s *MongoStore) FindByGenre(ctx context.Context, genre string) ([]Book, error) {
	books, err := s.findBooks(ctx, bson.D{{"genre", genre}})
	if err != nil {
		return nil, fmt.Errorf("failed to find books by genre: %w", err)
	}
	return books, nil
}

// FindPublishedAfter retrieves all books published after year.
func (s *MongoStore) FindPublishedAfter(ctx context.Context, year float64) ([]Book, error) {
	books, err := s.findBooks(ctx, bson.D{{"published_year", bson.D{{"$gt", year}}}})
	if err != nil {
		return nil, fmt.Errorf("failed to find books published after %v: %w", year, err)
	}
	return books, nil
}

// FindByAuthor retrieves all books of an author.
func (s *MongoStore) FindByAuthor(ctx context.Context, author string) ([]Book, error) {
	books, err := s.findBooks(ctx, bson.D{{"author", author}})
	if err != nil {
		return nil, fmt.Errorf("failed to find books by author: %w", err)
	}
	return books, nil
}

// UpdatePriceByTitle sets the price of the first book matching title.
func (s *MongoStore) UpdatePriceByTitle(ctx context.Context, title string, price float64) (*UpdateResult, error) {
	result, err := mongodb.Run(ctx, s.scope, func(ctx context.Context, db *mongo.Database) (*UpdateResult, error) {
		res, err := collection(db).UpdateOne(ctx,
			bson.D{{"title", title}},
			bson.D{{"$set", bson.D{{"price", price}}}},
		)
		if err != nil {
			return nil, err
		}
		return &UpdateResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update price: %w", err)
	}
	return result, nil
}

// DeleteByTitle removes the first book matching title.
func (s *MongoStore) DeleteByTitle(ctx context.Context, title string) (*DeleteResult, error) {
	result, err := mongodb.Run(ctx, s.scope, func(ctx context.Context, db *mongo.Database) (*DeleteResult, error) {
		res, err := collection(db).DeleteOne(ctx, bson.D{{"title", title}})
		if err != nil {
			return nil, err
		}
		return &DeleteResult{DeletedCount: res.DeletedCount}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete book: %w", err)
	}
	return result, nil
}

// FindInStockAndRecent retrieves in-stock books published after 2010.
func (s *MongoStore) FindInStockAndRecent(ctx context.Context) ([]Book, error) {
	books, err := s.findBooks(ctx,
		bson.D{{"in_stock", true}, {"published_year", bson.D{{"$gt", recentYear}}}},
		options.Find().SetProjection(recentProjection),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find recent in-stock books: %w", err)
	}
	return books, nil
}

// FindWithProjection retrieves title, author and price of the books matching filter.
func (s *MongoStore) FindWithProjection(ctx context.Context, filter Filter) ([]BookSummary, error) {
	summaries, err := mongodb.Run(ctx, s.scope, func(ctx context.Context, db *mongo.Database) ([]BookSummary, error) {
		return find[BookSummary](ctx, collection(db), filter.Document(), options.Find().SetProjection(noIDProjection))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find books with projection: %w", err)
	}
	return summaries, nil
}

// SortByPrice retrieves every book ordered by price.
func (s *MongoStore) SortByPrice(ctx context.Context, order SortOrder) ([]Book, error) {
	books, err := s.findBooks(ctx, bson.D{},
		options.Find().
			SetProjection(summaryProjection).
			SetSort(bson.D{{"price", int(order)}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sort books by price: %w", err)
	}
	return books, nil
}

// Paginate retrieves one title-sorted page. The requested page is clamped into [1, totalPages].
func (s *MongoStore) Paginate(ctx context.Context, page, perPage int) (*Page, error) {
	if perPage < 1 {
		return nil, fmt.Errorf("%w: got %d", bookerrors.ErrInvalidPageSize, perPage)
	}
	result, err := mongodb.Run(ctx, s.scope, func(ctx context.Context, db *mongo.Database) (*Page, error) {
		coll := collection(db)
		total, err := coll.CountDocuments(ctx, bson.D{})
		if err != nil {
			return nil, err
		}
		current, totalPages := clampPage(page, perPage, total)
		p := &Page{Books: []Book{}, Page: current, PerPage: perPage, TotalPages: totalPages, Total: total}
		if totalPages == 0 {
			return p, nil
		}
		p.Books, err = find[Book](ctx, coll, bson.D{},
			options.Find().
				SetProjection(summaryProjection).
				SetSort(bson.D{{"title", 1}}).
				SetSkip(int64((current-1)*perPage)).
				SetLimit(int64(perPage)),
		)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to paginate books: %w", err)
	}
	return result, nil
}

// clampPage returns the page clamped into [1, totalPages] and the page count.
// An empty collection has zero pages and clamps every request to page 0.
func clampPage(page, perPage int, total int64) (int, int) {
	pages := total / int64(perPage)
	if total%int64(perPage) != 0 {
		pages++
	}
	totalPages := int(pages)
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return page, totalPages
}

// AveragePriceByGenre groups by genre and averages the price.
func (s *MongoStore) AveragePriceByGenre(ctx context.Context) ([]GenreAverage, error) {
	pipeline := mongo.Pipeline{
		{{"$group", bson.D{
			{"_id", "$genre"},
			{"averagePrice", bson.D{{"$avg", "$price"}}},
			{"count", bson.D{{"$sum", 1}}},
		}}},
		{{"$sort", bson.D{{"_id", 1}}}},
	}
	averages, err := mongodb.Run(ctx, s.scope, func(ctx context.Context, db *mongo.Database) ([]GenreAverage, error) {
		return aggregate[GenreAverage](ctx, collection(db), pipeline)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate average price by genre: %w", err)
	}
	return averages, nil
}

// MostPublishedAuthor groups by author and keeps the largest group; ties go to the first author by name.
func (s *MongoStore) MostPublishedAuthor(ctx context.Context) (*AuthorCount, error) {
	pipeline := mongo.Pipeline{
		{{"$group", bson.D{
			{"_id", "$author"},
			{"bookCount", bson.D{{"$sum", 1}}},
			{"titles", bson.D{{"$push", "$title"}}},
		}}},
		{{"$sort", bson.D{{"bookCount", -1}, {"_id", 1}}}},
		{{"$limit", 1}},
	}
	authors, err := mongodb.Run(ctx, s.scope, func(ctx context.Context, db *mongo.Database) ([]AuthorCount, error) {
		return aggregate[AuthorCount](ctx, collection(db), pipeline)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate books per author: %w", err)
	}
	if len(authors) == 0 {
		return nil, nil
	}
	return &authors[0], nil
}

// decadeLabel is the pipeline expression for floor(published_year/10)*10 followed by "s".
// Books without a year fall into the bare "s" group.
var decadeLabel = bson.D{{"$ifNull", bson.A{
	bson.D{{"$concat", bson.A{
		bson.D{{"$toString", bson.D{{"$toLong", bson.D{{"$multiply", bson.A{
			bson.D{{"$floor", bson.D{{"$divide", bson.A{"$published_year", 10}}}}},
			10,
		}}}}}}},
		"s",
	}}},
	"s",
}}}

// BooksByDecade groups books by decade label; books inside a group are ordered by year.
func (s *MongoStore) BooksByDecade(ctx context.Context) ([]DecadeGroup, error) {
	pipeline := mongo.Pipeline{
		{{"$group", bson.D{
			{"_id", decadeLabel},
			{"count", bson.D{{"$sum", 1}}},
			{"books", bson.D{{"$push", bson.D{
				{"title", "$title"},
				{"year", "$published_year"},
				{"author", "$author"},
			}}}},
		}}},
		{{"$sort", bson.D{{"_id", 1}}}},
	}
	groups, err := mongodb.Run(ctx, s.scope, func(ctx context.Context, db *mongo.Database) ([]DecadeGroup, error) {
		return aggregate[DecadeGroup](ctx, collection(db), pipeline)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate books by decade: %w", err)
	}
	for i := range groups {
		slices.SortStableFunc(groups[i].Books, func(a, b DecadeBook) int {
			return cmp.Compare(a.Year, b.Year)
		})
	}
	return groups, nil
}

// CreateIndexes creates idx_title and idx_author_year. Creating an existing index with the same keys is a no-op.
func (s *MongoStore) CreateIndexes(ctx context.Context) (*IndexReport, error) {
	models := []mongo.IndexModel{
		{Keys: bson.D{{"title", 1}}, Options: options.Index().SetName(TitleIndex)},
		{Keys: bson.D{{"author", 1}, {"published_year", -1}}, Options: options.Index().SetName(AuthorYearIndex)},
	}
	report, err := mongodb.Run(ctx, s.scope, func(ctx context.Context, db *mongo.Database) (*IndexReport, error) {
		indexes := collection(db).Indexes()
		report := &IndexReport{}
		for _, model := range models {
			name, err := indexes.CreateOne(ctx, model)
			if err != nil {
				return nil, err
			}
			report.Created = append(report.Created, name)
		}
		var err error
		report.Indexes, err = listIndexes(ctx, indexes)
		if err != nil {
			return nil, err
		}
		return report, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return report, nil
}

func listIndexes(ctx context.Context, indexes mongo.IndexView) ([]IndexInfo, error) {
	cursor, err := indexes.List(ctx)
	if err != nil {
		return nil, err
	}
	var infos []IndexInfo
	if err := cursor.All(ctx, &infos); err != nil {
		return nil, err
	}
	for i := range infos {
		key, err := bson.MarshalExtJSON(infos[i].Key, false, false)
		if err != nil {
			return nil, fmt.Errorf("failed to render key of index %s: %w", infos[i].Name, err)
		}
		infos[i].KeyJSON = string(key)
	}
	return infos, nil
}

// DropIndexes drops every index except _id_.
func (s *MongoStore) DropIndexes(ctx context.Context) error {
	err := s.scope.WithDatabase(ctx, func(ctx context.Context, db *mongo.Database) error {
		return collection(db).Indexes().DropAll(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to drop indexes: %w", err)
	}
	return nil
}
