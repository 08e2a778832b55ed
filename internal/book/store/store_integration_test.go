package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	bookerrors "github.com/abgdnv/bookstore/internal/book/errors"
	"github.com/abgdnv/bookstore/internal/platform/mongodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const skipIntegrationTests = "BOOKSTORE_SKIP_INTEGRATION_TESTS"

const testDatabase = "plp_bookstore_test"

// BookStoreSuite is a test suite for the MongoStore implementation.
type BookStoreSuite struct {
	suite.Suite                         // Embedding testify's suite for structured testing
	container *tcmongo.MongoDBContainer // MongoDB container for integration tests
	client    *mongo.Client             // Client used only for seeding and inspection
	store     BookStore                 // Store under test, connecting per call
	logger    *slog.Logger              // Logger for the test suite
	ctx       context.Context           // Context for the test suite
}

// TestBookStoreIntegration runs the BookStore integration tests.
func TestBookStoreIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(BookStoreSuite))
}

// SetupSuite starts a MongoDB container and builds the store on top of it.
func (s *BookStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var err error
	s.container, err = tcmongo.Run(s.ctx, "mongo:7.0")
	require.NoError(s.T(), err, "Failed to run MongoDB container")

	uri, err := s.container.ConnectionString(s.ctx)
	require.NoError(s.T(), err, "Failed to get connection string from container")

	s.client, err = mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(s.T(), err, "Failed to connect seeding client")
	require.NoError(s.T(), s.client.Ping(s.ctx, nil), "Failed to ping MongoDB")

	connector := mongodb.NewConnector(mongodb.Config{
		URI:                    uri,
		Database:               testDatabase,
		ConnectTimeout:         5 * time.Second,
		ServerSelectionTimeout: 5 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.store = NewMongoStore(connector)
	s.logger.Info("Initialization complete for BookStoreSuite")
}

// TearDownSuite releases the seeding client and the container.
func (s *BookStoreSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Disconnect(s.ctx)
	}
	if s.container != nil {
		if err := s.container.Terminate(s.ctx); err != nil {
			s.logger.Warn("failed to terminate MongoDB container", "error", err)
		}
	}
}

// SetupTest drops the collection (and with it every index) before each test.
func (s *BookStoreSuite) SetupTest() {
	require.NoError(s.T(), s.books().Drop(s.ctx), "Failed to drop books collection")
}

func (s *BookStoreSuite) books() *mongo.Collection {
	return s.client.Database(testDatabase).Collection(collectionName)
}

func (s *BookStoreSuite) seed(books ...Book) {
	s.T().Helper()
	if len(books) == 0 {
		return
	}
	docs := make([]any, len(books))
	for i := range books {
		docs[i] = books[i]
	}
	_, err := s.books().InsertMany(s.ctx, docs)
	require.NoError(s.T(), err, "seed failed")
}

// seedCatalog inserts the twelve-book catalog used by most tests.
func (s *BookStoreSuite) seedCatalog() {
	s.seed(
		Book{Title: "To Kill a Mockingbird", Author: "Harper Lee", Genre: "Fiction", PublishedYear: 1960, Price: 12.99, InStock: true},
		Book{Title: "1984", Author: "George Orwell", Genre: "Dystopian", PublishedYear: 1949, Price: 10.99, InStock: true},
		Book{Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", Genre: "Fiction", PublishedYear: 1925, Price: 9.99, InStock: true},
		Book{Title: "Brave New World", Author: "Aldous Huxley", Genre: "Dystopian", PublishedYear: 1932, Price: 11.5, InStock: false},
		Book{Title: "The Hobbit", Author: "J.R.R. Tolkien", Genre: "Fantasy", PublishedYear: 1937, Price: 14.99, InStock: true},
		Book{Title: "The Catcher in the Rye", Author: "J.D. Salinger", Genre: "Fiction", PublishedYear: 1951, Price: 8.99, InStock: true},
		Book{Title: "Pride and Prejudice", Author: "Jane Austen", Genre: "Romance", PublishedYear: 1813, Price: 7.99, InStock: true},
		Book{Title: "The Lord of the Rings", Author: "J.R.R. Tolkien", Genre: "Fantasy", PublishedYear: 1954, Price: 19.99, InStock: true},
		Book{Title: "Animal Farm", Author: "George Orwell", Genre: "Political Satire", PublishedYear: 1945, Price: 8.5, InStock: false},
		Book{Title: "The Alchemist", Author: "Paulo Coelho", Genre: "Fiction", PublishedYear: 1988, Price: 10.99, InStock: true},
		Book{Title: "The Midnight Library", Author: "Matt Haig", Genre: "Fiction", PublishedYear: 2020, Price: 15.99, InStock: true},
		Book{Title: "Project Hail Mary", Author: "Andy Weir", Genre: "Science Fiction", PublishedYear: 2021, Price: 18.5, InStock: false},
	)
}

func titlesOf(books []Book) []string {
	titles := make([]string, len(books))
	for i, b := range books {
		titles[i] = b.Title
	}
	return titles
}

func (s *BookStoreSuite) TestEmptyResults_DoNotFail() {
	genre, err := s.store.FindByGenre(s.ctx, "Poetry")
	s.Require().NoError(err)
	s.Empty(genre)
	s.NotNil(genre)

	after, err := s.store.FindPublishedAfter(s.ctx, 3000)
	s.Require().NoError(err)
	s.Empty(after)

	author, err := s.store.FindByAuthor(s.ctx, "Nobody")
	s.Require().NoError(err)
	s.Empty(author)

	top, err := s.store.MostPublishedAuthor(s.ctx)
	s.Require().NoError(err)
	s.Nil(top)

	averages, err := s.store.AveragePriceByGenre(s.ctx)
	s.Require().NoError(err)
	s.Empty(averages)
}

func (s *BookStoreSuite) TestLookups() {
	s.seedCatalog()

	fiction, err := s.store.FindByGenre(s.ctx, "Fiction")
	s.Require().NoError(err)
	s.Len(fiction, 5)

	after, err := s.store.FindPublishedAfter(s.ctx, 1988)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"The Midnight Library", "Project Hail Mary"}, titlesOf(after))

	fractional, err := s.store.FindPublishedAfter(s.ctx, 2020.5)
	s.Require().NoError(err)
	s.Equal([]string{"Project Hail Mary"}, titlesOf(fractional))

	orwell, err := s.store.FindByAuthor(s.ctx, "George Orwell")
	s.Require().NoError(err)
	s.ElementsMatch([]string{"1984", "Animal Farm"}, titlesOf(orwell))
	for _, b := range orwell {
		s.False(b.ID.IsZero(), "lookups return the full document")
	}
}

func (s *BookStoreSuite) TestUpdatePriceByTitle() {
	s.seedCatalog()

	res, err := s.store.UpdatePriceByTitle(s.ctx, "1984", 12.49)
	s.Require().NoError(err)
	s.Equal(int64(1), res.MatchedCount)
	s.Equal(int64(1), res.ModifiedCount)

	var updated Book
	s.Require().NoError(s.books().FindOne(s.ctx, bson.D{{"title", "1984"}}).Decode(&updated))
	s.Equal(12.49, updated.Price)
}

func (s *BookStoreSuite) TestUpdatePriceByTitle_NoMatchLeavesCollectionUnchanged() {
	s.seedCatalog()
	before, err := s.store.SortByPrice(s.ctx, Ascending)
	s.Require().NoError(err)

	res, err := s.store.UpdatePriceByTitle(s.ctx, "Not A Real Book", 1)
	s.Require().NoError(err)
	s.Equal(int64(0), res.MatchedCount)
	s.Equal(int64(0), res.ModifiedCount)

	after, err := s.store.SortByPrice(s.ctx, Ascending)
	s.Require().NoError(err)
	s.ElementsMatch(before, after)
}

func (s *BookStoreSuite) TestDeleteByTitle_Twice() {
	s.seedCatalog()

	first, err := s.store.DeleteByTitle(s.ctx, "The Hobbit")
	s.Require().NoError(err)
	s.Equal(int64(1), first.DeletedCount)

	second, err := s.store.DeleteByTitle(s.ctx, "The Hobbit")
	s.Require().NoError(err)
	s.Equal(int64(0), second.DeletedCount)

	count, err := s.books().CountDocuments(s.ctx, bson.D{})
	s.Require().NoError(err)
	s.Equal(int64(11), count)
}

func (s *BookStoreSuite) TestFindInStockAndRecent() {
	s.seedCatalog()

	books, err := s.store.FindInStockAndRecent(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(books, 1)
	s.Equal("The Midnight Library", books[0].Title)
	s.Equal(2020, books[0].PublishedYear)
	s.Empty(books[0].Genre, "genre is projected out")
}

func (s *BookStoreSuite) TestFindWithProjection() {
	s.seedCatalog()

	all, err := s.store.FindWithProjection(s.ctx, Filter{})
	s.Require().NoError(err)
	s.Len(all, 12)

	author := "J.R.R. Tolkien"
	minPrice := 15.0
	expensive, err := s.store.FindWithProjection(s.ctx, Filter{Author: &author, MinPrice: &minPrice})
	s.Require().NoError(err)
	s.Equal([]BookSummary{{Title: "The Lord of the Rings", Author: "J.R.R. Tolkien", Price: 19.99}}, expensive)
}

func (s *BookStoreSuite) TestSortByPrice() {
	s.seedCatalog()

	asc, err := s.store.SortByPrice(s.ctx, Ascending)
	s.Require().NoError(err)
	s.Require().Len(asc, 12)
	s.Equal("Pride and Prejudice", asc[0].Title)
	for i := 1; i < len(asc); i++ {
		s.LessOrEqual(asc[i-1].Price, asc[i].Price)
	}

	desc, err := s.store.SortByPrice(s.ctx, ParseSortOrder("desc"))
	s.Require().NoError(err)
	s.Equal("The Lord of the Rings", desc[0].Title)
}

func (s *BookStoreSuite) TestPaginate() {
	s.seedCatalog()

	first, err := s.store.Paginate(s.ctx, 1, 5)
	s.Require().NoError(err)
	s.Len(first.Books, 5)
	s.Equal(1, first.Page)
	s.Equal(3, first.TotalPages)
	s.Equal(int64(12), first.Total)
	s.Equal("1984", first.Books[0].Title, "pages are sorted by title")

	clamped, err := s.store.Paginate(s.ctx, 5, 5)
	s.Require().NoError(err)
	s.Equal(3, clamped.Page)
	s.Equal([]string{"The Midnight Library", "To Kill a Mockingbird"}, titlesOf(clamped.Books))
}

func (s *BookStoreSuite) TestPaginate_EmptyCollection() {
	page, err := s.store.Paginate(s.ctx, 1, 5)
	s.Require().NoError(err)
	s.Equal(0, page.Page)
	s.Equal(0, page.TotalPages)
	s.Equal(int64(0), page.Total)
	s.Empty(page.Books)
}

func (s *BookStoreSuite) TestPaginate_InvalidPageSize() {
	_, err := s.store.Paginate(s.ctx, 1, 0)
	s.True(errors.Is(err, bookerrors.ErrInvalidPageSize))
}

func (s *BookStoreSuite) TestAveragePriceByGenre() {
	s.seed(
		Book{Title: "A", Author: "X", Genre: "Fiction", PublishedYear: 2000, Price: 10},
		Book{Title: "B", Author: "Y", Genre: "Fiction", PublishedYear: 2001, Price: 20},
		Book{Title: "C", Author: "Z", Genre: "Non-Fiction", PublishedYear: 2002, Price: 30},
	)

	averages, err := s.store.AveragePriceByGenre(s.ctx)
	s.Require().NoError(err)
	s.Equal([]GenreAverage{
		{Genre: "Fiction", AveragePrice: 15, Count: 2},
		{Genre: "Non-Fiction", AveragePrice: 30, Count: 1},
	}, averages)
}

func (s *BookStoreSuite) TestMostPublishedAuthor() {
	s.seedCatalog()

	top, err := s.store.MostPublishedAuthor(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(top)
	// Orwell and Tolkien both have two books; the tie goes to the first name.
	s.Equal("George Orwell", top.Author)
	s.Equal(2, top.BookCount)
	s.ElementsMatch([]string{"1984", "Animal Farm"}, top.Titles)
}

func (s *BookStoreSuite) TestBooksByDecade() {
	s.seed(
		Book{Title: "Late Nineties", Author: "A", Genre: "Fiction", PublishedYear: 1995, Price: 1},
		Book{Title: "Early Nineties", Author: "B", Genre: "Fiction", PublishedYear: 1991, Price: 1},
		Book{Title: "Noughties", Author: "C", Genre: "Fiction", PublishedYear: 2003, Price: 1},
	)

	groups, err := s.store.BooksByDecade(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(groups, 2)

	s.Equal("1990s", groups[0].Decade)
	s.Equal(2, groups[0].Count)
	s.Equal([]DecadeBook{
		{Title: "Early Nineties", Year: 1991, Author: "B"},
		{Title: "Late Nineties", Year: 1995, Author: "A"},
	}, groups[0].Books)

	s.Equal("2000s", groups[1].Decade)
	s.Equal(1, groups[1].Count)
}

func (s *BookStoreSuite) TestBooksByDecade_ShortYears() {
	s.seed(Book{Title: "Ancient", Author: "A", Genre: "Epic", PublishedYear: 850, Price: 1})

	groups, err := s.store.BooksByDecade(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(groups, 1)
	s.Equal("850s", groups[0].Decade)
}

func (s *BookStoreSuite) TestBooksByDecade_MissingYear() {
	s.seed(Book{Title: "Dated", Author: "A", Genre: "Fiction", PublishedYear: 1995, Price: 1})
	_, err := s.books().InsertOne(s.ctx, bson.D{{"title", "Undated"}, {"author", "B"}, {"genre", "Fiction"}, {"price", 1}})
	s.Require().NoError(err)

	groups, err := s.store.BooksByDecade(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(groups, 2)

	s.Equal("1990s", groups[0].Decade)
	s.Equal("s", groups[1].Decade)
	s.Equal(1, groups[1].Count)
	s.Equal("Undated", groups[1].Books[0].Title)
}

func (s *BookStoreSuite) TestCreateIndexes_Idempotent() {
	s.seedCatalog()

	first, err := s.store.CreateIndexes(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{TitleIndex, AuthorYearIndex}, first.Created)

	second, err := s.store.CreateIndexes(s.ctx)
	s.Require().NoError(err)

	names := make([]string, 0, len(second.Indexes))
	for _, idx := range second.Indexes {
		names = append(names, idx.Name)
	}
	s.ElementsMatch([]string{"_id_", TitleIndex, AuthorYearIndex}, names)
	for _, idx := range second.Indexes {
		if idx.Name == AuthorYearIndex {
			assert.JSONEq(s.T(), `{"author":1,"published_year":-1}`, idx.KeyJSON)
		}
	}
}

func (s *BookStoreSuite) TestExplainQueries() {
	s.seedCatalog()
	_, err := s.store.CreateIndexes(s.ctx)
	s.Require().NoError(err)

	plans, err := s.store.ExplainQueries(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(plans, 3)

	s.Equal(TitleIndex, plans[0].IndexName)
	s.Equal(int64(1), plans[0].DocsExamined)
	s.Equal(AuthorYearIndex, plans[1].IndexName)
	s.True(plans[2].CollectionScan)
	s.Equal(int64(12), plans[2].DocsExamined)
}

func (s *BookStoreSuite) TestDropIndexes() {
	s.seedCatalog()
	_, err := s.store.CreateIndexes(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.store.DropIndexes(s.ctx))

	cursor, err := s.books().Indexes().List(s.ctx)
	s.Require().NoError(err)
	var indexes []IndexInfo
	s.Require().NoError(cursor.All(s.ctx, &indexes))
	s.Require().Len(indexes, 1)
	s.Equal("_id_", indexes[0].Name)
}
