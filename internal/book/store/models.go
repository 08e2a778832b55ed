package store

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Book represents a book document in the books collection.
type Book struct {
	ID            bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Title         string        `bson:"title" json:"title"`
	Author        string        `bson:"author" json:"author"`
	Genre         string        `bson:"genre" json:"genre,omitempty"`
	PublishedYear int           `bson:"published_year" json:"published_year,omitempty"`
	Price         float64       `bson:"price" json:"price"`
	InStock       bool          `bson:"in_stock" json:"in_stock"`
}

// BookSummary is the title/author/price projection without the document id.
type BookSummary struct {
	Title  string  `bson:"title" json:"title"`
	Author string  `bson:"author" json:"author"`
	Price  float64 `bson:"price" json:"price"`
}

// UpdateResult reports how many documents a single-document update touched.
type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// DeleteResult reports how many documents a single-document delete removed.
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// Page is one title-sorted window of the collection.
type Page struct {
	Books      []Book `json:"books"`
	Page       int    `json:"page"`
	PerPage    int    `json:"perPage"`
	TotalPages int    `json:"totalPages"`
	Total      int64  `json:"total"`
}

// GenreAverage is one group of the average-price-by-genre pipeline.
type GenreAverage struct {
	Genre        string  `bson:"_id" json:"_id"`
	AveragePrice float64 `bson:"averagePrice" json:"averagePrice"`
	Count        int     `bson:"count" json:"count"`
}

// AuthorCount is one group of the books-per-author pipeline.
type AuthorCount struct {
	Author    string   `bson:"_id" json:"_id"`
	BookCount int      `bson:"bookCount" json:"bookCount"`
	Titles    []string `bson:"titles" json:"titles"`
}

// DecadeBook is the per-book detail collected into a decade group.
type DecadeBook struct {
	Title  string `bson:"title" json:"title"`
	Year   int    `bson:"year" json:"year"`
	Author string `bson:"author" json:"author"`
}

// DecadeGroup is one group of the books-by-decade pipeline, labelled like "1990s".
type DecadeGroup struct {
	Decade string       `bson:"_id" json:"_id"`
	Count  int          `bson:"count" json:"count"`
	Books  []DecadeBook `bson:"books" json:"books"`
}

// IndexInfo describes an index as returned by listIndexes.
type IndexInfo struct {
	Name string `bson:"name" json:"name"`
	Key  bson.D `bson:"key" json:"-"`
	// KeyJSON is Key rendered as relaxed extended JSON, e.g. {"title":1}.
	KeyJSON string `bson:"-" json:"key"`
}

// IndexReport is the outcome of CreateIndexes.
type IndexReport struct {
	Created []string    `json:"created"`
	Indexes []IndexInfo `json:"indexes"`
}

// QueryPlan summarizes the executionStats explain output of one query.
type QueryPlan struct {
	Label               string `json:"label"`
	DocsExamined        int64  `json:"docsExamined"`
	IndexName           string `json:"indexName,omitempty"`
	CollectionScan      bool   `json:"collectionScan"`
	ExecutionTimeMillis int64  `json:"executionTimeMillis"`
}
