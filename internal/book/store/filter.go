package store

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Filter is a typed book query. Nil fields are ignored; the zero Filter matches every book.
type Filter struct {
	Title           *string  `json:"title,omitempty" validate:"omitempty,min=1"`
	Author          *string  `json:"author,omitempty" validate:"omitempty,min=1"`
	Genre           *string  `json:"genre,omitempty" validate:"omitempty,min=1"`
	PublishedAfter  *int     `json:"publishedAfter,omitempty"`
	PublishedBefore *int     `json:"publishedBefore,omitempty"`
	InStock         *bool    `json:"inStock,omitempty"`
	MinPrice        *float64 `json:"minPrice,omitempty" validate:"omitempty,gte=0"`
	MaxPrice        *float64 `json:"maxPrice,omitempty" validate:"omitempty,gte=0"`
}

// Document converts the filter to a MongoDB query document.
func (f Filter) Document() bson.D {
	doc := bson.D{}
	if f.Title != nil {
		doc = append(doc, bson.E{Key: "title", Value: *f.Title})
	}
	if f.Author != nil {
		doc = append(doc, bson.E{Key: "author", Value: *f.Author})
	}
	if f.Genre != nil {
		doc = append(doc, bson.E{Key: "genre", Value: *f.Genre})
	}
	if year := rangeOf("$gt", f.PublishedAfter, "$lt", f.PublishedBefore); year != nil {
		doc = append(doc, bson.E{Key: "published_year", Value: year})
	}
	if f.InStock != nil {
		doc = append(doc, bson.E{Key: "in_stock", Value: *f.InStock})
	}
	if price := rangeOf("$gte", f.MinPrice, "$lte", f.MaxPrice); price != nil {
		doc = append(doc, bson.E{Key: "price", Value: price})
	}
	return doc
}

func rangeOf[T int | float64](lowerOp string, lower *T, upperOp string, upper *T) bson.D {
	var r bson.D
	if lower != nil {
		r = append(r, bson.E{Key: lowerOp, Value: *lower})
	}
	if upper != nil {
		r = append(r, bson.E{Key: upperOp, Value: *upper})
	}
	return r
}

// SortOrder is the direction of a price sort.
type SortOrder int

const (
	Ascending  SortOrder = 1
	Descending SortOrder = -1
)

// ParseSortOrder maps "desc" to Descending; any other value, including "", is Ascending.
func ParseSortOrder(order string) SortOrder {
	if order == "desc" {
		return Descending
	}
	return Ascending
}

func (o SortOrder) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}
