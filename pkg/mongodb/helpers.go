package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Now returns the current time in UTC truncated to millisecond precision,
// which is what BSON dates can hold
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// SortAscending creates an ascending sort option
func SortAscending(field string) bson.D {
	return bson.D{{Key: field, Value: 1}}
}

// SortDescending creates a descending sort option
func SortDescending(field string) bson.D {
	return bson.D{{Key: field, Value: -1}}
}

// Pagination represents limit/offset paging
type Pagination struct {
	Limit  int64
	Offset int64
}

// NewPagination clamps limit to [1, 500], defaulting to 50
func NewPagination(limit, offset int) Pagination {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return Pagination{Limit: int64(limit), Offset: int64(offset)}
}

// FindOptions converts the pagination into driver options sorted by the given key
func (p Pagination) FindOptions(sort bson.D) *options.FindOptions {
	return options.Find().SetLimit(p.Limit).SetSkip(p.Offset).SetSort(sort)
}
