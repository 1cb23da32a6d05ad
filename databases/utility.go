package databases

import (
	"math"

	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoPaginate struct {
	limit int64
	page  int64
}

// newMongoPaginate treats pages as 1-based; anything below 1 means the first page
func newMongoPaginate(limit, page int) *mongoPaginate {
	if page < 1 {
		page = 1
	}
	return &mongoPaginate{
		limit: int64(limit),
		page:  int64(page),
	}
}

func (mp *mongoPaginate) getPaginatedOpts() *options.FindOptions {
	if mp.limit > 0 && mp.page-1 > math.MaxInt64/mp.limit {
		mp.page = math.MaxInt64/mp.limit + 1
	}
	skip := (mp.page - 1) * mp.limit
	return options.Find().SetLimit(mp.limit).SetSkip(skip)
}
