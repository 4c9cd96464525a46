package query

import (
	"strconv"
)

// Kind discriminates the query a Key identifies.
type Kind int

// Query kinds.
const (
	KindAllRecords Kind = iota + 1
	KindRecordByID
	KindCategoryList
	KindCategoryRecords
)

// String returns the metric and log label of the kind.
func (k Kind) String() string {
	switch k {
	case KindAllRecords:
		return "products"
	case KindRecordByID:
		return "product"
	case KindCategoryList:
		return "categories"
	case KindCategoryRecords:
		return "category_products"
	default:
		return "unknown"
	}
}

// Key identifies a cached query. Keys are comparable: equal keys share one
// cache slot, and the constructors below never produce equal keys for
// different queries.
type Key struct {
	Kind     Kind
	ID       int
	Category string
}

// AllRecords is the key of the full record list.
func AllRecords() Key {
	return Key{Kind: KindAllRecords}
}

// RecordByID is the key of a single record.
func RecordByID(id int) Key {
	return Key{Kind: KindRecordByID, ID: id}
}

// CategoryList is the key of the category names.
func CategoryList() Key {
	return Key{Kind: KindCategoryList}
}

// CategoryRecords is the key of the records of one category.
func CategoryRecords(category string) Key {
	return Key{Kind: KindCategoryRecords, Category: category}
}

// String returns the stable identity used for request deduplication.
func (k Key) String() string {
	switch k.Kind {
	case KindRecordByID:
		return k.Kind.String() + "/" + strconv.Itoa(k.ID)
	case KindCategoryRecords:
		return k.Kind.String() + "/" + strconv.Quote(k.Category)
	default:
		return k.Kind.String()
	}
}
