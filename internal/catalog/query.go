// Package catalog filters, sorts and paginates the product list against a URL-backed query.
package catalog

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// SortKey orders the visible products
type SortKey string

const (
	SortNewest    SortKey = "newest"
	SortPriceAsc  SortKey = "price_asc"
	SortPriceDesc SortKey = "price_desc"
	SortNameAsc   SortKey = "name_asc"
	SortNameDesc  SortKey = "name_desc"
)

// URL query parameter names
const (
	ParamSearch   = "search"
	ParamCategory = "category"
	ParamMinPrice = "minPrice"
	ParamMaxPrice = "maxPrice"
	ParamSort     = "sort"
	ParamPage     = "page"
)

// AllCategories is the selector value meaning "no category filter"
const AllCategories = "all"

// ParseSortKey returns the key, or SortNewest for anything unrecognised
func ParseSortKey(s string) SortKey {
	switch SortKey(s) {
	case SortPriceAsc, SortPriceDesc, SortNameAsc, SortNameDesc:
		return SortKey(s)
	default:
		return SortNewest
	}
}

// Query is the catalog view state. It is rebuilt from the URL alone.
type Query struct {
	Search   string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     SortKey
	Page     int
}

// DefaultQuery shows everything, newest first, on page one
func DefaultQuery() Query {
	return Query{Sort: SortNewest, Page: 1}
}

// ParseQuery reads the state from URL values. Malformed prices are treated as absent,
// a malformed page as page one and an unknown sort as newest.
func ParseQuery(values url.Values) Query {
	q := Query{
		Search:   values.Get(ParamSearch),
		Category: values.Get(ParamCategory),
		MinPrice: parsePrice(values.Get(ParamMinPrice)),
		MaxPrice: parsePrice(values.Get(ParamMaxPrice)),
		Sort:     ParseSortKey(values.Get(ParamSort)),
		Page:     parsePage(values.Get(ParamPage)),
	}
	return q.Normalize()
}

// ParseRawQuery parses an encoded query string; undecodable input yields the default query
func ParseRawQuery(raw string) Query {
	values, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return DefaultQuery()
	}
	return ParseQuery(values)
}

// Normalize puts the query in canonical form
func (q Query) Normalize() Query {
	q.Search = strings.TrimSpace(q.Search)
	q.Category = strings.TrimSpace(q.Category)
	if strings.EqualFold(q.Category, AllCategories) {
		q.Category = ""
	}
	q.Sort = ParseSortKey(string(q.Sort))
	if q.Page < 1 {
		q.Page = 1
	}
	return q
}

// Values serializes the query, leaving out every default
func (q Query) Values() url.Values {
	q = q.Normalize()
	values := url.Values{}
	if q.Search != "" {
		values.Set(ParamSearch, q.Search)
	}
	if q.Category != "" {
		values.Set(ParamCategory, q.Category)
	}
	if q.MinPrice != nil {
		values.Set(ParamMinPrice, q.MinPrice.String())
	}
	if q.MaxPrice != nil {
		values.Set(ParamMaxPrice, q.MaxPrice.String())
	}
	if q.Sort != SortNewest {
		values.Set(ParamSort, string(q.Sort))
	}
	if q.Page > 1 {
		values.Set(ParamPage, strconv.Itoa(q.Page))
	}
	return values
}

// Encode returns the canonical URL query string
func (q Query) Encode() string {
	return q.Values().Encode()
}

// Equal compares two queries in canonical form
func (q Query) Equal(other Query) bool {
	a, b := q.Normalize(), other.Normalize()
	return a.Search == b.Search &&
		a.Category == b.Category &&
		equalPrice(a.MinPrice, b.MinPrice) &&
		equalPrice(a.MaxPrice, b.MaxPrice) &&
		a.Sort == b.Sort &&
		a.Page == b.Page
}

// HasActiveFilters reports whether any filter (not sort or page) narrows the list
func (q Query) HasActiveFilters() bool {
	q = q.Normalize()
	return q.Search != "" || q.Category != "" || q.MinPrice != nil || q.MaxPrice != nil
}

// WithSearch changes the free-text filter and returns to page one
func (q Query) WithSearch(search string) Query {
	q.Search = search
	q.Page = 1
	return q.Normalize()
}

// WithCategory changes the category filter and returns to page one
func (q Query) WithCategory(category string) Query {
	q.Category = category
	q.Page = 1
	return q.Normalize()
}

// WithPriceRange changes either price bound and returns to page one
func (q Query) WithPriceRange(minPrice, maxPrice *decimal.Decimal) Query {
	q.MinPrice = minPrice
	q.MaxPrice = maxPrice
	q.Page = 1
	return q.Normalize()
}

// WithSort changes the ordering and keeps the page
func (q Query) WithSort(sort SortKey) Query {
	q.Sort = sort
	return q.Normalize()
}

// WithPage moves to another page
func (q Query) WithPage(page int) Query {
	q.Page = page
	return q.Normalize()
}

// Cleared drops every filter and the sort
func (q Query) Cleared() Query {
	return DefaultQuery()
}

// Set applies a single URL-parameter style change. The parameter "clear" resets the query.
// Unknown parameters leave the query unchanged.
func (q Query) Set(param, value string) Query {
	switch param {
	case ParamSearch:
		return q.WithSearch(value)
	case ParamCategory:
		return q.WithCategory(value)
	case ParamMinPrice:
		return q.WithPriceRange(parsePrice(value), q.MaxPrice)
	case ParamMaxPrice:
		return q.WithPriceRange(q.MinPrice, parsePrice(value))
	case ParamSort:
		return q.WithSort(ParseSortKey(value))
	case ParamPage:
		return q.WithPage(parsePage(value))
	case "clear":
		return q.Cleared()
	default:
		return q.Normalize()
	}
}

func parsePrice(raw string) *decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return &d
}

func parsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func equalPrice(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
