package catalog

import (
	"slices"
	"strings"

	"chocolata/internal/domain"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultPageSize is the number of products per catalog page
const DefaultPageSize = 12

// Page is one visible slice of the filtered, sorted catalog
type Page struct {
	Items      []domain.Product `json:"items"`
	TotalCount int              `json:"total_count"`
	TotalPages int              `json:"total_pages"`
	PageNumber int              `json:"page"`
	PageSize   int              `json:"page_size"`
}

// Engine evaluates catalog queries. Name sorting collates for the configured locale.
type Engine struct {
	locale language.Tag
}

// NewEngine creates an engine that collates names for locale
func NewEngine(locale language.Tag) *Engine {
	return &Engine{locale: locale}
}

// ComputeVisiblePage filters, sorts and slices products. It never mutates its input.
func (e *Engine) ComputeVisiblePage(products []domain.Product, q Query, pageSize int) Page {
	q = q.Normalize()
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	matched := Filter(products, q)
	e.Sort(matched, q.Sort)

	total := len(matched)
	totalPages := (total + pageSize - 1) / pageSize

	// compare pages before multiplying so a huge page number cannot overflow
	items := []domain.Product{}
	if q.Page <= totalPages {
		start := (q.Page - 1) * pageSize
		end := min(start+pageSize, total)
		items = matched[start:end]
	}

	return Page{
		Items:      items,
		TotalCount: total,
		TotalPages: totalPages,
		PageNumber: q.Page,
		PageSize:   pageSize,
	}
}

// Filter returns the products matching every active filter, in input order
func Filter(products []domain.Product, q Query) []domain.Product {
	q = q.Normalize()
	fold := cases.Fold()
	terms := strings.Fields(fold.String(q.Search))

	matched := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if len(terms) > 0 && !matchesAllTerms(fold.String(searchableText(p)), terms) {
			continue
		}
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if q.MinPrice != nil && p.Price.LessThan(*q.MinPrice) {
			continue
		}
		if q.MaxPrice != nil && p.Price.GreaterThan(*q.MaxPrice) {
			continue
		}
		matched = append(matched, p)
	}
	return matched
}

// Sort orders products in place. The sort is stable, so ties keep their input order.
func (e *Engine) Sort(products []domain.Product, key SortKey) {
	switch ParseSortKey(string(key)) {
	case SortPriceAsc:
		slices.SortStableFunc(products, func(a, b domain.Product) int {
			return a.Price.Cmp(b.Price)
		})
	case SortPriceDesc:
		slices.SortStableFunc(products, func(a, b domain.Product) int {
			return b.Price.Cmp(a.Price)
		})
	case SortNameAsc:
		c := collate.New(e.locale)
		slices.SortStableFunc(products, func(a, b domain.Product) int {
			return c.CompareString(a.Name, b.Name)
		})
	case SortNameDesc:
		c := collate.New(e.locale)
		slices.SortStableFunc(products, func(a, b domain.Product) int {
			return c.CompareString(b.Name, a.Name)
		})
	default:
		slices.SortStableFunc(products, func(a, b domain.Product) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	}
}

func searchableText(p domain.Product) string {
	return p.Name + " " + p.Description + " " + p.Category
}

func matchesAllTerms(text string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(text, term) {
			return false
		}
	}
	return true
}

var defaultEngine = NewEngine(language.English)

// ComputeVisiblePage evaluates q with English collation
func ComputeVisiblePage(products []domain.Product, q Query, pageSize int) Page {
	return defaultEngine.ComputeVisiblePage(products, q, pageSize)
}
