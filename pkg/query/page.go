package query

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is one window over a filtered and sorted sequence.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// TotalPages returns ceil(total/size), never less than 1.
func TotalPages(total, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	pages := (total + size - 1) / size
	if pages < 1 {
		return 1
	}
	return pages
}

// ClampPage keeps page inside [1, totalPages].
func ClampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// Paginate slices items[(page-1)*size : page*size] after clamping page.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	total := len(items)
	pages := TotalPages(total, size)
	page = ClampPage(page, pages)

	start := (page - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	window := make([]T, end-start)
	copy(window, items[start:end])

	return Page[T]{
		Items:      window,
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: pages,
	}
}

// View is the list state a dashboard holds: filters, sort and page window.
// Its setters are pure; they return a new View.
type View[F any] struct {
	Filters  F    `json:"filters"`
	Sort     Sort `json:"sort"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
}

// NewView returns a view on page 1 with the default page size.
func NewView[F any](filters F, sort Sort) View[F] {
	return View[F]{Filters: filters, Sort: sort, Page: 1, PageSize: DefaultPageSize}
}

// WithFilters replaces the filters and returns to page 1.
func (v View[F]) WithFilters(filters F) View[F] {
	v.Filters = filters
	v.Page = 1
	return v
}

// WithSort replaces the sort and returns to page 1.
func (v View[F]) WithSort(s Sort) View[F] {
	v.Sort = s
	v.Page = 1
	return v
}

// WithPageSize changes the page size and returns to page 1.
func (v View[F]) WithPageSize(size int) View[F] {
	v.PageSize = size
	v.Page = 1
	return v
}

// WithPage moves to page.
func (v View[F]) WithPage(page int) View[F] {
	v.Page = page
	return v
}

// Run derives the visible page: filter, stable sort, paginate. items is
// not modified.
func Run[T any, F any](items []T, v View[F], filter *Filter[T], fields Fields[T]) Page[T] {
	matched := filter.Apply(items)
	SortStable(matched, v.Sort, fields)
	return Paginate(matched, v.Page, v.PageSize)
}
