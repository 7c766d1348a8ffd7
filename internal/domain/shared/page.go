package shared

// Paginated is one page of a listing plus the totals a client needs to page on
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated wraps items. TotalPages rounds up; a non-positive pageSize counts as 1.
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	size := int64(max(pageSize, 1))
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   int(size),
		TotalPages: int((total + size - 1) / size),
	}
}
