package models

// Pagination is the paging block attached to list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NewPagination clamps the requested window the same way the repositories do,
// so the reported page matches what was actually queried.
func NewPagination(page, size, total int) *Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return &Pagination{Page: page, PageSize: size, TotalCount: total}
}
