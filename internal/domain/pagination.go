package domain

// Registration lists are read at the door and in review queues, so pages are
// larger than a typical API default.
const (
	DefaultRegistrationPageSize = 50
	MaxRegistrationPageSize     = 200
)

// PaginationParams selects one page of a registration list.
// A zero PageSize means the whole list.
type PaginationParams struct {
	Page     int
	PageSize int
}

// Paged reports whether the caller asked for a single page.
func (p PaginationParams) Paged() bool {
	return p.PageSize > 0
}

// Offset returns the 0-based row offset of the page.
func (p PaginationParams) Offset() int {
	if p.Page < 1 || p.PageSize < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}
