package menu

// Page is one slice of a result list plus what navigation it allows.
type Page[T any] struct {
	Items      []T
	Page       int
	TotalPages int
	HasPrev    bool
	HasNext    bool
}

// Paginate slices items into pages of size and returns the requested page,
// clamped into [0, TotalPages-1]. TotalPages is at least 1 so an empty list
// still renders a single empty page.
func Paginate[T any](items []T, size int, requested int) Page[T] {
	if size <= 0 {
		size = 1
	}
	total := (len(items) + size - 1) / size
	if total < 1 {
		total = 1
	}
	page := requested
	if page > total-1 {
		page = total - 1
	}
	if page < 0 {
		page = 0
	}
	start := page * size
	end := start + size
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	return Page[T]{
		Items:      items[start:end:end],
		Page:       page,
		TotalPages: total,
		HasPrev:    page > 0,
		HasNext:    page < total-1,
	}
}
