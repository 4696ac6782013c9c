package domain

// Page selects a slice of a sorted listing. A zero PerPage means everything.
type Page struct {
	Page    int
	PerPage int
}

// Offset is the number of rows to skip.
func (p Page) Offset() int {
	if p.Page <= 1 || p.PerPage <= 0 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// Bounds clamps [Offset, Offset+PerPage) to n rows.
func (p Page) Bounds(n int) (start, end int) {
	start = p.Offset()
	if start > n {
		start = n
	}
	end = n
	if p.PerPage > 0 && start+p.PerPage < n {
		end = start + p.PerPage
	}
	return start, end
}
