package pagination

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds validated one-based page/limit pagination parameters.
type Params struct {
	Page  int
	Limit int
}

// Offset returns the zero-based offset of the first record on the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pages returns the number of pages needed to cover total records.
func (p Params) Pages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

// HasNext reports whether results exist after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset()+p.Limit < total
}

// Slice returns the [start, end) bounds of the page within a sequence of n
// elements. A page past the end yields an empty range, never an error.
func (p Params) Slice(n int) (int, int) {
	start := p.Offset()
	if start > n {
		start = n
	}
	end := start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}
