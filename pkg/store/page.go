package store

// Page selects one page of a list query. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// DefaultPage is the first page of ten
var DefaultPage = Page{Number: 1, Size: 10}

func (p Page) normalized() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPage.Size
	}
	return p
}

// Limit is the SQL LIMIT for the page
func (p Page) Limit() int {
	return p.normalized().Size
}

// Offset is the SQL OFFSET for the page
func (p Page) Offset() int {
	n := p.normalized()
	return (n.Number - 1) * n.Size
}

// Pagination describes a page of results
type Pagination struct {
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
	TotalPages int `json:"totalPages"`
}

// Paginate builds the result metadata for total matching rows
func (p Page) Paginate(total int) Pagination {
	n := p.normalized()
	return Pagination{
		PageNumber: n.Number,
		PageSize:   n.Size,
		TotalCount: total,
		TotalPages: (total + n.Size - 1) / n.Size,
	}
}
