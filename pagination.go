package users

import "context"

// Page is one window over an ordered user listing, along with the counters
// the templates need to render navigation.
type Page struct {
	Items    []*User
	Page     int
	PageSize int
	Total    int
}

// Pages returns the total number of pages, rounding up
func (p Page) Pages() int {
	if p.PageSize < 1 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// Start is the one based index of the first item on this page
func (p Page) Start() int {
	return (p.Page-1)*p.PageSize + 1
}

// End is the one based index of the last item on this page
func (p Page) End() int {
	end := p.Page * p.PageSize
	if end > p.Total {
		end = p.Total
	}
	return end
}

// HasPrevious reports whether a previous page exists
func (p Page) HasPrevious() bool {
	return p.Page > 1
}

// HasNext reports whether a next page exists
func (p Page) HasNext() bool {
	return p.Page < p.Pages()
}

// PreviousPage returns the previous page number, clamped at 1
func (p Page) PreviousPage() int {
	if p.HasPrevious() {
		return p.Page - 1
	}
	return 1
}

// NextPage returns the next page number, clamped at the last page
func (p Page) NextPage() int {
	if p.HasNext() {
		return p.Page + 1
	}
	return p.Page
}

// Paginator turns page/page-size requests into store queries. The store's
// id tiebreak guarantees sequential pages partition the filtered set.
type Paginator struct {
	store UserStore
}

// NewPaginator creates a paginator over the given store
func NewPaginator(store UserStore) *Paginator {
	return &Paginator{store: store}
}

// GetPage fetches one page of users. A page or size below 1 yields an empty
// page with the total still populated, so callers can render "no results"
// alongside the real count.
func (p *Paginator) GetPage(ctx context.Context, filter *UserFilter, page, pageSize int, orderBy string, asc bool) (*Page, error) {
	total, err := p.store.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := &Page{
		Items:    []*User{},
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}

	if page < 1 || pageSize < 1 {
		return out, nil
	}

	items, err := p.store.List(ctx, filter, ListOptions{
		Skip:    (page - 1) * pageSize,
		Limit:   pageSize,
		OrderBy: orderBy,
		Asc:     asc,
	})
	if err != nil {
		return nil, err
	}

	out.Items = items
	return out, nil
}
