package order

// Query represents filter and pagination parameters for listing orders.
// Page is 1-indexed.
type Query struct {
	Status *Status `json:"status,omitempty"`
	Page   int     `json:"page,omitempty"`
	Limit  int     `json:"limit,omitempty"`
}

// PageMeta describes the pagination metadata returned alongside a listing.
type PageMeta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	LastPage int   `json:"lastPage"`
}

// NewPageMeta computes pagination metadata for a 1-indexed page.
func NewPageMeta(total int64, page, limit int) PageMeta {
	lastPage := int((total + int64(limit) - 1) / int64(limit))

	return PageMeta{
		Total:    total,
		Page:     page,
		LastPage: lastPage,
	}
}
