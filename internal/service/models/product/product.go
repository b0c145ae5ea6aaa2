package product

import "fmt"

// Product is the authoritative catalog record for a product id.
type Product struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
}

// CatalogError reports that product validation failed: either the catalog
// call itself failed or some of the requested ids are unknown. The
// orchestrator must never proceed with partial catalog data.
type CatalogError struct {
	ProductIDs []int64
	Err        error
}

func (e *CatalogError) Error() string {
	if len(e.ProductIDs) > 0 {
		return fmt.Sprintf("catalog validation failed for products %v: %v", e.ProductIDs, e.Err)
	}

	return fmt.Sprintf("catalog validation failed: %v", e.Err)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}
