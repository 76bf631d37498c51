package product

import (
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// ProductListFilters describe the supported filter knobs for the browse endpoint.
type ProductListFilters struct {
	Query         string                 `json:"search,omitempty"`
	Category      string                 `json:"category,omitempty"`
	Condition     enums.ProductCondition `json:"condition,omitempty"`
	PriceMinCents *int64                 `json:"min_price_cents,omitempty"`
	PriceMaxCents *int64                 `json:"max_price_cents,omitempty"`
	Sort          enums.ProductSort      `json:"sort"`
}

// ListProductsInput captures the inputs needed to filter and paginate the catalog.
type ListProductsInput struct {
	Filters    ProductListFilters
	Pagination pagination.Params
}
