package enums

import "strings"

// ProductSort orders catalog listings.
type ProductSort string

const (
	ProductSortNewest    ProductSort = "newest"
	ProductSortPriceLow  ProductSort = "price_low"
	ProductSortPriceHigh ProductSort = "price_high"
	ProductSortPopular   ProductSort = "popular"
)

// ParseProductSort returns the requested sort, falling back to newest for unknown input.
func ParseProductSort(value string) ProductSort {
	switch s := ProductSort(strings.ToLower(strings.TrimSpace(value))); s {
	case ProductSortPriceLow, ProductSortPriceHigh, ProductSortPopular:
		return s
	}
	return ProductSortNewest
}
