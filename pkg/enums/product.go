package enums

// ProductCondition describes the item being sold and doubles as a catalog filter.
type ProductCondition string

const (
	ProductConditionNew         ProductCondition = "new"
	ProductConditionUsed        ProductCondition = "used"
	ProductConditionRefurbished ProductCondition = "refurbished"
)

var productConditions = values[ProductCondition]{
	ProductConditionNew,
	ProductConditionUsed,
	ProductConditionRefurbished,
}

// ProductConditions returns a copy in filter display order.
func ProductConditions() []ProductCondition {
	return productConditions.list()
}

func (c ProductCondition) String() string { return string(c) }

func (c ProductCondition) IsValid() bool { return productConditions.contains(c) }

// ParseProductCondition ignores case and surrounding space.
func ParseProductCondition(value string) (ProductCondition, error) {
	return productConditions.parse("product condition", value)
}
