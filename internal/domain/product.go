package domain

// Category classifies products for warehouse sector assignment.
type Category string

// Known product categories.
const (
	CategoryFood        Category = "food"
	CategoryBeverage    Category = "beverage"
	CategoryHousehold   Category = "household"
	CategoryElectronics Category = "electronics"
	CategoryApparel     Category = "apparel"
	CategoryStationery  Category = "stationery"
	CategoryOther       Category = "other"
)

// AllCategories returns the fixed category enumeration.
func AllCategories() []Category {
	return []Category{
		CategoryFood,
		CategoryBeverage,
		CategoryHousehold,
		CategoryElectronics,
		CategoryApparel,
		CategoryStationery,
		CategoryOther,
	}
}

// IsValid reports whether the category is one of the known values.
func (c Category) IsValid() bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// Product is master data owned by the product service; this engine
// only reads it to resolve weight, stock floor and category.
type Product struct {
	ProductID     string   `bson:"_id" json:"productId"`
	Name          string   `bson:"name" json:"name"`
	WeightPerUnit float64  `bson:"weightPerUnit" json:"weightPerUnit"`
	MinimumStock  int      `bson:"minimumStock" json:"minimumStock"`
	Category      Category `bson:"category" json:"category"`
	IsDeleted     bool     `bson:"isDeleted" json:"isDeleted"`
}

// IsLive reports whether the product is available for placements.
func (p *Product) IsLive() bool {
	return p != nil && !p.IsDeleted
}
