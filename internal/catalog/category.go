// internal/catalog/category.go
package catalog

import "strings"

type Category string

const (
	CategoryMen          Category = "Men"
	CategoryWomen        Category = "Women"
	CategoryOfficeTravel Category = "Office & Travel"
	CategoryAccessories  Category = "Accessories"
	CategoryGifting      Category = "Gifting"
)

// Categories w kolejności wyświetlania w panelu.
var Categories = []Category{
	CategoryMen,
	CategoryWomen,
	CategoryOfficeTravel,
	CategoryAccessories,
	CategoryGifting,
}

// tabela synonimów; klucze już znormalizowane (trim + lower)
var categorySynonyms = map[string]Category{
	"men":       CategoryMen,
	"mens":      CategoryMen,
	"men's":     CategoryMen,
	"man":       CategoryMen,
	"male":      CategoryMen,
	"gentlemen": CategoryMen,
	"for him":   CategoryMen,

	"women":   CategoryWomen,
	"womens":  CategoryWomen,
	"women's": CategoryWomen,
	"woman":   CategoryWomen,
	"ladies":  CategoryWomen,
	"lady":    CategoryWomen,
	"female":  CategoryWomen,
	"for her": CategoryWomen,

	"office & travel":   CategoryOfficeTravel,
	"office and travel": CategoryOfficeTravel,
	"office":            CategoryOfficeTravel,
	"travel":            CategoryOfficeTravel,
	"luggage":           CategoryOfficeTravel,
	"briefcase":         CategoryOfficeTravel,
	"briefcases":        CategoryOfficeTravel,
	"laptop bag":        CategoryOfficeTravel,
	"laptop bags":       CategoryOfficeTravel,
	"duffel":            CategoryOfficeTravel,
	"duffle":            CategoryOfficeTravel,

	"accessories": CategoryAccessories,
	"accessory":   CategoryAccessories,
	"wallet":      CategoryAccessories,
	"wallets":     CategoryAccessories,
	"belt":        CategoryAccessories,
	"belts":       CategoryAccessories,

	"gifting":   CategoryGifting,
	"gift":      CategoryGifting,
	"gifts":     CategoryGifting,
	"gift set":  CategoryGifting,
	"gift sets": CategoryGifting,
	"gift card": CategoryGifting,
}

// LookupCategory robi wyłącznie dokładne dopasowanie (bez podciągów).
func LookupCategory(s string) (Category, bool) {
	c, ok := categorySynonyms[strings.ToLower(strings.TrimSpace(s))]
	return c, ok
}

// NormalizeCategory zawsze zwraca jedną z pięciu kategorii; brak dopasowania -> Accessories.
func NormalizeCategory(s string) Category {
	if c, ok := LookupCategory(s); ok {
		return c
	}
	return CategoryAccessories
}
