package report

import (
	"strings"

	"github.com/genericrobot77/meds-job/internal/normalize"
)

// ProductType is a lexical classification of a product label.
type ProductType string

const (
	HerbalCombination      ProductType = "herbal_combination"
	MultivitaminSupplement ProductType = "multivitamin_supplement"
	CombinationProduct     ProductType = "combination_product"
	HerbalExtract          ProductType = "herbal_extract"
	BotanicalSingle        ProductType = "botanical_single"
	VitaminMineralSingle   ProductType = "vitamin_mineral_single"
	SingleSubstance        ProductType = "single_substance"
)

var (
	combinationMarkers = []string{"+", " & ", " and ", " with "}
	extractKeywords    = []string{"extract", "tincture", "herbal", "herb", "botanical", "essential oil"}
	botanicalKeywords  = []string{"leaf", "root", "flower", "seed", "bark", "berry", "rhizome"}
	vitaminKeywords    = []string{
		"vitamin", "multivitamin", "mineral", "calcium", "magnesium", "zinc",
		"iron", "folic acid", "selenium", "iodine", "potassium",
	}
)

// ClassifyProductType derives a product type from lexical patterns in label.
func ClassifyProductType(label string) ProductType {
	l := normalize.Label(label)

	combination := containsAny(l, combinationMarkers)
	extract := containsAny(l, extractKeywords)
	vitamin := containsAny(l, vitaminKeywords)

	switch {
	case combination && extract:
		return HerbalCombination
	case combination && vitamin:
		return MultivitaminSupplement
	case combination:
		return CombinationProduct
	case extract:
		return HerbalExtract
	case containsAny(l, botanicalKeywords):
		return BotanicalSingle
	case vitamin:
		return VitaminMineralSingle
	default:
		return SingleSubstance
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
