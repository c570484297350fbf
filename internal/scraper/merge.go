package scraper

import (
	"github.com/idus-tools/product-translator/internal/models"
)

// A DOM description must beat the structured one by this many bytes to win.
// Length correlates with completeness; a marginally longer candidate is not
// worth preferring over the race-free structured source.
const descriptionLengthMargin = 100

// MergeRecords reconciles the structured-data and DOM partials into one
// canonical record. The structured payload wins per field unless empty; the
// DOM value backs it up; the sentinel closes the gap so no field is ever
// empty.
func MergeRecords(url string, structured, dom Partial) *models.ProductRecord {
	record := models.NewProductRecord(url)

	record.Title = pickField(structured.Title, dom.Title, models.NoTitle)
	record.ArtistName = pickField(structured.ArtistName, dom.ArtistName, models.NoArtistName)
	record.Price = pickField(structured.Price, dom.Price, models.NoPrice)
	record.Description = pickDescription(structured.Description, dom.Description)

	record.Options = pickGroups(structured.Options, dom.Options)
	record.Images = pickImages(structured.Images, dom.Images)

	return record
}

func pickField(structured, dom, sentinel string) string {
	if structured != "" && !models.IsSentinel(structured) {
		return structured
	}
	if dom != "" && !models.IsSentinel(dom) {
		return dom
	}
	return sentinel
}

// pickDescription prefers whichever non-empty candidate is substantially
// longer instead of applying strict source precedence.
func pickDescription(structured, dom string) string {
	switch {
	case structured == "" && dom == "":
		return models.NoDescription
	case structured == "":
		return dom
	case dom == "":
		return structured
	case len(dom) > len(structured)+descriptionLengthMargin:
		return dom
	default:
		return structured
	}
}

func pickGroups(structured, dom []models.OptionGroup) []models.OptionGroup {
	if len(structured) > 0 {
		return structured
	}
	if len(dom) > 0 {
		return dom
	}
	return []models.OptionGroup{}
}

func pickImages(structured, dom []string) []string {
	if len(structured) > 0 {
		return structured
	}
	if len(dom) > 0 {
		return dom
	}
	return []string{}
}
