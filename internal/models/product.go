package models

// Sentinel values used when a field cannot be extracted. The record contract
// guarantees non-empty strings, never null.
const (
	NoTitle       = "제목 없음"
	NoArtistName  = "작가명 없음"
	NoPrice       = "가격 정보 없음"
	NoDescription = "설명 없음"
)

// Locale is a translation target from the closed supported set.
type Locale string

const (
	LocaleEnglish  Locale = "en"
	LocaleJapanese Locale = "ja"
)

// Valid reports whether l is one of the supported target locales.
func (l Locale) Valid() bool {
	return l == LocaleEnglish || l == LocaleJapanese
}

// OptionGroup is one selectable product option with its values.
// Values are unique and keep first-seen order.
type OptionGroup struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// ImageText is text recovered from a detail image. OrderIndex is the
// position of the source image in the canonical image list so consumers can
// reconstruct reading order.
type ImageText struct {
	ImageURL       string `json:"imageUrl"`
	OriginalText   string `json:"originalText"`
	TranslatedText string `json:"translatedText"`
	OrderIndex     int    `json:"orderIndex"`
}

// ProductRecord is the canonical extraction result for one product page.
type ProductRecord struct {
	URL         string        `json:"url"`
	Title       string        `json:"title"`
	ArtistName  string        `json:"artistName"`
	Price       string        `json:"price"`
	Description string        `json:"description"`
	Options     []OptionGroup `json:"options"`
	Images      []string      `json:"images"`
	ImageTexts  []ImageText   `json:"imageTexts"`
}

// NewProductRecord returns a record for url with every text field set to its
// sentinel and empty (non-nil) collections.
func NewProductRecord(url string) *ProductRecord {
	return &ProductRecord{
		URL:         url,
		Title:       NoTitle,
		ArtistName:  NoArtistName,
		Price:       NoPrice,
		Description: NoDescription,
		Options:     []OptionGroup{},
		Images:      []string{},
		ImageTexts:  []ImageText{},
	}
}

// IsSentinel reports whether s is one of the not-found placeholders.
func IsSentinel(s string) bool {
	switch s {
	case NoTitle, NoArtistName, NoPrice, NoDescription:
		return true
	}
	return false
}

// TranslatedProductRecord wraps the original record with translated fields.
// It is created once by the translation orchestrator and never mutated.
type TranslatedProductRecord struct {
	Original              ProductRecord `json:"original"`
	TranslatedTitle       string        `json:"translatedTitle"`
	TranslatedDescription string        `json:"translatedDescription"`
	TranslatedOptions     []OptionGroup `json:"translatedOptions"`
	TranslatedImageTexts  []ImageText   `json:"translatedImageTexts"`
	TargetLocale          Locale        `json:"targetLocale"`
}
