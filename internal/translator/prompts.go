package translator

import (
	"fmt"
	"strings"

	"github.com/idus-tools/product-translator/internal/models"
)

// TextKind selects the instruction template. Short title-style text,
// long-form descriptions and option labels each get their own framing.
type TextKind int

const (
	KindTitle TextKind = iota
	KindDescription
	KindOption
	KindGeneric
)

const ocrInstruction = "이 이미지에서 한국어 텍스트만 추출해주세요. 텍스트가 없으면 NO_TEXT만 응답하세요."

// noTextSentinel is the model's explicit "image carries no text" reply.
const noTextSentinel = "NO_TEXT"

func localeName(locale models.Locale) string {
	switch locale {
	case models.LocaleJapanese:
		return "Japanese"
	default:
		return "English"
	}
}

// buildPrompt composes the locale- and kind-specific instruction around the
// source text.
func buildPrompt(kind TextKind, locale models.Locale, text string) string {
	lang := localeName(locale)

	switch kind {
	case KindTitle:
		return fmt.Sprintf(`Translate this Korean handmade product title to %s.
Keep it short and natural for a marketplace listing. Output only the translation, nothing else.

Korean: %s

%s:`, lang, text, lang)

	case KindOption:
		return fmt.Sprintf(`Translate this Korean product option label to %s.
Output only the translation, nothing else.

Korean: %s

%s:`, lang, text, lang)

	case KindDescription:
		return descriptionPrompt(locale) + "\n\nKorean source:\n" + text

	default:
		return fmt.Sprintf(`Translate this Korean text to %s. Output only the translation, nothing else.

Korean: %s

%s:`, lang, text, lang)
	}
}

// descriptionPrompt carries the long-form guidelines for listing copy on the
// global marketplace: sellers are "artists", Korea-specific commerce details
// are dropped rather than translated.
func descriptionPrompt(locale models.Locale) string {
	if locale == models.LocaleJapanese {
		return `You are an online seller creating a product description to list a handmade product on idus (아이디어스, アイディアス), the largest handmade marketplace in Asia.
Translate the Korean product description into Japanese.

Guidelines:
- Use a friendly, warm tone matching the original. Keep emojis from the source.
- Sellers are "artists" (작가 → 作家); products are ハンドメイド作品 or 作品, never 商品.
- Use [作家紹介] for the seller introduction section when the artist is identifiable; omit it otherwise.
- Exclude Korea-specific content: Korean holidays and seasonal events, prices in won (₩, 원 → "追加料金"), shipping details (배송기간, 무료배송, 배송비, 택배사), exchange/refund policies, discount promotions (팔로우 쿠폰, 적립금, 타임딜). Replace percentage discounts with "特別割引".
- Include the production lead time (제작 소요 기간) but not the shipping lead time.
- Do not invent content beyond the source text.`
	}

	return `You are an online seller creating a product description for idus (아이디어스), the largest handmade marketplace in Asia. Sellers are called "artists" on this platform.
Translate the Korean product description into English using sections like [About the Artist], [Item Description], [How to Use], [Item Details], [Shipping Information], skipping sections with no relevant source content.

Guidelines:
- Include all product features, materials, craftsmanship details, care instructions, symbolic meanings and emojis from the original.
- Exclude Korea-specific content: Korean holidays (추석, 설날), prices in won (₩, 원 → "additional charges"), shipping details (배송기간, 무료배송, 배송비, 택배사), exchange/refund policies, discount promotions (팔로우 쿠폰, 적립금, 타임딜). Replace percentage discounts with "Special Discount".
- Do not invent information that does not exist in the source text.`
}

// cleanResult strips echo prefixes the model sometimes prepends.
func cleanResult(result string, locale models.Locale) string {
	result = strings.TrimSpace(result)
	for _, prefix := range []string{localeName(locale) + ":", "Translation:", "번역:"} {
		if strings.HasPrefix(result, prefix) {
			result = strings.TrimSpace(strings.TrimPrefix(result, prefix))
		}
	}
	return result
}
