package scraper

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

const (
	titleSuffix = " | 아이디어스"

	descriptionMinLen = 100
	descriptionMaxLen = 6000
)

var (
	priceTextPattern     = regexp.MustCompile(`[\d,]{3,}\s*원`)
	fullTextPricePattern = regexp.MustCompile(`[\d,]{4,}\s*원`)

	artistExcludeKeywords = []string{"바로가기", "작가홈", "홈", "샵", "전체보기"}
	descriptionNoise      = []string{"로그인", "장바구니", "회원가입"}
)

// fieldStrategy is one attempt at extracting a field. Strategies for a field
// are tried in order; the first validated non-empty result wins.
type fieldStrategy struct {
	name    string
	attempt func(page playwright.Page) (string, error)
}

// domExtractor pulls field candidates out of the rendered DOM. Every miss is
// non-fatal: the field stays empty and merge falls back to the sentinel.
type domExtractor struct {
	clickSettle time.Duration
	logger      *slog.Logger
}

func newDOMExtractor(clickSettle time.Duration, logger *slog.Logger) *domExtractor {
	return &domExtractor{
		clickSettle: clickSettle,
		logger:      logger.With("extractor", "dom"),
	}
}

func (e *domExtractor) Extract(page playwright.Page) Partial {
	return Partial{
		Title:       e.first(page, e.titleStrategies(), func(s string) bool { return lengthBetween(s, 3, 200) }),
		ArtistName:  e.first(page, e.artistStrategies(), func(s string) bool { return lengthBetween(s, 2, 30) }),
		Price:       e.first(page, e.priceStrategies(), func(s string) bool { return s != "" }),
		Description: e.first(page, e.descriptionStrategies(), func(s string) bool { return len([]rune(s)) >= descriptionMinLen }),
	}
}

func (e *domExtractor) first(page playwright.Page, strategies []fieldStrategy, valid func(string) bool) string {
	for _, st := range strategies {
		value, err := st.attempt(page)
		if err != nil {
			e.logger.Debug("strategy failed", "strategy", st.name, "error", err)
			continue
		}
		value = strings.TrimSpace(value)
		if value != "" && valid(value) {
			return value
		}
	}
	return ""
}

func (e *domExtractor) titleStrategies() []fieldStrategy {
	return []fieldStrategy{
		{
			name: "page-title",
			attempt: func(page playwright.Page) (string, error) {
				title, err := page.Title()
				if err != nil {
					return "", err
				}
				return CleanTitle(title), nil
			},
		},
		{
			name: "primary-heading",
			attempt: func(page playwright.Page) (string, error) {
				return evaluateString(page, `() => {
					const h = document.querySelector('h1');
					return h ? h.innerText.trim() : null;
				}`)
			},
		},
	}
}

func (e *domExtractor) artistStrategies() []fieldStrategy {
	return []fieldStrategy{
		{
			name: "artist-links",
			attempt: func(page playwright.Page) (string, error) {
				return evaluateString(page, `() => {
					const links = document.querySelectorAll('a[href*="/artist/"], a[href*="/shop/"]');
					const exclude = `+jsStringArray(artistExcludeKeywords)+`;
					for (const link of links) {
						const text = (link.innerText || '').trim();
						if (text.length >= 2 && text.length <= 30 &&
							!exclude.some(k => text.includes(k))) {
							return text;
						}
					}
					return null;
				}`)
			},
		},
		{
			name: "artist-classes",
			attempt: func(page playwright.Page) (string, error) {
				return evaluateString(page, `() => {
					const selectors = [
						'[class*="artist-name"]', '[class*="artistName"]',
						'[class*="seller-name"]', '[class*="shop-name"]',
						'[class*="author"]'
					];
					for (const sel of selectors) {
						const el = document.querySelector(sel);
						if (el) {
							const text = (el.innerText || '').trim();
							if (text.length >= 2 && text.length <= 30) return text;
						}
					}
					return null;
				}`)
			},
		},
		{
			name: "meta-author",
			attempt: func(page playwright.Page) (string, error) {
				return evaluateString(page, `() => {
					const meta = document.querySelector('meta[name="author"]');
					return meta ? meta.getAttribute('content') : null;
				}`)
			},
		},
	}
}

func (e *domExtractor) priceStrategies() []fieldStrategy {
	return []fieldStrategy{
		{
			name: "price-classes",
			attempt: func(page playwright.Page) (string, error) {
				// Discounted price classes come first so the sale price wins
				// over the struck-through list price.
				text, err := evaluateString(page, `() => {
					const selectors = [
						'[class*="sale-price"]', '[class*="salePrice"]',
						'[class*="final-price"]', '[class*="finalPrice"]',
						'[class*="discount-price"]', '[class*="price"]'
					];
					const chunks = [];
					for (const sel of selectors) {
						document.querySelectorAll(sel).forEach(el => chunks.push(el.innerText || ''));
					}
					return chunks.join('\n');
				}`)
				if err != nil {
					return "", err
				}
				return ExtractPriceText(text), nil
			},
		},
		{
			name: "full-text",
			attempt: func(page playwright.Page) (string, error) {
				text, err := evaluateString(page, `() => document.body.innerText || ''`)
				if err != nil {
					return "", err
				}
				return strings.TrimSpace(fullTextPricePattern.FindString(text)), nil
			},
		},
	}
}

func (e *domExtractor) descriptionStrategies() []fieldStrategy {
	return []fieldStrategy{
		{
			name: "detail-containers",
			attempt: func(page playwright.Page) (string, error) {
				e.activateDetailsTab(page)
				text, err := evaluateString(page, `() => {
					const selectors = ['article', '[class*="detail"]', '[class*="description"]', '[class*="content"]', 'main'];
					let longest = '';
					for (const sel of selectors) {
						document.querySelectorAll(sel).forEach(el => {
							const t = el.innerText || '';
							if (t.length > longest.length) longest = t;
						});
					}
					return longest || null;
				}`)
				if err != nil {
					return "", err
				}
				return TrimDescription(text), nil
			},
		},
	}
}

// activateDetailsTab clicks the details affordance if present. The details
// block only renders its full text after the tab is active; absence of the
// tab is not an error.
func (e *domExtractor) activateDetailsTab(page playwright.Page) {
	clicked, err := page.Evaluate(`() => {
		const labels = ['작품정보', '상품정보', '상세정보'];
		const tabs = document.querySelectorAll('[role="tab"], button, a');
		for (const tab of tabs) {
			const text = (tab.innerText || tab.textContent || '').trim();
			if (labels.some(l => text === l || text.includes(l))) {
				tab.click();
				return true;
			}
		}
		return false;
	}`)
	if err != nil {
		e.logger.Debug("details tab click failed", "error", err)
		return
	}
	if ok, _ := clicked.(bool); ok {
		time.Sleep(e.clickSettle)
	}
}

// CleanTitle strips the site suffix from a document title.
func CleanTitle(title string) string {
	title = strings.TrimSuffix(strings.TrimSpace(title), titleSuffix)
	return strings.TrimSpace(title)
}

// ExtractPriceText finds the first currency-like substring (digit groups plus
// the won unit) in text.
func ExtractPriceText(text string) string {
	return strings.TrimSpace(priceTextPattern.FindString(text))
}

// TrimDescription drops candidate blocks that are too short or dominated by
// UI noise, unless the block is long enough to be genuine content, and caps
// the result length.
func TrimDescription(text string) string {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < descriptionMinLen {
		return ""
	}

	// A short block containing navigation chrome is UI noise, not content.
	if len([]rune(text)) < 4*descriptionMinLen {
		for _, noise := range descriptionNoise {
			if strings.Contains(text, noise) {
				return ""
			}
		}
	}

	runes := []rune(text)
	if len(runes) > descriptionMaxLen {
		return string(runes[:descriptionMaxLen])
	}
	return text
}

func evaluateString(page playwright.Page, script string) (string, error) {
	result, err := page.Evaluate(script)
	if err != nil {
		return "", err
	}
	s, _ := result.(string)
	return s, nil
}

func jsStringArray(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = `'` + s + `'`
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
