package scraper

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/idus-tools/product-translator/internal/models"
)

// Bounds for the payload walk. The embedded blob can reference itself through
// store caches, so both depth and total visited nodes are capped.
const (
	walkMaxDepth = 12
	walkMaxNodes = 50000
)

// Partial holds field candidates produced by one extraction source. Empty
// fields mean "not found"; sentinels are applied at merge time.
type Partial struct {
	Title       string
	ArtistName  string
	Price       string
	Description string
	Options     []models.OptionGroup
	Images      []string
}

// fieldRule selects scalar candidates by key-name pattern. validate rejects
// implausible values, replace decides whether a new candidate beats the one
// already held (first-match keeps the incumbent, longest-wins replaces).
type fieldRule struct {
	keyPattern *regexp.Regexp
	validate   func(string) bool
	replace    func(current, candidate string) bool
}

var (
	titleRule = fieldRule{
		keyPattern: regexp.MustCompile(`(?i)^(name|title|product_?name|productName)$`),
		validate:   func(s string) bool { return lengthBetween(s, 3, 200) && !looksLikeURL(s) },
		replace:    keepFirst,
	}
	artistRule = fieldRule{
		keyPattern: regexp.MustCompile(`(?i)^(artist_?name|artistName|seller_?name|shop_?name|author)$`),
		validate:   func(s string) bool { return lengthBetween(s, 2, 30) && !looksLikeURL(s) },
		replace:    keepFirst,
	}
	descriptionRule = fieldRule{
		keyPattern: regexp.MustCompile(`(?i)(description|content|detail)`),
		validate:   func(s string) bool { return len([]rune(s)) >= 30 && !looksLikeURL(s) },
		replace:    func(current, candidate string) bool { return len(candidate) > len(current) },
	}
	priceKeyPattern = regexp.MustCompile(`(?i)^(sale_?price|salePrice|final_?price|selling_?price|price)$`)

	optionNameKey   = regexp.MustCompile(`(?i)^(name|title|option_?name|optionName|label)$`)
	optionValuesKey = regexp.MustCompile(`(?i)^(values|items|options|list|children)$`)

	cdnImagePattern = regexp.MustCompile(`https?://image\.idus\.com/image/files/[a-f0-9]+(?:_\d+)?(?:\.(?:jpg|jpeg|png|webp|gif))?`)
)

func keepFirst(current, _ string) bool { return current == "" }

func lengthBetween(s string, min, max int) bool {
	n := len([]rune(strings.TrimSpace(s)))
	return n >= min && n <= max
}

func looksLikeURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "//")
}

// structuredExtractor recovers field candidates from the page-embedded
// machine-readable payload. It is the highest-priority merge input because it
// is not subject to rendering races. It never fails: a missing or malformed
// payload yields an empty partial.
type structuredExtractor struct {
	logger *slog.Logger
}

func newStructuredExtractor(logger *slog.Logger) *structuredExtractor {
	return &structuredExtractor{logger: logger.With("extractor", "structured")}
}

// Extract serializes the embedded payload out of the page and walks it.
func (e *structuredExtractor) Extract(page playwright.Page) Partial {
	raw, err := page.Evaluate(`() => {
		try {
			if (window.__NUXT__) return JSON.stringify(window.__NUXT__);
			const el = document.getElementById('__NUXT_DATA__');
			if (el && el.textContent) return el.textContent;
			return null;
		} catch (e) {
			return null;
		}
	}`)
	if err != nil {
		e.logger.Debug("payload evaluation failed", "error", err)
		return Partial{}
	}

	blob, ok := raw.(string)
	if !ok || blob == "" {
		e.logger.Debug("no embedded payload present")
		return Partial{}
	}

	return e.ExtractFromJSON(blob)
}

// ExtractFromJSON parses blob into a generic tagged tree and collects field
// candidates with a bounded walk.
func (e *structuredExtractor) ExtractFromJSON(blob string) Partial {
	var root any
	if err := json.Unmarshal([]byte(blob), &root); err != nil {
		e.logger.Debug("payload is not valid JSON", "error", err)
		return Partial{}
	}

	w := &payloadWalker{}
	w.walk(root, 0)

	partial := Partial{
		Title:       w.title,
		ArtistName:  w.artist,
		Description: w.description,
		Options:     w.options,
		Images:      dedupeStrings(w.images),
	}
	if w.priceFound {
		partial.Price = FormatPrice(w.price)
	}
	return partial
}

// payloadWalker visits the tagged tree depth-first. Object keys are visited
// in sorted order so repeated runs over the same payload pick the same
// candidates.
type payloadWalker struct {
	nodes int

	title       string
	artist      string
	description string
	price       float64
	priceFound  bool
	options     []models.OptionGroup
	images      []string
}

func (w *payloadWalker) walk(node any, depth int) {
	if depth > walkMaxDepth || w.nodes >= walkMaxNodes {
		return
	}
	w.nodes++

	switch v := node.(type) {
	case map[string]any:
		if group, ok := parseOptionObject(v); ok {
			w.options = append(w.options, group)
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			w.visitPair(k, v[k])
			w.walk(v[k], depth+1)
		}
	case []any:
		for _, item := range v {
			// Image URLs usually live in plain string arrays with no
			// key to match on.
			if s, ok := item.(string); ok {
				if m := cdnImagePattern.FindString(s); m != "" {
					w.images = append(w.images, m)
				}
				continue
			}
			w.walk(item, depth+1)
		}
	}
}

func (w *payloadWalker) visitPair(key string, value any) {
	switch v := value.(type) {
	case string:
		w.visitString(key, v)
	case float64:
		if !w.priceFound && priceKeyPattern.MatchString(key) && v > 0 {
			w.price = v
			w.priceFound = true
		}
	}
}

func (w *payloadWalker) visitString(key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}

	if cdnImagePattern.MatchString(value) {
		w.images = append(w.images, cdnImagePattern.FindString(value))
	}

	if titleRule.keyPattern.MatchString(key) && titleRule.validate(value) && titleRule.replace(w.title, value) {
		w.title = value
	}
	if artistRule.keyPattern.MatchString(key) && artistRule.validate(value) && artistRule.replace(w.artist, value) {
		w.artist = value
	}
	if descriptionRule.keyPattern.MatchString(key) && descriptionRule.validate(value) && descriptionRule.replace(w.description, value) {
		w.description = value
	}
	if !w.priceFound && priceKeyPattern.MatchString(key) {
		if n, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64); err == nil && n > 0 {
			w.price = n
			w.priceFound = true
		}
	}
}

// parseOptionObject matches option groups structurally: an object carrying a
// name-like string and a values-like array. No fixed schema is guaranteed by
// the payload, so shape is the only signal.
func parseOptionObject(obj map[string]any) (models.OptionGroup, bool) {
	var name string
	var rawValues []any

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if name == "" && optionNameKey.MatchString(k) && lengthBetween(v, 1, 30) {
				name = strings.TrimSpace(v)
			}
		case []any:
			if rawValues == nil && optionValuesKey.MatchString(k) && len(v) > 0 {
				rawValues = v
			}
		}
	}

	if name == "" || rawValues == nil {
		return models.OptionGroup{}, false
	}

	values := make([]string, 0, len(rawValues))
	for _, rv := range rawValues {
		switch item := rv.(type) {
		case string:
			values = append(values, item)
		case map[string]any:
			for _, k := range sortedKeys(item) {
				if s, ok := item[k].(string); ok && optionNameKey.MatchString(k) {
					values = append(values, s)
					break
				}
			}
		}
	}

	values = dedupeValues(values)
	if len(values) == 0 {
		return models.OptionGroup{}, false
	}
	return models.OptionGroup{Name: name, Values: values}, true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatPrice renders a numeric amount as the site's currency display string,
// e.g. 18000 -> "18,000원".
func FormatPrice(amount float64) string {
	n := int64(amount)
	s := strconv.FormatInt(n, 10)

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	var b strings.Builder
	for i, d := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	out := b.String()
	if neg {
		out = "-" + out
	}
	return out + "원"
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
