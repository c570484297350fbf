package scraper

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
)

const (
	// DOM entries smaller than this on either axis are icons, not content.
	minPixelDimension = 100

	// Rows within this many pixels count as the same row; ties break left to
	// right.
	rowTolerance = 20
)

var (
	// assetVariantPattern captures the CDN content identifier and the
	// optional resolution suffix: ".../files/<id>_720.jpg". Variants sharing
	// an identifier are the same asset at different resolutions.
	assetVariantPattern = regexp.MustCompile(`(?i)([a-f0-9]{6,})(?:_(\d+))?\.(?:jpg|jpeg|png|webp|gif)`)

	markupImagePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)https?://image\.idus\.com/image/files/[a-f0-9]+(?:_\d+)?\.(?:jpg|jpeg|png|webp|gif)`),
		regexp.MustCompile(`(?i)https?://cdn\.idus\.kr[^"'\s\)>]+\.(?:jpg|jpeg|png|webp|gif)`),
	}

	imageExcludeSubstrings = []string{
		"/icon", "/sprite", "/logo", "/avatar", "/badge",
		"/emoji", "/button", "/arrow", "/profile",
		"facebook.", "twitter.", "instagram.", "kakao.", "naver.",
		"/escrow", "/membership", "/banner",
		"/thumbnail", "/thumb_", "_thumb",
		"/review/", "/comment/",
		"/artist/", "/shop/",
		"data:image",
	}

	// regionExcludePatterns marks page regions whose images are never detail
	// content, matched against the lowercased class/id chain of an image's
	// ancestors. Recommended-product photos share the detail images' CDN URL
	// shape, so the enclosing region is the only way to tell them apart.
	regionExcludePatterns = []string{
		"review", "photo-review", "photoreview", "comment", "qna",
		"recommend", "related", "similar", "other-product", "otherproduct",
		"also-like", "alsolike", "you-may", "youmay", "more-product", "moreproduct",
		"artist-product", "artistproduct", "shop-product", "shopproduct",
		"seller-product", "sellerproduct", "more-from", "morefrom",
		"header", "footer", "nav-", "-nav", "gnb", "lnb",
		"banner", "popup", "modal", "toast", "notice",
		"cart", "purchase", "buy-area", "buyarea", "order-",
		"profile", "avatar", "user-info", "userinfo",
		"product-list", "productlist", "item-list", "itemlist",
		"product-grid", "productgrid", "item-grid", "itemgrid",
		"swiper-slide",
	}
)

// ImageCandidate is one observed image URL with whatever position and size
// metadata the capture channel had available. Order is the global
// first-observed sequence number; X/Y are document coordinates when the
// candidate came from the live DOM.
type ImageCandidate struct {
	URL    string
	Order  int
	X, Y   float64
	Width  int
	Height int
}

// imageCollector unions four capture channels (DOM attributes, background
// styles, raw markup, network traffic) and canonicalizes the result.
type imageCollector struct {
	targetDomain string
	scrollStep   int
	scrollPause  time.Duration
	scrollBudget int
	minImageSize int
	maxImages    int
	logger       *slog.Logger
}

func newImageCollector(targetDomain string, scrollStep int, scrollPause time.Duration, scrollBudget, minImageSize, maxImages int, logger *slog.Logger) *imageCollector {
	return &imageCollector{
		targetDomain: targetDomain,
		scrollStep:   scrollStep,
		scrollPause:  scrollPause,
		scrollBudget: scrollBudget,
		minImageSize: minImageSize,
		maxImages:    maxImages,
		logger:       logger.With("extractor", "images"),
	}
}

// Collect gathers candidates from every channel and returns the canonical,
// document-ordered, bounded URL list. Call after ScrollToBottom so lazy
// assets have materialized.
func (c *imageCollector) Collect(page playwright.Page, recorder *NetworkRecorder) []string {
	var candidates []ImageCandidate
	order := 0

	domCandidates := c.collectDOM(page, &order)
	candidates = append(candidates, domCandidates...)

	if html, err := page.Content(); err == nil {
		candidates = append(candidates, c.collectMarkup(html, &order)...)
	} else {
		c.logger.Debug("raw markup unavailable", "error", err)
	}

	if recorder != nil {
		candidates = append(candidates, recorder.Candidates(&order)...)
	}

	urls := CanonicalizeImages(candidates, c.minImageSize, c.maxImages)
	c.logger.Info("image collection finished",
		"dom", len(domCandidates), "total", len(candidates), "canonical", len(urls))
	return urls
}

// collectDOM scans img elements (src plus lazy-load attributes plus the
// largest srcset candidate), source elements, and background-image styles,
// recording document positions for ordering.
func (c *imageCollector) collectDOM(page playwright.Page, order *int) []ImageCandidate {
	result, err := page.Evaluate(`(domain) => {
		const out = [];
		const seen = new Set();
		const scrollTop = window.pageYOffset || document.documentElement.scrollTop;

		// Lowercased class/id trail of the element's ancestors, used to drop
		// images sitting in review/recommendation/chrome regions.
		const chainOf = (el) => {
			let chain = '';
			let node = el, depth = 0;
			while (node && node !== document.body && depth < 20) {
				chain += ' ' + ((node.className || '').toString() + ' ' + (node.id || ''));
				node = node.parentElement;
				depth++;
			}
			return chain.toLowerCase();
		};

		// Detail region ends at the collapse button, or just above the review
		// section header when one exists. 0 means no boundary was found.
		let detailEndY = 0;
		for (const btn of document.querySelectorAll('button')) {
			const text = (btn.innerText || '').trim();
			if (text.includes('작품 정보 접기')) {
				detailEndY = btn.getBoundingClientRect().bottom + scrollTop + 100;
				break;
			}
		}
		for (const el of document.querySelectorAll('[role="tab"], h2, h3, [class*="section-title"]')) {
			const text = (el.innerText || el.textContent || '').trim();
			if (/^후기/.test(text) && text.length < 20) {
				const y = el.getBoundingClientRect().top + scrollTop;
				if (y > 500 && (detailEndY === 0 || y - 50 < detailEndY)) {
					detailEndY = y - 50;
					break;
				}
			}
		}

		const push = (url, el) => {
			if (!url || !url.startsWith('http') || !url.includes(domain.split('.')[0]) || seen.has(url)) return;
			seen.add(url);
			const rect = el ? el.getBoundingClientRect() : {top: 0, left: 0, width: 0, height: 0};
			out.push({
				url: url,
				y: rect.top + scrollTop,
				x: rect.left,
				w: Math.round(rect.width || (el && el.naturalWidth) || 0),
				h: Math.round(rect.height || (el && el.naturalHeight) || 0),
				chain: el ? chainOf(el) : ''
			});
		};

		const largestFromSrcset = (srcset) => {
			let best = null, bestSize = -1;
			for (const part of srcset.split(',')) {
				const bits = part.trim().split(/\s+/);
				if (!bits[0]) continue;
				const size = bits[1] ? parseFloat(bits[1]) : 0;
				if (size > bestSize) { bestSize = size; best = bits[0]; }
			}
			return best;
		};

		document.querySelectorAll('img').forEach(img => {
			for (const attr of ['src', 'data-src', 'data-original', 'data-lazy-src']) {
				push(img.getAttribute(attr), img);
			}
			const srcset = img.getAttribute('srcset');
			if (srcset) push(largestFromSrcset(srcset), img);
		});

		document.querySelectorAll('source').forEach(src => {
			const srcset = src.getAttribute('srcset');
			if (srcset) push(largestFromSrcset(srcset), src.parentElement || src);
		});

		document.querySelectorAll('*').forEach(el => {
			try {
				const bg = getComputedStyle(el).backgroundImage;
				if (bg && bg !== 'none') {
					const m = bg.match(/url\(['"]?(https?:\/\/[^'"\)]+)['"]?\)/);
					if (m) push(m[1], el);
				}
			} catch (e) {}
		});

		return {items: out, detailEndY: detailEndY};
	}`, c.targetDomain)
	if err != nil {
		c.logger.Debug("DOM image scan failed", "error", err)
		return nil
	}

	payload, ok := result.(map[string]any)
	if !ok {
		return nil
	}
	items, _ := payload["items"].([]any)
	detailEndY := toFloat(payload["detailEndY"])

	candidates := make([]ImageCandidate, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		url, _ := m["url"].(string)
		if url == "" {
			continue
		}
		chain, _ := m["chain"].(string)
		if inExcludedRegion(chain) {
			continue
		}
		candidates = append(candidates, ImageCandidate{
			URL:    url,
			Order:  *order,
			Y:      toFloat(m["y"]),
			X:      toFloat(m["x"]),
			Width:  int(toFloat(m["w"])),
			Height: int(toFloat(m["h"])),
		})
		*order++
	}
	return filterByDetailBounds(candidates, detailEndY)
}

// inExcludedRegion reports whether an ancestor class/id chain places the
// image outside the product detail region.
func inExcludedRegion(classChain string) bool {
	if classChain == "" {
		return false
	}
	chain := strings.ToLower(classChain)
	for _, pattern := range regionExcludePatterns {
		if strings.Contains(chain, pattern) {
			return true
		}
	}
	return false
}

// filterByDetailBounds drops positioned candidates below the end of the
// detail region. A zero boundary means none was found; unpositioned
// candidates always pass since the boundary only exists for the live DOM.
func filterByDetailBounds(candidates []ImageCandidate, detailEndY float64) []ImageCandidate {
	if detailEndY <= 0 {
		return candidates
	}
	out := make([]ImageCandidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.Y > detailEndY {
			continue
		}
		out = append(out, cand)
	}
	return out
}

// collectMarkup scans the raw page markup. Script-injected assets never make
// it into the live DOM attribute scan but still show up here.
func (c *imageCollector) collectMarkup(html string, order *int) []ImageCandidate {
	seen := map[string]struct{}{}
	var candidates []ImageCandidate

	add := func(url string) {
		if url == "" || !strings.HasPrefix(url, "http") {
			return
		}
		if _, ok := seen[url]; ok {
			return
		}
		seen[url] = struct{}{}
		candidates = append(candidates, ImageCandidate{URL: url, Order: *order})
		*order++
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
			for _, attr := range []string{"src", "data-src", "data-original", "data-lazy-src"} {
				if v, ok := sel.Attr(attr); ok && strings.Contains(v, c.targetDomain) {
					add(v)
				}
			}
		})
	}

	for _, pattern := range markupImagePatterns {
		for _, match := range pattern.FindAllString(html, -1) {
			add(strings.ReplaceAll(match, `\/`, `/`))
		}
	}
	return candidates
}

// ScrollToBottom drives an incremental, viewport-sized scroll so lazy assets
// cross the viewport and load. A single jump to the bottom would skip them.
// Stops when the page height is stable across repeated checks or the step
// budget runs out.
func (c *imageCollector) ScrollToBottom(page playwright.Page) {
	const stableChecks = 3

	position := 0
	stable := 0
	lastHeight := 0

	for step := 0; step < c.scrollBudget; step++ {
		if _, err := page.Evaluate("window.scrollTo(0, " + strconv.Itoa(position) + ")"); err != nil {
			c.logger.Debug("scroll failed", "error", err)
			return
		}
		time.Sleep(c.scrollPause)
		position += c.scrollStep

		height := c.pageHeight(page)
		if height == lastHeight && position >= height {
			stable++
			if stable >= stableChecks {
				break
			}
		} else {
			stable = 0
		}
		lastHeight = height
	}

	page.Evaluate("window.scrollTo(0, document.body.scrollHeight)")
	time.Sleep(c.scrollPause * 3)
}

func (c *imageCollector) pageHeight(page playwright.Page) int {
	result, err := page.Evaluate("document.body.scrollHeight")
	if err != nil {
		return 0
	}
	return int(toFloat(result))
}

// CanonicalizeImages filters noise, picks the maximum-resolution variant per
// content identifier, and orders the survivors by first-observed document
// position. Deterministic and idempotent over the same candidate set.
func CanonicalizeImages(candidates []ImageCandidate, minImageSize, maxImages int) []string {
	ordered := make([]ImageCandidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		aPos, bPos := a.Y > 0, b.Y > 0
		if aPos != bPos {
			return aPos
		}
		if aPos && math.Abs(a.Y-b.Y) > rowTolerance {
			return a.Y < b.Y
		}
		if aPos && a.X != b.X {
			return a.X < b.X
		}
		return a.Order < b.Order
	})

	type group struct {
		url   string
		size  int
		first int
	}
	byID := map[string]*group{}
	var groupOrder []string

	for rank, cand := range ordered {
		if !keepCandidate(cand, minImageSize) {
			continue
		}

		id, size, ok := contentIdentifier(cand.URL)
		if !ok {
			// No extractable identifier: exact-match dedupe only.
			id = cand.URL
			size = 0
		} else if size > 0 && size < minImageSize {
			continue
		}

		g, exists := byID[id]
		if !exists {
			byID[id] = &group{url: cand.URL, size: size, first: rank}
			groupOrder = append(groupOrder, id)
			continue
		}
		if size > g.size {
			g.url = cand.URL
			g.size = size
		}
	}

	out := make([]string, 0, len(groupOrder))
	for _, id := range groupOrder {
		out = append(out, byID[id].url)
		if len(out) >= maxImages {
			break
		}
	}
	return out
}

func keepCandidate(cand ImageCandidate, minImageSize int) bool {
	url := cand.URL
	if !strings.HasPrefix(url, "http") {
		return false
	}

	low := strings.ToLower(url)
	if strings.Contains(low, ".svg") {
		return false
	}
	for _, sub := range imageExcludeSubstrings {
		if strings.Contains(low, sub) {
			return false
		}
	}

	// Pixel filter applies only when the channel had size metadata.
	if cand.Width > 0 && cand.Width < minPixelDimension {
		return false
	}
	if cand.Height > 0 && cand.Height < minPixelDimension {
		return false
	}
	return true
}

// contentIdentifier extracts the stable per-asset id embedded in a CDN URL
// path and the declared resolution suffix. Size 0 with ok means the URL names
// the asset without a resolution, which counts as the original (largest).
func contentIdentifier(url string) (id string, size int, ok bool) {
	m := assetVariantPattern.FindStringSubmatch(url)
	if m == nil {
		return "", 0, false
	}
	id = strings.ToLower(m[1])
	if m[2] == "" {
		return id, math.MaxInt32, true
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return id, math.MaxInt32, true
	}
	return id, n, true
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

// NetworkRecorder captures image-typed responses observed during load and
// scroll. Transiently-rendered assets that never settle into the DOM are only
// visible on this channel.
type NetworkRecorder struct {
	targetDomain string
	mu           sync.Mutex
	seen         map[string]struct{}
	urls         []string
}

func NewNetworkRecorder(targetDomain string) *NetworkRecorder {
	return &NetworkRecorder{
		targetDomain: targetDomain,
		seen:         map[string]struct{}{},
	}
}

// Attach registers the response listener on page. Playwright delivers events
// from its own goroutine, so recording is mutex-guarded.
func (r *NetworkRecorder) Attach(page playwright.Page) {
	page.OnResponse(func(response playwright.Response) {
		url := response.URL()
		if !strings.HasPrefix(url, "http") || !strings.Contains(url, r.targetDomain) {
			return
		}
		if !strings.Contains(url, "image.") && response.Request().ResourceType() != "image" {
			return
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.seen[url]; ok {
			return
		}
		r.seen[url] = struct{}{}
		r.urls = append(r.urls, url)
	})
}

// Candidates snapshots the captured URLs as position-less candidates.
func (r *NetworkRecorder) Candidates(order *int) []ImageCandidate {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ImageCandidate, 0, len(r.urls))
	for _, url := range r.urls {
		out = append(out, ImageCandidate{URL: url, Order: *order})
		*order++
	}
	return out
}
