package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/idus-tools/product-translator/internal/browser"
	"github.com/idus-tools/product-translator/internal/models"
)

// Config carries the extraction pipeline's tunables. Settle delays are a
// deliberate bounded-wait tradeoff: the target page gives no reliable
// "content loaded" signal, so a fixed delay replaces an indefinite wait.
type Config struct {
	TargetDomain    string
	NavigateTimeout time.Duration
	SettleDelay     time.Duration
	ClickSettle     time.Duration
	ScrollStep      int
	ScrollPause     time.Duration
	ScrollBudget    int
	MinImageSize    int
	MaxImages       int
}

func DefaultConfig() Config {
	return Config{
		TargetDomain:    "idus.com",
		NavigateTimeout: 60 * time.Second,
		SettleDelay:     3 * time.Second,
		ClickSettle:     1500 * time.Millisecond,
		ScrollStep:      400,
		ScrollPause:     300 * time.Millisecond,
		ScrollBudget:    60,
		MinImageSize:    300,
		MaxImages:       15,
	}
}

// Service runs the extraction pipeline: one rendered page per request, the
// extraction phases strictly in sequence, one canonical record out.
type Service struct {
	browser    *browser.Browser
	cfg        Config
	logger     *slog.Logger
	structured *structuredExtractor
	dom        *domExtractor
	options    *optionRevealer
	images     *imageCollector
}

func NewService(b *browser.Browser, cfg Config, logger *slog.Logger) *Service {
	logger = logger.With("component", "scraper")
	return &Service{
		browser:    b,
		cfg:        cfg,
		logger:     logger,
		structured: newStructuredExtractor(logger),
		dom:        newDOMExtractor(cfg.ClickSettle, logger),
		options:    newOptionRevealer(cfg.ClickSettle, logger),
		images: newImageCollector(cfg.TargetDomain, cfg.ScrollStep, cfg.ScrollPause,
			cfg.ScrollBudget, cfg.MinImageSize, cfg.MaxImages, logger),
	}
}

// Scrape renders url and extracts the canonical product record. Navigation
// failure is fatal; every extraction miss past that point degrades to a
// sentinel or an empty collection.
func (s *Service) Scrape(ctx context.Context, url string) (*models.ProductRecord, error) {
	s.logger.Info("scraping product", "url", url)
	started := time.Now()

	page, err := s.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	recorder := NewNetworkRecorder(s.cfg.TargetDomain)
	recorder.Attach(page)

	if err := s.browser.Navigate(page, url, s.cfg.NavigateTimeout); err != nil {
		return nil, err
	}
	time.Sleep(s.cfg.SettleDelay)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	structured := s.structured.Extract(page)
	dom := s.dom.Extract(page)
	dom.Options = s.options.Reveal(page)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.expandDetails(page)
	s.images.ScrollToBottom(page)
	dom.Images = s.images.Collect(page, recorder)
	structured.Images = canonicalizeRaw(structured.Images, s.cfg.MinImageSize, s.cfg.MaxImages)

	record := MergeRecords(url, structured, dom)

	s.logger.Info("scrape finished",
		"url", url,
		"title", record.Title,
		"options", len(record.Options),
		"images", len(record.Images),
		"elapsed", time.Since(started).Round(time.Millisecond))
	return record, nil
}

// expandDetails clicks the "more info" affordance so the collapsed detail
// section, and the images inside it, are present before the scroll.
func (s *Service) expandDetails(page playwright.Page) {
	loc := page.Locator(`button:has-text("작품 정보 더보기")`).First()
	visible, err := loc.IsVisible()
	if err != nil || !visible {
		return
	}
	if err := loc.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(3000),
	}); err != nil {
		s.logger.Debug("details expand failed", "error", err)
		return
	}
	time.Sleep(s.cfg.ClickSettle)
}

// canonicalizeRaw runs position-less URLs through the same canonicalization
// as the collector channels.
func canonicalizeRaw(urls []string, minImageSize, maxImages int) []string {
	candidates := make([]ImageCandidate, len(urls))
	for i, url := range urls {
		candidates[i] = ImageCandidate{URL: url, Order: i}
	}
	return CanonicalizeImages(candidates, minImageSize, maxImages)
}
