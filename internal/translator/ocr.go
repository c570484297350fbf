package translator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/idus-tools/product-translator/internal/models"
)

const (
	// maxImageBytes caps a single download; detail images are photos, not
	// archives.
	maxImageBytes = 10 << 20

	imageFetchTimeout = 30 * time.Second
)

// imageFetcher downloads an image and reports its format for the vision call.
type imageFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, format string, err error)
}

type httpImageFetcher struct {
	client *http.Client
}

func newHTTPImageFetcher() *httpImageFetcher {
	return &httpImageFetcher{client: &http.Client{Timeout: imageFetchTimeout}}
}

func (f *httpImageFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image body: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image body")
	}

	return data, imageFormat(resp.Header.Get("Content-Type"), url), nil
}

// imageFormat maps a Content-Type (or, failing that, the URL extension) to
// the short format token the vision API expects.
func imageFormat(contentType, url string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "png"):
		return "png"
	case strings.Contains(ct, "webp"):
		return "webp"
	case strings.Contains(ct, "gif"):
		return "gif"
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return "jpeg"
	}

	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "png"
	case strings.HasSuffix(lower, ".webp"):
		return "webp"
	case strings.HasSuffix(lower, ".gif"):
		return "gif"
	default:
		return "jpeg"
	}
}

// processImages runs the OCR pass over image URLs in listing order: fetch,
// extract Korean text, translate. Every per-image failure is logged and
// skipped so one bad image never sinks the batch. The order index records
// the position within the source slice, not the output slice.
func (t *Translator) processImages(ctx context.Context, urls []string, locale models.Locale) []models.ImageText {
	results := make([]models.ImageText, 0)
	if !t.Ready() || len(urls) == 0 {
		return results
	}

	limit := t.cfg.MaxOCRImages
	if limit > len(urls) {
		limit = len(urls)
	}

	for i := 0; i < limit; i++ {
		url := urls[i]
		log := t.logger.With("image", url, "index", i)

		text, err := t.extractImageText(ctx, url)
		if err != nil {
			log.Warn("image text extraction failed, skipping", "error", err)
			continue
		}
		if text == "" {
			log.Debug("image carries no text")
			continue
		}
		if len([]rune(text)) < t.cfg.MinOCRTextLen {
			log.Debug("extracted text too short, skipping", "length", len([]rune(text)))
			continue
		}

		results = append(results, models.ImageText{
			ImageURL:       url,
			OriginalText:   text,
			TranslatedText: t.Translate(ctx, text, locale, KindGeneric),
			OrderIndex:     i,
		})
	}

	if len(results) > 0 {
		t.logger.Info("image text pass complete", "images", limit, "withText", len(results))
	}
	return results
}

// extractImageText downloads one image and asks the vision model for its
// Korean text. An explicit no-text reply comes back as the empty string.
func (t *Translator) extractImageText(ctx context.Context, url string) (string, error) {
	data, format, err := t.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	raw, err := t.generateWithRetry(ctx, func(c context.Context) (string, error) {
		return t.backend.GenerateVision(c, ocrInstruction, format, data)
	})
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(raw)
	if text == "" || strings.Contains(text, noTextSentinel) {
		return "", nil
	}
	return text, nil
}
