package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/idus-tools/product-translator/internal/cache"
	"github.com/idus-tools/product-translator/internal/models"
	"github.com/idus-tools/product-translator/internal/scraper"
	"github.com/idus-tools/product-translator/internal/translator"
)

type Handlers struct {
	scraper    *scraper.Service
	translator *translator.Translator
	cache      *cache.ResultCache
	logger     *slog.Logger
}

func NewHandlers(scraper *scraper.Service, translator *translator.Translator, cache *cache.ResultCache, logger *slog.Logger) *Handlers {
	return &Handlers{
		scraper:    scraper,
		translator: translator,
		cache:      cache,
		logger:     logger,
	}
}

// ScrapeRequest asks for a single product page extraction
type ScrapeRequest struct {
	URL string `json:"url"`
}

// TranslateRequest carries an already-scraped record for translation
type TranslateRequest struct {
	Product      *models.ProductRecord `json:"product"`
	TargetLocale models.Locale         `json:"targetLocale"`
}

// ScrapeAndTranslateRequest runs the full pipeline in one call
type ScrapeAndTranslateRequest struct {
	URL          string        `json:"url"`
	TargetLocale models.Locale `json:"targetLocale"`
}

// HealthResponse reports service and translation backend status
type HealthResponse struct {
	Status          string `json:"status"`
	TranslatorState string `json:"translatorState"`
	Model           string `json:"model,omitempty"`
}

// Health handles liveness checks
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:          "ok",
		TranslatorState: h.translator.State().String(),
		Model:           h.translator.Model(),
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// Scrape handles product page extraction requests
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	log := h.logger.With("requestId", requestID)

	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validateProductURL(req.URL); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.scrapeWithCache(r, log, req.URL)
	if err != nil {
		log.Error("failed to scrape product", "url", req.URL, "error", err)
		h.respondError(w, http.StatusBadGateway, "failed to scrape product page")
		return
	}

	h.respondJSON(w, http.StatusOK, record)
}

// Translate handles translation of a previously scraped record
func (h *Handlers) Translate(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	log := h.logger.With("requestId", requestID)

	var req TranslateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Product == nil {
		h.respondError(w, http.StatusBadRequest, "product is required")
		return
	}
	if !req.TargetLocale.Valid() {
		h.respondError(w, http.StatusBadRequest, "targetLocale must be \"en\" or \"ja\"")
		return
	}

	translated, err := h.translator.TranslateProduct(r.Context(), req.Product, req.TargetLocale)
	if err != nil {
		log.Error("failed to translate product", "locale", req.TargetLocale, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to translate product")
		return
	}

	h.respondJSON(w, http.StatusOK, translated)
}

// ScrapeAndTranslate handles the combined extraction plus translation flow
func (h *Handlers) ScrapeAndTranslate(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	log := h.logger.With("requestId", requestID)

	var req ScrapeAndTranslateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validateProductURL(req.URL); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.TargetLocale.Valid() {
		h.respondError(w, http.StatusBadRequest, "targetLocale must be \"en\" or \"ja\"")
		return
	}

	record, err := h.scrapeWithCache(r, log, req.URL)
	if err != nil {
		log.Error("failed to scrape product", "url", req.URL, "error", err)
		h.respondError(w, http.StatusBadGateway, "failed to scrape product page")
		return
	}

	translated, err := h.translator.TranslateProduct(r.Context(), record, req.TargetLocale)
	if err != nil {
		log.Error("failed to translate product", "locale", req.TargetLocale, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to translate product")
		return
	}

	h.respondJSON(w, http.StatusOK, translated)
}

// scrapeWithCache consults the result cache before driving the browser.
// Cache failures are logged and ignored; the scrape still runs.
func (h *Handlers) scrapeWithCache(r *http.Request, log *slog.Logger, productURL string) (*models.ProductRecord, error) {
	if cached, err := h.cache.Get(r.Context(), productURL); err != nil {
		log.Warn("cache read failed", "error", err)
	} else if cached != nil {
		log.Info("serving cached record", "url", productURL)
		return cached, nil
	}

	record, err := h.scraper.Scrape(r.Context(), productURL)
	if err != nil {
		return nil, err
	}

	if err := h.cache.Set(r.Context(), productURL, record); err != nil {
		log.Warn("cache write failed", "error", err)
	}
	return record, nil
}

// validateProductURL accepts only idus product page URLs.
func validateProductURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}

	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return errors.New("url must be a valid http(s) URL")
	}

	host := strings.ToLower(parsed.Hostname())
	if host != "idus.com" && host != "www.idus.com" && !strings.HasSuffix(host, ".idus.com") {
		return errors.New("url must point to an idus.com product page")
	}
	return nil
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
