package translator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/idus-tools/product-translator/internal/config"
	"github.com/idus-tools/product-translator/internal/models"
	"github.com/idus-tools/product-translator/internal/ratelimit"
)

// State tracks the backend probe lifecycle. The translator degrades to
// passthrough (source text returned unchanged) whenever it is not Ready.
type State int

const (
	StateUnprobed State = iota
	StateProbing
	StateReady
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateUnprobed:
		return "unprobed"
	case StateProbing:
		return "probing"
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Backend is the generation surface the translator drives. The production
// implementation wraps the Gemini API; tests substitute fakes.
type Backend interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateVision(ctx context.Context, instruction, imageFormat string, imageData []byte) (string, error)
	Close() error
}

type backendFactory func(ctx context.Context, apiKey, model string) (Backend, error)

// Translator orchestrates text translation and image OCR against a probed
// generation backend. All outbound calls share one rate limiter.
type Translator struct {
	cfg     config.TranslatorConfig
	backend Backend
	state   State
	model   string
	limiter ratelimit.Limiter
	logger  *slog.Logger

	fetcher imageFetcher
}

// New probes the configured model candidates in order and returns a
// translator bound to the first one that answers. A translator is always
// returned; probe failure leaves it in passthrough mode rather than erroring.
func New(ctx context.Context, cfg config.TranslatorConfig, logger *slog.Logger) *Translator {
	return newWithFactory(ctx, cfg, newGeminiBackend, logger)
}

func newWithFactory(ctx context.Context, cfg config.TranslatorConfig, factory backendFactory, logger *slog.Logger) *Translator {
	t := &Translator{
		cfg:     cfg,
		state:   StateUnprobed,
		limiter: ratelimit.NewIntervalLimiter(cfg.CallInterval),
		logger:  logger.With("component", "translator"),
		fetcher: newHTTPImageFetcher(),
	}
	t.probe(ctx, factory)
	return t
}

// probe walks the candidate list with a one-token test call per model.
// Auth failures abort immediately: no candidate can succeed with bad
// credentials.
func (t *Translator) probe(ctx context.Context, factory backendFactory) {
	if t.cfg.APIKey == "" {
		t.logger.Warn("no api key configured, translation disabled")
		t.state = StateUnavailable
		return
	}

	t.state = StateProbing
	for _, candidate := range t.cfg.ModelCandidates {
		backend, err := factory(ctx, t.cfg.APIKey, candidate)
		if err != nil {
			t.logger.Warn("backend init failed", "model", candidate, "error", err)
			continue
		}

		if _, err := backend.GenerateText(ctx, "Reply with OK."); err != nil {
			backend.Close()
			if isAuthError(err) {
				t.logger.Error("api key rejected, translation disabled", "model", candidate, "error", err)
				t.state = StateUnavailable
				return
			}
			t.logger.Warn("model probe failed", "model", candidate, "error", err)
			continue
		}

		t.backend = backend
		t.model = candidate
		t.state = StateReady
		t.logger.Info("translation backend ready", "model", candidate)
		return
	}

	t.logger.Warn("no model candidate answered, translation disabled")
	t.state = StateUnavailable
}

// State reports the probe outcome.
func (t *Translator) State() State { return t.state }

// Ready reports whether translation calls will reach a backend.
func (t *Translator) Ready() bool { return t.state == StateReady }

// Model returns the selected model name, empty unless Ready.
func (t *Translator) Model() string { return t.model }

// Close releases the backend connection.
func (t *Translator) Close() error {
	if t.backend != nil {
		return t.backend.Close()
	}
	return nil
}

// Translate renders text into the target locale. On any failure, and for
// sentinel or blank input, it returns the source text unchanged so callers
// never lose data to a flaky backend.
func (t *Translator) Translate(ctx context.Context, text string, locale models.Locale, kind TextKind) string {
	if !t.Ready() {
		return text
	}
	if strings.TrimSpace(text) == "" || models.IsSentinel(text) {
		return text
	}

	prompt := buildPrompt(kind, locale, text)
	result, err := t.generateWithRetry(ctx, func(c context.Context) (string, error) {
		return t.backend.GenerateText(c, prompt)
	})
	if err != nil {
		t.logger.Warn("translation failed, keeping source text", "locale", locale, "error", err)
		return text
	}

	cleaned := cleanResult(result, locale)
	if cleaned == "" {
		return text
	}
	return cleaned
}

// generateWithRetry rate-limits the call and retries throttle responses with
// linearly growing backoff. Non-throttle errors are terminal on first sight.
func (t *Translator) generateWithRetry(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= t.cfg.MaxRetries; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return "", err
		}

		result, err := call(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isThrottleError(err) {
			return "", err
		}
		if attempt < t.cfg.MaxRetries {
			backoff := time.Duration(attempt) * t.cfg.RetryBase
			t.logger.Warn("throttled, backing off", "attempt", attempt, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", fmt.Errorf("retries exhausted: %w", lastErr)
}

// TranslateProduct renders a scraped record into the target locale: title,
// description, option groups, then the image OCR pass. Fields that fail keep
// their source text.
func (t *Translator) TranslateProduct(ctx context.Context, record *models.ProductRecord, locale models.Locale) (*models.TranslatedProductRecord, error) {
	if !locale.Valid() {
		return nil, fmt.Errorf("unsupported locale %q", locale)
	}

	out := &models.TranslatedProductRecord{
		Original:     *record,
		TargetLocale: locale,
	}

	out.TranslatedTitle = t.Translate(ctx, record.Title, locale, KindTitle)
	out.TranslatedDescription = t.Translate(ctx, record.Description, locale, KindDescription)

	out.TranslatedOptions = make([]models.OptionGroup, 0, len(record.Options))
	for _, group := range record.Options {
		translated := models.OptionGroup{
			Name:   t.Translate(ctx, group.Name, locale, KindOption),
			Values: make([]string, 0, len(group.Values)),
		}
		for _, value := range group.Values {
			translated.Values = append(translated.Values, t.Translate(ctx, value, locale, KindOption))
		}
		out.TranslatedOptions = append(out.TranslatedOptions, translated)
	}

	out.TranslatedImageTexts = t.processImages(ctx, record.Images, locale)

	return out, nil
}

// geminiBackend binds a genai client to one model name.
type geminiBackend struct {
	client *genai.Client
	model  string
}

func newGeminiBackend(ctx context.Context, apiKey, model string) (Backend, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &geminiBackend{client: client, model: model}, nil
}

func (b *geminiBackend) GenerateText(ctx context.Context, prompt string) (string, error) {
	model := b.client.GenerativeModel(b.model)
	model.SetTemperature(0.2)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

func (b *geminiBackend) GenerateVision(ctx context.Context, instruction, imageFormat string, imageData []byte) (string, error) {
	model := b.client.GenerativeModel(b.model)
	model.SetTemperature(0.1)
	resp, err := model.GenerateContent(ctx, genai.ImageData(imageFormat, imageData), genai.Text(instruction))
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

func (b *geminiBackend) Close() error {
	return b.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response from model")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

func isThrottleError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "resource exhausted")
}

func isAuthError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 401 || apiErr.Code == 403
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "api key not valid") || strings.Contains(msg, "permission denied") || strings.Contains(msg, "unauthenticated")
}
