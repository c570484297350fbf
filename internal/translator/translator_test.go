package translator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/idus-tools/product-translator/internal/config"
	"github.com/idus-tools/product-translator/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.TranslatorConfig {
	return config.TranslatorConfig{
		APIKey:          "test-key",
		ModelCandidates: []string{"model-a", "model-b"},
		CallInterval:    0,
		MaxRetries:      3,
		RetryBase:       time.Millisecond,
		MaxOCRImages:    10,
		MinOCRTextLen:   10,
	}
}

type fakeBackend struct {
	textFn    func(prompt string) (string, error)
	visionFn  func(instruction, format string, data []byte) (string, error)
	textCalls int
	closed    bool
}

func (f *fakeBackend) GenerateText(_ context.Context, prompt string) (string, error) {
	f.textCalls++
	return f.textFn(prompt)
}

func (f *fakeBackend) GenerateVision(_ context.Context, instruction, format string, data []byte) (string, error) {
	if f.visionFn == nil {
		return "", errors.New("no vision configured")
	}
	return f.visionFn(instruction, format, data)
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func singleBackendFactory(b Backend) backendFactory {
	return func(_ context.Context, _, _ string) (Backend, error) {
		return b, nil
	}
}

func TestProbeSelectsFirstAnsweringModel(t *testing.T) {
	probed := []string{}
	factory := func(_ context.Context, _, model string) (Backend, error) {
		probed = append(probed, model)
		if model == "model-a" {
			return &fakeBackend{textFn: func(string) (string, error) {
				return "", &googleapi.Error{Code: 404, Message: "model not found"}
			}}, nil
		}
		return &fakeBackend{textFn: func(string) (string, error) { return "OK", nil }}, nil
	}

	tr := newWithFactory(context.Background(), testConfig(), factory, testLogger())

	assert.Equal(t, StateReady, tr.State())
	assert.True(t, tr.Ready())
	assert.Equal(t, "model-b", tr.Model())
	assert.Equal(t, []string{"model-a", "model-b"}, probed)
}

func TestProbeAuthFailureHalts(t *testing.T) {
	probed := 0
	factory := func(_ context.Context, _, _ string) (Backend, error) {
		probed++
		return &fakeBackend{textFn: func(string) (string, error) {
			return "", &googleapi.Error{Code: 403, Message: "permission denied"}
		}}, nil
	}

	tr := newWithFactory(context.Background(), testConfig(), factory, testLogger())

	assert.Equal(t, StateUnavailable, tr.State())
	assert.False(t, tr.Ready())
	assert.Equal(t, 1, probed, "auth failure must stop the candidate walk")
}

func TestProbeWithoutAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""

	called := false
	factory := func(_ context.Context, _, _ string) (Backend, error) {
		called = true
		return nil, errors.New("should not be called")
	}

	tr := newWithFactory(context.Background(), cfg, factory, testLogger())

	assert.Equal(t, StateUnavailable, tr.State())
	assert.False(t, called)
}

func TestProbeAllCandidatesFail(t *testing.T) {
	factory := func(_ context.Context, _, _ string) (Backend, error) {
		return nil, errors.New("connection refused")
	}

	tr := newWithFactory(context.Background(), testConfig(), factory, testLogger())
	assert.Equal(t, StateUnavailable, tr.State())
}

func TestTranslatePassthroughWhenUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""
	tr := newWithFactory(context.Background(), cfg, nil, testLogger())

	ctx := context.Background()
	assert.Equal(t, "안녕하세요", tr.Translate(ctx, "안녕하세요", models.LocaleEnglish, KindGeneric))
	assert.Equal(t, "", tr.Translate(ctx, "", models.LocaleEnglish, KindGeneric))
}

func TestTranslateSkipsSentinelsAndBlanks(t *testing.T) {
	backend := &fakeBackend{textFn: func(string) (string, error) { return "OK", nil }}
	tr := newWithFactory(context.Background(), testConfig(), singleBackendFactory(backend), testLogger())
	require.True(t, tr.Ready())

	probeCalls := backend.textCalls

	ctx := context.Background()
	assert.Equal(t, models.NoTitle, tr.Translate(ctx, models.NoTitle, models.LocaleEnglish, KindTitle))
	assert.Equal(t, models.NoPrice, tr.Translate(ctx, models.NoPrice, models.LocaleEnglish, KindGeneric))
	assert.Equal(t, "   ", tr.Translate(ctx, "   ", models.LocaleEnglish, KindGeneric))
	assert.Equal(t, "", tr.Translate(ctx, "", models.LocaleEnglish, KindGeneric))

	assert.Equal(t, probeCalls, backend.textCalls, "sentinels must not reach the backend")
}

func TestTranslateCleansEchoPrefix(t *testing.T) {
	backend := &fakeBackend{textFn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Reply with OK") {
			return "OK", nil
		}
		return "English: Hello there", nil
	}}
	tr := newWithFactory(context.Background(), testConfig(), singleBackendFactory(backend), testLogger())

	got := tr.Translate(context.Background(), "안녕하세요", models.LocaleEnglish, KindGeneric)
	assert.Equal(t, "Hello there", got)
}

func TestTranslateThrottleExhaustionPassthrough(t *testing.T) {
	cfg := testConfig()
	backend := &fakeBackend{textFn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Reply with OK") {
			return "OK", nil
		}
		return "", &googleapi.Error{Code: 429, Message: "quota exceeded"}
	}}
	tr := newWithFactory(context.Background(), cfg, singleBackendFactory(backend), testLogger())
	require.True(t, tr.Ready())

	probeCalls := backend.textCalls
	got := tr.Translate(context.Background(), "안녕하세요", models.LocaleEnglish, KindGeneric)

	assert.Equal(t, "안녕하세요", got, "exhausted retries fall back to the source text")
	assert.Equal(t, cfg.MaxRetries, backend.textCalls-probeCalls, "persistent throttling gets exactly the configured attempts")
}

func TestTranslateNonThrottleErrorFailsFast(t *testing.T) {
	backend := &fakeBackend{textFn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Reply with OK") {
			return "OK", nil
		}
		return "", errors.New("boom")
	}}
	tr := newWithFactory(context.Background(), testConfig(), singleBackendFactory(backend), testLogger())

	probeCalls := backend.textCalls
	got := tr.Translate(context.Background(), "안녕하세요", models.LocaleEnglish, KindGeneric)

	assert.Equal(t, "안녕하세요", got)
	assert.Equal(t, 1, backend.textCalls-probeCalls, "non-throttle errors are terminal on first sight")
}

func TestTranslateProduct(t *testing.T) {
	backend := &fakeBackend{textFn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Reply with OK") {
			return "OK", nil
		}
		return "translated", nil
	}}
	tr := newWithFactory(context.Background(), testConfig(), singleBackendFactory(backend), testLogger())

	record := models.NewProductRecord("https://idus.com/w/product/1")
	record.Title = "수제 쿠키 세트"
	record.Description = "맛있는 수제 쿠키입니다."
	record.Options = []models.OptionGroup{{Name: "맛", Values: []string{"초코", "바닐라"}}}

	out, err := tr.TranslateProduct(context.Background(), record, models.LocaleEnglish)
	require.NoError(t, err)

	assert.Equal(t, *record, out.Original)
	assert.Equal(t, models.LocaleEnglish, out.TargetLocale)
	assert.Equal(t, "translated", out.TranslatedTitle)
	assert.Equal(t, "translated", out.TranslatedDescription)

	require.Len(t, out.TranslatedOptions, 1)
	assert.Equal(t, "translated", out.TranslatedOptions[0].Name)
	assert.Equal(t, []string{"translated", "translated"}, out.TranslatedOptions[0].Values)

	// No images means no OCR entries, but never nil.
	require.NotNil(t, out.TranslatedImageTexts)
	assert.Empty(t, out.TranslatedImageTexts)
}

func TestTranslateProductRejectsUnknownLocale(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""
	tr := newWithFactory(context.Background(), cfg, nil, testLogger())

	_, err := tr.TranslateProduct(context.Background(), models.NewProductRecord("u"), models.Locale("fr"))
	assert.Error(t, err)
}

func TestTranslateProductPassthroughWhenUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = ""
	tr := newWithFactory(context.Background(), cfg, nil, testLogger())

	record := models.NewProductRecord("https://idus.com/w/product/1")
	record.Title = "수제 쿠키 세트"

	out, err := tr.TranslateProduct(context.Background(), record, models.LocaleJapanese)
	require.NoError(t, err)
	assert.Equal(t, record.Title, out.TranslatedTitle)
	assert.Equal(t, record.Description, out.TranslatedDescription)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, isThrottleError(&googleapi.Error{Code: 429}))
	assert.True(t, isThrottleError(errors.New("googleapi: Error 429: quota exceeded")))
	assert.False(t, isThrottleError(errors.New("boom")))

	assert.True(t, isAuthError(&googleapi.Error{Code: 401}))
	assert.True(t, isAuthError(&googleapi.Error{Code: 403}))
	assert.True(t, isAuthError(errors.New("API key not valid")))
	assert.False(t, isAuthError(&googleapi.Error{Code: 429}))
}
