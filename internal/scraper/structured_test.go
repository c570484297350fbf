package scraper

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractFromJSON(t *testing.T) {
	e := newStructuredExtractor(testLogger())

	blob := `{
		"state": {
			"product": {
				"title": "Hand-carved Wooden Spoon",
				"artistName": "우드공방",
				"price": 18000,
				"description": "A long description of the hand-carved wooden spoon, oiled walnut, food safe finish.",
				"options": [
					{"name": "색상", "values": ["월넛", "오크"]}
				],
				"images": [
					"https://image.idus.com/image/files/abc123def456_720.jpg",
					"https://image.idus.com/image/files/abc123def456_720.jpg",
					"https://image.idus.com/image/files/0011aabbcc_320.jpg"
				]
			}
		}
	}`

	partial := e.ExtractFromJSON(blob)

	assert.Equal(t, "Hand-carved Wooden Spoon", partial.Title)
	assert.Equal(t, "우드공방", partial.ArtistName)
	assert.Equal(t, "18,000원", partial.Price)
	assert.Contains(t, partial.Description, "hand-carved wooden spoon")

	require.Len(t, partial.Options, 1)
	assert.Equal(t, "색상", partial.Options[0].Name)
	assert.Equal(t, []string{"월넛", "오크"}, partial.Options[0].Values)

	// Duplicate image URLs collapse, distinct assets survive.
	assert.Equal(t, []string{
		"https://image.idus.com/image/files/abc123def456_720.jpg",
		"https://image.idus.com/image/files/0011aabbcc_320.jpg",
	}, partial.Images)
}

func TestExtractFromJSONDeterministic(t *testing.T) {
	e := newStructuredExtractor(testLogger())

	// Two name-bearing keys at the same depth; sorted key order makes the
	// winner stable across runs.
	blob := `{
		"b": {"name": "Second Candidate Title"},
		"a": {"name": "First Candidate Title"}
	}`

	first := e.ExtractFromJSON(blob)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, e.ExtractFromJSON(blob))
	}
	assert.Equal(t, "First Candidate Title", first.Title)
}

func TestExtractFromJSONRejectsImplausibleValues(t *testing.T) {
	e := newStructuredExtractor(testLogger())

	blob := `{
		"title": "https://idus.com/not-a-title",
		"name": "ab",
		"price": -500
	}`

	partial := e.ExtractFromJSON(blob)
	assert.Empty(t, partial.Title)
	assert.Empty(t, partial.Price)
}

func TestExtractFromJSONMalformed(t *testing.T) {
	e := newStructuredExtractor(testLogger())

	for _, blob := range []string{"", "not json", "{\"unterminated\": "} {
		partial := e.ExtractFromJSON(blob)
		assert.Empty(t, partial.Title)
		assert.Empty(t, partial.Images)
		assert.Empty(t, partial.Options)
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		expected string
	}{
		{"three digits", 900, "900원"},
		{"grouping", 18000, "18,000원"},
		{"millions", 1234567, "1,234,567원"},
		{"zero", 0, "0원"},
		{"fraction truncates", 18000.9, "18,000원"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatPrice(tt.amount))
		})
	}
}

func TestParseOptionObjectStructural(t *testing.T) {
	obj := map[string]any{
		"label": "포장 선택",
		"items": []any{
			"기본 포장",
			map[string]any{"name": "선물 포장", "extra": 2000.0},
		},
	}

	group, ok := parseOptionObject(obj)
	require.True(t, ok)
	assert.Equal(t, "포장 선택", group.Name)
	assert.Equal(t, []string{"기본 포장", "선물 포장"}, group.Values)

	_, ok = parseOptionObject(map[string]any{"label": "이름만"})
	assert.False(t, ok)

	_, ok = parseOptionObject(map[string]any{"items": []any{"값만"}})
	assert.False(t, ok)
}
