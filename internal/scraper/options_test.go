package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idus-tools/product-translator/internal/models"
)

func TestParsePanelText(t *testing.T) {
	t.Run("two numbered groups", func(t *testing.T) {
		panel := "1. Flavor\nA\nB\n2. Size\nS\nM"

		groups := ParsePanelText(panel)
		require.Len(t, groups, 2)
		assert.Equal(t, "Flavor", groups[0].Name)
		assert.Equal(t, []string{"A", "B"}, groups[0].Values)
		assert.Equal(t, "Size", groups[1].Name)
		assert.Equal(t, []string{"S", "M"}, groups[1].Values)
	})

	t.Run("korean panel with required tag and surcharges", func(t *testing.T) {
		panel := `1. 쿠키 선택 (필수)
초코 (+1,000원)
바닐라
15,000원
2. 포장 선택
선물 포장
옵션을 선택해주세요
확인`

		groups := ParsePanelText(panel)
		require.Len(t, groups, 2)
		assert.Equal(t, "쿠키 선택", groups[0].Name)
		assert.Equal(t, []string{"초코", "바닐라"}, groups[0].Values)
		assert.Equal(t, "포장 선택", groups[1].Name)
		assert.Equal(t, []string{"선물 포장"}, groups[1].Values)
	})

	t.Run("selection line without number is a header", func(t *testing.T) {
		groups := ParsePanelText("색상 선택\n빨강\n파랑")
		require.Len(t, groups, 1)
		assert.Equal(t, "색상 선택", groups[0].Name)
		assert.Equal(t, []string{"빨강", "파랑"}, groups[0].Values)
	})

	t.Run("values before any header are dropped", func(t *testing.T) {
		groups := ParsePanelText("떠돌이 값\n1. 색상\n빨강")
		require.Len(t, groups, 1)
		assert.Equal(t, []string{"빨강"}, groups[0].Values)
	})

	t.Run("repeated header merges into one group", func(t *testing.T) {
		groups := ParsePanelText("1. 색상\n빨강\n1. 색상\n빨강\n파랑")
		require.Len(t, groups, 1)
		assert.Equal(t, []string{"빨강", "파랑"}, groups[0].Values)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, ParsePanelText(""))
	})
}

func TestParseGroupHeader(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected string
		ok       bool
	}{
		{"numbered", "1. 쿠키 선택 (필수)", "쿠키 선택", true},
		{"numbered latin", "2. Flavor", "Flavor", true},
		{"selection keyword", "포장 선택", "포장 선택", true},
		{"prompt is not a header", "옵션을 선택해주세요", "", false},
		{"price line is not a header", "3. 15,000원", "", false},
		{"purchase line is not a header", "구매 선택", "", false},
		{"plain value", "초코", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, ok := parseGroupHeader(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, name)
		})
	}
}

func TestParseOptionValue(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected string
		ok       bool
	}{
		{"plain value", "초코", "초코", true},
		{"strips surcharge", "선물 포장 (+2,000원)", "선물 포장", true},
		{"price only rejected", "15,000원", "", false},
		{"bare number rejected", "15,000", "", false},
		{"noise rejected", "장바구니 담기", "", false},
		{"quantity rejected", "수량 1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, ok := parseOptionValue(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestParseFallbackText(t *testing.T) {
	text := "색상 선택: 빨강\n색상 선택: 파랑\n사이즈 선택: Large"

	groups := ParseFallbackText(text)
	require.Len(t, groups, 2)
	assert.Equal(t, "색상 선택", groups[0].Name)
	assert.Equal(t, []string{"빨강", "파랑"}, groups[0].Values)
	assert.Equal(t, "사이즈 선택", groups[1].Name)
	assert.Equal(t, []string{"Large"}, groups[1].Values)

	assert.Empty(t, ParseFallbackText("옵션이 없는 작품입니다"))
}

func TestHeaderClickUsesSubstringMatch(t *testing.T) {
	// Parsed group names have the numbering and required tag stripped, so
	// the header click must substring-match the rendered line.
	rendered := []string{"1. 쿠키 선택 (필수)", "2. 포장 선택", "색상 선택 (필수)"}

	for _, line := range rendered {
		name, ok := parseGroupHeader(line)
		require.True(t, ok, line)
		assert.Contains(t, line, name, "parsed name must appear verbatim in the rendered header")

		selector := substringTextSelector(name)
		assert.Equal(t, "text="+name, selector)
		assert.NotContains(t, selector, `"`, "a quoted selector would demand an exact match and miss the header")
	}
}

func TestExactTextSelectorQuotes(t *testing.T) {
	assert.Equal(t, `text="초코"`, exactTextSelector("초코"))
}

func TestDedupeValues(t *testing.T) {
	assert.Equal(t, []string{"Red", "Blue"}, dedupeValues([]string{"Red", "Red", " ", "Blue"}))
	assert.Equal(t, []string{"a"}, dedupeValues([]string{" a ", "a"}))
	assert.Empty(t, dedupeValues(nil))
}

func TestMergeGroups(t *testing.T) {
	acc := []models.OptionGroup{{Name: "색상", Values: []string{"빨강"}}}
	harvest := []models.OptionGroup{
		{Name: "색상", Values: []string{"빨강", "파랑"}},
		{Name: "사이즈", Values: []string{"S", "S", "M"}},
	}

	merged := mergeGroups(acc, harvest)
	require.Len(t, merged, 2)
	assert.Equal(t, []string{"빨강", "파랑"}, merged[0].Values)
	assert.Equal(t, "사이즈", merged[1].Name)
	assert.Equal(t, []string{"S", "M"}, merged[1].Values)
}
