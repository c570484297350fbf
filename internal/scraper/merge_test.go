package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idus-tools/product-translator/internal/models"
)

func TestMergeRecordsStructuredWins(t *testing.T) {
	structured := Partial{
		Title:      "수제 쿠키 세트",
		ArtistName: "쿠키공방",
		Price:      "18,000원",
		Options:    []models.OptionGroup{{Name: "맛", Values: []string{"초코"}}},
		Images:     []string{"https://image.idus.com/image/files/abc123def.jpg"},
	}
	dom := Partial{
		Title:      "DOM title",
		ArtistName: "DOM artist",
		Price:      "9,000원",
		Options:    []models.OptionGroup{{Name: "dom", Values: []string{"x"}}},
		Images:     []string{"https://image.idus.com/image/files/feedbeef01.jpg"},
	}

	record := MergeRecords("https://idus.com/w/product/1", structured, dom)

	assert.Equal(t, "https://idus.com/w/product/1", record.URL)
	assert.Equal(t, "수제 쿠키 세트", record.Title)
	assert.Equal(t, "쿠키공방", record.ArtistName)
	assert.Equal(t, "18,000원", record.Price)
	assert.Equal(t, structured.Options, record.Options)
	assert.Equal(t, structured.Images, record.Images)
}

func TestMergeRecordsDOMBacksUp(t *testing.T) {
	dom := Partial{Title: "DOM title", Price: "9,000원"}

	record := MergeRecords("https://idus.com/w/product/1", Partial{}, dom)

	assert.Equal(t, "DOM title", record.Title)
	assert.Equal(t, "9,000원", record.Price)
	assert.Equal(t, models.NoArtistName, record.ArtistName)
}

func TestMergeRecordsSentinelsCloseGaps(t *testing.T) {
	record := MergeRecords("https://idus.com/w/product/1", Partial{}, Partial{})

	assert.Equal(t, models.NoTitle, record.Title)
	assert.Equal(t, models.NoArtistName, record.ArtistName)
	assert.Equal(t, models.NoPrice, record.Price)
	assert.Equal(t, models.NoDescription, record.Description)

	// Collections come back empty, never nil.
	require.NotNil(t, record.Options)
	require.NotNil(t, record.Images)
	require.NotNil(t, record.ImageTexts)
	assert.Empty(t, record.Options)
	assert.Empty(t, record.Images)
}

func TestMergeRecordsDescriptionLength(t *testing.T) {
	short := strings.Repeat("s", 200)
	slightlyLonger := strings.Repeat("d", 250)
	muchLonger := strings.Repeat("d", 400)

	t.Run("marginally longer DOM loses", func(t *testing.T) {
		record := MergeRecords("u", Partial{Description: short}, Partial{Description: slightlyLonger})
		assert.Equal(t, short, record.Description)
	})

	t.Run("substantially longer DOM wins", func(t *testing.T) {
		record := MergeRecords("u", Partial{Description: short}, Partial{Description: muchLonger})
		assert.Equal(t, muchLonger, record.Description)
	})

	t.Run("only DOM present", func(t *testing.T) {
		record := MergeRecords("u", Partial{}, Partial{Description: short})
		assert.Equal(t, short, record.Description)
	})
}
