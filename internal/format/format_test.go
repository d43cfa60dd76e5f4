package format

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanhideo/tablescout/internal/search"
)

func TestUnitsSeparatesProseFromCards(t *testing.T) {
	entities := []search.Entity{
		{ID: "r1", Name: "Sakura"},
		{ID: "r2", Name: "Trattoria"},
	}

	units := Units([]string{"Here are two options for tonight."}, entities)

	require.Len(t, units, 3)
	assert.False(t, units[0].IsCard())
	assert.Equal(t, "Here are two options for tonight.", units[0].Text)
	assert.True(t, units[1].IsCard())
	assert.Equal(t, "Sakura", units[1].Card.Name)
	assert.True(t, units[2].IsCard())
	assert.Equal(t, "Trattoria", units[2].Card.Name)
}

func TestUnitsSkipsBlankFragments(t *testing.T) {
	units := Units([]string{"", "  ", "real text"}, nil)
	require.Len(t, units, 1)
	assert.Equal(t, "real text", units[0].Text)
}

func TestTextUnitExtractsAtMostTwoPhotos(t *testing.T) {
	body := "Look at these:\n" +
		"https://s3-media1.example.com/a.jpg\n" +
		"https://s3-media2.example.com/b.jpg\n" +
		"https://s3-media3.example.com/c.jpg"

	unit := TextUnit(body)
	assert.Len(t, unit.Photos, 2)
	assert.Equal(t, "https://s3-media1.example.com/a.jpg", unit.Photos[0])
	assert.NotContains(t, unit.Text, "a.jpg")
	assert.NotContains(t, unit.Text, "b.jpg")
	assert.Contains(t, unit.Text, "Look at these:")
}

func TestTruncateAddsMarker(t *testing.T) {
	long := strings.Repeat("x", MaxTextLen+100)
	out := Truncate(long)
	assert.True(t, strings.HasSuffix(out, TruncationMarker))
	assert.Len(t, out, MaxTextLen+len(TruncationMarker))

	short := "fits fine"
	assert.Equal(t, short, Truncate(short))
}

func TestTruncateNeverSplitsARune(t *testing.T) {
	// The leading byte misaligns the 4-byte emoji runes against the limit.
	long := "a" + strings.Repeat("🍣", MaxTextLen/2)
	out := Truncate(long)

	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, TruncationMarker))
	assert.True(t, len(out) <= MaxTextLen+len(TruncationMarker))
}

func TestCleanURL(t *testing.T) {
	assert.Equal(t,
		"https://www.yelp.com/biz/sakura-sushi",
		CleanURL("https://www.yelp.com/biz/sakura-sushi?adjust_creative=xyz&utm_source=abc"))
	assert.Equal(t, "https://example.com/a", CleanURL("https://example.com/a"))
}
