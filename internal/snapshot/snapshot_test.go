package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/catalog"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

var cards = []models.Card{
	{ID: 89631139, Name: "Blue-Eyes White Dragon", Category: "Normal Monster", Description: "This legendary dragon.", RawData: `{"atk":3000}`, ImageURL: "https://img/89631139.jpg"},
	{ID: 46986414, Name: "Dark Magician", Category: "Normal Monster", Description: "The ultimate wizard.", RawData: `{"atk":2500}`},
	{ID: 40640057, Name: "Kuriboh", Category: "Effect Monster", Description: "Discard this card."},
}

func TestWriteAndLoad(t *testing.T) {
	for _, name := range []string{"cards.parquet", "cards.jsonl"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out", name)
			require.NoError(t, Write(path, cards))

			got, err := NewLoader(path).Load()
			require.NoError(t, err)
			if diff := cmp.Diff(cards, got); diff != "" {
				t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
			}

			sample, err := NewLoader(path).LoadSample(2)
			require.NoError(t, err)
			assert.Len(t, sample, 2)
		})
	}
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := NewLoader("cards.csv").Load()
	assert.Error(t, err)
	assert.Error(t, Write(filepath.Join(t.TempDir(), "cards.csv"), cards))
}

func TestIndex(t *testing.T) {
	x := NewIndex(cards)
	ctx := context.Background()
	require.Equal(t, 3, x.Len())

	page, err := x.FetchPage(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, "Blue-Eyes White Dragon", page.Cards[0].Name)
	assert.Equal(t, 2, page.Raw)

	page, err = x.FetchPage(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Raw)

	page, err = x.FetchPage(ctx, 5, 2)
	require.NoError(t, err)
	assert.Zero(t, page.Raw)

	found, err := x.Query(ctx, catalog.Filter{Name: "DARK", Description: "dragon"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Blue-Eyes White Dragon", found[0].Name)
	assert.Equal(t, "Dark Magician", found[1].Name)
}
