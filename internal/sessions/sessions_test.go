package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/catalog"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

type oneCard struct{}

func (oneCard) FetchPage(ctx context.Context, offset, limit int) (catalog.Page, error) {
	if offset > 0 {
		return catalog.Page{}, nil
	}
	return catalog.Page{Cards: []models.Card{{ID: 1, Name: "Kuriboh"}}, Raw: 1}, nil
}

func TestSessionsAreIndependent(t *testing.T) {
	store := New(oneCard{}, 20)
	a := store.Create()
	b := store.Create()
	require.NotEqual(t, a.ID, b.ID)

	page, err := a.Pager.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Len(t, page.Records, 1)
	assert.Zero(t, b.Pager.Seen(), "each session owns its seen set")

	a.Editor.AddStep()
	assert.Empty(t, b.Editor.Composition())

	got, ok := store.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Len(t, store.GetAll(), 2)

	store.Delete(a.ID)
	_, ok = store.Get(a.ID)
	assert.False(t, ok)
}

func TestExpire(t *testing.T) {
	store := New(oneCard{}, 20)
	old := store.Create()
	old.CreatedAt = time.Now().Add(-2 * time.Hour)
	fresh := store.Create()

	assert.Equal(t, 1, store.Expire(time.Now().Add(-time.Hour)))
	_, ok := store.Get(fresh.ID)
	assert.True(t, ok)
	_, ok = store.Get(old.ID)
	assert.False(t, ok)
}
