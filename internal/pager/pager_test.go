package pager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/catalog"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSource serves fixed pages keyed by offset.
type fakeSource struct {
	mu      sync.Mutex
	pages   map[int][]int64
	fail    map[int]error
	calls   []int
	release chan struct{}
	fetches atomic.Int32
}

func (f *fakeSource) FetchPage(ctx context.Context, offset, limit int) (catalog.Page, error) {
	f.fetches.Add(1)
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, offset)
	if err, ok := f.fail[offset]; ok {
		delete(f.fail, offset)
		return catalog.Page{}, err
	}
	ids := f.pages[offset]
	cards := make([]models.Card, 0, len(ids))
	for _, id := range ids {
		cards = append(cards, models.Card{ID: id})
	}
	return catalog.Page{Cards: cards, Raw: len(ids)}, nil
}

func ids(cards []models.Card) []int64 {
	out := make([]int64, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.ID)
	}
	return out
}

func TestLoadNextPageSkipsDuplicatePages(t *testing.T) {
	src := &fakeSource{pages: map[int][]int64{
		0: {1, 2, 3},
		3: {1, 2, 3},
		6: {4, 1, 2},
		9: {5},
	}}
	p := New(src, 3)
	ctx := context.Background()

	page, err := p.LoadNextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids(page.Records))
	assert.False(t, page.Exhausted)

	page, err = p.LoadNextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ids(page.Records), "duplicate page is retried inside the call")
	assert.False(t, page.Exhausted)
	assert.Equal(t, []int{0, 3, 6}, src.calls)

	page, err = p.LoadNextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, ids(page.Records))
	assert.True(t, page.Exhausted, "short page is final")

	page, err = p.LoadNextPage(ctx)
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.True(t, page.Exhausted)
	assert.Len(t, src.calls, 4, "no fetch after exhaustion")
	assert.Equal(t, 5, p.Seen())
}

func TestLoadNextPageEmptyPageExhausts(t *testing.T) {
	src := &fakeSource{pages: map[int][]int64{0: {1, 2}}}
	p := New(src, 2)

	page, err := p.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.False(t, page.Exhausted, "a full page is not final")

	page, err = p.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.True(t, page.Exhausted)
}

func TestLoadNextPageDuplicatesWithinPage(t *testing.T) {
	src := &fakeSource{pages: map[int][]int64{0: {7, 7, 8}}}
	p := New(src, 3)

	page, err := p.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8}, ids(page.Records))
}

func TestLoadNextPageFailureLeavesStateUnchanged(t *testing.T) {
	boom := errors.New("connection reset")
	src := &fakeSource{
		pages: map[int][]int64{0: {1, 2}, 2: {1, 2}, 4: {3}},
		fail:  map[int]error{4: boom},
	}
	p := New(src, 2)
	ctx := context.Background()

	_, err := p.LoadNextPage(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, p.Cursor())

	_, err = p.LoadNextPage(ctx)
	require.Error(t, err)
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, 4, fetchErr.Offset)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, p.Cursor(), "cursor not advanced by a failed call")
	assert.Equal(t, 2, p.Seen())
	assert.False(t, p.Exhausted())

	page, err := p.LoadNextPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids(page.Records))
	assert.True(t, page.Exhausted)
	assert.Equal(t, []int{0, 2, 4, 2, 4}, src.calls, "retry resumes at the same cursor")
}

func TestLoadNextPageCoalescesConcurrentCalls(t *testing.T) {
	src := &fakeSource{
		pages:   map[int][]int64{0: {1, 2}},
		release: make(chan struct{}),
	}
	p := New(src, 2)

	var wg sync.WaitGroup
	results := make([]Page, 2)
	load := func(i int) {
		defer wg.Done()
		page, err := p.LoadNextPage(context.Background())
		assert.NoError(t, err)
		results[i] = page
	}

	wg.Add(2)
	go load(0)
	// The first fetch is blocked on release; the second caller joins it.
	require.Eventually(t, func() bool { return src.fetches.Load() == 1 }, time.Second, time.Millisecond)
	go load(1)
	time.Sleep(50 * time.Millisecond)

	_, err := p.TryLoadNextPage(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(src.release)
	wg.Wait()

	assert.Equal(t, int32(1), src.fetches.Load(), "only one fetch in flight")
	assert.Equal(t, results[0], results[1])
	assert.Equal(t, 1, p.Cursor())
}

func TestReset(t *testing.T) {
	src := &fakeSource{pages: map[int][]int64{0: {1}}}
	p := New(src, 2)

	_, err := p.LoadNextPage(context.Background())
	require.NoError(t, err)
	require.True(t, p.Exhausted())

	p.Reset()
	assert.False(t, p.Exhausted())
	assert.Zero(t, p.Cursor())

	page, err := p.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(page.Records), "seen ids are forgotten")
}

func TestResetDuringFetchDropsTheLoad(t *testing.T) {
	src := &fakeSource{pages: map[int][]int64{0: {1, 2}, 2: {3, 4}}}
	p := New(src, 2)

	_, err := p.LoadNextPage(context.Background())
	require.NoError(t, err)

	src.release = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := p.LoadNextPage(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return src.fetches.Load() == 2 }, time.Second, time.Millisecond)

	p.Reset()
	close(src.release)
	assert.ErrorIs(t, <-done, ErrReset)

	assert.Zero(t, p.Cursor(), "the overtaken load does not move the cursor")
	assert.Zero(t, p.Seen())
	assert.False(t, p.Exhausted())

	page, err := p.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(page.Records), "first page is served again after reset")
}
