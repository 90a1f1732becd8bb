// Package pager streams a large card source into the client one page at a
// time, suppressing records that were already handed out.
package pager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/catalog"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

// DefaultPageSize matches the batch the card grid renders at once.
const DefaultPageSize = 20

var (
	// ErrBusy is returned by TryLoadNextPage while another fetch is outstanding.
	ErrBusy = errors.New("page fetch already in flight")
	// ErrReset is returned by a load that was overtaken by Reset. Its page is
	// dropped; the next call starts from the beginning.
	ErrReset = errors.New("pager was reset during the fetch")
)

// Source is a ranged, name-ordered card source.
type Source interface {
	FetchPage(ctx context.Context, offset, limit int) (catalog.Page, error)
}

// FetchError reports a failed page read. The pager state is untouched, so
// calling LoadNextPage again retries the same offset.
type FetchError struct {
	Offset int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page at offset %d: %v", e.Offset, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Page is the outcome of one LoadNextPage call.
type Page struct {
	Records   []models.Card `json:"records"`
	Exhausted bool          `json:"exhausted"`
}

// Pager owns a page cursor and the set of ids it has already returned.
type Pager struct {
	source Source
	size   int
	group  singleflight.Group

	mu         sync.Mutex
	generation uint64
	cursor     int
	seen      map[int64]struct{}
	exhausted bool
	inFlight  bool
}

// New creates a pager reading size records per page from source.
func New(source Source, size int) *Pager {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Pager{
		source: source,
		size:   size,
		seen:   make(map[int64]struct{}),
	}
}

// LoadNextPage returns the next records not seen before. A page made only
// of duplicates is skipped inside the call, so a non-exhausted result
// always carries at least one record. Callers arriving while a fetch is in
// flight share its result; the in-flight call's context governs the fetch.
func (p *Pager) LoadNextPage(ctx context.Context) (Page, error) {
	v, err, shared := p.group.Do("next", func() (any, error) {
		return p.load(ctx)
	})
	if shared {
		slog.Debug("Coalesced page request onto in-flight fetch")
	}
	if err != nil {
		return Page{}, err
	}
	return v.(Page), nil
}

// TryLoadNextPage is LoadNextPage without coalescing: it returns ErrBusy
// instead of waiting on an outstanding fetch.
func (p *Pager) TryLoadNextPage(ctx context.Context) (Page, error) {
	p.mu.Lock()
	busy := p.inFlight
	p.mu.Unlock()
	if busy {
		return Page{}, ErrBusy
	}
	return p.LoadNextPage(ctx)
}

// Reset forgets the cursor, the seen ids and exhaustion. A load still in
// flight when Reset is called returns ErrReset and changes nothing.
func (p *Pager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	p.cursor = 0
	p.seen = make(map[int64]struct{})
	p.exhausted = false
}

// Cursor returns the number of pages consumed so far.
func (p *Pager) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Seen returns how many distinct records have been returned.
func (p *Pager) Seen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

// Exhausted reports whether the source has signalled its last page.
func (p *Pager) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exhausted
}

func (p *Pager) load(ctx context.Context) (Page, error) {
	p.mu.Lock()
	if p.exhausted {
		p.mu.Unlock()
		return Page{Exhausted: true}, nil
	}
	cursor := p.cursor
	generation := p.generation
	p.inFlight = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight = false
		p.mu.Unlock()
	}()

	// Work on a private cursor and id set; nothing is committed until the
	// call succeeds.
	fresh := make(map[int64]struct{})
	var records []models.Card

	for {
		offset := cursor * p.size
		if err := ctx.Err(); err != nil {
			return Page{}, &FetchError{Offset: offset, Err: err}
		}

		page, err := p.source.FetchPage(ctx, offset, p.size)
		if err != nil {
			slog.Warn("Page fetch failed", "offset", offset, "err", err)
			return Page{}, &FetchError{Offset: offset, Err: err}
		}
		cursor++

		for _, card := range page.Cards {
			if _, dup := fresh[card.ID]; dup || p.wasSeen(card.ID) {
				continue
			}
			fresh[card.ID] = struct{}{}
			records = append(records, card)
		}

		exhausted := page.Raw < p.size
		if len(records) > 0 || exhausted {
			if !p.commit(generation, cursor, fresh, exhausted) {
				slog.Debug("Dropping page loaded before reset", "offset", offset)
				return Page{}, ErrReset
			}
			slog.Debug("Loaded page", "offset", offset, "new", len(records), "exhausted", exhausted)
			return Page{Records: records, Exhausted: exhausted}, nil
		}

		slog.Debug("Page held only duplicates, advancing", "offset", offset)
	}
}

func (p *Pager) wasSeen(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.seen[id]
	return ok
}

// commit applies a finished load unless a Reset happened since it started.
func (p *Pager) commit(generation uint64, cursor int, fresh map[int64]struct{}, exhausted bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if generation != p.generation {
		return false
	}
	p.cursor = cursor
	for id := range fresh {
		p.seen[id] = struct{}{}
	}
	p.exhausted = exhausted
	return true
}
