// Package search implements the debounced free-text card search.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"golang.org/x/sync/errgroup"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/catalog"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

// DefaultDebounce is the quiet period before a submitted query is sent.
const DefaultDebounce = 300 * time.Millisecond

// Querier runs one filtered lookup against a card backend.
type Querier interface {
	Query(ctx context.Context, f catalog.Filter) ([]models.Card, error)
}

// Result is what a submitted query resolves to. Notice is set when the
// lookup failed; Cards is then empty. Seq is the sequence number of the
// submission answered: the value Submit returned, or the number an HTTP
// client sent with its request.
type Result struct {
	Seq    uint64        `json:"seq,omitempty"`
	Query  string        `json:"query"`
	Cards  []models.Card `json:"cards"`
	Notice string        `json:"notice,omitempty"`
}

// Client searches by name or description. Submit is safe for concurrent use;
// only the result of the latest submission is ever delivered.
type Client struct {
	querier  Querier
	debounce func(func())
	onResult func(Result)

	mu     sync.Mutex
	token  uint64
	cancel context.CancelFunc
	closed bool
}

// New creates a search client. onResult is called from a timer goroutine, in
// submission order, and must not call back into Submit.
func New(querier Querier, quiet time.Duration, onResult func(Result)) *Client {
	if quiet <= 0 {
		quiet = DefaultDebounce
	}
	return &Client{
		querier:  querier,
		debounce: debounce.New(quiet),
		onResult: onResult,
	}
}

// Submit schedules query after the quiet period and returns its sequence
// number, which the delivered Result carries. Any earlier submission that has
// not been delivered yet is superseded and its request cancelled. After Close
// it returns 0 and nothing is scheduled.
func (c *Client) Submit(query string) uint64 {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0
	}
	c.token++
	token := c.token
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	c.debounce(func() { c.run(token, query) })
	return token
}

// Close cancels the in-flight query and drops every pending one.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.token++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Client) run(token uint64, query string) {
	c.mu.Lock()
	if token != c.token {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	cards, err := c.Search(ctx, query)
	res := Result{Seq: token, Query: query, Cards: cards}
	if err != nil {
		res.Cards = []models.Card{}
		res.Notice = "Search is unavailable right now, please try again."
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.token {
		slog.Debug("Discarding stale search result", "query", query)
		return
	}
	c.cancel = nil
	if err != nil {
		slog.Warn("Search failed", "query", query, "err", err)
	}
	if c.onResult != nil {
		c.onResult(res)
	}
}

// Search looks query up by name and by description in parallel and returns
// the merged matches. A blank query returns no cards without any lookup;
// otherwise the query is matched as typed, surrounding spaces included.
func (c *Client) Search(ctx context.Context, query string) ([]models.Card, error) {
	if strings.TrimSpace(query) == "" {
		return []models.Card{}, nil
	}

	var byName, byDesc []models.Card
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cards, err := c.querier.Query(gctx, catalog.Filter{Name: query})
		byName = cards
		return err
	})
	g.Go(func() error {
		cards, err := c.querier.Query(gctx, catalog.Filter{Description: query})
		byDesc = cards
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	return Merge(query, byName, byDesc), nil
}

// Merge concatenates result lists, keeps the first card per id and drops
// anything that does not match query.
func Merge(query string, lists ...[]models.Card) []models.Card {
	seen := make(map[int64]struct{})
	out := []models.Card{}
	for _, list := range lists {
		for _, card := range list {
			if _, dup := seen[card.ID]; dup {
				continue
			}
			if !Matches(card, query) {
				continue
			}
			seen[card.ID] = struct{}{}
			out = append(out, card)
		}
	}
	return out
}

// Matches reports whether query occurs in the card's name or description,
// ignoring case.
func Matches(card models.Card, query string) bool {
	if strings.TrimSpace(query) == "" {
		return false
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(card.Name), q) ||
		strings.Contains(strings.ToLower(card.Description), q)
}
