// Package images picks the best available image for a card, falling back
// through progressively less preferred sources.
package images

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

// Tier names an image source. Tiers are tried in the order listed.
type Tier string

const (
	TierCached      Tier = "cached"
	TierNominal     Tier = "nominal"
	TierCanonical   Tier = "canonical"
	TierPlaceholder Tier = "placeholder"
)

var tiers = []Tier{TierCached, TierNominal, TierCanonical, TierPlaceholder}

const DefaultPlaceholderURL = "https://dummyimage.com/96x140/000/fff"

// Options configure where each tier points.
type Options struct {
	// LocalDir holds bundled <id>.jpg files, served under LocalPrefix.
	LocalDir    string
	LocalPrefix string
	// ObjectBaseURL is the public object endpoint of the image bucket. When
	// set it takes the cached tier instead of LocalDir.
	ObjectBaseURL string
	// CanonicalBaseURL is the catalog's own image endpoint.
	CanonicalBaseURL string
	PlaceholderURL   string
}

// ObjectBaseURL builds the public object endpoint for a storage bucket.
func ObjectBaseURL(storageURL, bucket string) string {
	if storageURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s", strings.TrimSuffix(storageURL, "/"), bucket)
}

// Candidate is an image location for one card.
type Candidate struct {
	Tier Tier   `json:"tier"`
	URL  string `json:"url"`
}

// Resolver remembers, per card id, which tiers failed to load.
type Resolver struct {
	opts       Options
	HTTPClient *http.Client

	mu     sync.Mutex
	failed map[int64]map[Tier]struct{}
}

// NewResolver creates a resolver with the given tier locations.
func NewResolver(opts Options) *Resolver {
	if opts.PlaceholderURL == "" {
		opts.PlaceholderURL = DefaultPlaceholderURL
	}
	if opts.LocalPrefix == "" {
		opts.LocalPrefix = "/card_images"
	}
	return &Resolver{
		opts: opts,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		failed: make(map[int64]map[Tier]struct{}),
	}
}

// URL returns the address of card's image in tier, or "" when the tier has
// nothing for this card.
func (r *Resolver) URL(card models.Card, tier Tier) string {
	switch tier {
	case TierCached:
		if r.opts.ObjectBaseURL != "" {
			return fmt.Sprintf("%s/%d.jpg", strings.TrimSuffix(r.opts.ObjectBaseURL, "/"), card.ID)
		}
		if r.opts.LocalDir != "" {
			return fmt.Sprintf("%s/%d.jpg", strings.TrimSuffix(r.opts.LocalPrefix, "/"), card.ID)
		}
	case TierNominal:
		return card.ImageURL
	case TierCanonical:
		if r.opts.CanonicalBaseURL != "" {
			return fmt.Sprintf("%s/%d.jpg", strings.TrimSuffix(r.opts.CanonicalBaseURL, "/"), card.ID)
		}
	case TierPlaceholder:
		return r.opts.PlaceholderURL
	}
	return ""
}

// Candidate returns the first tier not yet marked failed for card. It does no
// I/O; the placeholder is always available.
func (r *Resolver) Candidate(card models.Card) Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tier := range tiers {
		if _, bad := r.failed[card.ID][tier]; bad {
			continue
		}
		if url := r.URL(card, tier); url != "" {
			return Candidate{Tier: tier, URL: url}
		}
	}
	return Candidate{Tier: TierPlaceholder, URL: r.opts.PlaceholderURL}
}

// MarkFailed records that tier could not be loaded for card id. Marking the
// placeholder has no effect.
func (r *Resolver) MarkFailed(id int64, tier Tier) {
	if tier == TierPlaceholder {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.failed[id]
	if !ok {
		set = make(map[Tier]struct{})
		r.failed[id] = set
	}
	set[tier] = struct{}{}
	slog.Debug("Image tier marked failed", "card_id", id, "tier", tier)
}

// Forget clears a failure so the tier is tried again.
func (r *Resolver) Forget(id int64, tier Tier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failed[id], tier)
	if len(r.failed[id]) == 0 {
		delete(r.failed, id)
	}
}

// Resolve walks the tiers, checking each candidate exists before settling on
// it. Tiers that fail the check are marked so later calls skip them.
func (r *Resolver) Resolve(ctx context.Context, card models.Card) Candidate {
	for {
		c := r.Candidate(card)
		if c.Tier == TierPlaceholder {
			return c
		}
		if err := r.verify(ctx, card, c); err != nil {
			slog.Debug("Image check failed", "card_id", card.ID, "tier", c.Tier, "err", err)
			if ctx.Err() != nil {
				return Candidate{Tier: TierPlaceholder, URL: r.opts.PlaceholderURL}
			}
			r.MarkFailed(card.ID, c.Tier)
			continue
		}
		return c
	}
}

func (r *Resolver) verify(ctx context.Context, card models.Card, c Candidate) error {
	if c.Tier == TierCached && r.opts.ObjectBaseURL == "" {
		_, err := os.Stat(r.localPath(card.ID))
		return err
	}
	return r.head(ctx, c.URL)
}

func (r *Resolver) head(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create HEAD request: %w", err)
	}
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to check image: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("image check returned status %d", resp.StatusCode)
	}
	return nil
}

func (r *Resolver) localPath(id int64) string {
	return filepath.Join(r.opts.LocalDir, fmt.Sprintf("%d.jpg", id))
}
