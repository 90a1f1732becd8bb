package snapshot

import (
	"context"
	"sort"
	"strings"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/catalog"
	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

// Index serves a loaded snapshot as an offline card source, with the same
// ordering and matching as the storage backends.
type Index struct {
	cards []models.Card
}

// NewIndex sorts a copy of cards by name, then id.
func NewIndex(cards []models.Card) *Index {
	sorted := make([]models.Card, len(cards))
	copy(sorted, cards)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].ID < sorted[j].ID
	})
	return &Index{cards: sorted}
}

func (x *Index) Len() int { return len(x.cards) }

func (x *Index) FetchPage(ctx context.Context, offset, limit int) (catalog.Page, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Page{}, err
	}
	if offset >= len(x.cards) || limit <= 0 {
		return catalog.Page{}, nil
	}
	end := min(offset+limit, len(x.cards))
	cards := make([]models.Card, end-offset)
	copy(cards, x.cards[offset:end])
	return catalog.Page{Cards: cards, Raw: len(cards)}, nil
}

func (x *Index) Query(ctx context.Context, f catalog.Filter) ([]models.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.ToLower(f.Name)
	desc := strings.ToLower(f.Description)
	if name == "" && desc == "" {
		return nil, nil
	}

	var out []models.Card
	for _, c := range x.cards {
		if (name != "" && strings.Contains(strings.ToLower(c.Name), name)) ||
			(desc != "" && strings.Contains(strings.ToLower(c.Description), desc)) {
			out = append(out, c)
		}
	}
	return out, nil
}
