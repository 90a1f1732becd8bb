package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shagene/Yu-Gi-Oh-Cards-Spreadsheet-Maker/internal/models"
)

const (
	DefaultBaseURL      = "https://db.ygoprodeck.com/api/v7/cardinfo.php"
	DefaultImageBaseURL = "https://images.ygoprodeck.com/images/cards"
)

// ErrTransport marks failures to reach the catalog or non-2xx answers from it.
var ErrTransport = errors.New("catalog unreachable")

// Filter selects cards whose name or description contains the given text.
// Empty fields are ignored; when both are set a backend matches either.
type Filter struct {
	Name        string
	Description string
}

// Page is one ranged read from a card source. Raw counts every item the
// source returned, including items that could not be normalized, so that
// callers can tell a short page from a page with bad rows.
type Page struct {
	Cards []models.Card
	Raw   int
}

// Client talks to a YGOPRODeck style card catalog.
type Client struct {
	BaseURL      string
	ImageBaseURL string
	HTTPClient   *http.Client
}

// NewClient creates a new catalog client
func NewClient(baseURL, imageBaseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if imageBaseURL == "" {
		imageBaseURL = DefaultImageBaseURL
	}
	return &Client{
		BaseURL:      baseURL,
		ImageBaseURL: imageBaseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchPage reads limit cards starting at offset, ordered by name.
func (c *Client) FetchPage(ctx context.Context, offset, limit int) (Page, error) {
	params := url.Values{}
	params.Set("num", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("sort", "name")
	return c.get(ctx, params)
}

// Query returns the cards matching one filter. The remote service only
// honours one filter per request; Name wins when both are set.
func (c *Client) Query(ctx context.Context, f Filter) ([]models.Card, error) {
	params := url.Values{}
	switch {
	case f.Name != "":
		params.Set("fname", f.Name)
	case f.Description != "":
		params.Set("desc", f.Description)
	default:
		return nil, nil
	}
	page, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	return page.Cards, nil
}

// FetchAll downloads the whole catalog in one request.
func (c *Client) FetchAll(ctx context.Context) ([]models.Card, error) {
	page, err := c.get(ctx, url.Values{})
	if err != nil {
		return nil, err
	}
	return page.Cards, nil
}

// CanonicalImageURL is the catalog's own image endpoint for a card id.
func (c *Client) CanonicalImageURL(id int64) string {
	return fmt.Sprintf("%s/%d.jpg", c.ImageBaseURL, id)
}

func (c *Client) get(ctx context.Context, params url.Values) (Page, error) {
	reqURL := c.BaseURL
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	slog.Debug("Fetching from catalog", "url", reqURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("failed to create catalog request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, fmt.Errorf("%w: failed to read response: %v", ErrTransport, err)
	}

	var envelope struct {
		Data  []json.RawMessage `json:"data"`
		Error string            `json:"error"`
	}
	decodeErr := json.Unmarshal(body, &envelope)

	if resp.StatusCode != http.StatusOK {
		// The catalog answers "no match" and "offset past the end" with a 400
		// carrying an error message. That is an empty result, not an outage.
		if resp.StatusCode == http.StatusBadRequest && decodeErr == nil && envelope.Error != "" {
			slog.Debug("Catalog returned no cards", "reason", envelope.Error)
			return Page{}, nil
		}
		return Page{}, fmt.Errorf("%w: catalog returned status %d: %s", ErrTransport, resp.StatusCode, truncate(body, 200))
	}

	if decodeErr != nil || envelope.Data == nil {
		slog.Warn("Malformed catalog response, treating as empty", "url", reqURL, "err", decodeErr)
		return Page{}, nil
	}

	page := Page{
		Cards: make([]models.Card, 0, len(envelope.Data)),
		Raw:   len(envelope.Data),
	}
	for _, raw := range envelope.Data {
		card, err := Normalize(raw)
		if err != nil {
			slog.Warn("Skipping malformed catalog item", "err", err)
			continue
		}
		page.Cards = append(page.Cards, card)
	}
	return page, nil
}

// Normalize converts one raw catalog item into a Card. The item itself is
// kept, compacted, as the card's RawData.
func Normalize(raw json.RawMessage) (models.Card, error) {
	var item struct {
		ID         int64  `json:"id"`
		Name       string `json:"name"`
		Type       string `json:"type"`
		Desc       string `json:"desc"`
		CardImages []struct {
			ImageURL string `json:"image_url"`
		} `json:"card_images"`
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return models.Card{}, fmt.Errorf("failed to decode catalog item: %w", err)
	}
	if item.ID == 0 || item.Name == "" {
		return models.Card{}, fmt.Errorf("catalog item missing id or name")
	}

	imageURL := ""
	if len(item.CardImages) > 0 {
		imageURL = item.CardImages[0].ImageURL
	}

	compact, err := json.Marshal(raw)
	if err != nil {
		return models.Card{}, fmt.Errorf("failed to re-encode catalog item: %w", err)
	}

	return models.Card{
		ID:          item.ID,
		Name:        item.Name,
		Category:    item.Type,
		Description: item.Desc,
		RawData:     string(compact),
		ImageURL:    imageURL,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
