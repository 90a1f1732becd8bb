package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const maxImageBytes = 5 * 1024 * 1024

// Mirror copies card images from a remote endpoint into a BlobStore.
type Mirror struct {
	Store      BlobStore
	SourceURL  func(id int64) string
	HTTPClient *http.Client
	Workers    int
	Limiter    *rate.Limiter
}

// MirrorReport counts what a mirror run did.
type MirrorReport struct {
	Copied  int64 `json:"copied"`
	Skipped int64 `json:"skipped"`
	Failed  int64 `json:"failed"`
}

// NewMirror creates a mirror that fetches at most perSecond images per second.
func NewMirror(store BlobStore, sourceURL func(id int64) string, perSecond float64) *Mirror {
	if perSecond <= 0 {
		perSecond = 10
	}
	return &Mirror{
		Store:     store,
		SourceURL: sourceURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Workers: 4,
		Limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Run mirrors every id that the store does not hold yet. A failed download is
// counted and logged; only cancellation and store errors stop the run.
func (m *Mirror) Run(ctx context.Context, ids []int64) (MirrorReport, error) {
	var copied, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(m.Workers, 1))

	for _, id := range ids {
		g.Go(func() error {
			has, err := m.Store.Has(gctx, id)
			if err != nil {
				return fmt.Errorf("failed to check image %d: %w", id, err)
			}
			if has {
				skipped.Add(1)
				return nil
			}

			if err := m.Limiter.Wait(gctx); err != nil {
				return err
			}

			data, contentType, err := m.download(gctx, m.SourceURL(id))
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("Failed to download card image", "card_id", id, "err", err)
				failed.Add(1)
				return nil
			}

			if err := m.Store.Put(gctx, id, data, contentType); err != nil {
				return fmt.Errorf("failed to store image %d: %w", id, err)
			}
			copied.Add(1)
			slog.Debug("Mirrored card image", "card_id", id, "bytes", len(data))
			return nil
		})
	}

	err := g.Wait()
	report := MirrorReport{Copied: copied.Load(), Skipped: skipped.Load(), Failed: failed.Load()}
	slog.Info("Image mirror finished", "copied", report.Copied, "skipped", report.Skipped, "failed", report.Failed)
	return report, err
}

func (m *Mirror) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("unexpected content type %q", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("image is empty")
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}
