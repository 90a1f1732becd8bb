package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ObjectStore is a BlobStore over a storage bucket with an object REST API.
// Reads go through the public object URLs the resolver's cached tier points
// at; uploads are authenticated with the service key.
type ObjectStore struct {
	BaseURL    string
	Bucket     string
	Key        string
	HTTPClient *http.Client
}

// NewObjectStore creates a store for bucket under the storage endpoint baseURL.
func NewObjectStore(baseURL, bucket, key string) *ObjectStore {
	return &ObjectStore{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Bucket:  bucket,
		Key:     key,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (o *ObjectStore) publicURL(id int64) string {
	return fmt.Sprintf("%s/%d.jpg", ObjectBaseURL(o.BaseURL, o.Bucket), id)
}

func (o *ObjectStore) uploadURL(id int64) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%d.jpg", o.BaseURL, o.Bucket, id)
}

func (o *ObjectStore) Has(ctx context.Context, id int64) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, o.publicURL(id), nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to check image %d: %w", id, err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest:
		// the storage API answers 400 for a missing public object
		return false, nil
	default:
		return false, fmt.Errorf("object store returned status %d for image %d", resp.StatusCode, id)
	}
}

func (o *ObjectStore) Get(ctx context.Context, id int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.publicURL(id), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image %d: %w", id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest:
		return nil, "", ErrNotFound
	default:
		return nil, "", fmt.Errorf("object store returned status %d for image %d", resp.StatusCode, id)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image %d: %w", id, err)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image %d larger than %d bytes", id, maxImageBytes)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}

// Put uploads data, replacing any object already stored under id.
func (o *ObjectStore) Put(ctx context.Context, id int64, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.uploadURL(id), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+o.Key)
	req.Header.Set("apikey", o.Key)
	req.Header.Set("x-upsert", "true")

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload image %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upload of image %d returned status %d: %s", id, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
