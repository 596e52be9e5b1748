package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Mirror copies provider images into the bucket so saved websites do not
// depend on short lived provider URLs.
type Mirror struct {
	store  ObjectStore
	http   *http.Client
	prefix string
}

func NewMirror(store ObjectStore, prefix string) *Mirror {
	if prefix == "" {
		prefix = "generated"
	}
	return &Mirror{
		store:  store,
		http:   &http.Client{Timeout: 30 * time.Second},
		prefix: prefix,
	}
}

func (m *Mirror) Mirror(ctx context.Context, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage: fetch %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("storage: fetch %s: status %d", sourceURL, resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if err := ValidateUpload(ct, max(resp.ContentLength, 0)); err != nil {
		return "", fmt.Errorf("storage: %w", err)
	}

	key := fmt.Sprintf("%s/%s.%s", m.prefix, uuid.NewString(), Extension("", ct))
	body := io.LimitReader(resp.Body, MaxUploadSize)
	if err := m.store.Put(ctx, key, body, resp.ContentLength, ct); err != nil {
		return "", err
	}
	return m.store.URL(key), nil
}
