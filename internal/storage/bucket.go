// Package storage uploads attachment objects to the backend's storage
// bucket over its HTTP API and resolves their public URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/whisperwave/whisperwave/internal/repository"
)

const defaultHTTPTimeout = 30 * time.Second

type BucketClient struct {
	baseURL string
	bucket  string
	token   string
	httpc   *http.Client
}

var _ repository.BlobStore = (*BucketClient)(nil)

func NewBucketClient(baseURL, bucket, token string) *BucketClient {
	return &BucketClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
		token:   token,
		httpc:   &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Upload stores the object under key and returns its public URL.
// onProgress, when non-nil, is called with non-decreasing percentages:
// 0 before the request, request-body progress up to 99 while streaming,
// and 100 only after the server acknowledged the object.
func (c *BucketClient) Upload(ctx context.Context, key, contentType string, data []byte, onProgress func(int)) (string, error) {
	if onProgress != nil {
		onProgress(0)
	}

	body := &progressReader{
		r:      bytes.NewReader(data),
		total:  len(data),
		report: onProgress,
	}

	endpoint := fmt.Sprintf("%s/object/%s/%s", c.baseURL, c.bucket, escapeKey(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("storage upload: %w", err)
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "max-age=3600")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("storage upload: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if onProgress != nil {
		onProgress(100)
	}
	return c.PublicURL(key), nil
}

// PublicURL returns the durable public URL for an object key.
func (c *BucketClient) PublicURL(key string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", c.baseURL, c.bucket, escapeKey(key))
}

// escapeKey escapes each path segment while keeping the separators.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// progressReader reports monotonically non-decreasing completion
// percentages while the request body streams out. It caps at 99: the
// final 100 is reported only once the server confirmed the upload.
type progressReader struct {
	r      io.Reader
	total  int
	read   int
	last   int
	report func(int)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.read += n
	if p.report != nil && p.total > 0 {
		pct := p.read * 100 / p.total
		if pct > 99 {
			pct = 99
		}
		if pct > p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}
