package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"VideoPipeline-server/apperr"
)

// Fetcher downloads a non-mock asset URL to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dst string) error
}

// HTTPFetcher fetches over HTTP(S) and refuses bodies larger than MaxBytes.
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

func NewHTTPFetcher(maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{
		Client:   &http.Client{Timeout: 2 * time.Minute},
		MaxBytes: maxBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperr.Wrap(apperr.ErrValidation, "render", "fetch", url, err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer out.Close()

	var body io.Reader = resp.Body
	if f.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.MaxBytes+1)
	}
	n, err := io.Copy(out, body)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	if f.MaxBytes > 0 && n > f.MaxBytes {
		return apperr.Wrap(apperr.ErrValidation, "render", "fetch",
			fmt.Sprintf("%s exceeds %d bytes", url, f.MaxBytes), nil)
	}
	return out.Close()
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
