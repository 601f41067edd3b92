package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"tryon-studio/internal/tryon"
)

const maxImageBytes = 20 << 20

type Fetcher struct {
	HTTPClient *http.Client
}

func (f Fetcher) Fetch(ctx context.Context, e Entry) (tryon.UploadedImage, error) {
	ref := strings.TrimSpace(e.ImageReference)
	switch {
	case strings.HasPrefix(ref, "data:"):
		return tryon.ParseUploadedImage(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return f.download(ctx, ref)
	default:
		return tryon.UploadedImage{}, fmt.Errorf("catalog entry %q: unsupported image reference", e.ID)
	}
}

func (f Fetcher) download(ctx context.Context, url string) (tryon.UploadedImage, error) {
	if f.HTTPClient == nil {
		return tryon.UploadedImage{}, errors.New("http client is nil")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return tryon.UploadedImage{}, err
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return tryon.UploadedImage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return tryon.UploadedImage{}, fmt.Errorf("catalog image download %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return tryon.UploadedImage{}, err
	}
	if len(data) > maxImageBytes {
		return tryon.UploadedImage{}, fmt.Errorf("catalog image exceeds %d bytes", maxImageBytes)
	}
	if len(data) == 0 {
		return tryon.UploadedImage{}, tryon.ErrMissingImage
	}

	return tryon.NewUploadedImage(data, resp.Header.Get("content-type")), nil
}
