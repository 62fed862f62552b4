package imagecache

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultMaxBytes bounds how much of a single image is read.
const DefaultMaxBytes = 20 << 20

// Fetcher retrieves raw image bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher reads http(s) URLs, data URLs and local files.
type HTTPFetcher struct {
	Client *http.Client
	// BaseDir confines relative and file:// paths. When empty, paths are
	// read as given.
	BaseDir string
	// BaseURL is tried for paths not found under BaseDir. Without BaseDir,
	// absolute paths never fall back.
	BaseURL  string
	MaxBytes int64
}

// NewHTTPFetcher returns a fetcher whose HTTP requests time out after timeout.
func NewHTTPFetcher(baseDir, baseURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		Client:   &http.Client{Timeout: timeout},
		BaseDir:  baseDir,
		BaseURL:  baseURL,
		MaxBytes: DefaultMaxBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, raw string) ([]byte, error) {
	switch {
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return f.get(ctx, raw)
	case strings.HasPrefix(raw, "data:"):
		return decodeDataURL(raw)
	case strings.HasPrefix(raw, "file://"):
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse file url: %w", err)
		}
		return f.readFile(u.Path)
	}

	// Under BaseDir a leading slash is rooted at BaseDir, so such paths are
	// as relative as any other.
	data, err := f.readFile(raw)
	if err == nil || f.BaseURL == "" || (f.BaseDir == "" && filepath.IsAbs(raw)) {
		return data, err
	}
	return f.get(ctx, strings.TrimRight(f.BaseURL, "/")+"/"+strings.TrimLeft(raw, "/"))
}

func (f *HTTPFetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: status %d", u, resp.StatusCode)
	}
	return f.readAll(resp.Body)
}

func (f *HTTPFetcher) readFile(p string) ([]byte, error) {
	if f.BaseDir != "" {
		// Rooting the path before cleaning keeps ".." from leaving BaseDir.
		p = filepath.Join(f.BaseDir, filepath.Clean("/"+filepath.FromSlash(p)))
	}
	file, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()
	return f.readAll(file)
}

func (f *HTTPFetcher) readAll(r io.Reader) ([]byte, error) {
	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("image larger than %d bytes", limit)
	}
	return data, nil
}

// decodeDataURL handles base64 "data:image/...;base64," URLs.
func decodeDataURL(raw string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, errors.New("unsupported data url")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	return data, nil
}
