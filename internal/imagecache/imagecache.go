// Package imagecache resolves question and answer images into rasters the
// PDF canvas can embed. A Cache lives for one export call; every failure
// resolves to a nil image so callers draw a placeholder instead.
package imagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Format is an embeddable raster encoding.
type Format string

const (
	FormatPNG Format = "PNG"
	FormatJPG Format = "JPG"
)

// Placeholder dimensions in millimetres, drawn when an image is unavailable.
const (
	PlaceholderWidth  = 80.0
	PlaceholderHeight = 30.0
)

// Image is a decoded, embeddable raster.
type Image struct {
	URL    string
	Name   string // stable registration key derived from URL
	Data   []byte
	Format Format
	Width  int // pixels
	Height int // pixels
}

type entry struct {
	once sync.Once
	img  *Image
}

// Cache memoizes image lookups by URL, failures included.
type Cache struct {
	fetcher Fetcher

	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty cache backed by f.
func New(f Fetcher) *Cache {
	return &Cache{fetcher: f, entries: make(map[string]*entry)}
}

// Get returns the image at url, or nil if it cannot be fetched or decoded.
// Each URL is fetched at most once per cache.
func (c *Cache) Get(ctx context.Context, url string) *Image {
	url = strings.TrimSpace(url)
	if url == "" || c == nil {
		return nil
	}
	c.mu.Lock()
	e, ok := c.entries[url]
	if !ok {
		e = &entry{}
		c.entries[url] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.img = c.load(ctx, url)
	})
	return e.img
}

// load runs on Prefetch goroutines, so a panicking fetcher or decoder is
// contained here rather than taking down the process.
func (c *Cache) load(ctx context.Context, url string) (img *Image) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("image load panicked", "url", url, "panic", r)
			img = nil
		}
	}()
	if c.fetcher == nil {
		return nil
	}
	data, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		slog.Warn("image fetch failed", "url", url, "error", err)
		return nil
	}
	img, err = Decode(data)
	if err != nil {
		slog.Warn("image decode failed", "url", url, "error", err)
		return nil
	}
	img.URL = url
	img.Name = registrationName(url)
	return img
}

// Prefetch loads urls concurrently with at most workers fetches in flight.
// Results land in the cache; rendering order is unaffected.
func (c *Cache) Prefetch(ctx context.Context, urls []string, workers int) error {
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			continue
		}
		g.Go(func() error {
			c.Get(ctx, u)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Len reports how many URLs have been requested.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// DisplayName is the short name shown in a placeholder, e.g. "[leaf.png]".
func DisplayName(url string) string {
	u := strings.TrimSpace(url)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if strings.HasPrefix(u, "data:") {
		return "image"
	}
	base := path.Base(strings.ReplaceAll(u, "\\", "/"))
	if base == "." || base == "/" {
		return "image"
	}
	return base
}

func registrationName(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "img-" + hex.EncodeToString(sum[:8])
}

// FitToBox scales w×h uniformly so that it fits maxW×maxH. The ratio may be
// greater than one, so small images are enlarged to the box.
func FitToBox(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 || maxW <= 0 || maxH <= 0 {
		return 0, 0
	}
	ratio := min(maxW/w, maxH/h)
	return w * ratio, h * ratio
}
