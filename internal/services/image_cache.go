package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/HomeLabTec/pokemon/internal/metrics"
)

const (
	imageCacheMemEntries  = 256
	imageFetchTimeout     = 30 * time.Second
	imageCacheDefaultExt  = ".img"
	imageCacheHashLen     = 24
	imageCacheKeyPrefix   = "img_"
	imageCacheMaxBodySize = 10 << 20 // 10 MiB
)

// ImageCache stores card images on disk keyed by a digest of their source
// URL, fronted by a small in-memory LRU. Concurrent misses for the same URL
// collapse into one network fetch.
type ImageCache struct {
	dir    string
	client *http.Client
	mem    *lru.Cache[string, []byte]
	group  singleflight.Group
}

func NewImageCache(dir string) (*ImageCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image cache dir: %w", err)
	}
	mem, err := lru.New[string, []byte](imageCacheMemEntries)
	if err != nil {
		return nil, err
	}
	return &ImageCache{
		dir:    dir,
		client: &http.Client{Timeout: imageFetchTimeout},
		mem:    mem,
	}, nil
}

// CacheKey derives the stable on-disk filename for a source URL. The same
// URL always maps to the same key, so re-fetches overwrite rather than
// accumulate.
func CacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	digest := hex.EncodeToString(sum[:])[:imageCacheHashLen]
	return imageCacheKeyPrefix + digest + extensionOf(rawURL)
}

func extensionOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return imageCacheDefaultExt
	}
	ext := strings.ToLower(filepath.Ext(parsed.Path))
	if ext == "" {
		return imageCacheDefaultExt
	}
	return ext
}

// Get returns the image bytes for a source URL, fetching and caching them
// on a miss.
func (c *ImageCache) Get(ctx context.Context, rawURL string) ([]byte, error) {
	key := CacheKey(rawURL)

	if data, ok := c.mem.Get(key); ok {
		metrics.ImageCacheHits.Inc()
		return data, nil
	}

	path := filepath.Join(c.dir, key)
	if data, err := os.ReadFile(path); err == nil {
		metrics.ImageCacheHits.Inc()
		c.mem.Add(key, data)
		return data, nil
	}

	metrics.ImageCacheMisses.Inc()
	data, err, _ := c.group.Do(key, func() (any, error) {
		// Another goroutine may have filled the file while we waited.
		if data, err := os.ReadFile(path); err == nil {
			return data, nil
		}
		// The flight is shared by every waiter, so it must not die with
		// the first caller's context.
		data, err := c.fetch(context.WithoutCancel(ctx), rawURL)
		if err != nil {
			return nil, err
		}
		if err := c.store(path, data); err != nil {
			log.Printf("Image cache: failed to store %s: %v", key, err)
		}
		return data, nil
	})
	if err != nil {
		metrics.ImageCacheErrorsTotal.Inc()
		return nil, err
	}

	bytes := data.([]byte)
	c.mem.Add(key, bytes)
	return bytes, nil
}

func (c *ImageCache) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch failed: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, imageCacheMaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	return data, nil
}

// store writes atomically so a crashed write never leaves a truncated
// cache entry behind.
func (c *ImageCache) store(path string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, ".img-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
