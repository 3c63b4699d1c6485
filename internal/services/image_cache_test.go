package services

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheKeyStable(t *testing.T) {
	url := "https://images.example.com/base1/4_hires.png"
	if CacheKey(url) != CacheKey(url) {
		t.Error("same URL must always map to the same key")
	}
	if CacheKey(url) == CacheKey(url+"?v=2") {
		t.Error("different URLs must map to different keys")
	}
}

func TestCacheKeyShape(t *testing.T) {
	tests := []struct {
		url     string
		wantExt string
	}{
		{"https://example.com/card.png", ".png"},
		{"https://example.com/card.jpg", ".jpg"},
		{"https://example.com/card.JPEG", ".jpeg"},
		{"https://example.com/card.avif", ".avif"},
		{"https://example.com/card", ".img"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			key := CacheKey(tt.url)
			if !strings.HasPrefix(key, "img_") {
				t.Errorf("key %q missing img_ prefix", key)
			}
			if !strings.HasSuffix(key, tt.wantExt) {
				t.Errorf("key %q should end with %q", key, tt.wantExt)
			}
			hash := strings.TrimSuffix(strings.TrimPrefix(key, "img_"), tt.wantExt)
			if len(hash) != 24 {
				t.Errorf("digest part is %d chars, want 24", len(hash))
			}
		})
	}
}

func TestImageCacheHitAvoidsNetwork(t *testing.T) {
	var fetches int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	cache, err := NewImageCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewImageCache: %v", err)
	}

	url := server.URL + "/card.png"
	first, err := cache.Get(context.Background(), url)
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	second, err := cache.Get(context.Background(), url)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("cached bytes differ from fetched bytes")
	}
	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Errorf("made %d network fetches, want 1", n)
	}
}

func TestImageCacheSurvivesRestart(t *testing.T) {
	var fetches int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	dir := t.TempDir()
	url := server.URL + "/card.jpg"

	cache, err := NewImageCache(dir)
	if err != nil {
		t.Fatalf("NewImageCache: %v", err)
	}
	if _, err := cache.Get(context.Background(), url); err != nil {
		t.Fatalf("Get: %v", err)
	}

	// A fresh cache over the same directory reads from disk, not the network.
	reopened, err := NewImageCache(dir)
	if err != nil {
		t.Fatalf("NewImageCache reopen: %v", err)
	}
	if _, err := reopened.Get(context.Background(), url); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Errorf("made %d network fetches, want 1", n)
	}
}

func TestImageCacheCollapsesConcurrentFetches(t *testing.T) {
	var fetches int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("slow-image"))
	}))
	defer server.Close()

	cache, err := NewImageCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewImageCache: %v", err)
	}

	url := server.URL + "/card.png"
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get(context.Background(), url); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Errorf("made %d network fetches for one URL, want 1", n)
	}
}

func TestImageCacheFetchOutlivesCallerContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	cache, err := NewImageCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewImageCache: %v", err)
	}

	// The shared flight must not die with the caller that started it.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	data, err := cache.Get(ctx, server.URL+"/card.png")
	if err != nil {
		t.Fatalf("Get with cancelled context: %v", err)
	}
	if !bytes.Equal(data, []byte("image-bytes")) {
		t.Errorf("data = %q, want fetched bytes", data)
	}
}

func TestImageCacheFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cache, err := NewImageCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewImageCache: %v", err)
	}
	if _, err := cache.Get(context.Background(), server.URL+"/missing.png"); err == nil {
		t.Error("expected error for 404 response")
	}
}
