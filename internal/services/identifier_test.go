package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIdentifySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/identify" {
			t.Errorf("path = %q, want /identify", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing multipart field 'file': %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file.Close()
		if header.Filename != "card.jpg" {
			t.Errorf("filename = %q, want card.jpg", header.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ocr": {"name": "Charizard", "number": "4/102"}}`))
	}))
	defer server.Close()

	client := NewCardIdentifierClient(server.URL)
	result, err := client.Identify(context.Background(), []byte("fake-jpeg"))
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if result.Name != "Charizard" || result.Number != "4/102" {
		t.Errorf("result = %q / %q, want Charizard / 4/102", result.Name, result.Number)
	}
	if result.RawText == "" {
		t.Error("RawText should carry the raw response body")
	}
}

func TestIdentifyNoCardDetected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewCardIdentifierClient(server.URL)
	_, err := client.Identify(context.Background(), []byte("blurry"))
	if !errors.Is(err, ErrUnprocessable) {
		t.Errorf("err = %v, want ErrUnprocessable", err)
	}
}

func TestIdentifyServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("ocr backend down"))
	}))
	defer server.Close()

	client := NewCardIdentifierClient(server.URL)
	_, err := client.Identify(context.Background(), []byte("img"))

	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("err = %v, want *ServerError", err)
	}
	if serverErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", serverErr.StatusCode)
	}
	if serverErr.Message != "ocr backend down" {
		t.Errorf("Message = %q, want response body", serverErr.Message)
	}
}

func TestIdentifyInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := NewCardIdentifierClient(server.URL)
	_, err := client.Identify(context.Background(), []byte("img"))
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("err = %v, want ErrInvalidResponse", err)
	}
}

func TestIdentifyUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // Connection refused from here on.

	client := NewCardIdentifierClient(server.URL)
	_, err := client.Identify(context.Background(), []byte("img"))
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("err = %v, want ErrUnreachable", err)
	}
}

func encodeTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestDownscaleJPEGBoundsLongEdge(t *testing.T) {
	data := encodeTestJPEG(t, 4000, 3000)

	scaled, err := DownscaleJPEG(data, IdentifyMaxDimension)
	if err != nil {
		t.Fatalf("DownscaleJPEG: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(scaled))
	if err != nil {
		t.Fatalf("failed to decode scaled image: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != IdentifyMaxDimension {
		t.Errorf("width = %d, want long edge bounded to %d", bounds.Dx(), IdentifyMaxDimension)
	}
	if bounds.Dy() != 1350 {
		t.Errorf("height = %d, want 1350 to preserve aspect ratio", bounds.Dy())
	}
}

func TestDownscaleJPEGNeverUpscales(t *testing.T) {
	data := encodeTestJPEG(t, 600, 800)

	scaled, err := DownscaleJPEG(data, IdentifyMaxDimension)
	if err != nil {
		t.Fatalf("DownscaleJPEG: %v", err)
	}
	if !bytes.Equal(scaled, data) {
		t.Error("a JPEG already within bounds should pass through untouched")
	}
}

func TestDownscaleJPEGExtremeAspectRatio(t *testing.T) {
	// A 1px-wide strip would scale its short edge to zero without a clamp.
	data := encodeTestJPEG(t, 1, 10000)

	scaled, err := DownscaleJPEG(data, IdentifyMaxDimension)
	if err != nil {
		t.Fatalf("DownscaleJPEG: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(scaled))
	if err != nil {
		t.Fatalf("failed to decode scaled image: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() < 1 || bounds.Dy() != IdentifyMaxDimension {
		t.Errorf("bounds = %dx%d, want width >= 1 and height %d", bounds.Dx(), bounds.Dy(), IdentifyMaxDimension)
	}
}

func TestDownscaleJPEGRejectsGarbage(t *testing.T) {
	if _, err := DownscaleJPEG([]byte("not an image"), IdentifyMaxDimension); err == nil {
		t.Error("expected error for non-image data")
	}
}
