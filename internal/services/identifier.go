package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"
)

const (
	// Recognition can be compute-heavy server-side, so the total budget is
	// much longer than the connect budget.
	identifyConnectTimeout = 8 * time.Second
	identifyRequestTimeout = 90 * time.Second

	// IdentifyMaxDimension bounds the long edge of uploaded photos.
	IdentifyMaxDimension = 1800

	identifyJPEGQuality = 90
)

// IdentifyResult is the recognition service's best-effort guess.
type IdentifyResult struct {
	Name    string
	Number  string
	RawText string
}

type cardIdentifyResponse struct {
	OCR *struct {
		Name   string `json:"name"`
		Number string `json:"number"`
	} `json:"ocr"`
}

// CardIdentifierClient uploads card photos to the external recognition
// service. It performs no retries; retrying is a user action (re-scan).
type CardIdentifierClient struct {
	client  *http.Client
	baseURL string
}

func NewCardIdentifierClient(baseURL string) *CardIdentifierClient {
	dialer := &net.Dialer{Timeout: identifyConnectTimeout}
	return &CardIdentifierClient{
		client: &http.Client{
			Timeout: identifyRequestTimeout,
			Transport: &http.Transport{
				DialContext: dialer.DialContext,
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Identify sends one multipart upload and maps the response onto the
// failure taxonomy: 422 is Unprocessable (the service looked and found no
// card), other non-2xx is a server error carrying the body, a schema
// mismatch is InvalidResponse, and transport failures are Timeout or
// Unreachable.
func (c *CardIdentifierClient) Identify(ctx context.Context, imageData []byte) (*IdentifyResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "card.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/identify", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, ErrUnprocessable
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ServerError{StatusCode: resp.StatusCode, Message: string(raw)}
	}

	var decoded cardIdentifyResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, ErrInvalidResponse
	}

	result := &IdentifyResult{RawText: string(raw)}
	if decoded.OCR != nil {
		result.Name = decoded.OCR.Name
		result.Number = decoded.OCR.Number
	}
	return result, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// DownscaleJPEG bounds a photo's long edge to maxDim and re-encodes it as a
// high-quality JPEG to limit upload size. Images already within bounds are
// returned as-is when they are JPEGs; it never upscales.
func DownscaleJPEG(data []byte, maxDim int) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid image data: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	longEdge := width
	if height > longEdge {
		longEdge = height
	}

	if longEdge <= maxDim {
		if format == "jpeg" {
			return data, nil
		}
		return encodeJPEG(img)
	}

	scale := float64(maxDim) / float64(longEdge)
	// Extreme aspect ratios can round the short edge down to zero.
	dstW := max(int(float64(width)*scale), 1)
	dstH := max(int(float64(height)*scale), 1)
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return encodeJPEG(dst)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: identifyJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
