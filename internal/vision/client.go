// Package vision talks to the face vision sidecar that hosts the region
// locator, the face encoder and the landmark predictor.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "http://localhost:8000"

	// uploadQuality is the JPEG quality of frames sent to the sidecar
	uploadQuality = 90
)

// Client is an HTTP client for the vision sidecar
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new vision client. A zero timeout disables the per-request limit.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the sidecar address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// postMultipartImage encodes img as JPEG and posts it with optional form fields.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, img image.Image, fields map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if err := jpeg.Encode(part, img, &jpeg.Options{Quality: uploadQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}

// Locate returns every face region the detector finds in img.
func (c *Client) Locate(ctx context.Context, img image.Image) ([]Region, error) {
	body, err := c.postMultipartImage(ctx, "/detect", img, nil)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.Regions, nil
}

// Encode computes the embedding of the face inside box. An empty box lets the
// sidecar find the face itself. A nil embedding with a nil error means the
// encoder found nothing to encode.
func (c *Client) Encode(ctx context.Context, img image.Image, box image.Rectangle) ([]float32, error) {
	var fields map[string]string
	if !box.Empty() {
		// top,right,bottom,left as the encoder expects
		fields = map[string]string{
			"box": strings.Join([]string{
				strconv.Itoa(box.Min.Y),
				strconv.Itoa(box.Max.X),
				strconv.Itoa(box.Max.Y),
				strconv.Itoa(box.Min.X),
			}, ","),
		}
	}

	body, err := c.postMultipartImage(ctx, "/encode", img, fields)
	if err != nil {
		return nil, err
	}

	var resp encodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, nil
	}
	return resp.Embeddings[0], nil
}

// Landmarks returns the 68-point landmarks of the first face in img, or none.
func (c *Client) Landmarks(ctx context.Context, img image.Image) ([]Point, error) {
	body, err := c.postMultipartImage(ctx, "/landmarks", img, nil)
	if err != nil {
		return nil, err
	}

	var resp landmarksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	points := make([]Point, len(resp.Landmarks))
	for i, p := range resp.Landmarks {
		points[i] = Point{X: p[0], Y: p[1]}
	}
	return points, nil
}

// Health checks that the sidecar is up and its models are loaded.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return err
	}

	var resp healthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Status != "ok" {
		return errors.New("vision sidecar not ready: " + resp.Status)
	}
	return nil
}
