package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/facelock/internal/constants"
)

const defaultSidecarURL = "http://localhost:8000"

// Client calls the detector/extractor sidecar over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a sidecar client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultSidecarURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type detectResponse struct {
	Faces []Face `json:"faces"`
}

type extractResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
}

// Detect posts the raw RGB888 pixels and returns the detected faces.
func (c *Client) Detect(ctx context.Context, img *Image) ([]Face, error) {
	q := url.Values{}
	q.Set("width", strconv.Itoa(img.Width))
	q.Set("height", strconv.Itoa(img.Height))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect?"+q.Encode(), bytes.NewReader(img.Pix))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.Faces, nil
}

// Extract posts the image and keypoints as a multipart form and returns the embedding.
func (c *Client) Extract(ctx context.Context, img *Image, kp Keypoints) ([]float32, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", "frame.rgb")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(img.Pix); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	kpJSON, err := json.Marshal(kp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal keypoints: %w", err)
	}
	fields := map[string]string{
		"width":     strconv.Itoa(img.Width),
		"height":    strconv.Itoa(img.Height),
		"keypoints": string(kpJSON),
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp extractResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if len(resp.Embedding) != constants.EmbeddingDim {
		return nil, fmt.Errorf("%w: got %d dimensions", ErrExtractionFailed, len(resp.Embedding))
	}
	return resp.Embedding, nil
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
		return nil, fmt.Errorf("sidecar error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

var (
	_ Detector  = (*Client)(nil)
	_ Extractor = (*Client)(nil)
)
