package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/kozaktomas/facelock/internal/constants"
)

// ErrFrameTooLarge is returned when the camera sends more than constants.MaxFrameBytes.
var ErrFrameTooLarge = errors.New("camera frame too large")

// HTTPDevice captures JPEG snapshots from a network camera's capture endpoint.
type HTTPDevice struct {
	url        string
	httpClient *http.Client
	bufs       sync.Pool
}

// NewHTTPDevice creates a device that GETs url for every frame.
func NewHTTPDevice(url string) *HTTPDevice {
	return &HTTPDevice{
		url: url,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		bufs: sync.Pool{
			New: func() any { return new(bytes.Buffer) },
		},
	}
}

// Capture fetches one snapshot.
func (d *HTTPDevice) Capture(ctx context.Context) (*Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("capture request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("camera returned status %d: %s", resp.StatusCode, string(body))
	}

	buf, _ := d.bufs.Get().(*bytes.Buffer)
	buf.Reset()
	n, err := buf.ReadFrom(io.LimitReader(resp.Body, constants.MaxFrameBytes+1))
	if err != nil {
		d.bufs.Put(buf)
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	if n > constants.MaxFrameBytes {
		d.bufs.Put(buf)
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFrameTooLarge, constants.MaxFrameBytes)
	}

	f := &Frame{
		Data:      buf.Bytes(),
		Format:    FormatJPEG,
		Timestamp: time.Now(),
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data)); err == nil {
		f.Width, f.Height = cfg.Width, cfg.Height
	}
	return f, nil
}

// Return recycles the frame buffer.
func (d *HTTPDevice) Return(f *Frame) {
	if f == nil || f.Data == nil {
		return
	}
	d.bufs.Put(bytes.NewBuffer(f.Data[:0]))
	f.Data = nil
}
