package vision

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"testing"

	"github.com/kozaktomas/facelock/internal/camera"
)

// noisyJPEG encodes a random image so the result is well above the minimum frame size.
func noisyJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	r := rand.New(rand.NewSource(int64(w*h)))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(r.Intn(256)), G: uint8(r.Intn(256)), B: uint8(r.Intn(256)), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestDecoder_Decode(t *testing.T) {
	d := NewDecoder(DecoderConfig{})
	if d.BufferSize() != 320*240*3 {
		t.Fatalf("BufferSize = %d", d.BufferSize())
	}

	tests := []struct {
		name    string
		frame   *camera.Frame
		wantW   int
		wantH   int
		wantErr error
	}{
		{
			name:    "nil frame",
			frame:   nil,
			wantErr: ErrCorruptFrame,
		},
		{
			name:    "under minimum size",
			frame:   &camera.Frame{Data: make([]byte, 2047), Format: camera.FormatJPEG},
			wantErr: ErrCorruptFrame,
		},
		{
			name:    "not a jpeg",
			frame:   &camera.Frame{Data: bytes.Repeat([]byte{0x42}, 4096), Format: camera.FormatJPEG},
			wantErr: ErrCorruptFrame,
		},
		{
			name:  "exact size jpeg",
			frame: &camera.Frame{Data: noisyJPEG(t, 320, 240), Format: camera.FormatJPEG},
			wantW: 320,
			wantH: 240,
		},
		{
			name:  "smaller jpeg kept as is",
			frame: &camera.Frame{Data: noisyJPEG(t, 160, 120), Format: camera.FormatJPEG},
			wantW: 160,
			wantH: 120,
		},
		{
			name:    "large jpeg discarded",
			frame:   &camera.Frame{Data: noisyJPEG(t, 1600, 1200), Format: camera.FormatJPEG},
			wantErr: ErrFrameTooLarge,
		},
		{
			name:    "tall jpeg discarded",
			frame:   &camera.Frame{Data: noisyJPEG(t, 240, 480), Format: camera.FormatJPEG},
			wantErr: ErrFrameTooLarge,
		},
		{
			name:  "raw frame that fits",
			frame: &camera.Frame{Data: make([]byte, 160*120*3), Width: 160, Height: 120, Format: camera.FormatRGB888},
			wantW: 160,
			wantH: 120,
		},
		{
			name:    "raw frame too large",
			frame:   &camera.Frame{Data: make([]byte, 640*480*3), Width: 640, Height: 480, Format: camera.FormatRGB888},
			wantErr: ErrFrameTooLarge,
		},
		{
			name:    "raw frame size mismatch",
			frame:   &camera.Frame{Data: make([]byte, 5000), Width: 160, Height: 120, Format: camera.FormatRGB888},
			wantErr: ErrCorruptFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := d.Decode(tt.frame)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if img.Width != tt.wantW || img.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", img.Width, img.Height, tt.wantW, tt.wantH)
			}
			if len(img.Pix) != tt.wantW*tt.wantH*3 {
				t.Errorf("len(Pix) = %d, want %d", len(img.Pix), tt.wantW*tt.wantH*3)
			}
		})
	}
}

func TestDecoder_ReusesBuffer(t *testing.T) {
	d := NewDecoder(DecoderConfig{})
	data := noisyJPEG(t, 320, 240)

	a, err := d.Decode(&camera.Frame{Data: data, Format: camera.FormatJPEG})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	first := &a.Pix[0]
	b, err := d.Decode(&camera.Frame{Data: data, Format: camera.FormatJPEG})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if &b.Pix[0] != first {
		t.Error("decoder allocated a new pixel buffer")
	}
}

func TestEncodeJPEG(t *testing.T) {
	img := &Image{Pix: make([]byte, 32*16*3), Width: 32, Height: 16}
	data, err := EncodeJPEG(img, 80)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.Width != 32 || cfg.Height != 16 {
		t.Errorf("size = %dx%d", cfg.Width, cfg.Height)
	}
}
