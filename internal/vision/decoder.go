package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/kozaktomas/facelock/internal/camera"
	"github.com/kozaktomas/facelock/internal/constants"
)

// DecoderConfig sets the decoder limits.
type DecoderConfig struct {
	MaxWidth      int
	MaxHeight     int
	MinFrameBytes int
}

// Decoder converts frames into RGB888 images backed by a buffer allocated once.
// The returned image is overwritten by the next Decode; a Decoder is not safe for
// concurrent use.
type Decoder struct {
	cfg  DecoderConfig
	rgba *image.RGBA
	pix  []byte
	img  Image
}

// NewDecoder preallocates buffers for MaxWidth x MaxHeight.
func NewDecoder(cfg DecoderConfig) *Decoder {
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = constants.DefaultFrameWidth
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = constants.DefaultFrameHeight
	}
	if cfg.MinFrameBytes <= 0 {
		cfg.MinFrameBytes = constants.MinFrameBytes
	}
	return &Decoder{
		cfg:  cfg,
		rgba: image.NewRGBA(image.Rect(0, 0, cfg.MaxWidth, cfg.MaxHeight)),
		pix:  make([]byte, cfg.MaxWidth*cfg.MaxHeight*constants.RGBBytesPerPixel),
	}
}

// BufferSize returns the size of the preallocated RGB888 buffer in bytes.
func (d *Decoder) BufferSize() int {
	return len(d.pix)
}

// Decode validates and converts f. Frames whose dimensions exceed the preallocated
// buffer are discarded with ErrFrameTooLarge before any pixel is decoded.
func (d *Decoder) Decode(f *camera.Frame) (*Image, error) {
	if f == nil || len(f.Data) < d.cfg.MinFrameBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptFrame, frameLen(f))
	}

	switch f.Format {
	case camera.FormatRGB888:
		return d.decodeRaw(f)
	case camera.FormatJPEG:
		return d.decodeJPEG(f.Data)
	default:
		return nil, fmt.Errorf("%w: unsupported format %s", ErrCorruptFrame, f.Format)
	}
}

func frameLen(f *camera.Frame) int {
	if f == nil {
		return 0
	}
	return len(f.Data)
}

func (d *Decoder) decodeRaw(f *camera.Frame) (*Image, error) {
	if f.Width <= 0 || f.Height <= 0 || len(f.Data) != f.Width*f.Height*constants.RGBBytesPerPixel {
		return nil, fmt.Errorf("%w: raw frame %dx%d with %d bytes", ErrCorruptFrame, f.Width, f.Height, len(f.Data))
	}
	if f.Width > d.cfg.MaxWidth || f.Height > d.cfg.MaxHeight {
		return nil, fmt.Errorf("%w: %dx%d", ErrFrameTooLarge, f.Width, f.Height)
	}
	n := copy(d.pix, f.Data)
	d.img = Image{Pix: d.pix[:n], Width: f.Width, Height: f.Height}
	return &d.img, nil
}

func (d *Decoder) decodeJPEG(data []byte) (*Image, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrCorruptFrame)
	}
	if cfg.Width > d.cfg.MaxWidth || cfg.Height > d.cfg.MaxHeight ||
		cfg.Width*cfg.Height*constants.RGBBytesPerPixel > len(d.pix) {
		return nil, fmt.Errorf("%w: %dx%d", ErrFrameTooLarge, cfg.Width, cfg.Height)
	}

	src, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
	}

	w, h := cfg.Width, cfg.Height
	dst := d.rgba.SubImage(image.Rect(0, 0, w, h)).(*image.RGBA)
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)

	i := 0
	for y := range h {
		row := d.rgba.Pix[y*d.rgba.Stride : y*d.rgba.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			d.pix[i] = row[x]
			d.pix[i+1] = row[x+1]
			d.pix[i+2] = row[x+2]
			i += 3
		}
	}

	d.img = Image{Pix: d.pix[:i], Width: w, Height: h}
	return &d.img, nil
}

// EncodeJPEG encodes img, used when a decoded frame has to leave the device.
func EncodeJPEG(img *Image, quality int) ([]byte, error) {
	rgba := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for p, i := 0, 0; i+2 < len(img.Pix); p, i = p+4, i+3 {
		rgba.Pix[p] = img.Pix[i]
		rgba.Pix[p+1] = img.Pix[i+1]
		rgba.Pix[p+2] = img.Pix[i+2]
		rgba.Pix[p+3] = 0xff
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
