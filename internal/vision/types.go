// Package vision turns camera frames into face embeddings: it decodes frames into a
// fixed RGB888 buffer and talks to the detector/extractor sidecar.
package vision

import (
	"context"
	"errors"
)

var (
	// ErrCorruptFrame is returned for frames that are too small or fail to decode.
	ErrCorruptFrame = errors.New("corrupt frame")
	// ErrFrameTooLarge is returned when a frame cannot fit the preallocated buffer.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrNoFace is returned when the detector finds nothing.
	ErrNoFace = errors.New("no face detected")
	// ErrExtractionFailed is returned when the extractor yields no usable embedding.
	ErrExtractionFailed = errors.New("embedding extraction failed")
)

// Image is a packed RGB888 image, 3 bytes per pixel, row-major.
type Image struct {
	Pix    []byte
	Width  int
	Height int
}

// Point is a landmark position in image pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Keypoints are the facial landmarks the extractor aligns on (eyes, nose, mouth corners).
type Keypoints []Point

// Face is one detection.
type Face struct {
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	Score     float64   `json:"score"`
	Keypoints Keypoints `json:"keypoints"`
}

// Detector finds faces in an image.
type Detector interface {
	Detect(ctx context.Context, img *Image) ([]Face, error)
}

// Extractor computes a face embedding from an image and the face's keypoints.
type Extractor interface {
	Extract(ctx context.Context, img *Image, kp Keypoints) ([]float32, error)
}
