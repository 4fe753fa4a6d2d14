package vision

import (
	"context"
	"fmt"

	"github.com/kozaktomas/facelock/internal/camera"
	"github.com/kozaktomas/facelock/internal/facematch"
)

// Result is the outcome of running one frame through the pipeline.
type Result struct {
	Image     *Image
	Face      Face
	Faces     int
	Embedding []float32
}

// Pipeline runs decode, detect, face selection and extract for one frame.
type Pipeline struct {
	Decoder   *Decoder
	Detector  Detector
	Extractor Extractor
}

// SelectFace returns the index of the face to use: the one with the largest
// bounding box. It returns -1 for no faces.
func SelectFace(faces []Face) int {
	boxes := make([][]float64, len(faces))
	for i := range faces {
		boxes[i] = faces[i].BBox
	}
	return facematch.LargestBox(boxes)
}

// Embed returns the embedding of the selected face in f. The result's Image aliases
// the decoder buffer.
func (p *Pipeline) Embed(ctx context.Context, f *camera.Frame) (*Result, error) {
	img, err := p.Decoder.Decode(f)
	if err != nil {
		return nil, err
	}

	faces, err := p.Detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	idx := SelectFace(faces)
	if idx < 0 {
		return nil, ErrNoFace
	}

	emb, err := p.Extractor.Extract(ctx, img, faces[idx].Keypoints)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	if len(emb) == 0 || facematch.Norm(emb) == 0 {
		return nil, ErrExtractionFailed
	}
	facematch.Normalize(emb)

	return &Result{Image: img, Face: faces[idx], Faces: len(faces), Embedding: emb}, nil
}
