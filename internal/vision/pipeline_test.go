package vision

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/facelock/internal/camera"
)

type fakeDetector struct {
	faces []Face
	err   error
}

func (f *fakeDetector) Detect(ctx context.Context, img *Image) ([]Face, error) {
	return f.faces, f.err
}

type fakeExtractor struct {
	got Keypoints
	emb []float32
	err error
}

func (f *fakeExtractor) Extract(ctx context.Context, img *Image, kp Keypoints) ([]float32, error) {
	f.got = kp
	return f.emb, f.err
}

func rawFrame() *camera.Frame {
	return &camera.Frame{Data: make([]byte, 64*48*3), Width: 64, Height: 48, Format: camera.FormatRGB888}
}

func TestSelectFace(t *testing.T) {
	faces := []Face{
		{BBox: []float64{0, 0, 10, 10}},
		{BBox: []float64{0, 0, 30, 30}},
		{BBox: []float64{5, 5, 20, 20}},
	}
	if got := SelectFace(faces); got != 1 {
		t.Errorf("SelectFace = %d, want 1", got)
	}
	if got := SelectFace(nil); got != -1 {
		t.Errorf("SelectFace(nil) = %d, want -1", got)
	}
}

func TestPipeline_Embed(t *testing.T) {
	emb := make([]float32, 512)
	emb[7] = 5

	small := Keypoints{{X: 1, Y: 1}}
	large := Keypoints{{X: 9, Y: 9}}
	ext := &fakeExtractor{emb: emb}
	p := &Pipeline{
		Decoder: NewDecoder(DecoderConfig{}),
		Detector: &fakeDetector{faces: []Face{
			{BBox: []float64{0, 0, 5, 5}, Keypoints: small},
			{BBox: []float64{0, 0, 20, 20}, Keypoints: large},
		}},
		Extractor: ext,
	}

	res, err := p.Embed(context.Background(), rawFrame())
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if res.Faces != 2 {
		t.Errorf("Faces = %d, want 2", res.Faces)
	}
	if len(ext.got) != 1 || ext.got[0].X != 9 {
		t.Errorf("extractor got keypoints %v, want those of the largest face", ext.got)
	}
	if res.Embedding[7] != 1 {
		t.Errorf("embedding not normalized: %v", res.Embedding[7])
	}
}

func TestPipeline_Errors(t *testing.T) {
	zero := make([]float32, 512)

	tests := []struct {
		name    string
		frame   *camera.Frame
		det     *fakeDetector
		ext     *fakeExtractor
		wantErr error
	}{
		{
			name:    "corrupt frame",
			frame:   &camera.Frame{Data: []byte{1, 2, 3}, Format: camera.FormatJPEG},
			det:     &fakeDetector{},
			ext:     &fakeExtractor{},
			wantErr: ErrCorruptFrame,
		},
		{
			name:    "no faces",
			frame:   rawFrame(),
			det:     &fakeDetector{},
			ext:     &fakeExtractor{},
			wantErr: ErrNoFace,
		},
		{
			name:    "extractor failure",
			frame:   rawFrame(),
			det:     &fakeDetector{faces: []Face{{BBox: []float64{0, 0, 1, 1}}}},
			ext:     &fakeExtractor{err: ErrExtractionFailed},
			wantErr: ErrExtractionFailed,
		},
		{
			name:    "zero embedding",
			frame:   rawFrame(),
			det:     &fakeDetector{faces: []Face{{BBox: []float64{0, 0, 1, 1}}}},
			ext:     &fakeExtractor{emb: zero},
			wantErr: ErrExtractionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Pipeline{Decoder: NewDecoder(DecoderConfig{}), Detector: tt.det, Extractor: tt.ext}
			if _, err := p.Embed(context.Background(), tt.frame); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
