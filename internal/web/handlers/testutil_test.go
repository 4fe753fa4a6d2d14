package handlers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/facelock/internal/access"
	"github.com/kozaktomas/facelock/internal/camera"
	"github.com/kozaktomas/facelock/internal/config"
	"github.com/kozaktomas/facelock/internal/constants"
	"github.com/kozaktomas/facelock/internal/database"
	"github.com/kozaktomas/facelock/internal/lock"
	"github.com/kozaktomas/facelock/internal/vision"
)

// jpegCamera serves the same noisy JPEG on every capture.
type jpegCamera struct {
	data []byte
}

func newJPEGCamera(t *testing.T) *jpegCamera {
	t.Helper()
	r := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := range 48 {
		for x := range 64 {
			img.Set(x, y, color.RGBA{uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	return &jpegCamera{data: buf.Bytes()}
}

func (c *jpegCamera) Capture(ctx context.Context) (*camera.Frame, error) {
	return &camera.Frame{
		Data:      append([]byte(nil), c.data...),
		Width:     64,
		Height:    48,
		Format:    camera.FormatJPEG,
		Timestamp: time.Now(),
	}, nil
}

func (c *jpegCamera) Return(f *camera.Frame) {}

type stubDetector struct {
	mu    sync.Mutex
	faces []vision.Face
}

func (d *stubDetector) Detect(ctx context.Context, img *vision.Image) ([]vision.Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.faces, nil
}

type stubExtractor struct{}

func (stubExtractor) Extract(ctx context.Context, img *vision.Image, kp vision.Keypoints) ([]float32, error) {
	v := make([]float32, constants.EmbeddingDim)
	v[0] = 1
	return v, nil
}

// stubDoor counts open requests.
type stubDoor struct {
	mu    sync.Mutex
	opens int64
}

func (d *stubDoor) OpenDoor() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	return true
}

func (d *stubDoor) Active() bool      { return false }
func (d *stubDoor) Phase() lock.Phase { return lock.PhaseClosed }

func (d *stubDoor) Sequences() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

type testEnv struct {
	ctrl  *access.Controller
	arb   *camera.Arbiter
	store *database.IdentityStore
	det   *stubDetector
	door  *stubDoor
	log   logrus.FieldLogger
}

func testTimings() config.TimingsConfig {
	t := config.LoadTimings()
	t.Recognition.Period = 5 * time.Millisecond
	t.Recognition.CameraTimeout = 20 * time.Millisecond
	t.Enrollment.Settle = 0
	t.Enrollment.CameraTimeout = 20 * time.Millisecond
	t.Stream.SnapshotTimeout = 20 * time.Millisecond
	return t
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	env := &testEnv{
		arb:   camera.NewArbiter(newJPEGCamera(t)),
		store: database.NewIdentityStore(database.StoreConfig{Capacity: 3, Logger: log}),
		det:   &stubDetector{faces: []vision.Face{{BBox: []float64{0, 0, 20, 20}}}},
		door:  &stubDoor{},
		log:   log,
	}
	env.ctrl = access.New(access.Config{
		DeviceID:  "TEST_LOCK",
		Arbiter:   env.arb,
		Store:     env.store,
		Detector:  env.det,
		Extractor: stubExtractor{},
		Door:      env.door,
		Timings:   testTimings(),
		Logger:    log,
	})
	return env
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
