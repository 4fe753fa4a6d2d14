package access

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/facelock/internal/camera"
	"github.com/kozaktomas/facelock/internal/cloud"
	"github.com/kozaktomas/facelock/internal/config"
	"github.com/kozaktomas/facelock/internal/constants"
	"github.com/kozaktomas/facelock/internal/database"
	"github.com/kozaktomas/facelock/internal/database/mock"
	"github.com/kozaktomas/facelock/internal/facematch"
	"github.com/kozaktomas/facelock/internal/lock"
	"github.com/kozaktomas/facelock/internal/vision"
)

const (
	testWidth  = 32
	testHeight = 24
)

// fakeCamera hands out raw RGB frames of a fixed size.
type fakeCamera struct {
	mu       sync.Mutex
	data     []byte
	width    int
	height   int
	format   camera.PixelFormat
	err      error
	captures int
	returned int
}

func newFakeCamera() *fakeCamera {
	return &fakeCamera{
		data:   make([]byte, testWidth*testHeight*constants.RGBBytesPerPixel),
		width:  testWidth,
		height: testHeight,
		format: camera.FormatRGB888,
	}
}

func (d *fakeCamera) Capture(ctx context.Context) (*camera.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.captures++
	if d.err != nil {
		return nil, d.err
	}
	return &camera.Frame{
		Data:      append([]byte(nil), d.data...),
		Width:     d.width,
		Height:    d.height,
		Format:    d.format,
		Timestamp: time.Now(),
	}, nil
}

func (d *fakeCamera) Return(f *camera.Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.returned++
}

func (d *fakeCamera) setData(b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data = b
}

func (d *fakeCamera) setFrame(b []byte, w, h int, format camera.PixelFormat) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data, d.width, d.height, d.format = b, w, h, format
}

// noisyJPEG encodes random pixels so the frame clears the minimum size filter.
func noisyJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	rnd := rand.New(rand.NewSource(int64(w * h)))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	_, _ = rnd.Read(img.Pix)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

type fakeDetector struct {
	mu    sync.Mutex
	faces []vision.Face
	calls int
}

func (f *fakeDetector) Detect(ctx context.Context, img *vision.Image) ([]vision.Face, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.faces, nil
}

func (f *fakeDetector) detectCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeDetector) set(faces []vision.Face) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faces = faces
}

// fakeExtractor returns a copy of vec for every face.
type fakeExtractor struct {
	mu  sync.Mutex
	vec []float32
	err error
}

func (f *fakeExtractor) Extract(ctx context.Context, img *vision.Image, kp vision.Keypoints) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]float32(nil), f.vec...), nil
}

func (f *fakeExtractor) set(vec []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vec = vec
}

// fakeCloud records calls. Commands are served once.
type fakeCloud struct {
	mu         sync.Mutex
	online     bool
	uploadErr  error
	images     []string
	identities map[int][]float32
	logs       []cloud.AccessLog
	commands   []cloud.Command
	executed   []int64
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{online: true, identities: map[int][]float32{}}
}

func (f *fakeCloud) Online() bool { return f.online }

func (f *fakeCloud) UploadImage(ctx context.Context, name string, jpeg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.images = append(f.images, name)
	return nil
}

func (f *fakeCloud) UploadIdentity(ctx context.Context, id int, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities[id] = embedding
	return nil
}

func (f *fakeCloud) LogAccess(ctx context.Context, entry cloud.AccessLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeCloud) FetchPendingCommands(ctx context.Context) ([]cloud.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmds := f.commands
	f.commands = nil
	return cmds, nil
}

func (f *fakeCloud) MarkExecuted(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, id)
	return nil
}

func (f *fakeCloud) FetchIdentities(ctx context.Context) ([]cloud.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []cloud.Identity
	for id, emb := range f.identities {
		out = append(out, cloud.Identity{ID: id, Embedding: emb})
	}
	return out, nil
}

func (f *fakeCloud) accessLogs() []cloud.AccessLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cloud.AccessLog(nil), f.logs...)
}

func (f *fakeCloud) executedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.executed...)
}

func (f *fakeCloud) uploadedImages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.images...)
}

type testRig struct {
	ctrl     *Controller
	cam      *fakeCamera
	arb      *camera.Arbiter
	det      *fakeDetector
	ext      *fakeExtractor
	cloud    *fakeCloud
	kv       *mock.MockKV
	store    *database.IdentityStore
	door     *lock.SimulatedDoor
	actuator *lock.Actuator
}

func testTimings() config.TimingsConfig {
	return config.TimingsConfig{
		Recognition: config.RecognitionTimings{
			Period:           5 * time.Millisecond,
			EnrollingBackoff: 5 * time.Millisecond,
			DisabledBackoff:  5 * time.Millisecond,
			CorruptBackoff:   time.Millisecond,
			CameraTimeout:    50 * time.Millisecond,
			MatchHold:        20 * time.Millisecond,
			LogCooldown:      time.Hour,
			MinFrameBytes:    constants.MinFrameBytes,
			MaxWidth:         constants.DefaultFrameWidth,
			MaxHeight:        constants.DefaultFrameHeight,
		},
		Enrollment: config.EnrollmentTimings{
			CameraTimeout: 100 * time.Millisecond,
			LocalWait:     time.Second,
		},
		Lock: config.LockTimings{
			Hold:     10 * time.Millisecond,
			Poll:     5 * time.Millisecond,
			Debounce: 5 * time.Millisecond,
		},
		Control: config.ControlTimings{
			ButtonPoll:   5 * time.Millisecond,
			CommandEvery: 2,
		},
		Stream: config.StreamTimings{
			CameraTimeout:   20 * time.Millisecond,
			Backoff:         10 * time.Millisecond,
			SnapshotTimeout: 100 * time.Millisecond,
		},
	}
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRig(t *testing.T, capacity int) *testRig {
	t.Helper()
	log := quietLogger()
	timings := testTimings()

	r := &testRig{
		cam:   newFakeCamera(),
		det:   &fakeDetector{faces: []vision.Face{{BBox: []float64{0, 0, 10, 10}, Score: 0.9}}},
		ext:   &fakeExtractor{vec: basis(0)},
		cloud: newFakeCloud(),
		kv:    mock.NewMockKV(),
		door:  lock.NewSimulatedDoor(time.Millisecond, log),
	}
	r.arb = camera.NewArbiter(r.cam)
	r.store = database.NewIdentityStore(database.StoreConfig{Capacity: capacity, KV: r.kv, Logger: log})
	r.actuator = lock.NewActuator(lock.Config{
		Relay:    r.door,
		Sensor:   r.door,
		Hold:     timings.Lock.Hold,
		Poll:     timings.Lock.Poll,
		Debounce: timings.Lock.Debounce,
		Logger:   log,
	})
	t.Cleanup(r.actuator.Close)

	r.ctrl = New(Config{
		DeviceID:  "TEST_LOCK",
		Arbiter:   r.arb,
		Store:     r.store,
		Engine:    facematch.NewEngine(constants.DefaultMatchThreshold),
		Detector:  r.det,
		Extractor: r.ext,
		Door:      r.actuator,
		Cloud:     r.cloud,
		Timings:   timings,
		Logger:    log,
	})
	return r
}

// basis returns the i-th unit vector.
func basis(i int) []float32 {
	v := make([]float32, constants.EmbeddingDim)
	v[i] = 1
	return v
}

// withCosine returns a unit vector whose cosine with basis(0) is cos.
func withCosine(cos float64) []float32 {
	v := make([]float32, constants.EmbeddingDim)
	v[0] = float32(cos)
	v[1] = float32(math.Sqrt(1 - cos*cos))
	return v
}
