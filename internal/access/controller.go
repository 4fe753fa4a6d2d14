// Package access is the door controller: it owns the shared state between the
// recognition loop, enrollment, the lock actuator and the cloud link.
package access

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/kozaktomas/facelock/internal/camera"
	"github.com/kozaktomas/facelock/internal/cloud"
	"github.com/kozaktomas/facelock/internal/config"
	"github.com/kozaktomas/facelock/internal/database"
	"github.com/kozaktomas/facelock/internal/facematch"
	"github.com/kozaktomas/facelock/internal/lock"
	"github.com/kozaktomas/facelock/internal/vision"
)

var (
	// ErrEnrollmentInProgress is returned when another enrollment holds the camera.
	ErrEnrollmentInProgress = errors.New("enrollment already in progress")
	// ErrInvalidID is returned for identity ids below 1.
	ErrInvalidID = errors.New("invalid identity id")
)

// Door is the lock actuator as seen by the controller.
type Door interface {
	OpenDoor() bool
	Active() bool
	Phase() lock.Phase
	Sequences() int64
}

// Config wires the controller collaborators.
type Config struct {
	DeviceID  string
	Arbiter   *camera.Arbiter
	Store     *database.IdentityStore
	Engine    *facematch.Engine
	Detector  vision.Detector
	Extractor vision.Extractor
	Door      Door
	Cloud     cloud.Client // nil means offline
	Timings   config.TimingsConfig
	Logger    logrus.FieldLogger
}

// Controller holds the state shared by the loops and the operations exposed to
// the web layer and the command poller.
type Controller struct {
	deviceID string
	arb      *camera.Arbiter
	store    *database.IdentityStore
	engine   *facematch.Engine
	door     Door
	cloud    cloud.Client
	timings  config.TimingsConfig
	log      logrus.FieldLogger
	events   *Broadcaster

	loopPipeline   *vision.Pipeline
	enrollPipeline *vision.Pipeline

	enrolling atomic.Bool
	enabled   atomic.Bool
	pending   atomic.Pointer[Enrollment]
	logLimit  *rate.Limiter

	cycles    atomic.Int64
	matches   atomic.Int64
	rejects   atomic.Int64
	lastMatch atomic.Pointer[MatchInfo]
}

// MatchInfo describes the last accepted match.
type MatchInfo struct {
	ID    int       `json:"id"`
	Score float64   `json:"score"`
	At    time.Time `json:"at"`
}

// New creates a controller. Recognition starts enabled.
func New(cfg Config) *Controller {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	engine := cfg.Engine
	if engine == nil {
		engine = facematch.NewEngine(0)
	}
	cl := cfg.Cloud
	if cl == nil {
		cl = cloud.Offline()
	}

	rt := cfg.Timings.Recognition
	decoderCfg := vision.DecoderConfig{
		MaxWidth:      rt.MaxWidth,
		MaxHeight:     rt.MaxHeight,
		MinFrameBytes: rt.MinFrameBytes,
	}

	c := &Controller{
		deviceID: cfg.DeviceID,
		arb:      cfg.Arbiter,
		store:    cfg.Store,
		engine:   engine,
		door:     cfg.Door,
		cloud:    cl,
		timings:  cfg.Timings,
		log:      log.WithField("component", "access"),
		events:   &Broadcaster{},
		loopPipeline: &vision.Pipeline{
			Decoder:   vision.NewDecoder(decoderCfg),
			Detector:  cfg.Detector,
			Extractor: cfg.Extractor,
		},
		enrollPipeline: &vision.Pipeline{
			Decoder:   vision.NewDecoder(decoderCfg),
			Detector:  cfg.Detector,
			Extractor: cfg.Extractor,
		},
		logLimit: newCooldown(rt.LogCooldown),
	}
	c.enabled.Store(true)
	return c
}

// newCooldown allows one event per d. The first event always passes.
func newCooldown(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// Events returns the broadcaster used for server-sent events.
func (c *Controller) Events() *Broadcaster {
	return c.events
}

// Store returns the identity store.
func (c *Controller) Store() *database.IdentityStore {
	return c.store
}

// SetRecognitionEnabled gates the recognition loop body.
func (c *Controller) SetRecognitionEnabled(on bool) {
	if c.enabled.Swap(on) != on {
		c.log.WithField("enabled", on).Info("recognition toggled")
		c.events.send(EventRecognition, "", map[string]bool{"enabled": on})
	}
}

// RecognitionEnabled reports whether the recognition loop is active.
func (c *Controller) RecognitionEnabled() bool {
	return c.enabled.Load()
}

// Enrolling reports whether a remote enrollment holds the enrolling flag.
func (c *Controller) Enrolling() bool {
	return c.enrolling.Load()
}

// OpenDoor triggers a lock sequence. Calls during an active sequence are no-ops
// and report false.
func (c *Controller) OpenDoor() bool {
	if !c.door.OpenDoor() {
		return false
	}
	c.events.send(EventDoorOpen, "", nil)
	return true
}

// PhaseChanged forwards lock phase transitions to event listeners. It is meant
// as the actuator's OnPhase hook.
func (c *Controller) PhaseChanged(p lock.Phase) {
	c.events.send(EventDoorPhase, p.String(), nil)
}

// Online reports whether the cloud link is configured.
func (c *Controller) Online() bool {
	if o, ok := c.cloud.(interface{ Online() bool }); ok {
		return o.Online()
	}
	return true
}

// logCloudErr logs a best-effort cloud failure. Offline mode is expected and stays quiet.
func (c *Controller) logCloudErr(err error, msg string, fields logrus.Fields) {
	if err == nil {
		return
	}
	entry := c.log.WithFields(fields)
	if errors.Is(err, cloud.ErrOffline) {
		entry.Debug(msg + " skipped, offline")
		return
	}
	entry.WithError(err).Warn(msg + " failed")
}
