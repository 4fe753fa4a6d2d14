package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/facelock/internal/camera"
	"github.com/kozaktomas/facelock/internal/constants"
)

// FrameSource yields one JPEG per call, or camera.ErrBusy when the camera is taken.
type FrameSource interface {
	StreamFrame(ctx context.Context) ([]byte, error)
}

// StreamHandler serves the live MJPEG stream.
type StreamHandler struct {
	src     FrameSource
	backoff time.Duration
	log     logrus.FieldLogger
}

// NewStreamHandler creates a new stream handler. backoff is the pause after the
// camera was busy.
func NewStreamHandler(src FrameSource, backoff time.Duration, log logrus.FieldLogger) *StreamHandler {
	if backoff <= 0 {
		backoff = 10 * time.Millisecond
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &StreamHandler{src: src, backoff: backoff, log: log}
}

// Stream writes multipart JPEG parts until the client disconnects.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace;boundary="+constants.StreamBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Framerate", "60")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	for ctx.Err() == nil {
		frame, err := h.src.StreamFrame(ctx)
		if err != nil {
			if !errors.Is(err, camera.ErrBusy) && ctx.Err() == nil {
				h.log.WithError(err).Warn("stream capture failed")
			}
			if !sleep(ctx, h.backoff) {
				return
			}
			continue
		}

		if err := writePart(w, frame); err != nil {
			return
		}
		flusher.Flush()
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	header := fmt.Sprintf("\r\n--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n",
		constants.StreamBoundary, len(jpeg))
	if _, err := w.Write([]byte(header)); err != nil {
		return err
	}
	_, err := w.Write(jpeg)
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
