package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/facelock/internal/access"
	"github.com/kozaktomas/facelock/internal/camera"
	"github.com/kozaktomas/facelock/internal/database"
	"github.com/kozaktomas/facelock/internal/vision"
)

// EnrollHandler handles enrollment and identity endpoints
type EnrollHandler struct {
	ctrl      *access.Controller
	localWait time.Duration
	log       logrus.FieldLogger
}

// NewEnrollHandler creates a new enroll handler. localWait bounds how long a
// local enrollment request waits for a face.
func NewEnrollHandler(ctrl *access.Controller, localWait time.Duration, log logrus.FieldLogger) *EnrollHandler {
	if localWait <= 0 {
		localWait = 30 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &EnrollHandler{ctrl: ctrl, localWait: localWait, log: log}
}

// EnrollResponse is returned by both enrollment endpoints.
type EnrollResponse struct {
	ID int `json:"id"`
}

// EnrollLocal enrolls the next face the recognition loop sees under a new id.
func (h *EnrollHandler) EnrollLocal(w http.ResponseWriter, r *http.Request) {
	e := h.ctrl.RequestLocalEnrollment()

	ctx, cancel := context.WithTimeout(r.Context(), h.localWait)
	defer cancel()

	id, err := e.Wait(ctx)
	if err != nil && ctx.Err() != nil && !h.ctrl.CancelLocalEnrollment(e) {
		// Claimed by the loop just before the deadline, the result is moments away.
		id, err = e.Wait(context.WithoutCancel(r.Context()))
	}

	switch {
	case err == nil:
		respondJSON(w, http.StatusCreated, EnrollResponse{ID: id})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respondError(w, http.StatusGatewayTimeout, "no face seen before the deadline")
	default:
		h.respondEnrollError(w, err)
	}
}

// EnrollIdentity captures a face for a known identity id.
func (h *EnrollHandler) EnrollIdentity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		respondError(w, http.StatusBadRequest, "invalid identity id")
		return
	}

	if err := h.ctrl.Enroll(r.Context(), id); err != nil {
		h.respondEnrollError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, EnrollResponse{ID: id})
}

func (h *EnrollHandler) respondEnrollError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, access.ErrInvalidID):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrEnrollmentInProgress), errors.Is(err, database.ErrStoreFull):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, camera.ErrBusy):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, vision.ErrNoFace), errors.Is(err, vision.ErrCorruptFrame),
		errors.Is(err, vision.ErrFrameTooLarge), errors.Is(err, vision.ErrExtractionFailed):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.WithField("error", sanitizeForLog(err.Error())).Error("enrollment failed")
		respondError(w, http.StatusInternalServerError, "enrollment failed")
	}
}

// IdentitiesResponse lists the enrolled ids.
type IdentitiesResponse struct {
	IDs      []int `json:"ids"`
	Capacity int   `json:"capacity"`
	NextID   int   `json:"next_id"`
}

// ListIdentities returns the enrolled identity ids.
func (h *EnrollHandler) ListIdentities(w http.ResponseWriter, r *http.Request) {
	store := h.ctrl.Store()
	ids := store.IDs()
	if ids == nil {
		ids = []int{}
	}
	respondJSON(w, http.StatusOK, IdentitiesResponse{
		IDs:      ids,
		Capacity: store.Capacity(),
		NextID:   store.NextID(),
	})
}
