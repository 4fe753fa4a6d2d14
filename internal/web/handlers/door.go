package handlers

import (
	"context"
	"net/http"

	"github.com/kozaktomas/facelock/internal/access"
)

// DoorHandler handles status and door endpoints
type DoorHandler struct {
	ctrl *access.Controller
}

// NewDoorHandler creates a new door handler
func NewDoorHandler(ctrl *access.Controller) *DoorHandler {
	return &DoorHandler{ctrl: ctrl}
}

// Status returns the controller status.
func (h *DoorHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.ctrl.Status())
}

// Open unlocks the door and logs a remote unlock. The log survives a client
// that hangs up early.
func (h *DoorHandler) Open(w http.ResponseWriter, r *http.Request) {
	h.ctrl.RemoteOpen(context.WithoutCancel(r.Context()))
	respondJSON(w, http.StatusOK, map[string]string{"status": "opened"})
}

type recognitionRequest struct {
	Enabled *bool `json:"enabled"`
}

// GetRecognition reports whether the recognition loop is enabled.
func (h *DoorHandler) GetRecognition(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"enabled": h.ctrl.RecognitionEnabled()})
}

// SetRecognition enables or disables the recognition loop.
func (h *DoorHandler) SetRecognition(w http.ResponseWriter, r *http.Request) {
	var req recognitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Enabled == nil {
		respondError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	h.ctrl.SetRecognitionEnabled(*req.Enabled)
	respondJSON(w, http.StatusOK, map[string]bool{"enabled": *req.Enabled})
}
