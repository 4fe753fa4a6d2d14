// Package cloud is the device's link to the remote record store and capture bucket.
package cloud

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrOffline is returned by every operation when no cloud backend is configured.
var ErrOffline = errors.New("cloud offline")

// Remote command names.
const (
	CommandOpen   = "OPEN"
	CommandEnroll = "ENROLL"
)

// AccessLog is one row of the access history. FaceID and Score are nil for remote unlocks.
type AccessLog struct {
	DeviceID    string    `json:"device_id"`
	FaceID      *int      `json:"face_id,omitempty"`
	Score       *float64  `json:"score,omitempty"`
	Description string    `json:"description"`
	ImageName   string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MatchDescription formats the description logged for a face match.
func MatchDescription(score float64) string {
	return fmt.Sprintf("Face ID Match (%.2f)", score)
}

// Command is a pending instruction queued for the device.
type Command struct {
	ID        int64           `json:"id"`
	DeviceID  string          `json:"device_id"`
	Name      string          `json:"command"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// EnrollPayload is the payload of an ENROLL command.
type EnrollPayload struct {
	UserID int `json:"user_id"`
}

// EnrollTarget decodes the user id carried by an ENROLL command.
func (c Command) EnrollTarget() (int, error) {
	var p EnrollPayload
	if len(c.Payload) == 0 {
		return 0, errors.New("missing enroll payload")
	}
	if err := json.Unmarshal(c.Payload, &p); err != nil {
		return 0, fmt.Errorf("decode enroll payload: %w", err)
	}
	if p.UserID < 1 {
		return 0, fmt.Errorf("invalid user_id %d", p.UserID)
	}
	return p.UserID, nil
}

// Identity is an enrolled face as stored in the cloud.
type Identity struct {
	ID        int       `json:"face_id"`
	Embedding []float32 `json:"embedding"`
	UpdatedAt time.Time `json:"updated_at"`
}
