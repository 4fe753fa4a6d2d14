// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Face matching constants
const (
	// EmbeddingDim is the fixed dimension of face embeddings produced by the extractor
	EmbeddingDim = 512

	// DefaultMatchThreshold is the minimum cosine similarity for accepting a match.
	// Scores equal to the threshold are rejected.
	DefaultMatchThreshold = 0.35

	// DefaultStoreCapacity is the number of identity slots in the local store
	DefaultStoreCapacity = 10
)

// Frame constants
const (
	// MinFrameBytes is the smallest encoded frame treated as valid.
	// Smaller frames come from a corrupted sensor read or a truncated JPEG.
	MinFrameBytes = 2048

	// MaxFrameBytes caps the body read from a network camera.
	MaxFrameBytes = 1 << 20

	// DefaultFrameWidth and DefaultFrameHeight size the preallocated RGB buffer
	DefaultFrameWidth  = 320
	DefaultFrameHeight = 240

	// RGBBytesPerPixel is the size of one RGB888 pixel
	RGBBytesPerPixel = 3
)

// Storage keys
const (
	// FaceStoreKey is the key-value key holding the identity table snapshot
	FaceStoreKey = "face_store/db_data"
)

// Access log constants
const (
	// RemoteUnlockDescription describes door openings not tied to a face
	RemoteUnlockDescription = "Remote Unlock via App"

	// RemoteUnlockScore is the score recorded for remote unlocks
	RemoteUnlockScore = 1.0
)
