package database

import (
	"context"
	"errors"
)

var (
	// ErrInvalidEmbedding is returned for a non-positive id or a vector of the wrong dimension.
	ErrInvalidEmbedding = errors.New("invalid embedding")
	// ErrStoreFull is returned when a new id has no free slot. The store is left unchanged.
	ErrStoreFull = errors.New("identity store full")
	// ErrNotFound is returned by KV implementations for a missing key.
	ErrNotFound = errors.New("key not found")
	// ErrCorruptSnapshot is returned by Restore when the persisted blob cannot be decoded.
	ErrCorruptSnapshot = errors.New("corrupt identity snapshot")
)

// FaceRecord is one enrolled identity. Embedding is always unit length.
type FaceRecord struct {
	ID        int
	Embedding []float32
	Valid     bool
}

// KV is the blob persistence the store snapshots into.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, blob []byte) error
}

// snapshot is the gob-encoded form persisted under constants.FaceStoreKey.
type snapshot struct {
	Version int
	NextID  int
	Records []FaceRecord
}

const currentSnapshotVersion = 1
