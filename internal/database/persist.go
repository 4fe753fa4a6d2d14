package database

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/kozaktomas/facelock/internal/constants"
	"github.com/kozaktomas/facelock/internal/facematch"
)

// Persist writes a snapshot of every valid record and NextID to the KV collaborator.
func (s *IdentityStore) Persist(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}

	s.mu.RLock()
	snap := snapshot{
		Version: currentSnapshotVersion,
		NextID:  s.nextID,
		Records: s.copyValidLocked(),
	}
	s.mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("failed to encode identity snapshot: %w", err)
	}
	if err := s.kv.Set(ctx, constants.FaceStoreKey, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to save identity snapshot: %w", err)
	}
	return nil
}

// Restore replaces the store contents with the persisted snapshot. A missing snapshot
// leaves the store empty and is not an error. A blob that cannot be decoded also leaves
// the store empty and returns ErrCorruptSnapshot. Records with a non-positive id, a wrong
// dimension or a duplicate id are dropped, and NextID is raised above every kept id.
func (s *IdentityStore) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	if s.kv == nil {
		return nil
	}

	blob, err := s.kv.Get(ctx, constants.FaceStoreKey)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load identity snapshot: %w", err)
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&snap); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	seen := make(map[int]bool, len(snap.Records))
	slot := 0
	for _, r := range snap.Records {
		if !r.Valid || r.ID < 1 || len(r.Embedding) != constants.EmbeddingDim || facematch.Norm(r.Embedding) == 0 {
			s.log.WithField("face_id", r.ID).Warn("Dropping invalid record from snapshot")
			continue
		}
		if seen[r.ID] {
			s.log.WithField("face_id", r.ID).Warn("Dropping duplicate record from snapshot")
			continue
		}
		if slot >= len(s.records) {
			s.log.WithField("face_id", r.ID).Warn("Snapshot exceeds store capacity, dropping record")
			continue
		}
		seen[r.ID] = true
		s.records[slot] = FaceRecord{ID: r.ID, Embedding: facematch.Normalized(r.Embedding), Valid: true}
		slot++
	}

	s.nextID = max(snap.NextID, 1)
	for id := range seen {
		if id >= s.nextID {
			s.nextID = id + 1
		}
	}
	return nil
}
