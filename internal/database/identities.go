// Package database holds the on-device identity store and its blob persistence.
package database

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/facelock/internal/constants"
	"github.com/kozaktomas/facelock/internal/facematch"
)

// StoreConfig configures an IdentityStore.
type StoreConfig struct {
	Capacity int // number of slots, defaults to constants.DefaultStoreCapacity
	KV       KV  // optional, Persist and Restore are no-ops without it
	Logger   logrus.FieldLogger
}

// IdentityStore is a fixed-capacity table of face records plus the next id to hand out.
// All methods are safe for concurrent use.
type IdentityStore struct {
	mu      sync.RWMutex
	records []FaceRecord
	nextID  int
	kv      KV
	log     logrus.FieldLogger
}

// NewIdentityStore creates an empty store with NextID = 1.
func NewIdentityStore(cfg StoreConfig) *IdentityStore {
	if cfg.Capacity <= 0 {
		cfg.Capacity = constants.DefaultStoreCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &IdentityStore{
		records: make([]FaceRecord, cfg.Capacity),
		nextID:  1,
		kv:      cfg.KV,
		log:     cfg.Logger,
	}
}

// Capacity returns the number of slots.
func (s *IdentityStore) Capacity() int {
	return len(s.records)
}

// Len returns the number of valid records.
func (s *IdentityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for i := range s.records {
		if s.records[i].Valid {
			n++
		}
	}
	return n
}

// NextID returns the id the next local enrollment will receive.
func (s *IdentityStore) NextID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}

// AllocateNew returns the current NextID without reserving it.
// The id is consumed by the Upsert that follows.
func (s *IdentityStore) AllocateNew() int {
	return s.NextID()
}

// FindSlotFor returns the slot holding a valid record with the given id.
func (s *IdentityStore) FindSlotFor(id int) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findSlotLocked(id)
}

// FindFreeSlot returns the lowest slot without a valid record.
func (s *IdentityStore) FindFreeSlot() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findFreeLocked()
}

func (s *IdentityStore) findSlotLocked(id int) (int, bool) {
	for i := range s.records {
		if s.records[i].Valid && s.records[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (s *IdentityStore) findFreeLocked() (int, bool) {
	for i := range s.records {
		if !s.records[i].Valid {
			return i, true
		}
	}
	return -1, false
}

// Upsert stores a normalized copy of embedding under id, overwriting an existing record
// with the same id in place. A new id takes the lowest free slot; when none is left the
// store is not modified and ErrStoreFull is returned.
func (s *IdentityStore) Upsert(id int, embedding []float32) error {
	if id < 1 || len(embedding) != constants.EmbeddingDim {
		return ErrInvalidEmbedding
	}
	vec := facematch.Normalized(embedding)

	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.findSlotLocked(id)
	if !ok {
		slot, ok = s.findFreeLocked()
		if !ok {
			return ErrStoreFull
		}
	}

	s.records[slot] = FaceRecord{ID: id, Embedding: vec, Valid: true}
	if id >= s.nextID {
		s.nextID = id + 1
	}
	return nil
}

// EnrollNew stores embedding under a freshly allocated id and returns it.
// Allocation and insert happen under one lock, so a concurrent Upsert cannot
// claim the same id in between.
func (s *IdentityStore) EnrollNew(embedding []float32) (int, error) {
	if len(embedding) != constants.EmbeddingDim {
		return 0, ErrInvalidEmbedding
	}
	vec := facematch.Normalized(embedding)

	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.findFreeLocked()
	if !ok {
		return 0, ErrStoreFull
	}
	id := s.nextID
	s.records[slot] = FaceRecord{ID: id, Embedding: vec, Valid: true}
	s.nextID++
	return id, nil
}

// BestMatch scans every valid record and returns the most similar one.
// Ties keep the lowest slot. An empty store or a malformed query reports false.
func (s *IdentityStore) BestMatch(query []float32) (facematch.Match, bool) {
	if len(query) != constants.EmbeddingDim {
		return facematch.Match{}, false
	}
	q := facematch.Normalized(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	best := facematch.Match{Slot: -1}
	found := false
	for i := range s.records {
		r := &s.records[i]
		if !r.Valid {
			continue
		}
		score := facematch.Similarity(q, r.Embedding)
		if !found || score > best.Score {
			best = facematch.Match{ID: r.ID, Slot: i, Score: score}
			found = true
		}
	}
	return best, found
}

// IDs returns the ids of valid records in slot order.
func (s *IdentityStore) IDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int, 0, len(s.records))
	for i := range s.records {
		if s.records[i].Valid {
			ids = append(ids, s.records[i].ID)
		}
	}
	return ids
}

// Records returns deep copies of the valid records in slot order.
func (s *IdentityStore) Records() []FaceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyValidLocked()
}

func (s *IdentityStore) copyValidLocked() []FaceRecord {
	out := make([]FaceRecord, 0, len(s.records))
	for i := range s.records {
		r := s.records[i]
		if !r.Valid {
			continue
		}
		emb := make([]float32, len(r.Embedding))
		copy(emb, r.Embedding)
		out = append(out, FaceRecord{ID: r.ID, Embedding: emb, Valid: true})
	}
	return out
}

func (s *IdentityStore) resetLocked() {
	for i := range s.records {
		s.records[i] = FaceRecord{}
	}
	s.nextID = 1
}
