package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/facelock/internal/cloud"
	"github.com/kozaktomas/facelock/internal/cloud/objectstore"
	"github.com/kozaktomas/facelock/internal/cloud/postgres"
	"github.com/kozaktomas/facelock/internal/config"
	"github.com/kozaktomas/facelock/internal/database"
	"github.com/kozaktomas/facelock/internal/database/badger"
)

// localState is the on-device identity store and its backing KV.
type localState struct {
	store *database.IdentityStore
	kv    *badger.Store
}

func (s *localState) Close() {
	if err := s.kv.Close(); err != nil {
		fmt.Printf("Warning: failed to close state store: %v\n", err)
	}
}

// openLocalState opens the badger state directory and restores the identity table.
func openLocalState(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*localState, error) {
	path := filepath.Join(cfg.StateDir, "badger")
	kv, err := badger.Open(badger.Config{Path: path, Logger: log})
	if err != nil {
		return nil, fmt.Errorf("failed to open state store at %s: %w", path, err)
	}

	store := database.NewIdentityStore(database.StoreConfig{
		Capacity: cfg.Match.StoreCapacity,
		KV:       kv,
		Logger:   log,
	})
	if err := store.Restore(ctx); err != nil {
		// A corrupt snapshot leaves the store empty; the device keeps running.
		fmt.Printf("Warning: identity store not restored: %v\n", err)
	}
	return &localState{store: store, kv: kv}, nil
}

// cloudBackends holds the optional remote services.
type cloudBackends struct {
	service *cloud.Service
	records *postgres.RecordRepository
	pool    *postgres.Pool
}

func (b *cloudBackends) Close() {
	if b.pool != nil {
		_ = b.pool.Close()
	}
}

// openCloud connects whatever cloud backends are configured. Missing
// configuration yields an offline service, not an error.
func openCloud(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*cloudBackends, error) {
	b := &cloudBackends{}

	var records cloud.RecordStore
	if cfg.CloudEnabled() {
		fmt.Printf("Connecting to PostgreSQL database...\n")
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		b.pool = pool
		b.records = postgres.NewRecordRepository(pool)
		records = b.records
	}

	var images cloud.ImageStore
	if cfg.Storage.UploadsEnabled() {
		fmt.Printf("Connecting to object storage at %s...\n", cfg.Storage.Endpoint)
		store, err := objectstore.New(ctx, &cfg.Storage)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to initialize object storage: %w", err)
		}
		images = store
	}

	b.service = cloud.NewService(cfg.DeviceID, records, images, log)
	return b, nil
}

// requireRecords opens the record store for commands that cannot work offline.
func requireRecords(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*cloudBackends, error) {
	if !cfg.CloudEnabled() {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	return openCloud(ctx, cfg, log)
}
