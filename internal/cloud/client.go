package cloud

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Client is everything the controller needs from the cloud.
type Client interface {
	UploadImage(ctx context.Context, name string, jpeg []byte) error
	UploadIdentity(ctx context.Context, id int, embedding []float32) error
	LogAccess(ctx context.Context, entry AccessLog) error
	FetchPendingCommands(ctx context.Context) ([]Command, error)
	MarkExecuted(ctx context.Context, commandID int64) error
	FetchIdentities(ctx context.Context) ([]Identity, error)
}

// RecordStore persists identities, access logs and the command queue.
type RecordStore interface {
	UpsertIdentity(ctx context.Context, id int, embedding []float32) error
	ListIdentities(ctx context.Context) ([]Identity, error)
	InsertAccessLog(ctx context.Context, entry AccessLog) error
	PendingCommands(ctx context.Context, deviceID string) ([]Command, error)
	MarkCommandExecuted(ctx context.Context, id int64) error
}

// ImageStore holds uploaded captures.
type ImageStore interface {
	PutObject(ctx context.Context, name string, data []byte, contentType string) error
}

// Service implements Client on top of a record store and an optional image store.
// A nil record store makes every record operation return ErrOffline; a nil image
// store does the same for uploads.
type Service struct {
	deviceID string
	records  RecordStore
	images   ImageStore
	log      logrus.FieldLogger
}

// NewService creates a cloud client for deviceID.
func NewService(deviceID string, records RecordStore, images ImageStore, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		deviceID: deviceID,
		records:  records,
		images:   images,
		log:      log.WithField("component", "cloud"),
	}
}

// Online reports whether a record store is configured.
func (s *Service) Online() bool {
	return s.records != nil
}

func (s *Service) UploadImage(ctx context.Context, name string, jpeg []byte) error {
	if s.images == nil {
		return ErrOffline
	}
	if err := s.images.PutObject(ctx, name, jpeg, "image/jpeg"); err != nil {
		return err
	}
	s.log.WithField("image", name).Info("Image uploaded")
	return nil
}

func (s *Service) UploadIdentity(ctx context.Context, id int, embedding []float32) error {
	if s.records == nil {
		return ErrOffline
	}
	if err := s.records.UpsertIdentity(ctx, id, embedding); err != nil {
		return err
	}
	s.log.WithField("face_id", id).Info("Identity uploaded")
	return nil
}

// LogAccess stamps the entry with this device's id before storing it.
func (s *Service) LogAccess(ctx context.Context, entry AccessLog) error {
	if s.records == nil {
		return ErrOffline
	}
	entry.DeviceID = s.deviceID
	return s.records.InsertAccessLog(ctx, entry)
}

func (s *Service) FetchPendingCommands(ctx context.Context) ([]Command, error) {
	if s.records == nil {
		return nil, ErrOffline
	}
	return s.records.PendingCommands(ctx, s.deviceID)
}

func (s *Service) MarkExecuted(ctx context.Context, commandID int64) error {
	if s.records == nil {
		return ErrOffline
	}
	return s.records.MarkCommandExecuted(ctx, commandID)
}

func (s *Service) FetchIdentities(ctx context.Context) ([]Identity, error) {
	if s.records == nil {
		return nil, ErrOffline
	}
	return s.records.ListIdentities(ctx)
}

// Offline returns a client with no backends.
func Offline() *Service {
	return NewService("", nil, nil, nil)
}

var _ Client = (*Service)(nil)
