package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/facelock/internal/cloud"
)

// RecordRepository implements cloud.RecordStore.
type RecordRepository struct {
	pool *Pool
}

// NewRecordRepository creates a record repository on pool.
func NewRecordRepository(pool *Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

// UpsertIdentity inserts or replaces the embedding stored for id.
func (r *RecordRepository) UpsertIdentity(ctx context.Context, id int, embedding []float32) error {
	_, err := r.pool.exec(ctx, `
		INSERT INTO identities (face_id, embedding)
		VALUES ($1, $2)
		ON CONFLICT (face_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			updated_at = NOW()
	`, id, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("upsert identity %d: %w", id, err)
	}
	return nil
}

// ListIdentities returns every identity ordered by id.
func (r *RecordRepository) ListIdentities(ctx context.Context) ([]cloud.Identity, error) {
	rows, err := r.pool.query(ctx, `SELECT face_id, embedding, updated_at FROM identities ORDER BY face_id`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var out []cloud.Identity
	for rows.Next() {
		var (
			ident cloud.Identity
			vec   pgvector.Vector
		)
		if err := rows.Scan(&ident.ID, &vec, &ident.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		ident.Embedding = vec.Slice()
		out = append(out, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

// InsertAccessLog appends one access log row.
func (r *RecordRepository) InsertAccessLog(ctx context.Context, entry cloud.AccessLog) error {
	var (
		faceID sql.NullInt64
		score  sql.NullFloat64
		image  sql.NullString
	)
	if entry.FaceID != nil {
		faceID = sql.NullInt64{Int64: int64(*entry.FaceID), Valid: true}
	}
	if entry.Score != nil {
		score = sql.NullFloat64{Float64: *entry.Score, Valid: true}
	}
	if entry.ImageName != "" {
		image = sql.NullString{String: entry.ImageName, Valid: true}
	}

	_, err := r.pool.exec(ctx, `
		INSERT INTO access_logs (device_id, face_id, score, description, image_url)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.DeviceID, faceID, score, entry.Description, image)
	if err != nil {
		return fmt.Errorf("insert access log: %w", err)
	}
	return nil
}

// AccessLogs returns the most recent access logs of a device, newest first.
func (r *RecordRepository) AccessLogs(ctx context.Context, deviceID string, limit int) ([]cloud.AccessLog, error) {
	rows, err := r.pool.query(ctx, `
		SELECT device_id, face_id, score, description, image_url, created_at
		FROM access_logs
		WHERE device_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query access logs: %w", err)
	}
	defer rows.Close()

	var out []cloud.AccessLog
	for rows.Next() {
		var (
			entry  cloud.AccessLog
			faceID sql.NullInt64
			score  sql.NullFloat64
			image  sql.NullString
		)
		if err := rows.Scan(&entry.DeviceID, &faceID, &score, &entry.Description, &image, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan access log: %w", err)
		}
		if faceID.Valid {
			id := int(faceID.Int64)
			entry.FaceID = &id
		}
		if score.Valid {
			entry.Score = &score.Float64
		}
		entry.ImageName = image.String
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access logs: %w", err)
	}
	return out, nil
}

// PendingCommands returns the device's unexecuted commands in queue order.
func (r *RecordRepository) PendingCommands(ctx context.Context, deviceID string) ([]cloud.Command, error) {
	rows, err := r.pool.query(ctx, `
		SELECT id, device_id, command, payload, created_at
		FROM device_commands
		WHERE device_id = $1 AND status = 'pending'
		ORDER BY id
	`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("query pending commands: %w", err)
	}
	defer rows.Close()

	var out []cloud.Command
	for rows.Next() {
		var (
			cmd     cloud.Command
			payload []byte
		)
		if err := rows.Scan(&cmd.ID, &cmd.DeviceID, &cmd.Name, &payload, &cmd.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		if len(payload) > 0 {
			cmd.Payload = json.RawMessage(payload)
		}
		out = append(out, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return out, nil
}

// EnqueueCommand queues a command for a device and returns its id.
func (r *RecordRepository) EnqueueCommand(ctx context.Context, deviceID, name string, payload json.RawMessage) (int64, error) {
	var raw any
	if len(payload) > 0 {
		raw = []byte(payload)
	}

	var id int64
	err := r.pool.db.QueryRowContext(ctx, `
		INSERT INTO device_commands (device_id, command, payload)
		VALUES ($1, $2, $3)
		RETURNING id
	`, deviceID, name, raw).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("enqueue command: %w", err)
	}
	return id, nil
}

// MarkCommandExecuted flags a command as done so it is not fetched again.
func (r *RecordRepository) MarkCommandExecuted(ctx context.Context, id int64) error {
	_, err := r.pool.exec(ctx, `
		UPDATE device_commands SET status = 'executed', executed_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark command %d executed: %w", id, err)
	}
	return nil
}

var _ cloud.RecordStore = (*RecordRepository)(nil)
